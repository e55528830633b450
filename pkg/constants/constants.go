// Package constants holds the tunables shared across librarian packages.
package constants

import "time"

// Remote client pacing and retry.
const (
	// DefaultHTTPTimeout bounds a single HTTP round trip.
	DefaultHTTPTimeout = 60 * time.Second

	// DefaultMinInterval is the minimum spacing between consecutive remote
	// calls (roughly 5 requests per second).
	DefaultMinInterval = 200 * time.Millisecond

	// MaxAttempts is the retry ceiling for a single logical call.
	MaxAttempts = 5

	// MaxRateLimitBackoff caps the computed delay after a 429 without Retry-After.
	MaxRateLimitBackoff = 60 * time.Second

	// MaxServerErrorBackoff caps the delay after a 5xx response.
	MaxServerErrorBackoff = 30 * time.Second

	// SnippetLimit bounds the response body excerpt carried by errors.
	SnippetLimit = 200
)

// Content heuristics.
const (
	// EmptyTextThreshold is the exclusive upper bound on stripped text length
	// for a document to count as effectively empty.
	EmptyTextThreshold = 30

	// TextSampleLength bounds snapshot text samples.
	TextSampleLength = 600

	// MaxHeadings bounds the headings collected per document in snapshots.
	MaxHeadings = 12
)

// Naming defaults, matching the conventions of the library being organized.
const (
	DefaultHoldingGrouping   = "9. Orphaned"
	DefaultHoldingCollection = "Empty Chapters Holding"
	DefaultInboxName         = "00. Inbox (Unsorted)"
)

// Local output locations, relative to the working directory.
const (
	DefaultOutputDir = "data/hierarchy"
	DefaultAuditDB   = "data/librarian.db"
)

// File permissions.
const (
	// DirPermissions for report directories.
	DirPermissions = 0o755

	// FilePermissions for report files.
	FilePermissions = 0o644

	// SecureDirPermissions for directories holding audit databases.
	SecureDirPermissions = 0o700
)
