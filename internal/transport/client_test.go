package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/librarian/pkg/errors"
)

// recordingSleeper records requested waits without sleeping.
type recordingSleeper struct {
	waits []time.Duration
}

func (r *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc, sleeper Sleeper, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithSleeper(sleeper)}, opts...)
	c, err := New(Config{
		BaseURL:     srv.URL + "/api/",
		TokenID:     "id",
		TokenSecret: "secret",
		MinInterval: -1,
	}, opts...)
	require.NoError(t, err)
	return c
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestCallSendsTokenAndJSON(t *testing.T) {
	var gotAuth, gotType, gotPath, gotBody string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = w.Write([]byte(`{"id": 7}`))
	}, &recordingSleeper{})

	resp, err := c.Put(context.Background(), "/pages/3", map[string]int{"chapter_id": 9})
	require.NoError(t, err)

	var out struct {
		ID int `json:"id"`
	}
	require.NoError(t, resp.Decode(&out))
	assert.Equal(t, 7, out.ID)
	assert.Equal(t, "Token id:secret", gotAuth)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, "/api/pages/3", gotPath)
	assert.JSONEq(t, `{"chapter_id": 9}`, gotBody)
}

func TestWithAuthenticatorOverridesToken(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	}, &recordingSleeper{}, WithAuthenticator(&NoAuth{}))

	_, err := c.Get(context.Background(), "/books")
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestEmptyBodyIsNoContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, &recordingSleeper{})

	resp, err := c.Delete(context.Background(), "/pages/1")
	require.NoError(t, err)
	assert.True(t, resp.Empty())

	var v map[string]any
	assert.ErrorIs(t, resp.Decode(&v), errors.ErrNoContent)
}

func TestWhitespaceBodyIsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("  \n\t "))
	}, &recordingSleeper{})

	resp, err := c.Get(context.Background(), "/books")
	require.NoError(t, err)
	assert.True(t, resp.Empty())
}

func TestBadJSONIsParseError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}, &recordingSleeper{})

	resp, err := c.Get(context.Background(), "/books")
	require.NoError(t, err)
	var v map[string]any
	var pe *errors.ParseError
	assert.ErrorAs(t, resp.Decode(&v), &pe)
}

func TestNonRetryableFailsImmediately(t *testing.T) {
	var calls atomic.Int32
	sleeper := &recordingSleeper{}
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte("  name\nalready taken  "))
	}, sleeper)

	_, err := c.Put(context.Background(), "/chapters/4", map[string]any{"book_id": 2})
	require.Error(t, err)

	var rf *errors.RequestFailedError
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, http.StatusUnprocessableEntity, rf.StatusCode)
	assert.Equal(t, "name already taken", rf.Snippet)
	assert.True(t, errors.IsConflict(err))
	assert.False(t, errors.IsTransient(err))
	assert.Empty(t, sleeper.waits)
}

func TestRateLimitHonoursRetryAfter(t *testing.T) {
	var calls atomic.Int32
	sleeper := &recordingSleeper{}
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}, sleeper)

	_, err := c.Get(context.Background(), "/books")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []time.Duration{7 * time.Second}, sleeper.waits)
}

func TestServerErrorsExhaustRetries(t *testing.T) {
	var calls atomic.Int32
	sleeper := &recordingSleeper{}
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(strings.Repeat("x", 500)))
	}, sleeper)

	_, err := c.Get(context.Background(), "/books")
	require.Error(t, err)

	var rf *errors.RequestFailedError
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, int32(5), calls.Load())
	assert.Equal(t, 5, rf.Attempts)
	assert.Equal(t, http.StatusBadGateway, rf.StatusCode)
	assert.Len(t, rf.Snippet, 200)
	assert.True(t, errors.IsTransient(err))
	assert.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
	}, sleeper.waits)
}

func TestTransportErrorIsRequestFailed(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: url, MinInterval: -1}, WithSleeper(&recordingSleeper{}))
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "/books")
	require.Error(t, err)
	assert.True(t, errors.IsRequestFailed(err))
	assert.Equal(t, 0, errors.StatusCode(err))
}

func TestPacingWaitsRemainingInterval(t *testing.T) {
	now := time.Unix(1000, 0)
	sleeper := SleeperFunc(func(_ context.Context, d time.Duration) error {
		now = now.Add(d)
		return nil
	})
	var waits []time.Duration
	recording := SleeperFunc(func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return sleeper(ctx, d)
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, MinInterval: 200 * time.Millisecond},
		WithSleeper(recording),
		WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = c.Get(ctx, "/a")
	require.NoError(t, err)
	now = now.Add(50 * time.Millisecond)
	_, err = c.Get(ctx, "/b")
	require.NoError(t, err)
	now = now.Add(time.Second)
	_, err = c.Get(ctx, "/c")
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{150 * time.Millisecond}, waits)
}

func TestCanceledSleepStopsRetrying(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, SleeperFunc(func(_ context.Context, _ time.Duration) error {
		cancel()
		return context.Canceled
	}))

	_, err := c.Get(ctx, "/books")
	assert.ErrorIs(t, err, errors.ErrCanceled)
	assert.Equal(t, int32(1), calls.Load())
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		attempt    int
		retryAfter string
		want       time.Duration
	}{
		{"429 retry-after", 429, 1, "3", 3 * time.Second},
		{"429 zero retry-after", 429, 2, "0", 4 * time.Second},
		{"429 non-numeric", 429, 1, "Wed, 21 Oct 2015 07:28:00 GMT", 2 * time.Second},
		{"429 capped", 429, 6, "", 60 * time.Second},
		{"500 first", 500, 1, "", 1 * time.Second},
		{"503 fourth", 503, 4, "", 8 * time.Second},
		{"502 capped", 502, 6, "", 30 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Backoff(tt.status, tt.attempt, tt.retryAfter))
		})
	}
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "a b", Snippet([]byte("  a\nb  "), 200))
	assert.Equal(t, "abc", Snippet([]byte("abcdef"), 3))
	assert.Equal(t, "", Snippet(nil, 200))

	// "é" is two bytes; a cut through it backs off to the previous rune.
	got := Snippet([]byte("abé"), 3)
	assert.Equal(t, "ab", got)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "abé", Snippet([]byte("abé"), 4))
	long := Snippet([]byte(strings.Repeat("日", 100)), 200)
	assert.True(t, utf8.ValidString(long))
	assert.LessOrEqual(t, len(long), 200)
}
