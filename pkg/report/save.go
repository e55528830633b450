package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agentstation/librarian/pkg/constants"
	"github.com/agentstation/librarian/pkg/errors"
)

// Bundle groups the stage reports of one run for persistence.
type Bundle struct {
	RunID   string    `json:"run_id"`
	Mode    Mode      `json:"mode"`
	Written time.Time `json:"written"`
	Reports []*Report `json:"reports"`
}

// Save writes the reports as one indented JSON file named after the first
// report's start time into dir and returns its path.
func Save(dir string, reports ...*Report) (string, error) {
	if len(reports) == 0 {
		return "", errors.NewValidationError("reports", 0, "nothing to save")
	}
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return "", errors.WrapIO("mkdir", dir, err)
	}

	first := reports[0]
	bundle := Bundle{RunID: first.RunID, Mode: first.Mode, Written: time.Now().UTC(), Reports: reports}
	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return "", errors.WrapParse("json", "report", err)
	}

	name := fmt.Sprintf("organize-report-%s.json", first.StartedAt.Format("20060102-150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, constants.FilePermissions); err != nil {
		return "", errors.WrapIO("write", path, err)
	}
	return path, nil
}

// Decode reads a report written by json.Marshal. The result is sealed.
func Decode(data []byte) (*Report, error) {
	r := &Report{now: time.Now}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, err
	}
	r.sealed = true
	return r, nil
}
