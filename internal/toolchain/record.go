package toolchain

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// State directory layout:
//
//	<workdir>/.gipwebgl/
//	  tools.json      # tool records: maps tool name → ToolRecord
const recordFile = "tools.json"

// ToolRecord describes a tool installed by the provision tier.
type ToolRecord struct {
	Path        string    `json:"path"`
	Source      string    `json:"source"`
	Digest      string    `json:"blake3,omitempty"`
	Version     string    `json:"version,omitempty"`
	InstalledAt time.Time `json:"installed_at"`
}

// Records is the persisted set of provisioned tools.
type Records struct {
	dir   string
	Tools map[string]*ToolRecord `json:"tools"`
}

// LoadRecords reads the record file in stateDir. A missing file yields an
// empty set.
func LoadRecords(stateDir string) (*Records, error) {
	r := &Records{dir: stateDir}
	data, err := os.ReadFile(filepath.Join(stateDir, recordFile))
	if errors.Is(err, fs.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Records) Get(name string) (*ToolRecord, bool) {
	rec, ok := r.Tools[name]
	return rec, ok
}

func (r *Records) Set(name string, rec *ToolRecord) {
	if r.Tools == nil {
		r.Tools = make(map[string]*ToolRecord)
	}
	r.Tools[name] = rec
}

// Save writes the records back to the state directory.
func (r *Records) Save() error {
	if err := os.MkdirAll(r.dir, 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(r.dir, recordFile), data, 0o644)
}
