package models

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// cacheVersion is incremented when the on-disk tuning cache format changes.
const cacheVersion = 1

// TuningPoint is one (parameter, error) sample of a tuning sweep.
type TuningPoint struct {
	Param int
	Err   float64
}

// TuningCurve records a slow-to-compute tuning sweep (for example the k-NN
// LOOCV curve) so repeated runs can reuse it. The curve is a cache keyed by
// (model family, parameter sweep), never authoritative state.
type TuningCurve struct {
	Family string
	Points []TuningPoint
}

// Params returns the sweep's parameter values in order.
func (c *TuningCurve) Params() []int {
	out := make([]int, len(c.Points))
	for i, p := range c.Points {
		out[i] = p.Param
	}
	return out
}

func paramsMatch(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// curveCache is the on-disk representation, with the metadata needed to
// validate cache integrity before reuse.
type curveCache struct {
	Version   int
	Family    string
	CreatedAt int64
	Points    []TuningPoint
}

// SaveTuningCurve writes the curve to path using encoding/gob, creating
// parent directories as needed. The write is atomic: a temp file in the
// target directory is renamed into place.
func SaveTuningCurve(path string, curve *TuningCurve) error {
	if path == "" {
		return fmt.Errorf("empty cache path")
	}
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		_ = os.Remove(tmpName)
	}()

	enc := gob.NewEncoder(tmpFile)
	cc := curveCache{
		Version:   cacheVersion,
		Family:    curve.Family,
		CreatedAt: time.Now().Unix(),
		Points:    curve.Points,
	}
	if err := enc.Encode(&cc); err != nil {
		return fmt.Errorf("encode cache to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync temp cache file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp cache file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp cache to target: %w", err)
	}
	return nil
}

// LoadTuningCurve reads a cached curve and validates its version, family
// and parameter sweep against what the caller is about to compute. Any
// mismatch is an error so a stale cache is never silently reused.
func LoadTuningCurve(path, family string, params []int) (*TuningCurve, error) {
	if path == "" {
		return nil, fmt.Errorf("empty cache path")
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cache file %s: %w", path, err)
	}
	defer fh.Close()

	dec := gob.NewDecoder(fh)
	var cc curveCache
	if err := dec.Decode(&cc); err != nil {
		return nil, fmt.Errorf("decode cache %s: %w", path, err)
	}
	if cc.Version != cacheVersion {
		return nil, fmt.Errorf("cache version mismatch: cache=%d expected=%d", cc.Version, cacheVersion)
	}
	if cc.Family != family {
		return nil, fmt.Errorf("cache family mismatch: cache=%q expected=%q", cc.Family, family)
	}
	if len(cc.Points) != len(params) {
		return nil, fmt.Errorf("cache sweep length mismatch: cache=%d expected=%d", len(cc.Points), len(params))
	}
	for i, p := range cc.Points {
		if p.Param != params[i] {
			return nil, fmt.Errorf("cache sweep mismatch at pos %d: cache=%d expected=%d", i, p.Param, params[i])
		}
	}
	return &TuningCurve{Family: cc.Family, Points: cc.Points}, nil
}
