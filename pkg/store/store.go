// Package store persists VPC records as one JSON file per VPC under a
// configurable directory, with atomic write-then-rename semantics. It is
// the system's durable source of truth for what the control plane owns.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vpcnet/vpcctl/pkg/util"
	"github.com/vpcnet/vpcctl/pkg/vpcmodel"
)

// Store reads and writes VPC records under a directory.
type Store struct {
	dir string
}

// New returns a Store rooted at dir, creating it if necessary.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory this store is rooted at.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) recordPath(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Put atomically writes a VPC record, encoding to a sibling temp file,
// fsyncing, then renaming over the target.
func (s *Store) Put(v *vpcmodel.VPC) error {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal vpc record %s: %w", v.Name, err)
	}

	path := s.recordPath(v.Name)
	tmp := path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("fsync temp state file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// Get loads a VPC record by name, returning util.ErrNotFound if absent.
func (s *Store) Get(name string) (*vpcmodel.VPC, error) {
	content, err := os.ReadFile(s.recordPath(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("vpc %q: %w", name, util.ErrNotFound)
		}
		return nil, fmt.Errorf("read state file for %s: %w", name, err)
	}

	var v vpcmodel.VPC
	if err := json.Unmarshal(content, &v); err != nil {
		return nil, fmt.Errorf("state file for %s is corrupted: %w: %v", name, util.ErrStateCorrupt, err)
	}
	if v.Subnets == nil {
		v.Subnets = make(map[string]*vpcmodel.Subnet)
	}
	if v.Peerings == nil {
		v.Peerings = make(map[string]*vpcmodel.Peering)
	}
	return &v, nil
}

// List returns every VPC record in the store, sorted by name.
func (s *Store) List() ([]*vpcmodel.VPC, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read state directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)

	vpcs := make([]*vpcmodel.VPC, 0, len(names))
	for _, name := range names {
		v, err := s.Get(name)
		if err != nil {
			return nil, err
		}
		vpcs = append(vpcs, v)
	}
	return vpcs, nil
}

// Delete removes a VPC's record file. Missing files are treated as
// success, matching the reconciler's best-effort teardown semantics.
func (s *Store) Delete(name string) error {
	if err := os.Remove(s.recordPath(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove state file for %s: %w", name, err)
	}
	return nil
}

// Exists reports whether a VPC record exists.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.recordPath(name))
	return err == nil
}
