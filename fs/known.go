// Package fs provides file-based storage of known listings, one JSON file
// per source.
package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fwojciec/flatfinder"
)

// Ensure KnownListingService implements flatfinder.KnownListingService at compile time.
var _ flatfinder.KnownListingService = (*KnownListingService)(nil)

// ext is the file extension of per-source state files.
const ext = ".json"

// KnownListingService implements flatfinder.KnownListingService by keeping
// the ids of each source as a JSON array in <dir>/<source>.json.
// Files are replaced atomically, so a crash never leaves a partial file.
type KnownListingService struct {
	dir string
	mu  sync.Mutex
}

// NewKnownListingService creates a KnownListingService storing files in dir.
// The directory is created on first write.
func NewKnownListingService(dir string) *KnownListingService {
	return &KnownListingService{dir: dir}
}

// Path returns the state file of source.
func (s *KnownListingService) Path(source string) string {
	return filepath.Join(s.dir, source+ext)
}

// FindKnownIDs returns the ids stored for source. A missing file is an
// empty set.
func (s *KnownListingService) FindKnownIDs(ctx context.Context, source string) ([]string, error) {
	if err := validSource(source); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(source)
}

// RecordNew appends the ids not yet stored for source and rewrites the file.
func (s *KnownListingService) RecordNew(ctx context.Context, source string, ids []string) error {
	if err := validSource(source); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	known, err := s.read(source)
	if err != nil {
		return err
	}
	set := flatfinder.NewKnownSet(known)
	added := false
	for _, id := range ids {
		if id == "" {
			return flatfinder.Errorf(flatfinder.EINVALID, "listing id required")
		}
		if set.Add(id) {
			added = true
		}
	}
	if !added {
		return nil
	}
	return s.write(source, set.IDs())
}

// FindSources returns the names of sources with a state file, sorted.
func (s *KnownListingService) FindSources(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	var sources []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		sources = append(sources, strings.TrimSuffix(e.Name(), ext))
	}
	sort.Strings(sources)
	return sources, nil
}

func (s *KnownListingService) read(source string) ([]string, error) {
	data, err := os.ReadFile(s.Path(source))
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	} else if err != nil {
		return nil, err
	}

	ids := []string{}
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("corrupt state file %s: %w", s.Path(source), err)
	}
	return ids, nil
}

// write replaces the state file through a temporary file and rename.
func (s *KnownListingService) write(source string, ids []string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, source+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.Path(source))
}

func validSource(source string) error {
	if source == "" {
		return flatfinder.Errorf(flatfinder.EINVALID, "source required")
	}
	if strings.ContainsAny(source, `/\`) || source == "." || source == ".." {
		return flatfinder.Errorf(flatfinder.EINVALID, "invalid source name %q", source)
	}
	return nil
}
