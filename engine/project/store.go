package project

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/Carmen-Shannon/oxy-pointcloud/common"
	"github.com/google/uuid"
)

// DefaultThumbnailSize is the longest edge of a stored thumbnail in pixels.
const DefaultThumbnailSize = 256

// thumbnailQuality matches the 0.7 compression factor scans were saved with.
const thumbnailQuality = 70

// Store keeps scan projects under a root directory, one folder per project named by
// its id:
//
//	<root>/<uuid>/meta.json
//	<root>/<uuid>/data.skin
//	<root>/<uuid>/thumb.jpg
type Store struct {
	root        string
	logger      common.Logger
	thumbSize   int
	thumbRotate bool
}

// StoreOption is a functional option used to configure a Store during construction.
type StoreOption func(*Store)

// WithLogger sets the logger; nil disables logging.
func WithLogger(l common.Logger) StoreOption {
	return func(s *Store) {
		s.logger = common.LoggerOrNop(l)
	}
}

// WithThumbnailSize sets the longest thumbnail edge in pixels.
func WithThumbnailSize(px int) StoreOption {
	return func(s *Store) {
		if px > 0 {
			s.thumbSize = px
		}
	}
}

// WithThumbnailRotation turns camera frames a quarter turn clockwise before they
// are stored, so landscape sensor images show upright in a portrait listing.
func WithThumbnailRotation(rotate bool) StoreOption {
	return func(s *Store) {
		s.thumbRotate = rotate
	}
}

// NewStore creates a Store rooted at dir, creating dir if needed.
//
// Parameters:
//   - dir: the directory holding every project folder
//   - options: functional options applied in order
//
// Returns:
//   - *Store: the store
//   - error: an error if dir cannot be created
func NewStore(dir string, options ...StoreOption) (*Store, error) {
	s := &Store{
		root:      dir,
		logger:    common.NewNopLogger(),
		thumbSize: DefaultThumbnailSize,
	}
	for _, option := range options {
		option(s)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create project root: %w", err)
	}
	return s, nil
}

// Root returns the directory the store writes to.
func (s *Store) Root() string {
	return s.root
}

// Dir returns the folder of a project.
func (s *Store) Dir(id uuid.UUID) string {
	return filepath.Join(s.root, id.String())
}

// Save writes the project's spatial data, when it has any in memory, and then its
// metadata. A project read by Load that had only some spatial parts replaced is
// merged with its saved data.skin first, so the parts left untouched survive.
//
// Parameters:
//   - p: the project
//
// Returns:
//   - error: an error if data.skin cannot be read for the merge or a file cannot be written
func (s *Store) Save(p *Project) error {
	p.mu.RLock()
	loaded, dirty := p.loaded, p.dirty
	p.mu.RUnlock()
	if !loaded && dirty != 0 {
		if err := s.LoadSpatial(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("merge %s: %w", DataName, err)
		}
		p.mu.Lock()
		p.loaded = true
		p.mu.Unlock()
	}

	p.mu.RLock()
	m := p.meta
	spatial := p.spatial
	loaded, dirty = p.loaded, p.dirty
	p.mu.RUnlock()

	dir := s.Dir(m.UUID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create project folder: %w", err)
	}

	if loaded {
		if err := writeFileAtomic(filepath.Join(dir, DataName), func(w io.Writer) error {
			zw := gzip.NewWriter(w)
			if err := json.NewEncoder(zw).Encode(&spatial); err != nil {
				return err
			}
			return zw.Close()
		}); err != nil {
			return err
		}
	}

	metaBytes, err := json.Marshal(&m)
	if err != nil {
		return fmt.Errorf("encode %s: %w", MetaName, err)
	}
	if err := writeFileAtomic(filepath.Join(dir, MetaName), func(w io.Writer) error {
		_, err := w.Write(metaBytes)
		return err
	}); err != nil {
		return err
	}

	p.mu.Lock()
	p.dirty &^= dirty
	p.mu.Unlock()
	if !loaded {
		s.logger.Debugf("saved metadata of %s", m.UUID)
		return nil
	}
	s.logger.Debugf("saved %s with %d points", m.UUID, len(spatial.PointCloud))
	return nil
}

// Touch marks the project modified and saves it.
func (s *Store) Touch(p *Project) error {
	p.Touch()
	return s.Save(p)
}

// Load reads a project's metadata. The spatial data stays on disk until LoadSpatial.
//
// Parameters:
//   - id: the project id
//
// Returns:
//   - *Project: the project
//   - error: a wrapped os.ErrNotExist if the project has no meta.json, or ErrInvalidProject
func (s *Store) Load(id uuid.UUID) (*Project, error) {
	p, err := s.loadMeta(s.Dir(id))
	if err != nil {
		return nil, err
	}
	if p.meta.UUID != id {
		return nil, fmt.Errorf("%w: folder %s holds %s", ErrInvalidProject, id, p.meta.UUID)
	}
	return p, nil
}

func (s *Store) loadMeta(dir string) (*Project, error) {
	raw, err := os.ReadFile(filepath.Join(dir, MetaName))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", MetaName, err)
	}
	p := New()
	p.loaded = false
	p.meta = meta{}
	if err := json.Unmarshal(raw, &p.meta); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidProject, MetaName, err)
	}
	if p.meta.UUID == uuid.Nil {
		return nil, fmt.Errorf("%w: %s has no uuid", ErrInvalidProject, MetaName)
	}
	return p, nil
}

// LoadSpatial reads the point cloud and matrices of a project loaded with Load.
// Parts replaced in memory since the project was loaded are kept.
//
// Returns:
//   - error: a wrapped os.ErrNotExist if nothing was saved, or ErrInvalidProject
func (s *Store) LoadSpatial(p *Project) error {
	path := filepath.Join(s.Dir(p.ID()), DataName)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", DataName, err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidProject, DataName, err)
	}
	defer zr.Close()

	var spatial spatialData
	if err := json.NewDecoder(zr).Decode(&spatial); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidProject, DataName, err)
	}

	p.mu.Lock()
	p.spatial = spatial.merge(p.spatial, p.dirty)
	p.loaded = true
	p.mu.Unlock()
	return nil
}

// Open loads a project with its spatial data. A project saved before any spatial
// data existed opens with an empty point cloud.
func (s *Store) Open(id uuid.UUID) (*Project, error) {
	p, err := s.Load(id)
	if err != nil {
		return nil, err
	}
	if err := s.LoadSpatial(p); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		p.loaded = true
	}
	return p, nil
}

// List loads the metadata of every project under the root, newest first. Folders
// without a meta.json are skipped; unreadable ones are logged and skipped.
//
// Returns:
//   - []*Project: the projects sorted by creation time, descending
//   - error: an error if the root cannot be read
func (s *Store) List() ([]*Project, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	projects := make([]*Project, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		p, err := s.loadMeta(filepath.Join(s.root, e.Name()))
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				s.logger.Warnf("skipping project folder %s: %v", e.Name(), err)
			}
			continue
		}
		projects = append(projects, p)
	}
	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].meta.CreationDate.After(projects[j].meta.CreationDate)
	})
	return projects, nil
}

// Delete removes a project folder and everything in it.
//
// Returns:
//   - error: a wrapped os.ErrNotExist if there is no such project
func (s *Store) Delete(id uuid.UUID) error {
	dir := s.Dir(id)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	s.logger.Infof("deleted project %s", id)
	return nil
}

// writeFileAtomic writes through a temporary file in the same folder and renames it
// into place, so a reader never sees a half-written file.
func writeFileAtomic(path string, fill func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	defer os.Remove(tmp.Name())

	if err := fill(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
