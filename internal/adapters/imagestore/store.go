// Package imagestore persists true-color captures as an append-only
// directory of numbered PNG files.
package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/enviro-meter/firewatch/internal/core/domain"
)

const (
	filePrefix = "true-color-"
	fileExt    = ".png"
)

var namePattern = regexp.MustCompile(`^true-color-([0-9]+)\.png$`)

// Store writes captures into a flat directory named true-color-<n>.png,
// where n is always one past the highest number present. Files are never
// renamed or deleted, so the numbering doubles as fetch order. A mutex
// serializes the scan-and-create step and O_EXCL catches names taken by
// anything outside this process.
type Store struct {
	dir        string
	publicPath string
	mu         sync.Mutex
}

// New creates a Store over dir. publicPath is the URL prefix under which
// the files are served.
func New(dir, publicPath string) *Store {
	return &Store{dir: dir, publicPath: strings.TrimSuffix(publicPath, "/")}
}

// Dir returns the backing directory.
func (s *Store) Dir() string { return s.dir }

// Save persists one capture and returns its metadata. The write is
// all-or-nothing: a failed write removes the partial file and existing
// captures are untouched.
func (s *Store) Save(ctx context.Context, data []byte) (*domain.StoredImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, &domain.PersistenceError{Op: "create image directory", Path: s.dir, Err: err}
	}

	next, err := s.nextSequence()
	if err != nil {
		return nil, err
	}

	for {
		name := fmt.Sprintf("%s%d%s", filePrefix, next, fileExt)
		path := filepath.Join(s.dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			// An external writer took the name between scan and create.
			next++
			continue
		}
		if err != nil {
			return nil, &domain.PersistenceError{Op: "create image file", Path: path, Err: err}
		}

		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(path)
			return nil, &domain.PersistenceError{Op: "write image file", Path: path, Err: err}
		}
		if err := f.Close(); err != nil {
			os.Remove(path)
			return nil, &domain.PersistenceError{Op: "close image file", Path: path, Err: err}
		}

		return &domain.StoredImage{
			Filename:  name,
			Sequence:  next,
			URL:       s.publicPath + "/" + name,
			SizeBytes: int64(len(data)),
			CreatedAt: time.Now().UTC(),
		}, nil
	}
}

// List returns all stored captures, newest first. A directory that does not
// exist yet is simply empty.
func (s *Store) List(ctx context.Context) ([]domain.StoredImage, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "scan image directory", Path: s.dir, Err: err}
	}

	var images []domain.StoredImage
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		seq, ok := parseSequence(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		images = append(images, domain.StoredImage{
			Filename:  entry.Name(),
			Sequence:  seq,
			URL:       s.publicPath + "/" + entry.Name(),
			SizeBytes: info.Size(),
			CreatedAt: info.ModTime().UTC(),
		})
	}

	sort.Slice(images, func(i, j int) bool { return images[i].Sequence > images[j].Sequence })
	return images, nil
}

// Latest returns the capture with the highest sequence number, or
// domain.ErrNoCachedImages when the directory holds none.
func (s *Store) Latest(ctx context.Context) (*domain.StoredImage, error) {
	images, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, domain.ErrNoCachedImages
	}
	return &images[0], nil
}

// Check probes that the backing directory exists and is writable. Used by
// the readiness endpoint.
func (s *Store) Check(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create image directory: %w", err)
	}
	probe := filepath.Join(s.dir, ".writecheck")
	f, err := os.OpenFile(probe, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("image directory not writable: %w", err)
	}
	f.Close()
	os.Remove(probe)
	return nil
}

func (s *Store) nextSequence() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, &domain.PersistenceError{Op: "scan image directory", Path: s.dir, Err: err}
	}

	// max+1, never gap-filling: gaps left by external deletion stay gaps so
	// numbering keeps following fetch order.
	maxSeq := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if seq, ok := parseSequence(entry.Name()); ok && seq > maxSeq {
			maxSeq = seq
		}
	}
	return maxSeq + 1, nil
}

func parseSequence(name string) (int, bool) {
	m := namePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	seq, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return seq, true
}
