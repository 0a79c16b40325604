package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".webp"}

// DirSource replays image files from a directory in name order, wrapping
// around at the end. Useful for kiosks fed by an external frame grabber
// and for demos without a camera.
type DirSource struct {
	dir     string
	maxSize int

	mu   sync.Mutex
	next int
}

// NewDirSource creates a source reading frames from dir.
func NewDirSource(dir string, maxSize int) *DirSource {
	return &DirSource{dir: dir, maxSize: maxSize}
}

func (s *DirSource) listImages() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read frame directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(e.Name()))) {
			files = append(files, e.Name())
		}
	}
	slices.Sort(files)
	return files, nil
}

// Snapshot returns the next frame. The directory is re-listed on every call
// so frames dropped in by another process are picked up.
func (s *DirSource) Snapshot(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	files, err := s.listImages()
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrNoFrame, err)
	}
	if len(files) == 0 {
		return Frame{}, ErrNoFrame
	}

	s.mu.Lock()
	name := files[s.next%len(files)]
	s.next = (s.next + 1) % len(files)
	s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrNoFrame, err)
	}

	frame, err := NormalizeFrame(data, s.maxSize)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %s: %w", ErrNoFrame, name, err)
	}
	return frame, nil
}
