package sampler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// DirectorySource cycles through the image files of a directory, standing in
// for a live video feed during simulated drives.
type DirectorySource struct {
	mu    sync.Mutex
	files []string
	next  int
}

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// NewDirectorySource lists the image files under dir once, in name order.
func NewDirectorySource(dir string) (*DirectorySource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no image files in %s", dir)
	}
	sort.Strings(files)

	return &DirectorySource{files: files}, nil
}

// CaptureFrame returns the next frame in the cycle. An unreadable file is a
// skipped tick, not a fatal error.
func (s *DirectorySource) CaptureFrame() ([]byte, error) {
	s.mu.Lock()
	path := s.files[s.next]
	s.next = (s.next + 1) % len(s.files)
	s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("frame not readable: %w", err)
	}
	return data, nil
}

// StaticSource serves one fixed frame on every capture. Useful for tests and
// smoke runs with no video material at hand.
type StaticSource struct {
	Frame []byte
}

// CaptureFrame returns the fixed frame, or an error while no frame is loaded.
func (s *StaticSource) CaptureFrame() ([]byte, error) {
	if len(s.Frame) == 0 {
		return nil, fmt.Errorf("no frame loaded")
	}
	return s.Frame, nil
}
