// Package imagestore keeps decoded input images addressed by opaque keys,
// along with the landmarks detected on them.
package imagestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"  // Register BMP decoder
	_ "golang.org/x/image/tiff" // Register TIFF decoder
	_ "golang.org/x/image/webp" // Register WebP decoder

	"github.com/libppp/ppp/pkg/geometry"
	"github.com/libppp/ppp/pkg/landmark"
	"github.com/libppp/ppp/util/log"
)

// ErrImageNotFound is returned for keys the store does not hold.
var ErrImageNotFound = errors.New("image not found")

// Entry is one stored image.
type Entry struct {
	Key       string
	Source    string
	Image     image.Image
	LandMarks *landmark.LandMarks
	Crop      *geometry.Rect
}

// ImageStore is a thread-safe map of keys to decoded images.
type ImageStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	order   []string

	cachePath string
}

// NewImageStore creates an empty store.
func NewImageStore() *ImageStore {
	return &ImageStore{entries: make(map[string]*Entry)}
}

// SetCacheFile sets where SaveCache and LoadCache keep landmark records.
func (s *ImageStore) SetCacheFile(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cachePath = path
}

// Put stores img under a new key and returns the key.
func (s *ImageStore) Put(img image.Image) string {
	return s.put(img, "")
}

func (s *ImageStore) put(img image.Image, source string) string {
	key := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &Entry{Key: key, Source: source, Image: img}
	s.order = append(s.order, key)
	return key
}

// Load decodes the file at path, honouring EXIF orientation, and stores it.
func (s *ImageStore) Load(path string) (string, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}
	key := s.put(img, path)
	log.Debugf("Loaded %s as %s (%dx%d)", filepath.Base(path), key, img.Bounds().Dx(), img.Bounds().Dy())
	return key, nil
}

// Image returns the decoded image for key.
func (s *ImageStore) Image(key string) (image.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrImageNotFound, key)
	}
	return e.Image, nil
}

// Source returns the file an image was loaded from, if any.
func (s *ImageStore) Source(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return "", false
	}
	return e.Source, e.Source != ""
}

// SetLandMarks records the landmarks detected on key. A copy is kept.
func (s *ImageStore) SetLandMarks(key string, lm *landmark.LandMarks) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrImageNotFound, key)
	}
	e.LandMarks = lm.Clone()
	return nil
}

// LandMarks returns a copy of the landmarks recorded for key.
func (s *ImageStore) LandMarks(key string) (*landmark.LandMarks, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || e.LandMarks == nil {
		return nil, false
	}
	return e.LandMarks.Clone(), true
}

// SetCrop records the photo frame chosen for key.
func (s *ImageStore) SetCrop(key string, crop geometry.Rect) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrImageNotFound, key)
	}
	e.Crop = &crop
	return nil
}

// Crop returns the photo frame recorded for key.
func (s *ImageStore) Crop(key string) (geometry.Rect, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || e.Crop == nil {
		return geometry.Rect{}, false
	}
	return *e.Crop, true
}

// KeyForSource returns the key of the most recent image loaded from path.
func (s *ImageStore) KeyForSource(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.order) - 1; i >= 0; i-- {
		if e := s.entries[s.order[i]]; e.Source == path {
			return e.Key, true
		}
	}
	return "", false
}

// Remove drops key from the store.
func (s *ImageStore) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return false
	}
	delete(s.entries, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns the stored keys in insertion order.
func (s *ImageStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, len(s.order))
	copy(keys, s.order)
	return keys
}

// Count returns the number of stored images.
func (s *ImageStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear removes every image.
func (s *ImageStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*Entry)
	s.order = nil
}

// record is the persisted form of an entry. Pixels are not cached.
type record struct {
	Source    string              `json:"source"`
	LandMarks *landmark.LandMarks `json:"landmarks,omitempty"`
	Crop      *geometry.Rect      `json:"crop,omitempty"`
}

// SaveCache writes the landmarks of file-backed images to the cache file.
func (s *ImageStore) SaveCache() error {
	s.mu.RLock()
	path := s.cachePath
	records := make([]record, 0, len(s.order))
	for _, key := range s.order {
		e := s.entries[key]
		if e.Source == "" || e.LandMarks == nil {
			continue
		}
		r := record{Source: e.Source, LandMarks: e.LandMarks.Clone()}
		if e.Crop != nil {
			crop := *e.Crop
			r.Crop = &crop
		}
		records = append(records, r)
	}
	s.mu.RUnlock()

	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadCache re-opens every cached source and restores its landmarks and crop. Sources
// that no longer decode are skipped with a log line.
func (s *ImageStore) LoadCache() ([]string, error) {
	s.mu.RLock()
	path := s.cachePath
	s.mu.RUnlock()
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse cache %s: %w", path, err)
	}

	keys := make([]string, 0, len(records))
	for _, r := range records {
		key, err := s.Load(r.Source)
		if err != nil {
			log.Printf("Skipping cached image %s: %v", r.Source, err)
			continue
		}
		if r.LandMarks != nil {
			_ = s.SetLandMarks(key, r.LandMarks)
		}
		if r.Crop != nil {
			_ = s.SetCrop(key, *r.Crop)
		}
		keys = append(keys, key)
	}
	return keys, nil
}
