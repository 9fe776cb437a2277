package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// GifsFile is the gif document name used inside the data directory.
const GifsFile = "raaah.json"

// FileGifStore keeps the gif pool in a JSON document ({"items": [...]}).
// A bare array of strings is accepted on load; blank and non-string entries
// are dropped.
type FileGifStore struct {
	path string
	log  zerolog.Logger

	mu     sync.Mutex
	loaded bool
	items  []string
}

// NewFileGifStore returns a gif store persisted at path.
func NewFileGifStore(path string, logger zerolog.Logger) *FileGifStore {
	return &FileGifStore{
		path: path,
		log:  logger.With().Str("component", "gif_file_store").Str("path", path).Logger(),
	}
}

// Add implements GifStore.
func (s *FileGifStore) Add(_ context.Context, url string) (bool, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	clean := strings.TrimSpace(url)
	for _, u := range s.items {
		if u == clean {
			return false, len(s.items), nil
		}
	}
	s.items = append(s.items, clean)
	s.save()
	return true, len(s.items), nil
}

// Random implements GifStore.
func (s *FileGifStore) Random(_ context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	if len(s.items) == 0 {
		return "", false, nil
	}
	return s.items[rand.IntN(len(s.items))], true, nil
}

// Count implements GifStore.
func (s *FileGifStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	return len(s.items), nil
}

func (s *FileGifStore) ensureLoaded() {
	if s.loaded {
		return
	}
	s.loaded = true
	s.items = []string{}

	raw, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
			s.log.Error().Err(err).Msg("create data directory")
			return
		}
		s.save()
		return
	case err != nil:
		s.log.Error().Err(err).Msg("read gif document; starting empty")
		return
	}

	items, err := normalizeGifs(raw)
	if err != nil {
		s.log.Error().Err(err).Msg("corrupt gif document; starting empty")
		return
	}
	s.items = items
	s.log.Info().Int("items", len(s.items)).Msg("gifs loaded")
}

func (s *FileGifStore) save() {
	data, err := json.MarshalIndent(struct {
		Items []string `json:"items"`
	}{s.items}, "", "  ")
	if err != nil {
		s.log.Error().Err(err).Msg("encode gif document")
		return
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		s.log.Error().Err(err).Msg("save gif document")
	}
}

// normalizeGifs decodes {"items": [...]} or a bare array, keeping trimmed
// non-empty strings only.
func normalizeGifs(raw []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return []string{}, nil
	}
	var entries []any
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, err
		}
	} else {
		var doc struct {
			Items []any `json:"items"`
		}
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, err
		}
		if doc.Items == nil {
			return nil, errors.New("document has no items array")
		}
		entries = doc.Items
	}

	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if s, ok := e.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out, nil
}
