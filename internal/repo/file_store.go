// Package repo – FileStore
//
// FileStore keeps reminders in memory and mirrors them to a single JSON
// document ({"seq": n, "items": [...]}) that is rewritten in full on every
// mutation. The document is loaded lazily on first access. Writes go through
// a temp file in the same directory followed by a rename, so a crash never
// leaves a half-written document behind.
//
// Older documents (a bare array, or items with missing, non-numeric or
// duplicated ids) are repaired on load by reassigning ids from the running
// sequence. The store is safe for concurrent use within one process; it must
// not be shared by several processes.
package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/jmhodges/clock"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-discord-bot/internal/domain"
)

// RemindersFile is the document name used inside the data directory.
const RemindersFile = "reminders.json"

// FileStore is the JSON document implementation of ReminderStore.
type FileStore struct {
	path string
	clk  clock.Clock
	log  zerolog.Logger

	mu     sync.Mutex
	loaded bool
	seq    int64
	items  []domain.Reminder
}

// fileDocument is the on-disk shape of the reminders document.
type fileDocument struct {
	Seq   int64             `json:"seq"`
	Items []domain.Reminder `json:"items"`
}

// NewFileStore returns a store persisted at path. Nothing is read until the
// first call.
func NewFileStore(path string, clk clock.Clock, logger zerolog.Logger) *FileStore {
	if clk == nil {
		clk = clock.New()
	}
	return &FileStore{
		path: path,
		clk:  clk,
		log:  logger.With().Str("component", "reminder_file_store").Str("path", path).Logger(),
	}
}

// Insert implements ReminderStore.
func (s *FileStore) Insert(_ context.Context, r *domain.Reminder) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	now := s.clk.Now().UnixMilli()
	rec := *r
	s.seq++
	rec.ID = s.seq
	if rec.CreatedAt == 0 {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt == 0 {
		rec.UpdatedAt = now
	}
	s.items = append(s.items, rec)
	s.save()

	*r = rec
	s.log.Debug().Int64("id", rec.ID).Str("user_id", rec.UserID).Int64("timestamp", rec.Timestamp).Str("recur", string(rec.Recur)).Msg("reminder added")
	return rec.ID, nil
}

// Get implements ReminderStore.
func (s *FileStore) Get(_ context.Context, id int64, userID string) (*domain.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	i := s.indexOf(id, userID)
	if i < 0 {
		return nil, ErrNotFound
	}
	r := s.items[i]
	return &r, nil
}

// FindPaged implements ReminderStore.
func (s *FileStore) FindPaged(_ context.Context, userID string, page, pageSize int) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	var mine []domain.Reminder
	for _, r := range s.items {
		if r.UserID == userID {
			mine = append(mine, r)
		}
	}
	sortByDue(mine)

	start, end := pageBounds(page, pageSize, len(mine))
	items := make([]domain.Reminder, end-start)
	copy(items, mine[start:end])
	return Page{Total: int64(len(mine)), Items: items}, nil
}

// Delete implements ReminderStore.
func (s *FileStore) Delete(_ context.Context, id int64, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	i := s.indexOf(id, userID)
	if i < 0 {
		return false, nil
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.save()
	return true, nil
}

// SetPaused implements ReminderStore.
func (s *FileStore) SetPaused(_ context.Context, id int64, userID string, paused bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	i := s.indexOf(id, userID)
	if i < 0 {
		return false, nil
	}
	s.items[i].Paused = paused
	s.items[i].UpdatedAt = s.clk.Now().UnixMilli()
	s.save()
	return true, nil
}

// Update implements ReminderStore.
func (s *FileStore) Update(_ context.Context, id int64, userID string, patch domain.ReminderPatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	i := s.indexOf(id, userID)
	if i < 0 {
		return false, nil
	}
	patch.Apply(&s.items[i])
	s.items[i].UpdatedAt = s.clk.Now().UnixMilli()
	s.save()
	return true, nil
}

// FindDue implements ReminderStore.
func (s *FileStore) FindDue(_ context.Context, now int64) ([]domain.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	due := []domain.Reminder{}
	for _, r := range s.items {
		if r.Timestamp <= now && !r.Paused {
			due = append(due, r)
		}
	}
	sortByDue(due)
	return due, nil
}

// Ping implements ReminderStore. The document directory must exist.
func (s *FileStore) Ping(_ context.Context) error {
	_, err := os.Stat(filepath.Dir(s.path))
	return err
}

func (s *FileStore) indexOf(id int64, userID string) int {
	for i := range s.items {
		if s.items[i].ID == id && s.items[i].UserID == userID {
			return i
		}
	}
	return -1
}

// ensureLoaded reads and migrates the document once. Callers hold s.mu.
func (s *FileStore) ensureLoaded() {
	if s.loaded {
		return
	}
	s.loaded = true
	s.seq, s.items = 0, []domain.Reminder{}

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
		s.log.Error().Err(err).Msg("read reminders document; starting empty")
		return
	}

	seq, items, err := migrateReminders(raw)
	if err != nil {
		s.log.Error().Err(err).Msg("corrupt reminders document; starting empty")
		return
	}
	s.seq, s.items = seq, items
	s.log.Info().Int64("seq", s.seq).Int("items", len(s.items)).Msg("reminders loaded")
}

// save rewrites the whole document atomically. Failures are logged and the
// in-memory state is kept. Callers hold s.mu.
func (s *FileStore) save() {
	doc := fileDocument{Seq: s.seq, Items: s.items}
	if doc.Items == nil {
		doc.Items = []domain.Reminder{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		s.log.Error().Err(err).Msg("encode reminders document")
		return
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		s.log.Error().Err(err).Msg("save reminders document")
		return
	}
	s.log.Debug().Int64("seq", s.seq).Int("items", len(s.items)).Msg("reminders saved")
}

// legacyReminder accepts any JSON value for id so older documents can be
// repaired instead of rejected.
type legacyReminder struct {
	domain.Reminder
	ID any `json:"id"`
}

// migrateReminders decodes a current or legacy document. Accepted shapes are
// {"seq": n, "items": [...]} and a bare array of reminders. The returned seq
// is at least the largest valid id; items whose id is missing, non-numeric,
// non-positive or already taken get the next sequence value.
func migrateReminders(raw []byte) (int64, []domain.Reminder, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0, []domain.Reminder{}, nil
	}

	var (
		seq   int64
		items []legacyReminder
	)
	switch trimmed[0] {
	case '[':
		if err := decodeNumbers(trimmed, &items); err != nil {
			return 0, nil, err
		}
	case '{':
		var doc struct {
			Seq   any              `json:"seq"`
			Items []legacyReminder `json:"items"`
		}
		if err := decodeNumbers(trimmed, &doc); err != nil {
			return 0, nil, err
		}
		if doc.Items == nil {
			return 0, nil, errors.New("document has no items array")
		}
		if n, ok := legacyID(doc.Seq); ok {
			seq = n
		}
		items = doc.Items
	default:
		return 0, nil, fmt.Errorf("unexpected document start %q", trimmed[0])
	}

	for _, it := range items {
		if n, ok := legacyID(it.ID); ok && n > seq {
			seq = n
		}
	}

	out := make([]domain.Reminder, 0, len(items))
	seen := make(map[int64]bool, len(items))
	for _, it := range items {
		r := it.Reminder
		n, ok := legacyID(it.ID)
		if !ok || seen[n] {
			seq++
			n = seq
		}
		seen[n] = true
		r.ID = n
		if r.Recur == "" {
			r.Recur = domain.RecurNone
		}
		out = append(out, r)
	}
	return seq, out, nil
}

func decodeNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// legacyID interprets a decoded id value. Only positive integers (as JSON
// numbers or numeric strings) are valid.
func legacyID(v any) (int64, bool) {
	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = strings.TrimSpace(t)
	default:
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, n > 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || f < 1 || f > math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// sortByDue orders reminders by (timestamp ASC, id ASC).
func sortByDue(rs []domain.Reminder) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Timestamp != rs[j].Timestamp {
			return rs[i].Timestamp < rs[j].Timestamp
		}
		return rs[i].ID < rs[j].ID
	})
}

// writeFileAtomic writes data to a temp file next to path and renames it
// over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return err
	}
	return nil
}
