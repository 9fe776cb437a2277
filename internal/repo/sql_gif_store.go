package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/jmhodges/clock"
	"gorm.io/gorm"

	"github.com/tbourn/go-discord-bot/internal/domain"
)

// SQLGifStore is the GORM implementation of GifStore backed by raaah_gifs.
type SQLGifStore struct {
	db     *gorm.DB
	clk    clock.Clock
	schema *schemaGate
}

// NewSQLGifStore returns a gif store on db. The table is created lazily.
func NewSQLGifStore(db *gorm.DB, clk clock.Clock) *SQLGifStore {
	if clk == nil {
		clk = clock.New()
	}
	return &SQLGifStore{db: db, clk: clk, schema: newSchemaGate(db, &domain.Gif{})}
}

// Add implements GifStore. Duplicates are detected by the unique index on url.
func (s *SQLGifStore) Add(ctx context.Context, url string) (bool, int, error) {
	if err := s.schema.ensure(ctx); err != nil {
		return false, 0, err
	}
	g := domain.Gif{URL: strings.TrimSpace(url), CreatedAt: s.clk.Now().UnixMilli()}
	added := true
	if err := s.db.WithContext(ctx).Create(&g).Error; err != nil {
		if !isUniqueViolation(err) {
			return false, 0, unavailable("add gif", err)
		}
		added = false
	}
	total, err := s.Count(ctx)
	if err != nil {
		return false, 0, err
	}
	return added, total, nil
}

// Random implements GifStore.
func (s *SQLGifStore) Random(ctx context.Context) (string, bool, error) {
	if err := s.schema.ensure(ctx); err != nil {
		return "", false, err
	}
	var g domain.Gif
	err := s.db.WithContext(ctx).Order("RANDOM()").Limit(1).Take(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("random gif", err)
	}
	return g.URL, true, nil
}

// Count implements GifStore.
func (s *SQLGifStore) Count(ctx context.Context) (int, error) {
	if err := s.schema.ensure(ctx); err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&domain.Gif{}).Count(&n).Error; err != nil {
		return 0, unavailable("count gifs", err)
	}
	return int(n), nil
}
