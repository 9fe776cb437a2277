package repo

import (
	"context"
	"path/filepath"

	"github.com/jmhodges/clock"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-discord-bot/internal/config"
)

// Backend kinds reported by Backend.Kind.
const (
	KindFile = "file"
	KindSQL  = "sql"
)

// Backend bundles the stores of the backend selected at startup.
type Backend struct {
	Kind      string
	Reminders ReminderStore
	Gifs      GifStore

	close func() error
}

// Close releases the database pool, if any.
func (b *Backend) Close() error {
	if b == nil || b.close == nil {
		return nil
	}
	return b.close()
}

// Open builds the persistence backend once: a configured database URL selects
// the SQL stores, otherwise JSON documents under cfg.DataDir are used. There
// is no switching afterwards.
func Open(ctx context.Context, cfg config.StorageConfig, clk clock.Clock, logger zerolog.Logger) (*Backend, error) {
	if clk == nil {
		clk = clock.New()
	}
	if !cfg.UseDatabase() {
		logger.Info().Str("backend", KindFile).Str("data_dir", cfg.DataDir).Msg("storage selected")
		return &Backend{
			Kind:      KindFile,
			Reminders: NewFileStore(filepath.Join(cfg.DataDir, RemindersFile), clk, logger),
			Gifs:      NewFileGifStore(filepath.Join(cfg.DataDir, GifsFile), logger),
		}, nil
	}

	db, err := OpenDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	b := &Backend{
		Kind:      KindSQL,
		Reminders: NewSQLStore(db, clk),
		Gifs:      NewSQLGifStore(db, clk),
		close: func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	}
	logger.Info().Str("backend", KindSQL).Str("url", redactURL(cfg.DatabaseURL)).Bool("ssl", cfg.DatabaseSSL).Msg("storage selected")

	// Not fatal: calls report ErrUnavailable until the database answers.
	if err := b.Reminders.Ping(ctx); err != nil {
		logger.Warn().Err(err).Msg("database not reachable at startup")
	}
	return b, nil
}
