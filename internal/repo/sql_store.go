// Package repo – SQLStore
//
// SQLStore implements ReminderStore over GORM. It works against Postgres and
// SQLite alike; the "timestamp" column is always referenced through clause
// builders so it is quoted for the active dialect. The schema is created on
// first use. Every database failure is wrapped in ErrUnavailable.
package repo

import (
	"context"
	"errors"

	"github.com/jmhodges/clock"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-discord-bot/internal/domain"
)

// SQLStore is the GORM implementation of ReminderStore.
type SQLStore struct {
	db     *gorm.DB
	clk    clock.Clock
	schema *schemaGate
}

// NewSQLStore returns a reminder store on db. The reminders table is created
// lazily by the first call.
func NewSQLStore(db *gorm.DB, clk clock.Clock) *SQLStore {
	if clk == nil {
		clk = clock.New()
	}
	return &SQLStore{db: db, clk: clk, schema: newSchemaGate(db, &domain.Reminder{})}
}

var (
	colTimestamp = clause.Column{Name: "timestamp"}
	dueOrder     = clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: colTimestamp},
		{Column: clause.Column{Name: "id"}},
	}}
)

func (s *SQLStore) conn(ctx context.Context) (*gorm.DB, error) {
	if err := s.schema.ensure(ctx); err != nil {
		return nil, err
	}
	return s.db.WithContext(ctx), nil
}

// Insert implements ReminderStore.
func (s *SQLStore) Insert(ctx context.Context, r *domain.Reminder) (int64, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	now := s.clk.Now().UnixMilli()
	rec := *r
	rec.ID = 0
	if rec.CreatedAt == 0 {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt == 0 {
		rec.UpdatedAt = now
	}
	if err := db.Create(&rec).Error; err != nil {
		return 0, unavailable("insert reminder", err)
	}
	*r = rec
	return rec.ID, nil
}

// Get implements ReminderStore.
func (s *SQLStore) Get(ctx context.Context, id int64, userID string) (*domain.Reminder, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var r domain.Reminder
	err = db.Where("id = ? AND user_id = ?", id, userID).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get reminder", err)
	}
	return &r, nil
}

// FindPaged implements ReminderStore.
func (s *SQLStore) FindPaged(ctx context.Context, userID string, page, pageSize int) (Page, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return Page{}, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}

	var total int64
	if err := db.Model(&domain.Reminder{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return Page{}, unavailable("count reminders", err)
	}

	items := []domain.Reminder{}
	if pageInRange(page, pageSize, total) {
		err := db.Where("user_id = ?", userID).
			Order(dueOrder).
			Offset((page - 1) * pageSize).
			Limit(pageSize).
			Find(&items).Error
		if err != nil {
			return Page{}, unavailable("list reminders", err)
		}
	}
	if items == nil {
		items = []domain.Reminder{}
	}
	return Page{Total: total, Items: items}, nil
}

// Delete implements ReminderStore.
func (s *SQLStore) Delete(ctx context.Context, id int64, userID string) (bool, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return false, err
	}
	res := db.Where("id = ? AND user_id = ?", id, userID).Delete(&domain.Reminder{})
	if res.Error != nil {
		return false, unavailable("delete reminder", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// SetPaused implements ReminderStore.
func (s *SQLStore) SetPaused(ctx context.Context, id int64, userID string, paused bool) (bool, error) {
	return s.updateColumns(ctx, "set paused", id, userID, map[string]any{"paused": paused})
}

// Update implements ReminderStore.
func (s *SQLStore) Update(ctx context.Context, id int64, userID string, patch domain.ReminderPatch) (bool, error) {
	cols := map[string]any{}
	if patch.Text != nil {
		cols["text"] = *patch.Text
	}
	if patch.Timestamp != nil {
		cols["timestamp"] = *patch.Timestamp
	}
	if patch.Recur != nil {
		cols["recur"] = string(*patch.Recur)
	}
	return s.updateColumns(ctx, "update reminder", id, userID, cols)
}

// updateColumns writes cols plus updated_at on the reminder matching
// (id, userID). An unchanged value still counts as a match.
func (s *SQLStore) updateColumns(ctx context.Context, op string, id int64, userID string, cols map[string]any) (bool, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return false, err
	}
	cols["updated_at"] = s.clk.Now().UnixMilli()
	res := db.Model(&domain.Reminder{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(cols)
	if res.Error != nil {
		return false, unavailable(op, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// FindDue implements ReminderStore.
func (s *SQLStore) FindDue(ctx context.Context, now int64) ([]domain.Reminder, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	due := []domain.Reminder{}
	err = db.Where(clause.Lte{Column: colTimestamp, Value: now}).
		Where("paused = ?", false).
		Order(dueOrder).
		Find(&due).Error
	if err != nil {
		return nil, unavailable("find due reminders", err)
	}
	return due, nil
}

// Ping implements ReminderStore.
func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return unavailable("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}
