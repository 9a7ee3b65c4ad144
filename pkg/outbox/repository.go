package outbox

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrRecordNotFound — запись outbox не найдена.
var ErrRecordNotFound = errors.New("запись outbox не найдена")

// Repository — хранилище outbox.
type Repository interface {
	// Append пишет записи в переданной транзакции (tx обязателен: событие
	// должно закоммититься вместе с переходом).
	Append(ctx context.Context, tx *gorm.DB, records ...*Record) error
	// Pending возвращает неотправленные записи, сначала с меньшим числом попыток.
	Pending(ctx context.Context, limit int) ([]*Record, error)
	MarkProcessed(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, err error) error
	// MarkDead выводит запись из очереди после исчерпания попыток.
	MarkDead(ctx context.Context, id string) error
	// PurgeProcessedBefore удаляет отправленные записи пачкой до 1000.
	PurgeProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	// Backlog — число ещё не отправленных записей.
	Backlog(ctx context.Context) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository создаёт GORM репозиторий outbox.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Append(ctx context.Context, tx *gorm.DB, records ...*Record) error {
	if len(records) == 0 {
		return nil
	}
	if tx == nil {
		tx = r.db
	}
	models := make([]*Model, len(records))
	for i, rec := range records {
		models[i] = modelFromRecord(rec)
	}
	return tx.WithContext(ctx).Create(&models).Error
}

func (r *repository) Pending(ctx context.Context, limit int) ([]*Record, error) {
	var models []Model
	if err := r.db.WithContext(ctx).
		Where("processed_at IS NULL").
		Order("retry_count ASC, created_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}

	out := make([]*Record, len(models))
	for i := range models {
		out[i] = models[i].toRecord()
	}
	return out, nil
}

func (r *repository) MarkProcessed(ctx context.Context, id string) error {
	return r.update(ctx, id, map[string]any{"processed_at": time.Now().UTC()})
}

func (r *repository) MarkFailed(ctx context.Context, id string, cause error) error {
	return r.update(ctx, id, map[string]any{
		"retry_count": gorm.Expr("retry_count + 1"),
		"last_error":  cause.Error(),
	})
}

func (r *repository) MarkDead(ctx context.Context, id string) error {
	return r.update(ctx, id, map[string]any{
		"processed_at":  time.Now().UTC(),
		"dead_lettered": true,
	})
}

func (r *repository) Backlog(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Model{}).Where("processed_at IS NULL").Count(&n).Error
	return n, err
}

func (r *repository) update(ctx context.Context, id string, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&Model{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *repository) PurgeProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	// Подзапрос вместо DELETE ... LIMIT: PostgreSQL не поддерживает LIMIT в DELETE.
	ids := r.db.Model(&Model{}).
		Where("processed_at IS NOT NULL AND processed_at < ? AND dead_lettered = ?", before, false).
		Limit(1000)

	var batch []string
	if err := ids.WithContext(ctx).Pluck("id", &batch).Error; err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Where("id IN ?", batch).Delete(&Model{})
	return res.RowsAffected, res.Error
}
