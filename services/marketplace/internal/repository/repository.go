// Package repository — хранилище платёжных сущностей маркетплейса (заказы,
// заявки продавцов, рекламные кампании), каталога и профилей на GORM.
//
// Все переходы выполняются условным UPDATE по снимку строки: если строку
// успели изменить, Apply возвращает ErrStale и ничего не пишет, включая
// события outbox.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"example.com/marketplace/pkg/events"
	"example.com/marketplace/pkg/kafka"
	"example.com/marketplace/pkg/logger"
	"example.com/marketplace/pkg/outbox"
	"example.com/marketplace/services/marketplace/internal/domain"
)

// ErrStale — строка изменилась после чтения снимка.
var ErrStale = errors.New("снимок сущности устарел")

// PayableRepository — доступ к платёжным сущностям.
type PayableRepository interface {
	// FindByID возвращает сущность вида kind.
	FindByID(ctx context.Context, kind domain.Kind, id string) (*domain.PayableEntity, error)

	// FindByReference ищет сущность, чья сохранённая ссылка совпадает с одним
	// из кандидатов. Пустой kinds — искать во всех таблицах.
	FindByReference(ctx context.Context, refs []string, kinds ...domain.Kind) (*domain.PayableEntity, error)

	// List возвращает сущности по фильтру, новые первыми.
	List(ctx context.Context, f ListFilter) ([]*domain.PayableEntity, int64, error)

	// Apply применяет переход к снимку атомарно с изменением профиля
	// и записью событий.
	Apply(ctx context.Context, ch *Change) error

	// EmitEvents пишет события без перехода.
	EmitEvents(ctx context.Context, evs ...*events.PayableEvent) error

	// CreateOrder резервирует товар и создаёт заказ в одной транзакции.
	CreateOrder(ctx context.Context, in NewOrder) (*domain.PayableEntity, error)

	// SubmitApplication создаёт заявку продавца или обновляет поданную ранее.
	SubmitApplication(ctx context.Context, in NewApplication) (*domain.PayableEntity, error)

	// CreateAd создаёт рекламную кампанию.
	CreateAd(ctx context.Context, in NewAd) (*domain.PayableEntity, error)
}

// ListFilter — фильтр выборки сущностей одного вида.
type ListFilter struct {
	Kind           domain.Kind
	Status         domain.Status
	PaymentState   domain.PaymentState
	OwnerID        string
	CounterpartyID string
	Offset         int
	Limit          int
}

// payableRepository — GORM реализация PayableRepository.
type payableRepository struct {
	db     *gorm.DB
	outbox outbox.Repository
	now    func() time.Time
}

// NewPayableRepository создаёт репозиторий.
func NewPayableRepository(db *gorm.DB, ob outbox.Repository) PayableRepository {
	return &payableRepository{db: db, outbox: ob, now: func() time.Time { return time.Now().UTC() }}
}

// =============================================================================
// Чтение
// =============================================================================

func (r *payableRepository) FindByID(ctx context.Context, kind domain.Kind, id string) (*domain.PayableEntity, error) {
	return r.find(ctx, r.db, kind, "id = ?", id)
}

func (r *payableRepository) FindByReference(ctx context.Context, refs []string, kinds ...domain.Kind) (*domain.PayableEntity, error) {
	if len(refs) == 0 {
		return nil, domain.ErrEntityNotFound
	}
	if len(kinds) == 0 {
		kinds = domain.Kinds
	}
	for _, kind := range kinds {
		e, err := r.find(ctx, r.db, kind, "payment_reference IN ?", refs)
		if errors.Is(err, domain.ErrEntityNotFound) {
			continue
		}
		return e, err
	}
	return nil, domain.ErrEntityNotFound
}

func (r *payableRepository) find(ctx context.Context, db *gorm.DB, kind domain.Kind, query string, args ...any) (*domain.PayableEntity, error) {
	q := db.WithContext(ctx).Where(query, args...)

	switch kind {
	case domain.KindOrder:
		var m OrderModel
		if err := q.Preload("Items").First(&m).Error; err != nil {
			return nil, notFound(err)
		}
		return m.toDomain(r.roleOf(ctx, db, m.SellerID)), nil

	case domain.KindSellerApplication:
		var m SellerApplicationModel
		if err := q.First(&m).Error; err != nil {
			return nil, notFound(err)
		}
		return m.toDomain(), nil

	case domain.KindAdCampaign:
		var m AdCampaignModel
		if err := q.First(&m).Error; err != nil {
			return nil, notFound(err)
		}
		return m.toDomain(), nil
	}
	return nil, domain.Invalid("kind", "неизвестный вид "+string(kind))
}

// roleOf — текущая роль пользователя. Товары без профиля продавца
// считаются товарами продавца.
func (r *payableRepository) roleOf(ctx context.Context, db *gorm.DB, userID string) domain.Role {
	var p ProfileModel
	if err := db.WithContext(ctx).Select("id", "role").Where("id = ?", userID).First(&p).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("Не удалось прочитать роль продавца")
		}
		return domain.RoleSeller
	}
	return domain.Role(p.Role)
}

func (r *payableRepository) List(ctx context.Context, f ListFilter) ([]*domain.PayableEntity, int64, error) {
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 100
	}

	owner := "seller_id"
	switch f.Kind {
	case domain.KindOrder:
		owner = "buyer_id"
	case domain.KindSellerApplication:
		owner = "user_id"
	}

	q := r.db.WithContext(ctx).Table(tableOf(f.Kind))
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	if f.PaymentState != "" {
		q = q.Where("payment_state = ?", string(f.PaymentState))
	}
	if f.OwnerID != "" {
		q = q.Where(owner+" = ?", f.OwnerID)
	}
	if f.CounterpartyID != "" && f.Kind == domain.KindOrder {
		q = q.Where("seller_id = ?", f.CounterpartyID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	q = q.Order("created_at DESC").Offset(f.Offset).Limit(f.Limit)

	var out []*domain.PayableEntity
	switch f.Kind {
	case domain.KindOrder:
		var models []OrderModel
		if err := q.Preload("Items").Find(&models).Error; err != nil {
			return nil, 0, err
		}
		roles := make(map[string]domain.Role)
		for i := range models {
			role, ok := roles[models[i].SellerID]
			if !ok {
				role = r.roleOf(ctx, r.db, models[i].SellerID)
				roles[models[i].SellerID] = role
			}
			out = append(out, models[i].toDomain(role))
		}
	case domain.KindSellerApplication:
		var models []SellerApplicationModel
		if err := q.Find(&models).Error; err != nil {
			return nil, 0, err
		}
		for i := range models {
			out = append(out, models[i].toDomain())
		}
	default:
		var models []AdCampaignModel
		if err := q.Find(&models).Error; err != nil {
			return nil, 0, err
		}
		for i := range models {
			out = append(out, models[i].toDomain())
		}
	}
	return out, total, nil
}

// =============================================================================
// События
// =============================================================================

func (r *payableRepository) EmitEvents(ctx context.Context, evs ...*events.PayableEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return r.appendEvents(ctx, tx, evs)
	})
}

func (r *payableRepository) appendEvents(ctx context.Context, tx *gorm.DB, evs []*events.PayableEvent) error {
	if len(evs) == 0 {
		return nil
	}
	headers := map[string]string{}
	if id := logger.TraceIDFromContext(ctx); id != "" {
		headers[kafka.HeaderTraceID] = id
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		headers[kafka.HeaderCorrelationID] = id
	}

	records := make([]*outbox.Record, 0, len(evs))
	for _, ev := range evs {
		rec, err := outbox.New(kafka.TopicPayableEvents, ev.Kind, ev.EntityID, string(ev.Type), ev, headers)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}
	return r.outbox.Append(ctx, tx, records...)
}

// =============================================================================
// Ошибки
// =============================================================================

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrEntityNotFound
	}
	return err
}

// isDuplicateKeyError распознаёт нарушение уникального индекса
// в MySQL (1062), PostgreSQL (23505) и SQLite.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "1062") ||
		strings.Contains(msg, "23505") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
