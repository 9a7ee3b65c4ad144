package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"example.com/marketplace/pkg/events"
	"example.com/marketplace/services/marketplace/internal/domain"
)

// Change — переход одной сущности относительно прочитанного снимка.
// Пустые поля не меняются.
type Change struct {
	Snapshot     *domain.PayableEntity
	Status       domain.Status
	PaymentState domain.PaymentState

	// Reference записывается, только если у снимка ссылки ещё нет.
	Reference string

	// Review — решение администратора по заявке или кампании.
	Review *Review

	// Profile — изменения профиля владельца (одобрение или отказ заявки).
	Profile *domain.SellerProfilePatch

	Events []*events.PayableEvent
}

// Review — кто и с какой причиной принял решение. Пустая причина
// стирает прежнюю.
type Review struct {
	By              string
	RejectionReason string
}

// Apply выполняет условный UPDATE по снимку. Совпасть должны статус,
// состояние оплаты и ссылка; иначе ErrStale и транзакция откатывается.
func (r *payableRepository) Apply(ctx context.Context, ch *Change) error {
	snap := ch.Snapshot
	now := r.now()
	updates := changeColumns(ch, now)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Table(tableOf(snap.Kind)).
			Where("id = ? AND status = ? AND payment_state = ?", snap.ID, string(snap.Status), string(snap.PaymentState))
		if snap.PaymentReference == nil {
			q = q.Where("payment_reference IS NULL")
		} else {
			q = q.Where("payment_reference = ?", *snap.PaymentReference)
		}

		res := q.Updates(updates)
		if res.Error != nil {
			if isDuplicateKeyError(res.Error) {
				return domain.Invalid("payment_reference", "ссылка уже занята другой сущностью")
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStale
		}

		if ch.Profile != nil {
			if err := applyProfile(ctx, tx, ch.Profile, now); err != nil {
				return err
			}
		}

		return r.appendEvents(ctx, tx, ch.Events)
	})
}

// changeColumns собирает колонки UPDATE и отметки времени перехода.
func changeColumns(ch *Change, now time.Time) map[string]any {
	snap := ch.Snapshot
	updates := map[string]any{"updated_at": now}

	if ch.Status != "" && ch.Status != snap.Status {
		updates["status"] = string(ch.Status)
		if snap.Kind == domain.KindOrder {
			switch ch.Status {
			case domain.StatusProcessing:
				updates["confirmed_at"] = now
			case domain.StatusShipped:
				updates["shipped_at"] = now
			case domain.StatusDelivered:
				updates["delivered_at"] = now
			case domain.StatusCancelled:
				updates["cancelled_at"] = now
			}
		}
	}

	if ch.PaymentState != "" && ch.PaymentState != snap.PaymentState {
		updates["payment_state"] = string(ch.PaymentState)
		if ch.PaymentState == domain.PaymentPaid {
			updates["paid_at"] = now
		}
	}

	if ch.Reference != "" && snap.PaymentReference == nil {
		updates["payment_reference"] = ch.Reference
	}

	if ch.Review != nil && snap.Kind.IsListing() {
		updates["reviewed_by"] = ch.Review.By
		updates["reviewed_at"] = now
		if ch.Review.RejectionReason != "" {
			updates["rejection_reason"] = ch.Review.RejectionReason
		} else {
			updates["rejection_reason"] = nil
		}
	}

	return updates
}

// applyProfile переписывает витрину продавца. Профиля может ещё не быть,
// если identity-провайдер не успел его создать: тогда он создаётся.
func applyProfile(ctx context.Context, tx *gorm.DB, p *domain.SellerProfilePatch, now time.Time) error {
	updates := map[string]any{
		"store_verified": p.StoreVerified,
		"updated_at":     now,
	}
	if p.Role != nil {
		updates["role"] = string(*p.Role)
	}
	if p.StoreName != nil {
		updates["store_name"] = *p.StoreName
	}
	if p.Phone != nil {
		updates["phone"] = *p.Phone
	}
	if p.Bio != nil {
		updates["bio"] = *p.Bio
	}
	if p.AvatarURL != nil {
		updates["avatar_url"] = *p.AvatarURL
	}

	res := tx.WithContext(ctx).Model(&ProfileModel{}).Where("id = ?", p.UserID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	role := string(domain.RoleBuyer)
	if p.Role != nil {
		role = string(*p.Role)
	}
	return tx.WithContext(ctx).Create(&ProfileModel{
		ID:            p.UserID,
		Role:          role,
		StoreName:     p.StoreName,
		Phone:         p.Phone,
		Bio:           p.Bio,
		AvatarURL:     p.AvatarURL,
		StoreVerified: p.StoreVerified,
		UpdatedAt:     now,
	}).Error
}
