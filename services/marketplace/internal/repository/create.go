package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"example.com/marketplace/services/marketplace/internal/domain"
)

// NewOrder — данные нового заказа. Цена и продавец берутся из товара.
type NewOrder struct {
	BuyerID         string
	ProductID       string
	Quantity        int
	Method          domain.PaymentMethod
	ShippingAddress string
}

// NewApplication — заявка на статус продавца.
type NewApplication struct {
	UserID              string
	StoreName           string
	BusinessDescription string
	ContactPhone        string
	BusinessImageURL    string
	Method              domain.PaymentMethod
	Fee                 decimal.Decimal
	Currency            string
}

// NewAd — рекламная кампания.
type NewAd struct {
	SellerID    string
	Title       string
	Description string
	TargetURL   string
	ImageURL    string
	Budget      decimal.Decimal
	Currency    string
	Method      domain.PaymentMethod
}

// =============================================================================
// Заказ
// =============================================================================

// CreateOrder списывает остаток условным UPDATE (stock >= quantity) и в той же
// транзакции создаёт заказ с позицией. Остаток при отмене не возвращается.
func (r *payableRepository) CreateOrder(ctx context.Context, in NewOrder) (*domain.PayableEntity, error) {
	now := r.now()
	var created *OrderModel

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&ProductModel{}).
			Where("id = ? AND stock >= ?", in.ProductID, in.Quantity).
			Updates(map[string]any{
				"stock":      gorm.Expr("stock - ?", in.Quantity),
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&ProductModel{}).Where("id = ?", in.ProductID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return domain.ErrProductNotFound
			}
			return domain.ErrInsufficientStock
		}

		var product ProductModel
		if err := tx.Where("id = ?", in.ProductID).First(&product).Error; err != nil {
			return err
		}

		status := domain.LifecycleOf(domain.KindOrder).Entry(in.Method)
		orderID := uuid.NewString()
		created = &OrderModel{
			ID:              orderID,
			BuyerID:         in.BuyerID,
			SellerID:        product.SellerID,
			Status:          string(status),
			PaymentState:    string(domain.PaymentUnpaid),
			PaymentMethod:   string(in.Method),
			TotalAmount:     product.Price.Mul(decimal.NewFromInt(int64(in.Quantity))),
			Currency:        product.Currency,
			ShippingAddress: in.ShippingAddress,
			CreatedAt:       now,
			UpdatedAt:       now,
			Items: []OrderItemModel{{
				ID:           uuid.NewString(),
				OrderID:      orderID,
				ProductID:    product.ID,
				ProductTitle: product.Title,
				Quantity:     in.Quantity,
				UnitPrice:    product.Price,
			}},
		}
		if status == domain.StatusProcessing {
			created.ConfirmedAt = &now
		}
		return tx.Create(created).Error
	})
	if err != nil {
		return nil, err
	}

	return created.toDomain(r.roleOf(ctx, r.db, created.SellerID)), nil
}

// =============================================================================
// Заявка продавца
// =============================================================================

// SubmitApplication создаёт заявку или обновляет поданную. Повторная подача
// после отказа возвращает заявку на рассмотрение; уплаченный взнос сохраняется.
// Одобренную заявку подать заново нельзя.
func (r *payableRepository) SubmitApplication(ctx context.Context, in NewApplication) (*domain.PayableEntity, error) {
	now := r.now()
	var result *SellerApplicationModel

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing SellerApplicationModel
		err := tx.Where("user_id = ?", in.UserID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			result = &SellerApplicationModel{
				ID:                  uuid.NewString(),
				UserID:              in.UserID,
				StoreName:           in.StoreName,
				BusinessDescription: in.BusinessDescription,
				ContactPhone:        in.ContactPhone,
				BusinessImageURL:    in.BusinessImageURL,
				Status:              string(domain.StatusPendingPayment),
				PaymentState:        string(domain.PaymentUnpaid),
				PaymentMethod:       string(in.Method),
				FeeAmount:           in.Fee,
				Currency:            in.Currency,
				CreatedAt:           now,
				UpdatedAt:           now,
			}
			return tx.Create(result).Error
		}
		if err != nil {
			return err
		}

		if existing.Status == string(domain.StatusApproved) {
			return domain.ErrIllegalTransition
		}
		// Способ оплаты выбирается один раз при создании заявки.
		if existing.PaymentMethod != string(in.Method) {
			return domain.Invalid("payment_method", "нельзя изменить после создания заявки")
		}

		status := domain.StatusPendingPayment
		if domain.PaymentState(existing.PaymentState).Settled() {
			status = domain.StatusPendingReview
		}

		updates := map[string]any{
			"store_name":           in.StoreName,
			"business_description": in.BusinessDescription,
			"contact_phone":        in.ContactPhone,
			"business_image_url":   in.BusinessImageURL,
			"status":               string(status),
			"rejection_reason":     nil,
			"reviewed_by":          nil,
			"reviewed_at":          nil,
			"updated_at":           now,
		}

		res := tx.Model(&SellerApplicationModel{}).
			Where("id = ? AND status = ? AND payment_state = ?", existing.ID, existing.Status, existing.PaymentState).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStale
		}

		result = &SellerApplicationModel{}
		return tx.Where("id = ?", existing.ID).First(result).Error
	})
	if err != nil {
		return nil, err
	}
	return result.toDomain(), nil
}

// =============================================================================
// Рекламная кампания
// =============================================================================

// CreateAd создаёт кампанию в ожидании оплаты.
func (r *payableRepository) CreateAd(ctx context.Context, in NewAd) (*domain.PayableEntity, error) {
	now := r.now()
	m := &AdCampaignModel{
		ID:            uuid.NewString(),
		SellerID:      in.SellerID,
		Title:         in.Title,
		Description:   in.Description,
		TargetURL:     in.TargetURL,
		ImageURL:      in.ImageURL,
		Budget:        in.Budget,
		Currency:      in.Currency,
		Status:        string(domain.StatusPendingPayment),
		PaymentState:  string(domain.PaymentUnpaid),
		PaymentMethod: string(in.Method),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m.toDomain(), nil
}
