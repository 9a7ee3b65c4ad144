package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"example.com/marketplace/services/marketplace/internal/domain"
)

// CatalogRepository — товары и профили в объёме, нужном заказам и заявкам.
type CatalogRepository interface {
	CreateProduct(ctx context.Context, p *domain.Product) error
	GetProduct(ctx context.Context, id string) (*domain.Product, error)

	// Restock возвращает товар на склад. Отмена заказа этого не делает.
	Restock(ctx context.Context, productID string, quantity int) (*domain.Product, error)

	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)

	// EnsureProfile создаёт профиль, если его ещё нет.
	EnsureProfile(ctx context.Context, userID, email string, role domain.Role) error
}

type catalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository создаёт репозиторий каталога.
func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) CreateProduct(ctx context.Context, p *domain.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	m := &ProductModel{
		ID:       p.ID,
		SellerID: p.SellerID,
		Title:    p.Title,
		Price:    p.Price,
		Currency: p.Currency,
		Stock:    p.Stock,
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	p.CreatedAt = m.CreatedAt
	p.UpdatedAt = m.UpdatedAt
	return nil
}

func (r *catalogRepository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var m ProductModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}
	return m.toDomain(), nil
}

func (r *catalogRepository) Restock(ctx context.Context, productID string, quantity int) (*domain.Product, error) {
	if quantity <= 0 {
		return nil, domain.Invalid("quantity", "должно быть положительным")
	}
	res := r.db.WithContext(ctx).Model(&ProductModel{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"stock":      gorm.Expr("stock + ?", quantity),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrProductNotFound
	}
	return r.GetProduct(ctx, productID)
}

func (r *catalogRepository) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	var m ProfileModel
	if err := r.db.WithContext(ctx).Where("id = ?", userID).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return m.toDomain(), nil
}

func (r *catalogRepository) EnsureProfile(ctx context.Context, userID, email string, role domain.Role) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&ProfileModel{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Create(&ProfileModel{ID: userID, Email: email, Role: string(role)}).Error
	if isDuplicateKeyError(err) {
		return nil
	}
	return err
}
