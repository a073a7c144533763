package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"shipments-service/internal/models"
)

// OrderRepository reads checkout-owned orders and applies the single
// cross-entity mutation this subsystem performs (cancellation).
type OrderRepository interface {
	GetByID(id uuid.UUID) (*models.Order, error)
	UpdateStatus(id uuid.UUID, status models.OrderStatus) error
}

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new order repository.
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// GetByID retrieves an order with its line items.
func (r *orderRepository) GetByID(id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.Where("id = ?", id).
		Preload("Items").
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateStatus updates an order's status.
func (r *orderRepository) UpdateStatus(id uuid.UUID, status models.OrderStatus) error {
	return r.db.Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}
