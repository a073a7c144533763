package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"shipments-service/internal/models"
)

// ShipmentRepository handles database operations for shipments.
type ShipmentRepository interface {
	Create(shipment *models.Shipment) error
	GetByOrderID(orderID uuid.UUID) (*models.Shipment, error)
	GetByAWB(awb string) (*models.Shipment, error)
	List(limit, offset int) ([]*models.Shipment, int64, error)
	Update(shipment *models.Shipment) error
	ListStale(limit int) ([]*models.Shipment, error)
}

type shipmentRepository struct {
	db *gorm.DB
}

// NewShipmentRepository creates a new shipment repository.
func NewShipmentRepository(db *gorm.DB) ShipmentRepository {
	return &shipmentRepository{db: db}
}

// Create inserts a new shipment row. The unique index on order_id rejects a
// second shipment for the same order at the database level.
func (r *shipmentRepository) Create(shipment *models.Shipment) error {
	if shipment.ID == uuid.Nil {
		shipment.ID = uuid.New()
	}
	if shipment.CreatedAt.IsZero() {
		shipment.CreatedAt = time.Now()
	}
	shipment.UpdatedAt = time.Now()

	return r.db.Create(shipment).Error
}

// GetByOrderID retrieves the shipment for an order.
func (r *shipmentRepository) GetByOrderID(orderID uuid.UUID) (*models.Shipment, error) {
	var shipment models.Shipment
	err := r.db.Where("order_id = ?", orderID).First(&shipment).Error
	if err != nil {
		return nil, err
	}
	return &shipment, nil
}

// GetByAWB retrieves a shipment by its tracking number.
func (r *shipmentRepository) GetByAWB(awb string) (*models.Shipment, error) {
	var shipment models.Shipment
	err := r.db.Where("awb = ?", awb).First(&shipment).Error
	if err != nil {
		return nil, err
	}
	return &shipment, nil
}

// List retrieves shipments with pagination.
func (r *shipmentRepository) List(limit, offset int) ([]*models.Shipment, int64, error) {
	var shipments []*models.Shipment
	var total int64

	if err := r.db.Model(&models.Shipment{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&shipments).Error
	if err != nil {
		return nil, 0, err
	}

	return shipments, total, nil
}

// Update persists a full shipment row.
func (r *shipmentRepository) Update(shipment *models.Shipment) error {
	shipment.UpdatedAt = time.Now()
	return r.db.Save(shipment).Error
}

// ListStale selects shipments with no AWB yet but at least one known carrier
// identifier, oldest-updated first so repeated batch runs give every stale
// shipment a fair chance.
func (r *shipmentRepository) ListStale(limit int) ([]*models.Shipment, error) {
	var shipments []*models.Shipment
	err := r.db.
		Where("(awb IS NULL OR awb = '')").
		Where("(carrier_order_id <> '' OR carrier_shipment_id <> '')").
		Where("status NOT IN ?", []models.ShipmentStatus{
			models.ShipmentStatusCancelled,
			models.ShipmentStatusError,
		}).
		Order("updated_at ASC").
		Limit(limit).
		Find(&shipments).Error
	if err != nil {
		return nil, err
	}
	return shipments, nil
}
