package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus represents the overall lifecycle status of an order.
type OrderStatus string

const (
	OrderStatusPlaced    OrderStatus = "PLACED"    // Order created, awaiting payment
	OrderStatusConfirmed OrderStatus = "CONFIRMED" // Payment successful, order accepted
	OrderStatusShipped   OrderStatus = "SHIPPED"   // Dispatched to carrier
	OrderStatusDelivered OrderStatus = "DELIVERED" // Successfully delivered
	OrderStatusCompleted OrderStatus = "COMPLETED" // Closed out after delivery
	OrderStatusCancelled OrderStatus = "CANCELLED" // Cancelled before fulfillment
)

// IsTerminal returns true for order states that accept no further transitions.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled || s == OrderStatusDelivered
}

// Order is the checkout-owned entity this subsystem reads for shipping and
// notification fields. Checkout writes it; the only mutation performed here
// is the cancellation side effect of Shipment Cancel.
type Order struct {
	ID          uuid.UUID   `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OrderNumber string      `json:"orderNumber" gorm:"type:varchar(100);uniqueIndex;not null"`
	Status      OrderStatus `json:"status" gorm:"type:varchar(20);not null;default:'PLACED'"`

	CustomerName   string `json:"customerName" gorm:"type:varchar(255)"`
	CustomerEmail  string `json:"customerEmail" gorm:"type:varchar(255)"`
	CustomerMobile string `json:"customerMobile" gorm:"type:varchar(50)"`

	// Shipping address (billing is shipping for this storefront)
	AddressLine string `json:"addressLine" gorm:"type:varchar(500)"`
	City        string `json:"city" gorm:"type:varchar(100)"`
	State       string `json:"state" gorm:"type:varchar(100)"`
	Pincode     string `json:"pincode" gorm:"type:varchar(20)"`
	Country     string `json:"country" gorm:"type:varchar(100)"`

	// Legacy single-product fields, used as a fallback when no Items rows
	// exist for the order.
	ProductName string  `json:"productName" gorm:"type:varchar(255)"`
	ProductSKU  string  `json:"productSku" gorm:"type:varchar(100)"`
	Quantity    int     `json:"quantity"`
	Amount      float64 `json:"amount" gorm:"type:decimal(10,2)"`

	Items []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID"`

	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

// OrderItem is a structured line item on an order.
type OrderItem struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OrderID  uuid.UUID `json:"orderId" gorm:"type:uuid;not null;index"`
	Name     string    `json:"name" gorm:"type:varchar(255);not null"`
	SKU      string    `json:"sku" gorm:"type:varchar(100)"`
	Quantity int       `json:"quantity" gorm:"not null"`
	Price    float64   `json:"price" gorm:"type:decimal(10,2)"`

	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
}
