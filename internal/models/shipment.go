package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ShipmentStatus represents the lifecycle state of a shipment.
//
// The lifecycle states below move strictly forward. After label generation
// the carrier takes over and Sync/Track store the carrier's normalized status
// text directly (e.g. "Out for Delivery"), so the column is free-form beyond
// these constants. CANCELLED is terminal and reachable from any non-terminal
// state; ERROR is set when reconciliation determines the creation itself is
// broken (e.g. invalid pickup location).
type ShipmentStatus string

const (
	ShipmentStatusCreated        ShipmentStatus = "created"
	ShipmentStatusAWBAssigned    ShipmentStatus = "awb_assigned"
	ShipmentStatusLabelGenerated ShipmentStatus = "label_generated"
	ShipmentStatusCancelled      ShipmentStatus = "cancelled"
	ShipmentStatusError          ShipmentStatus = "error"
)

// ProviderShiprocket is the provider identifier stored on every shipment row.
const ProviderShiprocket = "shiprocket"

// IsTerminal returns true for states that block further mutation.
func (s ShipmentStatus) IsTerminal() bool {
	return s == ShipmentStatusCancelled
}

// Shipment is the locally-held record reconciled against the carrier.
// One-to-one with an Order, enforced by the unique index on order_id.
type Shipment struct {
	ID      uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OrderID uuid.UUID `json:"orderId" gorm:"type:uuid;not null;uniqueIndex"`

	Provider string `json:"provider" gorm:"type:varchar(50);not null"`

	// Carrier-assigned identifiers, empty until known. Sync can backfill
	// these from RawResponse when the original create call failed to parse.
	CarrierOrderID    string `json:"carrierOrderId" gorm:"type:varchar(255)"`
	CarrierShipmentID string `json:"carrierShipmentId" gorm:"type:varchar(255)"`

	AWB         string `json:"awb" gorm:"type:varchar(255);index"`
	CourierID   string `json:"courierId" gorm:"type:varchar(100)"`
	CourierName string `json:"courierName" gorm:"type:varchar(255)"`

	Status      ShipmentStatus `json:"status" gorm:"type:varchar(100);not null;default:'created'"`
	TrackingURL string         `json:"trackingUrl" gorm:"type:varchar(500)"`
	LabelURL    string         `json:"labelUrl" gorm:"type:varchar(500)"`

	PickupLocation string `json:"pickupLocation" gorm:"type:varchar(255)"`

	// Last payload sent to the carrier and last raw carrier response.
	// RawResponse is retained even on error paths so reconciliation can
	// mine it for identifiers later.
	RequestPayload datatypes.JSON `json:"requestPayload,omitempty" gorm:"type:jsonb"`
	RawResponse    datatypes.JSON `json:"rawResponse,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message *string     `json:"message,omitempty"`
}

// ListShipmentsResponse represents a paginated list of shipments
type ListShipmentsResponse struct {
	Success bool        `json:"success"`
	Data    []*Shipment `json:"data"`
	Total   int64       `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
}

// AssignAWBRequest carries the optional courier preselection for assignment.
type AssignAWBRequest struct {
	CourierID string `json:"courierId"`
}

// BatchSyncResult reports the per-shipment outcome of a batch sync run.
type BatchSyncResult struct {
	OrderID string `json:"orderId"`
	AWB     string `json:"awb,omitempty"`
	Status  string `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
}

// BatchSyncResponse summarizes a batch sync run.
type BatchSyncResponse struct {
	Total   int               `json:"total"`
	Synced  int               `json:"synced"`
	Failed  int               `json:"failed"`
	Results []BatchSyncResult `json:"results"`
}
