package events

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Shipment event subjects
const (
	ShipmentCreated     = "shipments.created"
	ShipmentAWBAssigned = "shipments.awb_assigned"
	ShipmentLabelReady  = "shipments.label_generated"
	ShipmentCancelled   = "shipments.cancelled"
	ShipmentSynced      = "shipments.synced"
)

// ShipmentEvent is the payload published on shipment lifecycle changes.
type ShipmentEvent struct {
	EventType   string    `json:"eventType"`
	OrderID     string    `json:"orderId"`
	OrderNumber string    `json:"orderNumber,omitempty"`
	AWB         string    `json:"awb,omitempty"`
	CourierName string    `json:"courierName,omitempty"`
	Status      string    `json:"status,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Publisher publishes shipment events to NATS. Publishing is best-effort:
// a broker outage is logged and never fails the triggering operation.
type Publisher struct {
	conn   *nats.Conn
	logger *logrus.Entry
}

// NewPublisher connects to NATS at the given URL.
func NewPublisher(natsURL string, logger *logrus.Logger) (*Publisher, error) {
	conn, err := nats.Connect(natsURL,
		nats.Name("shipments-service"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}

	return &Publisher{
		conn:   conn,
		logger: logger.WithField("component", "events.publisher"),
	}, nil
}

// Publish sends a shipment event. Safe to call on a nil publisher so wiring
// stays optional.
func (p *Publisher) Publish(event ShipmentEvent) {
	if p == nil || p.conn == nil {
		return
	}

	event.Timestamp = time.Now().UTC()
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.WithError(err).Warn("Failed to marshal shipment event")
		return
	}

	if err := p.conn.Publish(event.EventType, data); err != nil {
		p.logger.WithError(err).WithField("subject", event.EventType).Warn("Failed to publish shipment event")
		return
	}
}

// IsConnected returns true if connected to NATS.
func (p *Publisher) IsConnected() bool {
	return p != nil && p.conn != nil && p.conn.IsConnected()
}

// Close drains the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	p.conn.Close()
}
