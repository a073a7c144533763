package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"shipments-service/internal/apperrors"
	"shipments-service/internal/carriers"
	"shipments-service/internal/clients"
	"shipments-service/internal/events"
	"shipments-service/internal/models"
	"shipments-service/internal/repository"
)

// ShipmentDefaults holds the fixed package values sent at creation.
type ShipmentDefaults struct {
	PickupLocation string
	WeightKg       float64
	LengthCm       float64
	BreadthCm      float64
	HeightCm       float64
}

// ShipmentService owns the shipment lifecycle and the legality of each
// transition.
type ShipmentService interface {
	Create(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error)
	AssignAWB(ctx context.Context, orderID uuid.UUID, courierID string) (*models.Shipment, error)
	GenerateLabel(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error)
	Cancel(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error)
	Track(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error)
	GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error)
	GetByAWB(ctx context.Context, awb string) (*models.Shipment, error)
	List(ctx context.Context, limit, offset int) ([]*models.Shipment, int64, error)
}

type shipmentService struct {
	shipments repository.ShipmentRepository
	orders    repository.OrderRepository
	carrier   carriers.Client
	notifier  clients.Notifier
	publisher *events.Publisher
	defaults  ShipmentDefaults
	logger    *logrus.Entry

	// Serializes the read-prev/call-carrier/write sequence per order;
	// concurrent AssignAWB calls for the same order would otherwise race.
	locks orderLocks
}

// NewShipmentService creates the shipment lifecycle service.
func NewShipmentService(
	shipments repository.ShipmentRepository,
	orders repository.OrderRepository,
	carrier carriers.Client,
	notifier clients.Notifier,
	publisher *events.Publisher,
	defaults ShipmentDefaults,
	logger *logrus.Logger,
) ShipmentService {
	return &shipmentService{
		shipments: shipments,
		orders:    orders,
		carrier:   carrier,
		notifier:  notifier,
		publisher: publisher,
		defaults:  defaults,
		logger:    logger.WithField("component", "services.shipment"),
	}
}

// Create creates the carrier order+shipment for a confirmed order. Exactly
// one shipment per order: a second call detects the existing row and returns
// a conflict. All-or-nothing: a failed carrier call persists nothing.
func (s *shipmentService) Create(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error) {
	order, err := s.orders.GetByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.KindNotFound, "order %s not found", orderID)
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	if existing, err := s.shipments.GetByOrderID(orderID); err == nil {
		return existing, apperrors.New(apperrors.KindConflict, "shipment already exists for order %s", order.OrderNumber)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check for existing shipment: %w", err)
	}

	payload := s.buildCreatePayload(order)

	doc, err := s.carrier.Call(ctx, http.MethodPost, "/v1/external/orders/create/adhoc", payload)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindCarrier, err, "carrier order creation failed for order %s", order.OrderNumber)
	}

	ids := carriers.ExtractIdentifiers(doc)
	if ids.OrderID == "" && ids.ShipmentID == "" {
		s.logger.WithField("order", order.OrderNumber).Warn("Carrier identifiers missing from create response; stored raw response for later repair")
	}

	shipment := &models.Shipment{
		OrderID:           order.ID,
		Provider:          models.ProviderShiprocket,
		CarrierOrderID:    ids.OrderID,
		CarrierShipmentID: ids.ShipmentID,
		Status:            models.ShipmentStatusCreated,
		PickupLocation:    s.defaults.PickupLocation,
		RequestPayload:    mustJSON(payload),
		RawResponse:       mustJSON(doc),
	}

	if err := s.shipments.Create(shipment); err != nil {
		return nil, fmt.Errorf("failed to save shipment: %w", err)
	}

	s.publisher.Publish(events.ShipmentEvent{
		EventType:   events.ShipmentCreated,
		OrderID:     order.ID.String(),
		OrderNumber: order.OrderNumber,
		Status:      string(shipment.Status),
	})

	s.logger.WithFields(logrus.Fields{
		"order":             order.OrderNumber,
		"carrierOrderId":    shipment.CarrierOrderID,
		"carrierShipmentId": shipment.CarrierShipmentID,
	}).Info("Shipment created")

	return shipment, nil
}

// AssignAWB requests a tracking number from the carrier. A carrier refusal
// that discloses the already-held AWB is salvaged into a success; the
// tracking email fires only when the stored AWB value actually changed.
func (s *shipmentService) AssignAWB(ctx context.Context, orderID uuid.UUID, courierID string) (*models.Shipment, error) {
	unlock := s.locks.lock(orderID)
	defer unlock()

	shipment, err := s.getShipment(orderID)
	if err != nil {
		return nil, err
	}
	if shipment.Status.IsTerminal() {
		return nil, apperrors.New(apperrors.KindPrecondition, "shipment for order %s is cancelled", orderID)
	}
	if shipment.CarrierShipmentID == "" {
		return nil, apperrors.New(apperrors.KindPrecondition, "carrier shipment id unknown for order %s; run sync first", orderID)
	}

	prevAwb := shipment.AWB

	payload := map[string]interface{}{
		"shipment_id": numericIfPossible(shipment.CarrierShipmentID),
	}
	if courierID != "" {
		payload["courier_id"] = numericIfPossible(courierID)
	}

	doc, err := s.carrier.Call(ctx, http.MethodPost, "/v1/external/courier/assign/awb", payload)
	if err != nil {
		return s.salvageAssignFailure(ctx, shipment, payload, prevAwb, err)
	}

	result := carriers.ExtractAWB(doc)
	if result.AWB != "" {
		shipment.AWB = result.AWB
	}
	if result.CourierName != "" {
		shipment.CourierName = result.CourierName
	}
	if result.CourierID != "" {
		shipment.CourierID = result.CourierID
	}
	shipment.Status = models.ShipmentStatusAWBAssigned
	shipment.RequestPayload = mustJSON(payload)
	shipment.RawResponse = mustJSON(doc)

	if err := s.shipments.Update(shipment); err != nil {
		return nil, fmt.Errorf("failed to save shipment: %w", err)
	}

	s.afterAWBChange(ctx, shipment, prevAwb)
	return shipment, nil
}

// salvageAssignFailure handles the carrier refusing a courier-specific
// reassignment while disclosing the AWB it already holds. If no AWB can be
// recovered the failure propagates unchanged; the raw error body is kept
// either way.
func (s *shipmentService) salvageAssignFailure(ctx context.Context, shipment *models.Shipment, payload map[string]interface{}, prevAwb string, callErr error) (*models.Shipment, error) {
	var apiErr *carriers.APIError
	if !errors.As(callErr, &apiErr) {
		return nil, apperrors.Wrap(apperrors.KindCarrier, callErr, "AWB assignment failed for order %s", shipment.OrderID)
	}

	shipment.RequestPayload = mustJSON(payload)
	shipment.RawResponse = rawJSON(apiErr.Body)

	awb, ok := carriers.SalvageAWB(apiErr.Body)
	if !ok {
		if err := s.shipments.Update(shipment); err != nil {
			s.logger.WithError(err).Warn("Failed to store raw carrier error")
		}
		return nil, apperrors.Wrap(apperrors.KindCarrier, callErr, "AWB assignment failed for order %s", shipment.OrderID)
	}

	s.logger.WithFields(logrus.Fields{
		"order": shipment.OrderID,
		"awb":   awb,
	}).Info("Recovered AWB from carrier refusal")

	if shipment.AWB == "" {
		shipment.AWB = awb
	}
	shipment.Status = models.ShipmentStatusAWBAssigned

	if err := s.shipments.Update(shipment); err != nil {
		return nil, fmt.Errorf("failed to save shipment: %w", err)
	}

	s.afterAWBChange(ctx, shipment, prevAwb)
	return shipment, nil
}

// GenerateLabel requests the shipping label. Rejected outright on a
// cancelled shipment.
func (s *shipmentService) GenerateLabel(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error) {
	shipment, err := s.getShipment(orderID)
	if err != nil {
		return nil, err
	}
	if shipment.Status.IsTerminal() {
		return nil, apperrors.New(apperrors.KindPrecondition, "cannot generate label for cancelled shipment (order %s)", orderID)
	}
	if shipment.CarrierShipmentID == "" {
		return nil, apperrors.New(apperrors.KindPrecondition, "carrier shipment id unknown for order %s", orderID)
	}

	payload := map[string]interface{}{
		"shipment_id": []interface{}{numericIfPossible(shipment.CarrierShipmentID)},
	}

	doc, err := s.carrier.Call(ctx, http.MethodPost, "/v1/external/courier/generate/label", payload)
	if err != nil {
		s.storeRawFailure(shipment, payload, err)
		return nil, apperrors.Wrap(apperrors.KindCarrier, err, "label generation failed for order %s", orderID)
	}

	if labelURL := carriers.Extract(doc, carriers.LabelURLPaths...); labelURL != "" {
		shipment.LabelURL = labelURL
	}
	shipment.Status = models.ShipmentStatusLabelGenerated
	shipment.RequestPayload = mustJSON(payload)
	shipment.RawResponse = mustJSON(doc)

	if err := s.shipments.Update(shipment); err != nil {
		return nil, fmt.Errorf("failed to save shipment: %w", err)
	}

	s.publisher.Publish(events.ShipmentEvent{
		EventType: events.ShipmentLabelReady,
		OrderID:   shipment.OrderID.String(),
		AWB:       shipment.AWB,
		Status:    string(shipment.Status),
	})

	return shipment, nil
}

// Cancel voids the shipment with the carrier, using the carrier order id
// when known and falling back to the shipment id. On success the order is
// cancelled too (the one cross-entity side effect here) and the customer is
// notified unconditionally.
func (s *shipmentService) Cancel(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error) {
	shipment, err := s.getShipment(orderID)
	if err != nil {
		return nil, err
	}
	if shipment.Status == models.ShipmentStatusCancelled {
		return shipment, nil
	}
	if shipment.CarrierOrderID == "" && shipment.CarrierShipmentID == "" {
		return nil, apperrors.New(apperrors.KindPrecondition, "no carrier identifiers known for order %s; nothing to cancel", orderID)
	}

	var doc map[string]interface{}
	var payload map[string]interface{}
	if shipment.CarrierOrderID != "" {
		payload = map[string]interface{}{
			"ids": []interface{}{numericIfPossible(shipment.CarrierOrderID)},
		}
		doc, err = s.carrier.Call(ctx, http.MethodPost, "/v1/external/orders/cancel", payload)
	} else {
		doc, err = s.carrier.Call(ctx, http.MethodPost, "/v1/external/orders/cancel/shipment/"+shipment.CarrierShipmentID, nil)
	}
	if err != nil {
		s.storeRawFailure(shipment, payload, err)
		return nil, apperrors.Wrap(apperrors.KindCarrier, err, "carrier cancellation failed for order %s", orderID)
	}

	shipment.Status = models.ShipmentStatusCancelled
	if payload != nil {
		shipment.RequestPayload = mustJSON(payload)
	}
	shipment.RawResponse = mustJSON(doc)

	if err := s.shipments.Update(shipment); err != nil {
		return nil, fmt.Errorf("failed to save shipment: %w", err)
	}

	order, err := s.orders.GetByID(orderID)
	if err != nil {
		s.logger.WithError(err).WithField("order", orderID).Warn("Failed to load order for cancellation side effect")
	} else {
		if !order.Status.IsTerminal() {
			if err := s.orders.UpdateStatus(order.ID, models.OrderStatusCancelled); err != nil {
				s.logger.WithError(err).WithField("order", orderID).Warn("Failed to cancel order")
			}
		}
		if err := s.notifier.SendCancellationEmail(ctx, clients.CancellationNotification{
			OrderID:       order.ID.String(),
			OrderNumber:   order.OrderNumber,
			CustomerEmail: order.CustomerEmail,
			CustomerName:  order.CustomerName,
		}); err != nil {
			s.logger.WithError(err).WithField("order", order.OrderNumber).Warn("Failed to send cancellation email")
		}
	}

	s.publisher.Publish(events.ShipmentEvent{
		EventType: events.ShipmentCancelled,
		OrderID:   shipment.OrderID.String(),
		AWB:       shipment.AWB,
		Status:    string(shipment.Status),
	})

	return shipment, nil
}

// Track refreshes status/tracking-url/courier from the AWB tracking
// endpoint. Status always reflects the latest observation; courier name and
// tracking URL follow the coalesce policy and never regress to empty.
func (s *shipmentService) Track(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error) {
	shipment, err := s.getShipment(orderID)
	if err != nil {
		return nil, err
	}
	if shipment.AWB == "" {
		return nil, apperrors.New(apperrors.KindPrecondition, "no AWB for order %s; assign an AWB first", orderID)
	}

	doc, err := s.carrier.Call(ctx, http.MethodGet, "/v1/external/courier/track/awb/"+shipment.AWB, nil)
	if err != nil {
		s.storeRawFailure(shipment, nil, err)
		return nil, apperrors.Wrap(apperrors.KindCarrier, err, "tracking failed for order %s", orderID)
	}

	result := carriers.ExtractTracking(doc)
	if result.Status != "" {
		shipment.Status = models.ShipmentStatus(carriers.NormalizeStatus(result.Status))
	}
	shipment.TrackingURL = coalesce(shipment.TrackingURL, result.TrackingURL)
	shipment.CourierName = coalesce(shipment.CourierName, result.CourierName)
	shipment.RawResponse = mustJSON(doc)

	if err := s.shipments.Update(shipment); err != nil {
		return nil, fmt.Errorf("failed to save shipment: %w", err)
	}

	return shipment, nil
}

// GetByOrder retrieves a shipment projection for an order.
func (s *shipmentService) GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error) {
	return s.getShipment(orderID)
}

// GetByAWB looks a shipment up by its tracking number.
func (s *shipmentService) GetByAWB(ctx context.Context, awb string) (*models.Shipment, error) {
	shipment, err := s.shipments.GetByAWB(awb)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.KindNotFound, "no shipment with AWB %s", awb)
		}
		return nil, fmt.Errorf("failed to load shipment: %w", err)
	}
	return shipment, nil
}

// List retrieves shipments with pagination.
func (s *shipmentService) List(ctx context.Context, limit, offset int) ([]*models.Shipment, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.shipments.List(limit, offset)
}

// getShipment loads the shipment for an order, classifying absence.
func (s *shipmentService) getShipment(orderID uuid.UUID) (*models.Shipment, error) {
	shipment, err := s.shipments.GetByOrderID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.KindNotFound, "no shipment for order %s", orderID)
		}
		return nil, fmt.Errorf("failed to load shipment: %w", err)
	}
	return shipment, nil
}

// afterAWBChange fires the tracking notification and the event if the AWB
// value actually changed. Re-confirming the same value is a no-op.
func (s *shipmentService) afterAWBChange(ctx context.Context, shipment *models.Shipment, prevAwb string) {
	if shipment.AWB == "" || shipment.AWB == prevAwb {
		return
	}

	fireTrackingNotification(ctx, s.logger, s.notifier, s.orders, shipment)

	s.publisher.Publish(events.ShipmentEvent{
		EventType:   events.ShipmentAWBAssigned,
		OrderID:     shipment.OrderID.String(),
		AWB:         shipment.AWB,
		CourierName: shipment.CourierName,
		Status:      string(shipment.Status),
	})
}

// storeRawFailure keeps a failed call's request and raw error body on the
// shipment so later reconciliation can mine them. Best effort.
func (s *shipmentService) storeRawFailure(shipment *models.Shipment, payload map[string]interface{}, callErr error) {
	var apiErr *carriers.APIError
	if !errors.As(callErr, &apiErr) {
		return
	}
	if payload != nil {
		shipment.RequestPayload = mustJSON(payload)
	}
	shipment.RawResponse = rawJSON(apiErr.Body)
	if err := s.shipments.Update(shipment); err != nil {
		s.logger.WithError(err).Warn("Failed to store raw carrier error")
	}
}

// buildCreatePayload assembles the carrier creation payload from order
// fields, line items (or the legacy single-product fallback) and the fixed
// package defaults.
func (s *shipmentService) buildCreatePayload(order *models.Order) map[string]interface{} {
	firstName, lastName := splitName(order.CustomerName)

	var orderItems []map[string]interface{}
	var subTotal float64
	if len(order.Items) > 0 {
		for _, item := range order.Items {
			orderItems = append(orderItems, map[string]interface{}{
				"name":          item.Name,
				"sku":           item.SKU,
				"units":         item.Quantity,
				"selling_price": item.Price,
			})
			subTotal += item.Price * float64(item.Quantity)
		}
	} else {
		qty := order.Quantity
		if qty <= 0 {
			qty = 1
		}
		orderItems = []map[string]interface{}{
			{
				"name":          order.ProductName,
				"sku":           order.ProductSKU,
				"units":         qty,
				"selling_price": order.Amount,
			},
		}
		subTotal = order.Amount
	}

	return map[string]interface{}{
		"order_id":              order.OrderNumber,
		"order_date":            time.Now().Format("2006-01-02 15:04"),
		"pickup_location":       s.defaults.PickupLocation,
		"billing_customer_name": firstName,
		"billing_last_name":     lastName,
		"billing_address":       order.AddressLine,
		"billing_city":          order.City,
		"billing_state":         order.State,
		"billing_pincode":       order.Pincode,
		"billing_country":       order.Country,
		"billing_email":         order.CustomerEmail,
		"billing_phone":         order.CustomerMobile,
		"shipping_is_billing":   true,
		"order_items":           orderItems,
		"payment_method":        "Prepaid",
		"sub_total":             subTotal,
		"length":                s.defaults.LengthCm,
		"breadth":               s.defaults.BreadthCm,
		"height":                s.defaults.HeightCm,
		"weight":                s.defaults.WeightKg,
	}
}

// fireTrackingNotification sends the tracking-available email. Failures are
// logged, never propagated into the triggering operation.
func fireTrackingNotification(ctx context.Context, logger *logrus.Entry, notifier clients.Notifier, orders repository.OrderRepository, shipment *models.Shipment) {
	order, err := orders.GetByID(shipment.OrderID)
	if err != nil {
		logger.WithError(err).WithField("order", shipment.OrderID).Warn("Failed to load order for tracking notification")
		return
	}

	err = notifier.SendTrackingEmail(ctx, clients.TrackingNotification{
		OrderID:       order.ID.String(),
		OrderNumber:   order.OrderNumber,
		CustomerEmail: order.CustomerEmail,
		CustomerName:  order.CustomerName,
		AWB:           shipment.AWB,
		CourierName:   shipment.CourierName,
		TrackingURL:   shipment.TrackingURL,
	})
	if err != nil {
		logger.WithError(err).WithField("order", order.OrderNumber).Warn("Failed to send tracking email")
	}
}

// orderLocks is an in-process keyed mutex serializing mutations per order.
type orderLocks struct {
	mu sync.Map
}

func (l *orderLocks) lock(orderID uuid.UUID) func() {
	v, _ := l.mu.LoadOrStore(orderID, &sync.Mutex{})
	m := v.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// coalesce returns existing unless it is empty.
func coalesce(existing, next string) string {
	if existing != "" {
		return existing
	}
	return next
}

// numericIfPossible sends carrier identifiers back as numbers when they are
// numeric; the carrier rejects quoted ids on some endpoints.
func numericIfPossible(id string) interface{} {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}

// splitName splits a full name into first and last name; the carrier
// requires both.
func splitName(fullName string) (firstName, lastName string) {
	parts := strings.Fields(fullName)
	if len(parts) == 0 {
		return "Customer", "."
	}
	if len(parts) == 1 {
		return parts[0], "."
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// mustJSON marshals a value for JSONB storage. Documents here were just
// decoded from JSON, so marshalling cannot realistically fail; an empty
// object is stored if it somehow does.
func mustJSON(v interface{}) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(data)
}

// rawJSON stores a carrier body verbatim when it is valid JSON, wrapping
// plain text bodies so the column stays queryable.
func rawJSON(body string) datatypes.JSON {
	trimmed := strings.TrimSpace(body)
	if json.Valid([]byte(trimmed)) && trimmed != "" {
		return datatypes.JSON([]byte(trimmed))
	}
	return mustJSON(map[string]string{"message": body})
}
