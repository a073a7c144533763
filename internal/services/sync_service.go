package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"shipments-service/internal/apperrors"
	"shipments-service/internal/carriers"
	"shipments-service/internal/clients"
	"shipments-service/internal/events"
	"shipments-service/internal/models"
	"shipments-service/internal/repository"
)

// SyncService reconciles local shipment rows against the carrier. There are
// no webhooks: polling is the only way state comes back.
type SyncService interface {
	SyncShipment(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error)
	SyncBatch(ctx context.Context, limit int) (*models.BatchSyncResponse, error)
}

type syncService struct {
	shipments repository.ShipmentRepository
	orders    repository.OrderRepository
	carrier   carriers.Client
	notifier  clients.Notifier
	publisher *events.Publisher
	logger    *logrus.Entry
}

// NewSyncService creates the reconciliation service.
func NewSyncService(
	shipments repository.ShipmentRepository,
	orders repository.OrderRepository,
	carrier carriers.Client,
	notifier clients.Notifier,
	publisher *events.Publisher,
	logger *logrus.Logger,
) SyncService {
	return &syncService{
		shipments: shipments,
		orders:    orders,
		carrier:   carrier,
		notifier:  notifier,
		publisher: publisher,
		logger:    logger.WithField("component", "services.sync"),
	}
}

type endpoint struct {
	method string
	path   string
}

// SyncShipment repairs missing carrier identifiers from the stored raw
// response, probes the carrier endpoints in priority order, then merges
// whatever the first successful response yields. Status always reflects the
// fresh observation; identifier fields only ever fill in, never regress.
func (s *syncService) SyncShipment(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error) {
	shipment, err := s.shipments.GetByOrderID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.KindNotFound, "no shipment for order %s", orderID)
		}
		return nil, fmt.Errorf("failed to load shipment: %w", err)
	}

	if shipment.Status.IsTerminal() {
		return shipment, nil
	}

	if repaired, errored := s.repairFromStoredResponse(shipment); errored {
		// The stored creation response names an unknown pickup location.
		// The carrier never created anything, so probing is pointless.
		shipment.Status = models.ShipmentStatusError
		if err := s.shipments.Update(shipment); err != nil {
			return nil, fmt.Errorf("failed to save shipment: %w", err)
		}
		return shipment, nil
	} else if repaired {
		s.logger.WithFields(logrus.Fields{
			"order":             orderID,
			"carrierOrderId":    shipment.CarrierOrderID,
			"carrierShipmentId": shipment.CarrierShipmentID,
		}).Info("Repaired carrier identifiers from stored response")
	}

	endpoints := s.candidateEndpoints(shipment)
	if len(endpoints) == 0 {
		return nil, apperrors.New(apperrors.KindPrecondition, "no carrier identifiers known for order %s", orderID)
	}

	prevAwb := shipment.AWB

	doc, err := s.tryEndpoints(ctx, endpoints)
	if err != nil {
		var apiErr *carriers.APIError
		if errors.As(err, &apiErr) {
			shipment.RawResponse = rawJSON(apiErr.Body)
			if saveErr := s.shipments.Update(shipment); saveErr != nil {
				s.logger.WithError(saveErr).Warn("Failed to store raw carrier error")
			}
		}
		return nil, apperrors.Wrap(apperrors.KindCarrier, err, "sync failed for order %s", orderID)
	}

	s.merge(shipment, doc)
	shipment.RawResponse = mustJSON(doc)

	if err := s.shipments.Update(shipment); err != nil {
		return nil, fmt.Errorf("failed to save shipment: %w", err)
	}

	if shipment.AWB != "" && shipment.AWB != prevAwb {
		fireTrackingNotification(ctx, s.logger, s.notifier, s.orders, shipment)
	}

	s.publisher.Publish(events.ShipmentEvent{
		EventType:   events.ShipmentSynced,
		OrderID:     shipment.OrderID.String(),
		AWB:         shipment.AWB,
		CourierName: shipment.CourierName,
		Status:      string(shipment.Status),
	})

	return shipment, nil
}

// SyncBatch reconciles stale shipments, oldest first. One bad shipment never
// aborts the rest; each failure is captured against its order.
func (s *syncService) SyncBatch(ctx context.Context, limit int) (*models.BatchSyncResponse, error) {
	stale, err := s.shipments.ListStale(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale shipments: %w", err)
	}

	resp := &models.BatchSyncResponse{Total: len(stale)}
	for _, sh := range stale {
		result := models.BatchSyncResult{OrderID: sh.OrderID.String()}
		synced, err := s.SyncShipment(ctx, sh.OrderID)
		if err != nil {
			result.Error = err.Error()
			resp.Failed++
			s.logger.WithError(err).WithField("order", sh.OrderID).Warn("Batch sync item failed")
		} else {
			result.AWB = synced.AWB
			result.Status = string(synced.Status)
			resp.Synced++
		}
		resp.Results = append(resp.Results, result)
	}

	s.logger.WithFields(logrus.Fields{
		"total":  resp.Total,
		"synced": resp.Synced,
		"failed": resp.Failed,
	}).Info("Batch sync completed")

	return resp, nil
}

// repairFromStoredResponse mines the persisted raw response for identifiers
// a partially-extracted creation left behind. Returns errored=true when the
// stored response shows the creation never happened at the carrier.
func (s *syncService) repairFromStoredResponse(shipment *models.Shipment) (repaired, errored bool) {
	if shipment.CarrierOrderID != "" && shipment.CarrierShipmentID != "" {
		return false, false
	}
	if len(shipment.RawResponse) == 0 {
		return false, false
	}

	if carriers.IsInvalidPickupLocation(string(shipment.RawResponse)) {
		return false, true
	}

	doc, err := carriers.DecodeResponse([]byte(shipment.RawResponse))
	if err != nil {
		return false, false
	}

	ids := carriers.ExtractIdentifiers(doc)
	if shipment.CarrierOrderID == "" && ids.OrderID != "" {
		shipment.CarrierOrderID = ids.OrderID
		repaired = true
	}
	if shipment.CarrierShipmentID == "" && ids.ShipmentID != "" {
		shipment.CarrierShipmentID = ids.ShipmentID
		repaired = true
	}
	return repaired, false
}

// candidateEndpoints builds the probe list in priority order: shipment-id
// endpoints answer more precisely than order-id ones.
func (s *syncService) candidateEndpoints(shipment *models.Shipment) []endpoint {
	var endpoints []endpoint
	if shipment.CarrierShipmentID != "" {
		endpoints = append(endpoints,
			endpoint{http.MethodGet, "/v1/external/courier/track/shipment/" + shipment.CarrierShipmentID},
			endpoint{http.MethodGet, "/v1/external/shipments/" + shipment.CarrierShipmentID},
		)
	}
	if shipment.CarrierOrderID != "" {
		endpoints = append(endpoints,
			endpoint{http.MethodGet, "/v1/external/courier/track?order_id=" + shipment.CarrierOrderID},
			endpoint{http.MethodGet, "/v1/external/orders/show/" + shipment.CarrierOrderID},
		)
	}
	return endpoints
}

// tryEndpoints probes endpoints in order and returns the first successful
// document. Only the last error survives a full miss.
func (s *syncService) tryEndpoints(ctx context.Context, endpoints []endpoint) (map[string]interface{}, error) {
	var lastErr error
	for _, ep := range endpoints {
		doc, err := s.carrier.Call(ctx, ep.method, ep.path, nil)
		if err != nil {
			s.logger.WithError(err).WithField("path", ep.path).Debug("Sync endpoint miss")
			lastErr = err
			continue
		}
		return doc, nil
	}
	return nil, lastErr
}

// merge folds a carrier document into the shipment. Freshly observed status
// always wins; everything else fills empty fields only. A shipment still in
// created that just gained its first AWB is promoted when the carrier's own
// narrative does not say more.
func (s *syncService) merge(shipment *models.Shipment, doc map[string]interface{}) {
	statusBefore := shipment.Status

	awbResult := carriers.ExtractAWB(doc)
	tracking := carriers.ExtractTracking(doc)
	ids := carriers.ExtractIdentifiers(doc)

	shipment.AWB = coalesce(shipment.AWB, awbResult.AWB)
	shipment.CourierName = coalesce(shipment.CourierName, coalesce(awbResult.CourierName, tracking.CourierName))
	shipment.CourierID = coalesce(shipment.CourierID, awbResult.CourierID)
	shipment.TrackingURL = coalesce(shipment.TrackingURL, tracking.TrackingURL)
	shipment.CarrierOrderID = coalesce(shipment.CarrierOrderID, ids.OrderID)
	shipment.CarrierShipmentID = coalesce(shipment.CarrierShipmentID, ids.ShipmentID)

	if tracking.Status != "" {
		shipment.Status = models.ShipmentStatus(carriers.NormalizeStatus(tracking.Status))
	} else if statusBefore == models.ShipmentStatusCreated && shipment.AWB != "" {
		shipment.Status = models.ShipmentStatusAWBAssigned
	}
}
