package services

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"shipments-service/internal/apperrors"
	"shipments-service/internal/carriers"
	"shipments-service/internal/clients"
	"shipments-service/internal/models"
	"shipments-service/internal/repository"
)

// MockShipmentRepository is a mock implementation of ShipmentRepository
type MockShipmentRepository struct {
	mock.Mock
}

var _ repository.ShipmentRepository = (*MockShipmentRepository)(nil)

func (m *MockShipmentRepository) Create(shipment *models.Shipment) error {
	args := m.Called(shipment)
	if args.Error(0) == nil && shipment.ID == uuid.Nil {
		shipment.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *MockShipmentRepository) GetByOrderID(orderID uuid.UUID) (*models.Shipment, error) {
	args := m.Called(orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Shipment), args.Error(1)
}

func (m *MockShipmentRepository) GetByAWB(awb string) (*models.Shipment, error) {
	args := m.Called(awb)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Shipment), args.Error(1)
}

func (m *MockShipmentRepository) List(limit, offset int) ([]*models.Shipment, int64, error) {
	args := m.Called(limit, offset)
	return args.Get(0).([]*models.Shipment), args.Get(1).(int64), args.Error(2)
}

func (m *MockShipmentRepository) Update(shipment *models.Shipment) error {
	args := m.Called(shipment)
	return args.Error(0)
}

func (m *MockShipmentRepository) ListStale(limit int) ([]*models.Shipment, error) {
	args := m.Called(limit)
	return args.Get(0).([]*models.Shipment), args.Error(1)
}

// MockOrderRepository is a mock implementation of OrderRepository
type MockOrderRepository struct {
	mock.Mock
}

var _ repository.OrderRepository = (*MockOrderRepository)(nil)

func (m *MockOrderRepository) GetByID(id uuid.UUID) (*models.Order, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderRepository) UpdateStatus(id uuid.UUID, status models.OrderStatus) error {
	args := m.Called(id, status)
	return args.Error(0)
}

// MockCarrierClient is a mock implementation of carriers.Client
type MockCarrierClient struct {
	mock.Mock
}

var _ carriers.Client = (*MockCarrierClient)(nil)

func (m *MockCarrierClient) Call(ctx context.Context, method, path string, body interface{}) (map[string]interface{}, error) {
	args := m.Called(ctx, method, path, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]interface{}), args.Error(1)
}

// MockNotifier is a mock implementation of clients.Notifier
type MockNotifier struct {
	mock.Mock
}

var _ clients.Notifier = (*MockNotifier)(nil)

func (m *MockNotifier) SendTrackingEmail(ctx context.Context, n clients.TrackingNotification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockNotifier) SendCancellationEmail(ctx context.Context, n clients.CancellationNotification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log.WithField("component", "test")
}

func newTestShipmentService(shipments *MockShipmentRepository, orders *MockOrderRepository, carrier *MockCarrierClient, notifier *MockNotifier) *shipmentService {
	return &shipmentService{
		shipments: shipments,
		orders:    orders,
		carrier:   carrier,
		notifier:  notifier,
		defaults: ShipmentDefaults{
			PickupLocation: "Primary",
			WeightKg:       0.5,
			LengthCm:       10,
			BreadthCm:      10,
			HeightCm:       10,
		},
		logger: testLogger(),
	}
}

func createTestOrder() *models.Order {
	return &models.Order{
		ID:             uuid.New(),
		OrderNumber:    "ORD-1001",
		Status:         models.OrderStatusConfirmed,
		CustomerName:   "Asha Verma",
		CustomerEmail:  "asha@example.com",
		CustomerMobile: "9876543210",
		AddressLine:    "12 MG Road",
		City:           "Bengaluru",
		State:          "Karnataka",
		Pincode:        "560001",
		Country:        "India",
		Items: []models.OrderItem{
			{Name: "Ceramic Mug", SKU: "MUG-01", Quantity: 2, Price: 250},
		},
	}
}

func createTestShipment(orderID uuid.UUID) *models.Shipment {
	return &models.Shipment{
		ID:                uuid.New(),
		OrderID:           orderID,
		Provider:          models.ProviderShiprocket,
		CarrierOrderID:    "780123",
		CarrierShipmentID: "4396091",
		Status:            models.ShipmentStatusCreated,
	}
}

func TestCreateShipment_Success(t *testing.T) {
	ctx := context.Background()
	order := createTestOrder()

	mockShipments := new(MockShipmentRepository)
	mockOrders := new(MockOrderRepository)
	mockCarrier := new(MockCarrierClient)
	service := newTestShipmentService(mockShipments, mockOrders, mockCarrier, new(MockNotifier))

	mockOrders.On("GetByID", order.ID).Return(order, nil)
	mockShipments.On("GetByOrderID", order.ID).Return(nil, gorm.ErrRecordNotFound)
	mockCarrier.On("Call", mock.Anything, "POST", "/v1/external/orders/create/adhoc", mock.Anything).
		Return(map[string]interface{}{
			"order_id":    json.Number("780123"),
			"shipment_id": json.Number("4396091"),
			"status":      "NEW",
		}, nil)
	mockShipments.On("Create", mock.AnythingOfType("*models.Shipment")).Return(nil)

	shipment, err := service.Create(ctx, order.ID)

	assert.NoError(t, err)
	assert.NotNil(t, shipment)
	assert.Equal(t, "780123", shipment.CarrierOrderID)
	assert.Equal(t, "4396091", shipment.CarrierShipmentID)
	assert.Equal(t, models.ShipmentStatusCreated, shipment.Status)
	assert.NotEmpty(t, shipment.RawResponse)
	assert.NotEmpty(t, shipment.RequestPayload)
	mockShipments.AssertExpectations(t)
	mockCarrier.AssertExpectations(t)
}

func TestCreateShipment_OrderNotFound(t *testing.T) {
	ctx := context.Background()
	orderID := uuid.New()

	mockOrders := new(MockOrderRepository)
	service := newTestShipmentService(new(MockShipmentRepository), mockOrders, new(MockCarrierClient), new(MockNotifier))

	mockOrders.On("GetByID", orderID).Return(nil, gorm.ErrRecordNotFound)

	shipment, err := service.Create(ctx, orderID)

	assert.Nil(t, shipment)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestCreateShipment_DuplicateIsConflict(t *testing.T) {
	ctx := context.Background()
	order := createTestOrder()
	existing := createTestShipment(order.ID)

	mockShipments := new(MockShipmentRepository)
	mockOrders := new(MockOrderRepository)
	mockCarrier := new(MockCarrierClient)
	service := newTestShipmentService(mockShipments, mockOrders, mockCarrier, new(MockNotifier))

	mockOrders.On("GetByID", order.ID).Return(order, nil)
	mockShipments.On("GetByOrderID", order.ID).Return(existing, nil)

	shipment, err := service.Create(ctx, order.ID)

	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
	assert.Equal(t, existing, shipment)
	mockCarrier.AssertNotCalled(t, "Call", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateShipment_CarrierFailurePersistsNothing(t *testing.T) {
	ctx := context.Background()
	order := createTestOrder()

	mockShipments := new(MockShipmentRepository)
	mockOrders := new(MockOrderRepository)
	mockCarrier := new(MockCarrierClient)
	service := newTestShipmentService(mockShipments, mockOrders, mockCarrier, new(MockNotifier))

	mockOrders.On("GetByID", order.ID).Return(order, nil)
	mockShipments.On("GetByOrderID", order.ID).Return(nil, gorm.ErrRecordNotFound)
	mockCarrier.On("Call", mock.Anything, "POST", "/v1/external/orders/create/adhoc", mock.Anything).
		Return(nil, &carriers.APIError{StatusCode: 502, Body: `{"message":"upstream unavailable"}`})

	shipment, err := service.Create(ctx, order.ID)

	assert.Nil(t, shipment)
	assert.Equal(t, apperrors.KindCarrier, apperrors.KindOf(err))
	mockShipments.AssertNotCalled(t, "Create", mock.Anything)
}

func TestCreateShipment_LegacySingleItemFallback(t *testing.T) {
	ctx := context.Background()
	order := createTestOrder()
	order.Items = nil
	order.ProductName = "Ceramic Mug"
	order.ProductSKU = "MUG-01"
	order.Quantity = 1
	order.Amount = 250

	mockShipments := new(MockShipmentRepository)
	mockOrders := new(MockOrderRepository)
	mockCarrier := new(MockCarrierClient)
	service := newTestShipmentService(mockShipments, mockOrders, mockCarrier, new(MockNotifier))

	mockOrders.On("GetByID", order.ID).Return(order, nil)
	mockShipments.On("GetByOrderID", order.ID).Return(nil, gorm.ErrRecordNotFound)

	var sentPayload map[string]interface{}
	mockCarrier.On("Call", mock.Anything, "POST", "/v1/external/orders/create/adhoc", mock.Anything).
		Run(func(args mock.Arguments) {
			sentPayload = args.Get(3).(map[string]interface{})
		}).
		Return(map[string]interface{}{"order_id": "780124", "shipment_id": "4396092"}, nil)
	mockShipments.On("Create", mock.AnythingOfType("*models.Shipment")).Return(nil)

	_, err := service.Create(ctx, order.ID)

	assert.NoError(t, err)
	items, ok := sentPayload["order_items"].([]map[string]interface{})
	assert.True(t, ok)
	assert.Len(t, items, 1)
	assert.Equal(t, "Ceramic Mug", items[0]["name"])
	assert.Equal(t, float64(250), sentPayload["sub_total"])
}

func TestAssignAWB_Success_NotifiesOnNewAWB(t *testing.T) {
	ctx := context.Background()
	order := createTestOrder()
	shipment := createTestShipment(order.ID)

	mockShipments := new(MockShipmentRepository)
	mockOrders := new(MockOrderRepository)
	mockCarrier := new(MockCarrierClient)
	mockNotifier := new(MockNotifier)
	service := newTestShipmentService(mockShipments, mockOrders, mockCarrier, mockNotifier)

	mockShipments.On("GetByOrderID", order.ID).Return(shipment, nil)
	mockCarrier.On("Call", mock.Anything, "POST", "/v1/external/courier/assign/awb", mock.Anything).
		Return(map[string]interface{}{
			"response": map[string]interface{}{
				"data": map[string]interface{}{
					"awb_code":           "AWB777",
					"courier_name":       "Delhivery",
					"courier_company_id": json.Number("24"),
				},
			},
		}, nil)
	mockShipments.On("Update", mock.AnythingOfType("*models.Shipment")).Return(nil)
	mockOrders.On("GetByID", order.ID).Return(order, nil)
	mockNotifier.On("SendTrackingEmail", mock.Anything, mock.Anything).Return(nil).Once()

	result, err := service.AssignAWB(ctx, order.ID, "")

	assert.NoError(t, err)
	assert.Equal(t, "AWB777", result.AWB)
	assert.Equal(t, "Delhivery", result.CourierName)
	assert.Equal(t, "24", result.CourierID)
	assert.Equal(t, models.ShipmentStatusAWBAssigned, result.Status)
	mockNotifier.AssertExpectations(t)
}

func TestAssignAWB_SameAWB_NoNotification(t *testing.T) {
	ctx := context.Background()
	order := createTestOrder()
	shipment := createTestShipment(order.ID)
	shipment.AWB = "AWB777"
	shipment.Status = models.ShipmentStatusAWBAssigned

	mockShipments := new(MockShipmentRepository)
	mockCarrier := new(MockCarrierClient)
	mockNotifier := new(MockNotifier)
	service := newTestShipmentService(mockShipments, new(MockOrderRepository), mockCarrier, mockNotifier)

	mockShipments.On("GetByOrderID", order.ID).Return(shipment, nil)
	mockCarrier.On("Call", mock.Anything, "POST", "/v1/external/courier/assign/awb", mock.Anything).
		Return(map[string]interface{}{"awb_code": "AWB777"}, nil)
	mockShipments.On("Update", mock.AnythingOfType("*models.Shipment")).Return(nil)

	result, err := service.AssignAWB(ctx, order.ID, "")

	assert.NoError(t, err)
	assert.Equal(t, "AWB777", result.AWB)
	mockNotifier.AssertNotCalled(t, "SendTrackingEmail", mock.Anything, mock.Anything)
}

func TestAssignAWB_SalvagesAWBFromRefusal(t *testing.T) {
	ctx := context.Background()
	order := createTestOrder()
	shipment := createTestShipment(order.ID)

	mockShipments := new(MockShipmentRepository)
	mockOrders := new(MockOrderRepository)
	mockCarrier := new(MockCarrierClient)
	mockNotifier := new(MockNotifier)
	service := newTestShipmentService(mockShipments, mockOrders, mockCarrier, mockNotifier)

	mockShipments.On("GetByOrderID", order.ID).Return(shipment, nil)
	mockCarrier.On("Call", mock.Anything, "POST", "/v1/external/courier/assign/awb", mock.Anything).
		Return(nil, &carriers.APIError{
			StatusCode: 400,
			Body:       `{"message":"Courier reassignment is not permitted. Current AWB ABC123 is already active"}`,
		})
	mockShipments.On("Update", mock.AnythingOfType("*models.Shipment")).Return(nil)
	mockOrders.On("GetByID", order.ID).Return(order, nil)
	mockNotifier.On("SendTrackingEmail", mock.Anything, mock.Anything).Return(nil).Once()

	result, err := service.AssignAWB(ctx, order.ID, "58")

	assert.NoError(t, err)
	assert.Equal(t, "ABC123", result.AWB)
	assert.Equal(t, models.ShipmentStatusAWBAssigned, result.Status)
	assert.NotEmpty(t, result.RawResponse)
	mockNotifier.AssertExpectations(t)
}

func TestAssignAWB_SalvageNeverOverwritesExistingAWB(t *testing.T) {
	ctx := context.Background()
	order := createTestOrder()
	shipment := createTestShipment(order.ID)
	shipment.AWB = "OLD999"
	shipment.Status = models.ShipmentStatusAWBAssigned

	mockShipments := new(MockShipmentRepository)
	mockCarrier := new(MockCarrierClient)
	mockNotifier := new(MockNotifier)
	service := newTestShipmentService(mockShipments, new(MockOrderRepository), mockCarrier, mockNotifier)

	mockShipments.On("GetByOrderID", order.ID).Return(shipment, nil)
	mockCarrier.On("Call", mock.Anything, "POST", "/v1/external/courier/assign/awb", mock.Anything).
		Return(nil, &carriers.APIError{StatusCode: 400, Body: `{"message":"Current AWB OLD999 is already active"}`})
	mockShipments.On("Update", mock.AnythingOfType("*models.Shipment")).Return(nil)

	result, err := service.AssignAWB(ctx, order.ID, "")

	assert.NoError(t, err)
	assert.Equal(t, "OLD999", result.AWB)
	mockNotifier.AssertNotCalled(t, "SendTrackingEmail", mock.Anything, mock.Anything)
}

func TestAssignAWB_UnsalvageableFailure(t *testing.T) {
	ctx := context.Background()
	order := createTestOrder()
	shipment := createTestShipment(order.ID)

	mockShipments := new(MockShipmentRepository)
	mockCarrier := new(MockCarrierClient)
	service := newTestShipmentService(mockShipments, new(MockOrderRepository), mockCarrier, new(MockNotifier))

	mockShipments.On("GetByOrderID", order.ID).Return(shipment, nil)
	mockCarrier.On("Call", mock.Anything, "POST", "/v1/external/courier/assign/awb", mock.Anything).
		Return(nil, &carriers.APIError{StatusCode: 400, Body: `{"message":"wallet balance insufficient"}`})
	mockShipments.On("Update", mock.AnythingOfType("*models.Shipment")).Return(nil).Once()

	result, err := service.AssignAWB(ctx, order.ID, "")

	assert.Nil(t, result)
	assert.Equal(t, apperrors.KindCarrier, apperrors.KindOf(err))
	// The raw error body is still persisted for later reconciliation.
	assert.NotEmpty(t, shipment.RawResponse)
	mockShipments.AssertExpectations(t)
}

func TestAssignAWB_MissingShipmentID(t *testing.T) {
	ctx := context.Background()
	orderID := uuid.New()
	shipment := createTestShipment(orderID)
	shipment.CarrierShipmentID = ""

	mockShipments := new(MockShipmentRepository)
	mockCarrier := new(MockCarrierClient)
	service := newTestShipmentService(mockShipments, new(MockOrderRepository), mockCarrier, new(MockNotifier))

	mockShipments.On("GetByOrderID", orderID).Return(shipment, nil)

	_, err := service.AssignAWB(ctx, orderID, "")

	assert.Equal(t, apperrors.KindPrecondition, apperrors.KindOf(err))
	mockCarrier.AssertNotCalled(t, "Call", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateLabel_Success(t *testing.T) {
	ctx := context.Background()
	orderID := uuid.New()
	shipment := createTestShipment(orderID)
	shipment.AWB = "AWB777"
	shipment.Status = models.ShipmentStatusAWBAssigned

	mockShipments := new(MockShipmentRepository)
	mockCarrier := new(MockCarrierClient)
	service := newTestShipmentService(mockShipments, new(MockOrderRepository), mockCarrier, new(MockNotifier))

	mockShipments.On("GetByOrderID", orderID).Return(shipment, nil)
	mockCarrier.On("Call", mock.Anything, "POST", "/v1/external/courier/generate/label", mock.Anything).
		Return(map[string]interface{}{"label_created": json.Number("1"), "label_url": "https://cdn.example.com/label.pdf"}, nil)
	mockShipments.On("Update", mock.AnythingOfType("*models.Shipment")).Return(nil)

	result, err := service.GenerateLabel(ctx, orderID)

	assert.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/label.pdf", result.LabelURL)
	assert.Equal(t, models.ShipmentStatusLabelGenerated, result.Status)
}

func TestGenerateLabel_CancelledShipmentRejected(t *testing.T) {
	ctx := context.Background()
	orderID := uuid.New()
	shipment := createTestShipment(orderID)
	shipment.Status = models.ShipmentStatusCancelled

	mockShipments := new(MockShipmentRepository)
	mockCarrier := new(MockCarrierClient)
	service := newTestShipmentService(mockShipments, new(MockOrderRepository), mockCarrier, new(MockNotifier))

	mockShipments.On("GetByOrderID", orderID).Return(shipment, nil)

	_, err := service.GenerateLabel(ctx, orderID)

	assert.Equal(t, apperrors.KindPrecondition, apperrors.KindOf(err))
	mockCarrier.AssertNotCalled(t, "Call", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCancel_NoCarrierIdentifiers(t *testing.T) {
	ctx := context.Background()
	orderID := uuid.New()
	shipment := createTestShipment(orderID)
	shipment.CarrierOrderID = ""
	shipment.CarrierShipmentID = ""

	mockShipments := new(MockShipmentRepository)
	mockCarrier := new(MockCarrierClient)
	service := newTestShipmentService(mockShipments, new(MockOrderRepository), mockCarrier, new(MockNotifier))

	mockShipments.On("GetByOrderID", orderID).Return(shipment, nil)

	_, err := service.Cancel(ctx, orderID)

	assert.Equal(t, apperrors.KindPrecondition, apperrors.KindOf(err))
	mockCarrier.AssertNotCalled(t, "Call", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCancel_Success_CancelsOrderAndNotifies(t *testing.T) {
	ctx := context.Background()
	order := createTestOrder()
	shipment := createTestShipment(order.ID)

	mockShipments := new(MockShipmentRepository)
	mockOrders := new(MockOrderRepository)
	mockCarrier := new(MockCarrierClient)
	mockNotifier := new(MockNotifier)
	service := newTestShipmentService(mockShipments, mockOrders, mockCarrier, mockNotifier)

	mockShipments.On("GetByOrderID", order.ID).Return(shipment, nil)
	mockCarrier.On("Call", mock.Anything, "POST", "/v1/external/orders/cancel", mock.Anything).
		Return(map[string]interface{}{"message": "Order cancelled successfully"}, nil)
	mockShipments.On("Update", mock.AnythingOfType("*models.Shipment")).Return(nil)
	mockOrders.On("GetByID", order.ID).Return(order, nil)
	mockOrders.On("UpdateStatus", order.ID, models.OrderStatusCancelled).Return(nil).Once()
	mockNotifier.On("SendCancellationEmail", mock.Anything, mock.Anything).Return(nil).Once()

	result, err := service.Cancel(ctx, order.ID)

	assert.NoError(t, err)
	assert.Equal(t, models.ShipmentStatusCancelled, result.Status)
	mockOrders.AssertExpectations(t)
	mockNotifier.AssertExpectations(t)
}

func TestCancel_TerminalOrderKeepsStatus(t *testing.T) {
	ctx := context.Background()
	order := createTestOrder()
	order.Status = models.OrderStatusDelivered
	shipment := createTestShipment(order.ID)
	shipment.CarrierOrderID = ""

	mockShipments := new(MockShipmentRepository)
	mockOrders := new(MockOrderRepository)
	mockCarrier := new(MockCarrierClient)
	mockNotifier := new(MockNotifier)
	service := newTestShipmentService(mockShipments, mockOrders, mockCarrier, mockNotifier)

	mockShipments.On("GetByOrderID", order.ID).Return(shipment, nil)
	mockCarrier.On("Call", mock.Anything, "POST", "/v1/external/orders/cancel/shipment/"+shipment.CarrierShipmentID, mock.Anything).
		Return(map[string]interface{}{"message": "Shipment cancelled"}, nil)
	mockShipments.On("Update", mock.AnythingOfType("*models.Shipment")).Return(nil)
	mockOrders.On("GetByID", order.ID).Return(order, nil)
	mockNotifier.On("SendCancellationEmail", mock.Anything, mock.Anything).Return(nil).Once()

	result, err := service.Cancel(ctx, order.ID)

	assert.NoError(t, err)
	assert.Equal(t, models.ShipmentStatusCancelled, result.Status)
	mockOrders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything)
}

func TestCancel_AlreadyCancelledIsNoop(t *testing.T) {
	ctx := context.Background()
	orderID := uuid.New()
	shipment := createTestShipment(orderID)
	shipment.Status = models.ShipmentStatusCancelled

	mockShipments := new(MockShipmentRepository)
	mockCarrier := new(MockCarrierClient)
	service := newTestShipmentService(mockShipments, new(MockOrderRepository), mockCarrier, new(MockNotifier))

	mockShipments.On("GetByOrderID", orderID).Return(shipment, nil)

	result, err := service.Cancel(ctx, orderID)

	assert.NoError(t, err)
	assert.Equal(t, shipment, result)
	mockCarrier.AssertNotCalled(t, "Call", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTrack_NoAWB(t *testing.T) {
	ctx := context.Background()
	orderID := uuid.New()
	shipment := createTestShipment(orderID)

	mockShipments := new(MockShipmentRepository)
	mockCarrier := new(MockCarrierClient)
	service := newTestShipmentService(mockShipments, new(MockOrderRepository), mockCarrier, new(MockNotifier))

	mockShipments.On("GetByOrderID", orderID).Return(shipment, nil)

	_, err := service.Track(ctx, orderID)

	assert.Equal(t, apperrors.KindPrecondition, apperrors.KindOf(err))
	mockCarrier.AssertNotCalled(t, "Call", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTrack_NormalizesNumericStatus(t *testing.T) {
	ctx := context.Background()
	orderID := uuid.New()
	shipment := createTestShipment(orderID)
	shipment.AWB = "AWB777"
	shipment.Status = models.ShipmentStatusLabelGenerated

	mockShipments := new(MockShipmentRepository)
	mockCarrier := new(MockCarrierClient)
	service := newTestShipmentService(mockShipments, new(MockOrderRepository), mockCarrier, new(MockNotifier))

	mockShipments.On("GetByOrderID", orderID).Return(shipment, nil)
	mockCarrier.On("Call", mock.Anything, "GET", "/v1/external/courier/track/awb/AWB777", nil).
		Return(map[string]interface{}{
			"tracking_data": map[string]interface{}{
				"shipment_track": []interface{}{
					map[string]interface{}{"current_status": "7", "courier_name": "Delhivery"},
				},
				"track_url": "https://track.example.com/AWB777",
			},
		}, nil)
	mockShipments.On("Update", mock.AnythingOfType("*models.Shipment")).Return(nil)

	result, err := service.Track(ctx, orderID)

	assert.NoError(t, err)
	assert.Equal(t, models.ShipmentStatus("Delivered"), result.Status)
	assert.Equal(t, "https://track.example.com/AWB777", result.TrackingURL)
	assert.Equal(t, "Delhivery", result.CourierName)
}

func TestTrack_CoalesceKeepsKnownCourier(t *testing.T) {
	ctx := context.Background()
	orderID := uuid.New()
	shipment := createTestShipment(orderID)
	shipment.AWB = "AWB777"
	shipment.CourierName = "Delhivery"
	shipment.TrackingURL = "https://track.example.com/AWB777"

	mockShipments := new(MockShipmentRepository)
	mockCarrier := new(MockCarrierClient)
	service := newTestShipmentService(mockShipments, new(MockOrderRepository), mockCarrier, new(MockNotifier))

	mockShipments.On("GetByOrderID", orderID).Return(shipment, nil)
	mockCarrier.On("Call", mock.Anything, "GET", "/v1/external/courier/track/awb/AWB777", nil).
		Return(map[string]interface{}{
			"tracking_data": map[string]interface{}{
				"shipment_track": []interface{}{
					map[string]interface{}{"current_status": "In Transit"},
				},
			},
		}, nil)
	mockShipments.On("Update", mock.AnythingOfType("*models.Shipment")).Return(nil)

	result, err := service.Track(ctx, orderID)

	assert.NoError(t, err)
	assert.Equal(t, models.ShipmentStatus("In Transit"), result.Status)
	assert.Equal(t, "Delhivery", result.CourierName)
	assert.Equal(t, "https://track.example.com/AWB777", result.TrackingURL)
}
