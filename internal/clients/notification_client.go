// Package clients provides HTTP clients for service-to-service communication.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Notifier sends customer-facing shipment emails. Delivery is fire-and-forget
// from the caller's perspective: errors are returned for logging but must
// never fail the triggering operation.
type Notifier interface {
	SendTrackingEmail(ctx context.Context, n TrackingNotification) error
	SendCancellationEmail(ctx context.Context, n CancellationNotification) error
}

// TrackingNotification is sent when a shipment gains a new tracking number.
type TrackingNotification struct {
	OrderID       string `json:"orderId"`
	OrderNumber   string `json:"orderNumber"`
	CustomerEmail string `json:"customerEmail"`
	CustomerName  string `json:"customerName"`
	AWB           string `json:"awb"`
	CourierName   string `json:"courierName,omitempty"`
	TrackingURL   string `json:"trackingUrl,omitempty"`
}

// CancellationNotification is sent when a shipment is cancelled.
type CancellationNotification struct {
	OrderID       string `json:"orderId"`
	OrderNumber   string `json:"orderNumber"`
	CustomerEmail string `json:"customerEmail"`
	CustomerName  string `json:"customerName"`
}

// notificationRequest is the payload sent to the notification-service API.
type notificationRequest struct {
	Channel        string                 `json:"channel"`
	RecipientEmail string                 `json:"recipientEmail"`
	Subject        string                 `json:"subject"`
	TemplateName   string                 `json:"templateName"`
	Variables      map[string]interface{} `json:"variables"`
}

// NotificationClient sends emails via the notification-service API.
type NotificationClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewNotificationClient creates a notification client against the given
// notification-service base URL.
func NewNotificationClient(baseURL string) *NotificationClient {
	return &NotificationClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SendTrackingEmail sends the tracking-available email for a shipment.
func (c *NotificationClient) SendTrackingEmail(ctx context.Context, n TrackingNotification) error {
	req := notificationRequest{
		Channel:        "EMAIL",
		RecipientEmail: n.CustomerEmail,
		Subject:        fmt.Sprintf("Your order %s has shipped", n.OrderNumber),
		TemplateName:   "shipment_tracking",
		Variables: map[string]interface{}{
			"customerName": n.CustomerName,
			"orderNumber":  n.OrderNumber,
			"awb":          n.AWB,
			"courierName":  n.CourierName,
			"trackingUrl":  n.TrackingURL,
		},
	}

	return c.sendNotification(ctx, req)
}

// SendCancellationEmail sends the shipment-cancelled email for a shipment.
func (c *NotificationClient) SendCancellationEmail(ctx context.Context, n CancellationNotification) error {
	req := notificationRequest{
		Channel:        "EMAIL",
		RecipientEmail: n.CustomerEmail,
		Subject:        fmt.Sprintf("Your order %s has been cancelled", n.OrderNumber),
		TemplateName:   "shipment_cancelled",
		Variables: map[string]interface{}{
			"customerName": n.CustomerName,
			"orderNumber":  n.OrderNumber,
		},
	}

	return c.sendNotification(ctx, req)
}

// sendNotification posts the request to the notification service.
func (c *NotificationClient) sendNotification(ctx context.Context, payload notificationRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/notifications", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notification service returned status %d", resp.StatusCode)
	}

	return nil
}
