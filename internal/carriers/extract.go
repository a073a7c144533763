package carriers

import (
	"encoding/json"
	"strconv"
	"strings"
)

// The carrier places the same logical field at different JSON paths depending
// on endpoint and API version: directly on the root, under "data", under the
// first element of "data" when it is an array, or one level deeper under
// "data.data". Each logical field therefore has an ordered candidate list and
// extraction takes the first present, non-empty value.
var (
	AWBPaths = []string{
		"awb_code",
		"response.data.awb_code",
		"data.awb_code",
		"data.data.awb_code",
		"data.data.awb",
		"data.0.awb_code",
		"payload.awb_code",
		"awb",
	}

	CourierNamePaths = []string{
		"courier_name",
		"response.data.courier_name",
		"data.courier_name",
		"data.data.courier_name",
		"data.0.courier_name",
		"tracking_data.shipment_track.0.courier_name",
	}

	CourierIDPaths = []string{
		"courier_company_id",
		"response.data.courier_company_id",
		"data.courier_company_id",
		"data.data.courier_company_id",
	}

	CarrierOrderIDPaths = []string{
		"order_id",
		"data.order_id",
		"data.0.order_id",
		"data.data.order_id",
		"payload.order_id",
	}

	CarrierShipmentIDPaths = []string{
		"shipment_id",
		"data.shipment_id",
		"data.shipment.id",
		"data.0.shipment_id",
		"data.data.shipment_id",
		"payload.shipment_id",
	}

	StatusPaths = []string{
		"tracking_data.shipment_track.0.current_status",
		"tracking_data.current_status",
		"tracking_data.shipment_status",
		"data.status",
		"data.0.status",
		"status",
	}

	TrackingURLPaths = []string{
		"tracking_data.track_url",
		"data.tracking_url",
		"data.0.tracking_url",
		"tracking_url",
	}

	LabelURLPaths = []string{
		"label_url",
		"data.label_url",
		"response.label_url",
	}

	MessagePaths = []string{
		"message",
		"data.message",
		"errors.pickup_location.0",
	}
)

// Extract evaluates candidate paths in order against a decoded JSON document
// and returns the first value that is present and not an empty or whitespace
// string. It never panics on missing intermediate nodes; exhausting every
// candidate yields "", the caller's signal to keep the stored value.
func Extract(doc interface{}, paths ...string) string {
	for _, path := range paths {
		if v, ok := lookup(doc, path); ok {
			if s := stringify(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// AWBResult is the compound AWB+courier tuple extracted from an assignment
// response. Any element may be empty; callers tolerate partial tuples.
type AWBResult struct {
	AWB         string
	CourierName string
	CourierID   string
}

// ExtractAWB extracts the AWB tuple, each element via its own candidate list.
func ExtractAWB(doc interface{}) AWBResult {
	return AWBResult{
		AWB:         Extract(doc, AWBPaths...),
		CourierName: Extract(doc, CourierNamePaths...),
		CourierID:   Extract(doc, CourierIDPaths...),
	}
}

// Identifiers is the carrier order id + shipment id tuple.
type Identifiers struct {
	OrderID    string
	ShipmentID string
}

// ExtractIdentifiers extracts the carrier-assigned identifier tuple.
func ExtractIdentifiers(doc interface{}) Identifiers {
	return Identifiers{
		OrderID:    Extract(doc, CarrierOrderIDPaths...),
		ShipmentID: Extract(doc, CarrierShipmentIDPaths...),
	}
}

// TrackingResult is the status + tracking-url + courier tuple reported by the
// tracking and show endpoints.
type TrackingResult struct {
	Status      string
	TrackingURL string
	CourierName string
}

// ExtractTracking extracts the tracking tuple.
func ExtractTracking(doc interface{}) TrackingResult {
	return TrackingResult{
		Status:      Extract(doc, StatusPaths...),
		TrackingURL: Extract(doc, TrackingURLPaths...),
		CourierName: Extract(doc, CourierNamePaths...),
	}
}

// lookup walks one dot-separated path. Segments address object keys; a
// numeric segment indexes into an array. Missing nodes report !ok instead of
// panicking.
func lookup(doc interface{}, path string) (interface{}, bool) {
	current := doc
	for _, seg := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]interface{}:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			current = v
		case []interface{}:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// stringify renders a scalar leaf as a string. Containers and nulls are
// treated as absent.
func stringify(v interface{}) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
