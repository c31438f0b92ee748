package tuya

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/nerrad567/tuya-bridge/internal/bridge"
)

// pageSize is the device-list page size (the API maximum).
const pageSize = 100

// maxPages stops a pagination loop whose cursor never advances.
const maxPages = 1000

type deviceEntry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Online      bool   `json:"online"`
	Category    string `json:"category"`
	ProductName string `json:"product_name"`
}

// ListDevices returns every device linked to the cloud project, following
// the last_row_key cursor across pages.
func (c *Client) ListDevices(ctx context.Context) ([]bridge.Device, error) {
	var devices []bridge.Device
	lastRowKey := ""

	for page := 0; page < maxPages; page++ {
		query := url.Values{
			"size":         {strconv.Itoa(pageSize)},
			"last_row_key": {lastRowKey},
		}
		resp, err := c.call(ctx, http.MethodGet, "/v1.0/iot-01/associated-users/devices", query, nil)
		if err != nil {
			return nil, fmt.Errorf("listing devices: %w", err)
		}

		var result struct {
			Devices    []deviceEntry `json:"devices"`
			HasMore    bool          `json:"has_more"`
			LastRowKey string        `json:"last_row_key"`
		}
		if err := json.Unmarshal(resp.Result, &result); err != nil {
			return nil, fmt.Errorf("%w: decoding device list: %v", ErrRequestFailed, err)
		}

		for _, d := range result.Devices {
			devices = append(devices, bridge.Device{
				ID:          d.ID,
				Name:        d.Name,
				Online:      d.Online,
				Category:    d.Category,
				ProductName: d.ProductName,
			})
		}

		if !result.HasMore || result.LastRowKey == "" || result.LastRowKey == lastRowKey {
			return devices, nil
		}
		lastRowKey = result.LastRowKey
	}
	return devices, nil
}

// GetStatus returns the current data points of one device.
func (c *Client) GetStatus(ctx context.Context, deviceID string) (*bridge.Status, error) {
	resp, err := c.call(ctx, http.MethodGet, "/v1.0/iot-03/devices/"+url.PathEscape(deviceID)+"/status", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("status of %s: %w", deviceID, err)
	}

	var points []bridge.DataPoint
	if err := json.Unmarshal(resp.Result, &points); err != nil {
		return nil, fmt.Errorf("%w: decoding status of %s: %v", ErrRequestFailed, deviceID, err)
	}
	return &bridge.Status{Points: points, SourceTimestamp: resp.T}, nil
}

// SendCommand issues all items in one request.
//
// When the API answers, a result is returned even if it rejected the
// command; the error is then an *APIError. A nil result means the request
// did not complete.
func (c *Client) SendCommand(ctx context.Context, deviceID string, items []bridge.DataPoint) (*bridge.CommandResult, error) {
	body := struct {
		Commands []bridge.DataPoint `json:"commands"`
	}{Commands: items}

	resp, err := c.call(ctx, http.MethodPost, "/v1.0/iot-03/devices/"+url.PathEscape(deviceID)+"/commands", nil, body)
	if resp == nil {
		return nil, fmt.Errorf("command to %s: %w", deviceID, err)
	}

	result := &bridge.CommandResult{
		Success: resp.Success,
		Code:    resp.Code,
		Msg:     resp.Msg,
		Raw:     json.RawMessage(resp.body),
	}
	if err != nil {
		return result, fmt.Errorf("command to %s: %w", deviceID, err)
	}
	return result, nil
}
