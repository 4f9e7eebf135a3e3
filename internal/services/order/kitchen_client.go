package order

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kitchen-sync/internal/logger"
	"kitchen-sync/internal/models"
)

// KitchenClient is the ordering side's view of the kitchen service
type KitchenClient interface {
	CreateKitchenOrder(ctx context.Context, sourceOrderID, itemsJSON string) (*models.KitchenOrderResponse, error)
	GetByOrder(ctx context.Context, sourceOrderID string) ([]models.KitchenOrderResponse, error)
	CancelKitchenOrder(ctx context.Context, kitchenOrderID string) error
	UpdateKitchenStatus(ctx context.Context, kitchenOrderID, status string) (*models.KitchenStatusUpdateResponse, error)
}

// HTTPKitchenClient calls the kitchen REST API. Calls are never retried.
type HTTPKitchenClient struct {
	baseURL string
	client  *http.Client
	logger  *logger.Logger
}

func NewHTTPKitchenClient(baseURL string, timeout time.Duration, log *logger.Logger) *HTTPKitchenClient {
	return &HTTPKitchenClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  log,
	}
}

func (c *HTTPKitchenClient) CreateKitchenOrder(ctx context.Context, sourceOrderID, itemsJSON string) (*models.KitchenOrderResponse, error) {
	body := models.CreateKitchenOrderRequest{OrderID: sourceOrderID, ItemsJSON: itemsJSON}

	var resp models.KitchenOrderResponse
	if err := c.do(ctx, http.MethodPost, "/api/kitchen/orders", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPKitchenClient) GetByOrder(ctx context.Context, sourceOrderID string) ([]models.KitchenOrderResponse, error) {
	var resp []models.KitchenOrderResponse
	if err := c.do(ctx, http.MethodGet, "/api/kitchen/orders/by-order/"+url.PathEscape(sourceOrderID), nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *HTTPKitchenClient) CancelKitchenOrder(ctx context.Context, kitchenOrderID string) error {
	return c.do(ctx, http.MethodPost, "/api/kitchen/orders/"+url.PathEscape(kitchenOrderID)+"/cancel", nil, nil)
}

func (c *HTTPKitchenClient) UpdateKitchenStatus(ctx context.Context, kitchenOrderID, status string) (*models.KitchenStatusUpdateResponse, error) {
	body := models.UpdateKitchenStatusRequest{Status: status}

	var resp models.KitchenStatusUpdateResponse
	err := c.do(ctx, http.MethodPut, "/api/kitchen/orders/"+url.PathEscape(kitchenOrderID)+"/status", body, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPKitchenClient) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader = http.NoBody
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal kitchen request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build kitchen request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKitchenUnavailable, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("kitchen_request", fmt.Sprintf("%s %s - %d", method, path, resp.StatusCode), "", map[string]interface{}{
		"status_code": resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", ErrKitchenOrderNotFound, method, path)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrKitchenRejected, readErrorMessage(resp.Body))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: unexpected status %d", ErrKitchenUnavailable, resp.StatusCode)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: invalid response body: %v", ErrKitchenUnavailable, err)
	}
	return nil
}

func readErrorMessage(r io.Reader) string {
	var body struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(r, 64<<10))
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}
