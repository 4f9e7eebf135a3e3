package kitchen

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kitchen-sync/internal/logger"
)

// CallbackSecretHeader carries the shared secret on ready callbacks
const CallbackSecretHeader = "X-Callback-Secret"

// Notifier tells the ordering side that a kitchen order is ready
type Notifier interface {
	Notify(ctx context.Context, sourceOrderID, kitchenOrderID string)
}

// NopNotifier drops every notification
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, string) {}

// CallbackNotifier posts to a URL template with {orderId} and {kitchenOrderId}
// placeholders. Delivery is at most once; failures are only logged.
type CallbackNotifier struct {
	client      *http.Client
	urlTemplate string
	secret      string
	timeout     time.Duration
	logger      *logger.Logger
}

// NewCallbackNotifier creates a notifier. An empty template disables it.
func NewCallbackNotifier(client *http.Client, urlTemplate, secret string, timeout time.Duration, log *logger.Logger) *CallbackNotifier {
	if client == nil {
		client = &http.Client{}
	}
	return &CallbackNotifier{
		client:      client,
		urlTemplate: strings.TrimSpace(urlTemplate),
		secret:      secret,
		timeout:     timeout,
		logger:      log,
	}
}

func (n *CallbackNotifier) Enabled() bool {
	return n.urlTemplate != ""
}

func (n *CallbackNotifier) Notify(ctx context.Context, sourceOrderID, kitchenOrderID string) {
	if !n.Enabled() {
		return
	}

	requestID := logger.GenerateRequestID()
	fields := map[string]interface{}{
		"order_id":         sourceOrderID,
		"kitchen_order_id": kitchenOrderID,
	}

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	target := n.callbackURL(sourceOrderID, kitchenOrderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, http.NoBody)
	if err != nil {
		n.logger.Error("callback_failed", "Failed to build callback request", requestID, err, fields)
		return
	}
	if n.secret != "" {
		req.Header.Set(CallbackSecretHeader, n.secret)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Error("callback_failed", "Callback to ordering service failed", requestID, err, fields)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	fields["status_code"] = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		n.logger.Error("callback_rejected", "Ordering service rejected callback", requestID,
			fmt.Errorf("unexpected status %d", resp.StatusCode), fields)
		return
	}

	n.logger.Info("callback_sent", "Ready callback delivered", requestID, fields)
}

// callbackURL fills the template placeholders, escaping each for the part of
// the URL it sits in.
func (n *CallbackNotifier) callbackURL(sourceOrderID, kitchenOrderID string) string {
	base, query, hasQuery := strings.Cut(n.urlTemplate, "?")
	u := strings.NewReplacer(
		"{orderId}", url.PathEscape(sourceOrderID),
		"{kitchenOrderId}", url.PathEscape(kitchenOrderID),
	).Replace(base)
	if !hasQuery {
		return u
	}
	return u + "?" + strings.NewReplacer(
		"{orderId}", url.QueryEscape(sourceOrderID),
		"{kitchenOrderId}", url.QueryEscape(kitchenOrderID),
	).Replace(query)
}
