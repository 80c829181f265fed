package clients

import (
	"context"
	"net/http"
	"time"

	"mandate-reconciler/internal/domain"
)

// EventBusClient publishes domain events to r2d2. Callers decide whether a
// failed publish matters; this client just reports it.
type EventBusClient struct {
	api httpAPI
	app string
}

func NewEventBusClient(baseURL, app string, timeout time.Duration) *EventBusClient {
	return &EventBusClient{
		api: newHTTPAPI(baseURL, "r2d2", timeout),
		app: app,
	}
}

// PricingChanged emits a mandate_pricing_change event carrying the schedule
// reference and the refreshed premium.
func (c *EventBusClient) PricingChanged(ctx context.Context, ref domain.ProposalRef, premium domain.Premium) error {
	payload := map[string]any{
		"oid":   ref,
		"okind": "auto_proposal",
		"ekind": "mandate_pricing_change",
		"odata": map[string]any{},
		"edata": map[string]any{
			"proposal_ekey": ref,
			"gross_premium": premium.GrossPremium,
			"net_premium":   premium.NetPremium,
			"gst":           premium.GST,
		},
		"user_id": 0,
		"app":     c.app,
	}

	status, body, err := c.api.postJSON(ctx, "/internal/api/r2d2/", payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return &domain.UpstreamError{Service: "r2d2", Status: status, Body: string(body)}
	}
	return nil
}
