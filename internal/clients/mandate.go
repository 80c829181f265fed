package clients

import (
	"context"
	"net/http"
	"time"

	"mandate-reconciler/internal/domain"
)

// MandateClient issues mandate cancel / opt-out requests and forwards payment
// execution callbacks to the orchestrator.
type MandateClient struct {
	api httpAPI
}

func NewMandateClient(baseURL string, timeout time.Duration) *MandateClient {
	return &MandateClient{api: newHTTPAPI(baseURL, "orchestrator", timeout)}
}

// Cancel records a formal mandate cancellation for the resolved proposal.
func (c *MandateClient) Cancel(ctx context.Context, id domain.ProposalID, reason string) error {
	payload := map[string]any{
		"proposal_id": id,
		"reason":      reason,
	}
	status, body, err := c.api.postJSON(ctx, "/motororchestrator/api/v1/renewals/mandate/cancel", payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return &domain.UpstreamError{Service: "orchestrator", Status: status, Body: string(body)}
	}
	return nil
}

// OptOut withdraws mandate consent for a schedule reference. The opt-out
// endpoint takes the raw reference in its proposal_id field.
func (c *MandateClient) OptOut(ctx context.Context, ref domain.ProposalRef) error {
	payload := map[string]any{
		"proposal_id": ref,
		"consent":     true,
	}
	status, body, err := c.api.postJSON(ctx, "/motororchestrator/api/v1/renewals/mandate/opt-out", payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return &domain.UpstreamError{Service: "orchestrator", Status: status, Body: string(body)}
	}
	return nil
}

// ForwardPaymentCallback relays a payment-execution payload untouched.
func (c *MandateClient) ForwardPaymentCallback(ctx context.Context, raw []byte) error {
	status, body, err := c.api.postRaw(ctx, "/motororchestrator/api/v1/callbacks/payment/v2", raw)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return &domain.UpstreamError{Service: "orchestrator", Status: status, Body: string(body)}
	}
	return nil
}
