package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"mandate-reconciler/internal/domain"
)

// PaymentPlanClient reads and mutates payment plans on the payment service.
type PaymentPlanClient struct {
	api httpAPI
}

func NewPaymentPlanClient(baseURL string, timeout time.Duration) *PaymentPlanClient {
	return &PaymentPlanClient{api: newHTTPAPI(baseURL, "payment service", timeout)}
}

// GetPlan fetches the full plan aggregate for a payments_plan_id.
func (c *PaymentPlanClient) GetPlan(ctx context.Context, planID string) (*domain.PaymentPlan, error) {
	path := fmt.Sprintf("/api/v1/payment-plans/%s", url.PathEscape(planID))
	status, body, err := c.api.get(ctx, path, nil, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &domain.UpstreamError{Service: "payment service", Status: status, Body: string(body)}
	}

	var plan domain.PaymentPlan
	if err := json.Unmarshal(body, &plan); err != nil {
		return nil, fmt.Errorf("payment service: decode plan %s: %w", planID, err)
	}
	return &plan, nil
}

// UpdatePlan pushes a partial plan update (the one modified schedule).
func (c *PaymentPlanClient) UpdatePlan(ctx context.Context, planID string, update *domain.PlanUpdate) error {
	path := fmt.Sprintf("/api/v1/payment-plans/%s/update", url.PathEscape(planID))
	status, body, err := c.api.postJSON(ctx, path, update)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return &domain.UpstreamError{Service: "payment service", Status: status, Body: string(body)}
	}
	return nil
}

// MandateStatus reads the mandate status from the instalment's transaction
// details.
func (c *PaymentPlanClient) MandateStatus(ctx context.Context, planID string, scheduleID, instalmentID int64) (string, error) {
	path := fmt.Sprintf("/api/v1/internal/payment-plans/%s/schedules/%d/instalments/%d/transaction-details",
		url.PathEscape(planID), scheduleID, instalmentID)

	status, body, err := c.api.get(ctx, path, nil, nil)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", &domain.UpstreamError{Service: "payment service", Status: status, Body: string(body)}
	}

	var resp struct {
		MandateStatus string `json:"mandate_status"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("payment service: decode transaction details: %w", err)
	}
	return resp.MandateStatus, nil
}
