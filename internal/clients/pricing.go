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

// PricingClient reads the latest selected plan for a proposal and runs the
// orchestrator's server-side mandate-data validation.
type PricingClient struct {
	api     httpAPI
	appName string
}

func NewPricingClient(baseURL, appName string, timeout time.Duration) *PricingClient {
	return &PricingClient{
		api:     newHTTPAPI(baseURL, "orchestrator", timeout),
		appName: appName,
	}
}

type planDetailsResponse struct {
	SelectedPlan *struct {
		Price struct {
			GrossPremium float64 `json:"gross_premium"`
			NetPremium   float64 `json:"net_premium"`
			GST          struct {
				GST float64 `json:"gst"`
			} `json:"gst"`
		} `json:"price"`
	} `json:"selected_plan"`
}

// LatestPremium fetches the currently selected plan's price for the proposal
// reference. Returns nil when no plan is selected; the caller decides what an
// unavailable premium means. Note the endpoint takes the raw reference, not a
// resolved proposal id.
func (c *PricingClient) LatestPremium(ctx context.Context, ref domain.ProposalRef) (*domain.Premium, error) {
	path := fmt.Sprintf("/motororchestrator/internal/api/v2/proposals/%s/plans/details", url.PathEscape(string(ref)))
	query := url.Values{"proposal_ekey": {string(ref)}}

	status, body, err := c.api.get(ctx, path, query, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &domain.UpstreamError{Service: "orchestrator", Status: status, Body: string(body)}
	}

	var resp planDetailsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("orchestrator: decode plan details: %w", err)
	}
	if resp.SelectedPlan == nil {
		return nil, nil
	}
	return &domain.Premium{
		GrossPremium: resp.SelectedPlan.Price.GrossPremium,
		NetPremium:   resp.SelectedPlan.Price.NetPremium,
		GST:          resp.SelectedPlan.Price.GST.GST,
	}, nil
}

// ValidateMandate asks the orchestrator whether the proposal's mandate data is
// still valid. Only an exact 200 counts as valid; any other status means the
// mandate is not chargeable.
func (c *PricingClient) ValidateMandate(ctx context.Context, id domain.ProposalID) (bool, error) {
	query := url.Values{"proposal_id": {string(id)}}
	header := http.Header{"X-App-Name": {c.appName}}

	status, _, err := c.api.get(ctx, "/motororchestrator/internal/api/v1/renewals/proposal/validate-mandate-data", query, header)
	if err != nil {
		return false, err
	}
	return status == http.StatusOK, nil
}
