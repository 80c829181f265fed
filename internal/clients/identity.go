package clients

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mandate-reconciler/internal/domain"
)

// IdentityClient exchanges encrypted reference keys for canonical internal
// identifiers via the consumer service.
type IdentityClient struct {
	api httpAPI
}

func NewIdentityClient(baseURL string, timeout time.Duration) *IdentityClient {
	return &IdentityClient{api: newHTTPAPI(baseURL, "identity service", timeout)}
}

// Resolve decrypts ref within the given entity-table scope. The service
// replies with the plain-text internal id on 200.
func (c *IdentityClient) Resolve(ctx context.Context, ref domain.ProposalRef, table string) (domain.ProposalID, error) {
	query := url.Values{
		"ekey": {string(ref)},
		"tn":   {table},
	}
	status, body, err := c.api.get(ctx, "/admin/api/v1/ekey/dec", query, nil)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", &domain.UpstreamError{Service: "identity service", Status: status, Body: string(body)}
	}
	return domain.ProposalID(strings.TrimSpace(string(body))), nil
}
