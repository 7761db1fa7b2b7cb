package client

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/authclient/health"
)

// DefaultExpiryMargin is how close to expiry a credential is reported as
// degraded.
const DefaultExpiryMargin = time.Minute

// CredentialChecker reports on the client's stored credential.
//
//   - unhealthy: nothing stored, or the store cannot be read
//   - degraded: a refresh is in flight, or the access token expires within
//     the margin (the next request will refresh it)
//   - healthy: otherwise, including when the expiry is unknown
type CredentialChecker struct {
	client *Client
	margin time.Duration
	now    func() time.Time
}

// NewCredentialChecker creates a checker for c. A non-positive margin uses
// DefaultExpiryMargin.
func NewCredentialChecker(c *Client, margin time.Duration) *CredentialChecker {
	if margin <= 0 {
		margin = DefaultExpiryMargin
	}
	return &CredentialChecker{client: c, margin: margin, now: c.now}
}

// Name returns "credential".
func (k *CredentialChecker) Name() string {
	return "credential"
}

// Check inspects the stored credential.
func (k *CredentialChecker) Check(ctx context.Context) health.Result {
	pair, err := k.client.Credential(ctx)
	if err != nil {
		return health.Unhealthy("no usable credential; log in", err)
	}

	details := map[string]any{"state": k.client.State().String()}
	if k.client.State() == StateRefreshing {
		details["pending"] = k.client.Pending()
		return health.Degraded("credential refresh in progress").WithDetails(details)
	}

	storedAt, _ := k.client.StoredAt()
	expiry := pair.Expiry(storedAt)
	if expiry.IsZero() {
		return health.Healthy("credential present, expiry unknown").WithDetails(details)
	}

	now := k.now()
	remaining := expiry.Sub(now)
	details["expiresAt"] = expiry.UTC().Format(time.RFC3339)
	details["expiresIn"] = remaining.Round(time.Second).String()

	switch {
	case remaining <= 0:
		return health.Degraded("access token expired; next request refreshes it").WithDetails(details)
	case remaining <= k.margin:
		return health.Degraded(fmt.Sprintf("access token expires within %s", k.margin)).WithDetails(details)
	default:
		return health.Healthy("credential valid").WithDetails(details)
	}
}

var _ health.Checker = (*CredentialChecker)(nil)
