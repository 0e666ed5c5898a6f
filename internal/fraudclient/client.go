// Package fraudclient calls the fraud detection service for an
// entity-level risk read. Used by the alert consumer to corroborate
// behavioral alerts before deciding on escalation.
package fraudclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/banking/compliance-service/internal/pkg/errs"
)

// Client is an HTTP client for the fraud detection service
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a fraud detection client
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type entityRiskResponse struct {
	EntityID  string  `json:"entity_id"`
	RiskScore float64 `json:"risk_score"`
	HighRisk  bool    `json:"high_risk"`
}

// EntityRiskScore returns the fraud service's current 0-100 score for
// the entity. Network and server failures are transient; a malformed
// body is a data error.
func (c *Client) EntityRiskScore(ctx context.Context, entityID string) (float64, error) {
	endpoint := fmt.Sprintf("%s/api/v1/entities/%s/risk", c.baseURL, url.PathEscape(entityID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, errs.Data("fraudclient.EntityRiskScore", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, errs.Transient("fraudclient.EntityRiskScore", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return 0, errs.Transient("fraudclient.EntityRiskScore",
			fmt.Errorf("fraud service returned %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return 0, errs.Data("fraudclient.EntityRiskScore",
			fmt.Errorf("fraud service returned %d", resp.StatusCode))
	}

	var body entityRiskResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, errs.Data("fraudclient.EntityRiskScore", fmt.Errorf("decode response: %w", err))
	}
	return body.RiskScore, nil
}
