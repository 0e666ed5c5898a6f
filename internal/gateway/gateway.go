// Package gateway submits regulatory filings to the BSA e-filing
// gateway. The filing service retries transient failures on its own
// schedule, so the client reports them without retrying.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/banking/compliance-service/internal/domain"
	"github.com/banking/compliance-service/internal/pkg/errs"
)

// Client is an HTTP client for the regulator's filing endpoint
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a filing gateway client
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type submitRequest struct {
	FilingNumber string    `json:"filing_number"`
	FilingType   string    `json:"filing_type"`
	EntityID     string    `json:"entity_id"`
	TotalAmount  string    `json:"total_amount"`
	Currency     string    `json:"currency"`
	Narrative    string    `json:"narrative,omitempty"`
	DetectedAt   time.Time `json:"detected_at"`
	Transactions []string  `json:"transactions,omitempty"`
}

type submitResponse struct {
	ConfirmationNumber string `json:"confirmation_number"`
	Accepted           bool   `json:"accepted"`
	Reason             string `json:"reason,omitempty"`
}

// Submit files the report and returns the regulator's confirmation
// number. 5xx and network failures are transient; a rejection is a
// business error the automated path must not retry blindly.
func (c *Client) Submit(ctx context.Context, f *domain.RegulatoryFiling) (string, error) {
	txIDs := make([]string, 0, len(f.TransactionIDs))
	for _, id := range f.TransactionIDs {
		txIDs = append(txIDs, id.String())
	}

	payload, err := json.Marshal(submitRequest{
		FilingNumber: f.FilingNumber,
		FilingType:   string(f.FilingType),
		EntityID:     f.EntityID,
		TotalAmount:  f.TotalAmount.String(),
		Currency:     f.Currency,
		Narrative:    f.Narrative,
		DetectedAt:   f.DetectedAt,
		Transactions: txIDs,
	})
	if err != nil {
		return "", errs.Data("gateway.Submit", err)
	}

	endpoint := c.baseURL + "/api/v1/filings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", errs.Data("gateway.Submit", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errs.Transient("gateway.Submit", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", errs.Transient("gateway.Submit",
			fmt.Errorf("gateway returned %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", errs.Data("gateway.Submit",
			fmt.Errorf("gateway returned %d", resp.StatusCode))
	}

	var body submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", errs.Data("gateway.Submit", fmt.Errorf("decode response: %w", err))
	}
	if !body.Accepted {
		return "", errs.Business("gateway.Submit",
			fmt.Errorf("filing rejected: %s", body.Reason))
	}
	return body.ConfirmationNumber, nil
}
