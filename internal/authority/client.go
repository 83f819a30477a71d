// Package authority is the REST client for the external invoicing system —
// the source of truth for customer profiles and for which invoice numbers
// are already taken. A Client is built per billing run: acquire a
// short-lived token, use it, discard the client with the run.
package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"ConciliaMayorista/internal/billing"
)

type Config struct {
	BaseURL   string
	Username  string
	AccessKey string
	PartnerID string
	Timeout   time.Duration
}

// ConfigFromEnv reads the authority connection settings the same way the
// rest of the process reads its env config.
func ConfigFromEnv() Config {
	timeout := 30 * time.Second
	if s := os.Getenv("AUTHORITY_TIMEOUT_SECONDS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			timeout = time.Duration(n) * time.Second
		}
	}
	return Config{
		BaseURL:   strings.TrimRight(os.Getenv("AUTHORITY_BASE_URL"), "/"),
		Username:  os.Getenv("AUTHORITY_USERNAME"),
		AccessKey: os.Getenv("AUTHORITY_ACCESS_KEY"),
		PartnerID: os.Getenv("AUTHORITY_PARTNER_ID"),
		Timeout:   timeout,
	}
}

type Client struct {
	cfg   Config
	httpc *http.Client
	token string
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:   cfg,
		httpc: &http.Client{Timeout: cfg.Timeout},
	}
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Errors []apiError `json:"errors"`
}

// Authenticate exchanges the account credentials for a short-lived bearer
// token. Calls that need a token fetch one lazily, so callers normally never
// invoke this directly.
func (c *Client) Authenticate(ctx context.Context) error {
	body, _ := json.Marshal(map[string]string{
		"username":   c.cfg.Username,
		"access_key": c.cfg.AccessKey,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/auth", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("authority auth request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("authority auth rejected: %s", readAPIError(resp))
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.AccessToken == "" {
		return fmt.Errorf("authority auth response malformed: %v", err)
	}
	c.token = out.AccessToken
	return nil
}

func (c *Client) ensureToken(ctx context.Context) error {
	if c.token != "" {
		return nil
	}
	return c.Authenticate(ctx)
}

func (c *Client) newRequest(ctx context.Context, method, path string, payload interface{}) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	if c.cfg.PartnerID != "" {
		req.Header.Set("Partner-Id", c.cfg.PartnerID)
	}
	return req, nil
}

// FindCustomer reports whether a customer with the given identification
// already exists at the authority.
func (c *Client) FindCustomer(ctx context.Context, identification string) (bool, error) {
	if err := c.ensureToken(ctx); err != nil {
		return false, err
	}
	path := "/v1/customers?identification=" + url.QueryEscape(identification)
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build customer lookup: %w", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return false, fmt.Errorf("customer lookup request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("customer lookup rejected: %s", readAPIError(resp))
	}
	var out struct {
		Results []struct {
			Identification string `json:"identification"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("customer lookup response malformed: %w", err)
	}
	return len(out.Results) > 0, nil
}

// CreateCustomer registers the counterpart profile for a client that does
// not yet exist at the authority.
func (c *Client) CreateCustomer(ctx context.Context, p billing.ClientBillingProfile) error {
	if err := c.ensureToken(ctx); err != nil {
		return err
	}
	payload := map[string]interface{}{
		"identification": p.Identification,
		"name":           []string{p.FirstName, p.LastName},
		"address": map[string]interface{}{
			"address": p.Address,
			"city": map[string]string{
				"country_code": p.CountryCode,
				"state_code":   p.StateCode,
				"city_code":    p.CityCode,
			},
		},
		"phones": []map[string]string{{"number": p.Phone}},
		"contacts": []map[string]string{{
			"first_name": p.FirstName,
			"last_name":  p.LastName,
			"email":      p.Email,
		}},
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/v1/customers", payload)
	if err != nil {
		return fmt.Errorf("failed to build customer creation: %w", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("customer creation request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("customer creation rejected: %s", readAPIError(resp))
	}
	return nil
}

// CreateInvoice submits one invoice with its pre-allocated number. The
// outcome is tagged so the allocator's branching stays exhaustive: conflicts
// over the number are the only retryable rejection.
func (c *Client) CreateInvoice(ctx context.Context, draft billing.InvoiceDraft) billing.IssueResult {
	if err := c.ensureToken(ctx); err != nil {
		return billing.IssueResult{Status: billing.IssueTransportError, Reason: err.Error()}
	}

	total := draft.Split.Total()
	payload := map[string]interface{}{
		"document":     map[string]int64{"id": draft.DocumentTypeID},
		"date":         draft.Date.Format("2006-01-02"),
		"number":       draft.Number,
		"customer":     map[string]interface{}{"identification": draft.CustomerID, "branch_office": 0},
		"seller":       draft.SellerID,
		"observations": draft.Observations,
		"items": []map[string]interface{}{
			{
				"code":        draft.BaseItemCode,
				"description": "Recaudo a terceros",
				"quantity":    1,
				"price":       draft.Split.Base.InexactFloat64(),
			},
			{
				"code":        draft.FeeItemCode,
				"description": "Comision por recaudo",
				"quantity":    1,
				"price":       draft.Split.CommissionBase.InexactFloat64(),
				"taxes":       []map[string]int64{{"id": draft.TaxID}},
			},
		},
		"payments": []map[string]interface{}{{
			"id":       draft.PaymentMeansID,
			"value":    total.InexactFloat64(),
			"due_date": draft.Date.Format("2006-01-02"),
		}},
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/v1/invoices", payload)
	if err != nil {
		return billing.IssueResult{Status: billing.IssueTransportError, Reason: err.Error()}
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return billing.IssueResult{Status: billing.IssueTransportError, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		var out struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			// The invoice was created; a body we cannot parse only costs us
			// the authority-side reference.
			return billing.IssueResult{Status: billing.IssueAccepted}
		}
		return billing.IssueResult{Status: billing.IssueAccepted, InvoiceRef: out.ID}
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var env errorEnvelope
	_ = json.Unmarshal(raw, &env)
	reason := strings.TrimSpace(string(raw))
	for _, e := range env.Errors {
		reason = e.Message
		if isNumberConflict(e) {
			return billing.IssueResult{Status: billing.IssueConflict, Reason: e.Message}
		}
	}
	if resp.StatusCode >= 500 {
		return billing.IssueResult{Status: billing.IssueTransportError, Reason: fmt.Sprintf("authority error %d: %s", resp.StatusCode, reason)}
	}
	return billing.IssueResult{Status: billing.IssueRejected, Reason: fmt.Sprintf("authority rejected invoice: %s", reason)}
}

// isNumberConflict prefers the structured error code; the message substrings
// are a compatibility shim for authority versions that only return prose.
func isNumberConflict(e apiError) bool {
	if e.Code == "already_exists" || e.Code == "invoice_number_in_use" {
		return true
	}
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "ya existe")
}

// ListInvoices returns one page of issued invoice numbers. Only the
// allocator's seeding scan uses this.
func (c *Client) ListInvoices(ctx context.Context, page, pageSize int) (billing.InvoicePage, error) {
	if err := c.ensureToken(ctx); err != nil {
		return billing.InvoicePage{}, err
	}
	path := fmt.Sprintf("/v1/invoices?page=%d&page_size=%d", page, pageSize)
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return billing.InvoicePage{}, fmt.Errorf("failed to build invoice listing: %w", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return billing.InvoicePage{}, fmt.Errorf("invoice listing request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return billing.InvoicePage{}, fmt.Errorf("invoice listing rejected: %s", readAPIError(resp))
	}
	var out struct {
		Pagination struct {
			TotalResults int `json:"total_results"`
		} `json:"pagination"`
		Results []struct {
			Number int64 `json:"number"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return billing.InvoicePage{}, fmt.Errorf("invoice listing response malformed: %w", err)
	}
	p := billing.InvoicePage{HasMore: page*pageSize < out.Pagination.TotalResults}
	for _, r := range out.Results {
		p.Numbers = append(p.Numbers, r.Number)
	}
	return p, nil
}

func readAPIError(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Errors) > 0 {
		return fmt.Sprintf("%d %s", resp.StatusCode, env.Errors[0].Message)
	}
	return fmt.Sprintf("%d %s", resp.StatusCode, strings.TrimSpace(string(raw)))
}
