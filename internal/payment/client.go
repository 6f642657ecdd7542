package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"memberhub/internal/status"
)

// ContactFields are the locally cached contact details the confirmation
// endpoint expects alongside the provider identifiers.
type ContactFields struct {
	Name  string
	Phone string
	Email string
}

type Client struct {
	// baseURL is the base url of the association backend.
	baseURL string

	// returnPath is the hosted checkout's return redirect path.
	returnPath string

	// hc is the http client.
	hc *http.Client
}

func NewClient(baseURL, returnPath string) *Client {
	return &Client{
		baseURL:    baseURL,
		returnPath: returnPath,
		hc: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Match applies the client's configured return pattern to a navigation URL.
func (c *Client) Match(u *url.URL) (*ReturnParams, bool) {
	return MatchReturnURL(u, c.returnPath)
}

// Confirm forwards the provider identifiers, the echoed original query
// parameters and the cached contact fields to the backend confirmation
// endpoint. Any non-2xx or undecodable reply surfaces as a typed error; no
// retry is attempted.
func (c *Client) Confirm(ctx context.Context, p *ReturnParams, contact ContactFields) (*status.Confirmation, error) {
	form := url.Values{}
	for k, vs := range p.Echo {
		for _, v := range vs {
			form.Add("echo_"+k, v)
		}
	}
	form.Set("transaction_id", p.TransactionID)
	form.Set("reference", p.Reference)
	form.Set("status", p.Status)
	form.Set("contact_name", contact.Name)
	form.Set("contact_phone", contact.Phone)
	form.Set("contact_email", contact.Email)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/payments/confirm", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("payment.Confirm: http.NewReq: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payment.Confirm: http.Do: %w: %w", status.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		rbody, _ := io.ReadAll(resp.Body)
		return nil, status.ServerError("payment.Confirm", resp.StatusCode, rbody)
	}

	var conf status.Confirmation
	if err := json.NewDecoder(resp.Body).Decode(&conf); err != nil {
		return nil, fmt.Errorf("payment.Confirm: json.Decode: %w: %w", status.ErrDecode, err)
	}
	if !conf.Settled() {
		return &conf, fmt.Errorf("payment.Confirm: status %q: %w", conf.Status, status.ErrPaymentNotConfirmed)
	}
	return &conf, nil
}
