// Package payment talks to the external payment authority (a hosted-checkout
// provider). The service never sees card data: it creates a checkout session
// carrying the cart snapshot as tamper-resistant metadata, redirects the
// customer, and later reads that metadata back when confirming the payment.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// LineItem is one priced cart entry sent to the payment authority.
type LineItem struct {
	Name       string `json:"name"`
	UnitAmount int64  `json:"unit_amount"` // minor units (cents)
	Quantity   int    `json:"quantity"`
	Currency   string `json:"currency"`
}

// Metadata is attached to the checkout session at creation time and read
// back at confirmation. The cart snapshot inside it is the source of truth
// for the eventual commit; client input is not re-trusted at that stage.
type Metadata struct {
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
	BakeryID      uint   `json:"bakery_id,string"`
	BakeryName    string `json:"bakery_name"`
	PickupTime    string `json:"pickup_time"`
	Pin           string `json:"pin"`
	Cart          string `json:"cart"` // JSON-serialized []ordering.CartLine
}

// Session is a created or retrieved checkout session.
type Session struct {
	ID       string   `json:"id"`
	URL      string   `json:"url"`
	Metadata Metadata `json:"metadata"`
}

// Provider is the payment authority seen by the ordering core.
type Provider interface {
	// CreateSession opens a hosted checkout session and returns its redirect
	// URL and reference.
	CreateSession(ctx context.Context, items []LineItem, meta Metadata) (*Session, error)

	// RetrieveSession fetches a session (and its metadata) by reference.
	RetrieveSession(ctx context.Context, sessionID string) (*Session, error)
}

// Config holds the provider endpoint settings.
type Config struct {
	BaseURL    string
	SecretKey  string
	SuccessURL string
	CancelURL  string
	Currency   string
}

// Client is the HTTP implementation of Provider.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// NewClient creates a payment client with the given configuration.
func NewClient(config *Config) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type createSessionRequest struct {
	LineItems  []LineItem `json:"line_items"`
	Mode       string     `json:"mode"`
	SuccessURL string     `json:"success_url"`
	CancelURL  string     `json:"cancel_url"`
	Metadata   Metadata   `json:"metadata"`
}

// CreateSession opens a hosted checkout session.
func (c *Client) CreateSession(ctx context.Context, items []LineItem, meta Metadata) (*Session, error) {
	for i := range items {
		if items[i].Currency == "" {
			items[i].Currency = c.config.Currency
		}
	}

	body := createSessionRequest{
		LineItems:  items,
		Mode:       "payment",
		SuccessURL: c.config.SuccessURL,
		CancelURL:  c.config.CancelURL,
		Metadata:   meta,
	}

	var session Session
	if err := c.post(ctx, "/v1/checkout/sessions", body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// RetrieveSession fetches a session by reference.
func (c *Client) RetrieveSession(ctx context.Context, sessionID string) (*Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.config.BaseURL+"/v1/checkout/sessions/"+sessionID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.config.SecretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("payment authority returned status %d", resp.StatusCode)
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.SecretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("payment authority returned status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
