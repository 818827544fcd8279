// Package mailer sends transactional mail through an HTTP mail provider.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bakery-service/internal/model"
)

// Config holds the mail provider settings.
type Config struct {
	BaseURL string
	APIKey  string
	From    string
}

// Client posts JSON emails to the provider API.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// NewClient creates a mail client with the given configuration.
func NewClient(config *Config) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// OrderConfirmed sends the order confirmation recap with the pickup PIN.
func (c *Client) OrderConfirmed(ctx context.Context, order *model.Order) error {
	body := sendRequest{
		From:    c.config.From,
		To:      order.CustomerEmail,
		Subject: "Confirmation de votre commande",
		HTML:    confirmationHTML(order),
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("mail provider returned status %d", resp.StatusCode)
	}
	return nil
}

func confirmationHTML(order *model.Order) string {
	var b strings.Builder
	total := 0.0

	fmt.Fprintf(&b, "<p>Bonjour %s,</p>", order.CustomerName)
	b.WriteString("<p>Merci pour votre commande ! Voici un récapitulatif :</p><ul>")
	for _, item := range order.Items {
		fmt.Fprintf(&b, "<li>%d × %s — %.2f €</li>", item.Quantity, item.Product.Name, item.Product.Price)
		total += item.Product.Price * float64(item.Quantity)
	}
	b.WriteString("</ul>")
	fmt.Fprintf(&b, "<p>Total : %.2f €</p>", total)
	fmt.Fprintf(&b, "<p>Votre code de retrait : <strong>%s</strong></p>", order.Pin)
	if order.PickupTime != "" {
		fmt.Fprintf(&b, "<p>Retrait prévu : %s</p>", order.PickupTime)
	}
	b.WriteString("<p>À bientôt !</p>")
	return b.String()
}
