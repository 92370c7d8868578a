package emails

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"promptmarket/internal/pkg/money"
)

const brevoAPI = "https://api.brevo.com/v3/smtp/email"

// BrevoSendRequest matches Brevo API v3 send transactional email body.
type BrevoSendRequest struct {
	Sender      BrevoSender   `json:"sender"`
	To          []BrevoTo     `json:"to"`
	Subject     string        `json:"subject"`
	HTMLContent string        `json:"htmlContent"`
	ReplyTo     *BrevoReplyTo `json:"replyTo,omitempty"`
}

type BrevoSender struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type BrevoTo struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type BrevoReplyTo struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Receipt describes one purchase for buyer and seller emails.
type Receipt struct {
	OrderNumber    string
	ListingTitle   string
	Amount         money.Cents
	SellerEarnings money.Cents
	Currency       string
}

// Sender sends transactional emails. Nil = no-op.
type Sender interface {
	SendWelcome(ctx context.Context, toEmail, name string) error
	SendPurchaseReceipt(ctx context.Context, toEmail, name string, r Receipt) error
	SendSaleNotification(ctx context.Context, toEmail, name string, r Receipt) error
	SendRefundNotice(ctx context.Context, toEmail, name string, r Receipt) error
	SendPayoutProcessed(ctx context.Context, toEmail, name string, amount money.Cents, currency string) error
}

// BrevoClient sends emails via the Brevo (Sendinblue) API using SENDINBLUE_API_KEY and MAIL_FROM.
type BrevoClient struct {
	APIKey   string
	MailFrom string
	Endpoint string
	Client   *http.Client
}

func (c *BrevoClient) from() string {
	if c.MailFrom != "" {
		return c.MailFrom
	}
	return "noreply@promptmarket.app"
}

func (c *BrevoClient) endpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return brevoAPI
}

// send sends one email via Brevo API. Without an API key it does nothing.
func (c *BrevoClient) send(ctx context.Context, toEmail, toName, subject, html string) error {
	if c.APIKey == "" {
		return nil
	}
	body := BrevoSendRequest{
		Sender:      BrevoSender{Email: c.from(), Name: brandName},
		To:          []BrevoTo{{Email: toEmail, Name: toName}},
		Subject:     subject,
		HTMLContent: html,
		ReplyTo:     &BrevoReplyTo{Email: supportEmail, Name: brandName + " Support"},
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("brevo send failed: status %d", resp.StatusCode)
	}
	return nil
}

func greeting(name string) string {
	if name == "" {
		return "there"
	}
	return name
}

func (c *BrevoClient) SendWelcome(ctx context.Context, toEmail, name string) error {
	content := fmt.Sprintf(`
    <h1>Welcome to %s, %s!</h1>
    <p>Your account is ready. Browse prompts from independent creators or start selling your own.</p>
    <center><a href="%s" class="pm-button">Explore prompts</a></center>
`, brandName, EscapeHTML(greeting(name)), siteURL)
	return c.send(ctx, toEmail, name, "Welcome to "+brandName, EmailLayout(content))
}

// SendPurchaseReceipt goes to the buyer after a completed purchase.
func (c *BrevoClient) SendPurchaseReceipt(ctx context.Context, toEmail, name string, r Receipt) error {
	content := fmt.Sprintf(`
    <h1>Thanks for your purchase, %s</h1>
    <p>You now have full access to <strong>%s</strong>.</p>
    <table class="pm-table" width="100%%">
      <tr><td>Order</td><td align="right">%s</td></tr>
      <tr><td>Total</td><td align="right">%s %s</td></tr>
    </table>
    <center><a href="%s/purchases" class="pm-button">View your library</a></center>
`, EscapeHTML(greeting(name)), EscapeHTML(r.ListingTitle), EscapeHTML(r.OrderNumber), r.Amount, upper(r.Currency), siteURL)
	return c.send(ctx, toEmail, name, "Your receipt for "+r.ListingTitle, EmailLayout(content))
}

// SendSaleNotification goes to the seller after a completed purchase.
func (c *BrevoClient) SendSaleNotification(ctx context.Context, toEmail, name string, r Receipt) error {
	content := fmt.Sprintf(`
    <h1>You made a sale!</h1>
    <p>Hi %s, someone just bought <strong>%s</strong>.</p>
    <table class="pm-table" width="100%%">
      <tr><td>Order</td><td align="right">%s</td></tr>
      <tr><td>Sale price</td><td align="right">%s %s</td></tr>
      <tr><td>Your earnings</td><td align="right">%s %s</td></tr>
    </table>
    <center><a href="%s/seller/earnings" class="pm-button">View earnings</a></center>
`, EscapeHTML(greeting(name)), EscapeHTML(r.ListingTitle), EscapeHTML(r.OrderNumber),
		r.Amount, upper(r.Currency), r.SellerEarnings, upper(r.Currency), siteURL)
	return c.send(ctx, toEmail, name, "New sale: "+r.ListingTitle, EmailLayout(content))
}

func (c *BrevoClient) SendRefundNotice(ctx context.Context, toEmail, name string, r Receipt) error {
	content := fmt.Sprintf(`
    <h1>Your refund has been issued</h1>
    <p>Hi %s, order <strong>%s</strong> for <strong>%s</strong> was refunded (%s %s).</p>
    <p>Refunds usually appear on your statement within 5 to 10 business days.</p>
`, EscapeHTML(greeting(name)), EscapeHTML(r.OrderNumber), EscapeHTML(r.ListingTitle), r.Amount, upper(r.Currency))
	return c.send(ctx, toEmail, name, "Refund for order "+r.OrderNumber, EmailLayout(content))
}

func (c *BrevoClient) SendPayoutProcessed(ctx context.Context, toEmail, name string, amount money.Cents, currency string) error {
	content := fmt.Sprintf(`
    <h1>Your payout is on its way</h1>
    <p>Hi %s, we sent <strong>%s %s</strong> to your connected account.</p>
    <center><a href="%s/seller/payouts" class="pm-button">View payouts</a></center>
`, EscapeHTML(greeting(name)), amount, upper(currency), siteURL)
	return c.send(ctx, toEmail, name, "Payout processed", EmailLayout(content))
}

func upper(s string) string {
	return strings.ToUpper(s)
}
