// Package gateway talks to the hosted payment provider.
package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/config"
)

type CheckoutRequest struct {
	PaymentID     uuid.UUID
	Amount        int64
	Currency      string
	Method        string
	Phone         string
	CustomerName  string
	CustomerEmail string
	Description   string
}

type Checkout struct {
	Reference   string
	CheckoutURL string
}

type Client struct {
	HTTP         *http.Client
	BaseURL      string
	APIKey       string
	PrivateKey   string
	MerchantCode string
	CallbackURL  string
	ReturnURL    string
}

func New(cfg config.Gateway, appBaseURL, frontendBaseURL string) *Client {
	return &Client{
		HTTP:         &http.Client{Timeout: 15 * time.Second},
		BaseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		APIKey:       cfg.APIKey,
		PrivateKey:   cfg.PrivateKey,
		MerchantCode: cfg.MerchantCode,
		CallbackURL:  strings.TrimRight(appBaseURL, "/") + "/api/payments/callback",
		ReturnURL:    strings.TrimRight(frontendBaseURL, "/") + "/payments",
	}
}

type orderItem struct {
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

type transactionRequest struct {
	Method        string      `json:"method"`
	MerchantRef   string      `json:"merchant_ref"`
	Amount        int64       `json:"amount"`
	Currency      string      `json:"currency"`
	CustomerName  string      `json:"customer_name"`
	CustomerEmail string      `json:"customer_email"`
	CustomerPhone string      `json:"customer_phone,omitempty"`
	OrderItems    []orderItem `json:"order_items"`
	Callback      string      `json:"callback_url"`
	ReturnURL     string      `json:"return_url"`
	ExpiredTime   int64       `json:"expired_time"`
	Signature     string      `json:"signature"`
}

type transactionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Reference   string `json:"reference"`
		MerchantRef string `json:"merchant_ref"`
		CheckoutURL string `json:"checkout_url"`
		Amount      int64  `json:"amount"`
	} `json:"data"`
}

// Checkout opens a provider transaction for the payment and returns its reference.
func (c *Client) Checkout(ctx context.Context, r CheckoutRequest) (*Checkout, error) {
	merchantRef := r.PaymentID.String()
	body := transactionRequest{
		Method:        r.Method,
		MerchantRef:   merchantRef,
		Amount:        r.Amount,
		Currency:      r.Currency,
		CustomerName:  r.CustomerName,
		CustomerEmail: r.CustomerEmail,
		CustomerPhone: r.Phone,
		OrderItems:    []orderItem{{Name: r.Description, Price: r.Amount, Quantity: 1}},
		Callback:      c.CallbackURL,
		ReturnURL:     c.ReturnURL,
		ExpiredTime:   time.Now().Add(24 * time.Hour).Unix(),
		Signature:     c.sign(fmt.Sprintf("%s%s%d", c.MerchantCode, merchantRef, r.Amount)),
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/transaction/create", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var out transactionResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("gateway response (%d): %w", resp.StatusCode, err)
	}
	if !out.Success || out.Data.Reference == "" {
		return nil, fmt.Errorf("gateway error: %s", out.Message)
	}
	return &Checkout{Reference: out.Data.Reference, CheckoutURL: out.Data.CheckoutURL}, nil
}

func (c *Client) sign(data string) string {
	h := hmac.New(sha256.New, []byte(c.PrivateKey))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// ValidateSignature checks the X-Callback-Signature of a callback body.
func (c *Client) ValidateSignature(signature string, body []byte) bool {
	want := c.sign(string(body))
	return hmac.Equal([]byte(want), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

// CallbackPayload is the body the provider posts on status changes.
type CallbackPayload struct {
	Reference   string `json:"reference"`
	MerchantRef string `json:"merchant_ref"`
	Status      string `json:"status"` // PAID, FAILED, EXPIRED, REFUND
	PaidAt      int64  `json:"paid_at"`
	Note        string `json:"note"`
}
