package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client ngomong ke payment provider (Wompi-style REST).
// Semua amount integer minor-currency units, tidak pernah float.
type Client struct {
	BaseURL    string
	PublicKey  string
	PrivateKey string
	HTTP       *http.Client
}

func NewClient(baseURL, publicKey, privateKey string) *Client {
	return &Client{
		BaseURL:    baseURL,
		PublicKey:  publicKey,
		PrivateKey: privateKey,
		HTTP:       &http.Client{Timeout: 15 * time.Second},
	}
}

// APIError = non-2xx dari provider. Pay step yang nerima ini tidak boleh
// mutasi status transaksi (tetap PENDING, client bisa retry).
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider responded %d: %s", e.StatusCode, e.Body)
}

func (c *Client) do(ctx context.Context, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	res, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("gateway %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &APIError{StatusCode: res.StatusCode, Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// TokenizeCard: kartu -> token sekali pakai. Pakai public key.
func (c *Client) TokenizeCard(ctx context.Context, card Card) (string, error) {
	var res struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/tokens/cards", c.PublicKey, card, &res); err != nil {
		return "", err
	}
	return res.Data.ID, nil
}

// AcceptanceTokens ambil presigned acceptance dari endpoint merchant.
func (c *Client) AcceptanceTokens(ctx context.Context) (Tokens, error) {
	var res struct {
		Data struct {
			PresignedAcceptance struct {
				AcceptanceToken string `json:"acceptance_token"`
			} `json:"presigned_acceptance"`
			PresignedPersonalDataAuth struct {
				AcceptanceToken string `json:"acceptance_token"`
			} `json:"presigned_personal_data_auth"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/merchants/"+c.PublicKey, "", nil, &res); err != nil {
		return Tokens{}, err
	}
	return Tokens{
		AcceptanceToken:       res.Data.PresignedAcceptance.AcceptanceToken,
		PersonalDataAuthToken: res.Data.PresignedPersonalDataAuth.AcceptanceToken,
	}, nil
}

// CreateTransaction submit transaksi remote; reference = public_number kita.
func (c *Client) CreateTransaction(ctx context.Context, in CreateTransactionInput) (ProviderTransaction, error) {
	body := map[string]any{
		"amount_in_cents":            in.AmountCents,
		"currency":                   in.Currency,
		"reference":                  in.Reference,
		"customer_email":             in.CustomerEmail,
		"acceptance_token":           in.Tokens.AcceptanceToken,
		"accept_personal_auth":       in.Tokens.PersonalDataAuthToken,
		"payment_method": map[string]any{
			"type":         "CARD",
			"token":        in.CardToken,
			"installments": in.Installments,
		},
	}
	var res struct {
		Data struct {
			ID        string `json:"id"`
			Status    string `json:"status"`
			Reference string `json:"reference"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/transactions", c.PrivateKey, body, &res); err != nil {
		return ProviderTransaction{}, err
	}
	return ProviderTransaction{ID: res.Data.ID, Status: res.Data.Status, Reference: res.Data.Reference}, nil
}

// GetTransaction: status remote by provider id; dipakai jalur sync/poll.
func (c *Client) GetTransaction(ctx context.Context, providerTxID string) (ProviderTransaction, error) {
	var res struct {
		Data struct {
			ID        string `json:"id"`
			Status    string `json:"status"`
			Reference string `json:"reference"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/transactions/"+providerTxID, c.PrivateKey, nil, &res); err != nil {
		return ProviderTransaction{}, err
	}
	return ProviderTransaction{ID: res.Data.ID, Status: res.Data.Status, Reference: res.Data.Reference}, nil
}
