// Package investec wraps the Investec Programmable Banking REST API: the
// OAuth2 token lifecycle and typed accounts/balance/transactions calls.
package investec

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/calvella/bucketsync/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("infra/investec")

const (
	apiKeyHeader   = "x-api-key"
	requestTimeout = 30 * time.Second
)

// Client is the typed wrapper over the bank's REST endpoints. All calls
// acquire a valid bearer token through the Authenticator first.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	authenticator *Authenticator
}

// NewClient builds a Client (and its Authenticator) for the given base URL
// and credentials. The HTTP client carries a 30s per-request timeout.
func NewClient(baseURL, apiKey, clientID, clientSecret string) *Client {
	httpClient := &http.Client{Timeout: requestTimeout}
	return &Client{
		httpClient:    httpClient,
		baseURL:       baseURL,
		authenticator: NewAuthenticator(httpClient, baseURL, apiKey, clientID, clientSecret),
	}
}

// Authenticator exposes the token lifecycle, mainly for tests.
func (c *Client) Authenticator() *Authenticator {
	return c.authenticator
}

type accountsPayload struct {
	Accounts []domain.Account `json:"accounts"`
}

type transactionsPayload struct {
	Transactions []domain.Transaction `json:"transactions"`
}

// GetAccounts lists the profile's accounts.
func (c *Client) GetAccounts(ctx context.Context) ([]domain.Account, error) {
	ctx, span := tracer.Start(ctx, "InvestecClient.GetAccounts")
	defer span.End()

	body, err := c.get(ctx, "/za/pb/v1/accounts", nil)
	if err != nil {
		return nil, err
	}
	payload, err := decodeEnvelope[accountsPayload](body)
	if err != nil {
		return nil, err
	}
	return payload.Accounts, nil
}

// GetBalance fetches the balance for one account.
func (c *Client) GetBalance(ctx context.Context, accountID string) (*domain.Balance, error) {
	ctx, span := tracer.Start(ctx, "InvestecClient.GetBalance")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	body, err := c.get(ctx, fmt.Sprintf("/za/pb/v1/accounts/%s/balance", url.PathEscape(accountID)), nil)
	if err != nil {
		return nil, err
	}
	balance, err := decodeEnvelope[domain.Balance](body)
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

// GetTransactions fetches transactions for one account inside the
// [fromDate, toDate] window. Dates are YYYY-MM-DD strings.
func (c *Client) GetTransactions(ctx context.Context, accountID, fromDate, toDate string) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "InvestecClient.GetTransactions")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.id", accountID),
		attribute.String("window.from", fromDate),
		attribute.String("window.to", toDate),
	)

	query := url.Values{"fromDate": {fromDate}, "toDate": {toDate}}
	body, err := c.get(ctx, fmt.Sprintf("/za/pb/v1/accounts/%s/transactions", url.PathEscape(accountID)), query)
	if err != nil {
		return nil, err
	}
	payload, err := decodeEnvelope[transactionsPayload](body)
	if err != nil {
		return nil, err
	}
	return payload.Transactions, nil
}

// get performs an authenticated GET and returns the raw body.
// Non-2xx responses become an APIError carrying the body verbatim.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	token, err := c.authenticator.GetValidToken(ctx)
	if err != nil {
		return nil, err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(apiKeyHeader, c.authenticator.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// decodeEnvelope unwraps the bank's {"data": T} response envelope.
func decodeEnvelope[T any](body []byte) (T, error) {
	var env struct {
		Data T `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		var zero T
		return zero, &domain.DecodeError{Err: err}
	}
	return env.Data, nil
}
