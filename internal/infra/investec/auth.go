package investec

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/calvella/bucketsync/internal/domain"

	"golang.org/x/sync/singleflight"
)

const (
	tokenPath = "/identity/v2/oauth2/token"

	// expirySkew guards against a token that expires mid-request: any token
	// within five minutes of expiry is treated as already expired.
	expirySkew = 5 * time.Minute
)

type tokenState struct {
	accessToken string
	expiresAt   int64 // unix seconds
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Authenticator maintains a valid bearer token against the bank's OAuth2
// endpoint. Token state is guarded by a mutex; refreshes are coalesced with a
// single-flight group so N concurrent expired callers trigger one grant.
type Authenticator struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	clientID     string
	clientSecret string

	mu      sync.Mutex
	token   tokenState
	refresh singleflight.Group
}

// NewAuthenticator creates an Authenticator for the given OAuth2 credentials.
func NewAuthenticator(httpClient *http.Client, baseURL, apiKey, clientID, clientSecret string) *Authenticator {
	return &Authenticator{
		httpClient:   httpClient,
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// IsTokenExpired reports whether the stored token is within the expiry skew
// window (or absent entirely).
func (a *Authenticator) IsTokenExpired() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.token.expiresAt-time.Now().Unix() < int64(expirySkew.Seconds())
}

// Authenticate performs the client_credentials grant and stores the resulting
// token. On failure nothing is cached and the previous state is untouched.
func (a *Authenticator) Authenticate(ctx context.Context) error {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {a.clientID},
		"client_secret": {a.clientSecret},
		"scope":         {"accounts"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("x-api-key", a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.AuthError{Body: string(body)}
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return &domain.DecodeError{Err: err}
	}

	a.mu.Lock()
	a.token = tokenState{
		accessToken: tok.AccessToken,
		expiresAt:   time.Now().Unix() + tok.ExpiresIn,
	}
	a.mu.Unlock()
	return nil
}

// GetValidToken returns a currently-valid bearer token, refreshing
// transparently when the stored one is inside the skew window.
func (a *Authenticator) GetValidToken(ctx context.Context) (string, error) {
	if a.IsTokenExpired() {
		_, err, _ := a.refresh.Do("token", func() (any, error) {
			// A previous flight may have refreshed while we waited.
			if !a.IsTokenExpired() {
				return nil, nil
			}
			return nil, a.Authenticate(ctx)
		})
		if err != nil {
			return "", err
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.token.accessToken, nil
}
