package beeforce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const tokenPath = "/authorization-server/oauth/token"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrConnectionFailure  = errors.New("authentication service unreachable")
	ErrMalformedResponse  = errors.New("token response missing access_token")
)

// Login exchanges operator credentials for a bearer token via the
// OAuth2 password grant. clientAuth is the pre-shared client
// credential sent verbatim as the Authorization header; it never
// appears in code or logs.
func Login(ctx context.Context, client *http.Client, host, clientAuth, username, password string) (string, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	form.Set("grant_type", "password")

	endpoint := strings.TrimRight(strings.TrimSpace(host), "/") + tokenPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrConnectionFailure, err)
	}
	req.Header.Set("Authorization", clientAuth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrConnectionFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", ErrInvalidCredentials
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return "", ErrMalformedResponse
	}
	return payload.AccessToken, nil
}
