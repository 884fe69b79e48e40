package keycloak

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// adminSession obtains a service-account token for each admin call and
// revokes it afterwards, so no admin token outlives the call it served.
type adminSession struct {
	c *Client
}

func (s adminSession) Acquire(ctx context.Context) (string, error) {
	data := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {s.c.clientID},
		"client_secret": {s.c.clientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.c.tokenEndpoint(), strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request admin token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("keycloak token endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("decode admin token: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("keycloak returned an empty access token")
	}
	return token.AccessToken, nil
}

func (s adminSession) Release(ctx context.Context, token string) error {
	data := url.Values{
		"token":           {token},
		"token_type_hint": {"access_token"},
		"client_id":       {s.c.clientID},
		"client_secret":   {s.c.clientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.c.revokeEndpoint(), strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("build revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke admin token: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("keycloak revoke endpoint returned %d", resp.StatusCode)
	}
	return nil
}
