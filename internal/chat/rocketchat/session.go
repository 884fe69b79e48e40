package rocketchat

import (
	"context"
	"fmt"
	"net/http"

	"github.com/smallbiznis/counseling/internal/chat/domain"
)

// technicalSession logs the technical user in for one call and logs it out
// afterwards.
type technicalSession struct {
	c *Client
}

func (s technicalSession) Acquire(ctx context.Context) (domain.Credentials, error) {
	var out loginResponse
	err := s.c.call(ctx, http.MethodPost, "/api/v1/login", domain.Credentials{},
		loginRequest{User: s.c.technicalUsername, Password: s.c.technicalPassword}, &out)
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("technical user login: %w", err)
	}
	creds := domain.Credentials{Token: out.Data.AuthToken, UserID: out.Data.UserID}
	if !creds.Valid() {
		return domain.Credentials{}, fmt.Errorf("technical user login: %w", domain.ErrInvalidCredentials)
	}
	return creds, nil
}

func (s technicalSession) Release(ctx context.Context, creds domain.Credentials) error {
	if err := s.c.call(ctx, http.MethodPost, "/api/v1/logout", creds, nil, nil); err != nil {
		return fmt.Errorf("technical user logout: %w", err)
	}
	return nil
}
