// Package keycloak implements the identity client against the Keycloak
// admin REST API.
package keycloak

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/counseling/internal/config"
	"github.com/smallbiznis/counseling/internal/identity/domain"
	"github.com/smallbiznis/counseling/pkg/scoped"
	"github.com/smallbiznis/counseling/pkg/telemetry"
)

const (
	systemName   = "identity"
	roleCacheTTL = 10 * time.Minute
	roleCacheMax = 64
)

type Client struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string

	httpClient *http.Client
	log        *zap.Logger
	metrics    *telemetry.Metrics
	roles      *expirable.LRU[string, roleRepresentation]
}

type Params struct {
	fx.In

	Config  config.Config
	Log     *zap.Logger
	Metrics *telemetry.Metrics `optional:"true"`
}

// Provide wires the client for fx.
func Provide(p Params) domain.Client {
	return New(p.Config.Identity, nil, p.Log, p.Metrics)
}

func New(cfg config.IdentityConfig, httpClient *http.Client, log *zap.Logger, metrics *telemetry.Metrics) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		realm:        cfg.Realm,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient:   httpClient,
		log:          log.Named("identity.keycloak"),
		metrics:      metrics,
		roles:        expirable.NewLRU[string, roleRepresentation](roleCacheMax, nil, roleCacheTTL),
	}
}

func (c *Client) tokenEndpoint() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", c.baseURL, c.realm)
}

func (c *Client) revokeEndpoint() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/revoke", c.baseURL, c.realm)
}

func (c *Client) adminBaseURL() string {
	return fmt.Sprintf("%s/admin/realms/%s", c.baseURL, c.realm)
}

func (c *Client) session() scoped.Session[string] {
	return adminSession{c: c}
}

func (c *Client) observe(operation string, start time.Time, err error) {
	c.metrics.ObserveExternalCall(systemName, operation, err, time.Since(start))
}

// CreateAccount creates an enabled account and returns its id. A duplicate
// username or email is reported as *domain.ConflictError.
func (c *Client) CreateAccount(ctx context.Context, profile domain.Profile) (ref domain.AccountRef, err error) {
	start := time.Now()
	defer func() { c.observe("create_account", start, err) }()

	rep := userRepresentation{
		Username: profile.Username,
		Email:    profile.Email,
		Enabled:  true,
	}
	if profile.Locale != "" {
		rep.Attributes = map[string][]string{"locale": {profile.Locale}}
	}

	return scoped.Value(ctx, c.session(), c.log, func(ctx context.Context, token string) (domain.AccountRef, error) {
		resp, err := c.doAuthorized(ctx, token, http.MethodPost, "/users", rep)
		if err != nil {
			return domain.AccountRef{}, fmt.Errorf("create account: %w", err)
		}

		if resp.StatusCode == http.StatusConflict {
			drain(resp)
			return domain.AccountRef{}, c.describeConflict(ctx, token, profile)
		}
		if err := checkResponse(resp, http.StatusCreated); err != nil {
			return domain.AccountRef{}, fmt.Errorf("create account: %w", err)
		}

		id := idFromLocation(resp.Header.Get("Location"))
		if id == "" {
			return domain.AccountRef{}, domain.ErrMissingAccountRef
		}
		c.log.Info("identity account created", zap.String("account_id", id))
		return domain.AccountRef{ID: id, Username: profile.Username, Email: profile.Email}, nil
	})
}

func (c *Client) describeConflict(ctx context.Context, token string, profile domain.Profile) error {
	conflict := &domain.ConflictError{UsernameAvailable: true, EmailAvailable: true}

	users, err := c.searchUsers(ctx, token, "username", profile.Username)
	if err != nil {
		return fmt.Errorf("inspect username conflict: %w", err)
	}
	conflict.UsernameAvailable = len(users) == 0

	if profile.Email != "" {
		users, err = c.searchUsers(ctx, token, "email", profile.Email)
		if err != nil {
			return fmt.Errorf("inspect email conflict: %w", err)
		}
		conflict.EmailAvailable = len(users) == 0
	}
	return conflict
}

// AssignRole adds a realm role and confirms the mapping is present afterwards.
func (c *Client) AssignRole(ctx context.Context, accountID string, role domain.Role) (err error) {
	start := time.Now()
	defer func() { c.observe("assign_role", start, err) }()

	return scoped.Do(ctx, c.session(), c.log, func(ctx context.Context, token string) error {
		rep, err := c.realmRole(ctx, token, string(role))
		if err != nil {
			return err
		}

		resp, err := c.doAuthorized(ctx, token, http.MethodPost,
			"/users/"+url.PathEscape(accountID)+"/role-mappings/realm", []roleRepresentation{rep})
		if err != nil {
			return fmt.Errorf("assign role %s: %w", role, err)
		}
		if err := checkResponse(resp, http.StatusNoContent); err != nil {
			return fmt.Errorf("assign role %s: %w", role, err)
		}

		assigned, err := c.roleMappings(ctx, token, accountID)
		if err != nil {
			return err
		}
		for _, r := range assigned {
			if r.Name == string(role) {
				return nil
			}
		}
		return fmt.Errorf("%w: %s", domain.ErrRoleNotAssigned, role)
	})
}

func (c *Client) SetPassword(ctx context.Context, accountID, password string) (err error) {
	start := time.Now()
	defer func() { c.observe("set_password", start, err) }()

	cred := credentialRepresentation{Type: "password", Value: password, Temporary: false}
	return scoped.Do(ctx, c.session(), c.log, func(ctx context.Context, token string) error {
		resp, err := c.doAuthorized(ctx, token, http.MethodPut,
			"/users/"+url.PathEscape(accountID)+"/reset-password", cred)
		if err != nil {
			return fmt.Errorf("set password: %w", err)
		}
		if err := checkResponse(resp, http.StatusNoContent); err != nil {
			return fmt.Errorf("set password: %w", err)
		}
		return nil
	})
}

func (c *Client) SetEmail(ctx context.Context, accountID, email string) (err error) {
	start := time.Now()
	defer func() { c.observe("set_email", start, err) }()

	return scoped.Do(ctx, c.session(), c.log, func(ctx context.Context, token string) error {
		resp, err := c.doAuthorized(ctx, token, http.MethodPut,
			"/users/"+url.PathEscape(accountID), map[string]any{"email": email})
		if err != nil {
			return fmt.Errorf("set email: %w", err)
		}
		if err := checkResponse(resp, http.StatusNoContent); err != nil {
			return fmt.Errorf("set email: %w", err)
		}
		return nil
	})
}

// DeleteAccount removes the account. A missing account counts as deleted.
func (c *Client) DeleteAccount(ctx context.Context, accountID string) (err error) {
	start := time.Now()
	defer func() { c.observe("delete_account", start, err) }()

	return scoped.Do(ctx, c.session(), c.log, func(ctx context.Context, token string) error {
		resp, err := c.doAuthorized(ctx, token, http.MethodDelete, "/users/"+url.PathEscape(accountID), nil)
		if err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		if resp.StatusCode == http.StatusNotFound {
			drain(resp)
			return nil
		}
		if err := checkResponse(resp, http.StatusNoContent); err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		return nil
	})
}

func (c *Client) IsEmailAvailable(ctx context.Context, email string) (available bool, err error) {
	start := time.Now()
	defer func() { c.observe("email_available", start, err) }()

	return scoped.Value(ctx, c.session(), c.log, func(ctx context.Context, token string) (bool, error) {
		users, err := c.searchUsers(ctx, token, "email", email)
		if err != nil {
			return false, err
		}
		return len(users) == 0, nil
	})
}

func (c *Client) FindByUsername(ctx context.Context, username string) (refs []domain.AccountRef, err error) {
	start := time.Now()
	defer func() { c.observe("find_by_username", start, err) }()

	return scoped.Value(ctx, c.session(), c.log, func(ctx context.Context, token string) ([]domain.AccountRef, error) {
		users, err := c.searchUsers(ctx, token, "username", username)
		if err != nil {
			return nil, err
		}
		refs := make([]domain.AccountRef, 0, len(users))
		for _, u := range users {
			refs = append(refs, domain.AccountRef{ID: u.ID, Username: u.Username, Email: u.Email})
		}
		return refs, nil
	})
}

// ListRoles returns the known realm roles of an account; unknown roles are skipped.
func (c *Client) ListRoles(ctx context.Context, accountID string) (roles []domain.Role, err error) {
	start := time.Now()
	defer func() { c.observe("list_roles", start, err) }()

	return scoped.Value(ctx, c.session(), c.log, func(ctx context.Context, token string) ([]domain.Role, error) {
		mapped, err := c.roleMappings(ctx, token, accountID)
		if err != nil {
			return nil, err
		}
		roles := make([]domain.Role, 0, len(mapped))
		for _, r := range mapped {
			role, err := domain.ParseRole(r.Name)
			if err != nil {
				continue
			}
			roles = append(roles, role)
		}
		return roles, nil
	})
}

func (c *Client) realmRole(ctx context.Context, token, name string) (roleRepresentation, error) {
	if rep, ok := c.roles.Get(name); ok {
		return rep, nil
	}

	resp, err := c.doAuthorized(ctx, token, http.MethodGet, "/roles/"+url.PathEscape(name), nil)
	if err != nil {
		return roleRepresentation{}, fmt.Errorf("get role %s: %w", name, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		drain(resp)
		return roleRepresentation{}, fmt.Errorf("%w: %s", domain.ErrUnknownRole, name)
	}

	var rep roleRepresentation
	if err := decodeResponse(resp, &rep); err != nil {
		return roleRepresentation{}, fmt.Errorf("get role %s: %w", name, err)
	}
	c.roles.Add(name, rep)
	return rep, nil
}

func (c *Client) roleMappings(ctx context.Context, token, accountID string) ([]roleRepresentation, error) {
	resp, err := c.doAuthorized(ctx, token, http.MethodGet,
		"/users/"+url.PathEscape(accountID)+"/role-mappings/realm", nil)
	if err != nil {
		return nil, fmt.Errorf("list role mappings: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		drain(resp)
		return nil, domain.ErrAccountNotFound
	}

	var roles []roleRepresentation
	if err := decodeResponse(resp, &roles); err != nil {
		return nil, fmt.Errorf("list role mappings: %w", err)
	}
	return roles, nil
}

func (c *Client) searchUsers(ctx context.Context, token, field, value string) ([]userRepresentation, error) {
	q := url.Values{field: {value}, "exact": {"true"}}
	resp, err := c.doAuthorized(ctx, token, http.MethodGet, "/users?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("search users by %s: %w", field, err)
	}

	var users []userRepresentation
	if err := decodeResponse(resp, &users); err != nil {
		return nil, fmt.Errorf("search users by %s: %w", field, err)
	}

	// exact=true is ignored by older servers
	matched := users[:0]
	for _, u := range users {
		switch field {
		case "username":
			if strings.EqualFold(u.Username, value) {
				matched = append(matched, u)
			}
		case "email":
			if strings.EqualFold(u.Email, value) {
				matched = append(matched, u)
			}
		}
	}
	return matched, nil
}

func (c *Client) doAuthorized(ctx context.Context, token, method, p string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.adminBaseURL()+p, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}

func decodeResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("decode keycloak response: %w", err)
		}
	}
	return nil
}

func checkResponse(resp *http.Response, expected int) error {
	defer resp.Body.Close()

	if resp.StatusCode != expected && !(expected == http.StatusNoContent && resp.StatusCode == http.StatusOK) {
		return statusError(resp)
	}
	return nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var rep errorRepresentation
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &rep) == nil {
		if rep.ErrorMessage != "" {
			msg = rep.ErrorMessage
		} else if rep.Error != "" {
			msg = rep.Error
		}
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, msg)
	}
	return fmt.Errorf("%w: keycloak returned %d: %s", domain.ErrProviderFailure, resp.StatusCode, msg)
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func idFromLocation(location string) string {
	if location == "" {
		return ""
	}
	u, err := url.Parse(location)
	if err != nil {
		return ""
	}
	id := path.Base(u.Path)
	if id == "." || id == "/" {
		return ""
	}
	return id
}
