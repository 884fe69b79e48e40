// Package rocketchat implements the chat client against the Rocket.Chat REST API.
package rocketchat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/counseling/internal/chat/domain"
	"github.com/smallbiznis/counseling/internal/config"
	"github.com/smallbiznis/counseling/pkg/scoped"
	"github.com/smallbiznis/counseling/pkg/telemetry"
)

const systemName = "chat"

type Client struct {
	baseURL           string
	technicalUsername string
	technicalPassword string

	httpClient *http.Client
	log        *zap.Logger
	metrics    *telemetry.Metrics
}

type Params struct {
	fx.In

	Config  config.Config
	Log     *zap.Logger
	Metrics *telemetry.Metrics `optional:"true"`
}

func Provide(p Params) domain.Client {
	return New(p.Config.Chat, nil, p.Log, p.Metrics)
}

func New(cfg config.ChatConfig, httpClient *http.Client, log *zap.Logger, metrics *telemetry.Metrics) *Client {
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
		baseURL:           strings.TrimRight(cfg.BaseURL, "/"),
		technicalUsername: cfg.TechnicalUsername,
		technicalPassword: cfg.TechnicalPassword,
		httpClient:        httpClient,
		log:               log.Named("chat.rocketchat"),
		metrics:           metrics,
	}
}

func (c *Client) technical() scoped.Session[domain.Credentials] {
	return technicalSession{c: c}
}

func (c *Client) observe(operation string, start time.Time, err error) {
	c.metrics.ObserveExternalCall(systemName, operation, err, time.Since(start))
}

// CreatePrivateGroup creates a private room owned by the acting user.
func (c *Client) CreatePrivateGroup(ctx context.Context, name string, creds domain.Credentials) (ref domain.GroupRef, err error) {
	start := time.Now()
	defer func() { c.observe("create_group", start, err) }()

	if !creds.Valid() {
		return domain.GroupRef{}, domain.ErrInvalidCredentials
	}

	var out groupResponse
	if err := c.call(ctx, http.MethodPost, "/api/v1/groups.create", creds, groupCreateRequest{Name: name}, &out); err != nil {
		return domain.GroupRef{}, fmt.Errorf("create group %s: %w", name, err)
	}
	if out.Group.ID == "" {
		return domain.GroupRef{}, fmt.Errorf("create group %s: %w", name, domain.ErrEmptyGroupID)
	}
	return domain.GroupRef{ID: out.Group.ID, Name: out.Group.Name}, nil
}

// DeleteGroup reports false when the group no longer exists.
func (c *Client) DeleteGroup(ctx context.Context, groupID string, creds domain.Credentials) (deleted bool, err error) {
	start := time.Now()
	defer func() { c.observe("delete_group", start, err) }()

	err = c.call(ctx, http.MethodPost, "/api/v1/groups.delete", creds, roomRequest{RoomID: groupID}, nil)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrGroupNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("delete group %s: %w", groupID, err)
	}
}

func (c *Client) AddMember(ctx context.Context, chatUserID, groupID string) (err error) {
	start := time.Now()
	defer func() { c.observe("add_member", start, err) }()

	return scoped.Do(ctx, c.technical(), c.log, func(ctx context.Context, creds domain.Credentials) error {
		if err := c.call(ctx, http.MethodPost, "/api/v1/groups.invite", creds,
			roomUserRequest{RoomID: groupID, UserID: chatUserID}, nil); err != nil {
			return fmt.Errorf("add %s to group %s: %w", chatUserID, groupID, err)
		}
		return nil
	})
}

// RemoveMember is a no-op when the user is not in the group.
func (c *Client) RemoveMember(ctx context.Context, chatUserID, groupID string) (err error) {
	start := time.Now()
	defer func() { c.observe("remove_member", start, err) }()

	return scoped.Do(ctx, c.technical(), c.log, func(ctx context.Context, creds domain.Credentials) error {
		err := c.call(ctx, http.MethodPost, "/api/v1/groups.kick", creds,
			roomUserRequest{RoomID: groupID, UserID: chatUserID}, nil)
		if err != nil && !strings.Contains(err.Error(), "error-user-not-in-room") {
			return fmt.Errorf("remove %s from group %s: %w", chatUserID, groupID, err)
		}
		return nil
	})
}

func (c *Client) ListMembers(ctx context.Context, groupID string) (members []domain.Member, err error) {
	start := time.Now()
	defer func() { c.observe("list_members", start, err) }()

	return scoped.Value(ctx, c.technical(), c.log, func(ctx context.Context, creds domain.Credentials) ([]domain.Member, error) {
		q := url.Values{"roomId": {groupID}, "count": {"0"}}
		var out membersResponse
		if err := c.call(ctx, http.MethodGet, "/api/v1/groups.members?"+q.Encode(), creds, nil, &out); err != nil {
			return nil, fmt.Errorf("list members of %s: %w", groupID, err)
		}
		members := make([]domain.Member, 0, len(out.Members))
		for _, m := range out.Members {
			members = append(members, domain.Member{ID: m.ID, Username: m.Username})
		}
		return members, nil
	})
}

func (c *Client) PostMessage(ctx context.Context, groupID string, creds domain.Credentials, body string) (err error) {
	start := time.Now()
	defer func() { c.observe("post_message", start, err) }()

	if !creds.Valid() {
		return domain.ErrInvalidCredentials
	}
	req := sendMessageRequest{Message: message{RoomID: groupID, Msg: body}}
	if err := c.call(ctx, http.MethodPost, "/api/v1/chat.sendMessage", creds, req, nil); err != nil {
		return fmt.Errorf("post message to %s: %w", groupID, err)
	}
	return nil
}

func (c *Client) GetUserInfo(ctx context.Context, chatUserID string) (info domain.UserInfo, err error) {
	start := time.Now()
	defer func() { c.observe("user_info", start, err) }()

	return scoped.Value(ctx, c.technical(), c.log, func(ctx context.Context, creds domain.Credentials) (domain.UserInfo, error) {
		q := url.Values{"userId": {chatUserID}}
		var out userInfoResponse
		if err := c.call(ctx, http.MethodGet, "/api/v1/users.info?"+q.Encode(), creds, nil, &out); err != nil {
			return domain.UserInfo{}, fmt.Errorf("user info %s: %w", chatUserID, err)
		}
		return domain.UserInfo{ID: out.User.ID, Username: out.User.Username}, nil
	})
}

func (c *Client) call(ctx context.Context, method, path string, creds domain.Credentials, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if creds.Token != "" {
		req.Header.Set("X-Auth-Token", creds.Token)
		req.Header.Set("X-User-Id", creds.UserID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return domain.ErrInvalidCredentials
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiResponse
		_ = json.Unmarshal(raw, &apiErr)
		if strings.Contains(apiErr.Error, "room-not-found") || strings.Contains(apiErr.Error, "error-invalid-room") {
			return fmt.Errorf("%w: %s", domain.ErrGroupNotFound, apiErr.Error)
		}
		msg := apiErr.Error
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return fmt.Errorf("%w: rocket.chat returned %d: %s", domain.ErrChatFailure, resp.StatusCode, msg)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
