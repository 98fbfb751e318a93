package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// ErrEmailExists is returned when the email is already registered.
var ErrEmailExists = errors.New("identity: email already registered")

// Config holds the identity provider admin endpoint settings.
type Config struct {
	BaseURL    string
	ServiceKey string
	Timeout    time.Duration
}

// Client calls the hosted identity provider's admin user API.
type Client struct {
	http *resty.Client
}

// NewClient constructs a new identity client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("apikey", cfg.ServiceKey).
		SetAuthToken(cfg.ServiceKey).
		SetHeader("Content-Type", "application/json")
	return &Client{http: c}
}

// CreateUser creates a confirmed user and returns its id.
func (c *Client) CreateUser(ctx context.Context, email, password, fullName string) (*User, error) {
	var user User
	var apiErr errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(CreateUserRequest{
			Email:        email,
			Password:     password,
			EmailConfirm: true,
			UserMetadata: UserMetadata{FullName: fullName},
		}).
		SetResult(&user).
		SetError(&apiErr).
		Post("/admin/users")
	if err != nil {
		return nil, fmt.Errorf("identity create user: %w", err)
	}
	if resp.IsError() {
		if isEmailExists(resp.StatusCode(), apiErr) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("identity create user: status %d: %s", resp.StatusCode(), apiErr.text())
	}
	log.Debug().Str("user_id", user.ID).Msg("identity user created")
	return &user, nil
}

// DeleteUser removes a user. A missing user is not an error.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	var apiErr errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", userID).
		SetError(&apiErr).
		Delete("/admin/users/{id}")
	if err != nil {
		return fmt.Errorf("identity delete user: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil
	}
	if resp.IsError() {
		return fmt.Errorf("identity delete user: status %d: %s", resp.StatusCode(), apiErr.text())
	}
	return nil
}

// ListUsers returns one page of users. Page begins at 1.
func (c *Client) ListUsers(ctx context.Context, page, perPage int) ([]User, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 50
	}
	var out ListUsersResponse
	var apiErr errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("page", fmt.Sprintf("%d", page)).
		SetQueryParam("per_page", fmt.Sprintf("%d", perPage)).
		SetResult(&out).
		SetError(&apiErr).
		Get("/admin/users")
	if err != nil {
		return nil, fmt.Errorf("identity list users: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("identity list users: status %d: %s", resp.StatusCode(), apiErr.text())
	}
	return out.Users, nil
}

func isEmailExists(status int, e errorResponse) bool {
	if e.ErrorCode == "email_exists" || e.ErrorCode == "user_already_exists" {
		return true
	}
	if status == http.StatusUnprocessableEntity || status == http.StatusConflict {
		return strings.Contains(strings.ToLower(e.text()), "already")
	}
	return false
}
