package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/ankurauti1234/Events-Dashboard/internal/auth"
	"github.com/ankurauti1234/Events-Dashboard/internal/logging"
	"github.com/ankurauti1234/Events-Dashboard/pkg/models"
)

const emailNotVerified = "Please verify your email before logging in"

var (
	ErrEmailNotVerified = errors.New("please verify your email before logging in")
	ErrNoToken          = errors.New("login successful but no token returned")
	ErrNoCredentials    = errors.New("no credentials configured for re-login")
)

type APMClient struct {
	HTTP   *resty.Client
	Config ClientConfig
	log    zerolog.Logger
}

type ClientConfig struct {
	BaseURL  string
	Token    string // bearer token from a previous login
	Username string // email or user name, only needed for Relogin
	Password string
	Timeout  time.Duration
	Retries  int // retries on transport errors and 5xx, GET requests only
	Debug    bool
}

// APIError is returned for any non-2xx response.
type APIError struct {
	Op      string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("failed to %s: HTTP %d", e.Op, e.Status)
	}
	return fmt.Sprintf("failed to %s: %s (HTTP %d)", e.Op, e.Message, e.Status)
}

// IsAuthError reports whether err is a 401/403 from the API.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden
	}
	return false
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

func New(cfg ClientConfig) *APMClient {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	logger := logging.New("client")

	r := resty.New()
	r.SetBaseURL(cfg.BaseURL)
	r.SetTimeout(cfg.Timeout)
	r.SetHeader("Content-Type", "application/json")
	r.SetHeader("Accept", "application/json")
	r.SetHeader("User-Agent", "apm-cli")
	r.SetLogger(restyLogger{logger})
	r.SetDebug(cfg.Debug)

	if cfg.Retries > 0 {
		r.SetRetryCount(cfg.Retries)
		r.SetRetryWaitTime(500 * time.Millisecond)
		r.AddRetryCondition(func(resp *resty.Response, err error) bool {
			if resp != nil && resp.Request != nil && resp.Request.Method != http.MethodGet {
				return false
			}
			return err != nil || (resp != nil && resp.StatusCode() >= http.StatusInternalServerError)
		})
	}

	if cfg.Token != "" {
		r.SetAuthToken(cfg.Token)
	}

	return &APMClient{
		HTTP:   r,
		Config: cfg,
		log:    logger,
	}
}

// Login authenticates against POST /auth/login, injects the bearer token
// into all future requests of this client, and returns the session for
// persistence.
func (c *APMClient) Login(ctx context.Context, emailOrName, password string) (auth.Session, error) {
	var result models.LoginResponse

	resp, err := c.HTTP.R().
		SetContext(ctx).
		SetBody(models.LoginPayload{EmailOrName: emailOrName, Password: password}).
		SetResult(&result).
		SetError(&models.ErrorResponse{}).
		Post("/auth/login")

	if err != nil {
		return auth.Session{}, err
	}

	if resp.IsError() {
		e := apiError("log in", resp)
		if e.Message == "" {
			e.Message = "An error occurred"
		}
		return auth.Session{}, e
	}

	if result.Message == emailNotVerified {
		return auth.Session{}, ErrEmailNotVerified
	}

	if result.Token == "" {
		return auth.Session{}, ErrNoToken
	}

	c.HTTP.SetAuthToken(result.Token)
	c.Config.Token = result.Token
	c.log.Debug().Str("user", result.Name).Msg("logged in")

	return auth.Session{
		Token:  result.Token,
		Name:   result.Name,
		Role:   result.Role,
		Email:  result.Email,
		Expiry: result.ExpiryMillis(),
	}, nil
}

// Relogin repeats the login with the configured credentials. Long running
// callers use it after an auth error.
func (c *APMClient) Relogin(ctx context.Context) (auth.Session, error) {
	if c.Config.Username == "" || c.Config.Password == "" {
		return auth.Session{}, ErrNoCredentials
	}
	return c.Login(ctx, c.Config.Username, c.Config.Password)
}

// apiError builds an APIError from a failed response, preferring the
// server's message field.
func apiError(op string, resp *resty.Response) *APIError {
	e := &APIError{Op: op, Status: resp.StatusCode()}
	if body, ok := resp.Error().(*models.ErrorResponse); ok && body != nil && body.Message != "" {
		e.Message = body.Message
		return e
	}
	e.Message = strings.TrimSpace(resp.String())
	if len(e.Message) > 200 {
		e.Message = e.Message[:200] + "..."
	}
	return e
}

// restyLogger routes resty's internal logging through zerolog.
type restyLogger struct {
	l zerolog.Logger
}

func (r restyLogger) Errorf(format string, v ...interface{}) { r.l.Error().Msgf(format, v...) }
func (r restyLogger) Warnf(format string, v ...interface{})  { r.l.Warn().Msgf(format, v...) }
func (r restyLogger) Debugf(format string, v ...interface{}) { r.l.Debug().Msgf(format, v...) }
