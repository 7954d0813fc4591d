// Package supabase is the remote persistence strategy: every operation is a
// PostgREST call scoped to the user that owns the access token.
package supabase

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/boddenberg/zenith-finance-go/internal/domain"
	"github.com/boddenberg/zenith-finance-go/internal/infra/resilience"
)

var tracer = otel.Tracer("supabase")

// Schema is the DDL the tables and the cascade function expect.
//
//go:embed schema.sql
var Schema string

const backendName = "supabase"

// Options carries the externally supplied endpoint and credentials.
type Options struct {
	BaseURL     string
	AnonKey     string
	AccessToken string
	// JWTSecret enables HS256 verification of AccessToken when set.
	JWTSecret string
}

// Missing lists the required options that are empty.
func (o Options) Missing() []string {
	var missing []string
	if o.BaseURL == "" {
		missing = append(missing, "SUPABASE_URL")
	}
	if o.AnonKey == "" {
		missing = append(missing, "SUPABASE_ANON_KEY")
	}
	if o.AccessToken == "" {
		missing = append(missing, "SUPABASE_ACCESS_TOKEN")
	}
	return missing
}

// DurationRecorder receives per-call latencies.
type DurationRecorder interface {
	RecordAdapterDuration(op string, d time.Duration)
}

// Client wraps HTTP calls to the Supabase PostgREST API and implements
// port.Persistence.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	accessToken string
	userID      string
	missing     []string

	cb      *gobreaker.CircuitBreaker
	cfg     resilience.Config
	logger  *zap.Logger
	metrics DurationRecorder
}

// NewClient creates a Supabase client. An incomplete configuration still
// yields a client; every call on it fails with domain.ErrNotConfigured. An
// access token that cannot be parsed, or fails verification, is rejected
// here with domain.ErrUnauthorized.
func NewClient(httpClient *http.Client, opts Options, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger, metrics DurationRecorder) (*Client, error) {
	c := &Client{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		apiKey:      opts.AnonKey,
		accessToken: opts.AccessToken,
		missing:     opts.Missing(),
		cb:          cb,
		cfg:         cfg,
		logger:      logger,
		metrics:     metrics,
	}
	if len(c.missing) > 0 {
		logger.Warn("supabase: not configured, all calls will fail",
			zap.Strings("missing", c.missing))
		return c, nil
	}

	userID, err := OwnerID(opts.AccessToken, opts.JWTSecret)
	if err != nil {
		return nil, err
	}
	c.userID = userID
	return c, nil
}

// UserID is the owner every row is scoped to.
func (c *Client) UserID() string {
	return c.userID
}

// OwnerID extracts the sub claim from a Supabase access token. With a
// secret the HS256 signature and expiry are checked; without one the token
// is only decoded.
func OwnerID(token, secret string) (string, error) {
	claims := jwt.RegisteredClaims{}
	var err error
	if secret != "" {
		_, err = jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	} else {
		_, _, err = jwt.NewParser().ParseUnverified(token, &claims)
	}
	if err != nil {
		return "", &domain.ErrUnauthorized{Message: "invalid access token: " + err.Error()}
	}
	if claims.Subject == "" {
		return "", &domain.ErrUnauthorized{Message: "access token has no subject"}
	}
	return claims.Subject, nil
}

// statusError is a non-2xx answer that did not map to a domain error.
type statusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("supabase %s %s returned %d: %s", e.Method, e.Path, e.Status, e.Body)
}

func isStatus(err error, status int) bool {
	var se *statusError
	return errors.As(err, &se) && se.Status == status
}

// do executes an authenticated request and maps the status to a typed
// error.
func (c *Client) do(ctx context.Context, method, path string, payload any, prefer string) ([]byte, error) {
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, resilience.Permanent(fmt.Errorf("encode %s body: %w", path, err))
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, resilience.Permanent(err)
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}
	raw := buf.Bytes()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.logger.Debug("supabase: request OK",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return raw, nil
	}

	c.logger.Warn("supabase: non-2xx response",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("body", string(raw)),
	)
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, &domain.ErrUnauthorized{Message: fmt.Sprintf("supabase rejected credentials (%d)", resp.StatusCode)}
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return nil, &domain.ErrValidation{Field: "request", Message: postgrestMessage(raw)}
	case http.StatusNotFound:
		return nil, resilience.Permanent(&statusError{Method: method, Path: path, Status: resp.StatusCode, Body: string(raw)})
	}
	return nil, &statusError{Method: method, Path: path, Status: resp.StatusCode, Body: string(raw)}
}

// postgrestMessage pulls the message field out of a PostgREST error body.
func postgrestMessage(raw []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &e); err == nil && e.Message != "" {
		return e.Message
	}
	return strings.TrimSpace(string(raw))
}

// read runs a GET under the circuit breaker with retries.
func (c *Client) read(ctx context.Context, op, path string) ([]byte, error) {
	var body []byte
	err := c.call(ctx, op, func(ctx context.Context) error {
		return resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			var err error
			body, err = c.do(ctx, http.MethodGet, path, nil, "")
			return err
		})
	})
	return body, err
}

// write runs a single mutation under the circuit breaker. Writes are not
// retried.
func (c *Client) write(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	var body []byte
	err := c.call(ctx, op, func(ctx context.Context) error {
		var err error
		body, err = c.do(ctx, method, path, payload, "return=representation")
		return err
	})
	return body, err
}

// call wraps fn with configuration checks, a span, the breaker, latency
// recording and error typing.
func (c *Client) call(ctx context.Context, op string, fn func(context.Context) error) error {
	if len(c.missing) > 0 {
		return &domain.ErrNotConfigured{Backend: backendName, Missing: c.missing}
	}

	ctx, span := tracer.Start(ctx, "Supabase."+op, trace.WithAttributes(
		attribute.String("supabase.user_id", c.userID),
	))
	defer span.End()

	start := time.Now()
	err := resilience.Execute(c.cb, func() error { return fn(ctx) })
	if c.metrics != nil {
		c.metrics.RecordAdapterDuration(backendName+"."+op, time.Since(start))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return typed(op, err)
	}
	return nil
}

// typed leaves domain errors untouched and wraps everything else.
func typed(op string, err error) error {
	var (
		nf   *domain.ErrNotFound
		val  *domain.ErrValidation
		auth *domain.ErrUnauthorized
		open *domain.ErrCircuitOpen
		nc   *domain.ErrNotConfigured
		cas  *domain.ErrCascadeInconsistency
	)
	if errors.As(err, &nf) || errors.As(err, &val) || errors.As(err, &auth) ||
		errors.As(err, &open) || errors.As(err, &nc) || errors.As(err, &cas) {
		return err
	}
	return &domain.ErrExternalService{Service: backendName + "/" + op, Err: err}
}

func decodeRows[T any](body []byte, what string) ([]T, error) {
	var rows []T
	if len(bytes.TrimSpace(body)) == 0 {
		return rows, nil
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode %s: %w", what, err)
	}
	return rows, nil
}

// Ping issues a cheap authenticated read.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.read(ctx, "Ping", "accounts?select=id&limit=1")
	return err
}
