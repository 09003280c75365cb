package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/monorkin/flow-index-monitor/internal/version"
	"github.com/sony/gobreaker"
)

const (
	REQUEST_TIMEOUT       = 15 * time.Second
	TIMESTAMP_FORMAT      = "2006-01-02T15:04:05.000Z07:00"
	BREAKER_NAME          = "telemetry-api"
	BREAKER_MAX_FAILURES  = 5
	BREAKER_OPEN_DURATION = 30 * time.Second
	MAX_ERROR_BODY        = 512
)

var (
	// ErrNoToken is returned by Login when the provider answers without a token.
	ErrNoToken = errors.New("login response did not contain a token")

	// ErrCircuitOpen is returned while the provider is being fast-failed.
	ErrCircuitOpen = gobreaker.ErrOpenState

	// ErrInvalidResponse wraps bodies that could not be decoded.
	ErrInvalidResponse = errors.New("invalid response")
)

// Config holds the provider location and credentials.
type Config struct {
	BaseURL    string
	Email      string
	Password   string
	ClientType string
	Timeout    time.Duration
}

type Client struct {
	httpClient http.Client
	baseURL    string
	config     Config
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

// StatusError is returned when the provider answers with a non-2xx status.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func NewClient(config Config) *Client {
	return NewClientWithLogger(config, nil)
}

func NewClientWithLogger(config Config, logger *slog.Logger) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = REQUEST_TIMEOUT
	}

	client := &Client{
		httpClient: http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		config:  config,
		logger:  logger,
	}

	client.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    BREAKER_NAME,
		Timeout: BREAKER_OPEN_DURATION,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= BREAKER_MAX_FAILURES
		},
		IsSuccessful: func(err error) bool {
			var callerErr callerError
			return err == nil || errors.As(err, &callerErr)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			client.log(slog.LevelWarn, "Provider circuit breaker changed state", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return client
}

func (client *Client) log(level slog.Level, msg string, args ...any) {
	if client.logger != nil {
		client.logger.Log(context.Background(), level, msg, args...)
	}
}

// Login exchanges the configured credentials for a bearer token.
func (client *Client) Login(ctx context.Context) (string, error) {
	body := map[string]string{
		"email":      client.config.Email,
		"password":   client.config.Password,
		"clientType": client.config.ClientType,
	}

	var data struct {
		Token string `json:"token"`
	}
	if err := client.do(ctx, http.MethodPost, "/login", nil, "", body, &data); err != nil {
		return "", fmt.Errorf("failed to log in: %w", err)
	}

	if data.Token == "" {
		return "", ErrNoToken
	}

	client.log(slog.LevelDebug, "Logged in to telemetry provider", "base_url", client.baseURL)

	return data.Token, nil
}

// ListDevices returns every device visible to the token.
func (client *Client) ListDevices(ctx context.Context, token string) ([]Device, error) {
	var devices []Device
	if err := client.do(ctx, http.MethodGet, "/devices", nil, token, nil, &devices); err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	client.log(slog.LevelDebug, "Devices fetched", "devices_count", len(devices))

	return devices, nil
}

// FetchReadings returns the classified readings of deviceID between from and
// to. A nil from asks for everything the provider has up to to.
func (client *Client) FetchReadings(ctx context.Context, token string, deviceID string, from *time.Time, to time.Time) ([]Reading, error) {
	query := url.Values{}
	query.Set("deviceId", deviceID)
	query.Set("includeData", "true")
	if from != nil {
		query.Set("dateFrom", from.UTC().Format(TIMESTAMP_FORMAT))
	}
	query.Set("dateTo", to.UTC().Format(TIMESTAMP_FORMAT))

	var readings []Reading
	if err := client.do(ctx, http.MethodGet, "/data-classifications", query, token, nil, &readings); err != nil {
		return nil, fmt.Errorf("failed to fetch readings for device %s: %w", deviceID, err)
	}

	client.log(slog.LevelDebug, "Readings fetched", "device_id", deviceID, "readings_count", len(readings))

	return readings, nil
}

// callerError carries a failure caused by the request itself (4xx, an
// undecodable body, the caller's context ending) rather than by the provider
// being unhealthy. The breaker records it as a success.
type callerError struct {
	err error
}

func (e callerError) Error() string { return e.err.Error() }
func (e callerError) Unwrap() error { return e.err }

// do performs one request through the circuit breaker and decodes the
// "data" member of the response envelope into out. Only transport errors
// and 5xx answers count toward opening the breaker.
func (client *Client) do(ctx context.Context, method string, path string, query url.Values, token string, body any, out any) error {
	_, err := client.breaker.Execute(func() (interface{}, error) {
		err := client.roundTrip(ctx, method, path, query, token, body, out)
		if err != nil && !providerFault(ctx, err) {
			return nil, callerError{err: err}
		}
		return nil, err
	})

	var callerErr callerError
	if errors.As(err, &callerErr) {
		return callerErr.err
	}
	return err
}

func providerFault(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, ErrInvalidResponse) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}

	return true
}

func (client *Client) roundTrip(ctx context.Context, method string, path string, query url.Values, token string, body any, out any) error {
	endpoint := client.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		payload = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, endpoint, payload)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	request.Header.Set("User-Agent", "flow-index-monitor/"+version.GetVersion())
	request.Header.Set("Accept", "application/json")
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	response, err := client.httpClient.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(response.Body, MAX_ERROR_BODY))
		return &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: response.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.Unmarshal(responseBody, &envelope); err != nil {
		return fmt.Errorf("%w: failed to unmarshal response: %w", ErrInvalidResponse, err)
	}

	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("%w: failed to unmarshal response data: %w", ErrInvalidResponse, err)
	}

	return nil
}
