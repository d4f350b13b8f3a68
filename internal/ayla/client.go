package ayla

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-shark/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-shark/internal/shark"
)

const defaultRequestTimeout = 15 * time.Second

// userAgent mimics the Shark Android app; the field environment has been
// seen rejecting unfamiliar agents.
const userAgent = "Dalvik/2.1.0 (Linux; U; Android 8.1.0; Pixel XL Build/OPM4.171019.021.D1)"

// Client talks to the Ayla Networks cloud: the identity service for token
// lifecycle and the device service for device lists, property readouts and
// datapoint writes.
//
// The client is stateless; the caller holds the Session and passes it to
// every authenticated call.
//
// Thread Safety: All methods are safe for concurrent use from multiple
// goroutines, though the engine calls them from a single control flow.
type Client struct {
	userURL   string
	deviceURL string
	appID     string
	appSecret string

	httpClient *http.Client
}

// NewClient creates a cloud client from configuration.
func NewClient(cfg config.AylaConfig) *Client {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &Client{
		userURL:   strings.TrimRight(cfg.UserURL, "/"),
		deviceURL: strings.TrimRight(cfg.DeviceURL, "/"),
		appID:     cfg.AppID,
		appSecret: cfg.AppSecret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Devices fetches the account's device list.
func (c *Client) Devices(ctx context.Context, s Session) ([]Device, error) {
	var envelopes []deviceEnvelope
	if err := c.getJSON(ctx, s, "devices", c.deviceURL+"/apiv1/devices.json", &envelopes); err != nil {
		return nil, err
	}

	devices := make([]Device, 0, len(envelopes))
	for _, env := range envelopes {
		devices = append(devices, env.Device)
	}
	return devices, nil
}

// DeviceProperties fetches and interprets one device's property readout.
// Only whitelisted property names are interpreted; unrecognized names are
// ignored.
func (c *Client) DeviceProperties(ctx context.Context, s Session, dsn string) (shark.DeviceProperties, error) {
	var envelopes []propertyEnvelope
	url := fmt.Sprintf("%s/apiv1/dsns/%s/properties.json", c.deviceURL, dsn)
	if err := c.getJSON(ctx, s, "properties", url, &envelopes); err != nil {
		return shark.DeviceProperties{}, err
	}
	return parseProperties(envelopes), nil
}

// SetPropertyInt writes an integer datapoint to a property addressed by its
// cloud key. Mode and power changes go through this path using the SET_*
// keys captured from the property readout.
func (c *Client) SetPropertyInt(ctx context.Context, s Session, key int, value int) error {
	url := fmt.Sprintf("%s/apiv1/properties/%d/datapoints.json", c.deviceURL, key)
	return c.postDatapoint(ctx, s, url, value)
}

// SetPropertyString writes a string datapoint to a property addressed by
// device serial and property name. The room-clean command goes through this
// path with the encoded room payload as the value.
func (c *Client) SetPropertyString(ctx context.Context, s Session, dsn, name, value string) error {
	url := fmt.Sprintf("%s/apiv1/dsns/%s/properties/%s/datapoints.json", c.deviceURL, dsn, name)
	return c.postDatapoint(ctx, s, url, value)
}

// tokenRequest posts a login or refresh body to the identity service and
// decodes the token response into a Session.
func (c *Client) tokenRequest(ctx context.Context, op, url, authorization string, body map[string]any) (Session, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return Session{}, &Error{Op: op, Kind: KindMalformedResponse, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Session{}, &Error{Op: op, Kind: KindNetworkFailure, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", authorization)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Session{}, &Error{Op: op, Kind: KindNetworkFailure, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Session{}, &Error{Op: op, Kind: KindNetworkFailure, Status: resp.StatusCode, Err: err}
	}

	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    *int   `json:"expires_in"`
		ErrorMsg     string `json:"error"`
	}
	// Decode even on failure statuses; the error body carries the
	// human-readable message.
	decodeErr := json.Unmarshal(respBody, &tokens)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e := &Error{Op: op, Kind: classifyStatus(resp.StatusCode), Status: resp.StatusCode, Message: tokens.ErrorMsg}
		if e.Message == "" {
			e.Message = "unspecified error"
		}
		return Session{}, e
	}
	if decodeErr != nil {
		return Session{}, &Error{Op: op, Kind: KindMalformedResponse, Status: resp.StatusCode, Err: decodeErr}
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" || tokens.ExpiresIn == nil {
		return Session{}, &Error{
			Op:      op,
			Kind:    KindMalformedResponse,
			Status:  resp.StatusCode,
			Message: "token response missing required fields",
		}
	}

	return Session{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(*tokens.ExpiresIn) * time.Second),
	}, nil
}

// getJSON performs an authenticated GET against the device service and
// decodes the response body into out.
func (c *Client) getJSON(ctx context.Context, s Session, op, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &Error{Op: op, Kind: KindNetworkFailure, Err: err}
	}
	c.setAuthHeaders(req, s)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Op: op, Kind: KindNetworkFailure, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain body to allow connection reuse
		_, _ = io.Copy(io.Discard, resp.Body)
		return &Error{Op: op, Kind: classifyStatus(resp.StatusCode), Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Op: op, Kind: KindMalformedResponse, Status: resp.StatusCode, Err: err}
	}
	return nil
}

// postDatapoint writes one datapoint value, integer or string.
func (c *Client) postDatapoint(ctx context.Context, s Session, url string, value any) error {
	payload, err := json.Marshal(map[string]any{
		"datapoint": map[string]any{"value": value},
	})
	if err != nil {
		return &Error{Op: "datapoint", Kind: KindMalformedResponse, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &Error{Op: "datapoint", Kind: KindNetworkFailure, Err: err}
	}
	c.setAuthHeaders(req, s)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Op: "datapoint", Kind: KindNetworkFailure, Err: err}
	}
	defer resp.Body.Close()
	// Drain body to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Op: "datapoint", Kind: classifyStatus(resp.StatusCode), Status: resp.StatusCode}
	}
	return nil
}

// setAuthHeaders applies the common headers for device-service requests.
func (c *Client) setAuthHeaders(req *http.Request, s Session) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", "auth_token "+s.AccessToken)
}

// classifyStatus maps a non-success HTTP status to a failure kind.
func classifyStatus(status int) Kind {
	if status == http.StatusUnauthorized {
		return KindUnauthorized
	}
	return KindHTTPStatus
}
