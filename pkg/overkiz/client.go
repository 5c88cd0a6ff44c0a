package overkiz

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultRequestTimeout = 30 * time.Second

// HTTPClient implements Client over the Overkiz REST API. It is not safe for
// concurrent use, hand each consumer its own instance.
type HTTPClient struct {
	server   Server
	apiType  APIType
	username string
	password string
	token    string
	http     *http.Client
	logger   *zap.Logger
	loggedIn bool
	listener string
}

// NewCloudClient returns a client for one of the SupportedServers. Each
// client carries its own cookie jar, so sessions of different accounts on the
// same server never mix.
func NewCloudClient(username, password string, server Server, logger *zap.Logger) *HTTPClient {
	jar, _ := cookiejar.New(nil)
	return &HTTPClient{
		server:   server,
		apiType:  APITypeCloud,
		username: username,
		password: password,
		logger:   orNopLogger(logger),
		http: &http.Client{
			Timeout: defaultRequestTimeout,
			Jar:     jar,
		},
	}
}

// NewLocalClient returns a client for the developer mode API of a gateway on
// the LAN. Certificate checks stay off: the gateway serves a self signed
// certificate with a wrong common name.
// https://github.com/Somfy-Developer/Somfy-TaHoma-Developer-Mode/issues/5
func NewLocalClient(host, token string, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		server:  NewLocalServer(host),
		apiType: APITypeLocal,
		token:   token,
		logger:  orNopLogger(logger),
		http: &http.Client{
			Timeout: defaultRequestTimeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}
}

func orNopLogger(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func (c *HTTPClient) Server() Server {
	return c.server
}

func (c *HTTPClient) APIType() APIType {
	return c.apiType
}

func (c *HTTPClient) Login(ctx context.Context) error {
	if c.apiType == APITypeLocal {
		// Bearer tokens need no session. Probe the API so a revoked token
		// fails now and not on the first poll.
		var version struct {
			ProtocolVersion string `json:"protocolVersion"`
		}
		if err := c.do(ctx, http.MethodGet, "/apiVersion", nil, &version); err != nil {
			return err
		}
		c.loggedIn = true
		return nil
	}

	form := url.Values{}
	form.Set("userId", c.username)
	form.Set("userPassword", c.password)
	var res struct {
		Success bool `json:"success"`
	}
	c.loggedIn = false
	if err := c.doForm(ctx, "/login", form, &res); err != nil {
		return err
	}
	if !res.Success {
		return &APIError{Status: http.StatusUnauthorized, Message: "login rejected", err: ErrBadCredentials}
	}
	c.loggedIn = true
	return nil
}

func (c *HTTPClient) GetSetup(ctx context.Context) (*Setup, error) {
	var setup Setup
	if err := c.do(ctx, http.MethodGet, "/setup", nil, &setup); err != nil {
		return nil, err
	}
	return &setup, nil
}

func (c *HTTPClient) GetGateways(ctx context.Context) ([]Gateway, error) {
	var gateways []Gateway
	if err := c.do(ctx, http.MethodGet, "/setup/gateways", nil, &gateways); err != nil {
		return nil, err
	}
	return gateways, nil
}

func (c *HTTPClient) GetDevices(ctx context.Context) ([]Device, error) {
	var devices []Device
	if err := c.do(ctx, http.MethodGet, "/setup/devices", nil, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

func (c *HTTPClient) GetScenarios(ctx context.Context) ([]Scenario, error) {
	var scenarios []Scenario
	if err := c.do(ctx, http.MethodGet, "/actionGroups", nil, &scenarios); err != nil {
		return nil, err
	}
	return scenarios, nil
}

func (c *HTTPClient) RegisterEventListener(ctx context.Context) (string, error) {
	var res struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/events/register", nil, &res); err != nil {
		return "", err
	}
	c.listener = res.ID
	return res.ID, nil
}

func (c *HTTPClient) FetchEvents(ctx context.Context) ([]Event, error) {
	if c.listener == "" {
		return nil, ErrNoRegisteredListener
	}
	var events []Event
	if err := c.do(ctx, http.MethodPost, "/events/"+url.PathEscape(c.listener)+"/fetch", nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *HTTPClient) UnregisterEventListener(ctx context.Context) error {
	if c.listener == "" {
		return nil
	}
	if err := c.do(ctx, http.MethodPost, "/events/"+url.PathEscape(c.listener)+"/unregister", nil, nil); err != nil {
		return err
	}
	c.listener = ""
	return nil
}

func (c *HTTPClient) Execute(ctx context.Context, oid string) (string, error) {
	var res struct {
		ExecID string `json:"execId"`
	}
	if err := c.do(ctx, http.MethodPost, "/exec/"+url.PathEscape(oid), nil, &res); err != nil {
		return "", err
	}
	return res.ExecID, nil
}

func (c *HTTPClient) GetSetupOption(ctx context.Context, option string) (*SetupOption, error) {
	var opt *SetupOption
	if err := c.do(ctx, http.MethodGet, "/setup/options/"+url.PathEscape(option), nil, &opt); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return opt, nil
}

func (c *HTTPClient) GenerateLocalToken(ctx context.Context, gatewayID string) (string, error) {
	var res struct {
		Token string `json:"token"`
	}
	path := "/config/" + url.PathEscape(gatewayID) + "/local/tokens/generate"
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return "", err
	}
	return res.Token, nil
}

func (c *HTTPClient) ActivateLocalToken(ctx context.Context, gatewayID, token, label string) (string, error) {
	body := map[string]string{
		"label": label,
		"token": token,
		"scope": "devmode",
	}
	var res struct {
		RequestID string `json:"requestId"`
	}
	path := "/config/" + url.PathEscape(gatewayID) + "/local/tokens"
	if err := c.do(ctx, http.MethodPost, path, body, &res); err != nil {
		return "", err
	}
	return res.RequestID, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	contentType := ""
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = b
		contentType = "application/json"
	}
	return c.roundTrip(ctx, method, path, payload, contentType, out, true)
}

func (c *HTTPClient) doForm(ctx context.Context, path string, form url.Values, out any) error {
	return c.roundTrip(ctx, http.MethodPost, path, []byte(form.Encode()), "application/x-www-form-urlencoded", out, false)
}

func (c *HTTPClient) roundTrip(ctx context.Context, method, path string, payload []byte, contentType string, out any, retryAuth bool) error {
	start := time.Now()
	resp, err := c.send(ctx, method, path, payload, contentType)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized && retryAuth && c.apiType == APITypeCloud && c.loggedIn {
		// Cloud sessions expire server side. Log in again once and retry.
		drain(resp)
		c.loggedIn = false
		if err := c.Login(ctx); err != nil {
			return err
		}
		resp, err = c.send(ctx, method, path, payload, contentType)
		if err != nil {
			return err
		}
	}
	defer drain(resp)

	c.logger.Debug("api request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPClient) send(ctx context.Context, method, path string, payload []byte, contentType string) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.server.Endpoint+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.apiType == APITypeLocal {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.http.Do(req)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		ErrorCode string `json:"errorCode"`
		Message   string `json:"error"`
	}
	_ = json.Unmarshal(raw, &body)

	apiErr := &APIError{Status: resp.StatusCode, Code: body.ErrorCode, Message: body.Message}
	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		apiErr.err = ErrMaintenance
	case resp.StatusCode == http.StatusTooManyRequests:
		apiErr.err = ErrTooManyRequests
	case strings.Contains(body.Message, "Too many requests"):
		apiErr.err = ErrTooManyRequests
	case strings.Contains(body.Message, "Too many attempts"):
		apiErr.err = ErrTooManyAttemptsBanned
	case strings.Contains(body.Message, "Bad credentials"):
		apiErr.err = ErrBadCredentials
	case strings.HasPrefix(body.Message, "Not such token"):
		apiErr.err = ErrNotSuchToken
	case strings.Contains(body.Message, "Unknown user"):
		apiErr.err = ErrUnknownUser
	case strings.Contains(body.Message, "No registered event listener"):
		apiErr.err = ErrNoRegisteredListener
	case resp.StatusCode == http.StatusUnauthorized:
		apiErr.err = ErrNotAuthenticated
	}
	return apiErr
}
