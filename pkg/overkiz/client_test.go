package overkiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakeAPI struct {
	logins   int
	sessions map[string]bool
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	f := &fakeAPI{sessions: map[string]bool{}}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", f.handleLogin)
	mux.HandleFunc("GET /setup", f.withSession(f.handleSetup))
	mux.HandleFunc("GET /actionGroups", f.withSession(f.handleScenarios))
	mux.HandleFunc("POST /events/register", f.withSession(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"id": "listener-1"})
	}))
	mux.HandleFunc("POST /events/listener-1/fetch", f.withSession(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []Event{
			{Name: EventDeviceStateChanged, DeviceURL: "io://1234-5678-9012/1",
				DeviceStates: []DeviceState{{Name: "core:ClosureState", Value: float64(100)}}},
		})
	}))
	mux.HandleFunc("POST /exec/{oid}", f.withSession(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"execId": "exec-" + r.PathValue("oid")})
	}))
	mux.HandleFunc("GET /setup/options/{option}", f.withSession(func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("option") != "developerMode-1234-5678-9012" {
			writeAPIError(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Unknown option")
			return
		}
		writeJSON(w, SetupOption{OptionName: "developerMode-1234-5678-9012"})
	}))
	mux.HandleFunc("GET /config/{gateway}/local/tokens/generate", f.withSession(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"token": "fresh-local-token"})
	}))
	mux.HandleFunc("POST /config/{gateway}/local/tokens", f.withSession(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body["scope"] != "devmode" {
			writeAPIError(w, http.StatusBadRequest, "BAD_PARAMETERS", "Invalid scope")
			return
		}
		writeJSON(w, map[string]string{"requestId": "req-1"})
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAPI) handleLogin(w http.ResponseWriter, r *http.Request) {
	f.logins++
	if r.PostFormValue("userId") != "user@example.com" || r.PostFormValue("userPassword") != "secret" {
		writeAPIError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "Bad credentials")
		return
	}
	sid := fmt.Sprintf("session-%d", f.logins)
	f.sessions[sid] = true
	http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: sid, Path: "/"})
	writeJSON(w, map[string]bool{"success": true})
}

func (f *fakeAPI) withSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("JSESSIONID")
		if err != nil || !f.sessions[c.Value] {
			writeAPIError(w, http.StatusUnauthorized, "RESOURCE_ACCESS_DENIED", "Not authenticated")
			return
		}
		next(w, r)
	}
}

func (f *fakeAPI) handleSetup(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, Setup{
		Gateways: []Gateway{TestGateway()},
		Devices: []Device{
			{DeviceURL: "io://1234-5678-9012/1", Label: "Shutter", UIClass: UIClassRollerShutter,
				States: []DeviceState{{Name: "core:ClosureState", Type: 1, Value: 25}}, Available: true, Enabled: true},
		},
		RootPlace: Place{OID: "root", Label: "All House"},
	})
}

func (f *fakeAPI) handleScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, []Scenario{{OID: "scn-1", Label: "Good Night"}})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"errorCode": code, "error": msg})
}

func cloudClient(srv *httptest.Server) *HTTPClient {
	return NewCloudClient("user@example.com", "secret", Server{Name: "test", Endpoint: srv.URL}, nil)
}

func TestCloudLoginAndSetup(t *testing.T) {
	_, srv := newFakeAPI(t)
	client := cloudClient(srv)
	ctx := context.Background()

	if err := client.Login(ctx); err != nil {
		t.Fatal(err)
	}
	setup, err := client.GetSetup(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(setup.Gateways) != 1 || setup.Gateways[0].ID != "1234-5678-9012" {
		t.Errorf("unexpected gateways: %+v", setup.Gateways)
	}
	if len(setup.Devices) != 1 || setup.Devices[0].UIClass != UIClassRollerShutter {
		t.Errorf("unexpected devices: %+v", setup.Devices)
	}
	scenarios, err := client.GetScenarios(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(scenarios) != 1 || scenarios[0].Label != "Good Night" {
		t.Errorf("unexpected scenarios: %+v", scenarios)
	}
}

func TestCloudLoginBadCredentials(t *testing.T) {
	_, srv := newFakeAPI(t)
	client := NewCloudClient("user@example.com", "wrong", Server{Endpoint: srv.URL}, nil)

	err := client.Login(context.Background())
	if !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("want ErrBadCredentials, got %v", err)
	}
}

func TestCloudSessionExpiryRetriesOnce(t *testing.T) {
	f, srv := newFakeAPI(t)
	client := cloudClient(srv)
	ctx := context.Background()

	if err := client.Login(ctx); err != nil {
		t.Fatal(err)
	}
	// invalidate the session server side, the next call must log in again
	f.sessions["session-1"] = false

	if _, err := client.GetSetup(ctx); err != nil {
		t.Fatal(err)
	}
	if f.logins != 2 {
		t.Errorf("want 2 logins, got %d", f.logins)
	}
}

func TestEventListenerLifecycle(t *testing.T) {
	_, srv := newFakeAPI(t)
	client := cloudClient(srv)
	ctx := context.Background()

	if _, err := client.FetchEvents(ctx); !errors.Is(err, ErrNoRegisteredListener) {
		t.Fatalf("want ErrNoRegisteredListener, got %v", err)
	}

	if err := client.Login(ctx); err != nil {
		t.Fatal(err)
	}
	id, err := client.RegisterEventListener(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if id != "listener-1" {
		t.Errorf("unexpected listener id %q", id)
	}
	events, err := client.FetchEvents(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Name != EventDeviceStateChanged {
		t.Errorf("unexpected events: %+v", events)
	}
	if events[0].DeviceStates[0].Value != float64(100) {
		t.Errorf("unexpected state value: %+v", events[0].DeviceStates)
	}
}

func TestExecuteScenario(t *testing.T) {
	_, srv := newFakeAPI(t)
	client := cloudClient(srv)
	ctx := context.Background()

	if err := client.Login(ctx); err != nil {
		t.Fatal(err)
	}
	execID, err := client.Execute(ctx, "scn-1")
	if err != nil {
		t.Fatal(err)
	}
	if execID != "exec-scn-1" {
		t.Errorf("unexpected exec id %q", execID)
	}
}

func TestGetSetupOption(t *testing.T) {
	_, srv := newFakeAPI(t)
	client := cloudClient(srv)
	ctx := context.Background()

	if err := client.Login(ctx); err != nil {
		t.Fatal(err)
	}
	opt, err := client.GetSetupOption(ctx, "developerMode-1234-5678-9012")
	if err != nil {
		t.Fatal(err)
	}
	if opt == nil || opt.OptionName != "developerMode-1234-5678-9012" {
		t.Errorf("unexpected option: %+v", opt)
	}

	// a missing option is not an error
	opt, err = client.GetSetupOption(ctx, "developerMode-0000-0000-0000")
	if err != nil {
		t.Fatal(err)
	}
	if opt != nil {
		t.Errorf("want nil option, got %+v", opt)
	}
}

func TestLocalTokenProvisioning(t *testing.T) {
	_, srv := newFakeAPI(t)
	client := cloudClient(srv)
	ctx := context.Background()

	if err := client.Login(ctx); err != nil {
		t.Fatal(err)
	}
	token, err := client.GenerateLocalToken(ctx, "1234-5678-9012")
	if err != nil {
		t.Fatal(err)
	}
	if token != "fresh-local-token" {
		t.Errorf("unexpected token %q", token)
	}
	reqID, err := client.ActivateLocalToken(ctx, "1234-5678-9012", token, "overkiz2mqtt")
	if err != nil {
		t.Fatal(err)
	}
	if reqID != "req-1" {
		t.Errorf("unexpected request id %q", reqID)
	}
}

// The gateway exposes the local API behind a self signed certificate, so the
// local client has to accept it and authenticate with a bearer token.
func TestLocalClientTLSAndBearerAuth(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /enduser-mobile-web/1/enduserAPI/apiVersion", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer local-token" {
			writeAPIError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "Not such token with UUID: x")
			return
		}
		writeJSON(w, map[string]string{"protocolVersion": "2023.1.4"})
	})
	srv := httptest.NewTLSServer(mux)
	defer srv.Close()
	host := strings.TrimPrefix(srv.URL, "https://")

	client := NewLocalClient(host, "local-token", nil)
	if err := client.Login(context.Background()); err != nil {
		t.Fatalf("local login: %v", err)
	}

	bad := NewLocalClient(host, "revoked", nil)
	err := bad.Login(context.Background())
	if !errors.Is(err, ErrNotSuchToken) {
		t.Fatalf("want ErrNotSuchToken, got %v", err)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"bad credentials", 401, `{"errorCode":"AUTHENTICATION_ERROR","error":"Bad credentials"}`, ErrBadCredentials},
		{"not such token", 401, `{"error":"Not such token with UUID: deadbeef"}`, ErrNotSuchToken},
		{"banned", 401, `{"error":"Too many attempts with an invalid token, temporarily banned"}`, ErrTooManyAttemptsBanned},
		{"unknown user", 401, `{"error":"Unknown user someone@example.com"}`, ErrUnknownUser},
		{"plain unauthorized", 401, `{"error":"Access denied"}`, ErrNotAuthenticated},
		{"too many requests", 429, `{}`, ErrTooManyRequests},
		{"maintenance", 503, `back soon`, ErrMaintenance},
		{"listener gone", 400, `{"error":"No registered event listener"}`, ErrNoRegisteredListener},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client := NewCloudClient("u", "p", Server{Endpoint: srv.URL}, nil)
			_, err := client.GetSetup(context.Background())
			if !errors.Is(err, tc.want) {
				t.Errorf("want %v, got %v", tc.want, err)
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) || apiErr.Status != tc.status {
				t.Errorf("want APIError with status %d, got %v", tc.status, err)
			}
		})
	}
}

func TestUnknownErrorKeepsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotImplemented)
		_, _ = w.Write([]byte(`{"error":"execution queue is full"}`))
	}))
	defer srv.Close()

	client := NewCloudClient("u", "p", Server{Endpoint: srv.URL}, nil)
	_, err := client.GetScenarios(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("want APIError, got %v", err)
	}
	if apiErr.Status != http.StatusNotImplemented || apiErr.Unwrap() != nil {
		t.Errorf("unexpected APIError: %+v", apiErr)
	}
}
