package kalbio

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"
)

// authStub mocks the token endpoint plus a trivial domain endpoint. It
// records every grant form it receives.
type authStub struct {
	mu       sync.Mutex
	grants   []url.Values
	response map[string]any
	status   int
}

func newAuthStub() *authStub {
	return &authStub{
		response: map[string]any{
			"access_token":  "a1",
			"refresh_token": "r1",
			"expires_in":    3600,
		},
		status: http.StatusOK,
	}
}

func (s *authStub) handler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("auth endpoint got method %s, want POST", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse grant form: %v", err)
		}

		s.mu.Lock()
		s.grants = append(s.grants, r.PostForm)
		response := s.response
		status := s.status
		s.mu.Unlock()

		if status >= http.StatusBadRequest {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	})
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":42}`))
	})
	return mux
}

func (s *authStub) grantCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.grants)
}

func (s *authStub) grant(i int) url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grants[i]
}

func (s *authStub) setResponse(accessToken, refreshToken string, expiresIn int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.response = map[string]any{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"expires_in":    expiresIn,
	}
}

func (s *authStub) setStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// newTestClient builds a client against the stub server with a pinned clock.
// The returned function advances the clock.
func newTestClient(t *testing.T, serverURL string, opts ...Option) (*Client, func(time.Duration)) {
	t.Helper()
	opts = append([]Option{
		WithCredentials("test-client", "test-secret"),
		WithBaseURL(serverURL),
	}, opts...)
	client, err := New(opts...)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	client.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(d)
	}
	return client, advance
}

func TestFirstCallPerformsClientCredentialsGrant(t *testing.T) {
	stub := newAuthStub()
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	issued := client.now()

	if _, err := client.Get(context.Background(), "/ping", nil); err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	if got := stub.grantCount(); got != 1 {
		t.Fatalf("auth POST count = %d, want 1", got)
	}
	grant := stub.grant(0)
	if got := grant.Get("grant_type"); got != "client_credentials" {
		t.Errorf("grant_type = %q, want client_credentials", got)
	}
	if got := grant.Get("client_id"); got != "test-client" {
		t.Errorf("client_id = %q, want test-client", got)
	}
	if got := grant.Get("client_secret"); got != "test-secret" {
		t.Errorf("client_secret = %q, want test-secret", got)
	}

	// 3600s lifetime minus the 10 minute buffer.
	want := issued.Add(3000 * time.Second)
	if !client.refreshBefore.Equal(want) {
		t.Errorf("refreshBefore = %v, want %v", client.refreshBefore, want)
	}
	if client.accessToken != "a1" || client.refreshToken != "r1" {
		t.Errorf("token state = (%q, %q), want (a1, r1)", client.accessToken, client.refreshToken)
	}
}

func TestTokenReusedBeforeDeadline(t *testing.T) {
	stub := newAuthStub()
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	client, advance := newTestClient(t, server.URL)

	for i := 0; i < 3; i++ {
		if _, err := client.Get(context.Background(), "/ping", nil); err != nil {
			t.Fatalf("Get() #%d failed: %v", i, err)
		}
	}
	if got := stub.grantCount(); got != 1 {
		t.Fatalf("auth POST count before deadline = %d, want 1", got)
	}

	// One second short of the deadline is still fresh.
	advance(3000*time.Second - time.Second)
	if _, err := client.Get(context.Background(), "/ping", nil); err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got := stub.grantCount(); got != 1 {
		t.Errorf("auth POST count at deadline boundary = %d, want 1", got)
	}
}

func TestRefreshGrantAfterDeadline(t *testing.T) {
	stub := newAuthStub()
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	client, advance := newTestClient(t, server.URL)

	if _, err := client.Get(context.Background(), "/ping", nil); err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	stub.setResponse("a2", "r2", 3600)
	advance(3001 * time.Second)

	if _, err := client.Get(context.Background(), "/ping", nil); err != nil {
		t.Fatalf("Get() after deadline failed: %v", err)
	}

	if got := stub.grantCount(); got != 2 {
		t.Fatalf("auth POST count = %d, want 2", got)
	}
	grant := stub.grant(1)
	if got := grant.Get("grant_type"); got != "refresh_token" {
		t.Errorf("grant_type = %q, want refresh_token", got)
	}
	if got := grant.Get("refresh_token"); got != "r1" {
		t.Errorf("refresh_token = %q, want r1", got)
	}

	// The rotated refresh token must be used for the next refresh.
	stub.setResponse("a3", "r3", 3600)
	advance(3001 * time.Second)
	if _, err := client.Get(context.Background(), "/ping", nil); err != nil {
		t.Fatalf("Get() after second deadline failed: %v", err)
	}
	if got := stub.grant(2).Get("refresh_token"); got != "r2" {
		t.Errorf("rotated refresh_token = %q, want r2", got)
	}
}

func TestRefreshWithoutRefreshTokenFallsBackToFullGrant(t *testing.T) {
	stub := newAuthStub()
	stub.setResponse("a1", "", 3600)
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	client, advance := newTestClient(t, server.URL)

	if _, err := client.Get(context.Background(), "/ping", nil); err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	advance(3001 * time.Second)
	if _, err := client.Get(context.Background(), "/ping", nil); err != nil {
		t.Fatalf("Get() after deadline failed: %v", err)
	}

	if got := stub.grantCount(); got != 2 {
		t.Fatalf("auth POST count = %d, want 2", got)
	}
	if got := stub.grant(1).Get("grant_type"); got != "client_credentials" {
		t.Errorf("fallback grant_type = %q, want client_credentials", got)
	}
}

func TestFailedRefreshSurfacesErrorAndPreservesState(t *testing.T) {
	stub := newAuthStub()
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	client, advance := newTestClient(t, server.URL)

	if _, err := client.Get(context.Background(), "/ping", nil); err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	stub.setStatus(http.StatusInternalServerError)
	advance(3001 * time.Second)

	_, err := client.Get(context.Background(), "/ping", nil)
	if err == nil {
		t.Fatal("Get() after failed refresh returned nil error")
	}
	if !IsAuthError(err) {
		t.Errorf("error %v is not an AuthError", err)
	}
	if client.accessToken != "a1" || client.refreshToken != "r1" {
		t.Errorf("token state after failed refresh = (%q, %q), want (a1, r1)", client.accessToken, client.refreshToken)
	}
}

func TestInitialGrantFailureCarriesDiagnostics(t *testing.T) {
	stub := newAuthStub()
	stub.setStatus(http.StatusUnauthorized)
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)

	_, err := client.Get(context.Background(), "/ping", nil)
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("error %v is not an AuthError", err)
	}
	if authErr.ClientID != "test-client" {
		t.Errorf("AuthError.ClientID = %q, want test-client", authErr.ClientID)
	}
	if authErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("AuthError.StatusCode = %d, want 401", authErr.StatusCode)
	}
	if string(authErr.Body) != `{"error":"invalid_client"}` {
		t.Errorf("AuthError.Body = %q", authErr.Body)
	}
}

func TestConcurrentCallersShareOneGrant(t *testing.T) {
	stub := newAuthStub()
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.Get(context.Background(), "/ping", nil); err != nil {
				t.Errorf("concurrent Get() failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := stub.grantCount(); got != 1 {
		t.Errorf("auth POST count under concurrency = %d, want 1", got)
	}
}
