package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/escrowlabs/escrowd/internal/auth"
	"github.com/escrowlabs/escrowd/internal/config"
	"github.com/escrowlabs/escrowd/internal/escrow"
	"github.com/escrowlabs/escrowd/internal/middleware"
	"github.com/escrowlabs/escrowd/internal/models"
	"github.com/escrowlabs/escrowd/internal/service"
	"github.com/escrowlabs/escrowd/internal/storage/sqlite"
	"github.com/escrowlabs/escrowd/internal/treasury"
)

type testEnv struct {
	server *httptest.Server
	jwt    *auth.JWTManager
	bank   *treasury.Bank
}

func disabledRateLimit() config.RateLimitConfig {
	off := false
	return config.RateLimitConfig{Enabled: &off}
}

func newTestEnv(t *testing.T, rl config.RateLimitConfig) *testEnv {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "escrow.db"))
	if err != nil {
		t.Fatalf("sqlite.New failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	bank := treasury.NewBank()
	ledger, err := escrow.New(escrow.Config{
		Owner:      "owner",
		Arbitrator: "arbitrator",
		FeePercent: 2,
		Timeout:    30 * 24 * time.Hour,
	}, bank, store, escrow.MultiSink{service.NewStoreSink(store)})
	if err != nil {
		t.Fatalf("escrow.New failed: %v", err)
	}

	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	authenticator := auth.NewPasswordAuthenticator(store)

	rpcServer := NewServer(
		service.NewEscrowService(ledger, store),
		service.NewAdminService(ledger),
		service.NewAuthService(authenticator, jwtManager),
		rl,
	)

	handler := middleware.Identify(jwtManager)(rpcServer.Handler())
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, jwt: jwtManager, bank: bank}
}

// tokenFor mints a token for a fixed principal, bypassing registration.
func (e *testEnv) tokenFor(t *testing.T, principal string) string {
	t.Helper()
	token, err := e.jwt.Generate(&models.User{ID: principal, Email: principal + "@example.com"})
	if err != nil {
		t.Fatalf("token generation failed: %v", err)
	}
	return token
}

type rpcResult struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (e *testEnv) call(t *testing.T, token, method string, params any) rpcResult {
	t.Helper()

	body := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		body["params"] = params
	}
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, e.server.URL, bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s: %v", method, err)
	}
	defer resp.Body.Close()

	var out rpcResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("%s: decode response: %v", method, err)
	}
	return out
}

func (e *testEnv) mustCall(t *testing.T, token, method string, params any) json.RawMessage {
	t.Helper()
	out := e.call(t, token, method, params)
	if out.Error != nil {
		t.Fatalf("%s failed: code %d: %s", method, out.Error.Code, out.Error.Message)
	}
	return out.Result
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, disabledRateLimit())
	result := env.mustCall(t, "", "health_check", nil)

	var status map[string]string
	if err := json.Unmarshal(result, &status); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if status["status"] != "ok" {
		t.Errorf("status = %q, want ok", status["status"])
	}
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t, disabledRateLimit())

	result := env.mustCall(t, "", "auth_register", map[string]any{
		"email":        "alice@example.com",
		"display_name": "Alice",
		"password":     "correct horse",
	})
	var session struct {
		Token string `json:"token"`
		User  struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	}
	if err := json.Unmarshal(result, &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.Token == "" || session.User.ID == "" {
		t.Fatalf("incomplete session: %+v", session)
	}

	// The returned token authenticates RPC calls.
	env.mustCall(t, session.Token, "escrow_listProjects", nil)

	// Login with the right and wrong password.
	env.mustCall(t, "", "auth_login", map[string]any{
		"email":    "alice@example.com",
		"password": "correct horse",
	})
	out := env.call(t, "", "auth_login", map[string]any{
		"email":    "alice@example.com",
		"password": "battery staple",
	})
	if out.Error == nil || out.Error.Code != codeAuthFailed {
		t.Errorf("bad login error = %+v, want code %d", out.Error, codeAuthFailed)
	}

	// Duplicate registration is rejected.
	out = env.call(t, "", "auth_register", map[string]any{
		"email":        "alice@example.com",
		"display_name": "Alice Again",
		"password":     "correct horse",
	})
	if out.Error == nil || out.Error.Code != codeAuthFailed {
		t.Errorf("duplicate register error = %+v, want code %d", out.Error, codeAuthFailed)
	}
}

func TestEscrowLifecycle(t *testing.T) {
	env := newTestEnv(t, disabledRateLimit())
	alice := env.tokenFor(t, "alice")
	bob := env.tokenFor(t, "bob")

	result := env.mustCall(t, alice, "escrow_create", map[string]any{
		"payee":       "bob",
		"amount":      100,
		"title":       "logo design",
		"description": "three drafts",
	})
	var created struct {
		Project struct {
			ID    uint64 `json:"id"`
			State string `json:"state"`
		} `json:"project"`
	}
	if err := json.Unmarshal(result, &created); err != nil {
		t.Fatalf("decode create result: %v", err)
	}
	id := created.Project.ID
	if id == 0 || created.Project.State != "created" {
		t.Fatalf("unexpected created project: %+v", created.Project)
	}

	env.mustCall(t, alice, "escrow_fund", map[string]any{"project_id": id, "value": 100})
	env.mustCall(t, alice, "escrow_approve", map[string]any{"project_id": id})
	env.mustCall(t, bob, "escrow_withdraw", map[string]any{"project_id": id})

	if got := env.bank.Balance("bob"); got != 98 {
		t.Errorf("payee balance = %d, want 98", got)
	}
	if got := env.bank.Balance("owner"); got != 2 {
		t.Errorf("owner balance = %d, want 2", got)
	}

	result = env.mustCall(t, alice, "escrow_getProject", map[string]any{"project_id": id})
	var fetched struct {
		Project struct {
			State  string `json:"state"`
			Amount uint64 `json:"amount"`
		} `json:"project"`
	}
	if err := json.Unmarshal(result, &fetched); err != nil {
		t.Fatalf("decode get result: %v", err)
	}
	if fetched.Project.State != "completed" || fetched.Project.Amount != 0 {
		t.Errorf("final project = %+v, want completed/0", fetched.Project)
	}

	// The audit trail has one event per transition, oldest first.
	result = env.mustCall(t, alice, "escrow_listEvents", map[string]any{"project_id": id})
	var trail struct {
		Events []struct {
			Op     string `json:"op"`
			Payout uint64 `json:"payout"`
			Fee    uint64 `json:"fee"`
		} `json:"events"`
	}
	if err := json.Unmarshal(result, &trail); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	wantOps := []string{"create", "fund", "approve", "withdraw"}
	if len(trail.Events) != len(wantOps) {
		t.Fatalf("got %d events, want %d", len(trail.Events), len(wantOps))
	}
	for i, op := range wantOps {
		if trail.Events[i].Op != op {
			t.Errorf("event %d op = %s, want %s", i, trail.Events[i].Op, op)
		}
	}
	final := trail.Events[len(trail.Events)-1]
	if final.Payout != 98 || final.Fee != 2 {
		t.Errorf("payout event = %+v, want payout 98 fee 2", final)
	}
}

func TestDisputeOverRPC(t *testing.T) {
	env := newTestEnv(t, disabledRateLimit())
	alice := env.tokenFor(t, "alice")
	bob := env.tokenFor(t, "bob")
	arb := env.tokenFor(t, "arbitrator")

	result := env.mustCall(t, alice, "escrow_create", map[string]any{
		"payee": "bob", "amount": 100, "title": "t", "description": "d",
	})
	var created struct {
		Project struct {
			ID uint64 `json:"id"`
		} `json:"project"`
	}
	if err := json.Unmarshal(result, &created); err != nil {
		t.Fatalf("decode create result: %v", err)
	}
	id := created.Project.ID

	env.mustCall(t, alice, "escrow_fund", map[string]any{"project_id": id, "value": 100})
	env.mustCall(t, bob, "escrow_flagDispute", map[string]any{"project_id": id})

	// Only the arbitrator can resolve.
	out := env.call(t, bob, "escrow_resolveDispute", map[string]any{"project_id": id, "award_to_payee": true})
	if out.Error == nil || out.Error.Code != codeUnauthorized {
		t.Fatalf("resolve by payee error = %+v, want code %d", out.Error, codeUnauthorized)
	}

	env.mustCall(t, arb, "escrow_resolveDispute", map[string]any{"project_id": id, "award_to_payee": true})
	if got := env.bank.Balance("bob"); got != 100 {
		t.Errorf("awarded payee balance = %d, want full 100", got)
	}
}

func TestAdminMethods(t *testing.T) {
	env := newTestEnv(t, disabledRateLimit())
	owner := env.tokenFor(t, "owner")
	alice := env.tokenFor(t, "alice")

	env.mustCall(t, owner, "admin_setPlatformFee", map[string]any{"percent": 5})
	env.mustCall(t, owner, "admin_setArbitrator", map[string]any{"arbitrator": "judge"})

	out := env.call(t, alice, "admin_setPlatformFee", map[string]any{"percent": 0})
	if out.Error == nil || out.Error.Code != codeUnauthorized {
		t.Errorf("non-owner fee change error = %+v, want code %d", out.Error, codeUnauthorized)
	}
	out = env.call(t, owner, "admin_setPlatformFee", map[string]any{"percent": 50})
	if out.Error == nil || out.Error.Code != codeInvalidAmount {
		t.Errorf("excessive fee error = %+v, want code %d", out.Error, codeInvalidAmount)
	}
}

func TestErrorMapping(t *testing.T) {
	env := newTestEnv(t, disabledRateLimit())
	alice := env.tokenFor(t, "alice")

	// Unauthenticated mutation.
	out := env.call(t, "", "escrow_create", map[string]any{"payee": "bob", "amount": 100})
	if out.Error == nil || out.Error.Code != codeUnauthorized {
		t.Errorf("unauthenticated create error = %+v, want code %d", out.Error, codeUnauthorized)
	}

	// Unknown method.
	out = env.call(t, alice, "escrow_obliterate", map[string]any{"project_id": 1})
	if out.Error == nil || out.Error.Code != -32601 {
		t.Errorf("unknown method error = %+v, want code -32601", out.Error)
	}

	// Missing params.
	out = env.call(t, alice, "escrow_fund", nil)
	if out.Error == nil || out.Error.Code != -32602 {
		t.Errorf("missing params error = %+v, want code -32602", out.Error)
	}

	// Unknown project.
	out = env.call(t, alice, "escrow_approve", map[string]any{"project_id": 404})
	if out.Error == nil || out.Error.Code != codeNotFound {
		t.Errorf("missing project error = %+v, want code %d", out.Error, codeNotFound)
	}

	// Funding mismatch maps to the amount error code.
	result := env.mustCall(t, alice, "escrow_create", map[string]any{
		"payee": "bob", "amount": 100, "title": "t", "description": "d",
	})
	var created struct {
		Project struct {
			ID uint64 `json:"id"`
		} `json:"project"`
	}
	if err := json.Unmarshal(result, &created); err != nil {
		t.Fatalf("decode create result: %v", err)
	}
	out = env.call(t, alice, "escrow_fund", map[string]any{"project_id": created.Project.ID, "value": 99})
	if out.Error == nil || out.Error.Code != codeInvalidAmount {
		t.Errorf("partial funding error = %+v, want code %d", out.Error, codeInvalidAmount)
	}
}

func TestMalformedRequests(t *testing.T) {
	env := newTestEnv(t, disabledRateLimit())

	post := func(body string) rpcResult {
		t.Helper()
		resp, err := env.server.Client().Post(env.server.URL, "application/json", bytes.NewBufferString(body))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		defer resp.Body.Close()
		var out rpcResult
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return out
	}

	out := post(`{not json`)
	if out.Error == nil || out.Error.Code != -32700 {
		t.Errorf("parse error = %+v, want code -32700", out.Error)
	}

	out = post(`{"jsonrpc":"1.0","id":1,"method":"health_check"}`)
	if out.Error == nil || out.Error.Code != -32600 {
		t.Errorf("wrong version error = %+v, want code -32600", out.Error)
	}

	out = post(`{"jsonrpc":"2.0","id":1,"method":"health_check"}{"jsonrpc":"2.0","id":2,"method":"health_check"}`)
	if out.Error == nil || out.Error.Code != -32600 {
		t.Errorf("trailing document error = %+v, want code -32600", out.Error)
	}

	// GET is not part of the protocol surface.
	resp, err := env.server.Client().Get(env.server.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want %d", resp.StatusCode, http.StatusMethodNotAllowed)
	}
}

func TestRateLimiting(t *testing.T) {
	on := true
	env := newTestEnv(t, config.RateLimitConfig{Enabled: &on, RPS: 1, Burst: 2})

	var limited bool
	for i := 0; i < 5; i++ {
		out := env.call(t, "", "health_check", nil)
		if out.Error != nil && out.Error.Code == codeRateLimited {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("burst of 5 requests against burst 2 was never rate limited")
	}
}
