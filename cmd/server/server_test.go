package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/crediflow/loanrules/internal/logger"
	"github.com/crediflow/loanrules/loanrules"
)

func init() {
	logger.Init("loanrules-server-test")
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	rs, err := loanrules.DefaultRuleSet()
	if err != nil {
		t.Fatalf("DefaultRuleSet() failed: %v", err)
	}
	store, err := loanrules.NewStaticStore(rs)
	if err != nil {
		t.Fatalf("NewStaticStore() failed: %v", err)
	}

	server, err := NewServer(store)
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}
	return server
}

func postJSON(t *testing.T, server *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func TestHandleClassifyApproved(t *testing.T) {
	server := newTestServer(t)

	rec := postJSON(t, server, "/api/v1/classify", `{
		"sex": "female",
		"age": 26,
		"loanTerm": 4,
		"numAccounts": 2,
		"loanType": "personal",
		"loanArea": "urban"
	}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}

	var resp classifyResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Decision != "approved" {
		t.Errorf("decision = %q, want %q", resp.Decision, "approved")
	}
	if !resp.Matched {
		t.Error("matched should be true")
	}
	if resp.RuleIndex != 0 {
		t.Errorf("ruleIndex = %d, want 0", resp.RuleIndex)
	}
}

func TestHandleClassifyUnclassified(t *testing.T) {
	server := newTestServer(t)

	rec := postJSON(t, server, "/api/v1/classify", `{
		"sex": "male",
		"age": 50,
		"loanTerm": 10,
		"numAccounts": 4,
		"loanType": "business",
		"loanArea": "rural"
	}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}

	var resp classifyResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Decision != loanrules.DecisionUnclassified {
		t.Errorf("decision = %q, want %q", resp.Decision, loanrules.DecisionUnclassified)
	}
	if resp.Matched {
		t.Error("matched should be false")
	}
	if resp.RuleIndex != -1 {
		t.Errorf("ruleIndex = %d, want -1", resp.RuleIndex)
	}
}

// Malformed applications are rejected at the boundary with 400, never
// silently coerced.
func TestHandleClassifyBadRequests(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `age=26`},
		{"missing age", `{"sex": "male", "loanTerm": 4, "numAccounts": 2, "loanType": "home", "loanArea": "urban"}`},
		{"missing loan term", `{"sex": "male", "age": 26, "numAccounts": 2, "loanType": "home", "loanArea": "urban"}`},
		{"non-numeric age", `{"sex": "male", "age": "twenty", "loanTerm": 4, "numAccounts": 2, "loanType": "home", "loanArea": "urban"}`},
		{"missing sex", `{"age": 26, "loanTerm": 4, "numAccounts": 2, "loanType": "home", "loanArea": "urban"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, server, "/api/v1/classify", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body: %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandleListRules(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rules", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Version int            `json:"version"`
		Rules   []ruleResponse `json:"rules"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Version != 1 {
		t.Errorf("version = %d, want 1", resp.Version)
	}
	if len(resp.Rules) != 4 {
		t.Fatalf("rules = %d, want 4", len(resp.Rules))
	}
	if resp.Rules[0].Ordinal != 0 || !strings.Contains(resp.Rules[0].Expression, "Age <= 31.0") {
		t.Errorf("first rule = %+v, want ordinal 0 with the Age <= 31 expression", resp.Rules[0])
	}
}

func TestHandleReload(t *testing.T) {
	server := newTestServer(t)

	rec := postJSON(t, server, "/api/v1/rules/reload", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}

	// The engine still classifies after a reload from the same store.
	rec = postJSON(t, server, "/api/v1/classify", `{
		"sex": "male",
		"age": 45,
		"loanTerm": 4,
		"numAccounts": 2,
		"loanType": "auto",
		"loanArea": "urban"
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("classify after reload status = %d, want 200", rec.Code)
	}

	var resp classifyResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Decision != "rejected" || resp.RuleIndex != 3 {
		t.Errorf("got decision %q rule %d, want rejected from rule 3", resp.Decision, resp.RuleIndex)
	}
}

func TestHandleHealth(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", resp["status"])
	}
}
