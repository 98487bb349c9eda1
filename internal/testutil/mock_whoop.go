// Package testutil provides a mock WHOOP server (token endpoint and developer API)
// for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// TokenPath is where the mock serves the OAuth token endpoint.
const TokenPath = "/oauth/oauth2/token"

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockWhoop is a configurable mock WHOOP server for testing.
//
// API paths require "Authorization: Bearer <accepted token>" once
// SetAcceptedToken has been called; other tokens get a 401. The token endpoint
// hands out the tokens queued with QueueToken, in order.
type MockWhoop struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	acceptedToken string
	tokenQueue    []map[string]any
	tokenStatus   int

	// Tracking
	requestCounts map[string]int
	tokenForms    []map[string]string
	lastAuth      string
}

// NewMockWhoop creates and starts a mock WHOOP server.
func NewMockWhoop() *MockWhoop {
	mock := &MockWhoop{
		handlers:      make(map[string]http.HandlerFunc),
		requestCounts: make(map[string]int),
		tokenStatus:   http.StatusOK,
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCounts[r.URL.Path]++
		if r.URL.Path != TokenPath {
			mock.lastAuth = r.Header.Get("Authorization")
		}
		accepted := mock.acceptedToken
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if r.URL.Path == TokenPath {
			mock.tokenHandler(w, r)
			return
		}

		if accepted != "" && r.Header.Get("Authorization") != "Bearer "+accepted {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
			return
		}

		if exists {
			handler(w, r)
			return
		}

		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockWhoop) URL() string {
	return m.server.URL
}

// TokenURL returns the full token endpoint URL.
func (m *MockWhoop) TokenURL() string {
	return m.server.URL + TokenPath
}

// Close shuts down the mock server.
func (m *MockWhoop) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockWhoop) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCounts = make(map[string]int)
	m.tokenForms = nil
	m.lastAuth = ""
}

// SetAcceptedToken makes API paths answer 401 to any other bearer token.
func (m *MockWhoop) SetAcceptedToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acceptedToken = token
}

// QueueToken queues a token endpoint response. An empty refreshToken is
// omitted from the JSON body. A successful exchange also makes the new access
// token the accepted one.
func (m *MockWhoop) QueueToken(accessToken, refreshToken string) {
	body := map[string]any{
		"access_token": accessToken,
		"token_type":   "bearer",
		"expires_in":   3600,
	}
	if refreshToken != "" {
		body["refresh_token"] = refreshToken
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokenQueue = append(m.tokenQueue, body)
}

// SetTokenStatus makes the token endpoint answer with status and an
// invalid_grant body when status is not 200.
func (m *MockWhoop) SetTokenStatus(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokenStatus = status
}

// SetHandler sets a custom handler for a specific path.
func (m *MockWhoop) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockWhoop) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetJSON serves v as JSON with the given status.
func (m *MockWhoop) SetJSON(path string, status int, v any) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, status, v)
	})
}

// SetCollection serves records as a WHOOP collection. The page size is the
// "limit" query parameter and the cursor is the offset of the next page.
func (m *MockWhoop) SetCollection(path string, records []map[string]any) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
		if err != nil || limit <= 0 {
			limit = 10
		}
		offset := 0
		if token := r.URL.Query().Get("nextToken"); token != "" {
			offset, _ = strconv.Atoi(strings.TrimPrefix(token, "page-"))
		}

		end := offset + limit
		if end > len(records) {
			end = len(records)
		}
		page := map[string]any{"records": records[min(offset, len(records)):end]}
		if end < len(records) {
			page["next_token"] = fmt.Sprintf("page-%d", end)
		}
		writeJSON(w, http.StatusOK, page)
	})
}

// RequestCount returns how many requests hit path.
func (m *MockWhoop) RequestCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCounts[path]
}

// TotalRequests returns the number of API requests, excluding the token endpoint.
func (m *MockWhoop) TotalRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for path, n := range m.requestCounts {
		if path != TokenPath {
			total += n
		}
	}
	return total
}

// TokenCalls returns the number of token endpoint requests.
func (m *MockWhoop) TokenCalls() int {
	return m.RequestCount(TokenPath)
}

// TokenForms returns the form bodies posted to the token endpoint.
func (m *MockWhoop) TokenForms() []map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]map[string]string(nil), m.tokenForms...)
}

// LastAuthorization returns the Authorization header of the last API request.
func (m *MockWhoop) LastAuthorization() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastAuth
}

func (m *MockWhoop) tokenHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_request"})
		return
	}
	form := make(map[string]string, len(r.PostForm))
	for key := range r.PostForm {
		form[key] = r.PostForm.Get(key)
	}

	m.mu.Lock()
	m.tokenForms = append(m.tokenForms, form)
	status := m.tokenStatus
	var body map[string]any
	if status == http.StatusOK && len(m.tokenQueue) > 0 {
		body = m.tokenQueue[0]
		m.tokenQueue = m.tokenQueue[1:]
		m.acceptedToken, _ = body["access_token"].(string)
	}
	m.mu.Unlock()

	switch {
	case status != http.StatusOK:
		writeJSON(w, status, map[string]any{"error": "invalid_grant"})
	case body == nil:
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "no token queued"})
	default:
		writeJSON(w, http.StatusOK, body)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
