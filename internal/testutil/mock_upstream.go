// Package testutil provides testing utilities for the visioncache service.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
)

// MockUpstream is a configurable OpenAI-compatible mock server for testing.
// It answers the chat completions and image generations endpoints the AI
// service calls, tracks request counts per endpoint, and can inject failures.
type MockUpstream struct {
	server *httptest.Server
	mu     sync.RWMutex

	// Canned responses
	AnalysisText   string
	TranslatedText string
	ImageURL       string
	ImageB64       string

	// Failure injection: serve this status for the next FailCount requests.
	failStatus int
	failCount  int

	// Tracking
	ChatRequests  int
	ImageRequests int
}

// NewMockUpstream creates a mock upstream with sensible canned responses.
func NewMockUpstream() *MockUpstream {
	mock := &MockUpstream{
		AnalysisText:   "A cat sitting on a red chair",
		TranslatedText: "a vivid painting of a cat in a lush garden",
		ImageURL:       "https://upstream.example/generated.png",
		// 1x1 transparent PNG
		ImageB64: "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg==",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", mock.handleChat)
	mux.HandleFunc("/v1/images/generations", mock.handleImage)
	mock.server = httptest.NewServer(mux)

	return mock
}

// BaseURL returns the URL to configure as the AI service's upstream.
func (m *MockUpstream) BaseURL() string {
	return m.server.URL + "/v1"
}

// Close shuts down the mock server.
func (m *MockUpstream) Close() {
	m.server.Close()
}

// Reset clears tracking counters and failure injection.
func (m *MockUpstream) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatRequests = 0
	m.ImageRequests = 0
	m.failStatus = 0
	m.failCount = 0
}

// FailNext makes the next n requests fail with the given status code.
func (m *MockUpstream) FailNext(n, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCount = n
	m.failStatus = status
}

// GetChatRequests returns the number of chat completion calls received.
func (m *MockUpstream) GetChatRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ChatRequests
}

// GetImageRequests returns the number of image generation calls received.
func (m *MockUpstream) GetImageRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ImageRequests
}

// shouldFail consumes one injected failure if armed.
func (m *MockUpstream) shouldFail() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCount > 0 {
		m.failCount--
		return m.failStatus, true
	}
	return 0, false
}

func (m *MockUpstream) handleChat(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.ChatRequests++
	m.mu.Unlock()

	if status, fail := m.shouldFail(); fail {
		writeAPIError(w, status)
		return
	}

	var req struct {
		Messages []struct {
			Content json.RawMessage `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest)
		return
	}

	// Multi-part content (an image part present) means analysis; plain
	// string content means prompt translation.
	m.mu.RLock()
	content := m.AnalysisText
	if len(req.Messages) > 0 && len(req.Messages[0].Content) > 0 && req.Messages[0].Content[0] == '"' {
		content = m.TranslatedText
	}
	m.mu.RUnlock()

	resp := map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"choices": []map[string]any{
			{
				"index": 0,
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (m *MockUpstream) handleImage(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.ImageRequests++
	m.mu.Unlock()

	if status, fail := m.shouldFail(); fail {
		writeAPIError(w, status)
		return
	}

	var req struct {
		ResponseFormat string `json:"response_format"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest)
		return
	}

	m.mu.RLock()
	data := map[string]any{}
	if req.ResponseFormat == "b64_json" {
		data["b64_json"] = m.ImageB64
	} else {
		data["url"] = m.ImageURL
	}
	m.mu.RUnlock()

	resp := map[string]any{
		"created": 0,
		"data":    []map[string]any{data},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func writeAPIError(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error": {"message": "injected failure", "type": "server_error"}}`)
}
