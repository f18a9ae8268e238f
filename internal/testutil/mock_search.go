// Package testutil provides testing utilities for the repository search client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// SearchPath is the endpoint served by MockSearchAPI.
const SearchPath = "/search/repositories"

// MockResponse overrides the response for one page.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockSearchAPI is a configurable mock search API server for testing.
// By default it serves Names in pages of the requested size and reports
// TotalCount (or len(Names) when TotalCount is negative).
type MockSearchAPI struct {
	server *httptest.Server
	mu     sync.RWMutex

	names      []string
	totalCount int
	overrides  map[int]MockResponse

	// Tracking
	requestedPages    []int
	lastRequestHeader http.Header
	lastQuery         string
	lastPerPage       int
}

// NewMockSearchAPI creates a mock server serving n generated repository names.
func NewMockSearchAPI(n int) *MockSearchAPI {
	mock := &MockSearchAPI{
		names:      GenerateNames(n),
		totalCount: -1,
		overrides:  make(map[int]MockResponse),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// GenerateNames returns n deterministic repository full names.
func GenerateNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("owner-%d/repo-%04d", i%7, i+1)
	}
	return names
}

// URL returns the mock server URL.
func (m *MockSearchAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockSearchAPI) Close() {
	m.server.Close()
}

// Names returns the dataset served by the mock.
func (m *MockSearchAPI) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.names...)
}

// SetTotalCount overrides the reported total_count.
func (m *MockSearchAPI) SetTotalCount(total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalCount = total
}

// SetPageResponse configures a fixed response for a page number.
func (m *MockSearchAPI) SetPageResponse(page int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[page] = resp
}

// RequestedPages returns the page numbers requested so far, in order.
func (m *MockSearchAPI) RequestedPages() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int(nil), m.requestedPages...)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockSearchAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requestedPages)
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockSearchAPI) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

// LastQuery returns the q parameter of the most recent request.
func (m *MockSearchAPI) LastQuery() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastQuery
}

// LastPerPage returns the per_page parameter of the most recent request.
func (m *MockSearchAPI) LastPerPage() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastPerPage
}

// Reset clears all tracking state.
func (m *MockSearchAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestedPages = nil
	m.lastRequestHeader = nil
	m.lastQuery = ""
	m.lastPerPage = 0
}

func (m *MockSearchAPI) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != SearchPath {
		http.NotFound(w, r)
		return
	}

	q := r.URL.Query()
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		http.Error(w, `{"message":"invalid page"}`, http.StatusUnprocessableEntity)
		return
	}
	perPage, err := strconv.Atoi(q.Get("per_page"))
	if err != nil || perPage < 1 {
		http.Error(w, `{"message":"invalid per_page"}`, http.StatusUnprocessableEntity)
		return
	}

	m.mu.Lock()
	m.requestedPages = append(m.requestedPages, page)
	m.lastRequestHeader = r.Header.Clone()
	m.lastQuery = q.Get("q")
	m.lastPerPage = perPage
	override, hasOverride := m.overrides[page]
	m.mu.Unlock()

	if hasOverride {
		writeOverride(w, override)
		return
	}

	m.writePage(w, page, perPage)
}

func (m *MockSearchAPI) writePage(w http.ResponseWriter, page, perPage int) {
	m.mu.RLock()
	total := m.totalCount
	if total < 0 {
		total = len(m.names)
	}
	start := min((page-1)*perPage, len(m.names))
	end := min(start+perPage, len(m.names))
	slice := m.names[start:end]
	m.mu.RUnlock()

	type item struct {
		FullName string `json:"full_name"`
		Private  bool   `json:"private"`
	}
	items := make([]item, len(slice))
	for i, name := range slice {
		items[i] = item{FullName: name}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-RateLimit-Limit", "30")
	w.Header().Set("X-RateLimit-Remaining", "29")
	w.Header().Set("X-RateLimit-Used", "1")
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10))
	w.Header().Set("X-RateLimit-Resource", "search")
	w.WriteHeader(http.StatusOK)

	_ = json.NewEncoder(w).Encode(map[string]any{
		"total_count":        total,
		"incomplete_results": false,
		"items":              items,
	})
}

func writeOverride(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		_, _ = w.Write([]byte(resp.Body))
	}
}

// NewUnauthorizedResponse creates a 401 Bad credentials response.
func NewUnauthorizedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"message":"Bad credentials","documentation_url":"https://docs.github.com/rest"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewRateLimitedResponse creates a 403 response with an exhausted rate limit window.
func NewRateLimitedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusForbidden,
		Body:       `{"message":"API rate limit exceeded"}`,
		Headers: map[string]string{
			"Content-Type":          "application/json; charset=utf-8",
			"X-RateLimit-Limit":     "30",
			"X-RateLimit-Remaining": "0",
			"X-RateLimit-Used":      "30",
			"X-RateLimit-Reset":     strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10),
			"X-RateLimit-Resource":  "search",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"message":"Server Error"}`,
	}
}

// NewJSONResponse creates a 200 response with the given body.
func NewJSONResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}
