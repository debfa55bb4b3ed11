// Package testutil provides testing utilities for scroll exports.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// MockResponse overrides the response for one request.
type MockResponse struct {
	StatusCode int
	Body       string
}

// OpenRequest is the decoded body of an open call.
type OpenRequest struct {
	Size   int             `json:"size"`
	Source []string        `json:"_source"`
	Sort   []string        `json:"sort"`
	Query  json.RawMessage `json:"query"`
}

// MockSearch is an in-memory search service that speaks the scroll API.
// Scroll ids are single-use: every page issues a new id and retires the old
// one, so a client that reuses a stale id gets a 404.
type MockSearch struct {
	server *httptest.Server

	mu       sync.Mutex
	docs     []map[string]any
	index    string
	pageSize int
	scrolls  map[string]int
	nextID   int

	openFaults    map[int]MockResponse
	advanceFaults map[int]MockResponse
	closeResponse *MockResponse

	// Tracking
	openCount    int
	advanceCount int
	closeCount   int
	advanceIDs   []string
	closedIDs    []string
	openPath     string
	openRequest  OpenRequest
	advanceTTLs  []string
}

// NewMockSearch creates a mock search server holding docs in order.
func NewMockSearch(docs []map[string]any) *MockSearch {
	m := &MockSearch{
		docs:          docs,
		scrolls:       make(map[string]int),
		openFaults:    make(map[int]MockResponse),
		advanceFaults: make(map[int]MockResponse),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/_search/scroll", m.handleScroll)
	mux.HandleFunc("/", m.handleOpen)
	m.server = httptest.NewServer(mux)

	return m
}

// SeqDocs builds n documents whose field holds "value-<i>".
func SeqDocs(n int, field string) []map[string]any {
	docs := make([]map[string]any, n)
	for i := range docs {
		docs[i] = map[string]any{
			field: fmt.Sprintf("value-%d", i),
			"seq": i,
		}
	}
	return docs
}

// URL returns the mock server URL.
func (m *MockSearch) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockSearch) Close() {
	m.server.Close()
}

// FailOpen serves resp for the n-th open request (1-based).
func (m *MockSearch) FailOpen(n int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openFaults[n] = resp
}

// FailAdvance serves resp for the n-th advance request (1-based, retries included).
func (m *MockSearch) FailAdvance(n int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advanceFaults[n] = resp
}

// SetCloseResponse overrides every close response.
func (m *MockSearch) SetCloseResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeResponse = &resp
}

// OpenCount returns the number of open requests received.
func (m *MockSearch) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openCount
}

// AdvanceCount returns the number of advance requests received.
func (m *MockSearch) AdvanceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.advanceCount
}

// CloseCount returns the number of close requests received.
func (m *MockSearch) CloseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCount
}

// AdvanceIDs returns the scroll ids sent with each advance request.
func (m *MockSearch) AdvanceIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.advanceIDs...)
}

// AdvanceTTLs returns the keep-alive sent with each advance request.
func (m *MockSearch) AdvanceTTLs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.advanceTTLs...)
}

// ClosedIDs returns the scroll ids sent with each close request.
func (m *MockSearch) ClosedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.closedIDs...)
}

// OpenPath returns the request path of the last open call.
func (m *MockSearch) OpenPath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openPath
}

// LastOpenRequest returns the decoded body of the last open call.
func (m *MockSearch) LastOpenRequest() OpenRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openRequest
}

// LiveScrolls returns the number of scroll ids not yet cleared.
func (m *MockSearch) LiveScrolls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.scrolls)
}

func (m *MockSearch) handleOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/_search") || r.URL.Query().Get("scroll") == "" {
		writeJSON(w, http.StatusBadRequest, `{"error":"unsupported request"}`)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.openCount++
	m.openPath = r.URL.Path
	if fault, ok := m.openFaults[m.openCount]; ok {
		writeJSON(w, fault.StatusCode, fault.Body)
		return
	}

	var req OpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Size < 1 {
		writeJSON(w, http.StatusBadRequest, `{"error":"bad open body"}`)
		return
	}
	m.openRequest = req
	m.pageSize = req.Size
	m.index = strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/"), "/_search")

	writeJSON(w, http.StatusOK, m.page(0))
}

func (m *MockSearch) handleScroll(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		m.handleAdvance(w, r)
	case http.MethodDelete:
		m.handleClear(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, `{"error":"method not allowed"}`)
	}
}

func (m *MockSearch) handleAdvance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Scroll   string `json:"scroll"`
		ScrollID string `json:"scroll_id"`
	}
	body, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(body, &req)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.advanceCount++
	m.advanceIDs = append(m.advanceIDs, req.ScrollID)
	m.advanceTTLs = append(m.advanceTTLs, req.Scroll)

	if fault, ok := m.advanceFaults[m.advanceCount]; ok {
		writeJSON(w, fault.StatusCode, fault.Body)
		return
	}

	offset, ok := m.scrolls[req.ScrollID]
	if !ok {
		writeJSON(w, http.StatusNotFound, `{"error":{"type":"search_context_missing_exception"},"status":404}`)
		return
	}
	delete(m.scrolls, req.ScrollID)

	writeJSON(w, http.StatusOK, m.page(offset))
}

func (m *MockSearch) handleClear(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScrollID []string `json:"scroll_id"`
	}
	body, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(body, &req)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeCount++
	m.closedIDs = append(m.closedIDs, req.ScrollID...)

	if m.closeResponse != nil {
		writeJSON(w, m.closeResponse.StatusCode, m.closeResponse.Body)
		return
	}

	freed := 0
	for _, id := range req.ScrollID {
		if _, ok := m.scrolls[id]; ok {
			delete(m.scrolls, id)
			freed++
		}
	}
	if freed == 0 {
		writeJSON(w, http.StatusNotFound, `{"succeeded":true,"num_freed":0}`)
		return
	}
	writeJSON(w, http.StatusOK, fmt.Sprintf(`{"succeeded":true,"num_freed":%d}`, freed))
}

// page renders the hits starting at offset and registers a fresh scroll id
// for the position after them. Callers hold m.mu.
func (m *MockSearch) page(offset int) string {
	end := offset + m.pageSize
	if end > len(m.docs) {
		end = len(m.docs)
	}
	if offset > end {
		offset = end
	}

	hits := make([]map[string]any, 0, end-offset)
	for i := offset; i < end; i++ {
		hits = append(hits, map[string]any{
			"_index":  m.index,
			"_id":     strconv.Itoa(i),
			"_source": m.docs[i],
		})
	}

	m.nextID++
	id := fmt.Sprintf("scroll-%d", m.nextID)
	m.scrolls[id] = end

	data, _ := json.Marshal(map[string]any{
		"_scroll_id": id,
		"took":       1,
		"timed_out":  false,
		"hits": map[string]any{
			"total": map[string]any{"value": len(m.docs), "relation": "eq"},
			"hits":  hits,
		},
	})
	return string(data)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body != "" {
		w.Write([]byte(body))
	}
}
