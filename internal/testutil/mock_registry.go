// Package testutil provides testing utilities for the startup scraper.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Mock endpoint paths.
const (
	ListingPath      = "/sih/api/noauth/search/profiles"
	ProfilePath      = "/sih/api/common/replica/user/profile/"
	RegistrationPath = "/sih/api/noauth/dpiit/services/cin/info"
)

// Endpoint names recorded by the mock.
const (
	EndpointListing      = "listing"
	EndpointProfile      = "profile"
	EndpointRegistration = "registration"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// MockStartup is a listing entry.
type MockStartup struct {
	ID   string
	Name string
}

// MockRegistry is a configurable mock of the startup registry API.
type MockRegistry struct {
	server *httptest.Server
	mu     sync.Mutex

	pages         map[int]MockResponse
	profiles      map[string]MockResponse
	registrations map[string]MockResponse

	counts   map[string]int
	calls    []string
	filters  []map[string]any
	listings int

	// OnRequest, when set, runs after a request is recorded and before it
	// is answered.
	OnRequest func(endpoint, key string)
}

// NewMockRegistry creates a new mock registry server.
func NewMockRegistry() *MockRegistry {
	mock := &MockRegistry{
		pages:         make(map[int]MockResponse),
		profiles:      make(map[string]MockResponse),
		registrations: make(map[string]MockResponse),
		counts:        make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(ListingPath, mock.handleListing)
	mux.HandleFunc(ProfilePath, mock.handleProfile)
	mux.HandleFunc(RegistrationPath, mock.handleRegistration)
	mock.server = httptest.NewServer(mux)

	return mock
}

// URL returns the mock server URL.
func (m *MockRegistry) URL() string {
	return m.server.URL
}

// ListingURL returns the listing endpoint URL.
func (m *MockRegistry) ListingURL() string {
	return m.server.URL + ListingPath
}

// ProfileURL returns the profile base URL (ends in "/").
func (m *MockRegistry) ProfileURL() string {
	return m.server.URL + ProfilePath
}

// RegistrationURL returns the registration lookup URL.
func (m *MockRegistry) RegistrationURL() string {
	return m.server.URL + RegistrationPath
}

// Close shuts down the mock server.
func (m *MockRegistry) Close() {
	m.server.Close()
}

// SetListing serves startups split into pages of pageSize.
func (m *MockRegistry) SetListing(startups []MockStartup, pageSize int) {
	if pageSize <= 0 {
		pageSize = 10
	}

	totalPages := (len(startups) + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for page := 0; page < totalPages; page++ {
		start := page * pageSize
		end := start + pageSize
		if end > len(startups) {
			end = len(startups)
		}
		m.pages[page] = MockResponse{
			StatusCode: http.StatusOK,
			Body:       ListingJSON(startups[start:end], totalPages, len(startups)),
		}
	}
}

// SetListingPage overrides the response for a single listing page.
func (m *MockRegistry) SetListingPage(page int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[page] = resp
}

// SetProfile configures the profile response for id.
func (m *MockRegistry) SetProfile(id string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[id] = resp
}

// SetRegistration configures the registration response for a registration id.
func (m *MockRegistry) SetRegistration(registrationID string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registrations[registrationID] = resp
}

// RequestCount returns the number of requests made to endpoint.
func (m *MockRegistry) RequestCount(endpoint string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[endpoint]
}

// TotalRequests returns the number of requests made to any endpoint.
func (m *MockRegistry) TotalRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.counts {
		total += n
	}
	return total
}

// Calls returns the ordered request log as "endpoint:key" entries.
func (m *MockRegistry) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Filters returns the decoded listing payloads in request order.
func (m *MockRegistry) Filters() []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]any(nil), m.filters...)
}

func (m *MockRegistry) record(endpoint, key string) {
	m.mu.Lock()
	m.counts[endpoint]++
	m.calls = append(m.calls, endpoint+":"+key)
	hook := m.OnRequest
	m.mu.Unlock()

	if hook != nil {
		hook(endpoint, key)
	}
}

func (m *MockRegistry) handleListing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var filter map[string]any
	if err := json.NewDecoder(r.Body).Decode(&filter); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	page := 0
	if v, ok := filter["page"].(float64); ok {
		page = int(v)
	}

	m.mu.Lock()
	m.filters = append(m.filters, filter)
	resp, ok := m.pages[page]
	m.mu.Unlock()

	m.record(EndpointListing, fmt.Sprint(page))

	if !ok {
		resp = MockResponse{StatusCode: http.StatusOK, Body: ListingJSON(nil, 0, 0)}
	}
	writeResponse(w, resp)
}

func (m *MockRegistry) handleProfile(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, ProfilePath)

	m.mu.Lock()
	resp, ok := m.profiles[id]
	m.mu.Unlock()

	m.record(EndpointProfile, id)

	if !ok {
		resp = MockResponse{StatusCode: http.StatusNotFound, Body: `{"error": "not found"}`}
	}
	writeResponse(w, resp)
}

func (m *MockRegistry) handleRegistration(w http.ResponseWriter, r *http.Request) {
	registrationID := r.URL.Query().Get("cin")

	m.mu.Lock()
	resp, ok := m.registrations[registrationID]
	m.mu.Unlock()

	m.record(EndpointRegistration, registrationID)

	if !ok {
		resp = MockResponse{StatusCode: http.StatusOK, Body: `{"status": false, "data": null}`}
	}
	writeResponse(w, resp)
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewOKResponse creates a 200 OK response with body.
func NewOKResponse(body string) MockResponse {
	return MockResponse{StatusCode: http.StatusOK, Body: body}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{StatusCode: http.StatusInternalServerError, Body: `{"error": "Internal server error"}`}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
		Headers:    map[string]string{"Retry-After": "1"},
	}
}

// ListingJSON renders a listing page envelope.
func ListingJSON(startups []MockStartup, totalPages, totalElements int) string {
	content := make([]map[string]string, 0, len(startups))
	for _, s := range startups {
		content = append(content, map[string]string{"id": s.ID, "name": s.Name})
	}
	body, _ := json.Marshal(map[string]any{
		"content":       content,
		"totalPages":    totalPages,
		"totalElements": totalElements,
	})
	return string(body)
}

// ProfileJSON renders a realistic profile; an empty cin is sent as null.
func ProfileJSON(id, name, cin string) string {
	var cinValue any
	if cin != "" {
		cinValue = cin
	}

	body, _ := json.Marshal(map[string]any{
		"user": map[string]any{
			"uniqueId":        id,
			"name":            name,
			"role":            "Startup",
			"badges":          []string{"Recognised"},
			"createdOn":       1700000000000,
			"lastPublishedOn": "2024-01-15T10:00:00Z",
			"startup": map[string]any{
				"legalName":             name + " Private Limited",
				"cin":                   cinValue,
				"pan":                   "AAACB1234C",
				"dippNumber":            "DIPP12345",
				"dippRecognitionStatus": "RECOGNISED",
				"dippCertified":         true,
				"stage":                 "EarlyTraction",
				"funded":                false,
				"ideaBrief":             "Agritech for smallholder farmers",
				"website":               "https://" + strings.ToLower(name) + ".example",
				"linkedInUrl":           "https://linkedin.com/company/" + strings.ToLower(name),
				"location": map[string]any{
					"country": map[string]any{"countryName": "India"},
					"state":   map[string]any{"stateName": "Chhattisgarh"},
					"city":    map[string]any{"districtName": "Raipur"},
				},
				"focusArea": map[string]any{
					"industry": map[string]any{"industryName": "Agriculture"},
					"sectors": []map[string]any{
						{"sectionName": "AgriTech"},
						{"sectionName": "Dairy Farming"},
					},
				},
				"lookingToConnectTo": []string{"Investors", "Mentors"},
			},
		},
	})
	return string(body)
}

// RegistrationJSON renders a successful registration lookup.
func RegistrationJSON(email, phone string) string {
	body, _ := json.Marshal(map[string]any{
		"status": true,
		"data": map[string]any{
			"email":               email,
			"registeredContactNo": phone,
			"registeredAddress":   "12 MG Road, Raipur, Chhattisgarh",
			"companyStatus":       "Active",
			"incorpdate":          "2021-04-01",
		},
	})
	return string(body)
}
