package latency

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elevated-systems/green-region-router/pkg/greenrouter/clock"
)

// MockHTTPClient is a mock implementation of HTTPClient for testing
type MockHTTPClient struct {
	DoFunc func(req *http.Request) (*http.Response, error)
}

// Do implements the HTTPClient interface
func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if m.DoFunc != nil {
		return m.DoFunc(req)
	}
	return nil, errors.New("mock http client not implemented")
}

func okResponse() *http.Response {
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}
}

func testClock() *clock.MockClock {
	return clock.NewSteppingClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), 42*time.Millisecond)
}

func TestPingURL(t *testing.T) {
	url, ok := PingURL("us-east-1")
	assert.True(t, ok)
	assert.Equal(t, "https://dynamodb.us-east-1.amazonaws.com", url)

	_, ok = PingURL("")
	assert.False(t, ok)

	p := NewProber(Config{URLTemplate: "http://probe.internal/%s/"})
	url, ok = p.PingURL("eu-west-1")
	assert.True(t, ok)
	assert.Equal(t, "http://probe.internal/eu-west-1/", url)
}

func TestNewProberDefaults(t *testing.T) {
	p := NewProber(Config{})
	assert.Equal(t, defaultTimeout, p.config.Timeout)
	assert.Equal(t, defaultConcurrency, p.config.Concurrency)
	assert.Equal(t, DefaultURLTemplate, p.config.URLTemplate)
	assert.NotNil(t, p.httpClient)
	assert.NotNil(t, p.clock)
}

func TestProbeAgainstServer(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		assert.Equal(t, http.MethodHead, r.Method)
		assert.Equal(t, "no-store", r.Header.Get("Cache-Control"))
		assert.Equal(t, "no-cache", r.Header.Get("Pragma"))
		// Status is irrelevant, reachability is what counts
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	p := NewProber(Config{Timeout: time.Second}, WithClock(testClock()))
	latency := p.Probe(context.Background(), server.URL+"/")

	ms, known := latency.Millis()
	require.True(t, known)
	assert.Equal(t, 42.0, ms)
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests), "expected warm-up plus timed request")
}

func TestProbeStripsTrailingSlash(t *testing.T) {
	var urls []string
	client := &MockHTTPClient{DoFunc: func(req *http.Request) (*http.Response, error) {
		urls = append(urls, req.URL.String())
		return okResponse(), nil
	}}

	p := NewProber(Config{}, WithHTTPClient(client), WithClock(testClock()))
	p.Probe(context.Background(), "https://dynamodb.eu-west-2.amazonaws.com/")

	assert.Equal(t, []string{
		"https://dynamodb.eu-west-2.amazonaws.com",
		"https://dynamodb.eu-west-2.amazonaws.com",
	}, urls)
}

func TestProbeFailures(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		failOn    int // 1-based request number that fails, 0 never
		wantCalls int
	}{
		{name: "empty url", url: "", failOn: 0, wantCalls: 0},
		{name: "warm-up fails", url: "https://example.invalid", failOn: 1, wantCalls: 1},
		{name: "timed request fails", url: "https://example.invalid", failOn: 2, wantCalls: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			client := &MockHTTPClient{DoFunc: func(req *http.Request) (*http.Response, error) {
				calls++
				if calls == tt.failOn {
					return nil, errors.New("connection refused")
				}
				return okResponse(), nil
			}}

			p := NewProber(Config{}, WithHTTPClient(client), WithClock(testClock()))
			latency := p.Probe(context.Background(), tt.url)

			assert.False(t, latency.Known())
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestProbeSubMillisecondIsUnknown(t *testing.T) {
	client := &MockHTTPClient{DoFunc: func(req *http.Request) (*http.Response, error) {
		return okResponse(), nil
	}}
	fast := clock.NewSteppingClock(time.Now(), 200*time.Microsecond)

	p := NewProber(Config{}, WithHTTPClient(client), WithClock(fast))
	assert.False(t, p.Probe(context.Background(), "https://example.com").Known())
}

func TestProbeTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	p := NewProber(Config{Timeout: 50 * time.Millisecond})

	start := time.Now()
	latency := p.Probe(context.Background(), server.URL)

	assert.False(t, latency.Known())
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestProbeRegions(t *testing.T) {
	var mu sync.Mutex
	hosts := map[string]int{}
	client := &MockHTTPClient{DoFunc: func(req *http.Request) (*http.Response, error) {
		mu.Lock()
		hosts[req.URL.Host]++
		mu.Unlock()
		if strings.Contains(req.URL.Host, "af-south-1") {
			return nil, errors.New("no route to host")
		}
		return okResponse(), nil
	}}

	p := NewProber(Config{Concurrency: 2}, WithHTTPClient(client), WithClock(testClock()))
	results := p.ProbeRegions(context.Background(), []string{"us-east-1", "eu-west-1", "us-east-1", "af-south-1", ""})

	require.Len(t, results, 4)
	assert.True(t, results["us-east-1"].Known())
	assert.True(t, results["eu-west-1"].Known())
	assert.False(t, results["af-south-1"].Known())
	assert.False(t, results[""].Known())

	// duplicates are probed once: warm-up plus timed request
	assert.Equal(t, 2, hosts["dynamodb.us-east-1.amazonaws.com"])
	assert.Equal(t, 1, hosts["dynamodb.af-south-1.amazonaws.com"])
}

func TestProbeRegionsEmpty(t *testing.T) {
	p := NewProber(Config{}, WithHTTPClient(&MockHTTPClient{}))
	results := p.ProbeRegions(context.Background(), nil)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}
