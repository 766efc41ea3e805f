package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOrderSubmissionThroughput drives the HTTP path from several clients
// and checks the latency window the status endpoint reports from.
func TestOrderSubmissionThroughput(t *testing.T) {
	if testing.Short() {
		t.Skip("throughput run skipped in short mode")
	}
	s := setupTestServer(t)

	const (
		clients   = 8
		perClient = 250
	)
	sides := []string{"BUY", "SELL"}

	var wg sync.WaitGroup
	var mu sync.Mutex
	failures := 0
	start := time.Now()
	for c := 0; c < clients; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			body, _ := json.Marshal(order("AAPL", sides[c%2], "100", 1))
			for i := 0; i < perClient; i++ {
				req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(body))
				req.Header.Set("Content-Type", "application/json")
				resp, err := s.app.Test(req, -1)
				if err != nil || resp.StatusCode >= 300 {
					mu.Lock()
					failures++
					mu.Unlock()
				}
			}
		}(c)
	}
	wg.Wait()
	elapsed := time.Since(start)

	require.Zero(t, failures)
	total := clients * perClient
	t.Logf("%d orders in %s (%.0f orders/sec)", total, elapsed, float64(total)/elapsed.Seconds())

	info := s.orders.latencyPercentiles()
	assert.Equal(t, total, info.Samples)
	assert.LessOrEqual(t, info.P50Ms, info.P99Ms)
	assert.LessOrEqual(t, info.P99Ms, info.P999Ms)
	assert.Equal(t, int64(total), s.orders.OrdersReceived.Load())

	stats := s.fe.Stats()
	assert.Equal(t, total, stats.Orders)
	assert.Zero(t, stats.Rejects)
}

func BenchmarkSubmitOrderHTTP(b *testing.B) {
	s := setupTestServer(b)
	body, _ := json.Marshal(order("AAPL", "BUY", "100", 1))

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			_, _ = s.app.Test(req, -1)
		}
	})
}
