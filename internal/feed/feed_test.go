package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-scheduler-backend/config"
	"parking-scheduler-backend/internal/scheduler"
)

func newScheduler(t *testing.T) *scheduler.Scheduler {
	t.Helper()
	c, err := scheduler.NewCatalog(
		[]scheduler.TierRule{
			{Tier: scheduler.Tier0, Name: "ground", MaxDuration: 30 * time.Minute},
			{Tier: scheduler.Tier1, Name: "first"},
			{Tier: scheduler.Tier2, Name: "second", Queueing: true},
		},
		[]scheduler.Slot{
			{ID: "001", Tier: scheduler.Tier0},
			{ID: "101", Tier: scheduler.Tier1},
			{ID: "201", Tier: scheduler.Tier2},
		},
	)
	require.NoError(t, err)
	return scheduler.New(c, scheduler.Config{}, scheduler.Options{})
}

// pagedServer serves items in pages the way the upstream feed does.
func pagedServer(t *testing.T, items []ApiItem, requests *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.Header.Get("X-Token"))

		var body struct {
			Page     int `json:"page"`
			PageSize int `json:"pageSize"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		var resp ApiResponse
		resp.Data.Page = body.Page
		resp.Data.PageSize = body.PageSize
		resp.Data.Total = len(items)
		start := (body.Page - 1) * body.PageSize
		if start < len(items) {
			end := start + body.PageSize
			if end > len(items) {
				end = len(items)
			}
			resp.Data.Items = items[start:end]
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestService_PollOnce(t *testing.T) {
	items := []ApiItem{
		{ID: "r1", Occupant: "robot-1", Tier: 1, Slot: "P101", Minutes: 30},
		{ID: "r2", Occupant: "robot-2", Tier: 2, Minutes: 10},
		{ID: "r3", Occupant: "robot-3", Tier: 0, Minutes: 45},
		{ID: "r4", Occupant: "robot-4", Tier: 2, Minutes: 10},
		{ID: "r5", Occupant: "robot-5", Tier: 1, Minutes: 0},
	}
	var requests atomic.Int32
	server := pagedServer(t, items, &requests)
	defer server.Close()

	s := newScheduler(t)
	svc := NewService(config.FeedConfig{
		Enabled:  true,
		URL:      server.URL,
		PageSize: 2,
		Headers:  map[string]string{"X-Token": "secret"},
	}, time.Minute, s, zerolog.Nop())

	sum := svc.PollOnce(context.Background())
	assert.Equal(t, Summary{Fetched: 5, Admitted: 2, Queued: 1, Rejected: 2}, sum)
	assert.Equal(t, int32(3), requests.Load())

	assert.False(t, s.IsFree("101"))
	assert.False(t, s.IsFree("201"))
	assert.True(t, s.IsFree("001"))
	assert.Equal(t, 1, s.Waiting(scheduler.Tier2))

	b, ok := s.Binding("robot-1")
	require.True(t, ok)
	assert.Equal(t, 30*time.Minute, b.ScheduledEnd.Sub(b.StartedAt))

	again := svc.PollOnce(context.Background())
	assert.Equal(t, Summary{Fetched: 5, Skipped: 5}, again)
}

func TestService_FullTierIsRetried(t *testing.T) {
	items := []ApiItem{
		{ID: "r1", Occupant: "robot-1", Tier: 1, Minutes: 30},
		{ID: "r2", Occupant: "robot-2", Tier: 1, Minutes: 30},
		{ID: "r3", Occupant: "robot-3", Tier: 1, Slot: "P102", Minutes: 30},
		{ID: "r4", Occupant: "robot-4", Tier: 1, Minutes: 1e300},
	}
	var requests atomic.Int32
	server := pagedServer(t, items, &requests)
	defer server.Close()

	s := newScheduler(t)
	svc := NewService(config.FeedConfig{
		Enabled: true,
		URL:     server.URL,
		Headers: map[string]string{"X-Token": "secret"},
	}, time.Minute, s, zerolog.Nop())

	sum := svc.PollOnce(context.Background())
	assert.Equal(t, Summary{Fetched: 4, Admitted: 1, Deferred: 1, Rejected: 2}, sum)

	again := svc.PollOnce(context.Background())
	assert.Equal(t, Summary{Fetched: 4, Deferred: 1, Skipped: 3}, again)
	_, held := s.Binding("robot-2")
	assert.False(t, held)
}

func TestService_UpstreamErrors(t *testing.T) {
	testCases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-200 status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
		},
		{
			name: "application error code",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"code": 7}`))
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"code":`))
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(tc.handler)
			defer server.Close()

			svc := NewService(config.FeedConfig{URL: server.URL}, time.Minute, newScheduler(t), zerolog.Nop())
			assert.Equal(t, Summary{}, svc.PollOnce(context.Background()))
		})
	}
}

func TestService_RunDisabled(t *testing.T) {
	svc := NewService(config.FeedConfig{Enabled: false}, time.Minute, newScheduler(t), zerolog.Nop())

	done := make(chan struct{})
	go func() {
		svc.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled feed should return immediately")
	}
}
