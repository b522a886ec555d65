package scoreboardhandlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	scoreboardservice "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/application"
	scoretypes "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/domain/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

// FakeSource is a programmable scoreboardservice.Source.
type FakeSource struct {
	GetScoreboardFunc func(ctx context.Context, filter scoretypes.ScoreboardFilterInfo) (*scoretypes.CompleteScoreboardSummary, error)
	GetDetailsFunc    func(ctx context.Context, team scoretypes.TeamID) (*scoretypes.ScoreDetails, error)

	lastFilter scoretypes.ScoreboardFilterInfo
}

func (f *FakeSource) GetScoreboard(ctx context.Context, filter scoretypes.ScoreboardFilterInfo) (*scoretypes.CompleteScoreboardSummary, error) {
	f.lastFilter = filter
	if f.GetScoreboardFunc != nil {
		return f.GetScoreboardFunc(ctx, filter)
	}
	return board(), nil
}

func (f *FakeSource) GetDetails(ctx context.Context, team scoretypes.TeamID) (*scoretypes.ScoreDetails, error) {
	if f.GetDetailsFunc != nil {
		return f.GetDetailsFunc(ctx, team)
	}
	entry, ok := board().Find(team)
	if !ok {
		return nil, scoretypes.InvalidArgumentf("no team %s", team)
	}
	return &scoretypes.ScoreDetails{Summary: entry, Images: []scoretypes.ImageScore{}}, nil
}

func (f *FakeSource) Round() scoretypes.CompetitionRound { return scoretypes.Round1 }

func (f *FakeSource) Metadata() scoretypes.Metadata {
	return scoretypes.Metadata{Kind: scoretypes.SourceKindHTTP}
}

type fakeFallback struct {
	FakeSource
	index int
}

func (f *fakeFallback) SelectedIndex() int     { return f.index }
func (f *fakeFallback) LastRefresh() time.Time { return time.Time{} }

func board() *scoretypes.CompleteScoreboardSummary {
	entry := func(id string, score float64, division scoretypes.Division) scoretypes.ScoreSummaryEntry {
		return scoretypes.ScoreSummaryEntry{TeamID: scoretypes.MustParseTeamID(id), Division: division, TotalScore: score}
	}
	return &scoretypes.CompleteScoreboardSummary{
		TeamList: []scoretypes.ScoreSummaryEntry{
			entry("12-0001", 300, scoretypes.DivisionOpen),
			entry("12-0002", 250, scoretypes.DivisionOpen),
			entry("12-0003", 100, scoretypes.DivisionAllService),
		},
		SnapshotTimestamp: time.Date(2019, 11, 2, 12, 0, 0, 0, time.UTC),
	}
}

func newTestServer(t *testing.T, src scoreboardservice.Source, opts Options) (*httptest.Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	scoreboardservice.NewPrometheusMetrics(reg, "test").RecordCacheHit(context.Background(), "team")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewScoreboardHandlers(src, nil, reg, logger, noop.NewTracerProvider().Tracer("test"))
	server := httptest.NewServer(h.Routes(opts))
	t.Cleanup(server.Close)
	return server, reg
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestHealthz(t *testing.T) {
	t.Run("plain source", func(t *testing.T) {
		server, _ := newTestServer(t, &FakeSource{}, Options{})
		resp, body := get(t, server.URL+"/healthz")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var health healthResponse
		require.NoError(t, json.Unmarshal([]byte(body), &health))
		assert.Equal(t, "ok", health.Status)
		assert.Equal(t, "http", health.Kind)
		assert.Equal(t, "Round 1", health.Round)
		assert.Nil(t, health.SelectedIndex)
	})

	t.Run("unresolved fallback", func(t *testing.T) {
		server, _ := newTestServer(t, &fakeFallback{index: -1}, Options{})
		_, body := get(t, server.URL+"/healthz")
		var health healthResponse
		require.NoError(t, json.Unmarshal([]byte(body), &health))
		assert.Equal(t, "unresolved", health.Status)
		require.NotNil(t, health.SelectedIndex)
		assert.Equal(t, -1, *health.SelectedIndex)
	})
}

func TestGetScoreboard(t *testing.T) {
	src := &FakeSource{}
	server, _ := newTestServer(t, src, Options{})

	resp, body := get(t, server.URL+"/api/scoreboard?division=open&tier=gold&location=CA")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, scoretypes.ScoreboardFilterInfo{
		Division: scoretypes.DivisionOpen,
		Tier:     scoretypes.TierGold,
		Location: "CA",
	}, src.lastFilter)

	var summary scoretypes.CompleteScoreboardSummary
	require.NoError(t, json.Unmarshal([]byte(body), &summary))
	assert.Len(t, summary.TeamList, 3)

	resp, _ = get(t, server.URL+"/api/scoreboard?division=varsity")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{name: "malformed team", path: "/api/teams/nonsense", wantStatus: http.StatusBadRequest},
		{name: "unknown team", path: "/api/teams/12-0999", err: scoretypes.InvalidArgumentf("gone"), wantStatus: http.StatusNotFound, wantBody: msgTeamNotFound},
		{
			name:       "resolution failure",
			path:       "/api/teams/12-0001",
			err:        &scoretypes.AggregateError{Errors: []error{errors.New("a"), errors.New("b")}},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   msgUnavailable,
		},
		{name: "backend failure", path: "/api/teams/12-0001", err: scoretypes.NewOperationFailed("GET", errors.New("reset")), wantStatus: http.StatusServiceUnavailable, wantBody: msgUnavailable},
		{name: "unexpected", path: "/api/teams/12-0001", err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &FakeSource{
				GetDetailsFunc: func(context.Context, scoretypes.TeamID) (*scoretypes.ScoreDetails, error) {
					return nil, tt.err
				},
			}
			server, _ := newTestServer(t, src, Options{})
			resp, body := get(t, server.URL+tt.path)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, strings.TrimSpace(body))
			}
		})
	}
}

func TestGetTeamAndRank(t *testing.T) {
	server, _ := newTestServer(t, &FakeSource{}, Options{})

	resp, body := get(t, server.URL+"/api/teams/12-0002")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var details scoretypes.ScoreDetails
	require.NoError(t, json.Unmarshal([]byte(body), &details))
	assert.Equal(t, 250.0, details.Summary.TotalScore)

	resp, body = get(t, server.URL+"/api/teams/12-0002/rank")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rank scoreboardservice.PeerRank
	require.NoError(t, json.Unmarshal([]byte(body), &rank))
	assert.Equal(t, 2, rank.Rank)
	assert.Equal(t, 3, rank.PeerCount)

	resp, _ = get(t, server.URL+"/api/teams/12-0777/rank")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetHistogram(t *testing.T) {
	server, _ := newTestServer(t, &FakeSource{}, Options{})

	resp, body := get(t, server.URL+"/api/histogram.png?buckets=5")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(body, "\x89PNG"))

	resp, _ = get(t, server.URL+"/api/histogram.png?buckets=0")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	empty := &FakeSource{
		GetScoreboardFunc: func(context.Context, scoretypes.ScoreboardFilterInfo) (*scoretypes.CompleteScoreboardSummary, error) {
			return &scoretypes.CompleteScoreboardSummary{TeamList: []scoretypes.ScoreSummaryEntry{}}, nil
		},
	}
	server, _ = newTestServer(t, empty, Options{})
	resp, _ = get(t, server.URL+"/api/histogram.png")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := newTestServer(t, &FakeSource{}, Options{})
	resp, body := get(t, server.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "test_scoreboard_cache_hits_total")
}

func TestRateLimit(t *testing.T) {
	server, _ := newTestServer(t, &FakeSource{}, Options{RequestsPerSecond: 0.001, Burst: 1})

	resp, _ := get(t, server.URL+"/api/scoreboard")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = get(t, server.URL+"/api/scoreboard")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	resp, _ = get(t, server.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode, "health checks are not rate limited")
}

func TestCORS(t *testing.T) {
	server, _ := newTestServer(t, &FakeSource{}, Options{AllowedOrigins: []string{"https://scores.example"}})

	req, err := http.NewRequest(http.MethodOptions, server.URL+"/api/scoreboard", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://scores.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://scores.example", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestClientLimiter(t *testing.T) {
	start := time.Date(2019, 11, 2, 0, 0, 0, 0, time.UTC)
	now := start
	limiter := NewClientLimiter(1, 1)
	limiter.now = func() time.Time { return now }

	assert.Zero(t, limiter.Wait("10.0.0.1"))
	assert.Equal(t, time.Second, limiter.Wait("10.0.0.1"), "second request waits for a refill")
	assert.Zero(t, limiter.Wait("10.0.0.2"), "clients have separate buckets")

	now = start.Add(time.Second)
	assert.Zero(t, limiter.Wait("10.0.0.1"), "rejected requests do not spend tokens")

	for i := range 300 {
		limiter.Wait(fmt.Sprintf("10.1.%d.%d", i/256, i%256))
	}
	require.Equal(t, 302, limiter.Len())

	now = start.Add(idleClientAge + time.Minute)
	limiter.Wait("192.168.0.1")
	assert.Equal(t, 1, limiter.Len(), "idle clients are swept")
}
