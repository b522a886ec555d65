package scoreboard

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	scoretypes "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/domain/types"
	scoreboarddb "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/infrastructure/repositories"
	"github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/infrastructure/sources/csvarchive"
	"github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/infrastructure/sources/jsonarchive"
	"github.com/matthewzring/CyberScores-sub000/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

const openExport = `# division=Open
# tier=Platinum
# round=1
# timestamp=2019-11-02T18:00:00Z
Team Number,Location,Scored Images,Play Time,CCS Score
12-0001,CA,3,05:59,290
12-0002,TX,3,06:00,250
12-0003,VA,2,04:10,120
`

// syncBuffer collects log output written from several goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	exportPath := filepath.Join(dir, "open.csv")
	require.NoError(t, os.WriteFile(exportPath, []byte(openExport), 0o600))

	return &config.Config{
		Sources: []config.SourceConfig{
			{Type: config.SourceJSONArchive, ArchiveKey: "2019-r1"},
			{Type: config.SourceCSVArchive, Paths: []string{exportPath}},
		},
		Archive:       config.ArchiveConfig{Store: config.StoreFile, Dir: filepath.Join(dir, "archives")},
		HTTP:          config.HTTPConfig{Address: "127.0.0.1:0"},
		Observability: config.ObservabilityConfig{MetricsNamespace: "test"},
	}
}

func newTestModule(t *testing.T, cfg *config.Config, logs *syncBuffer) *Module {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	if logs != nil {
		logger = slog.New(slog.NewTextHandler(logs, nil))
	}
	m, err := NewScoreboardModule(context.Background(), cfg, Deps{
		Logger:   logger,
		Tracer:   noop.NewTracerProvider().Tracer("test"),
		Registry: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestModule_FallsBackToExports(t *testing.T) {
	m := newTestModule(t, testConfig(t), nil)

	summary, err := m.Source.GetScoreboard(context.Background(), scoretypes.NoFilter)
	require.NoError(t, err)
	assert.Len(t, summary.TeamList, 3)
	assert.Equal(t, 1, m.Source.SelectedIndex(), "missing archive is skipped")
	assert.Equal(t, scoretypes.Round1, m.Source.Round())

	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/teams/12-0002/rank")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rank struct {
		Rank      int `json:"rank"`
		PeerCount int `json:"peerCount"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rank))
	assert.Equal(t, 2, rank.Rank)
	assert.Equal(t, 3, rank.PeerCount)
}

func TestModule_PrefersArchiveOnceExported(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	exports, err := csvarchive.Open(ctx, cfg.Sources[1].Paths, csvarchive.Options{})
	require.NoError(t, err)
	archive, err := jsonarchive.Export(ctx, exports, jsonarchive.ExportOptions{})
	require.NoError(t, err)
	store := &scoreboarddb.FileStore{Dir: cfg.Archive.Dir}
	require.NoError(t, jsonarchive.Save(ctx, store, "2019-r1", archive))

	m := newTestModule(t, cfg, nil)
	details, err := m.Source.GetDetails(ctx, scoretypes.MustParseTeamID("12-0003"))
	require.NoError(t, err)
	assert.Equal(t, 120.0, details.Summary.TotalScore)
	assert.Equal(t, 0, m.Source.SelectedIndex())
	assert.Equal(t, scoretypes.SourceKindJSONArchive, m.Source.Backend().Metadata().Kind)
}

func TestModule_RunPublishesBackendChanges(t *testing.T) {
	logs := &syncBuffer{}
	m := newTestModule(t, testConfig(t), logs)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go m.Run(ctx, &wg)

	require.Eventually(t, func() bool { return m.Source.SelectedIndex() == 1 }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(logs.String()), []byte("Scoreboard backend changed"))
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	wg.Wait()
	assert.Contains(t, logs.String(), "Scoreboard module goroutine stopped")
}

func TestNewScoreboardModule_Errors(t *testing.T) {
	t.Run("bad schedule", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Competition.Schedule = []config.ScheduleEntry{{Round: "7", Start: "2019-11-01", End: "2019-11-03"}}
		_, err := NewScoreboardModule(context.Background(), cfg, Deps{
			Logger: slog.New(slog.DiscardHandler),
			Tracer: noop.NewTracerProvider().Tracer("test"),
		})
		require.Error(t, err)
	})

	t.Run("bad live url", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Sources = []config.SourceConfig{{Type: config.SourceHTTP, URL: "://nope", RequestInterval: time.Second}}
		_, err := NewScoreboardModule(context.Background(), cfg, Deps{
			Logger: slog.New(slog.DiscardHandler),
			Tracer: noop.NewTracerProvider().Tracer("test"),
		})
		require.Error(t, err)
	})
}

func TestBuildFactories_JSONNeedsStore(t *testing.T) {
	cfg := testConfig(t)
	_, err := BuildFactories(cfg, Environment{}, nil, slog.New(slog.DiscardHandler))
	require.ErrorContains(t, err, "requires an archive store")
}

func TestOpenArchiveStore(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	t.Run("file", func(t *testing.T) {
		cfg := testConfig(t)
		store, closer, err := OpenArchiveStore(context.Background(), cfg, logger)
		require.NoError(t, err)
		assert.Nil(t, closer)
		assert.IsType(t, &scoreboarddb.FileStore{}, store)
	})

	t.Run("redis", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		defer mr.Close()

		cfg := testConfig(t)
		cfg.Archive.Store = config.StoreRedis
		cfg.Redis.URL = "redis://" + mr.Addr()
		store, closer, err := OpenArchiveStore(context.Background(), cfg, logger)
		require.NoError(t, err)
		defer closer.Close()

		require.NoError(t, store.Save(context.Background(), "k", []byte("v")))
		assert.True(t, mr.Exists(scoreboarddb.DefaultRedisPrefix+"k"))
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Archive.Store = "s3"
		_, _, err := OpenArchiveStore(context.Background(), cfg, logger)
		require.Error(t, err)
	})
}
