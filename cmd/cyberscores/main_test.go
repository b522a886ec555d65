package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	scoretypes "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/domain/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const export = `# division=Open
# tier=Gold
# round=2
Team Number,Location,Scored Images,Play Time,CCS Score
12-0001,CA,3,05:59,290
12-0002,TX,3,06:00,250
`

func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "open.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(export), 0o600))

	cfg := "sources:\n" +
		"  - type: csv\n" +
		"    paths: [" + csvPath + "]\n" +
		"archive:\n" +
		"  store: file\n" +
		"  dir: " + filepath.Join(dir, "archives") + "\n" +
		"competition:\n" +
		"  schedule:\n" +
		"    - {round: \"2\", start: \"2019-12-06\", end: \"2019-12-09\"}\n" +
		"observability:\n" +
		"  log_level: error\n"
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	app := newApp(&out)
	require.NoError(t, app.Run(append([]string{serviceName}, args...)))
	return out.String()
}

func TestScoreboardCommand(t *testing.T) {
	cfg := writeFixture(t)

	table := run(t, "-c", cfg, "scoreboard")
	assert.Contains(t, table, "12-0001")
	assert.Contains(t, table, "12-0002")
	assert.Contains(t, table, "2 of 2 teams")

	limited := run(t, "-c", cfg, "scoreboard", "--limit", "1")
	assert.Contains(t, limited, "1 of 2 teams")
	assert.NotContains(t, limited, "12-0002")

	var summary scoretypes.CompleteScoreboardSummary
	require.NoError(t, json.Unmarshal([]byte(run(t, "-c", cfg, "scoreboard", "--json", "--location", "tx")), &summary))
	require.Len(t, summary.TeamList, 1)
	assert.Equal(t, "12-0002", summary.TeamList[0].TeamID.String())
}

func TestTeamCommand(t *testing.T) {
	cfg := writeFixture(t)
	out := run(t, "-c", cfg, "team", "12-0002")
	assert.Contains(t, out, "12-0002")
	assert.Contains(t, out, "Rank 2 of 2 (Round 2)")
}

func TestExportAndArchivesCommands(t *testing.T) {
	cfg := writeFixture(t)
	gz := filepath.Join(t.TempDir(), "2019-r2.json.gz")

	out := run(t, "-c", cfg, "export", "--key", "2019-r2", "--out", gz)
	assert.Contains(t, out, "Exported 2 teams to 2019-r2")
	info, err := os.Stat(gz)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	assert.Equal(t, "2019-r2\n", run(t, "-c", cfg, "archives", "list"))
	run(t, "-c", cfg, "archives", "delete", "2019-r2")
	assert.Empty(t, run(t, "-c", cfg, "archives", "list"))
}

func TestRoundCommand(t *testing.T) {
	cfg := writeFixture(t)
	out := run(t, "-c", cfg, "round", "2019-12-07")
	assert.Equal(t, "2019-12-07 00:00:00: Round 2\n", out)

	out = run(t, "-c", cfg, "round", "2019-12-20")
	assert.True(t, strings.HasSuffix(out, ": Unknown\n"), out)
}

func TestHistogramCommand(t *testing.T) {
	cfg := writeFixture(t)
	path := filepath.Join(t.TempDir(), "scores.png")
	out := run(t, "-c", cfg, "histogram", "--out", path, "--buckets", "4")
	assert.Contains(t, out, "(2 teams)")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestRenderScoreboard(t *testing.T) {
	summary := &scoretypes.CompleteScoreboardSummary{
		TeamList: []scoretypes.ScoreSummaryEntry{
			{TeamID: scoretypes.MustParseTeamID("12-0001"), Location: "CA", TotalScore: 99.5, PlayTime: 90 * time.Minute},
		},
		Filter:            scoretypes.ScoreboardFilterInfo{Location: "CA"},
		SnapshotTimestamp: time.Date(2019, 11, 2, 18, 0, 0, 0, time.UTC),
	}
	out := renderScoreboard(summary, scoretypes.ScoreFormattingOptions{NumberDisplay: scoretypes.NumberDisplayDecimal}, 0)
	assert.Contains(t, out, "99.50")
	assert.Contains(t, out, "01:30")
	assert.Contains(t, out, "as of 2019-11-02 18:00 UTC")
	assert.Contains(t, out, "matching")
}
