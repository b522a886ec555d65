package scoreboardservice

import (
	"bytes"
	"testing"
	"time"

	scoretypes "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/domain/types"
	"github.com/matthewzring/CyberScores-sub000/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketScores(t *testing.T) {
	tests := []struct {
		name    string
		scores  []float64
		buckets int
		want    []HistogramBucket
	}{
		{name: "empty", scores: nil, buckets: 4, want: nil},
		{
			name:    "identical scores collapse to one bucket",
			scores:  []float64{50, 50, 50},
			buckets: 5,
			want:    []HistogramBucket{{Lower: 50, Upper: 50, Count: 3}},
		},
		{
			name:    "max lands in last bucket",
			scores:  []float64{0, 10, 25, 40, 99, 100},
			buckets: 4,
			want: []HistogramBucket{
				{Lower: 0, Upper: 25, Count: 2},
				{Lower: 25, Upper: 50, Count: 2},
				{Lower: 50, Upper: 75, Count: 0},
				{Lower: 75, Upper: 100, Count: 2},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BucketScores(tt.scores, tt.buckets))
		})
	}
}

func TestBucketScores_CountsEveryScore(t *testing.T) {
	board := testutils.NewTestDataGenerator(99).Scoreboard("10", 137, time.Now())
	scores := make([]float64, len(board.TeamList))
	for i, e := range board.TeamList {
		scores[i] = e.TotalScore
	}

	total := 0
	for _, b := range BucketScores(scores, 0) {
		total += b.Count
	}
	assert.Equal(t, len(scores), total)
}

func TestRenderHistogram(t *testing.T) {
	board := testutils.NewTestDataGenerator(5).Scoreboard("10", 30, time.Now())

	png, err := RenderHistogram(board, 8, scoretypes.ScoreFormattingOptions{}, DefaultChartPalette)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	_, err = RenderHistogram(&scoretypes.CompleteScoreboardSummary{}, 8, scoretypes.ScoreFormattingOptions{}, DefaultChartPalette)
	assert.Error(t, err)
}
