package scoreboardservice

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	scoretypes "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/domain/types"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// DefaultHistogramBuckets is the bucket count used when none is requested.
const DefaultHistogramBuckets = 10

// HistogramBucket counts scores in [Lower, Upper). The last bucket includes Upper.
type HistogramBucket struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// ChartPalette holds the colours used for rendered charts.
type ChartPalette struct {
	Background drawing.Color
	Bar        drawing.Color
	Text       drawing.Color
}

// DefaultChartPalette is a dark theme that reads well in chat clients.
var DefaultChartPalette = ChartPalette{
	Background: drawing.ColorFromHex("2f3136"),
	Bar:        drawing.ColorFromHex("5865f2"),
	Text:       drawing.ColorFromHex("dcddde"),
}

// BucketScores splits scores into bucketCount equal-width buckets spanning
// the observed range.
func BucketScores(scores []float64, bucketCount int) []HistogramBucket {
	if len(scores) == 0 {
		return nil
	}
	if bucketCount <= 0 {
		bucketCount = DefaultHistogramBuckets
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range scores {
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}
	if lo == hi {
		return []HistogramBucket{{Lower: lo, Upper: hi, Count: len(scores)}}
	}

	width := (hi - lo) / float64(bucketCount)
	buckets := make([]HistogramBucket, bucketCount)
	for i := range buckets {
		buckets[i].Lower = lo + float64(i)*width
		buckets[i].Upper = lo + float64(i+1)*width
	}
	buckets[bucketCount-1].Upper = hi

	for _, s := range scores {
		idx := int((s - lo) / width)
		if idx >= bucketCount {
			idx = bucketCount - 1
		}
		buckets[idx].Count++
	}
	return buckets
}

// RenderHistogram produces a PNG bar chart of the total-score distribution of summary.
func RenderHistogram(summary *scoretypes.CompleteScoreboardSummary, bucketCount int, formatting scoretypes.ScoreFormattingOptions, palette ChartPalette) ([]byte, error) {
	if summary == nil || len(summary.TeamList) == 0 {
		return nil, errors.New("no teams to chart")
	}

	scores := make([]float64, len(summary.TeamList))
	for i, entry := range summary.TeamList {
		scores[i] = entry.TotalScore
	}
	buckets := BucketScores(scores, bucketCount)

	bars := make([]chart.Value, len(buckets))
	maxCount := 0
	for i, b := range buckets {
		bars[i] = chart.Value{
			Label: formatting.FormatScore(b.Lower),
			Value: float64(b.Count),
			Style: chart.Style{FillColor: palette.Bar, StrokeColor: palette.Bar},
		}
		maxCount = max(maxCount, b.Count)
	}

	title := "Score distribution"
	if !summary.Filter.IsNoFilter() {
		title = fmt.Sprintf("Score distribution (%s)", summary.Filter)
	}

	graph := chart.BarChart{
		Title:      title,
		TitleStyle: chart.Style{FontColor: palette.Text},
		Width:      800,
		Height:     400,
		BarWidth:   max(8, 600/len(bars)),
		BarSpacing: 8,
		Background: chart.Style{FillColor: palette.Background},
		Canvas:     chart.Style{FillColor: palette.Background},
		XAxis:      chart.Style{FontColor: palette.Text},
		YAxis: chart.YAxis{
			Name:  "Teams",
			Style: chart.Style{FontColor: palette.Text},
			Range: &chart.ContinuousRange{Min: 0, Max: float64(maxCount + 1)},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render histogram: %w", err)
	}
	return buf.Bytes(), nil
}
