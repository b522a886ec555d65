package httpsource

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	scoretypes "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/domain/types"
	"github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/infrastructure/sources/scoreparse"
)

// imagePointsPossible is the maximum score of a single image.
const imagePointsPossible = 100

type imageColumn int

const (
	imageColumnOther imageColumn = iota
	imageColumnName
	imageColumnTime
	imageColumnFound
	imageColumnRemaining
	imageColumnPenalties
	imageColumnScore
	imageColumnWarnings
)

var imageColumnAliases = map[string]imageColumn{
	"image":          imageColumnName,
	"imagename":      imageColumnName,
	"time":           imageColumnTime,
	"playtime":       imageColumnTime,
	"foundvulns":     imageColumnFound,
	"found":          imageColumnFound,
	"remainingvulns": imageColumnRemaining,
	"remaining":      imageColumnRemaining,
	"penalties":      imageColumnPenalties,
	"score":          imageColumnScore,
	"warn":           imageColumnWarnings,
	"warnings":       imageColumnWarnings,
}

// parseImages reads the per-image table. A page without one yields no images.
func parseImages(doc *Document) ([]scoretypes.ImageScore, error) {
	for _, table := range doc.Tables {
		if len(table) == 0 {
			continue
		}
		columns := make([]imageColumn, len(table[0]))
		hasName := false
		for i, cell := range table[0] {
			columns[i] = imageColumnAliases[scoreparse.NormalizeHeader(cell)]
			hasName = hasName || columns[i] == imageColumnName
		}
		if !hasName {
			continue
		}

		images := make([]scoretypes.ImageScore, 0, len(table)-1)
		for _, row := range table[1:] {
			img, err := parseImageRow(columns, row)
			if err != nil {
				return nil, err
			}
			if img.ImageName != "" {
				images = append(images, img)
			}
		}
		return images, nil
	}
	return []scoretypes.ImageScore{}, nil
}

func parseImageRow(columns []imageColumn, row []string) (scoretypes.ImageScore, error) {
	img := scoretypes.ImageScore{PointsPossible: imagePointsPossible}
	for i, col := range columns {
		if i >= len(row) {
			break
		}
		cell := strings.TrimSpace(row[i])
		var err error
		switch col {
		case imageColumnName:
			img.ImageName = cell
		case imageColumnTime:
			img.PlayTime, err = scoreparse.ParseDuration(cell)
		case imageColumnFound:
			img.VulnerabilitiesFound, err = atoi(cell)
		case imageColumnRemaining:
			img.VulnerabilitiesRemaining, err = atoi(cell)
		case imageColumnPenalties:
			img.Penalties, err = atoi(cell)
		case imageColumnScore:
			img.Score, err = scoreparse.ParseScore(cell)
		case imageColumnWarnings:
			img.Warnings, err = scoretypes.ParseScoreWarnings(cell)
		}
		if err != nil {
			return scoretypes.ImageScore{}, fmt.Errorf("image %q: %w", img.ImageName, err)
		}
	}
	return img, nil
}

func atoi(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

var chartDataPattern = regexp.MustCompile(`arrayToDataTable\(\s*(\[.*?\])\s*\)`)

const chartTimeLayout = "01/02 15:04"

var errNoChart = errors.New("no score chart in page")

// parseScoresOverTime reads the Google Charts data table embedded in the team page.
// Samples carry no year, so the snapshot's year is assumed.
func parseScoresOverTime(doc *Document, snapshot time.Time) (map[string][]scoretypes.ScorePoint, error) {
	for _, script := range doc.Scripts {
		m := chartDataPattern.FindStringSubmatch(script)
		if m == nil {
			continue
		}
		var rows [][]any
		if err := json.Unmarshal([]byte(strings.ReplaceAll(m[1], "'", `"`)), &rows); err != nil {
			return nil, fmt.Errorf("decode chart data: %w", err)
		}
		if len(rows) == 0 {
			return nil, errNoChart
		}

		names := make([]string, len(rows[0]))
		for i, v := range rows[0] {
			names[i], _ = v.(string)
		}
		series := make(map[string][]scoretypes.ScorePoint, len(names)-1)
		for _, row := range rows[1:] {
			if len(row) == 0 {
				continue
			}
			label, _ := row[0].(string)
			at, err := time.Parse(chartTimeLayout, label)
			if err != nil {
				return nil, fmt.Errorf("chart time %q: %w", label, err)
			}
			at = at.AddDate(snapshot.Year(), 0, 0)
			for i := 1; i < len(row) && i < len(names); i++ {
				score, ok := row[i].(float64)
				if !ok {
					continue
				}
				series[names[i]] = append(series[names[i]], scoretypes.ScorePoint{Time: at, Score: score})
			}
		}
		return series, nil
	}
	return nil, errNoChart
}
