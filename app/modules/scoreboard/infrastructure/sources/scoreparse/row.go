package scoreparse

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	scoretypes "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/domain/types"
)

// RowOptions tunes ParseRow.
type RowOptions struct {
	// DefaultCompetition qualifies bare team numbers such as "1234".
	DefaultCompetition string
	// KeepUnknownNumeric stores numeric cells under unrecognised headers in
	// AdditionalScoreComponents.
	KeepUnknownNumeric bool
}

// ParseRow converts one data row into a scoreboard entry using the header layout.
// Missing trailing cells are treated as empty.
func (h HeaderMap) ParseRow(cells []string, opts RowOptions) (scoretypes.ScoreSummaryEntry, error) {
	var entry scoretypes.ScoreSummaryEntry
	var err error
	for i, col := range h.columns {
		cell := ""
		if i < len(cells) {
			cell = strings.TrimSpace(cells[i])
		}
		switch col {
		case ColumnTeamID:
			entry.TeamID, err = ParseTeamCell(cell, opts.DefaultCompetition)
		case ColumnLocation:
			entry.Location = cell
		case ColumnCategory:
			entry.Category = cell
		case ColumnDivision:
			entry.Division, err = scoretypes.ParseDivision(cell)
		case ColumnTier:
			entry.Tier, err = scoretypes.ParseTier(cell)
		case ColumnImageCount:
			entry.ImageCount, err = parseInt(cell)
		case ColumnPlayTime:
			entry.PlayTime, err = ParseDuration(cell)
		case ColumnScoreTime:
			entry.ScoreTime, err = ParseDuration(cell)
		case ColumnTotalScore:
			entry.TotalScore, err = ParseScore(cell)
		case ColumnWarnings:
			entry.Warnings, err = scoretypes.ParseScoreWarnings(cell)
		case ColumnAdvancement:
			entry.Advancement, err = scoretypes.ParseAdvancement(cell)
		case ColumnUnknown:
			if !opts.KeepUnknownNumeric || cell == "" {
				continue
			}
			if v, perr := ParseScore(cell); perr == nil {
				if entry.AdditionalScoreComponents == nil {
					entry.AdditionalScoreComponents = make(map[string]float64)
				}
				entry.AdditionalScoreComponents[h.names[i]] = v
			}
		}
		if err != nil {
			return scoretypes.ScoreSummaryEntry{}, fmt.Errorf("column %q: %w", h.names[i], err)
		}
	}
	if entry.TeamID.IsZero() {
		return scoretypes.ScoreSummaryEntry{}, scoretypes.InvalidArgumentf("row has no team ID")
	}
	return entry, nil
}

// ParseTeamCell parses "CODE-NNNN", or a bare number when defaultCompetition is set.
func ParseTeamCell(cell, defaultCompetition string) (scoretypes.TeamID, error) {
	if id, err := scoretypes.ParseTeamID(cell); err == nil {
		return id, nil
	}
	if defaultCompetition != "" {
		if n, err := strconv.Atoi(cell); err == nil {
			return scoretypes.NewTeamID(defaultCompetition, n)
		}
	}
	return scoretypes.TeamID{}, scoretypes.InvalidArgumentf("malformed team ID %q", cell)
}

// ParseDuration parses "HH:MM" or "HH:MM:SS". Hours may exceed 24. Empty input is zero.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, scoretypes.InvalidArgumentf("malformed duration %q", s)
	}
	units := []time.Duration{time.Hour, time.Minute, time.Second}
	var d time.Duration
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || (i > 0 && n > 59) {
			return 0, scoretypes.InvalidArgumentf("malformed duration %q", s)
		}
		d += time.Duration(n) * units[i]
	}
	return d, nil
}

// ParseScore parses a score cell, tolerating thousands separators. Empty input is zero.
func ParseScore(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, scoretypes.InvalidArgumentf("malformed score %q", s)
	}
	return v, nil
}

func parseInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, scoretypes.InvalidArgumentf("malformed number %q", s)
	}
	return n, nil
}
