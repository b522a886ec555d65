package csvarchive

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	scoretypes "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/domain/types"
	"github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/infrastructure/sources/scoreparse"
)

type parseState int

const (
	stateReadingComments parseState = iota
	stateReadingHeader
	stateReadingData
)

// FileMetadata is collected from "# key=value" lines before the header.
type FileMetadata struct {
	Filter      scoretypes.ScoreboardFilterInfo
	Timestamp   time.Time
	Origin      string
	Round       scoretypes.CompetitionRound
	Competition string
}

// ParsedFile is one export after parsing.
type ParsedFile struct {
	Name     string
	Metadata FileMetadata
	Entries  []scoretypes.ScoreSummaryEntry
	HasTimes bool
}

var timestampLayouts = []string{
	time.RFC3339,
	time.DateTime,
	"2006-01-02 15:04",
	time.DateOnly,
}

// parseRows runs the comment/header/data state machine over rows.
func parseRows(name string, rows [][]string, logger *slog.Logger) (*ParsedFile, error) {
	file := &ParsedFile{Name: name}
	state := stateReadingComments
	var header scoreparse.HeaderMap

	for i, row := range rows {
		line := i + 1
		if isBlank(row) {
			continue
		}
		first := strings.TrimSpace(row[0])

		if state == stateReadingComments {
			if strings.HasPrefix(first, "#") {
				applyMetadata(&file.Metadata, strings.Join(row, ","), logger)
				continue
			}
			state = stateReadingHeader
		}

		switch state {
		case stateReadingHeader:
			header = scoreparse.NewHeaderMap(row)
			if !header.Has(scoreparse.ColumnTeamID) {
				return nil, fmt.Errorf("%s:%d: header has no team column", name, line)
			}
			file.HasTimes = header.Has(scoreparse.ColumnPlayTime)
			state = stateReadingData
		case stateReadingData:
			if strings.HasPrefix(first, "#") {
				continue
			}
			entry, err := header.ParseRow(row, scoreparse.RowOptions{
				DefaultCompetition: file.Metadata.Competition,
				KeepUnknownNumeric: true,
			})
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", name, line, err)
			}
			file.Entries = append(file.Entries, withFileDefaults(entry, file.Metadata.Filter))
		}
	}

	if state != stateReadingData {
		return nil, fmt.Errorf("%s: no header row", name)
	}
	return file, nil
}

// applyMetadata records one comment line. Lines that are not well-formed
// metadata are ignored.
func applyMetadata(meta *FileMetadata, text string, logger *slog.Logger) {
	text = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(text), "#"))
	text = strings.TrimRight(text, ", \t")
	key, value, ok := strings.Cut(text, "=")
	if !ok {
		return
	}
	key = strings.ToLower(strings.TrimSpace(key))
	value = strings.TrimSpace(value)

	// Parsed values are assigned only on success so a bad line never
	// clobbers an earlier good one.
	var err error
	switch key {
	case "division":
		var division scoretypes.Division
		if division, err = scoretypes.ParseDivision(value); err == nil {
			meta.Filter.Division = division
		}
	case "tier":
		var tier scoretypes.Tier
		if tier, err = scoretypes.ParseTier(value); err == nil {
			meta.Filter.Tier = tier
		}
	case "category":
		meta.Filter.Category = value
	case "location":
		meta.Filter.Location = value
	case "origin":
		meta.Origin = value
	case "competition":
		meta.Competition = value
	case "round":
		var round scoretypes.CompetitionRound
		if round, err = scoretypes.ParseCompetitionRound(value); err == nil {
			meta.Round = round
		}
	case "timestamp":
		var ts time.Time
		if ts, err = parseTimestamp(value); err == nil {
			meta.Timestamp = ts
		}
	}
	if err != nil {
		logger.Debug("Ignoring malformed archive metadata",
			"key", key,
			"value", value,
			"error", err,
		)
	}
}

func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, scoretypes.InvalidArgumentf("unrecognised timestamp %q", value)
}

// withFileDefaults fills dimensions the rows omit from the file-level filter.
func withFileDefaults(entry scoretypes.ScoreSummaryEntry, filter scoretypes.ScoreboardFilterInfo) scoretypes.ScoreSummaryEntry {
	if entry.Division == scoretypes.DivisionNone {
		entry.Division = filter.Division
	}
	if entry.Tier == scoretypes.TierNone {
		entry.Tier = filter.Tier
	}
	if entry.Category == "" {
		entry.Category = filter.Category
	}
	if entry.Location == "" {
		entry.Location = filter.Location
	}
	return entry
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
