package scoreparse

import (
	"strings"
	"unicode"
)

// Column identifies a known scoreboard column.
type Column int

const (
	ColumnUnknown Column = iota
	ColumnIgnored
	ColumnTeamID
	ColumnLocation
	ColumnCategory
	ColumnDivision
	ColumnTier
	ColumnImageCount
	ColumnPlayTime
	ColumnScoreTime
	ColumnTotalScore
	ColumnWarnings
	ColumnAdvancement
)

// columnAliases maps normalized header text to a column.
var columnAliases = map[string]Column{
	"":             ColumnIgnored,
	"#":            ColumnIgnored,
	"rank":         ColumnIgnored,
	"place":        ColumnIgnored,
	"team":         ColumnTeamID,
	"teamid":       ColumnTeamID,
	"teamnumber":   ColumnTeamID,
	"teamno":       ColumnTeamID,
	"location":     ColumnLocation,
	"loc":          ColumnLocation,
	"state":        ColumnLocation,
	"category":     ColumnCategory,
	"division":     ColumnDivision,
	"div":          ColumnDivision,
	"tier":         ColumnTier,
	"scoredimages": ColumnImageCount,
	"imagecount":   ColumnImageCount,
	"images":       ColumnImageCount,
	"playtime":     ColumnPlayTime,
	"time":         ColumnPlayTime,
	"scoretime":    ColumnScoreTime,
	"ccsscore":     ColumnTotalScore,
	"currentscore": ColumnTotalScore,
	"totalscore":   ColumnTotalScore,
	"total":        ColumnTotalScore,
	"score":        ColumnTotalScore,
	"warnings":     ColumnWarnings,
	"warn":         ColumnWarnings,
	"advancement":  ColumnAdvancement,
	"advances":     ColumnAdvancement,
	"status":       ColumnAdvancement,
}

// NormalizeHeader lower-cases s and drops whitespace and punctuation other than '#'.
func NormalizeHeader(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r == '#':
			b.WriteRune(r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}

// LookupColumn resolves a header cell.
func LookupColumn(header string) Column {
	if c, ok := columnAliases[NormalizeHeader(header)]; ok {
		return c
	}
	return ColumnUnknown
}

// HeaderMap is the column layout of one table.
type HeaderMap struct {
	columns []Column
	names   []string
}

// NewHeaderMap builds a layout from a header row.
func NewHeaderMap(header []string) HeaderMap {
	h := HeaderMap{
		columns: make([]Column, len(header)),
		names:   make([]string, len(header)),
	}
	for i, cell := range header {
		h.columns[i] = LookupColumn(cell)
		h.names[i] = strings.TrimSpace(cell)
	}
	return h
}

// Len is the number of columns in the header.
func (h HeaderMap) Len() int { return len(h.columns) }

// Has reports whether the header contains c.
func (h HeaderMap) Has(c Column) bool {
	for _, col := range h.columns {
		if col == c {
			return true
		}
	}
	return false
}

// IsScoreboardHeader reports whether the row looks like a scoreboard header:
// it needs a team column and a score column.
func IsScoreboardHeader(row []string) bool {
	h := NewHeaderMap(row)
	return h.Has(ColumnTeamID) && h.Has(ColumnTotalScore)
}
