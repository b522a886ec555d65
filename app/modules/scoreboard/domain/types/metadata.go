package scoretypes

import (
	"fmt"
	"strconv"
	"time"
)

// SourceKind tags each score source variant so composed sources can be
// unwrapped to a specific variant without type switches.
type SourceKind int

const (
	SourceKindUnknown SourceKind = iota
	SourceKindHTTP
	SourceKindJSONArchive
	SourceKindCSVArchive
	SourceKindCache
	SourceKindFallback
)

func (k SourceKind) String() string {
	switch k {
	case SourceKindHTTP:
		return "http"
	case SourceKindJSONArchive:
		return "json-archive"
	case SourceKindCSVArchive:
		return "csv-archive"
	case SourceKindCache:
		return "cache"
	case SourceKindFallback:
		return "fallback"
	}
	return "unknown"
}

// TimeDisplay controls how durations are rendered.
type TimeDisplay int

const (
	// TimeDisplayHoursMinutes renders "HH:MM".
	TimeDisplayHoursMinutes TimeDisplay = iota
	// TimeDisplayHoursMinutesSeconds renders "HH:MM:SS".
	TimeDisplayHoursMinutesSeconds
	// TimeDisplayHidden renders nothing; used by archives without timing data.
	TimeDisplayHidden
)

// NumberDisplay controls how scores are rendered.
type NumberDisplay int

const (
	// NumberDisplayInteger renders whole points.
	NumberDisplayInteger NumberDisplay = iota
	// NumberDisplayDecimal renders two decimal places.
	NumberDisplayDecimal
)

// ScoreFormattingOptions is a source's score-rendering policy.
type ScoreFormattingOptions struct {
	TimeDisplay   TimeDisplay   `json:"timeDisplay"`
	NumberDisplay NumberDisplay `json:"numberDisplay"`
}

// FormatScore renders a score according to the number policy.
func (o ScoreFormattingOptions) FormatScore(score float64) string {
	if o.NumberDisplay == NumberDisplayDecimal {
		return strconv.FormatFloat(score, 'f', 2, 64)
	}
	return strconv.FormatFloat(score, 'f', 0, 64)
}

// FormatTime renders a duration according to the time policy.
func (o ScoreFormattingOptions) FormatTime(d time.Duration) string {
	if o.TimeDisplay == TimeDisplayHidden {
		return ""
	}
	if d < 0 {
		d = 0
	}
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	if o.TimeDisplay == TimeDisplayHoursMinutesSeconds {
		s := int(d % time.Minute / time.Second)
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

// Metadata describes a score source.
type Metadata struct {
	Kind                             SourceKind             `json:"kind"`
	IsDynamic                        bool                   `json:"isDynamic"`
	SupportsInexpensiveDetailQueries bool                   `json:"supportsInexpensiveDetailQueries"`
	StaticSummaryLine                string                 `json:"staticSummaryLine,omitempty"`
	FormattingOptions                ScoreFormattingOptions `json:"formattingOptions"`
}
