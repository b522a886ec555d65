package competition

import (
	"fmt"
	"slices"
	"time"

	scoretypes "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/domain/types"
)

// RoundWindow is the inclusive-start, exclusive-end period during which a round is scored.
type RoundWindow struct {
	Round scoretypes.CompetitionRound
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w RoundWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// ScheduleRoundInferrer maps dates to rounds from a fixed schedule.
type ScheduleRoundInferrer struct {
	windows []RoundWindow
}

// NewScheduleRoundInferrer validates windows and orders them by start time.
func NewScheduleRoundInferrer(windows []RoundWindow) (*ScheduleRoundInferrer, error) {
	sorted := slices.Clone(windows)
	for _, w := range sorted {
		if w.Round == scoretypes.RoundUnknown {
			return nil, scoretypes.InvalidArgumentf("schedule window starting %s has no round", w.Start.Format(time.DateOnly))
		}
		if !w.End.After(w.Start) {
			return nil, scoretypes.InvalidArgumentf("schedule window for %s ends before it starts", w.Round)
		}
	}
	slices.SortFunc(sorted, func(a, b RoundWindow) int { return a.Start.Compare(b.Start) })
	return &ScheduleRoundInferrer{windows: sorted}, nil
}

// InferRound returns the round scheduled at t, or RoundUnknown outside every window.
func (s *ScheduleRoundInferrer) InferRound(t time.Time) scoretypes.CompetitionRound {
	if s == nil {
		return scoretypes.RoundUnknown
	}
	for _, w := range s.windows {
		if w.Contains(t) {
			return w.Round
		}
	}
	return scoretypes.RoundUnknown
}

// Windows returns a copy of the schedule.
func (s *ScheduleRoundInferrer) Windows() []RoundWindow {
	return slices.Clone(s.windows)
}

// ScheduleEntry is the textual form of a RoundWindow. Start and End accept
// anything ParseRoundDate understands.
type ScheduleEntry struct {
	Round string
	Start string
	End   string
}

// BuildSchedule parses entries relative to base.
func BuildSchedule(entries []ScheduleEntry, base time.Time) ([]RoundWindow, error) {
	windows := make([]RoundWindow, 0, len(entries))
	for i, e := range entries {
		round, err := scoretypes.ParseCompetitionRound(e.Round)
		if err != nil {
			return nil, fmt.Errorf("schedule entry %d: %w", i, err)
		}
		start, err := ParseRoundDate(e.Start, base)
		if err != nil {
			return nil, fmt.Errorf("schedule entry %d start: %w", i, err)
		}
		end, err := ParseRoundDate(e.End, base)
		if err != nil {
			return nil, fmt.Errorf("schedule entry %d end: %w", i, err)
		}
		windows = append(windows, RoundWindow{Round: round, Start: start, End: end})
	}
	return windows, nil
}
