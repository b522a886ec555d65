package scoreboarddomain

import (
	"cmp"
	"slices"

	scoretypes "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/domain/types"
)

// ApplyFilter narrows summary to the rows matching filter.
// Dimensions left unset in filter pass everything through. Filtering by a
// value that contradicts a dimension already applied to summary fails with
// ErrInvalidArgument. The input summary is never modified.
func ApplyFilter(summary *scoretypes.CompleteScoreboardSummary, filter scoretypes.ScoreboardFilterInfo) (*scoretypes.CompleteScoreboardSummary, error) {
	if summary == nil {
		return nil, scoretypes.InvalidArgumentf("cannot filter a nil scoreboard")
	}

	merged, err := filter.Merge(summary.Filter)
	if err != nil {
		return nil, err
	}

	out := &scoretypes.CompleteScoreboardSummary{
		SnapshotTimestamp: summary.SnapshotTimestamp,
		OriginURI:         summary.OriginURI,
		Filter:            merged,
		TeamList:          make([]scoretypes.ScoreSummaryEntry, 0, len(summary.TeamList)),
	}
	for _, entry := range summary.TeamList {
		if filter.Matches(entry) {
			out.TeamList = append(out.TeamList, entry.Clone())
		}
	}
	return out, nil
}

// IsValidSummary reports whether summary looks like a usable scoreboard
// response for filter. An unfiltered scoreboard must name at least one real team.
func IsValidSummary(summary *scoretypes.CompleteScoreboardSummary, filter scoretypes.ScoreboardFilterInfo) bool {
	if summary == nil || summary.TeamList == nil {
		return false
	}
	if !filter.IsNoFilter() {
		return true
	}
	for _, entry := range summary.TeamList {
		if !entry.TeamID.IsZero() {
			return true
		}
	}
	return false
}

// SortByScore orders entries by descending total score, then ascending play
// time, then team ID, so ties render deterministically.
func SortByScore(entries []scoretypes.ScoreSummaryEntry) {
	slices.SortStableFunc(entries, func(a, b scoretypes.ScoreSummaryEntry) int {
		if c := cmp.Compare(b.TotalScore, a.TotalScore); c != 0 {
			return c
		}
		if c := cmp.Compare(a.PlayTime, b.PlayTime); c != 0 {
			return c
		}
		switch {
		case a.TeamID.Less(b.TeamID):
			return -1
		case b.TeamID.Less(a.TeamID):
			return 1
		}
		return 0
	})
}

// MergeTeamLists returns the union of lists deduplicated by team ID, keeping the
// first occurrence of each team, sorted by score.
func MergeTeamLists(lists ...[]scoretypes.ScoreSummaryEntry) []scoretypes.ScoreSummaryEntry {
	seen := make(map[scoretypes.TeamID]struct{})
	var out []scoretypes.ScoreSummaryEntry
	for _, list := range lists {
		for _, entry := range list {
			if _, dup := seen[entry.TeamID]; dup {
				continue
			}
			seen[entry.TeamID] = struct{}{}
			out = append(out, entry.Clone())
		}
	}
	if out == nil {
		out = []scoretypes.ScoreSummaryEntry{}
	}
	SortByScore(out)
	return out
}

// Rank returns the 1-based position of id in entries, or 0 if absent.
func Rank(entries []scoretypes.ScoreSummaryEntry, id scoretypes.TeamID) int {
	for i, e := range entries {
		if e.TeamID == id {
			return i + 1
		}
	}
	return 0
}
