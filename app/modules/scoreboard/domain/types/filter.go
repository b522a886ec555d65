package scoretypes

import "strings"

// ScoreboardFilterInfo selects a subset of the scoreboard. Each dimension is
// optional; the zero value of a dimension means "not filtered".
// The struct is comparable so it can be used directly as a map key.
type ScoreboardFilterInfo struct {
	Division Division `json:"division,omitempty"`
	Tier     Tier     `json:"tier,omitempty"`
	Category string   `json:"category,omitempty"`
	Location string   `json:"location,omitempty"`
}

// NoFilter is the unfiltered view. It is the key of the master scoreboard.
var NoFilter = ScoreboardFilterInfo{}

// IsNoFilter reports whether no dimension is set.
func (f ScoreboardFilterInfo) IsNoFilter() bool { return f == NoFilter }

// NarrowsFrom reports whether f keeps every dimension already set in base.
// f may set additional dimensions.
func (f ScoreboardFilterInfo) NarrowsFrom(base ScoreboardFilterInfo) bool {
	if base.Division != DivisionNone && f.Division != base.Division {
		return false
	}
	if base.Tier != TierNone && f.Tier != base.Tier {
		return false
	}
	if base.Category != "" && f.Category != base.Category {
		return false
	}
	if base.Location != "" && !strings.EqualFold(f.Location, base.Location) {
		return false
	}
	return true
}

// Merge combines base with the dimensions set in f. It fails with
// ErrInvalidArgument if f contradicts a dimension already set in base.
// Locations compare case-insensitively, as in Matches, and base keeps its spelling.
func (f ScoreboardFilterInfo) Merge(base ScoreboardFilterInfo) (ScoreboardFilterInfo, error) {
	out := base
	if f.Division != DivisionNone {
		if base.Division != DivisionNone && base.Division != f.Division {
			return base, InvalidArgumentf("cannot filter %s scoreboard by division %s", base.Division, f.Division)
		}
		out.Division = f.Division
	}
	if f.Tier != TierNone {
		if base.Tier != TierNone && base.Tier != f.Tier {
			return base, InvalidArgumentf("cannot filter %s scoreboard by tier %s", base.Tier, f.Tier)
		}
		out.Tier = f.Tier
	}
	if f.Category != "" {
		if base.Category != "" && base.Category != f.Category {
			return base, InvalidArgumentf("cannot filter %q scoreboard by category %q", base.Category, f.Category)
		}
		out.Category = f.Category
	}
	if f.Location != "" {
		switch {
		case base.Location == "":
			out.Location = f.Location
		case !strings.EqualFold(base.Location, f.Location):
			return base, InvalidArgumentf("cannot filter %q scoreboard by location %q", base.Location, f.Location)
		}
	}
	return out, nil
}

// Matches reports whether entry passes every set dimension.
func (f ScoreboardFilterInfo) Matches(entry ScoreSummaryEntry) bool {
	if f.Division != DivisionNone && entry.Division != f.Division {
		return false
	}
	if f.Tier != TierNone && entry.Tier != f.Tier {
		return false
	}
	if f.Category != "" && entry.Category != f.Category {
		return false
	}
	if f.Location != "" && !strings.EqualFold(entry.Location, f.Location) {
		return false
	}
	return true
}

func (f ScoreboardFilterInfo) String() string {
	if f.IsNoFilter() {
		return "all teams"
	}
	var parts []string
	if f.Division != DivisionNone {
		parts = append(parts, f.Division.String())
	}
	if f.Tier != TierNone {
		parts = append(parts, f.Tier.String())
	}
	if f.Category != "" {
		parts = append(parts, f.Category)
	}
	if f.Location != "" {
		parts = append(parts, f.Location)
	}
	return strings.Join(parts, " ")
}
