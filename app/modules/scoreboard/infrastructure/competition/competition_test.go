package competition

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	scoretypes "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/domain/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestScheduleRoundInferrer(t *testing.T) {
	inferrer, err := NewScheduleRoundInferrer([]RoundWindow{
		{Round: scoretypes.Round2, Start: date("2019-11-01"), End: date("2019-11-04")},
		{Round: scoretypes.Round1, Start: date("2019-10-11"), End: date("2019-10-14")},
	})
	require.NoError(t, err)

	tests := []struct {
		at   time.Time
		want scoretypes.CompetitionRound
	}{
		{at: date("2019-10-10"), want: scoretypes.RoundUnknown},
		{at: date("2019-10-11"), want: scoretypes.Round1},
		{at: date("2019-10-13").Add(23 * time.Hour), want: scoretypes.Round1},
		{at: date("2019-10-14"), want: scoretypes.RoundUnknown},
		{at: date("2019-11-02"), want: scoretypes.Round2},
	}
	for _, tt := range tests {
		t.Run(tt.at.Format(time.RFC3339), func(t *testing.T) {
			assert.Equal(t, tt.want, inferrer.InferRound(tt.at))
		})
	}
	assert.Equal(t, scoretypes.Round1, inferrer.Windows()[0].Round)
}

func TestNewScheduleRoundInferrer_Invalid(t *testing.T) {
	_, err := NewScheduleRoundInferrer([]RoundWindow{{Round: scoretypes.Round1, Start: date("2019-10-14"), End: date("2019-10-11")}})
	assert.ErrorIs(t, err, scoretypes.ErrInvalidArgument)

	_, err = NewScheduleRoundInferrer([]RoundWindow{{Start: date("2019-10-11"), End: date("2019-10-14")}})
	assert.ErrorIs(t, err, scoretypes.ErrInvalidArgument)
}

func TestParseRoundDate(t *testing.T) {
	base := time.Date(2019, 11, 6, 10, 0, 0, 0, time.UTC) // a Wednesday

	got, err := ParseRoundDate("2019-12-06", base)
	require.NoError(t, err)
	assert.Equal(t, date("2019-12-06"), got)

	got, err = ParseRoundDate("12/06/2019", base)
	require.NoError(t, err)
	assert.Equal(t, date("2019-12-06"), got)

	got, err = ParseRoundDate("next saturday", base)
	require.NoError(t, err)
	assert.Equal(t, time.Saturday, got.Weekday())
	assert.True(t, got.After(base))

	_, err = ParseRoundDate("", base)
	assert.ErrorIs(t, err, scoretypes.ErrInvalidArgument)

	_, err = ParseRoundDate("zzzz", base)
	assert.ErrorIs(t, err, scoretypes.ErrInvalidArgument)
}

func TestBuildSchedule(t *testing.T) {
	windows, err := BuildSchedule([]ScheduleEntry{
		{Round: "round1", Start: "2019-10-11", End: "2019-10-14"},
		{Round: "state", Start: "2019-12-06", End: "2019-12-09"},
	}, time.Date(2019, 9, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, windows, 2)
	assert.Equal(t, scoretypes.Round3, windows[1].Round)

	_, err = BuildSchedule([]ScheduleEntry{{Round: "round9", Start: "2019-10-11", End: "2019-10-14"}}, time.Now())
	assert.ErrorIs(t, err, scoretypes.ErrInvalidArgument)
}

func TestRules_PeerTeams(t *testing.T) {
	entry := func(n int, div scoretypes.Division, tier scoretypes.Tier, category string) scoretypes.ScoreSummaryEntry {
		return scoretypes.ScoreSummaryEntry{
			TeamID:   scoretypes.TeamID{CompetitionIdentifier: "12", TeamNumber: n},
			Division: div, Tier: tier, Category: category,
		}
	}
	board := &scoretypes.CompleteScoreboardSummary{TeamList: []scoretypes.ScoreSummaryEntry{
		entry(1, scoretypes.DivisionOpen, scoretypes.TierPlatinum, ""),
		entry(2, scoretypes.DivisionOpen, scoretypes.TierGold, ""),
		entry(3, scoretypes.DivisionAllService, scoretypes.TierGold, "Navy JROTC"),
		entry(4, scoretypes.DivisionAllService, scoretypes.TierGold, "Civil Air Patrol"),
		entry(5, scoretypes.DivisionAllService, scoretypes.TierSilver, "Navy JROTC"),
		entry(6, scoretypes.DivisionMiddleSchool, scoretypes.TierMiddleSchool, ""),
	}}
	rules := NewRules()

	ids := func(entries []scoretypes.ScoreSummaryEntry) []int {
		var out []int
		for _, e := range entries {
			out = append(out, e.TeamID.TeamNumber)
		}
		return out
	}

	assert.Equal(t, []int{1, 2}, ids(rules.PeerTeams(scoretypes.Round1, board, board.TeamList[0])))
	assert.Equal(t, []int{3, 5}, ids(rules.PeerTeams(scoretypes.Round2, board, board.TeamList[2])))
	assert.Equal(t, []int{1}, ids(rules.PeerTeams(scoretypes.Round3, board, board.TeamList[0])))
	assert.Equal(t, []int{3, 4}, ids(rules.PeerTeams(scoretypes.RoundSemifinals, board, board.TeamList[2])))
	assert.Equal(t, []int{6}, ids(rules.PeerTeams(scoretypes.Round3, board, board.TeamList[5])))
	assert.Nil(t, rules.PeerTeams(scoretypes.Round1, nil, board.TeamList[0]))
}

func TestRules_PointsPossible(t *testing.T) {
	rules := NewRules()

	v, err := rules.CiscoPointsPossible(scoretypes.Round2, scoretypes.DivisionOpen, scoretypes.TierNone)
	require.NoError(t, err)
	assert.Equal(t, 30.0, v)

	v, err = rules.ChallengePointsPossible(scoretypes.Round1, scoretypes.DivisionMiddleSchool, scoretypes.TierMiddleSchool)
	require.NoError(t, err)
	assert.Zero(t, v)

	_, err = rules.ChallengePointsPossible(scoretypes.Round1, scoretypes.DivisionOpen, scoretypes.TierGold)
	assert.ErrorIs(t, err, ErrUnknownPoints)
	assert.ErrorIs(t, err, scoretypes.ErrInvalidArgument)

	_, err = rules.AdjustPointsPossible(scoretypes.RoundUnknown, scoretypes.DivisionOpen, scoretypes.TierGold)
	assert.Error(t, err)
}

func TestParseCategoryMap(t *testing.T) {
	input := strings.Join([]string{
		"# exported from registration",
		"12-0001,Navy JROTC",
		"12-0002\tCivil Air Patrol",
		"12-0003: Marine Corps JROTC ",
		"not a team,Army",
		"12-0004,",
		"garbage",
		"",
	}, "\n")

	got := ParseCategoryMap(strings.NewReader(input))
	assert.Equal(t, map[scoretypes.TeamID]string{
		scoretypes.MustParseTeamID("12-0001"): "Navy JROTC",
		scoretypes.MustParseTeamID("12-0002"): "Civil Air Patrol",
		scoretypes.MustParseTeamID("12-0003"): "Marine Corps JROTC",
	}, got)
}

func TestLoadCategoryMap(t *testing.T) {
	dir := t.TempDir()

	missing, err := LoadCategoryMap(filepath.Join(dir, "absent.txt"))
	require.NoError(t, err)
	assert.Zero(t, missing.Len())

	path := filepath.Join(dir, "categories.txt")
	require.NoError(t, os.WriteFile(path, []byte("12-0042=Army JROTC\n"), 0o600))
	provider, err := LoadCategoryMap(path)
	require.NoError(t, err)

	category, ok := provider.GetCategory(scoretypes.MustParseTeamID("12-0042"))
	require.True(t, ok)
	assert.Equal(t, "Army JROTC", category)

	_, ok = provider.GetCategory(scoretypes.MustParseTeamID("12-0043"))
	assert.False(t, ok)
}
