package scoreboarddomain

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	scoretypes "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/domain/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id string, div scoretypes.Division, tier scoretypes.Tier, score float64) scoretypes.ScoreSummaryEntry {
	return scoretypes.ScoreSummaryEntry{
		TeamID:     scoretypes.MustParseTeamID(id),
		Location:   "CA",
		Division:   div,
		Tier:       tier,
		TotalScore: score,
	}
}

func testSummary() *scoretypes.CompleteScoreboardSummary {
	return &scoretypes.CompleteScoreboardSummary{
		TeamList: []scoretypes.ScoreSummaryEntry{
			entry("10-0001", scoretypes.DivisionOpen, scoretypes.TierPlatinum, 300),
			entry("10-0002", scoretypes.DivisionOpen, scoretypes.TierGold, 250),
			entry("10-0003", scoretypes.DivisionAllService, scoretypes.TierGold, 200),
			entry("10-0004", scoretypes.DivisionMiddleSchool, scoretypes.TierNone, 150),
		},
		SnapshotTimestamp: time.Date(2019, 11, 2, 18, 0, 0, 0, time.UTC),
		OriginURI:         "http://scoreboard.example/",
	}
}

func TestApplyFilter(t *testing.T) {
	tests := []struct {
		name       string
		base       func() *scoretypes.CompleteScoreboardSummary
		filter     scoretypes.ScoreboardFilterInfo
		wantTeams  []string
		wantFilter scoretypes.ScoreboardFilterInfo
		wantErr    bool
	}{
		{
			name:      "no filter passes everything",
			base:      testSummary,
			filter:    scoretypes.NoFilter,
			wantTeams: []string{"10-0001", "10-0002", "10-0003", "10-0004"},
		},
		{
			name:       "division",
			base:       testSummary,
			filter:     scoretypes.ScoreboardFilterInfo{Division: scoretypes.DivisionOpen},
			wantTeams:  []string{"10-0001", "10-0002"},
			wantFilter: scoretypes.ScoreboardFilterInfo{Division: scoretypes.DivisionOpen},
		},
		{
			name:       "tier across divisions",
			base:       testSummary,
			filter:     scoretypes.ScoreboardFilterInfo{Tier: scoretypes.TierGold},
			wantTeams:  []string{"10-0002", "10-0003"},
			wantFilter: scoretypes.ScoreboardFilterInfo{Tier: scoretypes.TierGold},
		},
		{
			name: "narrowing an already filtered scoreboard",
			base: func() *scoretypes.CompleteScoreboardSummary {
				s, _ := ApplyFilter(testSummary(), scoretypes.ScoreboardFilterInfo{Division: scoretypes.DivisionOpen})
				return s
			},
			filter:     scoretypes.ScoreboardFilterInfo{Division: scoretypes.DivisionOpen, Tier: scoretypes.TierGold},
			wantTeams:  []string{"10-0002"},
			wantFilter: scoretypes.ScoreboardFilterInfo{Division: scoretypes.DivisionOpen, Tier: scoretypes.TierGold},
		},
		{
			name: "contradicting an applied division",
			base: func() *scoretypes.CompleteScoreboardSummary {
				s, _ := ApplyFilter(testSummary(), scoretypes.ScoreboardFilterInfo{Division: scoretypes.DivisionOpen})
				return s
			},
			filter:  scoretypes.ScoreboardFilterInfo{Division: scoretypes.DivisionAllService},
			wantErr: true,
		},
		{
			name:       "location is case-insensitive",
			base:       testSummary,
			filter:     scoretypes.ScoreboardFilterInfo{Location: "ca"},
			wantTeams:  []string{"10-0001", "10-0002", "10-0003", "10-0004"},
			wantFilter: scoretypes.ScoreboardFilterInfo{Location: "ca"},
		},
		{
			name: "re-filtering a location view in another case",
			base: func() *scoretypes.CompleteScoreboardSummary {
				s, _ := ApplyFilter(testSummary(), scoretypes.ScoreboardFilterInfo{Location: "CA"})
				return s
			},
			filter:     scoretypes.ScoreboardFilterInfo{Location: "ca", Tier: scoretypes.TierGold},
			wantTeams:  []string{"10-0002", "10-0003"},
			wantFilter: scoretypes.ScoreboardFilterInfo{Location: "CA", Tier: scoretypes.TierGold},
		},
		{
			name: "contradicting an applied location",
			base: func() *scoretypes.CompleteScoreboardSummary {
				s, _ := ApplyFilter(testSummary(), scoretypes.ScoreboardFilterInfo{Location: "CA"})
				return s
			},
			filter:  scoretypes.ScoreboardFilterInfo{Location: "TX"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := tt.base()
			got, err := ApplyFilter(base, tt.filter)
			if tt.wantErr {
				require.ErrorIs(t, err, scoretypes.ErrInvalidArgument)
				return
			}
			require.NoError(t, err)

			var ids []string
			for _, e := range got.TeamList {
				ids = append(ids, e.TeamID.String())
			}
			assert.Equal(t, tt.wantTeams, ids)
			assert.Equal(t, tt.wantFilter, got.Filter)
			assert.Equal(t, base.SnapshotTimestamp, got.SnapshotTimestamp)
			assert.Equal(t, base.OriginURI, got.OriginURI)
		})
	}
}

func TestApplyFilter_DoesNotMutateInput(t *testing.T) {
	base := testSummary()
	before := base.Clone()

	got, err := ApplyFilter(base, scoretypes.ScoreboardFilterInfo{Division: scoretypes.DivisionOpen})
	require.NoError(t, err)
	got.TeamList[0].TotalScore = -1

	if diff := cmp.Diff(before, base); diff != "" {
		t.Errorf("input summary mutated (-want +got):\n%s", diff)
	}
}

func TestIsValidSummary(t *testing.T) {
	assert.False(t, IsValidSummary(nil, scoretypes.NoFilter))
	assert.False(t, IsValidSummary(&scoretypes.CompleteScoreboardSummary{}, scoretypes.NoFilter))
	assert.False(t, IsValidSummary(&scoretypes.CompleteScoreboardSummary{
		TeamList: []scoretypes.ScoreSummaryEntry{{}},
	}, scoretypes.NoFilter))
	assert.True(t, IsValidSummary(&scoretypes.CompleteScoreboardSummary{
		TeamList: []scoretypes.ScoreSummaryEntry{},
	}, scoretypes.ScoreboardFilterInfo{Division: scoretypes.DivisionOpen}))
	assert.True(t, IsValidSummary(testSummary(), scoretypes.NoFilter))
}

func TestMergeTeamLists(t *testing.T) {
	a := []scoretypes.ScoreSummaryEntry{
		entry("10-0002", scoretypes.DivisionOpen, scoretypes.TierGold, 100),
		entry("10-0001", scoretypes.DivisionOpen, scoretypes.TierGold, 50),
	}
	b := []scoretypes.ScoreSummaryEntry{
		entry("10-0001", scoretypes.DivisionOpen, scoretypes.TierGold, 999),
		entry("10-0003", scoretypes.DivisionOpen, scoretypes.TierGold, 75),
	}

	merged := MergeTeamLists(a, b)
	require.Len(t, merged, 3)
	assert.Equal(t, "10-0002", merged[0].TeamID.String())
	assert.Equal(t, "10-0003", merged[1].TeamID.String())
	assert.Equal(t, "10-0001", merged[2].TeamID.String())
	assert.Equal(t, 50.0, merged[2].TotalScore)

	assert.Equal(t, 2, Rank(merged, scoretypes.MustParseTeamID("10-0003")))
	assert.Equal(t, 0, Rank(merged, scoretypes.MustParseTeamID("10-0009")))
}
