package competition

import (
	"fmt"

	scoretypes "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/domain/types"
)

// ErrUnknownPoints is returned when no point total is defined for a round.
var ErrUnknownPoints = fmt.Errorf("%w: points possible not defined", scoretypes.ErrInvalidArgument)

// PointsTable holds per-round maximum scores for the components that are not
// scored on images.
type PointsTable struct {
	Cisco     map[scoretypes.CompetitionRound]float64
	Adjust    map[scoretypes.CompetitionRound]float64
	Challenge map[scoretypes.CompetitionRound]float64
}

// DefaultPointsTable is the point schedule used when none is configured.
func DefaultPointsTable() PointsTable {
	return PointsTable{
		Cisco: map[scoretypes.CompetitionRound]float64{
			scoretypes.Round1:          20,
			scoretypes.Round2:          30,
			scoretypes.Round3:          40,
			scoretypes.RoundSemifinals: 40,
		},
		Adjust: map[scoretypes.CompetitionRound]float64{
			scoretypes.Round1:          0,
			scoretypes.Round2:          0,
			scoretypes.Round3:          0,
			scoretypes.RoundSemifinals: 0,
		},
		Challenge: map[scoretypes.CompetitionRound]float64{
			scoretypes.Round3:          100,
			scoretypes.RoundSemifinals: 100,
		},
	}
}

// Rules implements round-dependent competition rules.
type Rules struct {
	Points PointsTable
}

// NewRules returns rules with the default point schedule.
func NewRules() *Rules {
	return &Rules{Points: DefaultPointsTable()}
}

// PeerTeams returns the teams entry is ranked against in round, entry included.
// Early rounds rank within a division (All Service teams also within their
// category); later rounds rank within division and tier.
func (r *Rules) PeerTeams(round scoretypes.CompetitionRound, scoreboard *scoretypes.CompleteScoreboardSummary, entry scoretypes.ScoreSummaryEntry) []scoretypes.ScoreSummaryEntry {
	if scoreboard == nil {
		return nil
	}
	byTier := round >= scoretypes.Round3 && entry.Division != scoretypes.DivisionMiddleSchool
	byCategory := !byTier && entry.Division == scoretypes.DivisionAllService && entry.Category != ""

	var peers []scoretypes.ScoreSummaryEntry
	for _, e := range scoreboard.TeamList {
		switch {
		case e.TeamID == entry.TeamID:
		case e.Division != entry.Division:
			continue
		case byTier && e.Tier != entry.Tier:
			continue
		case byCategory && e.Category != entry.Category:
			continue
		}
		peers = append(peers, e)
	}
	return peers
}

// CiscoPointsPossible returns the networking-quiz maximum for round.
func (r *Rules) CiscoPointsPossible(round scoretypes.CompetitionRound, division scoretypes.Division, tier scoretypes.Tier) (float64, error) {
	return lookupPoints(r.Points.Cisco, "cisco", round, division, tier)
}

// AdjustPointsPossible returns the maximum manual adjustment for round.
func (r *Rules) AdjustPointsPossible(round scoretypes.CompetitionRound, division scoretypes.Division, tier scoretypes.Tier) (float64, error) {
	return lookupPoints(r.Points.Adjust, "adjust", round, division, tier)
}

// ChallengePointsPossible returns the challenge maximum for round. Middle
// school teams never receive a challenge.
func (r *Rules) ChallengePointsPossible(round scoretypes.CompetitionRound, division scoretypes.Division, tier scoretypes.Tier) (float64, error) {
	if division == scoretypes.DivisionMiddleSchool {
		return 0, nil
	}
	return lookupPoints(r.Points.Challenge, "challenge", round, division, tier)
}

func lookupPoints(table map[scoretypes.CompetitionRound]float64, component string, round scoretypes.CompetitionRound, division scoretypes.Division, tier scoretypes.Tier) (float64, error) {
	if v, ok := table[round]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("%w: %s in %s (%s/%s)", ErrUnknownPoints, component, round, division, tier)
}
