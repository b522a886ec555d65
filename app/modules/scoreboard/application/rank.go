package scoreboardservice

import (
	"context"

	scoreboarddomain "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/domain"
	scoretypes "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/domain/types"
)

// PeerRules selects the teams a given team competes against in a round.
type PeerRules interface {
	PeerTeams(round scoretypes.CompetitionRound, scoreboard *scoretypes.CompleteScoreboardSummary, entry scoretypes.ScoreSummaryEntry) []scoretypes.ScoreSummaryEntry
}

// PeerRank is a team's standing among its peers.
type PeerRank struct {
	Entry     scoretypes.ScoreSummaryEntry `json:"entry"`
	Rank      int                          `json:"rank"`
	PeerCount int                          `json:"peerCount"`
	Round     scoretypes.CompetitionRound  `json:"round"`
}

// RankAmongPeers ranks team against the peers chosen by rules. A nil rules
// ranks against the whole unfiltered scoreboard.
func RankAmongPeers(ctx context.Context, src Source, rules PeerRules, team scoretypes.TeamID) (*PeerRank, error) {
	summary, err := src.GetScoreboard(ctx, scoretypes.NoFilter)
	if err != nil {
		return nil, err
	}

	entry, ok := summary.Find(team)
	if !ok {
		return nil, scoretypes.InvalidArgumentf("team %s is not on the scoreboard", team)
	}

	round := src.Round()
	peers := summary.TeamList
	if rules != nil {
		peers = rules.PeerTeams(round, summary, entry)
	}
	ordered := make([]scoretypes.ScoreSummaryEntry, len(peers))
	copy(ordered, peers)
	scoreboarddomain.SortByScore(ordered)

	return &PeerRank{
		Entry:     entry,
		Rank:      scoreboarddomain.Rank(ordered, team),
		PeerCount: len(ordered),
		Round:     round,
	}, nil
}
