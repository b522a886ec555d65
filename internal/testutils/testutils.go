package testutils

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	scoretypes "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/domain/types"
)

// TestDataGenerator builds plausible scoreboard data for tests.
type TestDataGenerator struct {
	faker *gofakeit.Faker
	seed  int64
}

// NewTestDataGenerator creates a generator. Without a seed the current time is used.
func NewTestDataGenerator(seed ...int64) *TestDataGenerator {
	var s int64
	if len(seed) > 0 {
		s = seed[0]
	} else {
		s = time.Now().UnixNano()
	}
	return &TestDataGenerator{
		faker: gofakeit.New(uint64(s)),
		seed:  s,
	}
}

// Seed returns the seed the generator was created with.
func (g *TestDataGenerator) Seed() int64 { return g.seed }

var (
	divisions = []scoretypes.Division{scoretypes.DivisionOpen, scoretypes.DivisionAllService, scoretypes.DivisionMiddleSchool}
	tiers     = []scoretypes.Tier{scoretypes.TierPlatinum, scoretypes.TierGold, scoretypes.TierSilver}
	images    = []string{"Windows 10", "Server 2019", "Ubuntu 22", "Debian 11", "Fedora 38"}
)

// Entry returns a random scoreboard row for team number n of competition code.
func (g *TestDataGenerator) Entry(code string, n int) scoretypes.ScoreSummaryEntry {
	division := divisions[g.faker.Number(0, len(divisions)-1)]
	var tier scoretypes.Tier
	if division == scoretypes.DivisionMiddleSchool {
		tier = scoretypes.TierMiddleSchool
	} else {
		tier = tiers[g.faker.Number(0, len(tiers)-1)]
	}
	play := time.Duration(g.faker.Number(30, 360)) * time.Minute

	return scoretypes.ScoreSummaryEntry{
		TeamID:     scoretypes.TeamID{CompetitionIdentifier: code, TeamNumber: n},
		Location:   g.faker.StateAbr(),
		Division:   division,
		Tier:       tier,
		ImageCount: g.faker.Number(2, 4),
		PlayTime:   play,
		ScoreTime:  play - time.Duration(g.faker.Number(0, 29))*time.Minute,
		TotalScore: float64(g.faker.Number(0, 300)),
	}
}

// Scoreboard returns an unfiltered scoreboard with count teams numbered from 1.
func (g *TestDataGenerator) Scoreboard(code string, count int, snapshot time.Time) *scoretypes.CompleteScoreboardSummary {
	teams := make([]scoretypes.ScoreSummaryEntry, count)
	for i := range teams {
		teams[i] = g.Entry(code, i+1)
	}
	return &scoretypes.CompleteScoreboardSummary{
		TeamList:          teams,
		SnapshotTimestamp: snapshot.UTC(),
		OriginURI:         fmt.Sprintf("http://scoreboard.test/%d", g.seed),
	}
}

// Details returns a detail record consistent with entry.
func (g *TestDataGenerator) Details(entry scoretypes.ScoreSummaryEntry, snapshot time.Time) *scoretypes.ScoreDetails {
	imgs := make([]scoretypes.ImageScore, 0, entry.ImageCount)
	for i := 0; i < entry.ImageCount && i < len(images); i++ {
		found := g.faker.Number(0, 25)
		imgs = append(imgs, scoretypes.ImageScore{
			ImageName:                images[i],
			PlayTime:                 entry.PlayTime,
			VulnerabilitiesFound:     found,
			VulnerabilitiesRemaining: g.faker.Number(0, 10),
			Penalties:                g.faker.Number(0, 2),
			Score:                    float64(found * 4),
			PointsPossible:           100,
		})
	}
	return &scoretypes.ScoreDetails{
		Summary:           entry,
		SnapshotTimestamp: snapshot.UTC(),
		OriginURI:         fmt.Sprintf("http://scoreboard.test/team/%s", entry.TeamID),
		Images:            imgs,
	}
}
