package scoretypes

import (
	"maps"
	"slices"
	"time"
)

// ScoreSummaryEntry is one row of a scoreboard.
type ScoreSummaryEntry struct {
	TeamID                    TeamID             `json:"teamId"`
	Location                  string             `json:"location"`
	Category                  string             `json:"category,omitempty"`
	Division                  Division           `json:"division"`
	Tier                      Tier               `json:"tier,omitempty"`
	ImageCount                int                `json:"imageCount"`
	PlayTime                  time.Duration      `json:"playTime"`
	ScoreTime                 time.Duration      `json:"scoreTime"`
	TotalScore                float64            `json:"totalScore"`
	Warnings                  ScoreWarnings      `json:"warnings,omitempty"`
	Advancement               Advancement        `json:"advancement,omitempty"`
	AdditionalScoreComponents map[string]float64 `json:"additionalScoreComponents,omitempty"`
}

// Clone copies the entry including its component map.
func (e ScoreSummaryEntry) Clone() ScoreSummaryEntry {
	e.AdditionalScoreComponents = maps.Clone(e.AdditionalScoreComponents)
	return e
}

// ImageScore is the per-image breakdown on a team's detail page.
type ImageScore struct {
	ImageName                string        `json:"imageName"`
	PlayTime                 time.Duration `json:"playTime"`
	VulnerabilitiesFound     int           `json:"vulnerabilitiesFound"`
	VulnerabilitiesRemaining int           `json:"vulnerabilitiesRemaining"`
	Penalties                int           `json:"penalties"`
	Score                    float64       `json:"score"`
	PointsPossible           int           `json:"pointsPossible"`
	Warnings                 ScoreWarnings `json:"warnings,omitempty"`
}

// ScorePoint is one sample in an image's score-over-time series.
type ScorePoint struct {
	Time  time.Time `json:"time"`
	Score float64   `json:"score"`
}

// ScoreDetails is a team's full detail view.
type ScoreDetails struct {
	Summary             ScoreSummaryEntry       `json:"summary"`
	SnapshotTimestamp   time.Time               `json:"snapshotTimestamp"`
	OriginURI           string                  `json:"originUri,omitempty"`
	Images              []ImageScore            `json:"images"`
	ImageScoresOverTime map[string][]ScorePoint `json:"imageScoresOverTime,omitempty"`
}

// Clone deep-copies the details so callers can mutate the result freely.
func (d *ScoreDetails) Clone() *ScoreDetails {
	if d == nil {
		return nil
	}
	out := *d
	out.Summary = d.Summary.Clone()
	out.Images = slices.Clone(d.Images)
	if d.ImageScoresOverTime != nil {
		out.ImageScoresOverTime = make(map[string][]ScorePoint, len(d.ImageScoresOverTime))
		for name, points := range d.ImageScoresOverTime {
			out.ImageScoresOverTime[name] = slices.Clone(points)
		}
	}
	return &out
}

// CompleteScoreboardSummary is a snapshot of a (possibly filtered) scoreboard.
// Filter records which filter produced TeamList.
type CompleteScoreboardSummary struct {
	TeamList          []ScoreSummaryEntry  `json:"teamList"`
	SnapshotTimestamp time.Time            `json:"snapshotTimestamp"`
	OriginURI         string               `json:"originUri,omitempty"`
	Filter            ScoreboardFilterInfo `json:"filter"`
}

// Clone returns a summary whose team list is independent of the original.
func (s *CompleteScoreboardSummary) Clone() *CompleteScoreboardSummary {
	if s == nil {
		return nil
	}
	out := *s
	if s.TeamList != nil {
		out.TeamList = make([]ScoreSummaryEntry, len(s.TeamList))
		for i, e := range s.TeamList {
			out.TeamList[i] = e.Clone()
		}
	}
	return &out
}

// Find returns the entry for id, if present.
func (s *CompleteScoreboardSummary) Find(id TeamID) (ScoreSummaryEntry, bool) {
	if s == nil {
		return ScoreSummaryEntry{}, false
	}
	for _, e := range s.TeamList {
		if e.TeamID == id {
			return e, true
		}
	}
	return ScoreSummaryEntry{}, false
}
