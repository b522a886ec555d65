package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	scoretypes "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/domain/types"
)

var (
	colorAccent = lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"}
	colorWarn   = lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"}

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	warnStyle   = lipgloss.NewStyle().Foreground(colorWarn).Padding(0, 1)
)

const warningsColumn = 8

func renderScoreboard(summary *scoretypes.CompleteScoreboardSummary, formatting scoretypes.ScoreFormattingOptions, limit int) string {
	teams := summary.TeamList
	if limit > 0 && limit < len(teams) {
		teams = teams[:limit]
	}

	rows := make([][]string, len(teams))
	for i, e := range teams {
		rows[i] = []string{
			strconv.Itoa(i + 1),
			e.TeamID.String(),
			e.Location,
			e.Division.String(),
			e.Tier.String(),
			strconv.Itoa(e.ImageCount),
			formatting.FormatTime(e.PlayTime),
			formatting.FormatScore(e.TotalScore),
			e.Warnings.String(),
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers("#", "Team", "Location", "Division", "Tier", "Images", "Play Time", "Score", "Warnings").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == warningsColumn:
				return warnStyle
			}
			return cellStyle
		})

	var b strings.Builder
	b.WriteString(t.String())
	b.WriteString("\n")
	footer := fmt.Sprintf("%d of %d teams", len(teams), len(summary.TeamList))
	if !summary.Filter.IsNoFilter() {
		footer += " matching " + summary.Filter.String()
	}
	if !summary.SnapshotTimestamp.IsZero() {
		footer += ", as of " + summary.SnapshotTimestamp.UTC().Format("2006-01-02 15:04 MST")
	}
	b.WriteString(mutedStyle.Render(footer))
	b.WriteString("\n")
	return b.String()
}

func renderDetails(details *scoretypes.ScoreDetails, formatting scoretypes.ScoreFormattingOptions) string {
	s := details.Summary
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s  %s %s\n",
		headerStyle.Render(s.TeamID.String()),
		s.Location,
		s.Division,
		s.Tier,
	)
	fmt.Fprintf(&b, "Score %s  Images %d  Play time %s\n",
		formatting.FormatScore(s.TotalScore),
		s.ImageCount,
		formatting.FormatTime(s.PlayTime),
	)
	if len(details.Images) == 0 {
		b.WriteString(mutedStyle.Render("no image breakdown available"))
		b.WriteString("\n")
		return b.String()
	}

	rows := make([][]string, len(details.Images))
	for i, img := range details.Images {
		rows[i] = []string{
			img.ImageName,
			formatting.FormatTime(img.PlayTime),
			strconv.Itoa(img.VulnerabilitiesFound),
			strconv.Itoa(img.VulnerabilitiesRemaining),
			strconv.Itoa(img.Penalties),
			fmt.Sprintf("%s/%d", formatting.FormatScore(img.Score), img.PointsPossible),
			img.Warnings.String(),
		}
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers("Image", "Time", "Found", "Remaining", "Penalties", "Score", "Warnings").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	b.WriteString(t.String())
	b.WriteString("\n")
	return b.String()
}
