package csvarchive

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	scoreboarddomain "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/domain"
	scoretypes "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/domain/types"
	"golang.org/x/sync/errgroup"
)

// CategoryProvider supplies categories missing from the exports.
type CategoryProvider interface {
	GetCategory(team scoretypes.TeamID) (string, bool)
}

// File is one export to load.
type File struct {
	Name string
	Data []byte
}

// Options configures loading.
type Options struct {
	Parsers    RowParserFactory
	Categories CategoryProvider
	Logger     *slog.Logger
	// Concurrency bounds how many files are parsed at once.
	Concurrency int
}

const defaultConcurrency = 4

// Source serves scoreboards reconstructed from spreadsheet exports.
// It is immutable after loading.
type Source struct {
	summaries  map[scoretypes.ScoreboardFilterInfo]*scoretypes.CompleteScoreboardSummary
	round      scoretypes.CompetitionRound
	formatting scoretypes.ScoreFormattingOptions
	files      int
}

// Open reads and loads the exports at paths.
func Open(ctx context.Context, paths []string, opts Options) (*Source, error) {
	files := make([]File, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return scoretypes.NewOperationFailed("read "+path, err)
			}
			files[i] = File{Name: filepath.Base(path), Data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return Load(ctx, files, opts)
}

// Load parses files concurrently and merges them into filter-keyed summaries.
func Load(ctx context.Context, files []File, opts Options) (*Source, error) {
	if len(files) == 0 {
		return nil, scoretypes.InvalidArgumentf("no archive files")
	}
	if opts.Parsers == nil {
		opts.Parsers = NewFactory()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}

	parsed := make([]*ParsedFile, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			parser, err := opts.Parsers.GetParser(f.Name)
			if err != nil {
				return scoretypes.InvalidArgumentf("%s: %v", f.Name, err)
			}
			rows, err := parser.Rows(f.Data)
			if err != nil {
				return scoretypes.NewOperationFailed("parse "+f.Name, err)
			}
			pf, err := parseRows(f.Name, rows, opts.Logger)
			if err != nil {
				return scoretypes.NewOperationFailed("parse "+f.Name, err)
			}
			parsed[i] = pf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	src := merge(parsed, opts.Categories)
	opts.Logger.InfoContext(ctx, "Loaded spreadsheet archive",
		"files", len(files),
		"views", len(src.summaries),
		"teams", len(src.summaries[scoretypes.NoFilter].TeamList),
	)
	return src, nil
}

// merge groups files by their filter and synthesizes the unfiltered union.
// Files are visited in the order given, so earlier files win duplicate teams.
func merge(files []*ParsedFile, categories CategoryProvider) *Source {
	src := &Source{
		summaries: make(map[scoretypes.ScoreboardFilterInfo]*scoretypes.CompleteScoreboardSummary),
		files:     len(files),
		formatting: scoretypes.ScoreFormattingOptions{
			TimeDisplay:   scoretypes.TimeDisplayHidden,
			NumberDisplay: scoretypes.NumberDisplayInteger,
		},
	}

	grouped := make(map[scoretypes.ScoreboardFilterInfo][][]scoretypes.ScoreSummaryEntry)
	var order []scoretypes.ScoreboardFilterInfo
	var all [][]scoretypes.ScoreSummaryEntry
	var origins []string
	union := &scoretypes.CompleteScoreboardSummary{}

	for _, f := range files {
		entries := make([]scoretypes.ScoreSummaryEntry, len(f.Entries))
		for i, e := range f.Entries {
			entries[i] = withCategory(e, categories)
			if e.TotalScore != math.Trunc(e.TotalScore) {
				src.formatting.NumberDisplay = scoretypes.NumberDisplayDecimal
			}
		}
		if f.HasTimes {
			src.formatting.TimeDisplay = scoretypes.TimeDisplayHoursMinutes
		}
		if src.round == scoretypes.RoundUnknown {
			src.round = f.Metadata.Round
		}

		key := f.Metadata.Filter
		if _, ok := grouped[key]; !ok {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], entries)
		all = append(all, entries)

		origin := f.Metadata.Origin
		if origin == "" {
			origin = f.Name
		}
		origins = append(origins, origin)
		if f.Metadata.Timestamp.After(union.SnapshotTimestamp) {
			union.SnapshotTimestamp = f.Metadata.Timestamp
		}

		summary := src.summaries[key]
		if summary == nil {
			summary = &scoretypes.CompleteScoreboardSummary{Filter: key, OriginURI: origin}
			src.summaries[key] = summary
		}
		if f.Metadata.Timestamp.After(summary.SnapshotTimestamp) {
			summary.SnapshotTimestamp = f.Metadata.Timestamp
		}
	}

	for _, key := range order {
		src.summaries[key].TeamList = scoreboarddomain.MergeTeamLists(grouped[key]...)
	}

	union.TeamList = scoreboarddomain.MergeTeamLists(all...)
	union.OriginURI = strings.Join(origins, " ")
	union.Filter = scoretypes.NoFilter
	src.summaries[scoretypes.NoFilter] = union
	return src
}

func withCategory(entry scoretypes.ScoreSummaryEntry, categories CategoryProvider) scoretypes.ScoreSummaryEntry {
	if entry.Category != "" || categories == nil {
		return entry
	}
	if c, ok := categories.GetCategory(entry.TeamID); ok {
		entry.Category = c
	}
	return entry
}

// GetScoreboard serves an exact view when one was exported, otherwise derives
// it from the union.
func (s *Source) GetScoreboard(_ context.Context, filter scoretypes.ScoreboardFilterInfo) (*scoretypes.CompleteScoreboardSummary, error) {
	if summary, ok := s.summaries[filter]; ok {
		return summary.Clone(), nil
	}
	return scoreboarddomain.ApplyFilter(s.summaries[scoretypes.NoFilter], filter)
}

// GetDetails reconstructs details from the summary row; exports carry no image breakdown.
func (s *Source) GetDetails(_ context.Context, team scoretypes.TeamID) (*scoretypes.ScoreDetails, error) {
	union := s.summaries[scoretypes.NoFilter]
	entry, ok := union.Find(team)
	if !ok {
		return nil, scoretypes.InvalidArgumentf("team %s is not in the archive", team)
	}
	return &scoretypes.ScoreDetails{
		Summary:           entry.Clone(),
		SnapshotTimestamp: union.SnapshotTimestamp,
		OriginURI:         union.OriginURI,
		Images:            []scoretypes.ImageScore{},
	}, nil
}

func (s *Source) Round() scoretypes.CompetitionRound { return s.round }

func (s *Source) Metadata() scoretypes.Metadata {
	return scoretypes.Metadata{
		Kind:              scoretypes.SourceKindCSVArchive,
		StaticSummaryLine: fmt.Sprintf("Scores loaded from %d spreadsheet export(s)", s.files),
		FormattingOptions: s.formatting,
	}
}

// Views lists the filters that were exported directly, plus NoFilter.
func (s *Source) Views() []scoretypes.ScoreboardFilterInfo {
	out := make([]scoretypes.ScoreboardFilterInfo, 0, len(s.summaries))
	for k := range s.summaries {
		out = append(out, k)
	}
	return out
}
