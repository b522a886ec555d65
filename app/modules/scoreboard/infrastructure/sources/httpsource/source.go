package httpsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	scoreboarddomain "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/domain"
	scoretypes "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/domain/types"
	"github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/infrastructure/ratelimit"
	"github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/infrastructure/sources/scoreparse"
)

const (
	requestTimeout = 30 * time.Second
	maxRedirects   = 5

	scoreboardPath = "index.php"
	teamPath       = "team.php"
)

// RoundInferrer decides which competition round is running at a given time.
type RoundInferrer interface {
	InferRound(t time.Time) scoretypes.CompetitionRound
}

// CategoryProvider supplies team categories the live scoreboard omits.
type CategoryProvider interface {
	GetCategory(team scoretypes.TeamID) (string, bool)
}

// Options configures a Source. Zero fields get defaults.
type Options struct {
	Client      *http.Client
	RateLimiter ratelimit.RateLimiter
	Rounds      RoundInferrer
	Categories  CategoryProvider
	Parser      DocumentParser
	Now         func() time.Time
	Logger      *slog.Logger
}

// Source reads the live CyberPatriot scoreboard.
type Source struct {
	base       *url.URL
	client     *http.Client
	limiter    ratelimit.RateLimiter
	rounds     RoundInferrer
	categories CategoryProvider
	parser     DocumentParser
	now        func() time.Time
	logger     *slog.Logger
}

// New creates a Source rooted at baseURL, e.g. "http://scoreboard.uscyberpatriot.org/".
func New(baseURL string, opts Options) (*Source, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, scoretypes.InvalidArgumentf("invalid scoreboard URL %q", baseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	s := &Source{
		base:       base,
		client:     opts.Client,
		limiter:    opts.RateLimiter,
		rounds:     opts.Rounds,
		categories: opts.Categories,
		parser:     opts.Parser,
		now:        opts.Now,
		logger:     opts.Logger,
	}
	if s.client == nil {
		s.client = newClient()
	}
	if s.limiter == nil {
		s.limiter = ratelimit.NoneRateLimiter{}
	}
	if s.parser == nil {
		s.parser = HTMLDocumentParser{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

func newClient() *http.Client {
	return &http.Client{
		Timeout: requestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
}

func newRequest(ctx context.Context, u string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; CyberScores/1.0)")
	req.Header.Set("Accept", "text/html, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	return req, nil
}

// Round infers the current round from the schedule, or RoundUnknown without one.
func (s *Source) Round() scoretypes.CompetitionRound {
	if s.rounds == nil {
		return scoretypes.RoundUnknown
	}
	return s.rounds.InferRound(s.now())
}

func (s *Source) Metadata() scoretypes.Metadata {
	return scoretypes.Metadata{
		Kind:                             scoretypes.SourceKindHTTP,
		IsDynamic:                        true,
		SupportsInexpensiveDetailQueries: true,
		FormattingOptions: scoretypes.ScoreFormattingOptions{
			TimeDisplay:   scoretypes.TimeDisplayHoursMinutes,
			NumberDisplay: scoretypes.NumberDisplayInteger,
		},
	}
}

// GetScoreboard asks the server for the division and tier subset and applies
// the remaining dimensions locally.
func (s *Source) GetScoreboard(ctx context.Context, filter scoretypes.ScoreboardFilterInfo) (*scoretypes.CompleteScoreboardSummary, error) {
	query := url.Values{}
	query.Set("division", filter.Division.String())
	query.Set("tier", filter.Tier.String())
	u := s.resolve(scoreboardPath, query)

	page, err := s.fetch(ctx, u)
	if err != nil {
		return nil, err
	}
	table, header, ok := findScoreboardTable(page.doc)
	if !ok {
		return nil, scoretypes.NewOperationFailed("parse scoreboard", errors.New("no scoreboard table in page"))
	}

	teams := make([]scoretypes.ScoreSummaryEntry, 0, len(table)-1)
	for i, row := range table[1:] {
		entry, err := header.ParseRow(row, scoreparse.RowOptions{})
		if err != nil {
			return nil, scoretypes.NewOperationFailed("parse scoreboard", fmt.Errorf("row %d: %w", i+1, err))
		}
		teams = append(teams, s.withCategory(entry))
	}

	summary := &scoretypes.CompleteScoreboardSummary{
		TeamList:          teams,
		SnapshotTimestamp: page.fetched,
		OriginURI:         u,
		Filter: scoretypes.ScoreboardFilterInfo{
			Division: filter.Division,
			Tier:     filter.Tier,
		},
	}
	return scoreboarddomain.ApplyFilter(summary, filter)
}

// GetDetails loads the team page. A page without a summary row means the team does not exist.
func (s *Source) GetDetails(ctx context.Context, team scoretypes.TeamID) (*scoretypes.ScoreDetails, error) {
	query := url.Values{}
	query.Set("team", team.String())
	u := s.resolve(teamPath, query)

	page, err := s.fetch(ctx, u)
	if err != nil {
		return nil, err
	}
	table, header, ok := findScoreboardTable(page.doc)
	if !ok || len(table) < 2 {
		return nil, scoretypes.InvalidArgumentf("team %s not found", team)
	}
	summary, err := header.ParseRow(table[1], scoreparse.RowOptions{})
	if err != nil {
		return nil, scoretypes.NewOperationFailed("parse team summary", err)
	}
	if summary.TeamID != team {
		return nil, scoretypes.InvalidArgumentf("team %s not found", team)
	}

	images, err := parseImages(page.doc)
	if err != nil {
		return nil, scoretypes.NewOperationFailed("parse team images", err)
	}

	details := &scoretypes.ScoreDetails{
		Summary:           s.withCategory(summary),
		SnapshotTimestamp: page.fetched,
		OriginURI:         u,
		Images:            images,
	}
	series, err := parseScoresOverTime(page.doc, page.fetched)
	if err != nil {
		s.logger.DebugContext(ctx, "Ignoring unreadable score chart",
			"team", team.String(),
			"error", err,
		)
	} else {
		details.ImageScoresOverTime = series
	}
	return details, nil
}

func (s *Source) withCategory(entry scoretypes.ScoreSummaryEntry) scoretypes.ScoreSummaryEntry {
	if entry.Category != "" || s.categories == nil {
		return entry
	}
	if category, ok := s.categories.GetCategory(entry.TeamID); ok {
		entry.Category = category
	}
	return entry
}

func (s *Source) resolve(path string, query url.Values) string {
	u := s.base.ResolveReference(&url.URL{Path: path})
	u.RawQuery = query.Encode()
	return u.String()
}

type page struct {
	doc     *Document
	fetched time.Time
}

// fetch waits for the rate limiter, then holds a prerequisite until the response is consumed.
func (s *Source) fetch(ctx context.Context, u string) (*page, error) {
	if err := s.limiter.GetWorkAuthorization(ctx); err != nil {
		return nil, err
	}
	done := make(chan struct{})
	s.limiter.AddPrerequisite(done)
	defer close(done)

	req, err := newRequest(ctx, u)
	if err != nil {
		return nil, scoretypes.NewOperationFailed("build request", err)
	}

	start := s.now()
	resp, err := s.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, scoretypes.NewOperationFailed("GET "+u, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, scoretypes.InvalidArgumentf("%s returned 404", u)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, scoretypes.NewOperationFailed("GET "+u, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	doc, err := s.parser.Parse(resp.Body)
	if err != nil {
		return nil, scoretypes.NewOperationFailed("parse "+u, err)
	}

	fetched := start
	if date, err := http.ParseTime(resp.Header.Get("Date")); err == nil {
		fetched = date
	}
	s.logger.DebugContext(ctx, "Fetched scoreboard page",
		"url", u,
		"tables", len(doc.Tables),
		"duration", s.now().Sub(start),
	)
	return &page{doc: doc, fetched: fetched.UTC()}, nil
}

// findScoreboardTable returns the first table whose first row is a scoreboard header.
func findScoreboardTable(doc *Document) (Table, scoreparse.HeaderMap, bool) {
	for _, table := range doc.Tables {
		if len(table) > 0 && scoreparse.IsScoreboardHeader(table[0]) {
			return table, scoreparse.NewHeaderMap(table[0]), true
		}
	}
	return nil, scoreparse.HeaderMap{}, false
}
