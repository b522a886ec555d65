package scoreboardservice

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	scoreboarddomain "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/domain"
	scoretypes "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/domain/types"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultMaxCachedTeamDetails          = 1000
	DefaultMaxTeamLifespan               = 2 * time.Minute
	DefaultMaxCompleteScoreboardLifespan = 45 * time.Second

	// sweepLifespanMultiple is the background sweep period in units of MaxTeamLifespan.
	sweepLifespanMultiple = 5

	cacheTeam       = "team"
	cacheScoreboard = "scoreboard"
)

// CacheOptions tunes a CachingSource. Zero fields take the defaults.
type CacheOptions struct {
	MaxCachedTeamDetails          int
	MaxTeamLifespan               time.Duration
	MaxCompleteScoreboardLifespan time.Duration

	// SweepInterval overrides the background sweep period. Negative disables the sweep.
	SweepInterval time.Duration

	Clock Clock
}

// DefaultCacheOptions returns the production cache settings.
func DefaultCacheOptions() CacheOptions {
	return CacheOptions{}.withDefaults()
}

func (o CacheOptions) withDefaults() CacheOptions {
	if o.MaxCachedTeamDetails <= 0 {
		o.MaxCachedTeamDetails = DefaultMaxCachedTeamDetails
	}
	if o.MaxTeamLifespan <= 0 {
		o.MaxTeamLifespan = DefaultMaxTeamLifespan
	}
	if o.MaxCompleteScoreboardLifespan <= 0 {
		o.MaxCompleteScoreboardLifespan = DefaultMaxCompleteScoreboardLifespan
	}
	if o.SweepInterval == 0 {
		o.SweepInterval = sweepLifespanMultiple * o.MaxTeamLifespan
	}
	if o.Clock == nil {
		o.Clock = realClock{}
	}
	return o
}

type teamCacheEntry struct {
	details *scoretypes.ScoreDetails
	stored  time.Time
	hits    atomic.Int64
}

type scoreboardCacheEntry struct {
	summary *scoretypes.CompleteScoreboardSummary
	stored  time.Time
}

// CachingSource decorates a Source with a bounded team-details cache and a
// master/derived scoreboard cache.
//
// Team lookups that hit a fresh entry never take teamLock; only misses do.
// A sweep running concurrently with such a hit may rank the entry using a
// hit count that is about to be incremented. The only effect is a slightly
// stale eviction order: eviction removes expired or cold entries and never
// invalidates a value a reader already holds.
type CachingSource struct {
	backend Source
	opts    CacheOptions
	logger  *slog.Logger
	metrics Metrics

	teams     sync.Map // scoretypes.TeamID -> *teamCacheEntry
	teamCount atomic.Int64
	teamLock  *semaphore.Weighted

	scoreboardLock *semaphore.Weighted
	scoreboards    map[scoretypes.ScoreboardFilterInfo]scoreboardCacheEntry

	ctx       context.Context
	cancel    context.CancelFunc
	sweepDone chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewCachingSource wraps backend. The returned cache owns backend and closes it on Close.
func NewCachingSource(backend Source, opts CacheOptions, logger *slog.Logger, metrics Metrics) *CachingSource {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NewNoop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &CachingSource{
		backend:        backend,
		opts:           opts.withDefaults(),
		logger:         logger,
		metrics:        metrics,
		teamLock:       semaphore.NewWeighted(1),
		scoreboardLock: semaphore.NewWeighted(1),
		scoreboards:    make(map[scoretypes.ScoreboardFilterInfo]scoreboardCacheEntry),
		ctx:            ctx,
		cancel:         cancel,
		sweepDone:      make(chan struct{}),
	}
	if c.opts.SweepInterval > 0 {
		go c.sweepLoop(c.opts.SweepInterval)
	} else {
		close(c.sweepDone)
	}
	return c
}

// Backend returns the decorated source.
func (c *CachingSource) Backend() Source { return c.backend }

// Options returns the effective cache settings.
func (c *CachingSource) Options() CacheOptions { return c.opts }

// Round passes through to the backend.
func (c *CachingSource) Round() scoretypes.CompetitionRound { return c.backend.Round() }

// Metadata passes through to the backend, tagged as a cache.
func (c *CachingSource) Metadata() scoretypes.Metadata {
	md := c.backend.Metadata()
	md.Kind = scoretypes.SourceKindCache
	return md
}

// CachedTeamCount returns the number of team entries currently held.
func (c *CachingSource) CachedTeamCount() int {
	return int(c.teamCount.Load())
}

// GetDetails returns a team's details, calling the backend at most once per
// team at a time.
func (c *CachingSource) GetDetails(ctx context.Context, team scoretypes.TeamID) (*scoretypes.ScoreDetails, error) {
	if details, ok := c.lookupTeam(team); ok {
		c.metrics.RecordCacheHit(ctx, cacheTeam)
		return details, nil
	}

	if err := c.teamLock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.teamLock.Release(1)

	// Another caller may have filled the entry while we waited.
	if details, ok := c.lookupTeam(team); ok {
		c.metrics.RecordCacheHit(ctx, cacheTeam)
		return details, nil
	}
	c.metrics.RecordCacheMiss(ctx, cacheTeam)

	if _, present := c.teams.Load(team); !present && c.CachedTeamCount()+1 > c.opts.MaxCachedTeamDetails {
		c.ensureCapacityLocked(ctx, 1)
	}

	details, err := c.backend.GetDetails(ctx, team)
	if err != nil {
		return nil, err
	}
	if details == nil {
		return nil, scoretypes.NewOperationFailed("get details "+team.String(), errNilResult)
	}

	entry := &teamCacheEntry{details: details.Clone(), stored: c.opts.Clock.Now()}
	entry.hits.Store(1)
	if _, replaced := c.teams.Swap(team, entry); !replaced {
		c.teamCount.Add(1)
	}
	return details, nil
}

func (c *CachingSource) lookupTeam(team scoretypes.TeamID) (*scoretypes.ScoreDetails, bool) {
	v, ok := c.teams.Load(team)
	if !ok {
		return nil, false
	}
	entry := v.(*teamCacheEntry)
	if c.opts.Clock.Now().Sub(entry.stored) >= c.opts.MaxTeamLifespan {
		return nil, false
	}
	entry.hits.Add(1)
	return entry.details.Clone(), true
}

// EnsureCapacity expires stale team entries and, if the cache is still over
// capacity, evicts the coldest entries down to half of MaxCachedTeamDetails.
func (c *CachingSource) EnsureCapacity(ctx context.Context) error {
	if err := c.teamLock.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.teamLock.Release(1)
	c.ensureCapacityLocked(ctx, 0)
	return nil
}

type evictionCandidate struct {
	team scoretypes.TeamID
	age  time.Duration
	rank float64
}

// ensureCapacityLocked must run with teamLock held. incoming is the number of
// entries about to be inserted.
func (c *CachingSource) ensureCapacityLocked(ctx context.Context, incoming int) {
	now := c.opts.Clock.Now()
	lifespan := c.opts.MaxTeamLifespan

	var live []evictionCandidate
	expired := 0
	c.teams.Range(func(key, value any) bool {
		entry := value.(*teamCacheEntry)
		age := now.Sub(entry.stored)
		if age >= lifespan {
			c.teams.Delete(key)
			expired++
			return true
		}
		live = append(live, evictionCandidate{
			team: key.(scoretypes.TeamID),
			age:  age,
			rank: hitRank(entry.hits.Load(), age, lifespan),
		})
		return true
	})
	if expired > 0 {
		c.teamCount.Add(-int64(expired))
		c.metrics.RecordCacheEviction(ctx, "expired", expired)
	}

	if len(live)+incoming <= c.opts.MaxCachedTeamDetails {
		return
	}

	slices.SortFunc(live, func(a, b evictionCandidate) int {
		if a.rank != b.rank {
			if a.rank < b.rank {
				return -1
			}
			return 1
		}
		// Among equally cold entries the older one goes first.
		switch {
		case a.age > b.age:
			return -1
		case a.age < b.age:
			return 1
		}
		return 0
	})

	target := c.opts.MaxCachedTeamDetails / 2
	evict := len(live) - target
	for _, cand := range live[:evict] {
		c.teams.Delete(cand.team)
	}
	c.teamCount.Add(-int64(evict))
	c.metrics.RecordCacheEviction(ctx, "capacity", evict)
	c.logger.DebugContext(ctx, "Evicted cold team details",
		slog.Int("expired", expired),
		slog.Int("evicted", evict),
		slog.Int("remaining", target),
	)
}

// hitRank approximates requests per second over the entry's bounded age.
func hitRank(hits int64, age, lifespan time.Duration) float64 {
	window := math.Min(age.Seconds(), 1.5*lifespan.Seconds())
	if window < 1 {
		window = 1
	}
	return math.Round(20 * float64(hits) / window)
}

// GetScoreboard returns the scoreboard for filter. Filtered views are derived
// from the cached unfiltered master whenever it is fresh.
func (c *CachingSource) GetScoreboard(ctx context.Context, filter scoretypes.ScoreboardFilterInfo) (*scoretypes.CompleteScoreboardSummary, error) {
	if err := c.scoreboardLock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.scoreboardLock.Release(1)

	now := c.opts.Clock.Now()
	if entry, ok := c.freshScoreboard(filter, now); ok {
		c.metrics.RecordCacheHit(ctx, cacheScoreboard)
		return entry.summary.Clone(), nil
	}

	master, ok := c.freshScoreboard(scoretypes.NoFilter, now)
	if !ok {
		c.metrics.RecordCacheMiss(ctx, cacheScoreboard)
		summary, err := c.backend.GetScoreboard(ctx, scoretypes.NoFilter)
		if err != nil {
			return nil, err
		}
		if summary == nil {
			return nil, scoretypes.NewOperationFailed("get scoreboard", errNilResult)
		}
		c.pruneScoreboards(now)
		master = scoreboardCacheEntry{summary: summary.Clone(), stored: now}
		c.scoreboards[scoretypes.NoFilter] = master
		if filter.IsNoFilter() {
			return summary, nil
		}
	} else {
		c.metrics.RecordCacheHit(ctx, cacheScoreboard)
	}

	derived, err := scoreboarddomain.ApplyFilter(master.summary, filter)
	if err != nil {
		return nil, err
	}
	c.scoreboards[filter] = scoreboardCacheEntry{summary: derived, stored: master.stored}
	return derived.Clone(), nil
}

func (c *CachingSource) freshScoreboard(filter scoretypes.ScoreboardFilterInfo, now time.Time) (scoreboardCacheEntry, bool) {
	entry, ok := c.scoreboards[filter]
	if !ok || now.Sub(entry.stored) >= c.opts.MaxCompleteScoreboardLifespan {
		return scoreboardCacheEntry{}, false
	}
	return entry, true
}

func (c *CachingSource) pruneScoreboards(now time.Time) {
	for filter, entry := range c.scoreboards {
		if now.Sub(entry.stored) >= c.opts.MaxCompleteScoreboardLifespan {
			delete(c.scoreboards, filter)
		}
	}
}

func (c *CachingSource) sweepLoop(interval time.Duration) {
	defer close(c.sweepDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if err := c.EnsureCapacity(c.ctx); err != nil {
				return
			}
		}
	}
}

// Close stops the background sweep and closes the backend. It is safe to call more than once.
func (c *CachingSource) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		<-c.sweepDone
		c.closeErr = closeSource(c.backend)
	})
	return c.closeErr
}

var _ Composite = (*CachingSource)(nil)
