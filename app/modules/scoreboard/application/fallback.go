package scoreboardservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	scoreboarddomain "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/domain"
	scoretypes "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/domain/types"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

// DefaultBackendLifespan is how long a selected backend is trusted before it is re-validated.
const DefaultBackendLifespan = time.Minute

// FullSearch asks ResolveBackend to consider every factory.
const FullSearch = -1

// ErrSourceClosed is returned by a FallbackSource after Close.
var ErrSourceClosed = scoretypes.NewOperationFailed("score retrieval", errors.New("source closed"))

// BackendFactory constructs and initializes a candidate backend.
type BackendFactory func(ctx context.Context) (Source, error)

// CacheConfigurator adjusts the cache settings for the backend at index.
type CacheConfigurator func(index int, backend Source, opts *CacheOptions)

// FallbackOptions tunes a FallbackSource.
type FallbackOptions struct {
	BackendLifespan time.Duration
	CacheOptions    CacheOptions
	ConfigureCache  CacheConfigurator
	Clock           Clock
}

type backendState struct {
	cache        *CachingSource
	index        int
	resolutionID string
}

// FallbackSource serves queries from the highest-priority backend that
// currently produces a valid scoreboard, re-resolving as backends degrade
// or recover.
type FallbackSource struct {
	factories []BackendFactory
	opts      FallbackOptions
	telemetry
	publisher message.Publisher

	resolveLock *semaphore.Weighted
	state       atomic.Pointer[backendState]
	lastRefresh atomic.Int64 // unix nanoseconds
	stale       atomic.Bool
	healing     atomic.Bool

	ctx       context.Context
	cancel    context.CancelFunc
	bgMu      sync.Mutex
	closed    bool
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// NewFallbackSource creates a coordinator over factories, in priority order.
// No backend is resolved until the first query or an explicit ResolveBackend.
// publisher may be nil.
func NewFallbackSource(
	factories []BackendFactory,
	opts FallbackOptions,
	logger *slog.Logger,
	tracer trace.Tracer,
	metrics Metrics,
	publisher message.Publisher,
) (*FallbackSource, error) {
	if len(factories) == 0 {
		return nil, scoretypes.InvalidArgumentf("at least one backend factory is required")
	}
	if opts.BackendLifespan <= 0 {
		opts.BackendLifespan = DefaultBackendLifespan
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.CacheOptions.Clock == nil {
		opts.CacheOptions.Clock = opts.Clock
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &FallbackSource{
		factories:   factories,
		opts:        opts,
		telemetry:   newTelemetry("FallbackSource", logger, tracer, metrics),
		publisher:   publisher,
		resolveLock: semaphore.NewWeighted(1),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Backend returns the cache around the selected backend, or nil before the first resolution.
func (f *FallbackSource) Backend() Source {
	if st := f.state.Load(); st != nil {
		return st.cache
	}
	return nil
}

// SelectedIndex returns the factory index of the selected backend, or -1.
func (f *FallbackSource) SelectedIndex() int {
	if st := f.state.Load(); st != nil {
		return st.index
	}
	return -1
}

// LastRefresh returns when the selected backend was last validated.
func (f *FallbackSource) LastRefresh() time.Time {
	n := f.lastRefresh.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Round reports the round of the selected backend.
func (f *FallbackSource) Round() scoretypes.CompetitionRound {
	if st := f.state.Load(); st != nil {
		return st.cache.Round()
	}
	return scoretypes.RoundUnknown
}

// Metadata reports the selected backend's metadata, tagged as a fallback.
func (f *FallbackSource) Metadata() scoretypes.Metadata {
	md := scoretypes.Metadata{}
	if st := f.state.Load(); st != nil {
		md = st.cache.Metadata()
	}
	md.Kind = scoretypes.SourceKindFallback
	return md
}

// GetScoreboard serves filter from the selected backend. An invalid result is
// still returned, but schedules a background re-resolution.
func (f *FallbackSource) GetScoreboard(ctx context.Context, filter scoretypes.ScoreboardFilterInfo) (*scoretypes.CompleteScoreboardSummary, error) {
	return withTelemetry(f.telemetry, ctx, "GetScoreboard", filter.String(), func(ctx context.Context) (*scoretypes.CompleteScoreboardSummary, error) {
		st, err := f.current(ctx)
		if err != nil {
			return nil, err
		}

		summary, err := st.cache.GetScoreboard(ctx, filter)
		if err != nil {
			f.noteBackendError(ctx, st, err)
			return nil, err
		}

		if !scoreboarddomain.IsValidSummary(summary, filter) {
			f.logger.WarnContext(ctx, "Selected backend returned an invalid scoreboard; re-resolving in background",
				slog.Int("backend_index", st.index),
				slog.String("filter", filter.String()),
			)
			f.resolveInBackground()
		}
		return summary, nil
	})
}

// GetDetails serves team from the selected backend.
func (f *FallbackSource) GetDetails(ctx context.Context, team scoretypes.TeamID) (*scoretypes.ScoreDetails, error) {
	return withTelemetry(f.telemetry, ctx, "GetDetails", team.String(), func(ctx context.Context) (*scoretypes.ScoreDetails, error) {
		st, err := f.current(ctx)
		if err != nil {
			return nil, err
		}

		details, err := st.cache.GetDetails(ctx, team)
		if err != nil {
			f.noteBackendError(ctx, st, err)
			return nil, err
		}
		return details, nil
	})
}

// ResolveBackend probes factories [0, upperBound) in order and installs the
// first one that returns a valid unfiltered scoreboard. FullSearch probes all
// of them and fails with *scoretypes.AggregateError when none validates. A
// partial search that finds nothing keeps the current backend if it still
// validates and otherwise falls through to a full search.
func (f *FallbackSource) ResolveBackend(ctx context.Context, upperBound int) error {
	_, err := withTelemetry(f.telemetry, ctx, "ResolveBackend", strconv.Itoa(upperBound), func(ctx context.Context) (struct{}, error) {
		if f.isClosed() {
			return struct{}{}, ErrSourceClosed
		}
		if err := f.resolveLock.Acquire(ctx, 1); err != nil {
			return struct{}{}, err
		}
		defer f.resolveLock.Release(1)
		return struct{}{}, f.resolveLocked(ctx, upperBound)
	})
	return err
}

// current returns the selected backend, resolving or refreshing it first if needed.
func (f *FallbackSource) current(ctx context.Context) (*backendState, error) {
	if f.isClosed() {
		return nil, ErrSourceClosed
	}
	st := f.state.Load()
	if st != nil && !f.needsRefresh() {
		return st, nil
	}

	if err := f.resolveLock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer f.resolveLock.Release(1)

	st = f.state.Load()
	switch {
	case st == nil:
		if err := f.resolveLocked(ctx, FullSearch); err != nil {
			return nil, err
		}
	case f.needsRefresh():
		if err := f.resolveLocked(ctx, st.index); err != nil {
			return nil, err
		}
	}
	return f.state.Load(), nil
}

func (f *FallbackSource) isClosed() bool {
	f.bgMu.Lock()
	defer f.bgMu.Unlock()
	return f.closed
}

func (f *FallbackSource) needsRefresh() bool {
	if f.stale.Load() {
		return true
	}
	return f.opts.Clock.Now().After(f.LastRefresh().Add(f.opts.BackendLifespan))
}

func (f *FallbackSource) markRefreshed() {
	f.lastRefresh.Store(f.opts.Clock.Now().UnixNano())
	f.stale.Store(false)
}

// resolveLocked must run with resolveLock held.
func (f *FallbackSource) resolveLocked(ctx context.Context, upperBound int) error {
	limit := len(f.factories)
	if upperBound >= 0 && upperBound < limit {
		limit = upperBound
	}

	var probeErrs []error
	for i := 0; i < limit; i++ {
		candidate, err := f.probe(ctx, i)
		if err != nil {
			f.logger.InfoContext(ctx, "Backend candidate rejected",
				slog.Int("backend_index", i),
				slog.Any("error", err),
			)
			probeErrs = append(probeErrs, fmt.Errorf("backend %d: %w", i, err))
			continue
		}
		if err := f.install(ctx, i, candidate); err != nil {
			return err
		}
		f.metrics.RecordBackendResolution(ctx, "selected")
		return nil
	}

	if upperBound < 0 {
		f.logger.ErrorContext(ctx, "No score backend could be resolved",
			slog.Int("candidates", len(f.factories)),
			slog.Any("errors", probeErrs),
		)
		f.metrics.RecordBackendResolution(ctx, "failed")
		return &scoretypes.AggregateError{Message: "no score backend could be resolved", Errors: probeErrs}
	}

	if st := f.state.Load(); st != nil && f.stillValid(ctx, st) {
		f.markRefreshed()
		f.metrics.RecordBackendResolution(ctx, "kept")
		return nil
	}
	return f.resolveLocked(ctx, FullSearch)
}

// stillValid checks the selected backend directly, bypassing its caches.
func (f *FallbackSource) stillValid(ctx context.Context, st *backendState) bool {
	summary, err := st.cache.Backend().GetScoreboard(ctx, scoretypes.NoFilter)
	if err != nil {
		f.logger.WarnContext(ctx, "Selected backend failed re-validation",
			slog.Int("backend_index", st.index),
			slog.Any("error", err),
		)
		return false
	}
	return scoreboarddomain.IsValidSummary(summary, scoretypes.NoFilter)
}

func (f *FallbackSource) probe(ctx context.Context, index int) (src Source, err error) {
	defer func() {
		if r := recover(); r != nil {
			src, err = nil, fmt.Errorf("panic while probing: %v", r)
		}
	}()

	src, err = f.factories[index](ctx)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, errNilResult
	}

	summary, err := src.GetScoreboard(ctx, scoretypes.NoFilter)
	if err == nil && !scoreboarddomain.IsValidSummary(summary, scoretypes.NoFilter) {
		err = errors.New("backend returned an invalid scoreboard")
	}
	if err != nil {
		if closeErr := closeSource(src); closeErr != nil {
			f.logger.WarnContext(ctx, "Failed to close rejected backend", slog.Any("error", closeErr))
		}
		return nil, err
	}
	return src, nil
}

// install publishes src as the selected backend. Once Close has started the
// candidate is closed instead, so no cache outlives the coordinator.
func (f *FallbackSource) install(ctx context.Context, index int, src Source) error {
	f.bgMu.Lock()
	if f.closed {
		f.bgMu.Unlock()
		if err := closeSource(src); err != nil {
			f.logger.WarnContext(ctx, "Failed to close backend resolved after shutdown", slog.Any("error", err))
		}
		return ErrSourceClosed
	}

	opts := f.opts.CacheOptions
	if f.opts.ConfigureCache != nil {
		f.opts.ConfigureCache(index, src, &opts)
	}
	next := &backendState{
		cache:        NewCachingSource(src, opts, f.logger, f.metrics),
		index:        index,
		resolutionID: uuid.NewString(),
	}
	prev := f.state.Swap(next)
	f.markRefreshed()
	f.bgMu.Unlock()

	f.logger.InfoContext(ctx, "Score backend selected",
		slog.Int("backend_index", index),
		slog.String("kind", src.Metadata().Kind.String()),
		slog.String("resolution_id", next.resolutionID),
	)

	prevIndex := -1
	if prev != nil {
		prevIndex = prev.index
		if err := prev.cache.Close(); err != nil {
			f.logger.WarnContext(ctx, "Failed to close replaced backend", slog.Any("error", err))
		}
	}
	if prevIndex != index {
		f.publishBackendChanged(ctx, prevIndex, next)
	}
	return nil
}

func (f *FallbackSource) publishBackendChanged(ctx context.Context, prevIndex int, st *backendState) {
	if f.publisher == nil {
		return
	}
	msg, err := newBackendChangedMessage(BackendChangedPayload{
		ResolutionID:  st.resolutionID,
		PreviousIndex: prevIndex,
		Index:         st.index,
		Kind:          st.cache.Backend().Metadata().Kind.String(),
		Round:         int(st.cache.Round()),
		ChangedAt:     f.opts.Clock.Now().UTC(),
	})
	if err == nil {
		err = f.publisher.Publish(BackendChangedTopic, msg)
	}
	if err != nil {
		f.logger.WarnContext(ctx, "Failed to publish backend change", slog.Any("error", err))
	}
}

// noteBackendError marks the backend stale unless the caller asked for something that does not exist.
func (f *FallbackSource) noteBackendError(ctx context.Context, st *backendState, err error) {
	if errors.Is(err, scoretypes.ErrInvalidArgument) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	if f.state.Load() == st {
		f.stale.Store(true)
	}
	f.logger.WarnContext(ctx, "Selected backend failed; marking stale",
		slog.Int("backend_index", st.index),
		slog.Any("error", err),
	)
}

func (f *FallbackSource) resolveInBackground() {
	if !f.healing.CompareAndSwap(false, true) {
		return
	}

	f.bgMu.Lock()
	defer f.bgMu.Unlock()
	if f.closed {
		f.healing.Store(false)
		return
	}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer f.healing.Store(false)
		if err := f.ResolveBackend(f.ctx, FullSearch); err != nil && f.ctx.Err() == nil {
			f.logger.ErrorContext(f.ctx, "Background backend re-resolution failed", slog.Any("error", err))
		}
	}()
}

// Close waits for background re-resolution and closes the selected backend.
// Queries and resolutions that finish afterwards fail with ErrSourceClosed.
// It is safe to call more than once.
func (f *FallbackSource) Close() error {
	f.closeOnce.Do(func() {
		f.bgMu.Lock()
		f.closed = true
		f.bgMu.Unlock()

		f.cancel()
		f.wg.Wait()

		if st := f.state.Load(); st != nil {
			f.closeErr = st.cache.Close()
		}
	})
	return f.closeErr
}

var _ Composite = (*FallbackSource)(nil)
