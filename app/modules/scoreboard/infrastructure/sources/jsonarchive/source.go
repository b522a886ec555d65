package jsonarchive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	scoreboarddomain "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/domain"
	scoretypes "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/domain/types"
)

// BlobStore persists encoded archives by key.
type BlobStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

// Source serves a previously exported scoreboard.
type Source struct {
	store  BlobStore
	key    string
	logger *slog.Logger

	mu      sync.RWMutex
	archive *Archive
}

// New loads the archive stored under key.
func New(ctx context.Context, store BlobStore, key string, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Source{store: store, key: key, logger: logger}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// FromArchive serves an in-memory archive. Reload is a no-op without a store.
func FromArchive(a *Archive) *Source {
	return &Source{archive: a, logger: slog.Default()}
}

// Reload re-reads the archive. On failure the previous data is kept.
func (s *Source) Reload(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	data, err := s.store.Load(ctx, s.key)
	if err != nil {
		return scoretypes.NewOperationFailed("load archive "+s.key, err)
	}
	archive, err := Decode(bytes.NewReader(data))
	if err != nil {
		return scoretypes.NewOperationFailed("load archive "+s.key, err)
	}

	s.mu.Lock()
	s.archive = archive
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Loaded scoreboard archive",
		"key", s.key,
		"teams", len(archive.Summary.TeamList),
		"details", len(archive.Teams),
	)
	return nil
}

// Save encodes a and writes it to store under key.
func Save(ctx context.Context, store BlobStore, key string, a *Archive) error {
	var buf bytes.Buffer
	if err := EncodeGzip(&buf, a); err != nil {
		return err
	}
	if err := store.Save(ctx, key, buf.Bytes()); err != nil {
		return fmt.Errorf("save archive %s: %w", key, err)
	}
	return nil
}

func (s *Source) GetScoreboard(_ context.Context, filter scoretypes.ScoreboardFilterInfo) (*scoretypes.CompleteScoreboardSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scoreboarddomain.ApplyFilter(s.archive.Summary, filter)
}

func (s *Source) GetDetails(_ context.Context, team scoretypes.TeamID) (*scoretypes.ScoreDetails, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	details, ok := s.archive.Teams[team]
	if !ok || details == nil {
		return nil, scoretypes.InvalidArgumentf("team %s is not in the archive", team)
	}
	return details.Clone(), nil
}

func (s *Source) Round() scoretypes.CompetitionRound {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.archive.Round
}

func (s *Source) Metadata() scoretypes.Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scoretypes.Metadata{
		Kind:                             scoretypes.SourceKindJSONArchive,
		SupportsInexpensiveDetailQueries: true,
		StaticSummaryLine:                fmt.Sprintf("Archived scoreboard from %s", s.archive.Summary.SnapshotTimestamp.Format("2006-01-02 15:04 MST")),
		FormattingOptions: scoretypes.ScoreFormattingOptions{
			TimeDisplay:   scoretypes.TimeDisplayHoursMinutes,
			NumberDisplay: scoretypes.NumberDisplayInteger,
		},
	}
}

// Archive returns a copy of the loaded archive.
func (s *Source) Archive() *Archive {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := &Archive{
		Summary: s.archive.Summary.Clone(),
		Teams:   make(map[scoretypes.TeamID]*scoretypes.ScoreDetails, len(s.archive.Teams)),
		Round:   s.archive.Round,
	}
	for id, d := range s.archive.Teams {
		out.Teams[id] = d.Clone()
	}
	return out
}
