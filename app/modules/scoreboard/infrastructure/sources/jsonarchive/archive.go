package jsonarchive

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	scoretypes "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/domain/types"
	"golang.org/x/sync/errgroup"
)

// Archive is the interchange format shared by every archive store.
type Archive struct {
	Summary *scoretypes.CompleteScoreboardSummary          `json:"summary"`
	Teams   map[scoretypes.TeamID]*scoretypes.ScoreDetails `json:"teams"`
	Round   scoretypes.CompetitionRound                    `json:"round"`
}

// Encode writes a as JSON.
func Encode(w io.Writer, a *Archive) error {
	if a == nil || a.Summary == nil {
		return scoretypes.InvalidArgumentf("archive has no summary")
	}
	enc := json.NewEncoder(w)
	if err := enc.Encode(a); err != nil {
		return fmt.Errorf("encode archive: %w", err)
	}
	return nil
}

// EncodeGzip writes a as gzip-compressed JSON.
func EncodeGzip(w io.Writer, a *Archive) error {
	zw := gzip.NewWriter(w)
	if err := Encode(zw, a); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

var gzipMagic = []byte{0x1f, 0x8b}

// Decode reads an archive, transparently decompressing gzip input.
func Decode(r io.Reader) (*Archive, error) {
	br := bufio.NewReader(r)
	if magic, err := br.Peek(len(gzipMagic)); err == nil && bytes.Equal(magic, gzipMagic) {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open gzip archive: %w", err)
		}
		defer zr.Close()
		return decodeJSON(zr)
	}
	return decodeJSON(br)
}

func decodeJSON(r io.Reader) (*Archive, error) {
	var a Archive
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode archive: %w", err)
	}
	if a.Summary == nil {
		return nil, errors.New("decode archive: missing summary")
	}
	if a.Teams == nil {
		a.Teams = make(map[scoretypes.TeamID]*scoretypes.ScoreDetails)
	}
	return &a, nil
}

// ScoreSource is the read side of any score source.
type ScoreSource interface {
	GetScoreboard(ctx context.Context, filter scoretypes.ScoreboardFilterInfo) (*scoretypes.CompleteScoreboardSummary, error)
	GetDetails(ctx context.Context, team scoretypes.TeamID) (*scoretypes.ScoreDetails, error)
	Round() scoretypes.CompetitionRound
}

// DefaultExportConcurrency bounds concurrent detail requests during Export.
const DefaultExportConcurrency = 4

// ExportOptions configures Export.
type ExportOptions struct {
	Concurrency int
	// SkipMissingDetails drops teams whose details report ErrInvalidArgument
	// instead of failing the export.
	SkipMissingDetails bool
	Logger             *slog.Logger
}

// Export snapshots src into an archive: the unfiltered scoreboard plus the
// details of every team on it.
func Export(ctx context.Context, src ScoreSource, opts ExportOptions) (*Archive, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultExportConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	summary, err := src.GetScoreboard(ctx, scoretypes.NoFilter)
	if err != nil {
		return nil, fmt.Errorf("export scoreboard: %w", err)
	}

	archive := &Archive{
		Summary: summary,
		Teams:   make(map[scoretypes.TeamID]*scoretypes.ScoreDetails, len(summary.TeamList)),
		Round:   src.Round(),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for _, entry := range summary.TeamList {
		id := entry.TeamID
		g.Go(func() error {
			details, err := src.GetDetails(gctx, id)
			if err != nil {
				if opts.SkipMissingDetails && errors.Is(err, scoretypes.ErrInvalidArgument) {
					logger.WarnContext(gctx, "Skipping team without details",
						"team", id.String(),
						"error", err,
					)
					return nil
				}
				return fmt.Errorf("export details for %s: %w", id, err)
			}
			mu.Lock()
			archive.Teams[id] = details
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Exported scoreboard archive",
		"teams", len(summary.TeamList),
		"details", len(archive.Teams),
		"round", archive.Round.String(),
	)
	return archive, nil
}
