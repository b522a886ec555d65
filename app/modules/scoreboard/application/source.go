package scoreboardservice

import (
	"context"
	"errors"
	"io"

	scoretypes "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/domain/types"
)

// Source provides scoreboard data from a single backend.
type Source interface {
	GetScoreboard(ctx context.Context, filter scoretypes.ScoreboardFilterInfo) (*scoretypes.CompleteScoreboardSummary, error)
	GetDetails(ctx context.Context, team scoretypes.TeamID) (*scoretypes.ScoreDetails, error)
	Round() scoretypes.CompetitionRound
	Metadata() scoretypes.Metadata
}

// Composite is a Source that serves its data through another Source.
type Composite interface {
	Source
	Backend() Source
}

// maxCompositionDepth bounds FindBackend on accidentally cyclic chains.
const maxCompositionDepth = 16

// FindBackend walks the composition chain starting at src and returns the
// first source tagged with kind.
func FindBackend(src Source, kind scoretypes.SourceKind) (Source, bool) {
	for depth := 0; src != nil && depth < maxCompositionDepth; depth++ {
		if src.Metadata().Kind == kind {
			return src, true
		}
		composite, ok := src.(Composite)
		if !ok {
			return nil, false
		}
		src = composite.Backend()
	}
	return nil, false
}

// closeSource closes src if it owns resources.
func closeSource(src Source) error {
	if closer, ok := src.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

var errNilResult = errors.New("backend returned no data")
