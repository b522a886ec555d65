package scoreboarddb

import (
	"time"

	"github.com/uptrace/bun"
)

// ScoreboardArchive is one exported scoreboard snapshot.
type ScoreboardArchive struct {
	bun.BaseModel `bun:"table:scoreboard_archives,alias:sa"`
	Key           string    `bun:"key,pk,notnull,type:varchar(128)"`
	Data          []byte    `bun:"data,notnull,type:bytea"`
	Size          int       `bun:"size,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
