package migrations

import (
	"context"
	"fmt"

	scoreboarddb "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/infrastructure/repositories"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			fmt.Println("Creating scoreboard_archives table...")
			if _, err := db.NewCreateTable().Model((*scoreboarddb.ScoreboardArchive)(nil)).IfNotExists().Exec(ctx); err != nil {
				return fmt.Errorf("failed to create scoreboard_archives table: %w", err)
			}
			fmt.Println("scoreboard_archives table created successfully!")
			return nil
		},
		func(ctx context.Context, db *bun.DB) error {
			fmt.Println("Dropping scoreboard_archives table...")
			if _, err := db.NewDropTable().Model((*scoreboarddb.ScoreboardArchive)(nil)).IfExists().Cascade().Exec(ctx); err != nil {
				return fmt.Errorf("failed to drop scoreboard_archives table: %w", err)
			}
			fmt.Println("scoreboard_archives table dropped successfully!")
			return nil
		},
	)
}
