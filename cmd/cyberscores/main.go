package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard"
	scoreboardservice "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/application"
	scoretypes "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/domain/types"
	"github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/infrastructure/competition"
	scoreboarddb "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/infrastructure/repositories"
	"github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/infrastructure/sources/jsonarchive"
	"github.com/matthewzring/CyberScores-sub000/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"
)

const serviceName = "cyberscores"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      serviceName,
		Usage:     "retrieve CyberPatriot scores from the live scoreboard or archives",
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "path to the configuration file",
				EnvVars: []string{"CYBERSCORES_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			scoreboardCommand(),
			teamCommand(),
			exportCommand(),
			archivesCommand(),
			roundCommand(),
			histogramCommand(),
		},
	}
}

func filterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "division", Usage: "Open, All Service or Middle School"},
		&cli.StringFlag{Name: "tier", Usage: "Platinum, Gold, Silver or Middle School"},
		&cli.StringFlag{Name: "category", Usage: "All Service category"},
		&cli.StringFlag{Name: "location", Usage: "state or country code"},
	}
}

func parseFilter(c *cli.Context) (scoretypes.ScoreboardFilterInfo, error) {
	division, err := scoretypes.ParseDivision(c.String("division"))
	if err != nil {
		return scoretypes.NoFilter, err
	}
	tier, err := scoretypes.ParseTier(c.String("tier"))
	if err != nil {
		return scoretypes.NoFilter, err
	}
	return scoretypes.ScoreboardFilterInfo{
		Division: division,
		Tier:     tier,
		Category: c.String("category"),
		Location: strings.ToUpper(c.String("location")),
	}, nil
}

func newLogger(cfg config.ObservabilityConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewJSONHandler(w, opts)
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler).With("service", serviceName)
	if cfg.Environment != "" {
		logger = logger.With("environment", cfg.Environment)
	}
	return logger
}

// withModule loads the configuration and builds the scoreboard module for one command.
func withModule(c *cli.Context, registry *prometheus.Registry, fn func(cfg *config.Config, m *scoreboard.Module) error) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(cfg.Observability, c.App.ErrWriter)

	m, err := scoreboard.NewScoreboardModule(c.Context, cfg, scoreboard.Deps{
		Logger:   logger,
		Tracer:   otel.Tracer(serviceName),
		Registry: registry,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize scoreboard module: %w", err)
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Error("Failed to close scoreboard module", "error", err)
		}
	}()
	return fn(cfg, m)
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the status API until interrupted",
		Action: func(c *cli.Context) error {
			registry := prometheus.NewRegistry()
			registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			return withModule(c, registry, func(_ *config.Config, m *scoreboard.Module) error {
				m.Run(c.Context, nil)
				return nil
			})
		},
	}
}

func scoreboardCommand() *cli.Command {
	return &cli.Command{
		Name:  "scoreboard",
		Usage: "print the scoreboard",
		Flags: append(filterFlags(),
			&cli.IntFlag{Name: "limit", Usage: "show at most this many teams"},
			&cli.BoolFlag{Name: "json", Usage: "print JSON instead of a table"},
		),
		Action: func(c *cli.Context) error {
			filter, err := parseFilter(c)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			return withModule(c, nil, func(_ *config.Config, m *scoreboard.Module) error {
				summary, err := m.Source.GetScoreboard(c.Context, filter)
				if err != nil {
					return err
				}
				if c.Bool("json") {
					return writeJSON(c.App.Writer, summary)
				}
				_, err = io.WriteString(c.App.Writer, renderScoreboard(summary, m.Source.Metadata().FormattingOptions, c.Int("limit")))
				return err
			})
		},
	}
}

func teamCommand() *cli.Command {
	return &cli.Command{
		Name:      "team",
		Usage:     "print a team's details and standing",
		ArgsUsage: "TEAM-ID",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print JSON instead of a table"},
		},
		Action: func(c *cli.Context) error {
			team, err := scoretypes.ParseTeamID(c.Args().First())
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			return withModule(c, nil, func(_ *config.Config, m *scoreboard.Module) error {
				details, err := m.Source.GetDetails(c.Context, team)
				if err != nil {
					return err
				}
				if c.Bool("json") {
					return writeJSON(c.App.Writer, details)
				}
				if _, err := io.WriteString(c.App.Writer, renderDetails(details, m.Source.Metadata().FormattingOptions)); err != nil {
					return err
				}
				rank, err := scoreboardservice.RankAmongPeers(c.Context, m.Source, m.Rules, team)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(c.App.Writer, "Rank %d of %d (%s)\n", rank.Rank, rank.PeerCount, rank.Round)
				return err
			})
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "snapshot the current scoreboard and every team's details into the archive store",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "key", Required: true, Usage: "archive key, e.g. 2019-r1"},
			&cli.IntFlag{Name: "concurrency", Value: jsonarchive.DefaultExportConcurrency},
			&cli.BoolFlag{Name: "skip-missing", Usage: "skip teams whose details are unavailable"},
			&cli.StringFlag{Name: "out", Usage: "also write the gzipped archive to this file"},
		},
		Action: func(c *cli.Context) error {
			return withModule(c, nil, func(cfg *config.Config, m *scoreboard.Module) error {
				logger := newLogger(cfg.Observability, c.App.ErrWriter)
				archive, err := jsonarchive.Export(c.Context, m.Source, jsonarchive.ExportOptions{
					Concurrency:        c.Int("concurrency"),
					SkipMissingDetails: c.Bool("skip-missing"),
					Logger:             logger,
				})
				if err != nil {
					return err
				}

				store := m.Store
				if store == nil {
					var closer io.Closer
					store, closer, err = scoreboard.OpenArchiveStore(c.Context, cfg, logger)
					if err != nil {
						return err
					}
					if closer != nil {
						defer closer.Close()
					}
				}
				if err := jsonarchive.Save(c.Context, store, c.String("key"), archive); err != nil {
					return err
				}

				if path := c.String("out"); path != "" {
					f, err := os.Create(path)
					if err != nil {
						return err
					}
					defer f.Close()
					if err := jsonarchive.EncodeGzip(f, archive); err != nil {
						return err
					}
				}
				_, err = fmt.Fprintf(c.App.Writer, "Exported %d teams to %s\n", len(archive.Teams), c.String("key"))
				return err
			})
		},
	}
}

func archivesCommand() *cli.Command {
	openStore := func(c *cli.Context, fn func(store scoreboarddb.Store) error) error {
		cfg, err := config.LoadConfig(c.String("config"))
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		store, closer, err := scoreboard.OpenArchiveStore(c.Context, cfg, newLogger(cfg.Observability, c.App.ErrWriter))
		if err != nil {
			return err
		}
		if closer != nil {
			defer closer.Close()
		}
		return fn(store)
	}

	return &cli.Command{
		Name:  "archives",
		Usage: "manage stored archives",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list archive keys",
				Action: func(c *cli.Context) error {
					return openStore(c, func(store scoreboarddb.Store) error {
						keys, err := store.List(c.Context)
						if err != nil {
							return err
						}
						for _, key := range keys {
							fmt.Fprintln(c.App.Writer, key)
						}
						return nil
					})
				},
			},
			{
				Name:      "delete",
				Usage:     "delete an archive",
				ArgsUsage: "KEY",
				Action: func(c *cli.Context) error {
					key := c.Args().First()
					if key == "" {
						return cli.Exit("an archive key is required", 2)
					}
					return openStore(c, func(store scoreboarddb.Store) error {
						return store.Delete(c.Context, key)
					})
				},
			},
		},
	}
}

func roundCommand() *cli.Command {
	return &cli.Command{
		Name:      "round",
		Usage:     "show which round is scheduled at a date",
		ArgsUsage: "[DATE]",
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			now := time.Now()
			at := now
			if text := strings.Join(c.Args().Slice(), " "); text != "" {
				at, err = competition.ParseRoundDate(text, now)
				if err != nil {
					return cli.Exit(err.Error(), 2)
				}
			}
			env, err := scoreboard.LoadEnvironment(cfg, now)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(c.App.Writer, "%s: %s\n", at.Format(time.DateTime), env.Rounds.InferRound(at))
			return err
		},
	}
}

func histogramCommand() *cli.Command {
	return &cli.Command{
		Name:  "histogram",
		Usage: "render the score distribution as a PNG",
		Flags: append(filterFlags(),
			&cli.StringFlag{Name: "out", Value: "histogram.png"},
			&cli.IntFlag{Name: "buckets", Value: scoreboardservice.DefaultHistogramBuckets},
		),
		Action: func(c *cli.Context) error {
			filter, err := parseFilter(c)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			return withModule(c, nil, func(_ *config.Config, m *scoreboard.Module) error {
				summary, err := m.Source.GetScoreboard(c.Context, filter)
				if err != nil {
					return err
				}
				png, err := scoreboardservice.RenderHistogram(summary, c.Int("buckets"), m.Source.Metadata().FormattingOptions, scoreboardservice.DefaultChartPalette)
				if err != nil {
					return err
				}
				if err := os.WriteFile(c.String("out"), png, 0o644); err != nil {
					return err
				}
				_, err = fmt.Fprintf(c.App.Writer, "Wrote %s (%d teams)\n", c.String("out"), len(summary.TeamList))
				return err
			})
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
