package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"huddle/archive"
	"huddle/channel"
	"huddle/config"
	"huddle/models"
	"huddle/server"
	"huddle/session"
)

func bridgeCmd() *cli.Command {
	return &cli.Command{
		Name:  "bridge",
		Usage: "Expose a joined session as a local HTTP API",
		Description: `Joins a live session and serves its state over HTTP: the ranked
feed, the current poll and the connection status as JSON, the action
entry points as POST endpoints, and an SSE stream of live events.

With --archive, ended polls are written to a local SQLite database and
the feed is snapshotted periodically, so results survive the session's
single-slot poll model.`,
		Flags: append(sessionFlags(),
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   3000,
				Usage:   "Port to listen on",
				EnvVars: []string{"HUDDLE_PORT"},
			},
			&cli.StringFlag{
				Name:    "archive",
				Usage:   "SQLite database file for archiving. Empty disables archiving",
				EnvVars: []string{"HUDDLE_ARCHIVE_DB"},
			},
			&cli.DurationFlag{
				Name:    "snapshot-interval",
				Value:   5 * time.Minute,
				Usage:   "How often to archive a feed snapshot",
				EnvVars: []string{"HUDDLE_SNAPSHOT_INTERVAL"},
			},
		),
		Action: func(ctx *cli.Context) error {
			cfg, err := resolveSessionConfig(ctx)
			if err != nil {
				return err
			}

			database := ctx.String("archive")
			if database == "" && ctx.String("config") != "" {
				if fileCfg, err := config.LoadConfig(ctx.String("config")); err == nil {
					database = fileCfg.Archive.Database
				}
			}

			bc := server.NewBroadcaster()

			s, err := session.Join(ctx.Context, cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			server.WireBroadcast(s, bc)

			bridgeCtx, cancel := context.WithCancel(ctx.Context)
			defer cancel()

			var arch *archive.Store
			if database != "" {
				if err := archive.Migrate(database); err != nil {
					return err
				}
				arch, err = archive.Open(database)
				if err != nil {
					return err
				}
				defer arch.Close()

				wireArchive(bridgeCtx, s, arch, ctx.Duration("snapshot-interval"))
			}

			app := server.Server(&server.ServerConfig{
				Session:     s,
				Broadcaster: bc,
				Archive:     arch,
			})

			// Graceful shutdown
			c := make(chan os.Signal, 1)
			signal.Notify(c, os.Interrupt)

			go func() {
				<-c
				fmt.Println("Gracefully shutting down...")
				app.ShutdownWithTimeout(60 * time.Second)
			}()

			fmt.Println("Starting bridge...")
			if err := app.Listen(fmt.Sprintf(":%d", ctx.Int("port"))); err != nil {
				return err
			}

			bc.Shutdown()
			fmt.Println("Done!")
			return nil
		},
	}
}

// wireArchive persists poll results as they end and snapshots the feed
// on a timer. The session's own handlers were registered first, so by
// the time this one fires the tracker already holds the final tallies.
func wireArchive(ctx context.Context, s *session.Session, arch *archive.Store, interval time.Duration) {
	s.Subscribe(channel.EventPollEnded, func(event any) {
		evt, ok := event.(models.PollEndedEvent)
		if !ok {
			return
		}
		poll := s.Poll()
		if poll == nil || poll.ID != evt.PollID {
			return
		}
		if err := arch.SavePollResult(ctx, s.ID(), *poll); err != nil {
			log.WithFields(log.Fields{
				"poll":  evt.PollID,
				"error": err,
			}).Error("Error archiving poll result")
		}
	})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := arch.SaveFeedSnapshot(ctx, s.ID(), s.Feed()); err != nil {
					log.WithFields(log.Fields{
						"error": err,
					}).Error("Error archiving feed snapshot")
				}
			}
		}
	}()
}
