package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"huddle/channel"
	"huddle/session"
)

func joinCmd() *cli.Command {
	return &cli.Command{
		Name:  "join",
		Usage: "Join a session and tail its events to the command line",
		Description: `Joins a live session as a participant and prints every inbound
event as a JSON object on a single line. Use a tool like jq to process
the output.

Prints all other log messages to stderr.

The core channel is fire-and-forget with no automatic reconnection; a
dropped connection tears the session down. With --rejoin this command
creates a fresh session with exponential backoff instead of exiting,
re-requesting a full snapshot each time.`,
		Flags: append(sessionFlags(),
			&cli.BoolFlag{
				Name:    "rejoin",
				Usage:   "Rejoin with backoff when the connection drops",
				EnvVars: []string{"HUDDLE_REJOIN"},
			},
		),
		Action: func(ctx *cli.Context) error {
			// Keep stdout clean for the event stream
			log.SetOutput(os.Stderr)

			cfg, err := resolveSessionConfig(ctx)
			if err != nil {
				return err
			}
			cfg.Observer = printEvent

			interrupt := make(chan os.Signal, 1)
			signal.Notify(interrupt, os.Interrupt)

			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = time.Second
			bo.MaxInterval = 30 * time.Second
			bo.MaxElapsedTime = 0 // Never stop retrying

			rejoin := ctx.Bool("rejoin")

			for {
				s, joinErr := session.Join(ctx.Context, cfg)
				if joinErr != nil {
					if !rejoin {
						return joinErr
					}
					log.Errorf("Join failed: %v", joinErr)
				} else {
					bo.Reset()
					if done := tail(s, interrupt); done {
						return nil
					}
					if !rejoin {
						return errors.New("connection to session lost")
					}
				}

				select {
				case <-interrupt:
					return nil
				case <-time.After(bo.NextBackOff()):
					log.Info("Rejoining session")
				}
			}
		},
	}
}

// tail blocks until the user interrupts (true) or the connection drops
// (false). Either way the session is closed on return.
func tail(s *session.Session, interrupt chan os.Signal) bool {
	defer s.Close()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-interrupt:
			log.Info("Leaving session")
			return true
		case <-ticker.C:
			if s.Status() == channel.StatusDisconnected {
				log.Warn("Connection to session lost")
				return false
			}
		}
	}
}

func printEvent(eventType channel.EventType, event any) {
	// Print as single JSON string on a single line
	line := struct {
		Event channel.EventType `json:"event"`
		Data  any               `json:"data"`
	}{Event: eventType, Data: event}

	if data, err := json.Marshal(line); err == nil {
		fmt.Println(string(data))
	}
}
