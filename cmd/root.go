package cmd

import (
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "huddle",
		Usage: "A live conversation and polling session client",
		Description: `Joins live conversation sessions over a websocket channel and keeps
		a vote-ranked feed and the current poll in sync with the server.

		The join command tails a session's events as JSON lines, moderate
		drives moderator actions interactively, and bridge exposes a joined
		session as a local HTTP API with an SSE event stream.

		Flags can generally be set via environment variables, e.g.:

		--host => HUDDLE_HOSTS=wss://live.example.com
		--session => HUDDLE_SESSION=abc123
		`,
		Commands: []*cli.Command{
			joinCmd(),
			moderateCmd(),
			bridgeCmd(),
			migrateCmd(),
			rollbackCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

// sessionFlags is the flag set shared by every command that joins a
// session. Values from --config are used wherever the flag is unset.
func sessionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "host",
			Aliases: []string{"H"},
			Usage:   "Channel endpoint to try, in order. May be repeated",
			EnvVars: []string{"HUDDLE_HOSTS"},
		},
		&cli.StringFlag{
			Name:    "session",
			Aliases: []string{"s"},
			Usage:   "The session id to join",
			EnvVars: []string{"HUDDLE_SESSION"},
		},
		&cli.StringFlag{
			Name:    "identity",
			Usage:   "Authenticated identity. Leave empty to use a persisted anonymous one",
			EnvVars: []string{"HUDDLE_IDENTITY"},
		},
		&cli.StringFlag{
			Name:    "identity-dir",
			Usage:   "Directory for the persisted anonymous identity",
			EnvVars: []string{"HUDDLE_IDENTITY_DIR"},
		},
		&cli.StringFlag{
			Name:    "user-agent",
			Value:   "huddle",
			Usage:   "User agent sent on the channel handshake",
			EnvVars: []string{"HUDDLE_USER_AGENT"},
		},
		&cli.BoolFlag{
			Name:    "compress",
			Usage:   "Accept zstd-compressed channel frames",
			EnvVars: []string{"HUDDLE_COMPRESS"},
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a TOML configuration file",
			EnvVars: []string{"HUDDLE_CONFIG"},
		},
	}
}
