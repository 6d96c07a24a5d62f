package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"huddle/archive"
)

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:        "migrate",
		Usage:       "Run archive database migrations",
		Description: `Runs migrations on the archive database. Will create the database if it does not exist.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database",
				Aliases: []string{"d"},
				Value:   "huddle.db",
				Usage:   "SQLite database file location",
				EnvVars: []string{"HUDDLE_ARCHIVE_DB"},
			},
		},
		Action: func(ctx *cli.Context) error {
			database := ctx.String("database")
			fmt.Println("Database configured: ", database)
			return archive.Migrate(database)
		},
	}
}

func rollbackCmd() *cli.Command {
	return &cli.Command{
		Name:        "rollback",
		Usage:       "Rollback archive database migration",
		Description: `Rolls back the last archive database migration`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database",
				Aliases: []string{"d"},
				Value:   "huddle.db",
				Usage:   "SQLite database file location",
				EnvVars: []string{"HUDDLE_ARCHIVE_DB"},
			},
		},
		Action: func(ctx *cli.Context) error {
			database := ctx.String("database")
			fmt.Println("Database configured: ", database)
			return archive.Rollback(database)
		},
	}
}
