package cmd

import (
	"errors"

	"github.com/urfave/cli/v2"

	"huddle/config"
	"huddle/session"
)

// resolveSessionConfig merges the optional TOML config file with the
// command line flags. Flags win.
func resolveSessionConfig(ctx *cli.Context) (session.Config, error) {
	cfg := session.Config{
		Hosts:        ctx.StringSlice("host"),
		SessionID:    ctx.String("session"),
		AuthIdentity: ctx.String("identity"),
		IdentityDir:  ctx.String("identity-dir"),
		UserAgent:    ctx.String("user-agent"),
		Compress:     ctx.Bool("compress"),
	}

	if path := ctx.String("config"); path != "" {
		fileCfg, err := config.LoadConfig(path)
		if err != nil {
			return session.Config{}, err
		}
		if len(cfg.Hosts) == 0 {
			cfg.Hosts = fileCfg.Channel.Hosts
		}
		if cfg.SessionID == "" {
			cfg.SessionID = fileCfg.Session.ID
		}
		if cfg.AuthIdentity == "" {
			cfg.AuthIdentity = fileCfg.Session.Identity
		}
		if cfg.IdentityDir == "" {
			cfg.IdentityDir = fileCfg.Session.IdentityDir
		}
		if !ctx.IsSet("compress") {
			cfg.Compress = fileCfg.Channel.Compress
		}
		if fileCfg.Channel.UserAgent != "" && !ctx.IsSet("user-agent") {
			cfg.UserAgent = fileCfg.Channel.UserAgent
		}
	}

	if len(cfg.Hosts) == 0 {
		return session.Config{}, errors.New("at least one channel host is required")
	}
	if cfg.SessionID == "" {
		return session.Config{}, errors.New("a session id is required")
	}

	return cfg, nil
}
