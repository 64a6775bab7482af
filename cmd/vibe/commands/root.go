// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Vibe - turns skill specifications into reproducible, sandboxed runs against a
repository, and keeps a record of every run.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bartekus/vibe/cmd/vibe/internal/clierr"
	"github.com/bartekus/vibe/internal/logger"
)

// NewRootCmd constructs the vibe root Cobra command.
func NewRootCmd() *cobra.Command {
	version := os.Getenv("VIBE_VERSION")
	if version == "" {
		version = "0.0.0-dev"
	}

	v := newConfig()
	cmd := &cobra.Command{
		Use:           "vibe",
		Short:         "Vibe - run skill specifications in a sandbox",
		Long:          "Vibe validates skill specifications, executes their steps against a repository and records the outcome.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setup(cmd, v)
		},
	}

	pf := cmd.PersistentFlags()
	pf.String("config", "", "config file (default ./.vibe/config.yaml, then $HOME/.vibe/config.yaml)")
	pf.String("repo", "", "repository root (default: nearest ancestor with .vibe, .git, go.mod or package.json)")
	pf.String("log-level", "warn", "diagnostic log level")
	pf.String("log-format", "text", "diagnostic log format (text|json)")
	pf.String("skills-dir", defaultSkillsDir, "directory of installed skills, relative to the repository")
	pf.String("db-path", defaultDBPath, "session database, relative to the repository")
	bindFlags(v, pf, map[string]string{
		keyConfig:    "config",
		keyRepo:      "repo",
		keyLogLevel:  "log-level",
		keyLogFormat: "log-format",
		keySkillsDir: "skills-dir",
		keyDBPath:    "db-path",
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of Vibe",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Vibe version %s\n", version)
		},
	})
	cmd.AddCommand(newContextCmd(v))
	cmd.AddCommand(newRunCmd(v))
	cmd.AddCommand(newSkillCmd(v))
	cmd.AddCommand(newSessionsCmd(v))

	return cmd
}

func setup(cmd *cobra.Command, v *viper.Viper) error {
	if err := readConfig(v); err != nil {
		return clierr.Wrap(clierr.CodeFailure, "reading config", err)
	}
	if err := logger.SetLogLevel(v.GetString(keyLogLevel)); err != nil {
		return clierr.Wrap(clierr.CodeFailure, "invalid log level", err)
	}
	logger.SetLogFormat(v.GetString(keyLogFormat))
	logger.SetLogOutput(cmd.ErrOrStderr())

	ctx := logger.WithLogger(cmd.Context(), logger.L.WithField("command", cmd.CommandPath()))
	cmd.SetContext(ctx)
	return nil
}
