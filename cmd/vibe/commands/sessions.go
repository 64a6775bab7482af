package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bartekus/vibe/internal/session"
)

func newSessionsCmd(v *viper.Viper) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect recorded runs",
	}
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "output as JSON")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSessions(cmd, v, func(store session.Store) error {
				sessions, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					return writeJSON(cmd, map[string]any{"sessions": sessions})
				}
				if len(sessions) == 0 {
					_, _ = fmt.Fprintln(out, "No sessions recorded.")
					return nil
				}
				for _, s := range sessions {
					_, _ = fmt.Fprintf(out, "%s  %-24s %-12s %-7s %s\n",
						s.ID, s.SkillID, s.Status, outcome(s), s.CreatedAt.Local().Format(time.DateTime))
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one session with its run report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSessions(cmd, v, func(store session.Store) error {
				s, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, s)
				}
				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "Session: %s\nSkill: %s\nRepository: %s\nStatus: %s\nDry run: %t\nOutcome: %s\n",
					s.ID, s.SkillID, s.RepoRoot, s.Status, s.DryRun, outcome(s))
				if s.Report != nil {
					p := newPrinter(out, cmd.ErrOrStderr())
					_, _ = fmt.Fprintln(out)
					for _, e := range s.Report.Logs {
						p.Log(e)
					}
					p.Summary(s.Report)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSessions(cmd, v, func(store session.Store) error {
				return store.Delete(cmd.Context(), args[0])
			})
		},
	})
	return cmd
}

func withSessions(cmd *cobra.Command, v *viper.Viper, fn func(session.Store) error) error {
	root, err := repoRoot(v)
	if err != nil {
		return err
	}
	dbPath := repoPath(root, v.GetString(keyDBPath))
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		// Nothing has been recorded yet; avoid creating the database on reads.
		return fn(session.NewMemoryStore())
	}
	store, err := session.OpenSQLite(cmd.Context(), dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func outcome(s *session.Session) string {
	switch {
	case s.Status != session.StatusCompleted:
		return "-"
	case s.Success:
		return "pass"
	default:
		return "fail"
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
