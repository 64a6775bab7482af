package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bartekus/vibe/cmd/vibe/internal/clierr"
	"github.com/bartekus/vibe/internal/catalog"
	"github.com/bartekus/vibe/internal/guard"
	"github.com/bartekus/vibe/internal/logger"
	"github.com/bartekus/vibe/internal/runner"
	"github.com/bartekus/vibe/internal/sandbox"
	"github.com/bartekus/vibe/internal/session"
	"github.com/bartekus/vibe/internal/skills"
	"github.com/bartekus/vibe/internal/skillspec"
)

type runFlags struct {
	dryRun bool
	json   bool
	yes    bool
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run <spec-file|skill-id>",
		Short: "Execute a skill against the repository",
		Long: `Execute every step of a skill in order inside the repository.
A skill is either a specification file or the id of an installed skill.
State is kept in .vibe/run so a stopped run can be resumed. A dry run
leaves that state untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeRun(cmd, v, flags, args[0], false)
		},
	}

	pf := cmd.PersistentFlags()
	pf.BoolVar(&flags.json, "json", false, "print the run report as JSON")
	pf.String("state-dir", defaultStateDir, "directory for run state, relative to the repository")
	pf.Duration("timeout", sandbox.DefaultTimeout, "per-step timeout")
	pf.String("shell", "", "shell that interprets step commands (default bash)")
	pf.Bool("enforce", false, "refuse to run a skill with policy findings")
	pf.BoolVar(&flags.dryRun, "dry-run", false, "log commands without executing them")
	pf.BoolVarP(&flags.yes, "yes", "y", false, "do not ask before steps that require confirmation")
	bindFlags(v, pf, map[string]string{
		keyStateDir: "state-dir",
		keyTimeout:  "timeout",
		keyShell:    "shell",
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "resume <spec-file|skill-id>",
		Short: "Resume from the step that stopped the last run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeRun(cmd, v, flags, args[0], true)
		},
	})
	cmd.AddCommand(newRunReportCmd(v, &flags))
	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Clear run state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := stateStore(v)
			if err != nil {
				return err
			}
			return store.Reset()
		},
	})
	return cmd
}

func stateStore(v *viper.Viper) (*runner.StateStore, string, error) {
	root, err := repoRoot(v)
	if err != nil {
		return nil, "", err
	}
	return runner.NewStateStore(repoPath(root, v.GetString(keyStateDir))), root, nil
}

// loadSpec resolves ref as a specification file, then an installed skill,
// then a built-in skill.
func loadSpec(v *viper.Viper, root, ref string) (*skillspec.Specification, error) {
	var (
		spec *skillspec.Specification
		err  error
	)
	if isFile(ref) {
		spec, err = skillspec.Load(ref)
	} else {
		spec, err = catalog.New(repoPath(root, v.GetString(keySkillsDir))).Load(ref)
		if errors.Is(err, catalog.ErrNotFound) || errors.Is(err, catalog.ErrInvalidID) {
			builtin, ok := skills.Get(ref)
			if !ok {
				return nil, clierr.Newf(clierr.CodeInvalidSpec, "%s is neither a file nor an installed or built-in skill", ref)
			}
			spec, err = builtin, nil
		}
	}
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInvalidSpec, "loading skill", err)
	}
	if err := skillspec.Validate(spec); err != nil {
		return nil, clierr.Wrap(clierr.CodeInvalidSpec, "invalid skill", err)
	}
	return spec, nil
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func executeRun(cmd *cobra.Command, v *viper.Viper, flags runFlags, ref string, resume bool) error {
	store, root, err := stateStore(v)
	if err != nil {
		return err
	}
	spec, err := loadSpec(v, root, ref)
	if err != nil {
		return err
	}

	p := newPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr())
	if findings := guard.Check(spec); len(findings) > 0 {
		if enforced(cmd, v) {
			return clierr.Wrap(clierr.CodePolicy, "policy violations", guard.Enforce(spec))
		}
		p.Findings(findings)
	}

	if !flags.dryRun && !flags.yes {
		if err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), spec); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := logger.G(ctx).WithField("skill", spec.ID)

	opts := runner.Options{Timeout: stepTimeout(v), DryRun: flags.dryRun}
	if !flags.json {
		opts.OnLog = p.Log
	}
	r := runner.NewRunner(sandbox.New(sandbox.Options{Shell: v.GetString(keyShell)}), store, opts)

	rec := startSession(ctx, v, root, spec.ID, flags.dryRun)
	defer rec.close()

	var report *runner.RunReport
	if resume {
		report, err = r.Resume(ctx, spec, root)
		if errors.Is(err, runner.ErrNothingToResume) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Nothing to resume.")
			rec.discard(ctx)
			return nil
		}
	} else {
		report, err = r.Run(ctx, spec, root)
	}
	if report == nil {
		rec.discard(ctx)
		return err
	}
	if err != nil {
		log.WithError(err).Warn("run state not saved")
	}
	rec.complete(ctx, report)

	if flags.json {
		if err := writeJSON(cmd, report); err != nil {
			return err
		}
	} else {
		p.Summary(report)
	}

	if !report.Success {
		return clierr.Newf(clierr.CodeFailure, "skill %s failed", spec.ID)
	}
	return nil
}

// confirm asks once before a run that contains steps requiring confirmation.
func confirm(in io.Reader, out io.Writer, spec *skillspec.Specification) error {
	steps := spec.StepsRequiringConfirmation()
	if len(steps) == 0 {
		return nil
	}
	names := make([]string, 0, len(steps))
	for _, st := range steps {
		names = append(names, st.Name)
	}
	_, _ = fmt.Fprintf(out, "These steps require confirmation:\n  - %s\nContinue? [y/N]: ", strings.Join(names, "\n  - "))

	answer, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return nil
	}
	return clierr.New(clierr.CodeFailure, "run aborted")
}

// sessionRecorder writes the session of one run. Store failures are logged
// and never fail the run.
type sessionRecorder struct {
	store session.Store
	sess  *session.Session
}

func startSession(ctx context.Context, v *viper.Viper, root, skillID string, dryRun bool) *sessionRecorder {
	rec := &sessionRecorder{}
	store, err := session.OpenSQLite(ctx, repoPath(root, v.GetString(keyDBPath)))
	if err != nil {
		logger.G(ctx).WithError(err).Warn("session recording disabled")
		return rec
	}
	rec.store = store
	rec.sess = session.New(skillID, root, dryRun)
	rec.sess.Start()
	rec.put(ctx)
	return rec
}

func (r *sessionRecorder) put(ctx context.Context) {
	if r.store == nil {
		return
	}
	if err := r.store.Put(ctx, r.sess); err != nil {
		logger.G(ctx).WithError(err).Warn("failed to record session")
	}
}

func (r *sessionRecorder) complete(ctx context.Context, report *runner.RunReport) {
	if r.store == nil {
		return
	}
	r.sess.Complete(report)
	// The run context may already be cancelled.
	r.put(context.WithoutCancel(ctx))
}

func (r *sessionRecorder) discard(ctx context.Context) {
	if r.store == nil {
		return
	}
	if err := r.store.Delete(ctx, r.sess.ID); err != nil {
		logger.G(ctx).WithError(err).Debug("failed to discard session")
	}
}

func (r *sessionRecorder) close() {
	if r.store != nil {
		_ = r.store.Close()
	}
}

func newRunReportCmd(v *viper.Viper, flags *runFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Show last run status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := stateStore(v)
			if err != nil {
				return err
			}
			last, err := store.ReadLastRun()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if flags.json {
				return writeJSON(cmd, last)
			}

			if last == nil {
				_, _ = fmt.Fprintln(out, "No run state found.")
				return nil
			}
			_, _ = fmt.Fprintf(out, "Skill: %s\n", last.SkillID)
			_, _ = fmt.Fprintf(out, "Status: %s\n", last.Status)
			if last.StoppedAt != "" {
				_, _ = fmt.Fprintf(out, "Stopped at: %s\n", last.StoppedAt)
			}
			if len(last.Failed) > 0 {
				_, _ = fmt.Fprintln(out, "Failed:")
				for _, f := range last.Failed {
					_, _ = fmt.Fprintf(out, "  - %s\n", f)
				}
			} else {
				_, _ = fmt.Fprintln(out, "All passed.")
			}
			return nil
		},
	}
}
