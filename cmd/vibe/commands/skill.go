package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bartekus/vibe/cmd/vibe/internal/clierr"
	"github.com/bartekus/vibe/internal/catalog"
	"github.com/bartekus/vibe/internal/guard"
	"github.com/bartekus/vibe/internal/skilldocs"
	"github.com/bartekus/vibe/internal/skills"
	"github.com/bartekus/vibe/internal/skillspec"
)

func newSkillCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skill",
		Short: "Validate, render and install skill specifications",
	}
	cmd.AddCommand(
		newSkillValidateCmd(v),
		newSkillSchemaCmd(),
		newSkillDocsCmd(),
		newSkillInstallCmd(v),
		newSkillListCmd(v),
		newSkillRemoveCmd(v),
	)
	return cmd
}

// readSpecFile loads a specification file, or a built-in skill when path
// names one and no such file exists.
func readSpecFile(path string) (*skillspec.Specification, error) {
	if !isFile(path) {
		if spec, ok := skills.Get(path); ok {
			return spec, nil
		}
	}
	spec, err := skillspec.Load(path)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInvalidSpec, "loading skill", err)
	}
	if err := skillspec.Validate(spec); err != nil {
		return nil, clierr.Wrapf(clierr.CodeInvalidSpec, err, "%s is invalid", path)
	}
	return spec, nil
}

func newSkillValidateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file|builtin-id>",
		Short: "Validate a skill specification and report policy findings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := readSpecFile(args[0])
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
			p.Success(fmt.Sprintf("%s is valid (%d steps)", spec.ID, len(spec.Steps)))
			return nil
		},
	}
	cmd.Flags().Bool("enforce", false, "treat policy findings as errors")
	return cmd
}

func newSkillSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of a skill specification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeJSON(cmd, skillspec.JSONSchema())
		},
	}
}

func newSkillDocsCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "docs <file|builtin-id>",
		Short: "Render SKILL.md, the replay script and the smoke test",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := readSpecFile(args[0])
			if err != nil {
				return err
			}
			dir := outDir
			if dir == "" {
				dir = filepath.Join(filepath.Dir(args[0]), spec.ID)
			}
			files, err := (&skilldocs.Generator{Spec: spec, OutDir: dir}).Generate()
			if err != nil {
				return err
			}
			for _, f := range files {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(dir, filepath.FromSlash(f.Path)))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default <file dir>/<skill_id>)")
	return cmd
}

func skillCatalog(v *viper.Viper) (*catalog.Catalog, error) {
	root, err := repoRoot(v)
	if err != nil {
		return nil, err
	}
	return catalog.New(repoPath(root, v.GetString(keySkillsDir))), nil
}

func newSkillInstallCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "install <file|builtin-id>",
		Short: "Install a skill into the skills directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := readSpecFile(args[0])
			if err != nil {
				return err
			}
			cat, err := skillCatalog(v)
			if err != nil {
				return err
			}
			entry, err := cat.Install(spec)
			if err != nil {
				return err
			}
			newPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(fmt.Sprintf("installed %s to %s", entry.ID, entry.Directory))
			return nil
		},
	}
}

func newSkillListCmd(v *viper.Viper) *cobra.Command {
	var asJSON, builtin bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed skills",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if builtin {
				return listBuiltin(cmd, asJSON)
			}
			cat, err := skillCatalog(v)
			if err != nil {
				return err
			}
			entries, err := cat.Discover()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				if entries == nil {
					entries = []*catalog.Entry{}
				}
				return writeJSON(cmd, map[string]any{"skills": entries})
			}
			if len(entries) == 0 {
				_, _ = fmt.Fprintln(out, "No skills installed.")
				return nil
			}
			for _, e := range entries {
				_, _ = fmt.Fprintf(out, "%-24s %-20s %-7s %s\n", e.ID, e.Invocation, e.RiskLevel, firstLine(e.Description))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&builtin, "builtin", false, "list the built-in skills instead")
	return cmd
}

func listBuiltin(cmd *cobra.Command, asJSON bool) error {
	if asJSON {
		return writeJSON(cmd, map[string]any{"skills": skills.Registry})
	}
	for _, s := range skills.Registry {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%-24s %-20s %-7s %s\n", s.ID, s.Invocation, s.RiskLevel, s.Title)
	}
	return nil
}

func newSkillRemoveCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <skill-id>",
		Short: "Remove an installed skill",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := skillCatalog(v)
			if err != nil {
				return err
			}
			return cat.Remove(args[0])
		},
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
