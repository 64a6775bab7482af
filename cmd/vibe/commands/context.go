package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bartekus/vibe/internal/guard"
	"github.com/bartekus/vibe/internal/scanner"
)

type contextOutput struct {
	*scanner.RepoContext
	SkillID   string   `json:"skill_id,omitempty"`
	Protected []string `json:"protected_files,omitempty"`
}

// newContextCmd returns the `vibe context` command.
func newContextCmd(v *viper.Viper) *cobra.Command {
	var (
		asJSON   bool
		skillRef string
	)
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Summarize the repository for skill authoring",
		Long: `Summarize the repository: top-level files, package.json scripts and
dependencies, and the start of the README. With --skill, also list the files
covered by that skill's deny_globs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := repoRoot(v)
			if err != nil {
				return err
			}
			scn := scanner.New(root)
			rc, err := scn.Context(cmd.Context())
			if err != nil {
				return err
			}
			res := contextOutput{RepoContext: rc}

			if skillRef != "" {
				spec, err := loadSpec(v, root, skillRef)
				if err != nil {
					return err
				}
				res.SkillID = spec.ID
				if spec.AllowedPaths != nil {
					files, err := scn.Files(cmd.Context())
					if err != nil {
						return err
					}
					res.Protected = guard.Protected(files, spec.AllowedPaths.DenyGlobs)
				}
			}

			if asJSON {
				return writeJSON(cmd, res)
			}
			printContext(cmd, res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	cmd.Flags().StringVar(&skillRef, "skill", "", "spec file or installed skill whose deny_globs to apply")
	return cmd
}

func printContext(cmd *cobra.Command, res contextOutput) {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Repository: %s (%d files)\n", res.Root, res.FileCount)
	_, _ = fmt.Fprintf(out, "Root files: %s\n", strings.Join(res.RootFiles, ", "))
	if pkg := res.Package; pkg != nil {
		if pkg.Name != "" {
			_, _ = fmt.Fprintf(out, "Package: %s\n", pkg.Name)
		}
		for _, name := range sortedNames(pkg.Scripts) {
			_, _ = fmt.Fprintf(out, "  script %s: %s\n", name, pkg.Scripts[name])
		}
		_, _ = fmt.Fprintf(out, "Dependencies: %s\n", strings.Join(sortedNames(pkg.Dependencies), ", "))
		_, _ = fmt.Fprintf(out, "Dev dependencies: %s\n", strings.Join(sortedNames(pkg.DevDependencies), ", "))
	}
	if res.ReadmePreview != "" {
		_, _ = fmt.Fprintf(out, "README:\n%s\n", res.ReadmePreview)
	}
	if res.SkillID != "" {
		_, _ = fmt.Fprintf(out, "Protected by %s: %d files\n", res.SkillID, len(res.Protected))
		for _, f := range res.Protected {
			_, _ = fmt.Fprintf(out, "  - %s\n", f)
		}
	}
}

func sortedNames(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
