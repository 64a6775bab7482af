package commands

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/bartekus/vibe/internal/projectroot"
	"github.com/bartekus/vibe/internal/sandbox"
)

// Configuration keys. Each is also read from VIBE_<KEY>.
const (
	keyConfig    = "config"
	keyRepo      = "repo"
	keyLogLevel  = "log_level"
	keyLogFormat = "log_format"
	keyTimeout   = "timeout"
	keyShell     = "shell"
	keyStateDir  = "state_dir"
	keySkillsDir = "skills_dir"
	keyDBPath    = "db_path"
	keyEnforce   = "enforce"
)

const (
	defaultStateDir  = ".vibe/run"
	defaultSkillsDir = ".vibe/skills"
	defaultDBPath    = ".vibe/sessions.db"
)

func newConfig() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("VIBE")
	v.AutomaticEnv()

	v.SetDefault(keyLogLevel, "warn")
	v.SetDefault(keyLogFormat, "text")
	v.SetDefault(keyTimeout, sandbox.DefaultTimeout)
	v.SetDefault(keyStateDir, defaultStateDir)
	v.SetDefault(keySkillsDir, defaultSkillsDir)
	v.SetDefault(keyDBPath, defaultDBPath)
	v.SetDefault(keyEnforce, false)
	return v
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) {
	for key, flag := range keys {
		_ = v.BindPFlag(key, fs.Lookup(flag))
	}
}

// readConfig loads the config file if one exists. A missing file is not an error.
func readConfig(v *viper.Viper) error {
	if file := v.GetString(keyConfig); file != "" {
		v.SetConfigFile(file)
		return v.ReadInConfig()
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./.vibe")
	v.AddConfigPath("$HOME/.vibe")

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	return err
}

func repoRoot(v *viper.Viper) (string, error) {
	if repo := v.GetString(keyRepo); repo != "" {
		return filepath.Abs(repo)
	}
	return projectroot.FindOr(".")
}

// repoPath anchors a configured path at the repository root unless it is absolute.
func repoPath(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

func stepTimeout(v *viper.Viper) time.Duration {
	if d := v.GetDuration(keyTimeout); d > 0 {
		return d
	}
	return sandbox.DefaultTimeout
}

// enforced reports whether guard findings block the command. An explicit
// --enforce flag wins over configuration.
func enforced(cmd *cobra.Command, v *viper.Viper) bool {
	if f := cmd.Flags().Lookup("enforce"); f != nil && f.Changed {
		b, _ := cmd.Flags().GetBool("enforce")
		return b
	}
	return v.GetBool(keyEnforce)
}
