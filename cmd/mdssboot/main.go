// File: cmd/mdssboot/main.go
// Brief: Root command wiring, config/env binding, signal-aware execution.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/example/mdssboot/internal/bootstrap"
)

const defaultEnvProfile = "~/.mdssboot/profile.sh"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rootCmd := newRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	handleError(err)
	if err != nil {
		os.Exit(1)
	}
}

// globalOptions are shared by every subcommand through pointer wiring,
// so viper/env overrides land in one place.
type globalOptions struct {
	dir      string
	manifest string
	logLevel string
	noColor  bool
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{
		dir:      "~/mdss-stack",
		logLevel: "info",
	}
	cmd := &cobra.Command{
		Use:           "mdssboot",
		Short:         "Idempotent installer for the MDO simulation software stack",
		Long: `mdssboot installs the MDO analysis and optimization toolchain
(PETSc, CGNS, ADflow, pyGeo, IDWarp, OpenMDAO and friends) from a
declarative manifest. Completed steps are checkpointed, so a rerun
after a failure resumes where the previous run stopped.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.dir, "dir", "d", opts.dir, "Install root for the software stack")
	cmd.PersistentFlags().StringVarP(&opts.manifest, "manifest", "m", "", "Path to bootstrap.yaml (default: <dir>/bootstrap.yaml, falling back to the built-in manifest)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", opts.logLevel, "Log level for mdssboot output (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	installCmd := newInstallCommand(opts)
	planCmd := newPlanCommand(opts)
	statusCmd := newStatusCommand(opts)
	runsCmd := newRunsCommand(opts)
	resetCmd := newResetCommand(opts)
	envCmd := newEnvCommand(opts)
	initCmd := newInitCommand(opts)
	docsCmd := newDocsCommand()
	cmd.AddCommand(
		installCmd,
		planCmd,
		statusCmd,
		runsCmd,
		resetCmd,
		envCmd,
		initCmd,
		docsCmd,
		newVersionCommand(),
	)
	cmd.Example = `  # Install the full stack under ~/mdss-stack
  mdssboot install

  # Rebuild just ADflow and whatever it depends on
  mdssboot reset adflow && mdssboot install --only adflow

  # Inspect the resolved step order without running anything
  mdssboot plan`
	bindViper(cmd, installCmd, planCmd, statusCmd, runsCmd, resetCmd, envCmd, initCmd)
	return cmd
}

func bindViper(commands ...*cobra.Command) {
	if len(commands) == 0 {
		return
	}
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetEnvPrefix("MDSSBOOT")
	v.AutomaticEnv()
	configFile := os.Getenv("MDSSBOOT_CONFIG")
	configureConfigFile(v, configFile)

	cobra.OnInitialize(func() {
		for _, cmd := range commands {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				cobra.CheckErr(err)
			}
			if err := v.BindPFlags(cmd.PersistentFlags()); err != nil {
				cobra.CheckErr(err)
			}
		}
		if err := readConfigFile(v, configFile != ""); err != nil {
			cobra.CheckErr(err)
		}
		for _, cmd := range commands {
			flagSets := []*pflag.FlagSet{cmd.Flags(), cmd.PersistentFlags()}
			for _, fs := range flagSets {
				fs.VisitAll(func(f *pflag.Flag) {
					if f.Changed {
						return
					}
					if !v.IsSet(f.Name) {
						return
					}
					val := fmt.Sprintf("%v", v.Get(f.Name))
					if val != "" {
						_ = f.Value.Set(val)
					}
				})
			}
		}
	})
}

func configureConfigFile(v *viper.Viper, explicitPath string) {
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
		return
	}
	v.SetConfigName("config")
	for _, dir := range configSearchDirs() {
		v.AddConfigPath(dir)
	}
}

func readConfigFile(v *viper.Viper, strict bool) error {
	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if errors.As(err, &cfgErr) && !strict {
			return nil
		}
		return err
	}
	return nil
}

func configSearchDirs() []string {
	added := make(map[string]struct{})
	var dirs []string
	add := func(path string) {
		if path == "" {
			return
		}
		if _, ok := added[path]; ok {
			return
		}
		added[path] = struct{}{}
		dirs = append(dirs, path)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		add(filepath.Join(xdg, "mdssboot"))
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		add(filepath.Join(home, ".config", "mdssboot"))
		add(filepath.Join(home, ".mdssboot"))
	}
	return dirs
}

func handleError(err error) {
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return
	}
	message := err.Error()
	var stepErr *bootstrap.StepError
	switch {
	case errors.Is(err, context.Canceled):
		message = fmt.Sprintf("%s\nHint: the run was interrupted. Rerun 'mdssboot install' to resume from the first unfinished step.", err)
	case errors.As(err, &stepErr):
		message = fmt.Sprintf("%s\nHint: partially-applied changes are not rolled back; manual cleanup may be required. Completed steps are checkpointed, so rerunning 'mdssboot install' retries %q and continues from there.", err, stepErr.Step)
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
}
