// File: cmd/mdssboot/install.go
// Brief: `mdssboot install` — run the bootstrap plan with checkpoints.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/mdssboot/internal/bootstrap"
	"github.com/example/mdssboot/internal/envfile"
	"github.com/example/mdssboot/internal/logging"
)

// profileWriter appends export lines to the shell profile file with
// the exact-line idempotency guard.
type profileWriter struct {
	path string
}

func (w profileWriter) Append(lines []string) (int, error) {
	return envfile.Append(w.path, lines)
}

func newInstallCommand(opts *globalOptions) *cobra.Command {
	var (
		only       []string
		skip       []string
		dryRun     bool
		planOnly   bool
		verbose    bool
		envProfile = defaultEnvProfile
		runID      string
	)
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the stack, skipping steps that are already checkpointed",
		Long: `Install runs every step of the resolved plan in dependency order.
A step whose checkpoint marker exists is skipped. A step without a
marker starts from an empty target directory; on success its env
exports are appended to the profile file and its marker is written.
The first failure aborts the run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, source, err := loadPlan(opts)
			if err != nil {
				return err
			}
			p, dropped, err := bootstrap.Select(p, only, skip)
			if err != nil {
				return err
			}
			if len(dropped) > 0 {
				fmt.Fprintf(os.Stderr, "warning: also skipping dependents: %s\n", strings.Join(dropped, ", "))
			}
			if planOnly {
				return bootstrap.PrintPlanTable(os.Stdout, p)
			}

			logger, err := logging.New(opts.logLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			runOpts := bootstrap.RunOptions{
				Plan:   p,
				DryRun: dryRun,
				RunID:  strings.TrimSpace(runID),
				Logger: logger,
				Observers: []bootstrap.RunEventObserver{
					bootstrap.NewConsole(os.Stdout, len(p.Order), bootstrap.ConsoleOptions{
						Verbose: verbose,
						Color:   !opts.noColor && !color.NoColor,
					}),
				},
			}
			// The store is consulted in dry-run too, so the narration
			// skips exactly the steps a real install would skip.
			runOpts.Store = openStore(p.Root)
			if !dryRun {
				runOpts.EnvWriter = profileWriter{path: envProfile}
				journal, err := bootstrap.OpenJournal(p.Root, false)
				if err != nil {
					return fmt.Errorf("open journal: %w", err)
				}
				defer journal.Close()
				runOpts.Journal = journal
			}
			fmt.Fprintf(os.Stdout, "Manifest: %s\n", source)
			return bootstrap.Run(cmd.Context(), runOpts)
		},
	}
	cmd.Flags().StringSliceVar(&only, "only", nil, "Run only these steps plus their dependencies (repeat or comma-separate)")
	cmd.Flags().StringSliceVar(&skip, "skip", nil, "Skip these steps and everything that depends on them")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Describe what would run without touching the filesystem")
	cmd.Flags().BoolVar(&planOnly, "plan-only", false, "Print the resolved plan and exit")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Stream subprocess output for every action")
	cmd.Flags().StringVar(&envProfile, "env-profile", envProfile, "Profile file that receives export lines")
	cmd.Flags().StringVar(&runID, "run-id", "", "Override the generated run identifier")
	if err := cmd.Flags().MarkHidden("run-id"); err != nil {
		cobra.CheckErr(err)
	}
	return cmd
}
