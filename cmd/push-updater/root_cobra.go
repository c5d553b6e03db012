package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pushchain/push-updater/internal/config"
	"github.com/pushchain/push-updater/internal/exitcodes"
	ui "github.com/pushchain/push-updater/internal/ui"
)

// Version information - set via -ldflags during build
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// rootCmd wires the CLI surface using Cobra. Persistent flags are
// applied to the loaded config in loadCfg().
var rootCmd = &cobra.Command{
	Use:           "push-updater",
	Short:         "Push Updater",
	Long:          "Check for, fetch and apply over-the-air updates of an application binary.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.Configure(ui.Settings{
			NoColor: flagNoColor,
			NoEmoji: flagNoEmoji,
			Quiet:   flagQuiet,
		})

		// lipgloss and glamour honour NO_COLOR
		if flagNoColor {
			_ = os.Setenv("NO_COLOR", "1")
		}
	},
}

var (
	flagHome           string
	flagConfig         string
	flagOutput         string
	flagQuiet          bool
	flagDebug          bool
	flagNoColor        bool
	flagNoEmoji        bool
	flagYes            bool
	flagNonInteractive bool
	flagDev            bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagHome, "home", "", "State directory (overrides env)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default <home>/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "text", "Output format: json|yaml|text")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Quiet mode: only warnings and errors")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "d", false, "Mirror the updater log to stderr")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable ANSI colors")
	rootCmd.PersistentFlags().BoolVar(&flagNoEmoji, "no-emoji", false, "Disable emoji output")
	rootCmd.PersistentFlags().BoolVarP(&flagYes, "yes", "y", false, "Answer Restart to the restart prompt")
	rootCmd.PersistentFlags().BoolVar(&flagNonInteractive, "non-interactive", false, "Never prompt; unanswered prompts count as Later")
	rootCmd.PersistentFlags().BoolVar(&flagDev, "dev", false, "Development mode: skip the remote update query")

	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newRollbackCmd())
	rootCmd.AddCommand(newLogsCmd())

	// Grouped help for the root command only.
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd != rootCmd {
			fmt.Fprintln(os.Stdout, cmd.UsageString())
			return
		}
		// Help runs before PersistentPreRun, so configure colors here
		c := ui.NewColorConfig()
		c.Enabled = c.Enabled && !flagNoColor
		c.EmojiEnabled = c.EmojiEnabled && !flagNoEmoji
		w := os.Stdout

		const cmdWidth = 24

		fmt.Fprintln(w, c.Header(" Push Updater "))
		fmt.Fprintln(w, c.Description(cmd.Long))
		fmt.Fprintln(w, c.Separator(50))
		fmt.Fprintln(w)

		fmt.Fprintln(w, c.SubHeader("USAGE"))
		fmt.Fprintf(w, "  %s <command> [flags]\n", "push-updater")
		fmt.Fprintln(w)

		fmt.Fprintln(w, c.SubHeader("Updates"))
		fmt.Fprintln(w, c.FormatCommandAligned("check", "Check for an update and offer a restart", cmdWidth))
		fmt.Fprintln(w, c.FormatCommandAligned("watch", "Check on a schedule and on push events", cmdWidth))
		fmt.Fprintln(w, c.FormatCommandAligned("rollback", "Restore the previous binary", cmdWidth))
		fmt.Fprintln(w)

		fmt.Fprintln(w, c.SubHeader("Inspect"))
		fmt.Fprintln(w, c.FormatCommandAligned("status", "Show last check, pending update and backup", cmdWidth))
		fmt.Fprintln(w, c.FormatCommandAligned("history", "List recent update checks", cmdWidth))
		fmt.Fprintln(w, c.FormatCommandAligned("logs", "Show or follow the updater log", cmdWidth))
		fmt.Fprintln(w)

		fmt.Fprintln(w, c.SubHeader("Other"))
		fmt.Fprintln(w, c.FormatCommandAligned("version", "Show version", cmdWidth))
		fmt.Fprintln(w, c.FormatCommandAligned("completion", "Generate shell completion", cmdWidth))
		fmt.Fprintln(w)

		fmt.Fprintln(w, c.SubHeader("Global flags"))
		fmt.Fprint(w, rootCmd.PersistentFlags().FlagUsages())
	})
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		code := exitcodes.CodeForError(err)
		var se silentErr
		if !errors.As(err, &se) {
			ui.PrintError(os.Stderr, ui.ErrorMessage{Problem: err.Error(), Actions: errorActions(code)})
		}
		os.Exit(code)
	}
}

// loadCfg resolves config from defaults, file and env, then applies the
// persistent flags. Dev builds default to development mode.
func loadCfg() (config.Config, error) {
	opts := []config.Option{config.WithDefaultDevMode(Version == "dev")}
	if flagHome != "" {
		opts = append(opts, config.WithHomeDir(flagHome))
	}
	if flagConfig != "" {
		opts = append(opts, config.WithConfigFile(flagConfig))
	}
	if flagDev {
		opts = append(opts, config.WithOverrides(map[string]any{config.KeyDevMode: true}))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		return config.Config{}, exitcodes.WrapError(exitcodes.InvalidArgs, "invalid configuration", err)
	}
	if cfg.CurrentVersion == "" {
		cfg.CurrentVersion = Version
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, exitcodes.WrapError(exitcodes.InvalidArgs, "invalid configuration", err)
	}
	return cfg, nil
}
