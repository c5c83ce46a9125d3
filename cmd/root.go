package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/abhisek/codetutor/internal/app"
	"github.com/abhisek/codetutor/internal/config"
	"github.com/abhisek/codetutor/internal/host"
	"github.com/abhisek/codetutor/internal/study"
)

var rootCmd = &cobra.Command{
	Use:   "codetutor",
	Short: "Interactive programming lessons in your terminal",
	Long: "codetutor stages short programming lessons into a folder, checks your solutions " +
		"by running them, and offers a tutor you can chat with while you work.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		config.LoadDotEnv()
		slog.SetDefault(config.NewLogger(os.Stderr, false, verbose))
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusCmd.RunE(cmd, args)
	},
}

// Execute runs the root command. Errors are printed once here.
func Execute() (err error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "codetutor crashed: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if err = rootCmd.ExecuteContext(context.Background()); err != nil {
		printError(err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides CODETUTOR_DB env var)")
	rootCmd.PersistentFlags().String("workspace", "", "Folder you are working in (default: current directory)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolP("yes", "y", false, "Answer yes to confirmation prompts")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(endCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(instructionsCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(versionCmd)
}

// newRuntime loads configuration, applies flag overrides, and builds the
// application. The caller must Close it.
func newRuntime(cmd *cobra.Command) (*app.Runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	dbPath, _ := cmd.Flags().GetString("db")

	term := host.NewTerminal()
	term.AssumeYes, _ = cmd.Flags().GetBool("yes")

	return app.New(cfg, app.Options{DBPath: dbPath, Host: term})
}

// workspaceFlag returns --workspace, or the working directory.
func workspaceFlag(cmd *cobra.Command) (string, error) {
	if dir, _ := cmd.Flags().GetString("workspace"); dir != "" {
		return dir, nil
	}
	return os.Getwd()
}

// loadSession reconciles the persisted session with the active folder.
// Every command that works on an open session calls this first.
func loadSession(cmd *cobra.Command, rt *app.Runtime) (*study.Status, error) {
	dir, err := workspaceFlag(cmd)
	if err != nil {
		return nil, err
	}
	return rt.Study.Load(cmd.Context(), dir)
}

func printError(err error) {
	switch study.Kind(err) {
	case study.KindUserPrecondition:
		fmt.Fprintln(os.Stderr, err)
	case study.KindEnvironmentMissing:
		fmt.Fprintln(os.Stderr, "Missing dependency:", err)
	case study.KindFixtureInconsistent:
		var inc *study.InconsistentStateError
		if errors.As(err, &inc) {
			// The host has already shown it.
			return
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
}
