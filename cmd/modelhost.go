package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/codetutor/internal/ui/theme"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Locate the local model host and check that it is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		explicit, _ := cmd.Flags().GetString("ollama-path")

		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx := cmd.Context()
		path, err := rt.ModelHost.Setup(ctx, explicit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, theme.Label.Render("Model host ")+theme.Code.Render(path))

		backend, err := rt.Streamer(ctx)
		if err != nil {
			return err
		}
		models, err := backend.ListModels(ctx)
		if err != nil {
			rt.Host.Warn(fmt.Sprintf("the model host is not reachable: %v", err))
			rt.Host.Info("Start it with `" + path + " serve` and run setup again.")
			return nil
		}
		fmt.Fprintln(out, theme.Pass.Render(fmt.Sprintf("Model host is running with %d model(s) installed.", len(models))))
		return nil
	},
}

var installCmd = &cobra.Command{
	Use:   "install <model[:params]> [params]",
	Short: "Download a model to the local model host",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		model := args[0]
		var params string
		if len(args) == 2 {
			params = args[1]
		}
		if strings.TrimSpace(model) == "" {
			return fmt.Errorf("model name is empty")
		}

		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		return rt.ModelHost.Install(cmd.Context(), model, params)
	},
}

func init() {
	setupCmd.Flags().String("ollama-path", "", "Path to the ollama binary (default: search PATH)")
}
