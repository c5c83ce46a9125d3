package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/codetutor/internal/chat"
	"github.com/abhisek/codetutor/internal/study"
	"github.com/abhisek/codetutor/internal/ui/theme"
)

var chatCmd = &cobra.Command{
	Use:   "chat [question]",
	Short: "Ask the tutor for help with the current lesson",
	Long: "Ask the tutor a question. With a question the answer is printed and the command " +
		"exits; without one a conversation starts. Press Ctrl+C to stop a reply, Ctrl+D to leave.",
	RunE: func(cmd *cobra.Command, args []string) error {
		modelFlag, _ := cmd.Flags().GetString("model")

		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx := cmd.Context()
		if _, err := loadSession(cmd, rt); err != nil {
			var inc *study.InconsistentStateError
			if !errors.As(err, &inc) {
				return err
			}
		}
		session, err := rt.Chat(ctx)
		if err != nil {
			return err
		}

		model := rt.DefaultModel()
		if modelFlag != "" {
			model = chat.ParseModel(modelFlag)
		}
		if model.IsZero() {
			return errors.New("no model selected; pass --model name:params")
		}

		out := cmd.OutOrStdout()
		if len(args) > 0 {
			return ask(ctx, out, session, strings.Join(args, " "), model)
		}
		return converse(ctx, cmd.InOrStdin(), out, session, model)
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models installed on the model host",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		session, err := rt.Chat(cmd.Context())
		if err != nil {
			return err
		}
		models, err := session.Models(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(models) == 0 {
			fmt.Fprintln(out, "No models installed.")
			fmt.Fprintln(out, theme.Hint.Render("Run `codetutor install <model:params>` to add one."))
			return nil
		}
		def := rt.DefaultModel()
		for _, m := range models {
			marker := "  "
			if m == def {
				marker = "* "
			}
			fmt.Fprintln(out, marker+m.String())
		}
		return nil
	},
}

// ask streams one reply. Ctrl+C stops the reply but not the process.
func ask(ctx context.Context, out io.Writer, session *chat.Session, prompt string, model chat.Model) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	err := session.Send(ctx, prompt, model, func(text string) {
		fmt.Fprint(out, text)
	}, nil)
	fmt.Fprintln(out)

	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(out, theme.Hint.Render("(stopped)"))
		return nil
	}
	return err
}

func converse(ctx context.Context, in io.Reader, out io.Writer, session *chat.Session, model chat.Model) error {
	fmt.Fprintln(out, theme.Hint.Render("Chatting with "+model.String()+". Ctrl+D to leave."))
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, theme.Label.Render("you> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		prompt := strings.TrimSpace(scanner.Text())
		if prompt == "" {
			continue
		}
		fmt.Fprint(out, theme.Label.Render("tutor> "))
		if err := ask(ctx, out, session, prompt, model); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintln(out, theme.Failure.Render(err.Error()))
		}
	}
}

func init() {
	chatCmd.Flags().StringP("model", "m", "", "Model to use as name:params (default from the provider model setting)")
}
