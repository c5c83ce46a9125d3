package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/abhisek/codetutor/internal/evaluate"
	"github.com/abhisek/codetutor/internal/study"
	"github.com/abhisek/codetutor/internal/ui/components"
	"github.com/abhisek/codetutor/internal/ui/layout"
	"github.com/abhisek/codetutor/internal/ui/theme"
)

var startCmd = &cobra.Command{
	Use:   "start [folder]",
	Short: "Start a study session in a folder",
	Long: "Start a study session. The folder is created if needed; a folder that already " +
		"holds files is cleared after you confirm. Without a folder you are asked for one.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		language, _ := cmd.Flags().GetString("language")
		var dir string
		if len(args) == 1 {
			dir = components.ExpandHome(args[0])
		}

		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		st, err := rt.Study.Start(cmd.Context(), dir, language)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		printStatus(out, st)
		instructions, err := rt.Study.Instructions(cmd.Context())
		if err == nil {
			printInstructions(out, st.CurrentLesson, instructions)
		}
		fmt.Fprintln(out, theme.Hint.Render("Edit the lesson file, then run `codetutor submit`."))
		return nil
	},
}

var endCmd = &cobra.Command{
	Use:   "end",
	Short: "End the study session (your files are kept)",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		return rt.Study.End(cmd.Context())
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Check your solution to the current lesson",
	Long: "Run the current lesson against its expected output. A passing lesson moves " +
		"you on to the next one unless --no-advance is given.",
	RunE: func(cmd *cobra.Command, args []string) error {
		noAdvance, _ := cmd.Flags().GetBool("no-advance")

		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx := cmd.Context()
		if _, err := loadSession(cmd, rt); err != nil {
			return err
		}
		res, err := rt.Study.Submit(ctx)
		if err != nil {
			return err
		}
		if res.Status != evaluate.Pass || noAdvance {
			return nil
		}

		return advanceAfterPass(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), rt.Study)
	},
}

// advancer is the part of the study session used after a pass.
type advancer interface {
	Proceed(ctx context.Context) (*study.Status, error)
	Instructions(ctx context.Context) (string, error)
}

// advanceAfterPass moves on to the next lesson. Reaching the last lesson
// is reported on errOut as a rejected advance; the pass itself stands.
func advanceAfterPass(ctx context.Context, out, errOut io.Writer, s advancer) error {
	st, err := s.Proceed(ctx)
	if errors.Is(err, study.ErrLastLesson) {
		fmt.Fprintln(errOut, theme.Warn.Render("cannot advance: ")+err.Error())
		fmt.Fprintln(out, theme.Pass.Render("You have finished every lesson. Well done!"))
		fmt.Fprintln(out, theme.Hint.Render("Run `codetutor end` to close the session."))
		return nil
	}
	if err != nil {
		return err
	}
	printStatus(out, st)
	if instructions, err := s.Instructions(ctx); err == nil {
		printInstructions(out, st.CurrentLesson, instructions)
	}
	return nil
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Put the current lesson file back to how it started",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		if _, err := loadSession(cmd, rt); err != nil {
			return err
		}
		err = rt.Study.Restart(cmd.Context())
		if errors.Is(err, study.ErrCancelled) {
			fmt.Fprintln(cmd.OutOrStdout(), theme.Hint.Render("Nothing was changed."))
			return nil
		}
		return err
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the study session",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		st, err := loadSession(cmd, rt)
		if err != nil {
			return err
		}
		printStatus(cmd.OutOrStdout(), st)
		return nil
	},
}

var instructionsCmd = &cobra.Command{
	Use:   "instructions",
	Short: "Print the instructions for the current lesson",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		st, err := loadSession(cmd, rt)
		if err != nil {
			return err
		}
		instructions, err := rt.Study.Instructions(cmd.Context())
		if err != nil {
			return err
		}
		printInstructions(cmd.OutOrStdout(), st.CurrentLesson, instructions)
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the study session without touching any files",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.Study.ForceReset(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Study session reset.")
		return nil
	},
}

func printStatus(w io.Writer, st *study.Status) {
	if st.Phase == study.PhaseClosed {
		fmt.Fprintln(w, "No study session is open.")
		fmt.Fprintln(w, theme.Hint.Render("Run `codetutor start [folder]` to begin."))
		return
	}
	fmt.Fprintln(w, layout.RenderHeader("codetutor · "+st.Language, layout.DefaultWidth))
	fmt.Fprintln(w, components.LessonProgress(st.CurrentLesson, st.LessonCount, layout.DefaultWidth))
	fmt.Fprintln(w, theme.Label.Render("Workspace ")+theme.Code.Render(st.WorkspacePath))
	if st.LessonFile != "" {
		fmt.Fprintln(w, theme.Label.Render("Lesson    ")+theme.Code.Render(st.LessonFile))
	}
	if st.Evaluating {
		fmt.Fprintln(w, theme.Hint.Render("A submission is being checked."))
	}
}

func printInstructions(w io.Writer, lesson int, instructions string) {
	card := theme.Card.Width(layout.DefaultWidth)
	fmt.Fprintln(w, card.Render(theme.Title.Render(fmt.Sprintf("Lesson %d", lesson))+"\n\n"+theme.Body.Render(instructions)))
}

func init() {
	startCmd.Flags().StringP("language", "l", "", "Lesson language (asked for when omitted)")
	submitCmd.Flags().Bool("no-advance", false, "Stay on the current lesson after a pass")
}
