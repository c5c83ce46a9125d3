package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/codetutor/internal/store"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect recorded sessions, submissions and model requests",
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent events",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		kind, _ := cmd.Flags().GetString("kind")

		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx := cmd.Context()
		repo := rt.Store.EventRepo()
		opts := store.QueryOpts{Limit: limit}
		out := cmd.OutOrStdout()

		switch kind {
		case "session":
			events, err := repo.QuerySessionEvents(ctx, opts)
			if err != nil {
				return fmt.Errorf("query events: %w", err)
			}
			if len(events) == 0 {
				fmt.Fprintln(out, "No session events found.")
				return nil
			}
			fmt.Fprintf(out, "%-5s  %-19s  %-8s  %-10s  %-6s  %s\n",
				"ID", "Timestamp", "Action", "Language", "Lesson", "Detail")
			fmt.Fprintln(out, strings.Repeat("─", 80))
			for _, e := range events {
				fmt.Fprintf(out, "%-5d  %-19s  %-8s  %-10s  %-6d  %s\n",
					e.ID,
					e.Timestamp.Local().Format("2006-01-02 15:04:05"),
					e.Action,
					e.Language,
					e.Lesson,
					truncate(e.Detail, 40),
				)
			}

		case "submission":
			events, err := repo.QuerySubmissions(ctx, opts)
			if err != nil {
				return fmt.Errorf("query events: %w", err)
			}
			if len(events) == 0 {
				fmt.Fprintln(out, "No submissions found.")
				return nil
			}
			fmt.Fprintf(out, "%-5s  %-19s  %-10s  %-6s  %-6s  %s\n",
				"ID", "Timestamp", "Language", "Lesson", "Status", "Ms")
			fmt.Fprintln(out, strings.Repeat("─", 64))
			for _, e := range events {
				fmt.Fprintf(out, "%-5d  %-19s  %-10s  %-6d  %-6s  %d\n",
					e.ID,
					e.Timestamp.Local().Format("2006-01-02 15:04:05"),
					e.Language,
					e.Lesson,
					e.Status,
					e.DurationMs,
				)
			}

		case "llm":
			events, err := repo.QueryLLMEvents(ctx, opts)
			if err != nil {
				return fmt.Errorf("query events: %w", err)
			}
			if len(events) == 0 {
				fmt.Fprintln(out, "No model requests found.")
				return nil
			}
			fmt.Fprintf(out, "%-5s  %-19s  %-8s  %-28s  %-6s  %-7s  %s\n",
				"ID", "Timestamp", "Purpose", "Model", "Chunks", "Ms", "OK")
			fmt.Fprintln(out, strings.Repeat("─", 90))
			for _, e := range events {
				ok := "✓"
				if !e.Success {
					ok = "✗"
				}
				fmt.Fprintf(out, "%-5d  %-19s  %-8s  %-28s  %-6d  %-7d  %s\n",
					e.ID,
					e.Timestamp.Local().Format("2006-01-02 15:04:05"),
					e.Purpose,
					truncate(e.Model, 28),
					e.Chunks,
					e.LatencyMs,
					ok,
				)
			}

		default:
			return fmt.Errorf("unknown event kind %q (want session, submission or llm)", kind)
		}
		return nil
	},
}

var eventsViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "View the full request and response of a model request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var id int
		if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
			return fmt.Errorf("invalid ID %q: %w", args[0], err)
		}

		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		e, err := rt.Store.EventRepo().GetLLMEvent(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}
		if e == nil {
			return fmt.Errorf("event %d not found", id)
		}

		out := cmd.OutOrStdout()
		sep := strings.Repeat("─", 60)

		fmt.Fprintf(out, "ID:        %d\n", e.ID)
		fmt.Fprintf(out, "Time:      %s\n", e.Timestamp.Local().Format("2006-01-02 15:04:05"))
		fmt.Fprintf(out, "Provider:  %s\n", e.Provider)
		fmt.Fprintf(out, "Model:     %s\n", e.Model)
		fmt.Fprintf(out, "Purpose:   %s\n", e.Purpose)
		fmt.Fprintf(out, "Chunks:    %d\n", e.Chunks)
		fmt.Fprintf(out, "Latency:   %dms\n", e.LatencyMs)
		fmt.Fprintf(out, "Success:   %v\n", e.Success)
		if e.ErrorMessage != "" {
			fmt.Fprintf(out, "Error:     %s\n", e.ErrorMessage)
		}

		for _, section := range []struct{ title, body string }{
			{"REQUEST", e.RequestBody},
			{"RESPONSE", e.ResponseBody},
		} {
			fmt.Fprintln(out)
			fmt.Fprintln(out, sep)
			fmt.Fprintln(out, section.title)
			fmt.Fprintln(out, sep)
			if section.body != "" {
				fmt.Fprintln(out, section.body)
			} else {
				fmt.Fprintln(out, "(not captured)")
			}
		}
		return nil
	},
}

var eventsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show attempts per lesson and model usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx := cmd.Context()
		repo := rt.Store.EventRepo()
		out := cmd.OutOrStdout()

		lessons, err := repo.SubmissionStats(ctx)
		if err != nil {
			return fmt.Errorf("query submissions: %w", err)
		}
		if len(lessons) == 0 {
			fmt.Fprintln(out, "No submissions recorded yet.")
		} else {
			fmt.Fprintln(out, "Submissions by Lesson")
			fmt.Fprintln(out, strings.Repeat("─", 60))
			fmt.Fprintf(out, "%-12s  %6s  %8s  %6s  %6s  %6s\n",
				"Language", "Lesson", "Attempts", "Pass", "Fail", "Error")
			fmt.Fprintln(out, strings.Repeat("─", 60))

			var attempts, passes int
			for _, st := range lessons {
				fmt.Fprintf(out, "%-12s  %6d  %8d  %6d  %6d  %6d\n",
					truncate(st.Language, 12), st.Lesson, st.Attempts, st.Passes, st.Fails, st.Errors)
				attempts += st.Attempts
				passes += st.Passes
			}
			fmt.Fprintln(out, strings.Repeat("─", 60))
			fmt.Fprintf(out, "%-12s  %6s  %8d  %6d\n", "TOTAL", "", attempts, passes)
		}

		models, err := repo.LLMUsageByModel(ctx)
		if err != nil {
			return fmt.Errorf("query model usage: %w", err)
		}
		if len(models) > 0 {
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Model Usage")
			fmt.Fprintln(out, strings.Repeat("─", 60))
			fmt.Fprintf(out, "%-32s  %6s  %8s  %8s\n", "Model", "Calls", "Failed", "Avg Ms")
			fmt.Fprintln(out, strings.Repeat("─", 60))
			for _, mu := range models {
				fmt.Fprintf(out, "%-32s  %6d  %8d  %8d\n",
					truncate(mu.Model, 32), mu.Calls, mu.Failures, mu.AvgLatencyMs)
			}
		}
		return nil
	},
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func init() {
	eventsListCmd.Flags().IntP("limit", "n", 20, "Number of events to show")
	eventsListCmd.Flags().StringP("kind", "k", "submission", "Event kind: session, submission or llm")

	eventsCmd.AddCommand(eventsListCmd)
	eventsCmd.AddCommand(eventsViewCmd)
	eventsCmd.AddCommand(eventsStatsCmd)
}
