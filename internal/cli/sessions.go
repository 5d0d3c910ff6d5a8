package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewSessionsCmd создаёт группу команд для журнала сессий conveyor-server.
func NewSessionsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and trigger sessions on conveyor-server",
	}

	cmd.AddCommand(
		newSessionsListCmd(clientFn, outputFn),
		newSessionsShowCmd(clientFn, outputFn),
		newSessionsTriggerCmd(clientFn, outputFn),
		newSessionsNextCmd(clientFn, outputFn),
	)

	return cmd
}

func newSessionsListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListSessionsOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			sessions, err := client.ListSessions(opts)
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "STATUS", "TRIGGER", "STARTED", "DURATION"}
			rows := make([][]string, len(sessions))
			for i, s := range sessions {
				rows[i] = []string{s.ID, s.Name, s.Status, s.Trigger, s.StartedAt, seconds(s.DurationSec)}
			}

			out.Print(headers, rows, sessions)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.JobID, "job-id", "", "Filter by job ID")
	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status (RUNNING, SUCCEEDED, FAILED)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of results")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "Number of results to skip")

	return cmd
}

func newSessionsShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show SESSION_ID",
		Short: "Show a session and its runner results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			s, err := client.GetSession(args[0])
			if err != nil {
				return err
			}

			if out.IsJSON() {
				out.JSON(s)
				return nil
			}

			out.Detail([][2]string{
				{"ID", s.ID},
				{"Name", s.Name},
				{"Job", s.JobID},
				{"Status", s.Status},
				{"Trigger", s.Trigger},
				{"Work dir", s.WorkDir},
				{"Started", s.StartedAt},
				{"Finished", s.FinishedAt},
				{"Message", s.Message},
			}, s)
			fmt.Fprintln(out.Writer())

			rows := make([][]string, len(s.Runners))
			for i, r := range s.Runners {
				rows[i] = []string{r.IDName, r.WorkflowID, r.Status, seconds(r.DurationSec), r.Message}
			}
			out.Table([]string{"RUNNER", "WORKFLOW_ID", "STATUS", "DURATION", "MESSAGE"}, rows)
			return nil
		},
	}
}

func newSessionsTriggerCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "trigger",
		Short: "Start a session now, outside the schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			resp, err := client.TriggerSession()
			if err != nil {
				return err
			}

			if out.IsJSON() {
				out.JSON(resp)
				return nil
			}
			out.Success(fmt.Sprintf("Session of %s triggered", resp.JobID))
			return nil
		},
	}
}

func newSessionsNextCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Show the next scheduled session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			schedule, err := client.GetSchedule()
			if err != nil {
				return err
			}

			next := schedule.NextRun
			if next == "" {
				next = "not scheduled"
			}
			out.Detail([][2]string{
				{"Job", schedule.JobID},
				{"Running", strconv.FormatBool(schedule.Running)},
				{"Next run", next},
			}, schedule)
			return nil
		},
	}
}

func seconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 1, 64) + "s"
}
