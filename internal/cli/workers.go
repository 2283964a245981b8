package cli

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var workerHeaders = []string{"ID", "WORKER ID", "NAME", "TYPE", "ZONE", "STATUS", "RATING", "LAST LOGIN"}

func workerRow(w WorkerResponse) []string {
	lastLogin := "never"
	if w.LastLogin != nil {
		lastLogin = w.LastLogin.Format(time.DateTime)
	}
	return []string{
		w.ID,
		w.WorkerID,
		w.Name,
		w.WorkerType,
		w.ZoneName,
		w.WorkerStatus,
		strconv.FormatFloat(w.Performance.Rating, 'f', 1, 64),
		lastLogin,
	}
}

// NewWorkersCmd создаёт группу команд справочника работников.
func NewWorkersCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workers",
		Aliases: []string{"worker"},
		Short:   "Browse workers and manage their status",
	}

	cmd.AddCommand(
		newWorkersListCmd(clientFn, outputFn),
		newWorkersShowCmd(clientFn, outputFn),
		newWorkersRefreshCmd(clientFn, outputFn),
		newWorkersStatsCmd(clientFn, outputFn),
		newWorkersSetStatusCmd(clientFn, outputFn),
		newWorkersDecisionCmd("approve", "Approve a pending application (admin)", clientFn, outputFn),
		newWorkersDecisionCmd("reject", "Reject a pending application (admin)", clientFn, outputFn),
		newWorkersTransitionsCmd(clientFn, outputFn),
		newWorkersHistoryCmd(clientFn, outputFn),
	)

	return cmd
}

func newWorkersListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListWorkersOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workers with filters and sorting",
		RunE: func(cmd *cobra.Command, args []string) error {
			workers, err := clientFn().ListWorkers(cmd.Context(), opts)
			if err != nil {
				return err
			}

			rows := make([][]string, len(workers))
			for i, w := range workers {
				rows[i] = workerRow(w)
			}
			outputFn().Print(workerHeaders, rows, workers)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status (or \"all\")")
	cmd.Flags().StringVar(&opts.WorkerType, "type", "", "Filter by worker type (or \"all\")")
	cmd.Flags().StringVar(&opts.Zone, "zone", "", "Filter by zone id or name (or \"all\")")
	cmd.Flags().StringVar(&opts.Search, "search", "", "Search name, worker id, type, email or phone")
	cmd.Flags().StringVar(&opts.SortBy, "sort", "", "Sort: name-asc, name-desc, rating-high, rating-low, tasks-high, last-active")

	return cmd
}

func newWorkersShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a worker by record id or employee id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := clientFn().GetWorker(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			outputFn().Print(workerHeaders, [][]string{workerRow(*w)}, w)
			return nil
		},
	}
}

func statsRows(stats *StatsResponse) [][]string {
	statuses := make([]string, 0, len(stats.ByStatus))
	for status := range stats.ByStatus {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)

	rows := make([][]string, 0, len(statuses)+1)
	for _, status := range statuses {
		rows = append(rows, []string{status, strconv.Itoa(stats.ByStatus[status])})
	}
	return append(rows, []string{"total", strconv.Itoa(stats.Total)})
}

func newWorkersRefreshCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Reload the directory from the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			stats, err := clientFn().RefreshWorkers(cmd.Context())
			if err != nil {
				return err
			}
			out.Success(fmt.Sprintf("Directory refreshed: %d workers", stats.Total))
			out.Print([]string{"STATUS", "COUNT"}, statsRows(stats), stats)
			return nil
		},
	}
}

func newWorkersStatsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count workers per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			stats, err := clientFn().Stats(cmd.Context())
			if err != nil {
				return err
			}
			if stats.LastError != "" {
				out.Warn("last refresh failed: " + stats.LastError)
			}
			out.Print([]string{"STATUS", "COUNT"}, statsRows(stats), stats)
			return nil
		},
	}
}

func newWorkersSetStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "set-status ID STATUS",
		Short: "Move a worker to another status (use --admin for admin-only transitions)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			w, err := clientFn().SetStatus(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			out.Success(fmt.Sprintf("Worker %s is now %s", w.Name, w.WorkerStatus))
			out.Print(workerHeaders, [][]string{workerRow(*w)}, w)
			return nil
		},
	}
}

func newWorkersDecisionCmd(decision, short string, clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   decision + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			w, err := clientFn().Decide(cmd.Context(), args[0], decision)
			if err != nil {
				return err
			}
			out.Success(fmt.Sprintf("Worker %s is now %s", w.Name, w.WorkerStatus))
			out.Print(workerHeaders, [][]string{workerRow(*w)}, w)
			return nil
		},
	}
}

func newWorkersTransitionsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "transitions ID",
		Short: "Show status transitions available for a worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := clientFn().Transitions(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			rows := make([][]string, len(resp.Transitions))
			for i, t := range resp.Transitions {
				rows[i] = []string{resp.From, t.To, strconv.FormatBool(t.AdminOnly), strconv.FormatBool(t.Allowed)}
			}
			outputFn().Print([]string{"FROM", "TO", "ADMIN ONLY", "ALLOWED"}, rows, resp)
			return nil
		},
	}
}

func newWorkersHistoryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history ID",
		Short: "Show the status change history of a worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := clientFn().History(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}

			rows := make([][]string, len(history))
			for i, e := range history {
				rows[i] = []string{
					e.OccurredAt.Format(time.RFC3339),
					e.PreviousStatus,
					e.NewStatus,
					strconv.FormatBool(e.ByAdmin),
					e.EventID,
				}
			}
			outputFn().Print([]string{"AT", "FROM", "TO", "BY ADMIN", "EVENT"}, rows, history)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of entries (server default when 0)")

	return cmd
}
