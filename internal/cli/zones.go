package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewZonesCmd создаёт группу команд для зон.
func NewZonesCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zones",
		Short: "Operational zones",
	}

	var refresh bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List zones",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			resp, err := clientFn().ListZones(cmd.Context(), refresh)
			if err != nil {
				return err
			}
			if resp.Fallback {
				out.Warn("backend zones unavailable, showing built-in zones")
			}

			rows := make([][]string, len(resp.Zones))
			for i, z := range resp.Zones {
				rows[i] = []string{z.ID, z.Name, z.Code}
			}
			out.Print([]string{"ID", "NAME", "CODE"}, rows, resp)
			return nil
		},
	}
	list.Flags().BoolVar(&refresh, "refresh", false, "Fetch zones from the backend again")

	cmd.AddCommand(list)
	return cmd
}

// NewIDsCmd создаёт группу команд табельных номеров.
func NewIDsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ids",
		Short: "Employee ids",
	}

	var role string
	next := &cobra.Command{
		Use:   "next",
		Short: "Issue the next employee id",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			id, err := clientFn().NextEmployeeID(cmd.Context(), role)
			if err != nil {
				return err
			}
			if id.Provisional {
				out.Warn("sequence service unavailable, id is provisional")
			}
			out.Print([]string{"EMPLOYEE ID", "PROVISIONAL"}, [][]string{{id.EmployeeID, strconv.FormatBool(id.Provisional)}}, id)
			return nil
		},
	}
	next.Flags().StringVar(&role, "role", "", "Worker type the id is issued for")

	cmd.AddCommand(next)
	return cmd
}
