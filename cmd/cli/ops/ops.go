package ops

import (
	"fmt"
	"strconv"

	"github.com/crucial707/coach-scheduler/cmd/cli/apiclient"
	"github.com/crucial707/coach-scheduler/cmd/cli/output"
	"github.com/crucial707/coach-scheduler/internal/models"
	"github.com/spf13/cobra"
)

// InitOps registers the audit and sweep commands on rootCmd.
func InitOps(rootCmd *cobra.Command) {
	rootCmd.AddCommand(auditCmd(), sweepCmd())
}

func auditCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show your recent schedule actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiclient.ForCoach()
			if err != nil {
				return err
			}
			var entries []models.AuditEntry
			if err := c.Do("GET", "/v1/audit?limit="+strconv.Itoa(limit), nil, &entries); err != nil {
				return err
			}
			rows := make([][]interface{}, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []interface{}{e.CreatedAt.UTC().Format("2006-01-02 15:04:05"), e.Action, e.ResourceID, e.Details})
			}
			output.RenderTable([]string{"Time", "Action", "Schedule", "Details"}, rows)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "number of entries")
	return cmd
}

// sweepCmd triggers one fallback sweep pass. It authenticates with
// PROCESS_SECRET rather than a coach token.
func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one fallback sweep pass now (operators)",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiclient.ForOperator()
			if err != nil {
				return err
			}
			var sum struct {
				Schedules  int `json:"schedules"`
				Dispatched int `json:"dispatched"`
				Processed  int `json:"processed"`
				Failed     int `json:"failed"`
			}
			if err := c.Do("POST", "/internal/sweep", nil, &sum); err != nil {
				return err
			}
			fmt.Printf("Checked %d schedules: %d dispatched, %d messages sent, %d failed\n",
				sum.Schedules, sum.Dispatched, sum.Processed, sum.Failed)
			return nil
		},
	}
}
