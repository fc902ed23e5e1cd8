package schedules

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/crucial707/coach-scheduler/cmd/cli/apiclient"
	"github.com/crucial707/coach-scheduler/cmd/cli/output"
	"github.com/crucial707/coach-scheduler/internal/models"
	"github.com/crucial707/coach-scheduler/internal/tzcron"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const timeLayout = "2006-01-02 15:04 MST"

// InitSchedules registers the schedules command tree on rootCmd.
func InitSchedules(rootCmd *cobra.Command) {
	schedulesCmd := &cobra.Command{
		Use:     "schedules",
		Aliases: []string{"schedule", "s"},
		Short:   "Manage scheduled messages",
	}

	schedulesCmd.AddCommand(
		listSchedulesCmd(),
		getScheduleCmd(),
		createScheduleCmd(),
		updateScheduleCmd(),
		transitionCmd("pause", "Pause a schedule"),
		transitionCmd("resume", "Resume a paused schedule"),
		transitionCmd("cancel", "Cancel a schedule permanently"),
		deliveriesCmd(),
	)

	rootCmd.AddCommand(schedulesCmd)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(timeLayout)
}

// localSendTime is the wall-clock time the schedule fires at in its own
// timezone as of at. The cron job is fixed in UTC, so for zones with daylight
// saving the local time shifts with the offset in effect at that moment.
func localSendTime(s models.Schedule, at time.Time) string {
	if s.CronExpr == "" {
		if s.StartTime == "" {
			return "-"
		}
		return s.StartTime + " " + s.Timezone
	}
	offset, err := tzcron.ResolveOffset(s.Timezone, at)
	if err != nil {
		offset = s.TZOffsetMinutes
	}
	local, err := tzcron.ToLocalTime(s.CronExpr, offset)
	if err != nil {
		return s.CronExpr + " UTC"
	}
	return local + " " + s.Timezone
}

func status(s models.Schedule) string {
	if s.Status == models.StatusActive && !s.Active {
		return "ended"
	}
	return string(s.Status)
}

func scheduleRows(list []models.Schedule, now time.Time) [][]interface{} {
	rows := make([][]interface{}, 0, len(list))
	for _, s := range list {
		rows = append(rows, []interface{}{
			s.ID, s.Cadence, status(s), localSendTime(s, now), s.StartAt.UTC().Format(timeLayout),
			formatTime(s.LastSentAt), formatTime(s.NextSendAt), truncate(s.Content, 40),
		})
	}
	return rows
}

var scheduleHeaders = []string{"ID", "Cadence", "Status", "Sends At", "Start", "Last Sent", "Next Send", "Content"}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func listSchedulesCmd() *cobra.Command {
	var (
		asJSON bool
		limit  int
		offset int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiclient.ForCoach()
			if err != nil {
				return err
			}
			q := url.Values{}
			q.Set("limit", strconv.Itoa(limit))
			q.Set("offset", strconv.Itoa(offset))

			var page struct {
				Items []models.Schedule `json:"items"`
				Total int               `json:"total"`
			}
			if err := c.Do("GET", "/v1/schedules?"+q.Encode(), nil, &page); err != nil {
				return err
			}
			if asJSON {
				output.PrintJSON(page)
				return nil
			}
			output.RenderTable(scheduleHeaders, scheduleRows(page.Items, time.Now()))
			fmt.Printf("%d of %d schedules\n", len(page.Items), page.Total)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	cmd.Flags().IntVar(&limit, "limit", 50, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset")
	return cmd
}

func getScheduleCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Show one schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := apiclient.ForCoach()
			if err != nil {
				return err
			}
			var s models.Schedule
			if err := c.Do("GET", "/v1/schedules/"+id, nil, &s); err != nil {
				return err
			}
			if asJSON {
				output.PrintJSON(s)
				return nil
			}
			output.RenderTable([]string{"Field", "Value"}, [][]interface{}{
				{"ID", s.ID},
				{"Cadence", s.Cadence},
				{"Status", status(s)},
				{"Sends At", localSendTime(s, time.Now())},
				{"Cron (UTC)", s.CronExpr},
				{"Start", s.StartAt.UTC().Format(timeLayout)},
				{"End Date", formatDate(s.EndDate)},
				{"Targets", targetsText(s)},
				{"Last Sent", formatTime(s.LastSentAt)},
				{"Next Send", formatTime(s.NextSendAt)},
				{"Content", s.Content},
			})
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}

func targetsText(s models.Schedule) string {
	if s.TargetType == models.TargetExplicit {
		return fmt.Sprintf("%d recipients", len(s.TargetIDs))
	}
	return string(s.TargetType)
}

func createScheduleCmd() *cobra.Command {
	var (
		in      createInput
		targets []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a scheduled message",
		Example: `  coachctl schedules create --content "Weigh-in time" --cadence weekly \
    --start-date 2025-03-04 --start-time 07:30 --timezone America/New_York`,
		RunE: func(cmd *cobra.Command, args []string) error {
			in.TargetType = "all"
			for _, t := range targets {
				id, err := uuid.Parse(t)
				if err != nil {
					return fmt.Errorf("invalid recipient id %q", t)
				}
				in.TargetIDs = append(in.TargetIDs, id)
				in.TargetType = "explicit"
			}
			c, err := apiclient.ForCoach()
			if err != nil {
				return err
			}
			var s models.Schedule
			if err := c.Do("POST", "/v1/schedules", in, &s); err != nil {
				return err
			}
			fmt.Printf("Schedule %s created (%s, first send %s)\n", s.ID, s.Cadence, formatTime(s.NextSendAt))
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Content, "content", "", "message text")
	cmd.Flags().StringVar(&in.Cadence, "cadence", "once", "once, 5min, daily, weekly or monthly")
	cmd.Flags().StringVar(&in.StartDate, "start-date", "", "first send date, YYYY-MM-DD")
	cmd.Flags().StringVar(&in.StartTime, "start-time", "", "local send time, HH:MM")
	cmd.Flags().StringVar(&in.Timezone, "timezone", "UTC", "IANA zone or UTC offset such as UTC-05:00")
	cmd.Flags().StringVar(&in.EndDate, "end-date", "", "last send date, YYYY-MM-DD (recurring only)")
	cmd.Flags().StringSliceVar(&targets, "recipient", nil, "recipient id; repeat to target several (default: all your recipients)")
	cmd.MarkFlagRequired("content")
	cmd.MarkFlagRequired("start-date")
	cmd.MarkFlagRequired("start-time")
	return cmd
}

// createInput mirrors the API's create body.
type createInput struct {
	Content    string      `json:"content"`
	Cadence    string      `json:"cadence"`
	StartDate  string      `json:"startDate"`
	StartTime  string      `json:"startTime"`
	Timezone   string      `json:"timezone"`
	EndDate    string      `json:"endDate,omitempty"`
	TargetType string      `json:"targetType"`
	TargetIDs  []uuid.UUID `json:"targetIds,omitempty"`
}

func updateScheduleCmd() *cobra.Command {
	var content string
	cmd := &cobra.Command{
		Use:   "update [id]",
		Short: "Replace the message text of a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := apiclient.ForCoach()
			if err != nil {
				return err
			}
			if err := c.Do("PATCH", "/v1/schedules/"+id, map[string]string{"content": content}, nil); err != nil {
				return err
			}
			fmt.Println("Schedule updated")
			return nil
		},
	}
	cmd.Flags().StringVar(&content, "content", "", "new message text")
	cmd.MarkFlagRequired("content")
	return cmd
}

func transitionCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " [id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := apiclient.ForCoach()
			if err != nil {
				return err
			}
			var s models.Schedule
			if err := c.Do("POST", "/v1/schedules/"+id+"/"+action, nil, &s); err != nil {
				return err
			}
			fmt.Printf("Schedule %s is now %s\n", s.ID, s.Status)
			return nil
		},
	}
}

func deliveriesCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "deliveries [id]",
		Short: "Show the delivery history of a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := apiclient.ForCoach()
			if err != nil {
				return err
			}
			var rows []models.Delivery
			if err := c.Do("GET", "/v1/schedules/"+id+"/deliveries", nil, &rows); err != nil {
				return err
			}
			if asJSON {
				output.PrintJSON(rows)
				return nil
			}
			table := make([][]interface{}, 0, len(rows))
			for _, d := range rows {
				table = append(table, []interface{}{d.RecipientID, d.Window, d.Status, d.Attempts, formatTime(d.SentAt), d.Error})
			}
			output.RenderTable([]string{"Recipient", "Window", "Status", "Attempts", "Sent", "Error"}, table)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

func parseID(s string) (string, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid schedule id %q", s)
	}
	return id.String(), nil
}
