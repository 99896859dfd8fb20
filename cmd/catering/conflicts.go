package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"catering/internal/apperr"
	"catering/internal/conflict"
	"catering/internal/models"
	"catering/internal/schedclient"
	"catering/internal/util"
)

type checker interface {
	Check(ctx context.Context, q conflict.Query) ([]models.Conflict, error)
}

var conflictsFlags struct {
	resources []int64
	start     string
	end       string
	exclude   int64
	local     bool
	url       string
	timeout   time.Duration
}

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Inspect resource scheduling conflicts",
}

var conflictsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "List bookings that overlap a window",
	Long: `Check asks the conflict detection service which existing bookings of the
given resources overlap [start, end). Times are RFC3339 instants or
YYYY-MM-DD days; a day-only --end includes that whole day. With --local the
database is queried directly instead of the service.`,
	Args: cobra.NoArgs,
	RunE: runConflictsCheck,
}

func init() {
	f := conflictsCheckCmd.Flags()
	f.Int64SliceVar(&conflictsFlags.resources, "resource", nil, "resource ids to check (repeatable or comma separated)")
	f.StringVar(&conflictsFlags.start, "start", "", "window start")
	f.StringVar(&conflictsFlags.end, "end", "", "window end")
	f.Int64Var(&conflictsFlags.exclude, "exclude", 0, "schedule entry id to ignore")
	f.BoolVar(&conflictsFlags.local, "local", false, "query the database instead of the service")
	f.StringVar(&conflictsFlags.url, "url", "", "conflict service URL (overrides config)")
	f.DurationVar(&conflictsFlags.timeout, "timeout", 0, "service call timeout (overrides config)")

	conflictsCmd.AddCommand(conflictsCheckCmd)
	rootCmd.AddCommand(conflictsCmd)
}

func runConflictsCheck(cmd *cobra.Command, _ []string) error {
	const op = "conflicts check"
	start, _, err := models.ParseInstant(conflictsFlags.start)
	if err != nil {
		return apperr.Validation(op, "--start: %v", err)
	}
	end, dayOnly, err := models.ParseInstant(conflictsFlags.end)
	if err != nil {
		return apperr.Validation(op, "--end: %v", err)
	}
	if dayOnly {
		end = end.Add(24 * time.Hour)
	}
	q := conflict.Query{ResourceIDs: conflictsFlags.resources, Start: start, End: end}
	if conflictsFlags.exclude > 0 {
		q.ExcludeEntryID = &conflictsFlags.exclude
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	var c checker
	if conflictsFlags.local {
		store, logger, err := openStore(cfg, os.Stderr)
		if err != nil {
			return err
		}
		defer store.Close()
		c = conflict.New(store, logger)
	} else {
		url := cfg.ConflictService.URL
		if conflictsFlags.url != "" {
			url = conflictsFlags.url
		}
		timeout := cfg.ConflictService.Timeout
		if conflictsFlags.timeout > 0 {
			timeout = conflictsFlags.timeout
		}
		c = schedclient.New(url, timeout, util.NewLogger(os.Stderr, cfg.LogLevel))
	}

	found, err := c.Check(cmd.Context(), q)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), formatConflicts(found))
	return nil
}

// formatConflicts renders conflicts grouped by resource, in the order the
// service returns them.
func formatConflicts(found []models.Conflict) string {
	if len(found) == 0 {
		return "no conflicts\n"
	}
	rows := make([][]string, 0, len(found))
	for _, c := range found {
		task := "-"
		if c.TaskTitle != nil {
			task = *c.TaskTitle
		}
		rows = append(rows, []string{
			strconv.FormatInt(c.ResourceID, 10),
			c.ResourceName,
			c.EventName,
			task,
			c.ExistingStartTime.UTC().Format("2006-01-02 15:04"),
			c.ExistingEndTime.UTC().Format("2006-01-02 15:04"),
			strconv.FormatInt(c.ScheduleEntryID, 10),
		})
	}
	summary := fmt.Sprintf("%d conflicting booking(s) across %d resource(s)\n", len(found), len(conflict.Group(found)))
	return renderTable([]string{"RESOURCE", "NAME", "EVENT", "TASK", "START", "END", "ENTRY"}, rows) + summary
}
