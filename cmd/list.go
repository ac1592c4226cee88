package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"eventcal/internal/api"
	"eventcal/internal/recur"
)

var (
	listFrom string
	listTo   string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List occurrences in a date range and exit",
	Long: `List expands every event into its occurrences inside the given range
and prints them in a simple text format. Without flags it covers today.`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listFrom, "from", "", "Range start (2006-01-02, default today)")
	listCmd.Flags().StringVar(&listTo, "to", "", "Range end (2006-01-02, default same as --from)")
	rootCmd.AddCommand(listCmd)
}

// rangeFlags resolves --from/--to into inclusive bounds in the display zone.
func rangeFlags() (time.Time, time.Time, error) {
	loc, err := cfg.Location()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	now := time.Now().In(loc)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	if listFrom != "" {
		from, err = time.ParseInLocation("2006-01-02", listFrom, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from: %w", err)
		}
	}

	to := from
	if listTo != "" {
		to, err = time.ParseInLocation("2006-01-02", listTo, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to: %w", err)
		}
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to is before --from")
	}
	return from, to.Add(24*time.Hour - time.Second), nil
}

// fetchOccurrences lists events from the server and expands them, skipping
// events whose rules fail to expand.
func fetchOccurrences(a *app, from, to time.Time) ([]recur.Occurrence, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	events, err := a.client.ListAllEvents(ctx, &api.ListOptions{From: from, To: to})
	if err != nil {
		return nil, err
	}

	var occs []recur.Occurrence
	for _, ev := range events {
		out, err := recur.Expand(ev.RecurEvent(), from, to)
		if err != nil {
			a.log.Warn().Int64("event_id", ev.ID).Err(err).Msg("skipping event with invalid recurrence rule")
			fmt.Fprintf(os.Stderr, "Warning: skipping %q: %v\n", ev.Title, err)
			continue
		}
		occs = append(occs, out...)
	}
	sort.Slice(occs, func(i, j int) bool { return occs[i].Start.Before(occs[j].Start) })
	return occs, nil
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	from, to, err := rangeFlags()
	if err != nil {
		return err
	}

	occs, err := fetchOccurrences(a, from, to)
	if err != nil {
		return fmt.Errorf("error getting events: %w", err)
	}

	fmt.Printf("Events from %s to %s:\n", from.Format(cfg.DateFormat), to.Format(cfg.DateFormat))
	if len(occs) == 0 {
		fmt.Println("No events found.")
		return nil
	}

	loc := from.Location()
	var lastDay string
	for _, occ := range occs {
		start := occ.Start.In(loc)
		day := start.Format(cfg.DateFormat)
		if day != lastDay {
			fmt.Printf("%s:\n", day)
			lastDay = day
		}
		line := fmt.Sprintf("  %s - %s  %s", start.Format(cfg.TimeFormat), occ.End.In(loc).Format(cfg.TimeFormat), occ.Title)
		if occ.Source.Location != "" {
			line += " @ " + occ.Source.Location
		}
		fmt.Println(line)
	}
	return nil
}
