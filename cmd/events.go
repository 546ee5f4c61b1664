package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ankurauti1234/Events-Dashboard/internal/client"
	"github.com/ankurauti1234/Events-Dashboard/internal/dashboard"
	"github.com/ankurauti1234/Events-Dashboard/internal/render"
	"github.com/ankurauti1234/Events-Dashboard/internal/timezone"
)

// eventFilters are shared by 'events list' and 'device events'.
type eventFilters struct {
	device   string
	from     string
	to       string
	kind     string
	page     int
	limit    string
	watch    bool
	interval time.Duration
}

var listFilters eventFilters

func (f *eventFilters) register(cmd *cobra.Command, withDevice bool) {
	if withDevice {
		cmd.Flags().StringVarP(&f.device, "device", "d", "", "Device ID (all devices when empty)")
	}
	cmd.Flags().StringVar(&f.from, "from", "", "Start date, YYYY-MM-DD in the display timezone")
	cmd.Flags().StringVar(&f.to, "to", "", "End date, YYYY-MM-DD in the display timezone (inclusive)")
	cmd.Flags().StringVarP(&f.kind, "type", "t", "", "Event type code or name, e.g. 29 or LOGO_DETECTED")
	cmd.Flags().IntVar(&f.page, "page", 1, "Page number")
	cmd.Flags().StringVarP(&f.limit, "limit", "l", "10", "Rows per page, or 'all'")
	cmd.Flags().BoolVarP(&f.watch, "watch", "w", false, "Keep refreshing until interrupted")
	cmd.Flags().DurationVar(&f.interval, "interval", 0, "Refresh interval with --watch (default from settings)")
}

func (f eventFilters) query(zone string) (client.EventQuery, error) {
	limit, err := dashboard.ParseLimit(f.limit)
	if err != nil {
		return client.EventQuery{}, err
	}
	code, err := parseType(f.kind)
	if err != nil {
		return client.EventQuery{}, err
	}
	from, to, err := timezone.DayRange(f.from, f.to, zone)
	if err != nil {
		return client.EventQuery{}, err
	}
	q := client.EventQuery{DeviceID: f.device, Page: f.page, Limit: limit, Type: code, StartDate: from, EndDate: to}
	return q, q.Validate()
}

// listEvents prints one page of the event log, refreshing with --watch.
func listEvents(f eventFilters) {
	cfg := settings()
	q, err := f.query(cfg.Timezone)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	sess := session()
	dash := dashboard.New(newClient(sess.Token))
	if q.DeviceID != "" {
		remember(sess.Owner(), q.DeviceID)
	}

	interval := f.interval
	if interval <= 0 {
		interval = cfg.RefreshInterval
	}

	run(f.watch, interval, func(ctx context.Context) error {
		snap, err := dash.FetchEvents(ctx, q)
		if err != nil {
			return err
		}

		if jsonOutput {
			printJSON(snap)
			return nil
		}

		render.Stats(os.Stdout, snap, cfg.Timezone, f.watch)
		if q.DeviceID != "" {
			render.Shutdown(os.Stdout, snap.Shutdown, cfg.Timezone)
		}
		fmt.Println()
		if len(snap.Events) == 0 {
			fmt.Println("No events found.")
			return nil
		}
		render.Events(os.Stdout, snap.Events, cfg.Timezone)
		render.Pager(os.Stdout, snap.Pager)
		return nil
	})
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Search the event log",
	Long:  `Search events across all devices or for a single device, filtered by date range and type.`,
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List events, newest first",
	Run: func(cmd *cobra.Command, args []string) {
		listEvents(listFilters)
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsListCmd)
	listFilters.register(eventsListCmd, true)
}
