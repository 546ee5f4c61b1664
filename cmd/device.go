package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/ankurauti1234/Events-Dashboard/internal/dashboard"
	"github.com/ankurauti1234/Events-Dashboard/internal/render"
)

var (
	devLogoPage   int
	devLogoLimit  int
	devAudioPage  int
	devAudioLimit int
	devSort       string
	devDesc       bool
	devWatch      bool
	devInterval   time.Duration

	deviceFilters eventFilters

	exportKind   string
	exportPage   int
	exportLimit  int
	exportIDs    string
	exportOutput string
)

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Inspect a single device",
}

var deviceShowCmd = &cobra.Command{
	Use:   "show <device-id>",
	Short: "Show logo and audio detections, members and last shutdown",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := strings.TrimSpace(args[0])
		if id == "" {
			fmt.Println("Error: Please enter a device ID")
			os.Exit(1)
		}

		cfg := settings()
		sess := session()
		dash := dashboard.New(newClient(sess.Token))
		remember(sess.Owner(), id)

		pages := dashboard.DevicePage{LogoPage: devLogoPage, LogoLimit: devLogoLimit, AudioPage: devAudioPage, AudioLimit: devAudioLimit}
		state := dashboard.SortState{Key: dashboard.NormalizeSortKey(devSort), Desc: devDesc}

		interval := devInterval
		if interval <= 0 {
			interval = cfg.RefreshInterval
		}

		run(devWatch, interval, func(ctx context.Context) error {
			snap, err := dash.FetchDevice(ctx, id, pages)
			if errors.Is(err, dashboard.ErrNoData) {
				if jsonOutput {
					printJSON(snap)
				} else {
					fmt.Println(dashboard.ErrNoData.Error())
				}
				return nil
			}
			if err != nil {
				return err
			}

			dashboard.SortEvents(snap.Logo, state)
			if jsonOutput {
				printJSON(snap)
				return nil
			}
			render.Device(os.Stdout, snap, cfg.Timezone)
			return nil
		})
	},
}

var deviceEventsCmd = &cobra.Command{
	Use:   "events <device-id>",
	Short: "Show the event log of one device",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		f := deviceFilters
		f.device = strings.TrimSpace(args[0])
		listEvents(f)
	},
}

var deviceExportCmd = &cobra.Command{
	Use:   "export <device-id>",
	Short: "Export logo or audio detections as CSV",
	Long: `Writes one page of logo or audio detections to a CSV file named
<kind>_detection_YYYY-MM-DD.csv, or to --output. Use --ids to export only
some rows; '-' as output writes to stdout.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := strings.TrimSpace(args[0])
		kind, err := render.ParseKind(exportKind)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		sess := session()
		api := newClient(sess.Token)

		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		page, err := api.DeviceEvents(ctx, id, kind.EventType(), exportPage, exportLimit)
		if err != nil {
			fail(err)
		}

		ids := lo.FilterMap(strings.Split(exportIDs, ","), func(s string, _ int) (string, bool) {
			s = strings.TrimSpace(s)
			return s, s != ""
		})

		var buf bytes.Buffer
		if err := render.CSV(&buf, render.Select(page.Events, ids)); err != nil {
			if errors.Is(err, render.ErrNothingToExport) {
				fmt.Println("No data to export")
				os.Exit(1)
			}
			fmt.Printf("Error building CSV: %v\n", err)
			os.Exit(1)
		}

		if exportOutput == "-" {
			os.Stdout.Write(buf.Bytes())
			return
		}
		out := exportOutput
		if out == "" {
			out = render.Filename(kind, time.Now())
		}
		if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
			fmt.Printf("Error writing %s: %v\n", out, err)
			os.Exit(1)
		}
		fmt.Printf("Exported %s detections of device %s to %s\n", kind, id, out)
	},
}

func init() {
	rootCmd.AddCommand(deviceCmd)
	deviceCmd.AddCommand(deviceShowCmd, deviceEventsCmd, deviceExportCmd)

	deviceShowCmd.Flags().IntVar(&devLogoPage, "logo-page", 1, "Logo detections page")
	deviceShowCmd.Flags().IntVar(&devLogoLimit, "logo-limit", dashboard.DefaultLimit, "Logo detections per page")
	deviceShowCmd.Flags().IntVar(&devAudioPage, "audio-page", 1, "Audio fingerprints page")
	deviceShowCmd.Flags().IntVar(&devAudioLimit, "audio-limit", dashboard.DefaultLimit, "Audio fingerprints per page")
	deviceShowCmd.Flags().StringVar(&devSort, "sort", dashboard.SortByTime, "Sort logo detections by TS or confidence")
	deviceShowCmd.Flags().BoolVar(&devDesc, "desc", false, "Sort descending")
	deviceShowCmd.Flags().BoolVarP(&devWatch, "watch", "w", false, "Keep refreshing until interrupted")
	deviceShowCmd.Flags().DurationVar(&devInterval, "interval", 0, "Refresh interval with --watch (default from settings)")

	deviceFilters.register(deviceEventsCmd, false)

	deviceExportCmd.Flags().StringVarP(&exportKind, "kind", "k", string(render.KindLogo), "Detections to export: logo or audio")
	deviceExportCmd.Flags().IntVar(&exportPage, "page", 1, "Page to export")
	deviceExportCmd.Flags().IntVar(&exportLimit, "limit", dashboard.DefaultLimit, "Rows per page")
	deviceExportCmd.Flags().StringVar(&exportIDs, "ids", "", "Comma separated event _id values to export (all rows when empty)")
	deviceExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file, '-' for stdout")
}
