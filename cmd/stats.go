package cmd

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ankurauti1234/Events-Dashboard/internal/dashboard"
	"github.com/ankurauti1234/Events-Dashboard/internal/render"
)

var (
	statsTop      int
	statsWatch    bool
	statsInterval time.Duration
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show fleet-wide event and logo detection charts",
	Run: func(cmd *cobra.Command, args []string) {
		sess := session()
		dash := dashboard.New(newClient(sess.Token))

		run(statsWatch, statsInterval, func(ctx context.Context) error {
			snap, err := dash.FetchFleet(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(snap)
				return nil
			}
			render.Fleet(os.Stdout, snap, statsTop)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().IntVar(&statsTop, "top", 10, "Number of channels to list")
	statsCmd.Flags().BoolVarP(&statsWatch, "watch", "w", false, "Keep refreshing until interrupted")
	statsCmd.Flags().DurationVar(&statsInterval, "interval", dashboard.ChartsRefresh, "Refresh interval with --watch")
}
