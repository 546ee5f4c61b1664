package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ankurauti1234/Events-Dashboard/internal/config"
	"github.com/ankurauti1234/Events-Dashboard/internal/logging"
	"github.com/ankurauti1234/Events-Dashboard/internal/timezone"
)

var (
	cfgFile    string
	jsonOutput bool
	zoneFlag   string
	debug      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "apm",
	Short: "A CLI and dashboard for the APM device events API",
	Long: `Browse audience measurement devices: logo and audio detections, member
watching state, shutdowns and fleet-wide charts. Run 'apm serve' for the
browser dashboard or 'apm exporter' for Prometheus metrics.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Setup(debug, false)
		if zoneFlag != "" && !timezone.Known(zoneFlag) {
			return fmt.Errorf("unknown timezone %q", zoneFlag)
		}
		return nil
	},
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(func() { config.InitConfig(cfgFile) })

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.apm.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	rootCmd.PersistentFlags().StringVar(&zoneFlag, "timezone", "", "Display timezone for this run (overrides the saved setting)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}
