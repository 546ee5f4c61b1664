package cmd

import (
	"context"
	"time"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/ankurauti1234/Events-Dashboard/internal/config"
	"github.com/ankurauti1234/Events-Dashboard/internal/logging"
	"github.com/ankurauti1234/Events-Dashboard/internal/web"
)

var (
	serveAddr   string
	servePprof  bool
	serveSecure bool
	serveCharts time.Duration
	serveSvcCmd string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the browser dashboard",
	Long: `Serves the events dashboard: login, event log, device pages with live
auto-refresh over websockets, CSV export and fleet charts. Sessions live in
browser cookies; recent devices are stored in the local database.
Can be installed as a system service.`,
	Run: func(cmd *cobra.Command, args []string) {
		log := logging.New("serve")

		prg := &program{log: log, run: func(ctx context.Context) error {
			cfg := settings()
			opts := web.Options{
				APIURL:          cfg.APIURL,
				LogoBaseURL:     cfg.LogoBaseURL,
				Timezone:        cfg.Timezone,
				Theme:           cfg.Theme,
				RefreshInterval: cfg.RefreshInterval,
				ChartsInterval:  serveCharts,
				EnablePprof:     servePprof,
				SecureCookies:   serveSecure,
				Debug:           debug,
			}
			if st := openStore(); st != nil {
				defer st.Close()
				opts.Store = st
			}

			srv, err := web.New(opts)
			if err != nil {
				return err
			}
			return srv.Run(ctx, serveAddr)
		}}

		svcArgs := serviceArgs("serve", "--addr", serveAddr, "--charts-interval", serveCharts.String())
		if servePprof {
			svcArgs = append(svcArgs, "--pprof")
		}
		if serveSecure {
			svcArgs = append(svcArgs, "--secure-cookies")
		}

		runService(&service.Config{
			Name:        "apm-dashboard",
			DisplayName: "APM Events Dashboard",
			Description: "Web dashboard for APM device events",
			Arguments:   svcArgs,
		}, prg, serveSvcCmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Address to listen on")
	serveCmd.Flags().BoolVar(&servePprof, "pprof", false, "Expose /debug/pprof")
	serveCmd.Flags().BoolVar(&serveSecure, "secure-cookies", false, "Mark cookies Secure (serve behind HTTPS)")
	serveCmd.Flags().DurationVar(&serveCharts, "charts-interval", config.DefaultChartsInterval, "Fleet charts refresh period")
	serveCmd.Flags().StringVar(&serveSvcCmd, "service", "", "Service action: install, uninstall, start, stop")
}
