package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kardianos/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ankurauti1234/Events-Dashboard/internal/client"
	"github.com/ankurauti1234/Events-Dashboard/internal/config"
	"github.com/ankurauti1234/Events-Dashboard/internal/dashboard"
	"github.com/ankurauti1234/Events-Dashboard/internal/logging"
	"github.com/ankurauti1234/Events-Dashboard/internal/metrics"
)

var (
	expUser       string
	expPass       string
	expPort       string
	serviceAction string
)

// promLogger routes promhttp errors through zerolog.
type promLogger struct {
	l zerolog.Logger
}

func (p promLogger) Println(v ...interface{}) {
	p.l.Error().Msg(fmt.Sprint(v...))
}

// runExporter logs in when credentials are given, otherwise reuses the
// stored session, and serves /metrics until ctx is done.
func runExporter(ctx context.Context, log zerolog.Logger) error {
	cfg := settings()
	api := client.New(client.ClientConfig{
		BaseURL:  cfg.APIURL,
		Token:    config.LoadSession().Token,
		Username: expUser,
		Password: expPass,
		Retries:  2,
	})

	if expUser != "" && expPass != "" {
		log.Info().Str("user", expUser).Msg("attempting initial login")
		if _, err := api.Relogin(ctx); err != nil {
			return fmt.Errorf("initial login failed: %w", err)
		}
		log.Info().Msg("initial login successful")
	} else if api.Config.Token == "" {
		return errors.New("no session: run 'apm login' or pass --username and --password")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		metrics.NewCollector(dashboard.New(api), func(ctx context.Context) error {
			_, err := api.Relogin(ctx)
			return err
		}, logging.New("collector")),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		ErrorLog: promLogger{log},
	}))

	server := &http.Server{
		Addr:    ":" + expPort,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("server forced to shutdown")
		}
	}()

	log.Info().Str("addr", server.Addr).Msg("APM exporter listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

var exporterCmd = &cobra.Command{
	Use:   "exporter",
	Short: "Start Prometheus Exporter service",
	Long: `Starts a long-running HTTP server that exposes fleet metrics of the
events API on /metrics. Can be installed as a system service.`,
	Run: func(cmd *cobra.Command, args []string) {
		log := logging.New("exporter")
		prg := &program{log: log, run: func(ctx context.Context) error {
			return runExporter(ctx, log)
		}}

		svcArgs := serviceArgs("exporter", "--port", expPort)
		if expUser != "" {
			svcArgs = append(svcArgs, "--username", expUser, "--password", expPass)
		}

		if serviceAction == "install" && expPass == "" && config.LoadSession().Token == "" {
			fmt.Println("Error: log in first or provide --username and --password to install the service.")
			return
		}

		runService(&service.Config{
			Name:        "apm-exporter",
			DisplayName: "APM Prometheus Exporter",
			Description: "Exposes APM fleet event metrics to Prometheus",
			Arguments:   svcArgs,
		}, prg, serviceAction)
	},
}

func init() {
	rootCmd.AddCommand(exporterCmd)
	exporterCmd.Flags().StringVar(&expUser, "username", "", "Email or user name, for login and re-login")
	exporterCmd.Flags().StringVar(&expPass, "password", "", "Password")
	exporterCmd.Flags().StringVar(&expPort, "port", "9100", "Port to listen on")
	exporterCmd.Flags().StringVar(&serviceAction, "service", "", "Service action: install, uninstall, start, stop")
}
