package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kardianos/service"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// program implements the kardianos/service interface around a blocking
// run function that returns once its context is cancelled.
type program struct {
	run    func(ctx context.Context) error
	log    zerolog.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

func (p *program) Start(s service.Service) error {
	// Start should not block. Do the actual work async.
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		if err := p.run(ctx); err != nil {
			// Exit so the service manager attempts a restart.
			p.log.Error().Err(err).Msg("service stopped with error")
			os.Exit(1)
		}
	}()
	return nil
}

func (p *program) Stop(s service.Service) error {
	p.log.Info().Msg("stopping service")
	if p.cancel != nil {
		p.cancel()
	}
	select {
	case <-p.done:
	case <-time.After(10 * time.Second):
		p.log.Warn().Msg("service did not stop in time")
	}
	return nil
}

// serviceArgs prefixes args with the config file in use, so the installed
// service reads the same session and settings.
func serviceArgs(args ...string) []string {
	if f := viper.ConfigFileUsed(); f != "" {
		return append([]string{"--config", f}, args...)
	}
	return args
}

// runService handles an install/uninstall/start/stop action, or runs prg in
// the foreground (or under the service manager) when action is empty.
func runService(cfg *service.Config, prg *program, action string) {
	s, err := service.New(prg, cfg)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if action != "" {
		if err := service.Control(s, action); err != nil {
			fmt.Printf("Failed to %s service: %v\n", action, err)
			os.Exit(1)
		}
		fmt.Printf("Service action '%s' completed successfully.\n", action)
		return
	}

	if err := s.Run(); err != nil {
		prg.log.Error().Err(err).Msg("service run failed")
		os.Exit(1)
	}
}
