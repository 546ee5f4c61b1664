package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/samber/lo"

	"github.com/ankurauti1234/Events-Dashboard/internal/auth"
	"github.com/ankurauti1234/Events-Dashboard/internal/client"
	"github.com/ankurauti1234/Events-Dashboard/internal/config"
	"github.com/ankurauti1234/Events-Dashboard/internal/dashboard"
	"github.com/ankurauti1234/Events-Dashboard/internal/logging"
	"github.com/ankurauti1234/Events-Dashboard/internal/render"
	"github.com/ankurauti1234/Events-Dashboard/internal/store"
	"github.com/ankurauti1234/Events-Dashboard/pkg/models"
)

const fetchTimeout = time.Minute

// settings resolves the config, applying the --timezone override.
func settings() config.Settings {
	s := config.Load()
	if zoneFlag != "" {
		s.Timezone = zoneFlag
	}
	return s
}

// session returns the stored session or exits with a hint to log in.
func session() auth.Session {
	sess := config.LoadSession()
	if err := sess.Check(time.Now()); err != nil {
		fmt.Printf("Error: %v\n", err)
		if errors.Is(err, auth.ErrSessionExpired) {
			_ = config.ClearSession()
			fmt.Println("Run 'apm login' to start a new session.")
		}
		os.Exit(1)
	}
	return sess
}

func newClient(token string) *client.APMClient {
	return client.New(client.ClientConfig{
		BaseURL: settings().APIURL,
		Token:   token,
		Retries: 2,
		Debug:   debug,
	})
}

// openStore opens the recent devices database. Failures only disable the
// suggestions.
func openStore() *store.Store {
	st, err := store.Open(settings().DBPath)
	if err != nil {
		log := logging.New("cmd")
		log.Warn().Err(err).Msg("recent devices unavailable")
		return nil
	}
	return st
}

func remember(owner, id string) {
	st := openStore()
	if st == nil {
		return
	}
	defer st.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := st.Remember(ctx, owner, id); err != nil {
		log := logging.New("cmd")
		log.Warn().Err(err).Str("device", id).Msg("failed to remember device")
	}
}

func printJSON(v interface{}) {
	if err := render.JSON(os.Stdout, v); err != nil {
		fmt.Printf("Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

// fail reports a fetch error the way the dashboard does and exits. An auth
// error also drops the stored session.
func fail(err error) {
	if client.IsAuthError(err) {
		_ = config.ClearSession()
		fmt.Println("Error: session expired, please log in again with 'apm login'.")
		os.Exit(1)
	}
	fmt.Printf("Error fetching data: %v\n", err)
	os.Exit(1)
}

// run calls fetch once, or repeatedly when watching until interrupted.
func run(watching bool, interval time.Duration, fetch func(ctx context.Context) error) {
	if !watching {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		if err := fetch(ctx); err != nil {
			fail(err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := dashboard.NewRefresher(interval, func(ctx context.Context) error {
		// clear screen, cursor home
		fmt.Print("\033[H\033[2J")
		return fetch(ctx)
	}, logging.New("watch"))
	r.OnError = func(err error) {
		if client.IsAuthError(err) {
			stop()
			fail(err)
		}
		fmt.Printf("Error fetching data: %v (retrying in %s)\n", err, interval)
	}
	_ = r.Run(ctx)
}

// parseType accepts a numeric code or an event name such as LOGO_DETECTED.
func parseType(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if code, err := strconv.Atoi(s); err == nil && models.TypeName(code) != "" {
		return code, nil
	}
	code, ok := lo.Find(models.FleetTypes, func(code int) bool {
		return strings.EqualFold(models.TypeName(code), s)
	})
	if !ok {
		names := lo.Map(models.FleetTypes, func(code int, _ int) string { return models.TypeName(code) })
		return 0, fmt.Errorf("unknown event type %q (choose one of: %s)", s, strings.Join(names, ", "))
	}
	return code, nil
}
