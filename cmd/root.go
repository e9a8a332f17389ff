package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"bikemetro/config"
	"bikemetro/internal/api"
	"bikemetro/internal/app"
	"bikemetro/internal/session"
	"bikemetro/internal/status"
	"bikemetro/monitoring"
	"bikemetro/utils"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// env is everything a command needs, built once per invocation.
type env struct {
	cfg    *config.Config
	store  session.Store
	client *api.Client
	state  *app.State
	redis  *redis.Client
}

func (e *env) Close() error {
	if e.redis != nil {
		return e.redis.Close()
	}
	return nil
}

type envFactory func(ctx context.Context) (*env, error)

type envKey struct{}

func envFrom(cmd *cobra.Command) *env {
	e, _ := cmd.Context().Value(envKey{}).(*env)
	return e
}

// Execute runs the CLI until it finishes or a shutdown signal arrives.
func Execute() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup graceful shutdown
	go handleShutdown(cancel)

	root := newRootCmd(newEnv)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, colorError.Sprint(status.Message(err)))
		return err
	}
	return nil
}

func newRootCmd(factory envFactory) *cobra.Command {
	root := &cobra.Command{
		Use:           "bikemetro",
		Short:         "Reserve bike parking at metro stations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			e, err := factory(cmd.Context())
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), envKey{}, e))

			// A failed revalidation is a logout, not an error.
			if err := e.state.Init(cmd.Context()); err != nil {
				slog.Warn("could not restore session", "error", err)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if e := envFrom(cmd); e != nil {
				return e.Close()
			}
			return nil
		},
	}

	root.AddCommand(
		newLoginCmd(),
		newRegisterCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newProfileCmd(),
		newStationsCmd(),
		newSpacesCmd(),
		newReserveCmd(),
		newActiveCmd(),
		newHistoryCmd(),
		newShowCmd(),
		newCancelCmd(),
		newConfirmCmd(),
		newFinishCmd(),
		newBadgeCmd(),
	)
	return root
}

// newEnv loads configuration and wires the client stack.
func newEnv(ctx context.Context) (*env, error) {
	// Load configuration
	cfg := config.LoadConfig()
	setupLogger(cfg)

	// Initialize session storage
	var (
		store session.Store
		rdb   *redis.Client
	)
	if cfg.RedisURL != "" {
		client, err := utils.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			slog.Warn("redis unavailable, session will not persist", "error", err)
		} else {
			rdb = client
			store = session.NewRedisStore(client, cfg.SessionKeyPrefix)
		}
	}
	if store == nil {
		store = session.NewMemoryStore()
	}

	e := wireEnv(cfg, store)
	e.redis = rdb
	return e, nil
}

func wireEnv(cfg *config.Config, store session.Store) *env {
	breaker := utils.NewCircuitBreaker("api", cfg.BreakerMaxFailures, cfg.BreakerTimeout)
	breaker.OnStateChange = recordBreakerState

	client := api.NewClient(cfg.BaseURL, cfg.APITimeout, store, api.WithBreaker(breaker))

	slog.Debug("client configured", "base_url", cfg.BaseURL, "environment", cfg.Environment, "target", cfg.Target)
	return &env{
		cfg:    cfg,
		store:  store,
		client: client,
		state:  app.New(client, store),
	}
}

// recordBreakerState exports transitions; the breaker logs them itself.
func recordBreakerState(name string, _, to utils.State) {
	monitoring.SetBreakerState(name, int(to))
}

func setupLogger(cfg *config.Config) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	slog.SetDefault(slog.New(handler))
}

// requireUser fails fast when no one is signed in.
func requireUser(e *env) error {
	if !e.state.Authenticated() {
		return fmt.Errorf("%w: run `bikemetro login` first", status.ErrNoSession)
	}
	return nil
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("Shutdown signal received, cleaning up...")
	cancel()
}
