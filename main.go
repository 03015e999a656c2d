package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/spf13/cobra"

	"github.com/stevemurr/simple-item-server/config"
	"github.com/stevemurr/simple-item-server/handler"
	"github.com/stevemurr/simple-item-server/service"
	"github.com/stevemurr/simple-item-server/store"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// configFile is set by the --config flag.
var configFile string

const shutdownTimeout = 10 * time.Second

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "simple-item-server",
	Short: "Simple Item Server is a CRUD API over a flat-file item store",
	Long: `Simple Item Server exposes list, get, create, update and delete for
schema-free items kept in a single CSV file (or a json, sqlite or memory
backend). Settings come from flags, environment variables and an optional
item-server.yaml.`,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile, cmd.Flags())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return serve(cmd.Context(), cfg)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "simple-item-server", version)
	},
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "config", "", "config file (default: ./item-server.yaml)")
	config.RegisterFlags(rootCmd.Flags())
	rootCmd.AddCommand(versionCmd)
}

func serve(ctx context.Context, cfg config.Config) error {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	s, err := store.New(cfg.StoreBackend, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to create store (backend=%s): %w", cfg.StoreBackend, err)
	}
	if c, ok := s.(io.Closer); ok {
		defer c.Close()
	}

	var opts []service.Option
	if cfg.SerializeWrites {
		opts = append(opts, service.SerializeWrites())
	}
	h := handler.New(
		service.New(s, opts...),
		log,
		handler.WithMiddleware(handler.CORS(cfg.AllowedOrigins)),
	)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	log.Info(
		"Simple Item Server starting",
		slog.String("addr", cfg.Addr()),
		slog.String("store", cfg.StoreBackend),
		slog.String("data", cfg.DataDir),
		slog.Bool("serialize_writes", cfg.SerializeWrites),
	)

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
