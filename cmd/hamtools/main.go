package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/user00265/hamtools/internal/api"
	"github.com/user00265/hamtools/internal/config"
	"github.com/user00265/hamtools/internal/ctydb"
	"github.com/user00265/hamtools/internal/ctyfetch"
	"github.com/user00265/hamtools/internal/ctystore"
	"github.com/user00265/hamtools/internal/db"
	"github.com/user00265/hamtools/internal/logging"
	"github.com/user00265/hamtools/internal/metrics"
	"github.com/user00265/hamtools/internal/redisclient"
	"github.com/user00265/hamtools/version"
)

// stdout receives command output; tests replace it.
var stdout io.Writer = os.Stdout

// exitError carries a specific exit status out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitf(code int, format string, v ...interface{}) error {
	return &exitError{code: code, err: fmt.Errorf(format, v...)}
}

func main() {
	status := RunApplication(context.Background(), os.Args[1:])
	if status != 0 {
		os.Exit(status)
	}
}

// RunApplication runs the application and returns its exit code: 0 on
// success, 1 when the country database or configuration cannot be
// loaded, 2 on usage errors and 3 when the HTTP server fails.
func RunApplication(ctx context.Context, args []string) int {
	var cfg config.Config
	root := newRootCmd(&cfg)
	root.SetArgs(args)
	root.SetOut(stdout)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		logging.Crit("%v", ee.err)
		return ee.code
	}
	logging.Error("%v", err)
	return 2
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "hamtools",
		Short:         "DXCC entity and WPX prefix lookups for amateur radio callsigns",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()
			loaded, err := config.LoadConfig()
			if err != nil {
				log.Printf("FATAL: Failed to load configuration: %v", err)
				return exitf(1, "failed to load configuration: %w", err)
			}
			*cfg = *loaded
			logConfiguration(cfg)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), cfg)
		},
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the HTTP API",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServer(cmd.Context(), cfg)
			},
		},
		&cobra.Command{
			Use:   "healthcheck",
			Short: "Validate the configuration and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "Health check successful")
				return err
			},
		},
		newLookupCmd(cfg),
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
				return nil
			},
			RunE: func(cmd *cobra.Command, args []string) error {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), version.UserAgent)
				return err
			},
		},
	)
	return root
}

func newLookupCmd(cfg *config.Config) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "lookup CALLSIGN...",
		Short: "Print the DXCC entity and WPX prefix of each callsign",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(format)
			if format != "json" && format != "yaml" {
				return fmt.Errorf("unknown output format %q (json or yaml)", format)
			}
			return runLookup(cmd.Context(), cfg, args, format, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", "json", "output format: json or yaml")
	return cmd
}

// setupLogging applies LOG_LEVEL.
func setupLogging() {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		lvl, err := logging.ParseLevel(v)
		if err != nil {
			logging.Warn("Unrecognized LOG_LEVEL=%q; valid: crit,error,warn,notice,info,debug or 0-5. Using default (NOTICE).", v)
		}
		logging.SetLevel(lvl)
	}
	logging.Notice("Starting %s %s (+%s)", version.ProjectName, version.ProjectVersion, version.ProjectGitHubURL)
}

func logConfiguration(cfg *config.Config) {
	logging.Notice("Configuration loaded. WebPort: %d, DataDir: %s", cfg.WebPort, cfg.DataDir)
	if cfg.CtyFile != "" {
		logging.Notice("Country file: %s (charset %s). Downloads disabled.", cfg.CtyFile, cfg.CtyCharset)
	} else {
		logging.Notice("Country file URL: %s, update interval: %s", cfg.CtyURL, cfg.CtyUpdateInterval)
	}
	if cfg.Redis.Enabled {
		logging.Notice("Redis snapshot cache enabled. Host: %s:%s, DB: %d, TLS: %t", cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.DB, cfg.Redis.UseTLS)
	} else {
		logging.Info("Redis snapshot cache disabled.")
	}
}

// services holds what both the server and the lookup command need.
type services struct {
	manager *ctydb.Manager
	rdb     *redisclient.Client
	dbc     *db.SQLiteClient
}

func (s *services) Close() {
	if err := s.manager.Close(); err != nil {
		logging.Error("Error stopping country database updater: %v", err)
	}
	if s.rdb != nil {
		s.rdb.Close()
	}
	if s.dbc != nil {
		if err := s.dbc.Close(); err != nil {
			logging.Error("Error closing SQLite client: %v", err)
		}
	}
}

// initializeServices opens the optional backing stores and loads the
// country database.
func initializeServices(ctx context.Context, cfg *config.Config, met *metrics.Metrics) (*services, error) {
	s := &services{}
	opts := ctydb.Options{
		CtyFile:        cfg.CtyFile,
		CtyURL:         cfg.CtyURL,
		Charset:        cfg.CtyCharset,
		UpdateInterval: cfg.CtyUpdateInterval,
		Metrics:        met,
	}

	if cfg.CtyFile == "" {
		opts.Downloader = ctyfetch.New(cfg.DownloadRetries)

		dbc, err := db.NewSQLiteClient(cfg.DataDir, ctystore.DBFileName)
		if err != nil {
			logging.Warn("SQLite snapshot unavailable: %v. Continuing without it.", err)
		} else if store, err := ctystore.New(dbc); err != nil {
			logging.Warn("SQLite snapshot unavailable: %v. Continuing without it.", err)
			dbc.Close()
		} else {
			s.dbc = dbc
			opts.Store = store
		}

		if cfg.Redis.Enabled {
			rdb, err := redisclient.NewClient(ctx, cfg.Redis)
			if err != nil {
				logging.Warn("Redis client initialization failed: %v. Continuing without Redis.", err)
			} else {
				logging.Notice("Redis client initialized and connected.")
				s.rdb = rdb
				opts.Cache = rdb
			}
		}
	}

	s.manager = ctydb.New(opts)
	logging.Notice("Loading country database...")
	if err := s.manager.Load(ctx); err != nil {
		s.Close()
		return nil, err
	}
	st := s.manager.Stats()
	logging.Notice("Country database ready: %d entities, %d entries (%s).", st.Entities, st.Entries, st.Origin)
	return s, nil
}

func runLookup(ctx context.Context, cfg *config.Config, calls []string, format string, out io.Writer) error {
	svc, err := initializeServices(ctx, cfg, nil)
	if err != nil {
		return exitf(1, "cannot load country database: %w", err)
	}
	defer svc.Close()

	encode := func(v any) error {
		enc := json.NewEncoder(out)
		enc.SetEscapeHTML(false)
		return enc.Encode(v)
	}
	if format == "yaml" {
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		encode = enc.Encode
	}

	res := svc.manager.Resolver()
	for _, call := range calls {
		if err := encode(api.Lookup(res, strings.ToUpper(strings.TrimSpace(call)))); err != nil {
			return exitf(1, "failed to write lookup result: %w", err)
		}
	}
	return nil
}

func runServer(ctx context.Context, cfg *config.Config) error {
	met := metrics.New()
	svc, err := initializeServices(ctx, cfg, met)
	if err != nil {
		return exitf(1, "cannot start without a country database: %w", err)
	}
	defer svc.Close()
	svc.manager.StartUpdater(ctx)

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter()
	api.SetupRoutes(router.Group(cfg.BaseURL), svc.manager, svc.rdb, met)

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.WebPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return exitf(1, "HTTP server cannot listen on %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logging.Info("HTTP API listening on %s (BaseURL: %s)", addr, cfg.BaseURL)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return gracefulShutdown(gctx, srv)
	})
	if err := g.Wait(); err != nil {
		return &exitError{code: 3, err: err}
	}
	return nil
}

// gracefulShutdown waits for a signal or ctx cancellation and then stops
// the HTTP server.
func gracefulShutdown(ctx context.Context, srv *http.Server) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		logging.Info("Received OS shutdown signal. Shutting down server...")
	case <-ctx.Done():
		logging.Info("Context cancelled. Shutting down server...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logging.Info("Server exited gracefully.")
	return nil
}
