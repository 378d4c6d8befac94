package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"sitecnd/internal/app"
	"sitecnd/internal/config"
	"sitecnd/internal/httpapi"
)

type serveFlags struct {
	config      string
	addr        string
	store       string
	logLevel    string
	logFormat   string
	modelPath   string
	corsOrigins string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sitecnd",
		Short:         "Per-site theming daemon backed by an on-device model",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})
	return root
}

func newServeCmd() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP daemon",
		Example: "  sitecnd serve --config ~/.sitecnd/config.yaml\n  sitecnd serve --store memory: --log-format console",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, f)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, cmd.ErrOrStderr())
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.config, "config", "", "Config file (.yaml, .json or .toml)")
	fl.StringVar(&f.addr, "addr", "", "HTTP listen address (defaults SITECND_ADDR or 127.0.0.1:8790)")
	fl.StringVar(&f.store, "store", "", "Store DSN: memory:, sqlite:<path> or postgres://...")
	fl.StringVar(&f.logLevel, "log-level", "", "Log level: debug|info|warn|error")
	fl.StringVar(&f.logFormat, "log-format", "", "Log format: json|console")
	fl.StringVar(&f.modelPath, "model-path", "", "GGUF model file or directory")
	fl.StringVar(&f.corsOrigins, "cors-origins", "", "Comma-separated origins allowed by CORS; enables CORS")
	return cmd
}

// resolveConfig layers defaults, the config file, SITECND_* variables and
// flags, in that order.
func resolveConfig(cmd *cobra.Command, f serveFlags) (config.Config, error) {
	cfg := config.Default()
	if f.config != "" {
		loaded, err := config.Load(f.config)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	config.FromEnv(&cfg)
	fl := cmd.Flags()
	if fl.Changed("addr") {
		cfg.Addr = f.addr
	}
	if fl.Changed("store") {
		cfg.Store = f.store
	}
	if fl.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if fl.Changed("log-format") {
		cfg.LogFormat = f.logFormat
	}
	if fl.Changed("model-path") {
		cfg.Model.Path = f.modelPath
	}
	if origins := splitCSV(f.corsOrigins); len(origins) > 0 {
		cfg.HTTP.CORS.Enabled = true
		cfg.HTTP.CORS.Origins = origins
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

func newLogger(level, format string, w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level %q: %w", level, err)
	}
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

func serve(ctx context.Context, cfg config.Config, logOut io.Writer) error {
	log, err := newLogger(cfg.LogLevel, cfg.LogFormat, logOut)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log, app.Options{})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("close")
		}
	}()

	httpapi.SetLogger(log.With().Str("component", "http").Logger())
	httpapi.SetBaseContext(ctx)
	httpapi.SetMaxBodyBytes(cfg.HTTP.MaxBodyBytes)
	httpapi.SetMessageTimeout(cfg.HTTP.MessageTimeout.D())
	httpapi.SetMaxObservers(cfg.HTTP.MaxEventStreams)
	httpapi.SetCORSOptions(cfg.HTTP.CORS.Enabled, cfg.HTTP.CORS.Origins, cfg.HTTP.CORS.Methods, cfg.HTTP.CORS.Headers)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(a),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("store", redactDSN(cfg.Store)).Bool("swagger", httpapi.SwaggerEnabled).Msg("sitecnd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	return nil
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// redactDSN hides a password in a postgres URL.
func redactDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	creds := dsn[scheme+3 : at]
	if i := strings.Index(creds, ":"); i >= 0 {
		return dsn[:scheme+3] + creds[:i] + ":***" + dsn[at:]
	}
	return dsn
}
