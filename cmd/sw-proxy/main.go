// Command sw-proxy serves the cached API and image proxy.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/sw-proxy/pkg/cache"
	"github.com/Sternrassler/sw-proxy/pkg/client"
	"github.com/Sternrassler/sw-proxy/pkg/config"
	"github.com/Sternrassler/sw-proxy/pkg/logging"
	"github.com/Sternrassler/sw-proxy/pkg/proxy"
	"github.com/Sternrassler/sw-proxy/pkg/version"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(&options{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type options struct {
	configFile string
	port       int
	logLevel   string
	logPretty  bool
}

func newRootCmd(opts *options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sw-proxy",
		Short: "Caching proxy for the Star Wars API and Visual Guide images",
		Long: `sw-proxy fronts a JSON API and an image host with an in-memory cache.

API responses are cached for 60 seconds, images for 6 hours. Images that
cannot be fetched from the primary host fall back to its HTTP mirror, then
to an image CDN, then to a placeholder SVG.`,
		Version:       version.FullString(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			logging.Setup(logging.Config{
				Level:   logging.LogLevel(cfg.LogLevel),
				Pretty:  cfg.LogPretty,
				Output:  os.Stderr,
				Service: "sw-proxy",
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", cfg.Addr())
			if err != nil {
				log.Error().Err(err).Str("addr", cfg.Addr()).Msg("Failed to bind")
				return fmt.Errorf("listen on %s: %w", cfg.Addr(), err)
			}

			return serve(ctx, cfg, ln)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "path to a YAML config file")
	flags.IntVarP(&opts.port, "port", "p", 0, "port to listen on (overrides PORT)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")
	flags.BoolVar(&opts.logPretty, "log-pretty", false, "human-readable console logs (overrides LOG_PRETTY)")

	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display detailed version information including build date, git commit, and Go version.`,
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Info()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sw-proxy version: %s\n", info["version"])
			fmt.Fprintf(out, "  build date: %s\n", info["buildDate"])
			fmt.Fprintf(out, "  git commit: %s\n", info["gitCommit"])
			fmt.Fprintf(out, "  go version: %s\n", info["goVersion"])
		},
	}
}

// loadConfig applies explicitly set flags on top of file and environment.
func loadConfig(cmd *cobra.Command, opts *options) (config.Config, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = opts.port
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if flags.Changed("log-pretty") {
		cfg.LogPretty = opts.logPretty
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// serve runs the proxy on ln until ctx is done, then drains in-flight
// requests for at most cfg.ShutdownTimeout.
func serve(ctx context.Context, cfg config.Config, ln net.Listener) error {
	logger := logging.NewLogger("server")

	engineCfg := client.DefaultConfig(cache.NewMemoryStore())
	engineCfg.Timeout = cfg.UpstreamTimeout
	engineCfg.Coalesce = cfg.Coalesce
	engine, err := client.New(engineCfg)
	if err != nil {
		return fmt.Errorf("create fetch engine: %w", err)
	}

	srv, err := proxy.New(engine, proxy.Config{
		APIBase:        cfg.APIBase,
		ImageHTTPSBase: cfg.ImageHTTPSBase,
		ImageHTTPBase:  cfg.ImageHTTPBase,
		ImageCDNBase:   cfg.ImageCDNBase,
	})
	if err != nil {
		return fmt.Errorf("create proxy: %w", err)
	}

	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	port := cfg.Port
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		port = addr.Port
	}
	logger.Info().
		Str("version", version.String()).
		Str("api", cfg.APIBase).
		Str("images", cfg.ImageHTTPSBase).
		Str("images_http", cfg.ImageHTTPBase).
		Str("cdn", cfg.ImageCDNBase).
		Bool("coalesce", cfg.Coalesce).
		Msgf("http://localhost:%d → SW:%s | VG:%s | VG(http):%s", port, cfg.APIBase, cfg.ImageHTTPSBase, cfg.ImageHTTPBase)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info().Msg("Server stopped")
	return nil
}
