// MediaWiki Bot MCP Server - A Model Context Protocol server that drives a
// rate-limited MediaWiki bot session over stdio.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/olgasafonova/mediawiki-bot/tools"
	"github.com/olgasafonova/mediawiki-bot/tracing"
	"github.com/olgasafonova/mediawiki-bot/wiki"
)

const (
	ServerName    = "mediawiki-bot"
	ServerVersion = "1.0.0"
)

// loginTimeout bounds the startup login, which may wait behind the throttle
const loginTimeout = 2 * time.Minute

const instructions = `MediaWiki Bot provides tools for reading and editing a MediaWiki wiki through one bot session.

All calls share a single request queue that sends at most one request per configured interval (6s by default), so tools may take a while when several are used together.

Available tools:
- wiki_login / wiki_logout: Manage the session
- wiki_whoami / wiki_userinfo: Inspect the session
- wiki_get_page / wiki_get_revision: Read page text
- wiki_history: Recent revisions of a page
- wiki_category_members: Pages and subcategories of a category
- wiki_edit_page / wiki_add_section: Write to pages

Configure via environment variables:
- MEDIAWIKI_URL: Wiki API URL (e.g., https://wiki.example.com/w/api.php)
- MEDIAWIKI_RATE: Interval between requests (e.g., 6s or 6000)
- MEDIAWIKI_USERNAME / MEDIAWIKI_PASSWORD: Log in at startup`

func main() {
	configPath := flag.String("config", "", "YAML config file (environment variables override it)")
	metricsAddr := flag.String("metrics-addr", os.Getenv("METRICS_ADDR"), "Address for the Prometheus /metrics listener (disabled when empty)")
	flag.Parse()

	// Configure logging to stderr (stdout is used for MCP protocol)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	config, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, tracing.DefaultConfig())
	if err != nil {
		log.Fatalf("Failed to set up tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("Tracing shutdown failed", "error", err)
		}
	}()

	bot, err := wiki.New(*config, wiki.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}
	defer bot.Close()

	if srv := startMetricsServer(*metricsAddr, logger); srv != nil {
		defer func() { _ = srv.Close() }()
	}

	autoLogin(ctx, bot, config, logger)

	server := newServer(bot, logger)

	logger.Info("Starting MediaWiki Bot MCP Server",
		"name", ServerName,
		"version", ServerVersion,
		"wiki_url", config.BaseURL,
		"rate", config.Rate,
	)

	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server error", "error", err)
	}
}

// loadConfig reads the YAML file at path, or the environment alone when path is empty.
func loadConfig(path string) (*wiki.Config, error) {
	if path == "" {
		return wiki.LoadConfig()
	}
	return wiki.LoadConfigFile(path)
}

// newServer builds the MCP server with every wiki tool registered.
func newServer(bot *wiki.Bot, logger *slog.Logger) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: ServerVersion,
	}, &mcp.ServerOptions{
		Instructions: instructions,
	})
	tools.NewHandlerRegistry(bot, logger).RegisterAll(server)
	return server
}

// autoLogin logs in with configured credentials. Failure is logged and the
// server keeps running with an anonymous session.
func autoLogin(ctx context.Context, bot *wiki.Bot, config *wiki.Config, logger *slog.Logger) bool {
	if !config.HasCredentials() {
		logger.Info("No credentials configured, running anonymously")
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()

	name, err := bot.Login(config.Username, config.Password).Wait(ctx)
	if err != nil {
		logger.Warn("Startup login failed", "username", config.Username, "error", err)
		return false
	}
	logger.Info("Logged in at startup", "username", name)
	return true
}

// newMetricsHandler serves the Prometheus registry.
func newMetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintln(w, "ok")
	})
	return mux
}

// startMetricsServer listens on addr in the background. It returns nil when addr is empty.
func startMetricsServer(addr string, logger *slog.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           newMetricsHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Metrics listener started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics listener failed", "addr", addr, "error", err)
		}
	}()
	return srv
}
