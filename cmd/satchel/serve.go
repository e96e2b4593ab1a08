package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/satchel-sh/satchel/pkg/logger"
	"github.com/satchel-sh/satchel/pkg/mcpserver"
	"github.com/satchel-sh/satchel/pkg/presenter"
	"github.com/satchel-sh/satchel/pkg/skills"
	"github.com/satchel-sh/satchel/pkg/version"
	"github.com/satchel-sh/satchel/pkg/webapi"
)

// ServeConfig holds configuration for the serve command
type ServeConfig struct {
	Host     string
	Port     int
	HTTP     bool
	Watch    bool
	Debounce time.Duration
}

// NewServeConfig creates a new ServeConfig with default values
func NewServeConfig() *ServeConfig {
	return &ServeConfig{
		Host:     "localhost",
		Port:     8080,
		Debounce: skills.DefaultWatchDebounce,
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the skill catalog to other agents",
	Long: `Serve the skill catalog over the Model Context Protocol on stdio.

The MCP server exposes list_skills, get_skill, read_skill_resource and
find_skills_by_tag tools, so any MCP-capable agent can browse the catalog
progressively. With --http the catalog is served as a read-only REST API
instead. With --watch the skill directory is watched and on-disk changes
show up in the catalog immediately instead of after the cache window.`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		config := getServeConfigFromFlags(cmd)
		runServeCommand(ctx, config)
	},
}

func init() {
	defaults := NewServeConfig()
	serveCmd.Flags().String("host", defaults.Host, "Host to bind the HTTP server to")
	serveCmd.Flags().Int("port", defaults.Port, "Port to bind the HTTP server to")
	serveCmd.Flags().Bool("http", defaults.HTTP, "Serve a read-only REST API instead of MCP stdio")
	serveCmd.Flags().Bool("watch", defaults.Watch, "Watch the skill directory and refresh the catalog on changes")
	serveCmd.Flags().Duration("debounce", defaults.Debounce, "Debounce window for filesystem events")
}

// getServeConfigFromFlags extracts serve configuration from command flags
func getServeConfigFromFlags(cmd *cobra.Command) *ServeConfig {
	config := NewServeConfig()

	if host, err := cmd.Flags().GetString("host"); err == nil {
		config.Host = host
	}
	if port, err := cmd.Flags().GetInt("port"); err == nil {
		config.Port = port
	}
	if http, err := cmd.Flags().GetBool("http"); err == nil {
		config.HTTP = http
	}
	if watch, err := cmd.Flags().GetBool("watch"); err == nil {
		config.Watch = watch
	}
	if debounce, err := cmd.Flags().GetDuration("debounce"); err == nil {
		config.Debounce = debounce
	}

	return config
}

// validateServeConfig validates the host and port for HTTP mode
func validateServeConfig(config *ServeConfig) error {
	if config.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}

	// Check if host is a valid hostname or IP address
	if config.Host != "localhost" && config.Host != "0.0.0.0" {
		if ip := net.ParseIP(config.Host); ip == nil {
			if strings.Contains(config.Host, " ") || strings.Contains(config.Host, ":") {
				return fmt.Errorf("invalid host: %s", config.Host)
			}
		}
	}

	if config.Port < 1 || config.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", config.Port)
	}

	if config.Port < 1024 {
		logger.G(context.Background()).WithField("port", config.Port).Warn("using privileged port (< 1024) may require elevated permissions")
	}

	return nil
}

func runServeCommand(ctx context.Context, config *ServeConfig) {
	loader, err := newLoader()
	if err != nil {
		presenter.Error(err, "Failed to initialize skill loader")
		os.Exit(1)
	}

	// Create a context that cancels on interrupt signals
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if config.Watch {
		watcher, err := skills.NewWatcher(loader, config.Debounce)
		if err != nil {
			presenter.Error(err, "Failed to watch skill directory")
			os.Exit(1)
		}
		defer watcher.Close()
		go func() {
			if err := watcher.Start(ctx); err != nil && err != context.Canceled {
				logger.G(ctx).WithError(err).Error("skill watcher stopped")
			}
		}()
	}

	if config.HTTP {
		runHTTPServer(ctx, loader, config)
		return
	}
	runStdioServer(ctx, loader)
}

// runHTTPServer serves the catalog as a read-only REST API
func runHTTPServer(ctx context.Context, loader *skills.Loader, config *ServeConfig) {
	if err := validateServeConfig(config); err != nil {
		presenter.Error(err, "invalid server configuration")
		os.Exit(1)
	}

	server, err := webapi.NewServer(loader, &webapi.ServerConfig{
		Host: config.Host,
		Port: config.Port,
	})
	if err != nil {
		presenter.Error(err, "Failed to create catalog API server")
		os.Exit(1)
	}

	presenter.Success(fmt.Sprintf("Catalog API starting on http://%s:%d", config.Host, config.Port))
	presenter.Info("Press Ctrl+C to stop the server")

	if err := server.Start(ctx); err != nil {
		logger.G(ctx).WithError(err).Error("catalog API error")
		presenter.Error(err, "Catalog API failed")
		os.Exit(1)
	}

	presenter.Info("Catalog API stopped")
}

// runStdioServer serves the catalog over MCP stdio
func runStdioServer(ctx context.Context, loader *skills.Loader) {
	allowlist, err := loadAllowlist()
	if err != nil {
		presenter.Error(err, "Invalid skill allowlist")
		os.Exit(1)
	}

	srv, err := mcpserver.NewServer(loader, allowlist, version.Version)
	if err != nil {
		presenter.Error(err, "Failed to create MCP server")
		os.Exit(1)
	}

	// Stdout carries the MCP protocol, so startup notices go to the log
	// stream instead of the presenter.
	log := logger.G(ctx)
	log.WithField("base_path", loader.BasePath()).Info("serving skill catalog over MCP stdio")

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ServeStdio()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down MCP server")
	case err := <-serverErr:
		if err != nil {
			log.WithError(err).Error("MCP server error")
			os.Exit(1)
		}
	}
}
