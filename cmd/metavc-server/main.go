// Command metavc-server runs the metavc remote server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/kilupskalvis/metavc/internal/remote/metastore"
	"github.com/kilupskalvis/metavc/internal/remote/server"
)

func main() {
	listen := flag.String("listen", envOrDefault("METAVC_LISTEN", "0.0.0.0:8730"), "Listen address")
	dataDir := flag.String("data-dir", envOrDefault("METAVC_DATA_DIR", "/var/lib/metavc-server"), "Data directory")
	authToken := flag.String("auth-token", os.Getenv("METAVC_AUTH_TOKEN"), "Bearer token required on API requests (empty disables auth)")
	logLevel := flag.String("log-level", envOrDefault("METAVC_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", envOrDefault("METAVC_LOG_FORMAT", "json"), "Log format (json, text)")
	tlsCert := flag.String("tls-cert", os.Getenv("METAVC_TLS_CERT"), "TLS certificate file")
	tlsKey := flag.String("tls-key", os.Getenv("METAVC_TLS_KEY"), "TLS key file")
	autoCreate := flag.Bool("auto-create", os.Getenv("METAVC_AUTO_CREATE") == "1", "Create repositories on first push")
	flag.Parse()

	// Setup logger
	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	if *logFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	reposDir := filepath.Join(*dataDir, "repos")
	if err := os.MkdirAll(reposDir, 0755); err != nil {
		logger.Error("failed to create repos directory", "error", err, "path", reposDir)
		os.Exit(1)
	}

	// Repo opener
	repos := &diskRepoOpener{
		reposDir:   reposDir,
		autoCreate: *autoCreate,
		stores:     make(map[string]metastore.MetaStore),
		logger:     logger,
	}

	// Server config
	cfg := server.DefaultServerConfig()
	cfg.AuthToken = *authToken

	// HTTP server
	srv := &http.Server{
		Addr:         *listen,
		Handler:      server.Handler(repos, cfg, logger),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(_ net.Listener) context.Context { return context.Background() },
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("starting metavc-server", "listen", *listen, "data_dir", *dataDir)
		var err error
		if *tlsCert != "" && *tlsKey != "" {
			err = srv.ListenAndServeTLS(*tlsCert, *tlsKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	repos.CloseAll()
	logger.Info("server stopped")
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// diskRepoOpener manages one bbolt metastore per repository directory.
// Repository names may contain slashes (e.g. "team/meta/lib"); the derived
// submodule locations of nested repositories map to nested directories.
type diskRepoOpener struct {
	reposDir   string
	autoCreate bool
	mu         sync.RWMutex
	stores     map[string]metastore.MetaStore
	logger     *slog.Logger
}

func (d *diskRepoOpener) Open(name string) (metastore.MetaStore, error) {
	d.mu.RLock()
	meta, ok := d.stores[name]
	d.mu.RUnlock()
	if ok {
		return meta, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// Double-check after write lock
	if meta, ok := d.stores[name]; ok {
		return meta, nil
	}

	dir, err := d.repoDir(name)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if !d.autoCreate {
			return nil, fmt.Errorf("repository '%s' not found", name)
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create repository '%s': %w", name, err)
		}
	}

	meta, err = metastore.NewBboltStore(filepath.Join(dir, "meta.db"))
	if err != nil {
		return nil, fmt.Errorf("open metastore for %s: %w", name, err)
	}

	d.stores[name] = meta
	d.logger.Info("opened repository", "name", name)

	return meta, nil
}

// repoDir validates a repository name and maps it to a directory under
// reposDir, rejecting anything that would escape it.
func (d *diskRepoOpener) repoDir(name string) (string, error) {
	if name == "" || strings.Contains(name, "\\") {
		return "", fmt.Errorf("invalid repository name: %q", name)
	}
	cleaned := filepath.ToSlash(filepath.Clean(name))
	if cleaned != name || cleaned == "." || cleaned == ".." ||
		strings.HasPrefix(cleaned, "/") || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid repository name: %q", name)
	}
	return filepath.Join(d.reposDir, filepath.FromSlash(cleaned)), nil
}

func (d *diskRepoOpener) CloseAll() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for name, meta := range d.stores {
		if err := meta.Close(); err != nil {
			d.logger.Error("close metastore", "repo", name, "error", err)
		}
	}
	d.stores = make(map[string]metastore.MetaStore)
}
