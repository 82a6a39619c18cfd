package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/rs/cors"
	"github.com/shandysiswandi/scriptscan/internal/pkg/pkgconfig"
	"github.com/shandysiswandi/scriptscan/internal/pkg/pkglog"
	"github.com/shandysiswandi/scriptscan/internal/pkg/pkgrouter"
	"github.com/shandysiswandi/scriptscan/internal/pkg/pkgroutine"
	"github.com/shandysiswandi/scriptscan/internal/pkg/pkguid"
)

// DefaultConfigPath returns where the config file lives when no path is given.
func DefaultConfigPath() string {
	if os.Getenv("LOCAL") == "true" {
		return "./config/config.yaml"
	}
	return "/config/config.yaml"
}

func (a *App) initConfig() {
	path := a.configPath
	if path == "" {
		path = DefaultConfigPath()
	}

	cfg, err := pkgconfig.NewViper(path)
	if err != nil {
		slog.Error("failed to init config", "path", path, "error", err)
		os.Exit(1)
	}

	if tz := cfg.GetString("tz"); tz != "" {
		//nolint:errcheck,gosec // ignore error
		os.Setenv("TZ", tz)
	}

	if name := cfg.GetString("app.name"); name != "" {
		pkglog.InitLogging(name)
	}

	a.config = cfg
}

func (a *App) initLibraries() {
	workers := int(a.config.GetInt("analyzer.workers"))
	if workers < 1 {
		workers = 4
	}

	a.goroutine = pkgroutine.NewManager(workers)
	a.uuid = pkguid.NewUUID()
}

func (a *App) initHTTPServer() {
	name := a.config.GetString("app.name")
	if name == "" {
		name = pkglog.DefaultService
	}

	a.router = pkgrouter.NewRouter(name, a.uuid)

	if dir := a.config.GetString("server.assets_dir"); dir != "" {
		a.router.Files("/assets", dir)
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"*"},
	})

	a.httpServer = &http.Server{
		Addr:              a.config.GetString("server.address.http"),
		Handler:           corsHandler.Handler(a.router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.tlsCert = a.config.GetString("server.tls.cert_path")
	a.tlsKey = a.config.GetString("server.tls.key_path")
}

//nolint:unparam // is always nil
func (a *App) initClosers() {
	if a.closerFn == nil {
		a.closerFn = map[string]func(context.Context) error{}
	}

	a.closerFn["HTTP Server"] = func(ctx context.Context) error {
		return a.httpServer.Shutdown(ctx)
	}
	a.closerFn["Config"] = func(context.Context) error {
		return a.config.Close()
	}
}
