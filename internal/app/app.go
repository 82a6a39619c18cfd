package app

import (
	"context"
	"net/http"

	"github.com/shandysiswandi/scriptscan/internal/pkg/pkgconfig"
	"github.com/shandysiswandi/scriptscan/internal/pkg/pkglog"
	"github.com/shandysiswandi/scriptscan/internal/pkg/pkgrouter"
	"github.com/shandysiswandi/scriptscan/internal/pkg/pkgroutine"
	"github.com/shandysiswandi/scriptscan/internal/pkg/pkguid"
)

type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	configPath string
	config     pkgconfig.Config

	// libraries
	uuid      pkguid.StringID
	goroutine *pkgroutine.Manager

	// server
	router     *pkgrouter.Router
	httpServer *http.Server
	tlsCert    string
	tlsKey     string

	//
	closerFn map[string]func(context.Context) error
}

// New wires the application from the config file at configPath.
func New(configPath string) *App {
	pkglog.InitLogging(pkglog.DefaultService)

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:        ctx,
		cancel:     cancel,
		configPath: configPath,
	}

	app.initConfig()
	app.initLibraries()
	app.initHTTPServer()
	app.initModules()
	app.initClosers()

	return app
}
