package app

import (
	"context"
	"log/slog"
	"os"

	"github.com/shandysiswandi/scriptscan/internal/scan"
)

func (a *App) initModules() {
	if a.config.GetBool("modules.scan.enabled") {
		closer, err := scan.New(scan.Dependency{
			Config:    a.config,
			Router:    a.router,
			Goroutine: a.goroutine,
			Context:   a.ctx,
			ID:        a.uuid,
		})
		if err != nil {
			slog.Error("failed to init module scan", "error", err)
			os.Exit(1)
		}
		if closer != nil {
			if a.closerFn == nil {
				a.closerFn = map[string]func(context.Context) error{}
			}
			a.closerFn["Scan"] = closer
		}
	}
}
