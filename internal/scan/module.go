package scan

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/scriptscan/internal/pkg/pkgconfig"
	"github.com/shandysiswandi/scriptscan/internal/pkg/pkgrouter"
	"github.com/shandysiswandi/scriptscan/internal/pkg/pkgroutine"
	"github.com/shandysiswandi/scriptscan/internal/pkg/pkguid"
	"github.com/shandysiswandi/scriptscan/internal/scan/analyzer"
	"github.com/shandysiswandi/scriptscan/internal/scan/event"
	"github.com/shandysiswandi/scriptscan/internal/scan/inbound"
	"github.com/shandysiswandi/scriptscan/internal/scan/store"
	"github.com/shandysiswandi/scriptscan/internal/scan/usecase"
)

type Dependency struct {
	Config    pkgconfig.Config
	Goroutine *pkgroutine.Manager
	Router    *pkgrouter.Router
	Context   context.Context
	ID        pkguid.StringID
}

func New(dep Dependency) (func(context.Context) error, error) {
	cfg := dep.Config

	extension := cfg.GetString("artifact.extension")

	artifacts := analyzer.NewArtifactStore(analyzer.ArtifactConfig{
		Dir:       cfg.GetString("artifact.dir"),
		Extension: extension,
		Keep:      cfg.GetBool("artifact.keep"),
	}, nil)

	invoker := analyzer.NewInvoker(analyzer.InvokerConfig{
		Interpreter: cfg.GetString("analyzer.interpreter"),
		Args:        cfg.GetArray("analyzer.args"),
		Command:     cfg.GetString("analyzer.command"),
		Env:         cfg.GetMap("analyzer.env"),
		Timeout:     cfg.GetDuration("analyzer.timeout"),
		Extension:   extension,
	})

	runIDs, err := pkguid.NewSnowflake()
	if err != nil {
		return nil, err
	}

	if dep.ID == nil {
		dep.ID = pkguid.NewUUID()
	}

	storage := store.NewInMemoryStore(int(cfg.GetInt("store.max_runs")))
	bus := event.NewBus(512)
	consumer := event.NewFailureConsumer(bus, event.FailureReporter{}, event.ConsumerConfig{
		Workers:     2,
		MaxRetries:  3,
		BaseBackoff: 200 * time.Millisecond,
	})
	consumer.Start()

	uc := usecase.New(usecase.Dependency{
		Artifacts: artifacts,
		Analyzer:  invoker,
		Store:     storage,
		Events:    bus,
		Runner:    dep.Goroutine,
		ID:        dep.ID,
		RunID:     runIDs,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc, cfg.GetInt("server.max_upload_bytes"))

	slog.Info("scan module ready",
		"artifact_dir", artifacts.Dir(),
		"interpreter", invoker.Interpreter(),
		"timeout", invoker.Timeout(),
	)

	return consumer.Stop, nil
}
