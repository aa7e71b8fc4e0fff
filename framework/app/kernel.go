// Package app wires configuration, logging, metrics, the persistence
// container and the HTTP router into one runnable application.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/km-arc/go-persistence/framework/config"
	"github.com/km-arc/go-persistence/framework/container"
	gohttp "github.com/km-arc/go-persistence/framework/http"
	"github.com/km-arc/go-persistence/framework/providers"
	"github.com/km-arc/go-persistence/framework/routing"
)

const shutdownTimeout = 10 * time.Second

// Application is the top-level object built at bootstrap.
type Application struct {
	Config    *config.Config
	Logger    *zap.Logger
	Metrics   *prometheus.Registry
	Container *container.Container
	Router    *routing.Router
}

// Bootstrap loads the environment (and envFiles) and builds the application.
func Bootstrap(envFiles ...string) (*Application, error) {
	return New(config.Load(envFiles...))
}

// New builds the application from cfg. The default providers are
// registered first, followed by extra.
func New(cfg *config.Config, extra ...container.ServiceProvider) (*Application, error) {
	logger, err := newLogger(cfg.App)
	if err != nil {
		return nil, errors.Annotate(err, "creating logger")
	}
	logger = logger.With(zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Env))

	raw, err := cfg.Persistence(afero.NewOsFs())
	if err != nil {
		return nil, errors.Annotate(err, "loading persistence configuration")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	c, err := container.New(raw,
		container.WithLogger(logger.Named("container")),
		container.WithRegisterer(reg),
		container.WithApplicationPath(cfg.App.Path),
		container.WithProviders(append(providers.Defaults(), extra...)...),
	)
	if err != nil {
		return nil, errors.Trace(err)
	}

	a := &Application{
		Config:    cfg,
		Logger:    logger,
		Metrics:   reg,
		Container: c,
		Router:    routing.New(logger),
	}
	a.routes()
	return a, nil
}

func newLogger(cfg config.AppConfig) (*zap.Logger, error) {
	if cfg.Env == "testing" {
		return zap.NewNop(), nil
	}
	if cfg.Debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func (a *Application) routes() {
	a.Router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		gohttp.NewResponse(w).Success(map[string]any{
			"name": a.Config.App.Name,
			"env":  a.Config.App.Env,
		})
	})
	a.Router.Handle("/metrics", promhttp.HandlerFor(a.Metrics, promhttp.HandlerOpts{}))
	gohttp.NewContainerHandler(a.Container, a.Logger).Routes(a.Router)
}

// Run serves HTTP on the configured port until ctx is cancelled, then
// shuts the server down and closes every built instance.
func (a *Application) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + a.Config.App.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Annotate(err, "serving http")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if cerr := a.Container.Close(); cerr != nil && err == nil {
		err = cerr
	}
	_ = a.Logger.Sync()
	return err
}
