// Package server boots the backends, wires the repositories and serves HTTP
// and gRPC until the context ends.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	gql "github.com/graphql-go/graphql"

	"github.com/shashiranjanraj/campusmart/app/graphql"
	"github.com/shashiranjanraj/campusmart/app/repositories"
	"github.com/shashiranjanraj/campusmart/app/routes"
	"github.com/shashiranjanraj/campusmart/app/services"
	"github.com/shashiranjanraj/campusmart/config"
	"github.com/shashiranjanraj/campusmart/internal/kernel"
	"github.com/shashiranjanraj/campusmart/pkg/cache"
	"github.com/shashiranjanraj/campusmart/pkg/docstore"
	"github.com/shashiranjanraj/campusmart/pkg/event"
	grpcserver "github.com/shashiranjanraj/campusmart/pkg/grpc"
	"github.com/shashiranjanraj/campusmart/pkg/identity"
	"github.com/shashiranjanraj/campusmart/pkg/logger"
	"github.com/shashiranjanraj/campusmart/pkg/router"
	"github.com/shashiranjanraj/campusmart/pkg/storage"
)

const shutdownTimeout = 10 * time.Second

// App is the wired application.
type App struct {
	Store    docstore.Store
	Cache    cache.Store
	Disk     storage.Disk
	Events   *event.Dispatcher
	Identity *identity.Service

	Users    *repositories.UserRepository
	Products *repositories.ProductRepository
	Cart     *repositories.CartRepository
	Comments *repositories.CommentRepository
	Admin    *repositories.AdminRepository
	Auth     *services.AuthService
	Schema   gql.Schema

	closers []func(context.Context) error
}

// New wires the repositories and services over already opened backends.
// disk may be nil.
func New(store docstore.Store, c cache.Store, disk storage.Disk, opts identity.Options) (*App, error) {
	events := event.New()
	provider := identity.NewService(store, c, events, opts)

	products := repositories.NewProductRepository(store, disk)
	comments := repositories.NewCommentRepository(store)
	users := repositories.NewUserRepository(store)

	schema, err := graphql.NewSchema(products, comments)
	if err != nil {
		return nil, fmt.Errorf("server: graphql schema: %w", err)
	}

	auth := services.NewAuthService(provider, users)
	audit := auth.OnAuthStateChanged(func(sc identity.StateChange) {
		logger.Info("auth state changed", "uid", sc.UID, "signed_in", sc.SignedIn)
	})

	return &App{
		Store:    store,
		Cache:    c,
		Disk:     disk,
		Events:   events,
		Identity: provider,
		Users:    users,
		Products: products,
		Cart:     repositories.NewCartRepository(store, products),
		Comments: comments,
		Admin:    repositories.NewAdminRepository(store),
		Auth:     auth,
		Schema:   schema,
		closers:  []func(context.Context) error{func(context.Context) error { audit(); return nil }},
	}, nil
}

// Boot opens the backends selected by configuration and wires the App.
func Boot(ctx context.Context) (*App, error) {
	if err := config.Load(); err != nil {
		return nil, err
	}

	var closers []func(context.Context) error
	fail := func(err error) (*App, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i](context.Background())
		}
		return nil, err
	}

	store, err := openStore(ctx)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, store.Close)

	if m, ok := store.(*docstore.Mongo); ok && config.LogToMongo() {
		sink := logger.NewMongoHandler(ctx, m.Database().Collection("logs"), slog.LevelInfo)
		logger.Use(logger.NewMultiHandler(logger.ConsoleHandler(), sink))
		closers = append(closers, func(context.Context) error { sink.Close(); return nil })
	}

	c, err := cache.Connect(ctx)
	if err != nil {
		return fail(fmt.Errorf("server: cache: %w", err))
	}
	if r, ok := c.(*cache.Redis); ok {
		closers = append(closers, func(context.Context) error { return r.Close() })
	}

	disk, err := storage.Open(ctx, config.StorageDefault())
	if err != nil {
		return fail(fmt.Errorf("server: storage: %w", err))
	}
	if disk == nil {
		logger.Warn("blob storage disabled, new products get the placeholder image")
	}

	app, err := New(store, c, disk, identity.OptionsFromConfig())
	if err != nil {
		return fail(err)
	}
	app.closers = append(closers, app.closers...)

	if err := app.EnsureIndexes(ctx); err != nil {
		logger.Warn("index setup failed, ordered queries will fall back", "error", err)
	}
	return app, nil
}

func openStore(ctx context.Context) (docstore.Store, error) {
	switch config.DocstoreDriver() {
	case "memory":
		logger.Warn("using the in-memory document store, data is lost on exit")
		return docstore.NewMemory(), nil
	default:
		store, err := docstore.ConnectMongo(ctx, config.MongoURI(), config.MongoDB(), config.DocstorePollInterval())
		if err != nil {
			return nil, fmt.Errorf("server: docstore: %w", err)
		}
		logger.Info("docstore connected", "driver", "mongo", "database", config.MongoDB())
		return store, nil
	}
}

// EnsureIndexes creates the composite and unique indexes the repositories
// rely on.
func (a *App) EnsureIndexes(ctx context.Context) error {
	return a.Store.EnsureIndexes(ctx, repositories.Indexes()...)
}

// Health reports whether the document backend is reachable.
func (a *App) Health(ctx context.Context) error { return a.Store.Ping(ctx) }

// Routes registers the API on r.
func (a *App) Routes(r *router.Router) {
	routes.RegisterAPI(r, routes.Deps{
		Identity: a.Identity,
		Auth:     a.Auth,
		Users:    a.Users,
		Products: a.Products,
		Cart:     a.Cart,
		Comments: a.Comments,
		Admin:    a.Admin,
		Schema:   a.Schema,
		Health:   a.Health,
	})
}

// Handler is the full HTTP handler: global middleware and the API.
func (a *App) Handler() http.Handler {
	return kernel.NewHTTPKernel(a.Cache, a.Routes).Handler()
}

// Close releases the backends in reverse order of opening.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Serve runs the HTTP server on APP_PORT and the gRPC health server on
// GRPC_PORT until ctx ends, then shuts both down gracefully.
func Serve(ctx context.Context, app *App) error {
	grpcSrv, _, err := grpcserver.Start(config.GRPCPort(), app.Health)
	if err != nil {
		return err
	}
	defer grpcserver.Stop(grpcSrv)

	// No write timeout: live feeds hold their responses open.
	srv := &http.Server{
		Addr:              ":" + config.AppPort(),
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", "addr", srv.Addr, "env", config.AppEnv())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	logger.Info("server exited")
	return nil
}
