package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/antarasi/authgate"
	"github.com/antarasi/authgate/observe"
	"github.com/antarasi/authgate/repository"
	"github.com/antarasi/authgate/transport/rest"
	"github.com/antarasi/authgate/transport/socket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	"github.com/spf13/pflag"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(debug bool) *glog.BaseLogger {
	if debug {
		return glog.NewLogger(
			glog.WithLoggerTypePretty(),
			glog.WithLevel(glog.Trace),
			glog.WithName("authgate"),
			glog.WithAddSource(true),
			glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
		)
	}
	return glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithName("authgate"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
	)
}

func run(ctx context.Context, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	lgr := newLogger(cfg.Debug)
	logger := lgr.GetLogger("app")
	logger.Debug("config loaded", "config", print.MaybePrettyJSON(cfg))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())
	defer db.Close()

	mngr := repository.NewRepositoryManager(db)
	mngr.MustValidate()
	if err := mngr.Migrate(ctx); err != nil {
		return err
	}

	metrics, err := observe.NewProvider(cfg.Metrics)
	if err != nil {
		return err
	}
	counters, err := observe.NewMetricsSink(metrics.Meter("github.com/antarasi/authgate"))
	if err != nil {
		return err
	}
	sink := authgate.MultiSink{counters, activityLog(lgr.GetLogger("auth:activity"))}

	tokens, err := authgate.NewTokenService(cfg.Auth, authgate.WithTokenLogger(lgr.GetLogger("auth:tokens")))
	if err != nil {
		return err
	}

	provider := authgate.NewUserProvider(mngr.Users()).
		WithBcryptCost(cfg.Auth.GetBcryptCost()).
		WithLogger(lgr.GetLogger("auth:prv"))

	auther := authgate.NewAuthenticator(provider, tokens).
		WithLogger(lgr.GetLogger("auth:authz")).
		WithActivitySink(sink)

	users := authgate.NewUsersService(mngr.Users(), cfg.Auth).
		WithLogger(lgr.GetLogger("users")).
		WithHashid(cfg.Hashid)

	gateway := authgate.NewGateway(auther).
		WithLogger(lgr.GetLogger("gateway")).
		WithActivitySink(sink).
		Use("users", users, authgate.DefaultUserHooks())

	sockets := socket.NewHandler(gateway,
		socket.WithLogger(lgr.GetLogger("socket")),
		socket.WithBaseContext(ctx),
	)

	opts := []rest.Option{
		rest.WithLogger(lgr.GetLogger("rest")),
		rest.WithAuthScheme(cfg.Auth.GetAuthScheme()),
		rest.WithMount(sockets.Mount(cfg.SocketPath)),
		rest.WithIndexData(fiber.Map{"socket": cfg.SocketPath}),
	}
	if cfg.ViewsDir != "" {
		opts = append(opts, rest.WithViews(os.DirFS(cfg.ViewsDir)))
	}
	if metrics.Handler != nil {
		opts = append(opts, rest.WithMount(func(app *fiber.App) {
			app.Get(cfg.MetricsPath, adaptor.HTTPHandler(metrics.Handler))
		}))
	}

	srv, err := rest.New(gateway, opts...)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", "addr", cfg.Listen, "socket", cfg.SocketPath, "metrics", cfg.Metrics)
		return srv.Listen(cfg.Listen)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
		defer cancel()

		return errors.Join(srv.Shutdown(sctx), metrics.Shutdown(sctx))
	})

	return g.Wait()
}

// activityLog writes every activity event to logger at debug level
func activityLog(logger authgate.Logger) authgate.ActivitySink {
	return authgate.ActivitySinkFunc(func(_ context.Context, event authgate.ActivityEvent) error {
		logger.Debug("activity",
			"event", event.EventType,
			"user_id", event.UserID,
			"provider", event.Provider,
			"metadata", event.Metadata,
		)
		return nil
	})
}

func shutdownTimeout(cfg Config) time.Duration {
	if cfg.ShutdownTimeout <= 0 {
		return 10 * time.Second
	}
	return cfg.ShutdownTimeout
}
