package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-auth-session/auth"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/internal/logging"
	"github.com/jrsteele09/go-auth-session/internal/metrics"
	"github.com/jrsteele09/go-auth-session/navigation"
	"github.com/jrsteele09/go-auth-session/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const usage = `usage: authctl <command> [flags]

commands:
  status                  restore the saved session and print it
  login -email <address>  sign in, reading the password from stdin
  logout                  sign out and forget the saved session
  refresh                 renew the saved session
  watch [-metrics-addr]   keep the session fresh until interrupted
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err := run(os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		msg := err.Error()
		var d store.Describer
		if errors.As(err, &d) {
			msg = d.Description()
		}
		fmt.Fprintln(os.Stderr, msg)
		log.Debug().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func run(command string, args []string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return err
	}

	logger := logging.New(c.GetLogLevel())
	log.Logger = logger
	displayAppname(c.GetAppName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	recorder, err := metrics.NewPrometheus(registry)
	if err != nil {
		return err
	}

	app, err := newApp(ctx, c, logger, recorder)
	if err != nil {
		return err
	}
	defer app.close()
	app.registry = registry

	switch command {
	case "status":
		return app.status(ctx)
	case "login":
		return app.login(ctx, args)
	case "logout":
		return app.logout(ctx)
	case "refresh":
		return app.refresh(ctx)
	case "watch":
		return app.watch(ctx, args)
	case "help", "-h", "--help":
		fmt.Fprint(os.Stdout, usage)
		return nil
	}
	fmt.Fprint(os.Stderr, usage)
	return fmt.Errorf("unknown command %q", command)
}

// newApp wires the store, controller and navigation guard.
func newApp(ctx context.Context, c config.Config, logger zerolog.Logger, recorder metrics.Recorder) (*app, error) {
	repo, closeRepo, err := newRepo(ctx, c)
	if err != nil {
		return nil, err
	}

	p, err := newProvider(ctx, c, repo)
	if err != nil {
		closeRepo()
		return nil, err
	}

	st := store.New(store.WithLogger(logger))
	controller, err := auth.NewController(st, p,
		auth.WithLogger(logger),
		auth.WithMetrics(recorder),
		auth.WithCommandTimeout(c.GetRequestTimeout()),
		auth.WithExpiryLeeway(c.GetExpiryLeeway()),
	)
	if err != nil {
		closeRepo()
		return nil, err
	}

	guard, err := navigation.NewGuard(consoleRouter{logger: logger}, navigation.Routes{
		Authenticated:   routeHome,
		Unauthenticated: routeLogin,
	}, navigation.WithLogger(logger))
	if err != nil {
		closeRepo()
		return nil, err
	}

	return &app{
		store:        st,
		controller:   controller,
		guard:        guard,
		expiryLeeway: c.GetExpiryLeeway(),
		closeRepo:    closeRepo,
	}, nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
