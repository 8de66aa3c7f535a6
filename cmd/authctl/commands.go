package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-session/auth"
	"github.com/jrsteele09/go-auth-session/navigation"
	"github.com/jrsteele09/go-auth-session/store"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	routeHome  = "/home"
	routeLogin = "/login"

	refreshRetryDelay = 5 * time.Second
)

type app struct {
	store        *store.Store
	controller   *auth.Controller
	guard        *navigation.Guard
	registry     *prometheus.Registry
	expiryLeeway time.Duration
	closeRepo    func()
	detachGuard  func()
}

func (a *app) close() {
	if a.detachGuard != nil {
		a.detachGuard()
	}
	a.store.Close()
	a.closeRepo()
}

// consoleRouter stands in for a UI router.
type consoleRouter struct {
	logger zerolog.Logger
}

func (r consoleRouter) Replace(route string) error {
	r.logger.Info().Str("route", route).Msg("Navigate")
	return nil
}

// restore loads the saved session and starts routing on the result.
func (a *app) restore(ctx context.Context) error {
	err := a.controller.RestoreSession(ctx)
	if a.detachGuard == nil {
		a.detachGuard = a.guard.Attach(a.store)
	}
	return err
}

func (a *app) status(ctx context.Context) error {
	if err := a.restore(ctx); err != nil {
		return err
	}
	printState(a.store.State())
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := a.restore(ctx); err != nil {
		log.Warn().Err(err).Msg("Could not restore the saved session")
	}

	password, err := readPassword()
	if err != nil {
		return err
	}
	if err := a.controller.SignInWithEmail(ctx, *email, password); err != nil {
		return err
	}
	printState(a.store.State())
	return nil
}

func (a *app) logout(ctx context.Context) error {
	if err := a.restore(ctx); err != nil {
		log.Warn().Err(err).Msg("Could not restore the saved session")
	}
	if err := a.controller.SignOut(ctx); err != nil {
		return err
	}
	fmt.Println("Signed out.")
	return nil
}

func (a *app) refresh(ctx context.Context) error {
	if err := a.restore(ctx); err != nil {
		return err
	}
	if err := a.controller.RefreshSession(ctx); err != nil {
		return err
	}
	printState(a.store.State())
	return nil
}

// watch refreshes the session shortly before it expires until ctx ends.
func (a *app) watch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	metricsAddr := fs.String("metrics-addr", "", "serve prometheus metrics on this address, e.g. :9090")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go listenAndServe(server)
		defer shutdown(server)
	}

	release := a.store.Watch(ctx, func(s store.State) {
		log.Debug().Bool("loading", s.IsLoading).Bool("authenticated", s.Authenticated()).AnErr("last_error", s.LastError).Msg("Auth state changed")
	})
	defer release()

	if err := a.restore(ctx); err != nil {
		return err
	}

	for {
		session := a.store.State().Session
		if session == nil {
			return auth.ErrNoSession
		}

		timer := time.NewTimer(a.untilRefresh(session.ExpiresAt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		err := a.controller.RefreshSession(ctx)
		switch {
		case err == nil:
			log.Info().Time("expires_at", a.store.State().Session.ExpiresAt).Msg("Session refreshed")
		case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrUnsupported):
			return err
		default:
			log.Warn().Err(err).Dur("retry_in", refreshRetryDelay).Msg("Refresh failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(refreshRetryDelay):
			}
		}
	}
}

func (a *app) untilRefresh(expiresAt time.Time) time.Duration {
	if expiresAt.IsZero() {
		return time.Duration(1<<63 - 1)
	}
	wait := time.Until(expiresAt.Add(-a.expiryLeeway))
	if wait < 0 {
		return 0
	}
	return wait
}

func listenAndServe(server *http.Server) {
	log.Info().Str("addr", server.Addr).Msg("Metrics listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Err(err).Msg("Metrics server stopped")
	}
}

func shutdown(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Err(err).Msg("server.Shutdown")
	}
}

func readPassword() (string, error) {
	if info, err := os.Stdin.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
		fmt.Fprint(os.Stderr, "Password: ")
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.Wrap(err, "read password")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func printState(s store.State) {
	if !s.Authenticated() {
		fmt.Println("Not signed in.")
		return
	}
	fmt.Printf("Signed in as %s", s.Session.UserID)
	if s.Session.Email != "" {
		fmt.Printf(" <%s>", s.Session.Email)
	}
	if !s.Session.ExpiresAt.IsZero() {
		fmt.Printf(", expires %s", s.Session.ExpiresAt.Local().Format(time.RFC1123))
	}
	fmt.Println()
}
