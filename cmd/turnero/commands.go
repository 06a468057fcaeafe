package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"turnero/client"
	"turnero/internal/metrics"
	"turnero/internal/repository"
	"turnero/pkg/constraints"
	"turnero/pkg/logger"

	"github.com/urfave/cli"
	"go.uber.org/zap"
)

// session wires a SessionClient to the configured store. ended is closed when the
// client navigates to login.
type session struct {
	*client.SessionClient
	ended  chan client.LogoutReason
	closer func() error
}

func openSession(ctx context.Context, opts ...client.Option) (*session, error) {
	store, closer, err := repository.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &session{ended: make(chan client.LogoutReason, 1), closer: closer}
	nav := client.NavigatorFunc(func(reason client.LogoutReason) {
		select {
		case s.ended <- reason:
		default:
		}
	})
	opts = append(opts,
		client.WithNavigator(nav),
		client.WithHTTPClient(&http.Client{Timeout: cfg.Client.Timeout}),
	)
	s.SessionClient = client.NewSessionClient(cfg.Client.APIBaseURL, store, opts...)
	return s, nil
}

func (s *session) close() {
	s.Close()
	if err := s.closer(); err != nil {
		logger.Warn("closing session store", zap.Error(err))
	}
}

// restore loads the persisted session and renews it first if it is already due.
func (s *session) restore(ctx context.Context) error {
	if err := s.Restore(ctx); err != nil {
		return err
	}
	if s.State() == client.Unauthenticated {
		return errors.New("not logged in, run `turnero login`")
	}
	if next, ok := s.NextRenewal(); ok && !next.After(time.Now()) {
		if err := s.RenewAccessToken(ctx); err != nil {
			return fmt.Errorf("session expired, run `turnero login`: %w", err)
		}
	}
	return nil
}

func login(c *cli.Context) error {
	if emailFlag == "" {
		return cli.NewExitError("login: --email is required", 2)
	}
	password := passwordFlag
	if password == "" {
		fmt.Fprint(os.Stderr, "password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	ctx := context.Background()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.Login(ctx, emailFlag, password); err != nil {
		if errors.Is(err, client.ErrInvalidCredentials) {
			return cli.NewExitError("login: invalid email or password", 1)
		}
		return err
	}
	user := s.User()
	fmt.Printf("logged in as %s (%s) on %s\n", user.Email(), user.Role(), cfg.Tenant.Name)
	if next, ok := s.NextRenewal(); ok {
		fmt.Printf("access token renews at %s\n", next.Format(time.RFC3339))
	}
	return nil
}

func whoami(c *cli.Context) error {
	ctx := context.Background()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()
	if err := s.restore(ctx); err != nil {
		return err
	}

	user := s.User()
	if user == nil {
		raw, err := s.GetRaw(ctx, constraints.PathWhoAmI)
		if err != nil {
			return err
		}
		return printJSON(raw)
	}
	return printJSON(user)
}

func get(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return cli.NewExitError("get: path argument is required", 2)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	ctx := context.Background()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()
	if err := s.restore(ctx); err != nil {
		return err
	}

	raw, err := s.GetRaw(ctx, path)
	if err != nil {
		return err
	}
	return printJSON(raw)
}

func keepalive(c *cli.Context) error {
	addr := metricsAddrFlag
	if addr == "" {
		addr = cfg.Metrics.Addr
	}

	ctx := context.Background()
	s, err := openSession(ctx, client.WithObserver(metrics.NewSessionObserver(nil)))
	if err != nil {
		return err
	}
	defer s.close()
	if err := s.restore(ctx); err != nil {
		return err
	}

	if addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("metrics listening", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	next, _ := s.NextRenewal()
	logger.Info("keeping session alive",
		zap.String("profile", cfg.Store.Profile),
		zap.Time("next_renewal", next))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		logger.Info("keepalive interrupted, session kept for next run")
		return nil
	case reason := <-s.ended:
		return cli.NewExitError(fmt.Sprintf("session ended (%s), run `turnero login`", reason), 1)
	}
}

func logout(c *cli.Context) error {
	ctx := context.Background()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()
	if err := s.Restore(ctx); err != nil {
		return err
	}
	if err := s.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("logged out")
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
