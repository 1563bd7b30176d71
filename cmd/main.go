package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"easybet/internal/amount"
	"easybet/internal/auth"
	"easybet/internal/config"
	cronrunner "easybet/internal/cron"
	"easybet/internal/handlers"
	"easybet/internal/journal"
	"easybet/internal/services"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "easybet",
	Short:         "EasyBet numbered-ticket lottery with a resale market",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token <address>",
	Short: "Issue a bearer token for an address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		tokens := auth.JWT{Secret: []byte(cfg.Auth.JWTSecret), TokenTTL: cfg.Auth.TokenTTL}
		tok, exp, err := tokens.Sign(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", exp.Format(time.RFC3339))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.AddCommand(serveCmd, tokenCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	// 1. Logging goes to stderr and optionally a file.
	var logOut io.Writer = io.Discard
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return errors.Wrap(err, "open log file")
		}
		defer f.Close()
		logOut = f
	}
	defer logger.Init("easybet", cfg.Log.Verbose, cfg.Log.SystemLog, logOut).Close()

	// 2. Open the event journal.
	var rec journal.Recorder = journal.NewMemory()
	if cfg.Journal.Path != "" {
		store, err := journal.OpenBolt(cfg.Journal.Path)
		if err != nil {
			return err
		}
		rec = store
	}
	defer func() {
		if err := rec.Close(); err != nil {
			logger.Errorf("close journal: %v", err)
		}
	}()

	// 3. Initialize the Lottery Service.
	lotteryService := services.NewLotteryService(services.Options{
		Admin:   cfg.Admin.Address,
		Journal: rec,
	})

	// 4. Initialize the HTTP Handler and the Gin router.
	if cfg.App.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	tokens := auth.JWT{Secret: []byte(cfg.Auth.JWTSecret), TokenTTL: cfg.Auth.TokenTTL}
	httpHandler := handlers.NewHTTPHandler(lotteryService, tokens, amount.NewUnit(cfg.Amount.Decimals))
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	httpHandler.RegisterRoutes(r)

	// 5. Schedule the freshness sweep.
	if cfg.Sweep.Enabled {
		runner := cronrunner.New(ctx)
		if _, err := runner.Add(cfg.Sweep.Spec, func(ctx context.Context) {
			report := lotteryService.Sweep(ctx)
			logger.V(1).Infof("sweep: expired=%v pruned=%d", report.ExpiredSales, report.PrunedListings)
		}); err != nil {
			return errors.Wrapf(err, "schedule sweep %q", cfg.Sweep.Spec)
		}
		runner.Start()
		defer runner.Stop()
	}

	// 6. Run the server until the context is cancelled.
	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on %s (admin %s)", cfg.Server.HTTPAddr, lotteryService.Admin())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return errors.Wrap(err, "run server")
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
