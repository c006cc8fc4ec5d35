package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"bank-reconciliation-backend/internal/common"
	"bank-reconciliation-backend/internal/config"
	"bank-reconciliation-backend/internal/repository"
	"bank-reconciliation-backend/internal/routes"
	service "bank-reconciliation-backend/internal/services/reconciliation"
)

var (
	cfgFile string
	v       = config.NewViper()
	cfg     *config.Config

	rootCmd = &cobra.Command{
		Use:               "server",
		Short:             "Bank reconciliation matching service",
		PersistentPreRunE: initConfig,
		SilenceUsage:      true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")

	_ = v.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))

	serve := serveCmd()
	rootCmd.RunE = serve.RunE
	rootCmd.AddCommand(serve, migrateCmd(), recountCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	loaded, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded
	common.SetupLogger(common.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	return nil
}

func openDB() (*gorm.DB, error) {
	db, err := config.InitDB(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}

			gin.SetMode(cfg.Server.Mode)
			router, err := routes.NewRouter(db, cfg)
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				slog.Info("Listening", "addr", cfg.Server.Addr, "driver", cfg.Database.Driver)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-cmd.Context().Done():
				slog.Info("Shutting down")
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(ctx)
			}
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(_ *cobra.Command, _ []string) error {
			if _, err := openDB(); err != nil {
				return err
			}
			slog.Info("Schema up to date", "driver", cfg.Database.Driver)
			return nil
		},
	}
}

func recountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recount",
		Short: "Recompute drifting matched counts of open reconciliation files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}

			svc := service.NewReconciliationService(repository.NewFileRepository(db))
			res, err := svc.Recount(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "checked %d files, corrected %d, skipped %d closed, %d failed\n",
				res.Checked, res.Corrected, res.Skipped, res.Failed)
			if res.Failed > 0 {
				return fmt.Errorf("%d files could not be recounted", res.Failed)
			}
			return nil
		},
	}
}
