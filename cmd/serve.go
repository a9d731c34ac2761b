package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"imgproxy/config"
	"imgproxy/di"
	"imgproxy/rest"
	"imgproxy/utils/logger"
	"imgproxy/utils/otel"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the image proxy server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := otel.InitProvider(ctx, otel.Config{
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.OTel.ServiceVersion,
		Environment:    cfg.OTel.Environment,
		OTLPEndpoint:   cfg.OTel.Endpoint,
		Enabled:        cfg.OTel.Enabled,
		SampleRatio:    cfg.OTel.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init opentelemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(flushCtx); err != nil {
			logger.SafeErrorContext(flushCtx, "Failed to shutdown OpenTelemetry", "error", err)
		}
	}()

	log := logger.InitLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.OTel.Enabled)

	container, err := di.NewApplicationComponents(cfg)
	if err != nil {
		return fmt.Errorf("build application components: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	rest.RegisterRoutes(e, container, cfg)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      e,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		container.JobScheduler.Start(gctx)
		<-gctx.Done()
		container.JobScheduler.Shutdown()
		return nil
	})

	g.Go(func() error {
		log.Info("Starting server", "port", cfg.Server.Port, "allowed_domains", cfg.ImageProxy.AllowedDomains, "version", version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server exited with error", "error", err)
		return err
	}
	log.Info("Server stopped")
	return nil
}

// loadConfig reads the optional dotenv file, parses the environment and
// applies flag overrides.
func loadConfig() (*config.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg, err := config.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if port != 0 {
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("port must be between 1 and 65535, got %d", port)
		}
		cfg.Server.Port = port
	}
	return cfg, nil
}
