// Command spreadline assembles college football feature tables from the
// CollegeFootballData API and scores upcoming games against the spread.
//
// Usage:
//
//	spreadline build [--through 2023]
//	spreadline pending
//	spreadline export --out features.csv
//	spreadline predict [--model model.json]
//	spreadline serve
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fortuna/spreadline/internal/api/rest"
	"github.com/fortuna/spreadline/internal/api/websocket"
	"github.com/fortuna/spreadline/internal/config"
	"github.com/fortuna/spreadline/internal/logging"
	"github.com/fortuna/spreadline/internal/pipeline"
	"github.com/fortuna/spreadline/internal/predict"
	"github.com/fortuna/spreadline/internal/publisher"
	"github.com/fortuna/spreadline/internal/scheduler"
)

const (
	serviceName    = "spreadline"
	serviceVersion = "1.0.0"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var logLevel, logFormat string
	root := &cobra.Command{
		Use:          serviceName,
		Short:        "College football feature pipeline",
		Version:      serviceVersion,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "json or console (overrides LOG_FORMAT)")

	env := func() (config.Config, *zap.Logger, error) {
		cfg := config.Load()
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		if logFormat != "" {
			cfg.LogFormat = logFormat
		}
		if err := cfg.Validate(); err != nil {
			return cfg, nil, err
		}
		logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return cfg, nil, err
		}
		return cfg, logger, nil
	}

	root.AddCommand(buildCmd(env))
	root.AddCommand(pendingCmd(env))
	root.AddCommand(exportCmd(env))
	root.AddCommand(predictCmd(env))
	root.AddCommand(serveCmd(env))
	return root
}

type envFunc func() (config.Config, *zap.Logger, error)

// runCLI wires the app for a one-shot command, cancelled on interrupt.
func runCLI(env envFunc, fn func(ctx context.Context, a *app) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, logger, err := env()
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := newApp(ctx, cfg, logger, 1)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func buildCmd(env envFunc) *cobra.Command {
	var through int
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Assemble historical games and merge them into the feature cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCLI(env, func(ctx context.Context, a *app) error {
				res, err := a.runner.BuildHistory(ctx, through, pipeline.LogReporter{Logger: a.logger})
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().IntVar(&through, "through", 0, "last season to assemble (default: current season)")
	return cmd
}

func pendingCmd(env envFunc) *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Print the decorated next week of undecided games as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCLI(env, func(ctx context.Context, a *app) error {
				records, _, err := a.runner.LatestUnprocessed(ctx, year, pipeline.LogReporter{Logger: a.logger})
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), records)
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "season (default: current season)")
	return cmd
}

func exportCmd(env envFunc) *cobra.Command {
	var out string
	var year int
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the cached training table as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCLI(env, func(ctx context.Context, a *app) error {
				table, err := a.runner.Table(ctx, year)
				if err != nil {
					return err
				}
				if out == "" || out == "-" {
					return table.WriteCSV(cmd.OutOrStdout())
				}
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				if err := table.WriteCSV(f); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				a.logger.Info("✓ Exported training table",
					zap.String("path", out),
					zap.Int("rows", len(table.Records)),
					zap.Int("columns", len(table.Columns())))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "-", "output file (- for stdout)")
	cmd.Flags().IntVar(&year, "year", 0, "limit to one season")
	return cmd
}

func predictCmd(env envFunc) *cobra.Command {
	var modelPath string
	var refresh, publish bool
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score next week's games against the spread",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCLI(env, func(ctx context.Context, a *app) error {
				if modelPath == "" {
					modelPath = a.cfg.ModelPath
				}
				model, err := predict.LoadModel(modelPath)
				if err != nil {
					return err
				}
				if refresh {
					if _, err := a.service.Refresh(ctx); err != nil {
						return fmt.Errorf("refresh history: %w", err)
					}
				}

				rep, err := predict.NewForecaster(a.service, model, a.logger).Forecast(ctx)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), rep.Text())

				if !publish {
					return nil
				}
				pub := a.publisher()
				if pub == nil {
					a.logger.Warn("REDIS_URL not set, predictions not published")
					return nil
				}
				n, err := pub.PublishReport(ctx, rep)
				if err != nil {
					return err
				}
				a.logger.Info("✓ Predictions published", zap.Int("count", n), zap.String("stream", pub.Stream()))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&modelPath, "model", "", "model file (overrides MODEL_PATH)")
	cmd.Flags().BoolVar(&refresh, "refresh", true, "update the history cache before scoring")
	cmd.Flags().BoolVar(&publish, "publish", true, "publish predictions to the Redis stream")
	return cmd
}

func serveCmd(env envFunc) *cobra.Command {
	var port string
	var runOnStart bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API and the refresh scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := env()
			if err != nil {
				return err
			}
			defer logger.Sync()
			if port != "" {
				cfg.RESTPort = port
			}
			logger.Info("Starting service", zap.String("service", serviceName), zap.String("version", serviceVersion))

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			a, err := newApp(ctx, cfg, logger, 30)
			if err != nil {
				return err
			}
			defer a.Close()

			hub := websocket.NewHub(logger)
			go hub.Run(ctx)
			a.service.AddReporter(hub.Reporter())

			// Prediction is optional: without a model only the history is refreshed.
			var (
				restForecaster  rest.Forecaster
				schedForecaster scheduler.Forecaster
				schedPublisher  scheduler.Publisher
			)
			if model, err := predict.LoadModel(cfg.ModelPath); err != nil {
				logger.Warn("model not loaded, predictions disabled", zap.String("path", cfg.ModelPath), zap.Error(err))
			} else {
				forecaster := predict.NewForecaster(a.service, model, logger)
				restForecaster, schedForecaster = forecaster, forecaster
				targets := publisher.Fanout{hub}
				if pub := a.publisher(); pub != nil {
					targets = append(publisher.Fanout{pub}, targets...)
				}
				schedPublisher = targets
			}

			handler := rest.NewHandler(a.service, restForecaster, logger)
			handler.SetStream(hub)
			if a.redis != nil {
				handler.AddHealthCheck("redis", a.redis)
			}
			if a.db != nil {
				handler.AddHealthCheck("postgres", a.db)
			}

			schedConfig := scheduler.DefaultConfig()
			schedConfig.Schedule = cfg.RefreshSchedule
			schedConfig.RunOnStart = runOnStart
			sched, err := scheduler.NewOrchestrator(a.service, schedForecaster, schedPublisher, schedConfig, logger)
			if err != nil {
				return err
			}
			handler.SetScheduler(sched)

			go sched.Start(ctx)
			logger.Info("✓ Scheduler started", zap.String("schedule", cfg.RefreshSchedule))

			restServer := rest.NewServer(cfg.RESTPort, handler, logger)
			go func() {
				if err := restServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("REST server error", zap.Error(err))
				}
			}()
			logger.Info("✓ REST API server listening", zap.String("addr", "http://0.0.0.0:"+cfg.RESTPort))

			// Wait for interrupt signal
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			<-sigChan

			logger.Info("Shutting down gracefully...")
			cancel()
			sched.Stop()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := restServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("REST API server shutdown error", zap.Error(err))
			}

			logger.Info("Stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "REST port (overrides REST_PORT)")
	cmd.Flags().BoolVar(&runOnStart, "refresh-on-start", false, "run a refresh immediately")
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
