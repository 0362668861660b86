package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/cli/config"
	httpctrl "github.com/Dimkaghb/quokkaProd-sub000/pkg/controller/http"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/service/agent"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/service/docs"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/service/worker"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/usecase"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/utils/logging"
)

func cmdServe() *cli.Command {
	var addr string
	var repoCfg config.Repository
	var geminiCfg config.Gemini
	var agentCfg config.Agent
	var storageCfg config.Storage

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("QUOKKA_ADDR"),
			Destination: &addr,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, agentCfg.Flags()...)
	flags = append(flags, storageCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			settings, err := agentCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to resolve agent configuration")
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logger.Error("failed to close repository", "error", err.Error())
				}
			}()

			storage, err := storageCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize payload storage")
			}

			docsOpts := []docs.Option{}
			if storage != nil {
				docsOpts = append(docsOpts, docs.WithStorage(storage))
				logger.Info("Document payload storage enabled", "storage", storageCfg)
			} else {
				logger.Info("No storage bucket configured, documents are resolved as metadata only")
			}
			docsSvc := docs.New(repo, docsOpts...)

			memoryUC := usecase.NewMemoryUseCase(repo,
				usecase.WithMemoryWindow(settings.MemoryWindow),
				usecase.WithCacheTTL(settings.CacheTTL),
			)

			llmClient, err := geminiCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to configure LLM client")
			}

			var sessionUC *usecase.SessionUseCase
			var sweeper *worker.SessionSweeper
			if llmClient != nil {
				factory, err := agent.NewFactory(llmClient)
				if err != nil {
					return goerr.Wrap(err, "failed to create agent factory")
				}

				sessionUC = usecase.NewSessionUseCase(memoryUC, factory, docsSvc,
					usecase.WithSessionCapacity(settings.MaxSessions),
					usecase.WithIdleTimeout(settings.IdleTimeout),
					usecase.WithDataDir(settings.DataDir),
					usecase.WithAgentDefaults(settings.Model, settings.Temperature),
				)

				sweeper = worker.NewSessionSweeper(sessionUC, settings.SweepInterval, settings.SweepBackoff)
				if err := sweeper.Start(ctx); err != nil {
					return goerr.Wrap(err, "failed to start session sweeper")
				}
			} else {
				logger.Warn("Gemini project not configured, agent endpoints will report unavailable")
			}

			uc := usecase.New(memoryUC, sessionUC)

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(uc),
				ReadHeaderTimeout: 30 * time.Second,
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Starting HTTP server", "addr", addr, "agent", agentCfg)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logger.Info("Received shutdown signal", "signal", sig)

				if sweeper != nil {
					sweeper.Stop()
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					logger.Error("failed to shutdown server gracefully", "error", err.Error())
				}

				// Flush live sessions after the listener stops so no new
				// turns race the drain.
				memoryUC.BeginDrain()
				if sessionUC != nil {
					sessionUC.Shutdown(shutdownCtx)
				}

				logger.Info("Server shutdown completed")
				return nil
			}
		},
	}
}
