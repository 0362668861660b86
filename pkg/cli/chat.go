package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/cli/config"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/types"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/service/agent"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/service/docs"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/usecase"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/utils/logging"
)

func cmdChat() *cli.Command {
	var threadID string
	var userID string
	var documentIDs []string
	var repoCfg config.Repository
	var geminiCfg config.Gemini
	var agentCfg config.Agent
	var storageCfg config.Storage

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "thread-id",
			Usage:       "Thread ID to chat on (random when omitted)",
			Sources:     cli.EnvVars("QUOKKA_THREAD_ID"),
			Destination: &threadID,
		},
		&cli.StringFlag{
			Name:        "user-id",
			Usage:       "User ID to chat as",
			Value:       "dev",
			Sources:     cli.EnvVars("QUOKKA_USER_ID"),
			Destination: &userID,
		},
		&cli.StringSliceFlag{
			Name:        "document-id",
			Usage:       "Document ID to attach to the session (repeatable)",
			Destination: &documentIDs,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, agentCfg.Flags()...)
	flags = append(flags, storageCfg.Flags()...)

	return &cli.Command{
		Name:    "chat",
		Aliases: []string{"c"},
		Usage:   "Interactive chat session for development",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if threadID == "" {
				threadID = uuid.New().String()
			}

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
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			storage, err := storageCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize payload storage")
			}

			docsOpts := []docs.Option{}
			if storage != nil {
				docsOpts = append(docsOpts, docs.WithStorage(storage))
			}
			docsSvc := docs.New(repo, docsOpts...)

			llmClient, err := geminiCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to configure LLM client")
			}
			if llmClient == nil {
				return goerr.New("chat requires a Gemini project, set --gemini-project")
			}

			factory, err := agent.NewFactory(llmClient)
			if err != nil {
				return goerr.Wrap(err, "failed to create agent factory")
			}

			memoryUC := usecase.NewMemoryUseCase(repo,
				usecase.WithMemoryWindow(settings.MemoryWindow),
				usecase.WithCacheTTL(settings.CacheTTL),
			)
			sessionUC := usecase.NewSessionUseCase(memoryUC, factory, docsSvc,
				usecase.WithSessionCapacity(settings.MaxSessions),
				usecase.WithIdleTimeout(settings.IdleTimeout),
				usecase.WithDataDir(settings.DataDir),
				usecase.WithAgentDefaults(settings.Model, settings.Temperature),
			)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				memoryUC.BeginDrain()
				sessionUC.Shutdown(shutdownCtx)
			}()

			selected := make([]types.DocumentID, 0, len(documentIDs))
			for _, id := range documentIDs {
				selected = append(selected, types.DocumentID(id))
			}

			promptColor := color.New(color.FgCyan, color.Bold)
			replyColor := color.New(color.FgGreen)
			metaColor := color.New(color.FgHiBlack)

			fmt.Printf("Chatting on thread %s as %s (empty line or 'exit' to quit)\n", threadID, userID)

			scanner := bufio.NewScanner(os.Stdin)
			for {
				promptColor.Print("you> ")
				if !scanner.Scan() {
					break
				}
				text := strings.TrimSpace(scanner.Text())
				if text == "" || text == "exit" || text == "quit" {
					break
				}

				sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				sp.Suffix = " thinking..."
				sp.Start()

				reply, err := sessionUC.ProcessMessage(ctx, types.ThreadID(threadID), types.UserID(userID), text, selected, false)
				sp.Stop()
				if err != nil {
					color.Red("error: %v", err)
					continue
				}

				replyColor.Printf("agent> %s\n", reply.Answer)
				if reply.Type != "" {
					metaColor.Printf("       [%s, confidence %.2f]\n", reply.Type, reply.Confidence)
				}
			}

			return scanner.Err()
		},
	}
}
