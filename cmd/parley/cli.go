package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/dotsetgreg/parley/pkg/bus"
	"github.com/dotsetgreg/parley/pkg/config"
	"github.com/dotsetgreg/parley/pkg/gateway"
	"github.com/dotsetgreg/parley/pkg/logger"
	"github.com/dotsetgreg/parley/pkg/session"
)

func executeCLI() error {
	return buildRootCommand().Execute()
}

func buildRootCommand() *cobra.Command {
	var showVersion bool

	root := &cobra.Command{
		Use:   "parley",
		Short: "Conversation engine with bounded memory, context analysis, and delegation advice",
		Long: strings.TrimSpace(`parley keeps a rolling summarized conversation window, extracts
context signals from each message, tracks session analytics, and advises
on handing the conversation to a better-suited agent persona.

Use CLI commands to onboard, chat locally, or run the WebSocket gateway.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion()
				return nil
			}
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Show build/version metadata")

	root.AddCommand(newOnboardCommand())
	root.AddCommand(newChatCommand())
	root.AddCommand(newServeCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newVersionCommand())

	return root
}

func newOnboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "onboard",
		Short:   "Initialize ~/.parley config",
		Example: "  parley onboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return onboard()
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show configuration and provider readiness",
		Example: "  parley status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return status()
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show build/version metadata",
		Example: "  parley version",
		RunE: func(cmd *cobra.Command, args []string) error {
			printVersion()
			return nil
		},
	}
}

func newChatCommand() *cobra.Command {
	var (
		message string
		debug   bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Run a local interactive conversation",
		Long:  "Run an interactive REPL session, or send a one-shot message with --message.",
		Example: strings.Join([]string{
			"  parley chat",
			"  parley chat --message \"plan a weekend in Lisbon\"",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.SetDebug(debug)
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.GetAPIKey() == "" {
				return fmt.Errorf("no API key configured; run 'parley onboard' and set providers.openrouter.api_key")
			}

			engine := buildEngine(cfg, buildCompleter(cfg))

			if strings.TrimSpace(message) != "" {
				reply, err := engine.Send(cmd.Context(), message)
				if err != nil {
					return err
				}
				fmt.Println(reply.Content)
				return nil
			}

			chatREPL(cmd.Context(), cfg, engine)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "One-shot message to send")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func chatREPL(ctx context.Context, cfg *config.Config, engine *session.Engine) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          fmt.Sprintf("%s You: ", appName),
		HistoryFile:     filepath.Join(os.TempDir(), ".parley_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Printf("Error initializing readline: %v\n", err)
		return
	}
	defer rl.Close()

	fmt.Printf("Session %s. Type /help for commands, exit to quit.\n", engine.SessionID())

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Goodbye!")
			return
		}
		if strings.HasPrefix(input, "/") {
			handleSlashCommand(ctx, cfg, engine, input)
			continue
		}

		reply, err := engine.Send(ctx, input)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		fmt.Printf("%s: %s\n", appName, reply.Content)

		if cfg.Delegation.AutoSwitch {
			if decision, agent := engine.TryAutoSwitch(); decision.Allowed && agent != "" {
				fmt.Printf("[switched to %s]\n", agent)
			}
		}
	}
}

func handleSlashCommand(ctx context.Context, cfg *config.Config, engine *session.Engine, input string) {
	parts := strings.Fields(input)
	switch parts[0] {
	case "/help":
		fmt.Println("  /insights        show session analytics")
		fmt.Println("  /agents          list agent personas")
		fmt.Println("  /switch <name>   switch persona manually")
		fmt.Println("  /summary         force a summarization pass")
		fmt.Println("  /transcript      show the message transcript")
	case "/insights":
		printInsights(engine)
	case "/agents":
		fmt.Printf("Personas: %s\n", agentNames(cfg))
	case "/switch":
		if len(parts) < 2 {
			fmt.Println("Usage: /switch <name>")
			return
		}
		engine.SwitchAgent(parts[1])
		fmt.Printf("Now talking to %s.\n", parts[1])
	case "/summary":
		if err := engine.FlushSummary(ctx); err != nil {
			fmt.Printf("Summarizer error (placeholder recorded): %v\n", err)
			return
		}
		fmt.Println("Summary refreshed.")
	case "/transcript":
		for _, item := range engine.Transcript().Items() {
			fmt.Printf("  [%s] %s: %s\n", item.Status, item.Role, item.Content)
		}
	default:
		fmt.Printf("Unknown command %s. Try /help.\n", parts[0])
	}
}

func printInsights(engine *session.Engine) {
	insights := engine.Insights()
	if p := insights.InteractionInsights; p != nil {
		fmt.Printf("Intent:       %s (secondary: %s)\n", p.PrimaryIntent, strings.Join(p.SecondaryIntents, ", "))
		fmt.Printf("Goal clarity: %s\n", p.GoalClarity)
	} else {
		fmt.Println("No interaction pattern recorded yet.")
	}
	fmt.Printf("Projections: %d\n", len(insights.OutcomeInsights))
	fmt.Printf("Last summarized: %s\n", engine.LastSummarizedAt().Format("15:04:05"))
	fmt.Printf("Recent events (%d):\n", len(insights.RecentEvents))
	for _, ev := range insights.RecentEvents {
		fmt.Printf("  %s  %-12s %s\n", ev.Time.Format("15:04:05"), ev.Category, ev.Type)
	}
}

func newServeCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the WebSocket gateway + health server",
		Long:    "Start the gateway, per-conversation engine dispatcher, and heartbeat summarizer.",
		Example: "  parley serve --debug",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.SetDebug(debug)
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.GetAPIKey() == "" {
				return fmt.Errorf("no API key configured; run 'parley onboard' and set providers.openrouter.api_key")
			}
			return serve(cfg)
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func serve(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	completer := buildCompleter(cfg)
	b := bus.NewMessageBus()
	defer b.Close()

	dispatcher := session.NewDispatcher(b, func(conversationID string) *session.Engine {
		return buildEngine(cfg, completer)
	})

	server := gateway.NewServer(gateway.Config{
		Host: cfg.Gateway.Host,
		Port: cfg.Gateway.Port,
	}, b, dispatcher.Drop)

	go dispatcher.Run(ctx)
	go server.PumpOutbound(ctx)

	if cfg.Heartbeat.Enabled {
		hb, err := session.NewHeartbeat(dispatcher, cfg.Heartbeat.Schedule)
		if err != nil {
			return err
		}
		go hb.Run(ctx)
	}

	logger.InfoCF("main", "Serving",
		map[string]interface{}{"host": cfg.Gateway.Host, "port": cfg.Gateway.Port})
	return server.Run(ctx)
}
