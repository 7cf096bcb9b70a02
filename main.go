package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"summarizer-agents/agent"
	"summarizer-agents/client"
	"summarizer-agents/config"
	"summarizer-agents/summarizer"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// app holds everything the commands share.
type app struct {
	cfg      config.Config
	logger   *log.Logger
	registry *agent.Registry
	service  *summarizer.Service
	closers  []func()
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger()

	a := &app{cfg: cfg, logger: logger}

	var transport client.Transport
	switch cfg.Transport {
	case config.TransportOpenAI:
		transport = client.NewOpenAITransport(cfg.OpenAIAPIKey, logger.WithPrefix("openai"))
	default:
		httpClient := client.NewHTTPClient(client.HTTPClientConfig{
			RequestsPerMinute: cfg.RequestsPerMinute,
			Logger:            logger.WithPrefix("client"),
		})
		a.closers = append(a.closers, httpClient.Close)
		transport = httpClient
	}

	endpoint := cfg.Endpoint()
	sources := []agent.Source{agent.BuiltinSource(transport, endpoint, logger)}
	if cfg.ProfilesDir != "" {
		dirSources, err := agent.DirSources(cfg.ProfilesDir, transport, endpoint, logger)
		if err != nil {
			logger.Warn("Could not read agent profiles", "dir", cfg.ProfilesDir, "error", err)
		}
		sources = append(sources, dirSources...)
	}

	a.registry = agent.NewRegistry(
		agent.WithLogger(logger.WithPrefix("registry")),
		agent.WithFailureTTL(cfg.AgentFailureTTL),
	)
	if a.registry.Discover(sources...) == 0 {
		logger.Warn("No agents available")
	}

	opts := []summarizer.Option{
		summarizer.WithLogger(logger),
		summarizer.WithTimeout(cfg.RequestTimeout),
	}
	if tc, err := summarizer.NewTokenCounter(); err != nil {
		logger.Warn("Token counting disabled", "error", err)
	} else {
		opts = append(opts, summarizer.WithTokenCounter(tc))
	}
	a.service = summarizer.New(a.registry, opts...)

	return a, nil
}

func (a *app) Close() {
	for _, c := range a.closers {
		c()
	}
}

// withApp builds the app for a command and tears it down afterwards.
func withApp(run func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd.Context(), a, cmd, args)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "summarizer",
		Short:         "Streaming text summarization agents",
		Long:          "Summarizes text with a choice of agents backed by a local generation service, streaming the result sentence by sentence.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		serveCmd(),
		chatCmd(),
		tuiCmd(),
		summarizeCmd(),
		agentsCmd(),
	)
	return root
}

func main() {
	root := newRootCmd()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
