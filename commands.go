package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"summarizer-agents/agent"
	"summarizer-agents/history"
	"summarizer-agents/repl"
	"summarizer-agents/server"
	"summarizer-agents/source"
	"summarizer-agents/tui"

	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var addrFlag string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			store, err := history.Open(ctx, a.cfg.HistoryDB, a.cfg.HistoryLimit, a.logger.WithPrefix("history"))
			if err != nil {
				return err
			}
			defer store.Close()

			srv, err := server.New(server.Config{
				Service:           a.service,
				History:           store,
				RequestsPerMinute: a.cfg.RequestsPerMinute,
				Logger:            a.logger.WithPrefix("server"),
			})
			if err != nil {
				return err
			}
			defer srv.Close()

			addr := a.cfg.ListenAddr
			if addrFlag != "" {
				addr = addrFlag
			}
			return srv.ListenAndServe(ctx, addr)
		}),
	}
	cmd.Flags().StringVar(&addrFlag, "addr", "", "listen address (overrides LISTEN_ADDR)")
	return cmd
}

func chatCmd() *cobra.Command {
	var agentFlag string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Summarize pasted text in an interactive loop",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			err := repl.NewREPL(a.service, agentFlag, cmd.InOrStdin(), cmd.OutOrStdout()).Start(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}),
	}
	cmd.Flags().StringVarP(&agentFlag, "agent", "a", agent.CondensedAgentName, "agent to summarize with")
	return cmd
}

func tuiCmd() *cobra.Command {
	var agentFlag string

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Summarize text in a terminal interface",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			return tui.Run(ctx, a.service, agentFlag)
		}),
	}
	cmd.Flags().StringVarP(&agentFlag, "agent", "a", "", "start with this agent instead of the picker")
	return cmd
}

func summarizeCmd() *cobra.Command {
	var (
		agentFlag  string
		fileFlag   string
		feedFlag   string
		itemFlag   int
		streamFlag bool
	)

	cmd := &cobra.Command{
		Use:   "summarize [text...]",
		Short: "Summarize text from arguments, a file, stdin or a feed item",
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			var (
				text string
				err  error
			)
			switch {
			case feedFlag != "":
				text, err = source.NewFeedReader().Item(ctx, feedFlag, itemFlag)
			case fileFlag != "" && fileFlag != source.Stdin:
				text, err = source.File(fileFlag)
			case len(args) > 0:
				text = strings.Join(args, " ")
			default:
				text, err = source.Read(cmd.InOrStdin())
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !streamFlag {
				fmt.Fprintln(out, a.service.Summarize(ctx, agentFlag, text))
				return nil
			}

			segs, err := a.service.Stream(ctx, agentFlag, text)
			if err != nil {
				return err
			}
			for seg := range segs {
				switch {
				case seg.IsError():
					fmt.Fprintln(cmd.ErrOrStderr(), seg)
				case seg.Paragraph:
					fmt.Fprintf(out, "%s\n\n", seg)
				default:
					fmt.Fprintln(out, seg)
				}
			}
			return nil
		}),
	}
	cmd.Flags().StringVarP(&agentFlag, "agent", "a", agent.CondensedAgentName, "agent to summarize with")
	cmd.Flags().StringVarP(&fileFlag, "file", "f", "", "read the text from a file (- for stdin)")
	cmd.Flags().StringVar(&feedFlag, "feed", "", "summarize an item of this RSS or Atom feed")
	cmd.Flags().IntVar(&itemFlag, "item", 0, "index of the feed item, newest first")
	cmd.Flags().BoolVarP(&streamFlag, "stream", "s", false, "print segments as they arrive")
	cmd.MarkFlagsMutuallyExclusive("file", "feed")
	return cmd
}

func agentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List available agents",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			for _, name := range a.service.Agents() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		}),
	}
}
