package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"slices"
	"strings"
	"unicode/utf8"

	"summarizer-agents/segment"
	"summarizer-agents/summarizer"
)

// Summarizer is the part of the summarization service the REPL needs.
type Summarizer interface {
	Agents() []string
	Stream(ctx context.Context, name, text string) (iter.Seq[segment.Segment], error)
}

const (
	clearScreen = "\033[2J\033[H"
	rule        = "============================================================"
)

// command is what a read of user input resolved to.
type command int

const (
	cmdText command = iota
	cmdExit
	cmdClear
	cmdHelp
	cmdAgents
	cmdUse
)

type REPL struct {
	service Summarizer
	agent   string
	scanner *bufio.Scanner
	out     io.Writer
}

func NewREPL(service Summarizer, agentName string, in io.Reader, out io.Writer) *REPL {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64<<10), 1<<20)
	return &REPL{
		service: service,
		agent:   agentName,
		scanner: scanner,
		out:     out,
	}
}

// Start runs the loop until the user exits, input ends or ctx is done.
func (r *REPL) Start(ctx context.Context) error {
	r.banner()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprintln(r.out, "\n"+rule)
		cmd, arg, err := r.readInput()
		if err != nil {
			return err
		}

		switch cmd {
		case cmdExit:
			fmt.Fprintln(r.out, "👋 Exiting. Goodbye!")
			return nil
		case cmdClear:
			fmt.Fprint(r.out, clearScreen)
			r.banner()
		case cmdHelp:
			r.showHelp()
		case cmdAgents:
			r.showAgents()
		case cmdUse:
			r.use(arg)
		case cmdText:
			if arg == "" {
				fmt.Fprintln(r.out, "No text entered. Please provide some text to summarize.")
				continue
			}
			r.summarize(ctx, arg)
		}
	}
}

func (r *REPL) banner() {
	fmt.Fprintf(r.out, "📝 %s Summarizer\n", r.agent)
	fmt.Fprintln(r.out, "Tip: You can paste multi-line text directly. Press Enter twice when done.")
}

// readInput collects lines until two empty lines in a row. A command typed
// before any text returns at once. End of input exits.
func (r *REPL) readInput() (command, string, error) {
	fmt.Fprintf(r.out, "Enter text to: %s (paste your text and press Enter twice to finish):\n", r.agent)
	fmt.Fprintln(r.out, "(Type 'exit' to quit, 'clear' to clear screen, 'help' for more)")
	fmt.Fprint(r.out, "> ")

	var lines []string
	empty := 0
	for r.scanner.Scan() {
		line := r.scanner.Text()
		trimmed := strings.TrimSpace(line)

		switch lower := strings.ToLower(trimmed); {
		case len(lines) > 0:
		case lower == "exit" || lower == "quit":
			return cmdExit, "", nil
		case lower == "clear":
			return cmdClear, "", nil
		case lower == "help":
			return cmdHelp, "", nil
		case lower == "agents":
			return cmdAgents, "", nil
		case strings.HasPrefix(lower, "use "):
			return cmdUse, strings.TrimSpace(trimmed[len("use "):]), nil
		}

		if trimmed == "" {
			empty++
			if empty >= 2 {
				return cmdText, strings.TrimSpace(strings.Join(lines, "\n")), nil
			}
			continue
		}
		empty = 0
		lines = append(lines, line)
	}

	if err := r.scanner.Err(); err != nil {
		return cmdExit, "", fmt.Errorf("read input: %w", err)
	}
	return cmdExit, "", nil
}

func (r *REPL) summarize(ctx context.Context, text string) {
	fmt.Fprintf(r.out, "\nReceived text (%d characters)\n", utf8.RuneCountInString(text))

	segs, err := r.service.Stream(ctx, r.agent, text)
	if err != nil {
		switch {
		case errors.Is(err, summarizer.ErrNoText):
			fmt.Fprintln(r.out, summarizer.NoTextMessage)
		case errors.Is(err, summarizer.ErrAgentNotFound), errors.Is(err, summarizer.ErrNoAgent):
			fmt.Fprintln(r.out, "❌", summarizer.NotFoundMessage(r.agent))
		default:
			fmt.Fprintf(r.out, "❌ Unexpected error: %v\n", err)
		}
		return
	}

	fmt.Fprint(r.out, "\nSUMMARIZED-AI: ")
	var prev segment.Segment
	first := true
	for seg := range segs {
		switch {
		case first:
		case seg.IsError():
			fmt.Fprintln(r.out)
		default:
			fmt.Fprint(r.out, segment.Separator(prev, seg))
		}
		fmt.Fprint(r.out, seg)
		prev, first = seg, false
	}
	fmt.Fprintln(r.out)
}

func (r *REPL) showHelp() {
	fmt.Fprintln(r.out, "🆘 Available commands:")
	fmt.Fprintln(r.out, "  <text> then two empty lines - Summarize the text")
	fmt.Fprintln(r.out, "  agents - List available agents")
	fmt.Fprintln(r.out, "  use <name> - Switch to another agent")
	fmt.Fprintln(r.out, "  clear - Clear the screen")
	fmt.Fprintln(r.out, "  exit, quit - Leave")
}

func (r *REPL) showAgents() {
	fmt.Fprintln(r.out, "🤖 Available agents:")
	for _, name := range r.service.Agents() {
		marker := " "
		if name == r.agent {
			marker = "*"
		}
		fmt.Fprintf(r.out, " %s %s\n", marker, name)
	}
}

func (r *REPL) use(name string) {
	agents := r.service.Agents()
	i := slices.IndexFunc(agents, func(a string) bool { return strings.EqualFold(a, name) })
	if i < 0 {
		fmt.Fprintln(r.out, "❌", summarizer.NotFoundMessage(name))
		return
	}
	r.agent = agents[i]
	fmt.Fprintf(r.out, "✅ Using %s\n", r.agent)
}
