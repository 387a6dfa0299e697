package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/leapstack-labs/polyglot/pkg/lang"
	"github.com/leapstack-labs/polyglot/pkg/schema"
)

const replPrompt = "polyglot> "

func runQueryREPL(cmd *cobra.Command, cc *CommandContext, defaults *QueryOptions) error {
	ctx := cmd.Context()

	// Setup history file (project-local)
	historyFile := filepath.Join(filepath.Dir(cc.Cfg.StatePath), "query_history")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    newEntityCompleter(cc.Registry),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Polyglot Query REPL (target: %s, language: %s)\n",
		cc.Cfg.TargetName(), cc.Store.Language(ctx).Current)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ".") {
			next, quit := handleDotCommand(ctx, cmd, cc, line)
			if quit {
				break
			}
			ctx = next
			continue
		}

		if err := executeREPLLine(ctx, cmd, cc, line, defaults); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout())
	}

	return nil
}

// executeREPLLine runs a line of the form "<entity> [flags]", using the
// same flags as the query command.
func executeREPLLine(ctx context.Context, cmd *cobra.Command, cc *CommandContext, line string, defaults *QueryOptions) error {
	entity, opts, err := parseREPLLine(line, defaults)
	if err != nil {
		return err
	}
	rs, err := executeQuery(ctx, cc.Store, entity, opts)
	if err != nil {
		return err
	}
	return renderResults(cmd.OutOrStdout(), rs, opts.Format)
}

func parseREPLLine(line string, defaults *QueryOptions) (string, *QueryOptions, error) {
	opts := &QueryOptions{}
	fs := pflag.NewFlagSet("query", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	bindQueryFlags(fs, opts)
	opts.Format = defaults.Format

	if err := fs.Parse(splitArgs(line)); err != nil {
		return "", nil, err
	}
	if fs.NArg() != 1 {
		return "", nil, errors.New("usage: <entity> [--filter path=value] [--order path] [--limit n] ...")
	}
	return fs.Arg(0), opts, nil
}

// splitArgs splits a line on whitespace, keeping quoted sections together.
// Quotes are kept so that quoted values stay strings.
func splitArgs(line string) []string {
	var (
		args  []string
		cur   strings.Builder
		quote rune
	)
	for _, r := range line {
		switch {
		case quote != 0:
			cur.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
			cur.WriteRune(r)
		case r == ' ' || r == '\t':
			if cur.Len() > 0 {
				args = append(args, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		args = append(args, cur.String())
	}
	return args
}

// handleDotCommand runs a REPL command and returns the context to use for
// the following lines.
func handleDotCommand(ctx context.Context, cmd *cobra.Command, cc *CommandContext, line string) (context.Context, bool) {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	switch command {
	case ".quit", ".exit":
		return ctx, true

	case ".help":
		printREPLHelp(cmd.OutOrStdout())

	case ".entities":
		if err := listEntities(cc.Renderer, cc.Registry.Entities()); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}

	case ".schema":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Usage: .schema <entity>")
			break
		}
		e, ok := cc.Registry.Entity(parts[1])
		if !ok {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: unknown entity %q\n", parts[1])
			break
		}
		if err := showEntity(cc.Renderer, e); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}

	case ".lang":
		if len(parts) < 2 {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", strings.Join(cc.Store.Language(ctx).Chain(), " -> "))
			break
		}
		lc, err := lang.New(parts[1], parts[2:]...)
		if err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			break
		}
		return lang.WithContext(ctx, lc), false

	case ".clear":
		_, _ = fmt.Fprint(cmd.OutOrStdout(), "\033[H\033[2J")

	default:
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Unknown command: %s (type .help for commands)\n", command)
	}
	return ctx, false
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help                   Show this help message
  .entities               List all entities
  .schema <entity>        Show fields and tables of an entity
  .lang [code fallback..] Show or switch the language context
  .clear                  Clear the screen
  .quit / .exit           Exit the REPL

Queries:
  <entity> [--filter path=value] [--exclude path=value] [--order path]
           [--limit n] [--offset n] [--values a,b] [--count]
           [--untranslated | --fallbacks] [--format table|json|csv|md]

Tips:
  - Use arrow keys to navigate history
  - Tab completion works for entity names and fields
`
	_, _ = fmt.Fprintln(w, help)
}

// newEntityCompleter creates a readline completer for entity names, query
// flags and the fields of each entity.
func newEntityCompleter(r *schema.Registry) *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface
	for _, e := range r.Entities() {
		if e.Kind == schema.Abstract {
			continue
		}
		var fields []readline.PrefixCompleterInterface
		for _, f := range e.Fields() {
			fields = append(fields, readline.PcItem(f.Name))
		}
		items = append(items, readline.PcItem(e.Name,
			readline.PcItem("--filter", fields...),
			readline.PcItem("--exclude", fields...),
			readline.PcItem("--order", fields...),
			readline.PcItem("--values", fields...),
			readline.PcItem("--limit"),
			readline.PcItem("--offset"),
			readline.PcItem("--count"),
			readline.PcItem("--untranslated"),
			readline.PcItem("--fallbacks"),
		))
	}

	items = append(items,
		readline.PcItem(".help"),
		readline.PcItem(".entities"),
		readline.PcItem(".schema"),
		readline.PcItem(".lang"),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)

	return readline.NewPrefixCompleter(items...)
}
