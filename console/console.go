// Package console implements the operator's interactive command line: a
// line-editing prompt with tab completion backed by a small in-process
// command registry, read from stdin until EOF or context cancellation.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	prompt "github.com/c-bata/go-prompt"
)

const (
	defaultPromptPrefix = "> "
	maxHistoryEntries   = 128
)

// Source identifies who issued a command; the console always passes its
// own Console source, but the type exists so a future network-issued
// command path can reuse the same Command.Run signature.
type Source interface {
	Name() string
}

// consoleSource is the Source every line typed at the operator prompt is
// attributed to.
type consoleSource struct{}

func (consoleSource) Name() string { return "Console" }

// Command is one operator-invocable action.
type Command struct {
	Name    string
	Aliases []string
	Usage   string
	// Run executes the command and returns the line(s) to print, or an
	// error to report instead.
	Run func(src Source, args []string) (string, error)
}

// Registry holds every registered Command, indexed by every alias it was
// registered under (including its own Name).
type Registry struct {
	byAlias map[string]*Command
	all     []*Command
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byAlias: make(map[string]*Command)}
}

// Register adds cmd under its Name and every Alias. Panics on a duplicate
// alias, since that can only be a programming error at startup.
func (r *Registry) Register(cmd *Command) {
	for _, alias := range append([]string{cmd.Name}, cmd.Aliases...) {
		key := strings.ToLower(alias)
		if _, exists := r.byAlias[key]; exists {
			panic(fmt.Sprintf("console: duplicate command alias %q", key))
		}
		r.byAlias[key] = cmd
	}
	r.all = append(r.all, cmd)
}

// ByAlias looks up a command by name or alias, case-insensitively.
func (r *Registry) ByAlias(alias string) (*Command, bool) {
	c, ok := r.byAlias[strings.ToLower(alias)]
	return c, ok
}

// Commands returns every registered command, in registration order.
func (r *Registry) Commands() []*Command { return r.all }

// Console reads command lines from an io.Reader (stdin by default),
// resolves them against a Registry, and logs the result.
type Console struct {
	reg     *Registry
	log     *slog.Logger
	reader  io.Reader
	history []string
}

// New returns a Console dispatching against reg, logging to log (or
// slog.Default if nil), reading from os.Stdin.
func New(reg *Registry, log *slog.Logger) *Console {
	if log == nil {
		log = slog.Default()
	}
	return &Console{reg: reg, log: log, reader: os.Stdin}
}

// WithReader overrides the input source, for feeding scripted commands in
// tests without touching os.Stdin.
func (c *Console) WithReader(r io.Reader) *Console {
	if r != nil {
		c.reader = r
	}
	return c
}

// Run consumes command lines until ctx is cancelled or the reader reaches
// EOF. Reading from os.Stdin uses the prompt with history and tab
// completion, whether or not stdin is a terminal; any other reader set via
// WithReader (a pipe, a test buffer) gets a plain line scanner.
func (c *Console) Run(ctx context.Context) {
	if c.reader != os.Stdin {
		c.runScanner(ctx)
		return
	}
	c.runInteractive(ctx)
}

func (c *Console) runScanner(ctx context.Context) {
	scanner := bufio.NewScanner(c.reader)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				c.log.Error("console input error", "err", err)
			}
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		c.execute(line)
	}
}

func (c *Console) runInteractive(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := prompt.Input(defaultPromptPrefix, c.complete,
			prompt.OptionTitle("blockworld console"),
			prompt.OptionHistory(c.history),
			prompt.OptionPrefix(defaultPromptPrefix),
			prompt.OptionCompletionOnDown(),
			prompt.OptionMaxSuggestion(12),
		)

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		c.execute(line)
	}
}

func (c *Console) execute(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	c.history = append(c.history, line)
	if len(c.history) > maxHistoryEntries {
		c.history = c.history[len(c.history)-maxHistoryEntries:]
	}

	cmd, ok := c.reg.ByAlias(fields[0])
	if !ok {
		c.log.Error("unknown command", "name", fields[0])
		return
	}
	out, err := cmd.Run(consoleSource{}, fields[1:])
	if err != nil {
		c.log.Error(err.Error())
		return
	}
	for _, msg := range strings.Split(out, "\n") {
		if msg != "" {
			c.log.Info(msg)
		}
	}
}

func (c *Console) complete(doc prompt.Document) []prompt.Suggest {
	word := doc.GetWordBeforeCursor()
	if strings.Contains(doc.TextBeforeCursor(), " ") {
		return nil // this core does not offer per-argument completion
	}

	commands := c.reg.Commands()
	suggestions := make([]prompt.Suggest, 0, len(commands))
	for _, cmd := range commands {
		suggestions = append(suggestions, prompt.Suggest{
			Text:        cmd.Name,
			Description: cmd.Usage,
		})
	}
	sort.Slice(suggestions, func(i, j int) bool { return suggestions[i].Text < suggestions[j].Text })
	return prompt.FilterHasPrefix(suggestions, word, true)
}
