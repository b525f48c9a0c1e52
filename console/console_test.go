package console

import (
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestConsoleDispatchesRegisteredCommand(t *testing.T) {
	reg := NewRegistry()
	var gotArgs []string
	reg.Register(&Command{
		Name:    "tps",
		Aliases: []string{"t"},
		Usage:   "/tps",
		Run: func(src Source, args []string) (string, error) {
			gotArgs = args
			return "20.0 tps from " + src.Name(), nil
		},
	})

	var logged strings.Builder
	log := slog.New(slog.NewTextHandler(&logged, &slog.HandlerOptions{Level: slog.LevelDebug}))

	c := New(reg, log).WithReader(strings.NewReader("tps foo\nt bar\n"))
	c.Run(context.Background())

	if !strings.Contains(logged.String(), "20.0 tps from Console") {
		t.Fatalf("expected command output to be logged, got %q", logged.String())
	}
	if len(gotArgs) != 1 || gotArgs[0] != "bar" {
		t.Fatalf("expected last invocation's args to be [bar], got %v", gotArgs)
	}
}

func TestConsoleLogsUnknownCommand(t *testing.T) {
	reg := NewRegistry()
	var logged strings.Builder
	log := slog.New(slog.NewTextHandler(&logged, &slog.HandlerOptions{Level: slog.LevelDebug}))

	c := New(reg, log).WithReader(strings.NewReader("nope\n"))
	c.Run(context.Background())

	if !strings.Contains(logged.String(), "unknown command") {
		t.Fatalf("expected an unknown-command log line, got %q", logged.String())
	}
}

func TestRegistryRejectsDuplicateAlias(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected Register to panic on a duplicate alias")
		}
	}()
	reg := NewRegistry()
	reg.Register(&Command{Name: "stop"})
	reg.Register(&Command{Name: "halt", Aliases: []string{"stop"}})
}
