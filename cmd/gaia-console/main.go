// Command gaia-console runs an assistant session in the terminal. Each line
// typed on stdin is one final utterance; analysis is delegated to a running
// gaia server.
//
// Commands:
//
//	:start          resume listening
//	:stop           stop listening (typed lines are ignored)
//	:dismiss <id>   remove an opportunity card
//	:quit           exit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/gaia/internal/analyzer"
	"github.com/MrWong99/gaia/internal/assistant"
	"github.com/MrWong99/gaia/internal/capture"
	"github.com/MrWong99/gaia/pkg/provider/stt/relay"
)

func main() {
	os.Exit(run())
}

func run() int {
	server := flag.String("server", "http://localhost:8080", "base URL of the gaia server")
	debounce := flag.Duration("debounce", 2*time.Second, "quiet period before an analysis")
	window := flag.Int("window", assistant.DefaultWindow, "utterances per analysis")
	timeout := flag.Duration("timeout", analyzer.DefaultTimeout, "analysis request timeout")
	speaker := flag.String("speaker", assistant.DefaultSpeaker, "label for typed utterances")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	lvl := slog.LevelWarn
	if *verbose {
		lvl = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rec := relay.New()
	ctrl := assistant.New(ctx, assistant.Config{
		Analyzer:   analyzer.NewClient(*server, analyzer.WithClientTimeout(*timeout)),
		Recognizer: rec,
		Restart:    capture.DefaultRestartPolicy(),
		Debounce:   *debounce,
		Window:     *window,
		Speaker:    *speaker,
	})
	defer ctrl.Close()

	fmt.Fprintf(os.Stdout, "gaia console, analyzing via %s. Type to talk, :quit to exit.\n", *server)
	c := newConsole(ctrl, rec, os.Stdin, os.Stdout)
	if err := c.run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, errQuit) {
		fmt.Fprintf(os.Stderr, "gaia-console: %v\n", err)
		return 1
	}
	return 0
}
