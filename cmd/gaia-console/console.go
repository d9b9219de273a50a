package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/gaia/internal/assistant"
	"github.com/MrWong99/gaia/pkg/provider/stt/relay"
	"github.com/MrWong99/gaia/pkg/types"
)

var errQuit = errors.New("quit")

// console relays terminal input into a controller and renders its events.
type console struct {
	ctrl  *assistant.Controller
	relay *relay.Provider
	in    io.Reader

	mu  sync.Mutex
	out io.Writer
}

func newConsole(ctrl *assistant.Controller, rec *relay.Provider, in io.Reader, out io.Writer) *console {
	return &console{ctrl: ctrl, relay: rec, in: in, out: out}
}

// run starts listening and blocks until :quit, end of input or ctx ends.
func (c *console) run(ctx context.Context) error {
	events, unsubscribe := c.ctrl.Subscribe()
	defer unsubscribe()

	// The scanner cannot be interrupted, so it lives outside the group and
	// the group stops waiting for it on cancellation.
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := c.ctrl.StartListening(ctx); err != nil {
		return fmt.Errorf("start listening: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case line, ok := <-lines:
				if !ok {
					return errQuit
				}
				if err := c.handle(gctx, line); err != nil {
					return err
				}
			}
		}
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				c.render(ev)
			}
		}
	})
	return g.Wait()
}

func (c *console) handle(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, ":") {
		if !c.relay.Active() {
			c.printf("(not listening; type :start)\n")
			return nil
		}
		if err := c.relay.Deliver(types.Transcript{Text: line, IsFinal: true}); err != nil {
			c.printf("(dropped: %v)\n", err)
		}
		return nil
	}

	cmd, arg, _ := strings.Cut(line[1:], " ")
	switch cmd {
	case "quit", "q":
		return errQuit
	case "start":
		if err := c.ctrl.StartListening(ctx); err != nil {
			c.printf("(start failed: %v)\n", err)
		}
	case "stop":
		c.ctrl.StopListening()
	case "dismiss", "d":
		id := strings.TrimSpace(arg)
		if !c.ctrl.Dismiss(id) {
			c.printf("(no card %q)\n", id)
		}
	case "status":
		c.printf("%s\n", c.ctrl.Snapshot().Status())
	default:
		c.printf("(unknown command %q; try :start, :stop, :dismiss <id>, :status, :quit)\n", cmd)
	}
	return nil
}

func (c *console) render(ev assistant.Event) {
	switch ev.Type {
	case assistant.EventListening:
		if ev.Flag != nil && *ev.Flag {
			c.printf("* listening\n")
		} else {
			c.printf("* stopped listening\n")
		}
	case assistant.EventProcessing:
		if ev.Flag != nil && *ev.Flag {
			c.printf("* analyzing...\n")
		}
	case assistant.EventCardsAppended:
		for _, card := range ev.Cards {
			c.printf("[%s] %s %s\n    %q\n    %s\n    (%s)\n",
				card.ID, label(card.Type), card.Content, card.Trigger, card.Explanation, card.Icon)
		}
	case assistant.EventCardDismissed:
		c.printf("* dismissed %s\n", ev.CardID)
	case assistant.EventError:
		if ev.Error != nil {
			c.printf("! %s: %s\n", ev.Error.Code, ev.Error.Message)
		}
	}
}

func label(t types.OpportunityType) string {
	switch t {
	case types.OpportunityQuestion:
		return "QUESTION"
	case types.OpportunityMemory:
		return "MEMORY"
	case types.OpportunityGenerative:
		return "IMAGINE"
	default:
		return strings.ToUpper(string(t))
	}
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}
