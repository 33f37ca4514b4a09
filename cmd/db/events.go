package db

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/ValentinKolb/orbitapi/lib/store"
	"github.com/ValentinKolb/orbitapi/rpc/common"
)

var eventsCmd = &cobra.Command{
	Use:   "events [db] [name...] | events --global [name...]",
	Short: "Follows events of a database (or the global events) until interrupted",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runEvents,
}

func init() {
	eventsCmd.Flags().Bool("global", false, "Subscribe to the global events instead of a database")
	eventsCmd.Flags().Bool("raw", false, "Print the raw payload only, one event per line")
}

func runEvents(cmd *cobra.Command, args []string) error {
	// SIGINT closes the subscription, the loop below then ends normally
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, _ := cmd.Flags().GetBool("global")
	raw, _ := cmd.Flags().GetBool("raw")

	var stream store.IEventStream
	var err error
	if global {
		stream, err = orbitClient.Events(ctx, splitNames(args)...)
	} else {
		if len(args) < 2 {
			return fmt.Errorf("events requires a database and at least one event name")
		}
		db, openErr := openDB(ctx, args[0])
		if openErr != nil {
			return openErr
		}
		stream, err = db.Events(ctx, splitNames(args[1:])...)
	}
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		_ = stream.Close()
	}()

	p := newEventPrinter(os.Stdout, raw)
	for event, err := range stream.All() {
		var de *common.DecodeError
		switch {
		case errors.As(err, &de):
			Logger.Warningf("Skipping event %q with invalid payload: %v", event.Name, err)
			p.print(event)
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			return err
		default:
			p.print(event)
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Output
// --------------------------------------------------------------------------

// eventPrinter renders events, colored if the output is a terminal
type eventPrinter struct {
	w    io.Writer
	raw  bool
	name func(a ...interface{}) string
	meta func(a ...interface{}) string
}

func newEventPrinter(f *os.File, raw bool) *eventPrinter {
	colored := isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	return newEventPrinterTo(f, raw, colored)
}

func newEventPrinterTo(w io.Writer, raw, colored bool) *eventPrinter {
	name := color.New(color.FgCyan, color.Bold)
	meta := color.New(color.FgHiBlack)
	if !colored {
		name.DisableColor()
		meta.DisableColor()
	}
	return &eventPrinter{w: w, raw: raw, name: name.SprintFunc(), meta: meta.SprintFunc()}
}

func (p *eventPrinter) print(event store.Event) {
	if p.raw {
		_, _ = fmt.Fprintln(p.w, event.Data)
		return
	}

	data := event.Data
	if event.Value != nil {
		if pretty, err := json.MarshalIndent(event.Value, "", "  "); err == nil {
			data = string(pretty)
		}
	}
	_, _ = fmt.Fprintf(p.w, "%s %s %s\n%s\n",
		p.meta(time.Now().Format(time.TimeOnly)),
		p.name(event.Name),
		p.meta("#"+event.ID),
		data,
	)
}
