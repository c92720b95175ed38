// Command bounce-tool captures and analyses recorder output off the device.
package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/sweeney/bounce-recorder/internal/capture"
	"github.com/sweeney/bounce-recorder/internal/serialport"
	"github.com/sweeney/bounce-recorder/internal/stats"
)

func main() {
	app := newApp(os.Stdout)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(stdout io.Writer) *cli.App {
	app := &cli.App{
		Name:   "bounce-tool",
		Usage:  "capture and summarise contact bounce reports",
		Writer: stdout,
		Commands: []*cli.Command{
			{
				Name:      "store",
				Usage:     "echo report lines from a serial port",
				UsageText: "bounce-tool store [--port /dev/ttyACM0] [--out FILE]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "port", Aliases: []string{"p"}, Value: "/dev/ttyACM0", Usage: "serial `PORT` to read"},
					&cli.IntFlag{Name: "baud", Aliases: []string{"b"}, Value: serialport.DefaultBaudRate, Usage: "baud `RATE`"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "also append lines to `FILE`"},
				},
				Action: storeAction,
			},
			{
				Name:      "stats",
				Usage:     "summarise one or more captured report files",
				UsageText: "bounce-tool stats [--settle 200000] FILE...",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "settle", Aliases: []string{"s"}, Value: capture.DefaultSettle, Usage: "merge reports closer than `MICROS`"},
				},
				Action: statsAction,
			},
			{
				Name:   "ports",
				Usage:  "list serial ports",
				Action: portsAction,
			},
		},
	}
	sort.Sort(cli.FlagsByName(app.Flags))
	sort.Sort(cli.CommandsByName(app.Commands))
	return app
}

func storeAction(ctx *cli.Context) error {
	port, err := serialport.OpenReader(ctx.String("port"), ctx.Int("baud"), 100*time.Millisecond)
	if err != nil {
		return err
	}

	out := ctx.App.Writer
	if path := ctx.String("out"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			port.Close()
			return fmt.Errorf("open output: %w", err)
		}
		defer f.Close()
		out = io.MultiWriter(out, f)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	var closing atomic.Bool
	done := make(chan struct{})
	go func() {
		select {
		case <-quit:
			closing.Store(true)
			port.Close()
		case <-done:
		}
	}()

	fmt.Fprintln(ctx.App.Writer, "STARTED")
	err = store(port, out)
	close(done)
	if closing.Load() {
		fmt.Fprintln(ctx.App.Writer, "CLOSED")
		return nil
	}
	port.Close()
	return err
}

// store copies complete lines from r to w until r fails.
func store(r io.Reader, w io.Writer) error {
	sc := serialport.NewLineScanner(r)
	for sc.Scan() {
		if _, err := fmt.Fprintf(w, "%s\n", sc.Bytes()); err != nil {
			return fmt.Errorf("write line: %w", err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read serial: %w", err)
	}
	return nil
}

func statsAction(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return errors.New("stats: at least one file is required")
	}
	return summarizeFiles(ctx.App.Writer, ctx.Args().Slice(), ctx.Int64("settle"))
}

// summarizeFiles parses every file, combines switches per file and prints
// one summary over all of them.
func summarizeFiles(w io.Writer, paths []string, settle int64) error {
	var all []*stats.Switch
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		switches, err := stats.Parse(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		all = append(all, stats.Combine(switches, settle)...)
	}
	sum, err := stats.Summarize(all)
	if err != nil {
		return err
	}
	return stats.WriteSummary(w, sum)
}

func portsAction(ctx *cli.Context) error {
	ports, err := serialport.List()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(ctx.App.Writer, "no serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Fprintln(ctx.App.Writer, p)
	}
	return nil
}
