/*
The ethphyd command is a daemon for recovering Ethernet frames from a
captured 100BASE-X line bitstream.

ethphyd reads its configuration from a TOML file; see package config for
the available tables.  Without a configuration file the defaults apply and
the bitstream is read from standard input.

	ethphyd -config /etc/ethphyd/ethphyd.toml -input capture.bin

Each recovered frame is passed to the outputs called out in the [output]
table: a summary log line, JSON records, a pcap capture, or transmission
on a network interface.  Pipeline counters are served over HTTP at
/debug/vars when the [metrics] table names a listen address.  The same
server exposes the most recently recovered frames at /frames when the
[inspector] table enables it.

ethphyd runs until the end of the input, or until it receives SIGINT or
SIGTERM.
*/
package main

import (
	"context"
	"errors"
	"expvar"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/katalix/go-ethphy/bitstream"
	"github.com/katalix/go-ethphy/config"
	"github.com/katalix/go-ethphy/linecode"
	"github.com/katalix/go-ethphy/phy"
	"golang.org/x/sys/unix"
)

// shutdownGrace bounds the wait for the decoder after a signal, since
// closing a terminal or blocking pipe may not interrupt a pending read.
const shutdownGrace = 2 * time.Second

type application struct {
	config    *config.Config
	logger    log.Logger
	pipeline  *phy.Context
	input     io.Closer
	source    bitstream.Source
	closers   []io.Closer
	server    *http.Server
	inspector *phy.Inspector
	sigChan   chan os.Signal
	doneChan  chan error
}

func openInput(path string) (*os.File, error) {
	if path == "-" {
		return os.Stdin, nil
	}
	return os.Open(path)
}

func openOutput(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func newSource(cfg *config.InputConfig, r io.Reader) (bitstream.Source, error) {
	if cfg.Format == bitstream.FormatMLT3 {
		slicer, err := linecode.NewSlicer3(cfg.Threshold)
		if err != nil {
			return nil, err
		}
		return bitstream.NewMLT3Reader(r, slicer), nil
	}
	return bitstream.NewReader(cfg.Format, r)
}

func newApplication(cfg *config.Config, verbose bool) (*application, error) {
	app := &application{
		config:   cfg,
		sigChan:  make(chan os.Signal, 1),
		doneChan: make(chan error, 1),
	}

	signal.Notify(app.sigChan, unix.SIGINT, unix.SIGTERM)

	logger := log.NewLogfmtLogger(os.Stderr)
	if verbose || cfg.Debug {
		app.logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		app.logger = level.NewFilter(logger, level.AllowInfo())
	}

	if err := app.init(); err != nil {
		app.close()
		return nil, err
	}
	return app, nil
}

func (app *application) init() (err error) {
	cfg := app.config

	var metrics *phy.Metrics
	if cfg.Metrics.Listen != "" {
		metrics = phy.NewExpvarMetrics(cfg.Metrics.Prefix)
		mux := http.NewServeMux()
		mux.Handle("/debug/vars", expvar.Handler())
		if cfg.Inspector.Enabled {
			app.inspector, err = phy.NewInspector(cfg.Inspector.Size, app.logger)
			if err != nil {
				return fmt.Errorf("failed to create inspector: %v", err)
			}
			app.inspector.Register(mux)
		}
		app.server = &http.Server{
			Addr:    cfg.Metrics.Listen,
			Handler: mux,
		}
	}

	app.pipeline, err = phy.NewContext(cfg.Pipeline, metrics, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %v", err)
	}
	if app.inspector != nil {
		app.pipeline.RegisterEventHandler(app.inspector)
	}

	in, err := openInput(cfg.Input.Path)
	if err != nil {
		return fmt.Errorf("failed to open input: %v", err)
	}
	app.input = in

	app.source, err = newSource(&cfg.Input, in)
	if err != nil {
		return fmt.Errorf("failed to create bitstream reader: %v", err)
	}

	return app.registerOutputs()
}

func (app *application) registerOutputs() error {
	out := &app.config.Output

	if out.Log {
		app.pipeline.RegisterEventHandler(phy.NewLogSink(app.logger))
	}

	if out.JSONPath != "" {
		w, err := openOutput(out.JSONPath)
		if err != nil {
			return fmt.Errorf("failed to open JSON output: %v", err)
		}
		app.closers = append(app.closers, w)
		app.pipeline.RegisterEventHandler(phy.NewJSONSink(w, app.logger))
	}

	if out.PcapPath != "" {
		w, err := openOutput(out.PcapPath)
		if err != nil {
			return fmt.Errorf("failed to open pcap output: %v", err)
		}
		app.closers = append(app.closers, w)
		sink, err := phy.NewPcapSink(w, app.logger)
		if err != nil {
			return err
		}
		app.pipeline.RegisterEventHandler(sink)
	}

	if out.InjectInterface != "" {
		sink, err := phy.NewInjectSink(out.InjectInterface, out.InjectStripFCS, app.logger)
		if err != nil {
			return fmt.Errorf("failed to create inject output: %v", err)
		}
		app.closers = append(app.closers, sink)
		app.pipeline.RegisterEventHandler(sink)
	}

	return nil
}

// closeInput interrupts a read blocked on the input.
func (app *application) closeInput() {
	if app.input == nil {
		return
	}
	if err := app.input.Close(); err != nil {
		level.Error(app.logger).Log("message", "failed to close input", "error", err)
	}
	app.input = nil
}

func (app *application) close() {
	app.closeInput()
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			level.Error(app.logger).Log("message", "close failed", "error", err)
		}
	}
	app.closers = nil
}

func (app *application) run() int {
	defer app.close()

	if app.server != nil {
		go func() {
			err := app.server.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				level.Error(app.logger).Log("message", "metrics server failed", "error", err)
			}
		}()
		defer app.server.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		app.doneChan <- app.pipeline.Run(ctx, app.source)
	}()

	var grace <-chan time.Time
	for {
		select {
		case <-app.sigChan:
			level.Info(app.logger).Log("message", "received signal, shutting down")
			cancel()
			app.closeInput()
			if grace == nil {
				grace = time.After(shutdownGrace)
			}
		case <-grace:
			level.Error(app.logger).Log("message", "decoder did not stop, exiting")
			return 1
		case err := <-app.doneChan:
			st := app.pipeline.Stats()
			level.Info(app.logger).Log(
				"message", "decoder stopped",
				"bits", st.Sync.BitsProcessed,
				"frames", st.Framer.Frames,
				"rejected", st.Framer.Errors,
				"stalled", st.Framer.Stalls,
				"resyncs", st.Sync.Resyncs)
			if err != nil && !errors.Is(err, context.Canceled) {
				level.Error(app.logger).Log("message", "decoder failed", "error", err)
				return 1
			}
			return 0
		}
	}
}

func main() {
	cfgPathPtr := flag.String("config", "", "specify configuration file path")
	verbosePtr := flag.Bool("verbose", false, "toggle verbose log output")
	inputPtr := flag.String("input", "", "bitstream capture to decode, overriding the configuration")
	formatPtr := flag.String("format", "", "bitstream capture format, overriding the configuration")
	flag.Parse()

	cfg := config.Default()
	if *cfgPathPtr != "" {
		var err error
		cfg, err = config.LoadFile(*cfgPathPtr)
		if err != nil {
			stdlog.Fatalf("failed to load configuration: %v", err)
		}
	}

	if *inputPtr != "" {
		cfg.Input.Path = *inputPtr
	}
	if *formatPtr != "" {
		format, err := bitstream.ParseFormat(*formatPtr)
		if err != nil {
			stdlog.Fatalf("%v", err)
		}
		cfg.Input.Format = format
	}

	app, err := newApplication(cfg, *verbosePtr)
	if err != nil {
		stdlog.Fatalf("failed to instantiate application: %v", err)
	}

	os.Exit(app.run())
}
