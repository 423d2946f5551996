// Command hoot streams a single completion to the terminal, or serves the
// streaming endpoint over HTTP with -serve.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/casualjim/hoot"
	"github.com/casualjim/hoot/broker"
	"github.com/casualjim/hoot/config"
	"github.com/casualjim/hoot/events"
	"github.com/casualjim/hoot/httpstream"
	"github.com/casualjim/hoot/pkg/natsx"
	"github.com/casualjim/hoot/pkg/slogx"
	"github.com/casualjim/hoot/prompt"
	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/fogfish/opts"
	json "github.com/goccy/go-json"
	"github.com/k0kubun/pp/v3"
	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

var log zerolog.Logger

func setupLogging(w io.Writer, level slog.Level) {
	output := zerolog.ConsoleWriter{Out: w, TimeFormat: time.Stamp}
	log = zerolog.New(output).With().Timestamp().Logger()
	slog.SetDefault(slog.New(
		zeroslog.NewHandler(log, &zeroslog.HandlerOptions{Level: level}),
	))
}

type cliOptions struct {
	model       string
	temperature float64
	maxTokens   int
	template    string
	history     string
	envFile     string
	serve       string
	logLevel    string
	render      bool
	debug       bool
	content     string
}

func parseFlags(args []string, stdin io.Reader, stderr io.Writer) (cliOptions, error) {
	var o cliOptions
	fs := flag.NewFlagSet("hoot", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.model, "model", hoot.DefaultModel, "model identifier (gpt-*, claude-*, llama)")
	fs.Float64Var(&o.temperature, "temperature", hoot.DefaultTemperature, "sampling temperature")
	fs.IntVar(&o.maxTokens, "max-tokens", hoot.DefaultMaxTokens, "maximum number of tokens to generate")
	fs.StringVar(&o.template, "template", "", "prompt template with {history} and {input} placeholders")
	fs.StringVar(&o.history, "history", "", "JSON file with prior turns: [{\"author\":\"user\",\"content\":\"...\"}]")
	fs.StringVar(&o.envFile, "env", "", "dotenv file to read settings from (default ./.env when present)")
	fs.StringVar(&o.serve, "serve", "", "serve the streaming endpoint on this address instead of running once")
	fs.StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn or error")
	fs.BoolVar(&o.render, "render", false, "render the final answer as markdown")
	fs.BoolVar(&o.debug, "debug", false, "dump terminal events and include failure details")
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	if o.serve != "" {
		return o, nil
	}
	if fs.NArg() > 0 {
		o.content = strings.Join(fs.Args(), " ")
		return o, nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return o, fmt.Errorf("reading stdin: %w", err)
	}
	o.content = string(b)
	return o, nil
}

func readHistory(path string) ([]prompt.Turn, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var turns []prompt.Turn
	if err := json.Unmarshal(b, &turns); err != nil {
		return nil, fmt.Errorf("parsing history %s: %w", path, err)
	}
	return turns, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stdin, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	var files []string
	if o.envFile != "" {
		files = append(files, o.envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", color.RedString("config"), err)
		return exitUsage
	}
	if o.logLevel != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(o.logLevel)); err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", color.RedString("log-level"), err)
			return exitUsage
		}
	}
	setupLogging(stderr, cfg.LogLevel)

	streamer, closeBroker, err := newStreamer(cfg)
	if err != nil {
		slog.Error("failed to create streamer", slogx.Error(err))
		return exitUsage
	}
	defer closeBroker()

	if o.serve != "" {
		ln, err := net.Listen("tcp", o.serve)
		if err != nil {
			slog.Error("failed to listen", slog.String("addr", o.serve), slogx.Error(err))
			return exitFailed
		}
		if err := serve(ctx, ln, &httpstream.Handler{Generator: streamer, Debug: cfg.Debug || o.debug}); err != nil {
			slog.Error("server failed", slogx.Error(err))
			return exitFailed
		}
		return exitOK
	}

	history, err := readHistory(o.history)
	if err != nil {
		slog.Error("failed to read history", slogx.Error(err))
		return exitUsage
	}
	req, err := hoot.NewRequest(o.model, o.content,
		hoot.WithHistory(history...),
		hoot.WithTemperature(o.temperature),
		hoot.WithMaxTokens(o.maxTokens),
		hoot.WithTemplate(o.template),
	)
	if err != nil {
		slog.Error("invalid request", slogx.Error(err))
		return exitUsage
	}

	p := printer{out: stdout, errOut: stderr, render: o.render, debug: o.debug || cfg.Debug}
	if !p.print(streamer.StreamGeneration(ctx, req)) {
		return exitFailed
	}
	return exitOK
}

// newStreamer wires the streamer from cfg. The returned func releases the broker
// connection, if any.
func newStreamer(cfg config.Config) (*hoot.Streamer, func(), error) {
	options := []opts.Option[hoot.Streamer]{hoot.WithRetry(cfg.Retry)}
	closer := func() {}

	if cfg.NATSURL != "" {
		nc, err := natsx.Connect(cfg.NATSURL)
		if err != nil {
			return nil, closer, fmt.Errorf("connecting to nats: %w", err)
		}
		closer = func() {
			if err := nc.Drain(); err != nil {
				slog.Warn("failed to drain nats connection", slogx.Error(err))
			}
		}
		options = append(options, hoot.WithBroker(broker.NATS(nc)))
	}

	s, err := hoot.New(cfg.Credentials, options...)
	if err != nil {
		closer()
		return nil, func() {}, err
	}
	return s, closer, nil
}

const shutdownTimeout = 10 * time.Second

// serve answers generation requests on ln until ctx ends, then lets in-flight
// streams finish within shutdownTimeout before closing their connections.
func serve(ctx context.Context, ln net.Listener, h http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("POST /api/chat/generate", h)

	// requests outlive ctx so Shutdown can drain them
	base := context.WithoutCancel(ctx)
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("serving", slog.String("addr", ln.Addr().String()))
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(base, shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type printer struct {
	out    io.Writer
	errOut io.Writer
	render bool
	debug  bool
}

// print writes the stream and reports whether it ended successfully.
func (p printer) print(seq iter.Seq[events.Event]) bool {
	var text strings.Builder
	started := false

	for ev := range seq {
		switch e := ev.(type) {
		case events.Token:
			text.WriteString(e.Text)
			if p.render {
				continue
			}
			if !started {
				fmt.Fprint(p.out, color.MagentaString("Assistant")+": ")
				started = true
			}
			fmt.Fprint(p.out, e.Text)
		case events.TerminalError:
			if started {
				fmt.Fprintln(p.out)
			}
			fmt.Fprintf(p.errOut, "%s: %s (%s, %d)\n", color.RedString("Error"), e.Message, e.Kind, e.Status)
			p.dump(e)
			return false
		case events.EndOfStream:
			p.dump(e)
		}
	}

	if p.render {
		p.printRendered(text.String())
	} else if started {
		fmt.Fprintln(p.out)
	}
	return true
}

func (p printer) dump(e events.Event) {
	if !p.debug {
		return
	}
	d := pp.New()
	d.SetOutput(p.errOut)
	d.SetColoringEnabled(!color.NoColor)
	d.Println(e)
}

func (p printer) printRendered(md string) {
	glam, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err == nil {
		var rendered string
		if rendered, err = glam.Render(md); err == nil {
			fmt.Fprint(p.out, rendered)
			return
		}
	}
	slog.Warn("failed to render markdown", slogx.Error(err))
	fmt.Fprintln(p.out, md)
}
