package main

import (
	"context"
	"fmt"
	stdnet "net"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"ConceptCanvas/internal/auth"
	"ConceptCanvas/internal/config"
	"ConceptCanvas/internal/export"
	"ConceptCanvas/internal/logging"
	"ConceptCanvas/internal/net"
	"ConceptCanvas/internal/state"
	"ConceptCanvas/internal/ui"

	"github.com/docopt/docopt-go"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Version is overridden at build time with -ldflags "-X main.Version=...".
var Version = "0.0.0-local"

func main() {
	usage := `ConceptCanvas collaborative board.

Usage:
    conceptcanvas serve [--config=<config>] [--addr=<addr>] [--advertise] [--room=<room>]
    conceptcanvas draw [<document_url>] [--config=<config>] [--user=<user>] [--server=<server>]
        [--discover] [--open=<file>]
    conceptcanvas export <document> <out>
    conceptcanvas discover [--timeout=<timeout>]
    conceptcanvas -h | --help
    conceptcanvas --version

Options:
    -h --help              Show this screen.
    --version              Show version.
    --config=<config>      YAML configuration file.
    --addr=<addr>          Relay listen address.
    --advertise            Announce the relay on the local network.
    --room=<room>          Room named in the printed share link [default: lobby].
    --user=<user>          User id stamped on outgoing events.
    --server=<server>      Relay URL, e.g. ws://10.0.0.5:8888/ws.
    --discover             Find a relay on the local network.
    --open=<file>          Board document to load on start.
    --timeout=<timeout>    How long to browse [default: 3s].`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], Version)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case flag(opts, "serve"):
		err = serve(ctx, opts)
	case flag(opts, "draw"):
		err = draw(ctx, opts)
	case flag(opts, "export"):
		err = exportDocument(opts)
	case flag(opts, "discover"):
		err = discover(ctx, opts)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "conceptcanvas: %v\n", err)
		os.Exit(1)
	}
}

func flag(opts docopt.Opts, name string) bool {
	v, _ := opts.Bool(name)
	return v
}

func str(opts docopt.Opts, name string) string {
	v, _ := opts.String(name)
	return v
}

func setup(opts docopt.Opts) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(str(opts, "--config"))
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func serve(ctx context.Context, opts docopt.Opts) error {
	cfg, logger, err := setup(opts)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if addr := str(opts, "--addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	metrics := net.NewMetrics("conceptcanvas")
	router := net.NewRouter(metrics, logger)
	go router.Run(ctx)

	serverCfg := net.DefaultServerConfig()
	serverCfg.Addr = cfg.Server.Addr
	serverCfg.AllowedOrigins = cfg.Server.AllowedOrigins
	serverCfg.SendBuffer = cfg.Server.SendBuffer
	server := net.NewServer(serverCfg, router, metrics, logger)

	tokens, err := auth.NewTokens(cfg.Security.JWTSecret, cfg.Security.Issuer, cfg.Security.TokenTTL)
	if err != nil {
		return err
	}
	server.Mount("/auth", auth.NewHandler(auth.NewMemoryStore(), tokens, logger).Routes())

	port, err := listenPort(cfg.Server.Addr)
	if err != nil {
		return err
	}
	if flag(opts, "--advertise") || cfg.Discovery.Advertise {
		mdnsServer, err := net.Advertise(port, "ConceptCanvas "+Version)
		if err != nil {
			logger.Warn("mDNS advertisement failed", zap.Error(err))
		} else {
			defer mdnsServer.Shutdown()
			logger.Info("Advertising relay", zap.String("service", net.ServiceType), zap.Int("port", port))
		}
	}

	if ip, err := net.GetOutgoingIP(); err == nil {
		fmt.Printf("Share link: %s\n", net.ShareLink(ip, port, str(opts, "--room")))
	}
	return server.ListenAndServe(ctx)
}

func listenPort(addr string) (int, error) {
	_, portStr, err := stdnet.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	return strconv.Atoi(portStr)
}

func draw(ctx context.Context, opts docopt.Opts) error {
	cfg, logger, err := setup(opts)
	if err != nil {
		return err
	}
	defer logger.Sync()

	documentURL := str(opts, "<document_url>")
	serverURL, err := relayURL(ctx, cfg, opts, documentURL)
	if err != nil {
		return err
	}

	userID := str(opts, "--user")
	if userID == "" {
		userID = cfg.Sync.UserID
	}
	if userID == "" {
		userID = ulid.Make().String()
	}

	canvas := state.NewCanvas(logger, state.Options{HistoryCapacity: cfg.Sync.HistoryCapacity})
	if path := str(opts, "--open"); path != "" {
		doc, err := state.LoadDocumentFile(path)
		if err != nil {
			return err
		}
		if err := canvas.Load(doc); err != nil {
			return err
		}
	}

	session := net.NewSession(serverURL, userID, net.RoomFromURL(documentURL), canvas, logger,
		net.SessionOptions{SendBuffer: cfg.Sync.SendBuffer})
	defer session.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	// One attempt. After a drop the session stays suspended until the user
	// asks to reconnect.
	go func() {
		if err := session.Connect(ctx); err != nil {
			logger.Warn("Relay unreachable", zap.Error(err))
		}
	}()

	board := ui.NewBoard(canvas, logger)
	ui.Run(ctx, board, ui.Options{
		Title:     "ConceptCanvas - " + session.RoomID(),
		ShareLink: documentURL,
		Status: func() string {
			return fmt.Sprintf("%s as %s in %s", session.State(), session.UserID(), session.RoomID())
		},
		Reconnect: session.Reconnect,
	}, logger)
	return nil
}

// relayURL picks the relay: an explicit --server, a discovered relay, the host
// of the document URL, then the configured default.
func relayURL(ctx context.Context, cfg *config.Config, opts docopt.Opts, documentURL string) (string, error) {
	if server := str(opts, "--server"); server != "" {
		return net.WebSocketURL(server)
	}
	if flag(opts, "--discover") {
		relay, err := net.FirstRelay(ctx, cfg.Discovery.Timeout)
		if err != nil {
			return "", fmt.Errorf("no relay found: %w", err)
		}
		return net.WebSocketURL(relay.Addr)
	}
	if documentURL != "" {
		if u, err := url.Parse(documentURL); err == nil && u.Host != "" {
			return net.WebSocketURL(u.Scheme + "://" + u.Host)
		}
	}
	return net.WebSocketURL(cfg.Sync.ServerURL)
}

func exportDocument(opts docopt.Opts) error {
	doc, err := state.LoadDocumentFile(str(opts, "<document>"))
	if err != nil {
		return err
	}
	out := str(opts, "<out>")
	if err := export.Save(out, doc); err != nil {
		return err
	}
	fmt.Printf("Exported %d objects to %s\n", len(doc.Objects), out)
	return nil
}

func discover(ctx context.Context, opts docopt.Opts) error {
	timeout, err := time.ParseDuration(str(opts, "--timeout"))
	if err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	found := 0
	err = net.Browse(ctx, timeout, func(r net.Relay) {
		found++
		fmt.Printf("%s\t%s\n", r.Addr, r.Name)
	})
	if found == 0 {
		fmt.Println("No relays found")
	}
	return err
}
