package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"LocalInk/internal/config"
	"LocalInk/internal/export"
	"LocalInk/internal/geom"
	"LocalInk/internal/net"
	"LocalInk/internal/state"
	"LocalInk/internal/worker"
)

type clientOptions struct {
	in    string
	pdf   string
	erase string
	page  int
	local bool
}

func main() {
	var (
		configPath string
		opts       clientOptions
	)
	flag.StringVar(&configPath, "config", "", "path to a YAML config file (default $LOCALINK_CONFIG)")
	flag.StringVar(&opts.in, "in", "", "client: JSON file with the strokes to process")
	flag.StringVar(&opts.pdf, "pdf", "", "client: write a before/after preview to this PDF file")
	flag.StringVar(&opts.erase, "erase", "", "client: erase the strokes around x,y after processing")
	flag.IntVar(&opts.page, "page", 0, "client: page the eraser works on")
	flag.BoolVar(&opts.local, "local", false, "client: run the workers in this process instead of on a host")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage:\n  %s [flags]                       run a worker host\n  %s [flags] %s[host:port]  process strokes on a host\n  %s [flags] -local -in FILE      process strokes in this process\n\nflags:\n",
			os.Args[0], os.Args[0], net.Scheme, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if configPath == "" {
		configPath = os.Getenv(config.EnvPrefix + "CONFIG")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	link := flag.Arg(0)
	switch {
	case strings.HasPrefix(link, net.Scheme) || opts.local:
		err = runClient(ctx, cfg, logger, link, opts)
	case link == "":
		err = runHost(ctx, cfg, logger)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("exiting", zap.Error(err))
		os.Exit(1)
	}
}

func newHandler(cfg *config.Config, metrics *worker.Metrics, logger *zap.Logger) *worker.Handler {
	return worker.NewHandler(worker.HandlerOptions{
		Defaults: worker.Defaults{
			Tolerance:       cfg.Defaults.Tolerance,
			OnlineTolerance: cfg.Defaults.OnlineTolerance,
			Intensity:       cfg.Defaults.Intensity,
			Radius:          cfg.Defaults.Radius,
		},
		DropUnsupported: cfg.Worker.DropUnsupported,
		Metrics:         metrics,
		Logger:          logger,
	})
}

func poolConfig(cfg *config.Config) worker.PoolConfig {
	return worker.PoolConfig{Workers: cfg.Worker.Count, QueueSize: cfg.Worker.QueueSize}
}

func runHost(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting as HOST")
	metrics := worker.NewMetrics("localink")

	srv := net.NewServer(net.ServerOptions{
		Path:    cfg.Server.Path,
		Pool:    poolConfig(cfg),
		Handler: newHandler(cfg, metrics, logger),
		Metrics: metrics,
		Logger:  logger,
	})

	if cfg.Discovery.Enabled {
		ad, err := net.Advertise(cfg.Discovery.Service, cfg.Server.Port, cfg.Server.Path, logger)
		if err != nil {
			// Clients can still connect with the share link.
			logger.Warn("[HOST] mDNS unavailable", zap.Error(err))
		} else {
			defer ad.Shutdown()
		}
	}

	shareLink := net.Link(fmt.Sprintf("%s:%d", net.LocalIPv4(), cfg.Server.Port))
	logger.Info("[HOST] share link", zap.String("link", shareLink))

	return srv.ListenAndServe(ctx, cfg.Addr())
}

func runClient(ctx context.Context, cfg *config.Config, logger *zap.Logger, link string, opts clientOptions) error {
	if opts.in == "" {
		return errors.New("-in is required")
	}
	strokes, err := loadStrokes(opts.in)
	if err != nil {
		return err
	}

	var transport worker.Transport
	if opts.local {
		logger.Info("Starting as CLIENT with local workers")
		pool := worker.NewPool(newHandler(cfg, nil, logger), poolConfig(cfg), logger)
		defer pool.Close()
		transport = pool
	} else {
		logger.Info("Starting as CLIENT")
		c, err := connectToHost(ctx, cfg, logger, link)
		if err != nil {
			return err
		}
		defer c.Close()
		transport = c
	}

	d := worker.NewDispatcher(transport, cfg.Worker.RequestTimeout, logger)
	if err := d.Ping(ctx); err != nil {
		return fmt.Errorf("connection test: %w", err)
	}
	logger.Info("[CLIENT] worker answered connection test")

	board := state.NewBoard(logger)
	raw := make([][]geom.Point, 0, len(strokes))
	for _, s := range strokes {
		board.Add(s)
		raw = append(raw, s.Points)
	}

	if err := process(ctx, d, board, cfg, logger); err != nil {
		return err
	}

	if opts.erase != "" {
		if err := erase(ctx, d, board, cfg, logger, opts.erase, opts.page); err != nil {
			return err
		}
	}

	if opts.pdf != "" {
		processed := make([][]geom.Point, 0, board.Len())
		for _, s := range board.Strokes() {
			processed = append(processed, s.Points)
		}
		err := export.WritePreviewFile(opts.pdf, opts.in,
			export.Layer{Name: "input", Color: export.Gray, Width: 0.8, Paths: raw},
			export.Layer{Name: "smoothed + simplified", Color: export.Ink, Width: 0.4, Paths: processed},
		)
		if err != nil {
			return fmt.Errorf("write preview: %w", err)
		}
		logger.Info("[CLIENT] preview written", zap.String("path", opts.pdf))
	}
	return nil
}

func connectToHost(ctx context.Context, cfg *config.Config, logger *zap.Logger, link string) (*net.Client, error) {
	addr, err := net.ParseLink(link)
	if err != nil {
		return nil, err
	}
	if addr == "" {
		hosts, err := net.Browse(ctx, cfg.Discovery.Service, cfg.Discovery.Timeout)
		if err != nil {
			return nil, err
		}
		if len(hosts) == 0 {
			return nil, fmt.Errorf("no %s host found on the local network", cfg.Discovery.Service)
		}
		addr = hosts[0]
		logger.Info("[CLIENT] found host", zap.String("addr", addr), zap.Int("candidates", len(hosts)))
	}

	c, err := net.Dial(ctx, addr, cfg.Server.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	logger.Info("[CLIENT] connected", zap.String("addr", addr))
	return c, nil
}

func loadStrokes(path string) ([]state.Stroke, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var strokes []state.Stroke
	if err := json.Unmarshal(data, &strokes); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return strokes, nil
}

// process smooths then simplifies every stroke on the board, all strokes in
// flight at once, and reports the analysis of the result.
func process(ctx context.Context, d *worker.Dispatcher, board *state.Board, cfg *config.Config, logger *zap.Logger) error {
	strokes := board.Strokes()
	errs := make([]error, len(strokes))

	var wg sync.WaitGroup
	for i, s := range strokes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = processStroke(ctx, d, board, s, cfg, logger)
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

func processStroke(ctx context.Context, d *worker.Dispatcher, board *state.Board, s state.Stroke, cfg *config.Config, logger *zap.Logger) error {
	smoothed, err := d.Smooth(ctx, s.Points, cfg.Defaults.Intensity)
	if err != nil {
		return fmt.Errorf("smooth %s: %w", s.ID, err)
	}
	simplified, err := d.Simplify(ctx, smoothed, cfg.Defaults.Tolerance)
	if err != nil {
		return fmt.Errorf("simplify %s: %w", s.ID, err)
	}

	updated, err := board.ReplacePoints(s.ID, s.Version, simplified)
	if errors.Is(err, state.ErrStaleVersion) {
		logger.Info("[CLIENT] stroke changed while processing, keeping it", zap.String("id", s.ID))
		return nil
	}
	if err != nil {
		return err
	}

	a, err := d.Analyze(ctx, updated.Points)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", s.ID, err)
	}
	logger.Info("[CLIENT] stroke processed",
		zap.String("id", s.ID),
		zap.Int("pointsIn", len(s.Points)),
		zap.Int("pointsOut", len(updated.Points)),
		zap.Float64("length", a.Length),
		zap.Float64("complexity", a.Complexity))
	return nil
}

func erase(ctx context.Context, d *worker.Dispatcher, board *state.Board, cfg *config.Config, logger *zap.Logger, at string, page int) error {
	p, err := parsePoint(at)
	if err != nil {
		return err
	}
	ids, points := board.Points(page)
	hits, err := d.FindHits(ctx, p, points, cfg.Defaults.Radius)
	if err != nil {
		return fmt.Errorf("find hits: %w", err)
	}

	victims, err := hitIDs(ids, hits)
	if err != nil {
		return err
	}
	removed := board.Remove(victims...)
	logger.Info("[CLIENT] erased strokes", zap.Int("removed", removed), zap.Int("left", board.Len()))
	return nil
}

// hitIDs maps hit indices from the worker back to stroke ids. The indices
// come from another process, so they are checked.
func hitIDs(ids []string, hits []int) ([]string, error) {
	out := make([]string, 0, len(hits))
	for _, i := range hits {
		if i < 0 || i >= len(ids) {
			return nil, fmt.Errorf("find hits: index %d out of range for %d strokes", i, len(ids))
		}
		out = append(out, ids[i])
	}
	return out, nil
}

func parsePoint(s string) (geom.Point, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return geom.Point{}, fmt.Errorf("point %q: want x,y", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return geom.Point{}, fmt.Errorf("point %q: %w", s, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return geom.Point{}, fmt.Errorf("point %q: %w", s, err)
	}
	return geom.Pt(x, y), nil
}
