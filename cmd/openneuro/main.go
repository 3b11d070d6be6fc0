// Command openneuro runs the pipeline runtime with its HTTP control
// surface. A graph preset can be loaded at startup; everything else is
// driven live through the API.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/Project-NEURIA/OpenNeuro/channel"
	"github.com/Project-NEURIA/OpenNeuro/component"
	"github.com/Project-NEURIA/OpenNeuro/components"
	"github.com/Project-NEURIA/OpenNeuro/config"
	"github.com/Project-NEURIA/OpenNeuro/frames"
	"github.com/Project-NEURIA/OpenNeuro/graph"
	"github.com/Project-NEURIA/OpenNeuro/logger"
	"github.com/Project-NEURIA/OpenNeuro/metrics"
	"github.com/Project-NEURIA/OpenNeuro/metrics/prom"
	"github.com/Project-NEURIA/OpenNeuro/runtime"
	"github.com/Project-NEURIA/OpenNeuro/server"
)

// shutdownGrace is how long in-flight HTTP requests get to drain.
const shutdownGrace = 5 * time.Second

type options struct {
	port      int
	preset    string
	interval  time.Duration
	capacity  int
	history   int
	envFile   string
	verbose   bool
	autostart bool
}

func main() {
	var opts options
	flag.IntVar(&opts.port, "port", 8080, "control surface port")
	flag.StringVar(&opts.preset, "graph", "", "path to a YAML graph preset")
	flag.DurationVar(&opts.interval, "metrics-interval", metrics.DefaultInterval, "metrics sampling cadence")
	flag.IntVar(&opts.capacity, "channel-capacity", channel.DefaultCapacity, "per-subscriber buffer capacity")
	flag.IntVar(&opts.history, "frame-history", frames.DefaultHistory, "frame inspector history size")
	flag.StringVar(&opts.envFile, "env-file", "", "load environment from this file (default .env if present)")
	flag.BoolVar(&opts.verbose, "verbose", false, "enable debug logging")
	flag.BoolVar(&opts.autostart, "start", false, "start the preset pipeline immediately")
	flag.Parse()

	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil {
			logger.Error("failed to load env file", "path", opts.envFile, "error", err)
			os.Exit(1)
		}
	} else {
		_ = godotenv.Load()
	}
	if opts.verbose {
		logger.SetVerbose(true)
	}

	if err := run(opts); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("runtime exited", "error", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	reg := component.NewRegistry()
	components.MustRegister(reg)

	g := graph.New(reg)
	rt := runtime.New(g, runtime.Config{
		ChannelCapacity: opts.capacity,
		FrameHistory:    opts.history,
	})

	if opts.preset != "" {
		preset, err := config.Load(opts.preset)
		if err != nil {
			return err
		}
		if err := preset.Apply(g); err != nil {
			return err
		}
	}

	engine := metrics.NewEngine(rt, opts.interval)
	exporter := prom.NewExporter()
	srv := server.NewServer(rt, reg, engine,
		server.WithPort(opts.port),
		server.WithPrometheus(exporter.Handler()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error { return engine.Run(ctx) })
	grp.Go(func() error { return exporter.Run(ctx, engine) })
	grp.Go(func() error {
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	grp.Go(func() error {
		<-ctx.Done()
		rt.StopAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if opts.autostart {
		if err := rt.StartAll(); err != nil {
			return err
		}
	}

	return grp.Wait()
}
