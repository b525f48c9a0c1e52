// Command server runs a standalone blockworld-dev simulation process: it
// loads configuration and bundled content tables, wires the chunk index to
// an on-disk region-file store, and drives the fixed-rate tick loop until
// interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/blockworld-dev/server/config"
	"github.com/blockworld-dev/server/console"
	"github.com/blockworld-dev/server/content"
	"github.com/blockworld-dev/server/metrics"
	"github.com/blockworld-dev/server/region"
	"github.com/blockworld-dev/server/taskqueue"
	"github.com/blockworld-dev/server/tick"
	"github.com/blockworld-dev/server/world"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the server configuration file")
	metricsAddr := flag.String("metrics", ":9100", "address to serve Prometheus metrics on")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	blocks, err := content.DefaultBlockRegistry()
	if err != nil {
		log.Error("failed to load bundled block registry", "err", err)
		os.Exit(1)
	}
	log.Info("loaded block registry", "states", blocks.TotalBlockStateCount())

	reg := metrics.New(prometheus.DefaultRegisterer)
	go func() {
		log.Info("serving metrics", "addr", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, metrics.Handler()); err != nil {
			log.Error("metrics server stopped", "err", err)
		}
	}()

	workers := cfg.Workers.PoolSize
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	tasks := taskqueue.New(cfg.Workers.QueueSize)
	pool := taskqueue.NewPool(tasks, workers)
	defer func() {
		tasks.Close()
		pool.Wait()
	}()

	decodeCache, err := region.OpenDecodeCache(filepath.Join(cfg.World.Root, "decode-cache"), cfg.Region.DecodeCacheSize)
	if err != nil {
		log.Error("failed to open region decode cache", "err", err)
		os.Exit(1)
	}
	defer decodeCache.Close()

	loader := region.NewReader(log, cfg.World.Root, blocks)
	loader.Observer = reg
	loader.Cache = decodeCache

	idx := world.NewIndex(world.IndexConfig{
		Log:               log,
		Blocks:            blocks,
		Loader:            loader,
		Tasks:             tasks,
		MaxUpdatesPerTick: cfg.Chunks.MaxUpdatesPerTick,
		TickBudget:        cfg.TickBudget(),
	})

	spill, err := world.OpenOverflowSpill(log, cfg.Scheduling.SpillDir)
	if err != nil {
		log.Error("failed to open scheduled-update overflow store", "err", err)
		os.Exit(1)
	}
	defer spill.Close()

	rt := tick.NewRuntime(log, idx, tasks).WithScheduledSpill(spill)
	sched := tick.NewScheduler(log)
	sched.Interval = cfg.TickInterval()
	sched.Observer = reg

	stopSampling := make(chan struct{})
	go sampleGauges(idx, tasks, reg, stopSampling)

	cmdReg := console.NewRegistry()
	registerCommands(cmdReg, rt, sched)
	con := console.New(cmdReg, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		sched.Run(func(tickStart time.Time) { rt.RunTick(tickStart) })
	}()

	go func() {
		con.Run(ctx)
		cancel()
	}()

	log.Info("server started", "tps_target", float64(time.Second)/float64(cfg.TickInterval()))
	<-ctx.Done()
	log.Info("shutting down")
	close(stopSampling)
	sched.Stop()
}

// sampleGauges periodically refreshes the gauges that have no natural
// push point of their own (queue depth, loaded-chunk count), until
// stop closes.
func sampleGauges(idx *world.Index, tasks *taskqueue.Queue, reg *metrics.Registry, stop <-chan struct{}) {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			reg.TaskQueueDepth.Set(float64(tasks.Len()))
			reg.LoadedChunks.Set(float64(idx.LoadedChunkCount()))
		}
	}
}

// registerCommands wires the small set of operator commands this core
// ships with.
func registerCommands(reg *console.Registry, rt *tick.Runtime, sched *tick.Scheduler) {
	reg.Register(&console.Command{
		Name:  "tps",
		Usage: "/tps -- report the current simulation tick rate",
		Run: func(src console.Source, args []string) (string, error) {
			return fmtTPS(sched.TPS()), nil
		},
	})
	reg.Register(&console.Command{
		Name:    "chunks",
		Aliases: []string{"chunk"},
		Usage:   "/chunks -- report the number of tracked chunk shells",
		Run: func(src console.Source, args []string) (string, error) {
			return fmtChunks(rt.Idx.LoadedChunkCount()), nil
		},
	})
	reg.Register(&console.Command{
		Name:  "stop",
		Usage: "/stop -- shut the server down",
		Run: func(src console.Source, args []string) (string, error) {
			go sched.Stop()
			return "stopping", nil
		},
	})
}

func fmtTPS(tps float64) string {
	return fmt.Sprintf("tick rate: %.1f tps", tps)
}

func fmtChunks(n int) string {
	return fmt.Sprintf("tracked chunks: %d", n)
}
