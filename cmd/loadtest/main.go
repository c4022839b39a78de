// Command loadtest appends events to one or more streams of a configurable
// backend and reports throughput. Configuration is read from the
// environment, see config.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	escprom "github.com/codewandler/esc-go/adapters/prometheus"
	"github.com/codewandler/esc-go/core/es"
)

func main() {
	cfg, err := parseConfig()
	checkErr(err)

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	format, err := es.ParseFormat(cfg.Format)
	checkErr(err)

	fmt.Printf("Backend: %s\n", cfg.Backend)
	fmt.Printf(" Format: %s\n", format)
	fmt.Printf("  Async: %t\n", cfg.Async)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	storeMetrics := escprom.NewStoreMetrics(reg)
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, reg, log)
		defer func() { _ = srv.Shutdown(context.Background()) }()
	}

	backend, err := openBackend(ctx, cfg, log)
	checkErr(err)

	store := es.NewStore(backend, registry(), es.WithFormat(format), es.WithLog(log), es.WithMetrics(storeMetrics))
	defer func() { checkErr(store.Close()) }()

	r := &run{
		cfg:     cfg,
		id:      gonanoid.Must(8),
		store:   store,
		streams: make([]es.StreamID, cfg.Streams),
	}
	for i := range r.streams {
		r.streams[i] = es.MustSimpleStreamID(fmt.Sprintf("user-%s-%d", r.id, i))
	}

	// === START ===

	log.Info("==================================")
	log.Info("Starting ...", slog.String("run_id", r.id))

	startAt := time.Now()
	if cfg.Async {
		async := es.NewAsyncStore(store, es.WithWorkers(cfg.Workers), es.WithStreamOrdering(), es.WithAsyncLog(log), es.WithAsyncMetrics(storeMetrics))
		err = r.appendAsync(ctx, async)
	} else {
		err = r.appendSync(ctx)
	}
	checkErr(err)
	took := time.Since(startAt)

	if cfg.ReadBack {
		checkErr(r.readBack(ctx))
	}

	// === stats ===
	println("")
	println("==========================================")

	runtime.GC()
	fmt.Printf("total runtime: %.3f seconds\n", took.Seconds())
	fmt.Printf("      streams: %d\n", len(r.streams))
	fmt.Printf("       events: %d\n", cfg.N)
	fmt.Printf("avg. writes/s: %d\n", int(float64(cfg.N)/took.Seconds()))
}

type run struct {
	cfg     config
	id      string
	store   es.EventStore
	streams []es.StreamID

	lastTime time.Time
}

// event returns the i-th event of the run. Events alternate between a JSON
// and an XML payload.
func (r *run) event(i int) es.CommonEvent {
	userID := fmt.Sprintf("user-%d", i%len(r.streams))
	var e es.CommonEvent
	if i%2 == 0 {
		e = es.NewEvent(EmailChanged{UserID: userID, Email: fmt.Sprintf("user@host-%d.com", i)})
	} else {
		e = es.NewEvent(NameChanged{UserID: userID, Name: fmt.Sprintf("user %d", i)})
	}
	return e.WithMeta(RunMeta{RunID: r.id, Seq: i})
}

func (r *run) appendSync(ctx context.Context) error {
	r.lastTime = time.Now()
	versions := make([]int64, len(r.streams))
	for i := 0; i < r.cfg.N; i++ {
		s := i % len(r.streams)
		v, err := r.store.AppendToStream(ctx, r.streams[s], es.MustExactVersion(versions[s]), r.event(i))
		if err != nil {
			return err
		}
		versions[s] = v
		r.progress(i)
	}
	return nil
}

// appendAsync submits one batch at a time. Per stream ordering lets every
// append carry its exact expected version.
func (r *run) appendAsync(ctx context.Context, async *es.AsyncStore) error {
	r.lastTime = time.Now()
	versions := make([]int64, len(r.streams))
	futures := make([]*es.Future[int64], 0, r.cfg.BatchSize)
	for i := 0; i < r.cfg.N; i++ {
		s := i % len(r.streams)
		futures = append(futures, async.AppendToStream(ctx, r.streams[s], es.MustExactVersion(versions[s]), r.event(i)))
		versions[s]++

		if len(futures) == r.cfg.BatchSize || i == r.cfg.N-1 {
			for _, f := range futures {
				if _, err := f.Wait(ctx); err != nil {
					return err
				}
			}
			futures = futures[:0]
		}
		r.progress(i)
	}
	return nil
}

func (r *run) readBack(ctx context.Context) error {
	total := 0
	for _, id := range r.streams {
		events, err := es.ReadAllForward(ctx, r.store, id, 500)
		if err != nil {
			return err
		}
		total += len(events)
	}
	if total != r.cfg.N {
		return fmt.Errorf("read back %d events, want %d", total, r.cfg.N)
	}
	fmt.Printf("\nread back %d events\n", total)
	return nil
}

func (r *run) progress(i int) {
	if i == 0 {
		return
	}
	if i%100 == 0 {
		print(".")
	}
	if i%r.cfg.BatchSize == 0 {
		mu := getMemUsage()

		n := time.Now()
		took := n.Sub(r.lastTime)
		fmt.Printf(" | %5d events | %6d ms |  %6d events/s | (%d / %d) MiB mem (sys) |\n", r.cfg.BatchSize, took.Milliseconds(), int(float64(r.cfg.BatchSize)/took.Seconds()), mu.Alloc/1024/1024, mu.Sys/1024/1024)
		r.lastTime = n
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	log.Info("serving metrics", slog.String("addr", addr))
	return srv
}

// === stats helpers ===

type MemUsage struct {
	Alloc      uint64 // bytes allocated and not yet freed (heap)
	TotalAlloc uint64 // cumulative bytes allocated
	Sys        uint64 // total bytes obtained from OS
	NumGC      uint32 // gc cycles
}

func getMemUsage() MemUsage {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemUsage{
		Alloc:      m.Alloc,
		TotalAlloc: m.TotalAlloc,
		Sys:        m.Sys,
		NumGC:      m.NumGC,
	}
}

func checkErr(err error) {
	if err != nil {
		panic(err)
	}
}
