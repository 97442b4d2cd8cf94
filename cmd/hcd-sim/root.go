package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	hcd "github.com/ehrlich-b/go-hcd"
	"github.com/ehrlich-b/go-hcd/backend"
	"github.com/ehrlich-b/go-hcd/internal/hw"
	"github.com/ehrlich-b/go-hcd/internal/logging"
)

var opts struct {
	config      string
	controllers int
	workers     int
	duration    time.Duration
	size        string
	listen      string
	verbose     bool
	format      string
	endpoints   bool
}

var rootCmd = &cobra.Command{
	Use:   "hcd-sim",
	Short: "Run simulated host controllers under a random workload",
	Long: `hcd-sim starts simulated host controllers on one shared interrupt ` +
		`line, drives them with random-priority reads and writes plus bulk ` +
		`endpoint transfers, and prints a metrics snapshot per controller.`,
	SilenceUsage: true,
	RunE:         run,
}

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Print the controller parameters as YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, err := loadParams()
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(p)
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVarP(&opts.config, "config", "c", "", "YAML parameter file")

	f = rootCmd.Flags()
	f.IntVar(&opts.controllers, "controllers", 2, "Controllers sharing the interrupt line")
	f.IntVar(&opts.workers, "workers", 4, "Submitting goroutines per controller")
	f.DurationVarP(&opts.duration, "duration", "d", 2*time.Second, "How long to run the workload")
	f.StringVar(&opts.size, "size", "16M", "Media size per controller (e.g. 512K, 64M)")
	f.StringVar(&opts.listen, "listen", "", "Serve Prometheus metrics on this address")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging")
	f.StringVar(&opts.format, "log-format", "text", "Log format: text or json")
	f.BoolVar(&opts.endpoints, "endpoints", true, "Run bulk endpoint traffic alongside requests")

	rootCmd.AddCommand(paramsCmd)
}

func loadParams() (hcd.Params, error) {
	if opts.config == "" {
		return hcd.DefaultParams(), nil
	}
	return hcd.LoadParams(opts.config)
}

type node struct {
	ctrl *hcd.Controller
	sim  *hw.Sim
	mem  *backend.Memory
}

func run(cmd *cobra.Command, _ []string) error {
	logConfig := logging.DefaultConfig()
	logConfig.Format = opts.format
	if opts.verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	defer logger.Close()
	logging.SetDefault(logger)

	params, err := loadParams()
	if err != nil {
		return err
	}
	if params.IRQLine < 0 {
		params.IRQLine = 11
	}
	size, err := parseSize(opts.size)
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", opts.size, err)
	}
	if size < 64*1024 {
		return fmt.Errorf("size %s is below the 64K minimum", opts.size)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := hcd.NewRegistry()

	promReg := prometheus.NewRegistry()
	counters := metrics.NewRegistry()
	line := params.IRQLine

	var nodes []*node
	for i := 0; i < opts.controllers; i++ {
		mem := backend.NewMemory(size)
		defer mem.Close()

		sim, err := hw.NewSim(hw.Config{
			AreaSize:      params.AreaSize,
			MaxSegments:   params.MaxSegments,
			Alignment:     params.Alignment,
			Media:         mem,
			Targets:       2,
			Auto:          true,
			FrameInterval: time.Millisecond,
			IRQ:           func() { reg.HandleIRQ(line) },
			Logger:        logger,
		})
		if err != nil {
			return err
		}
		defer sim.Close()

		c, err := reg.Add(sim, params, &hcd.Options{
			Observer: hcd.NewRegistryObserver(counters, fmt.Sprintf("ctrl%d", i)),
			OnEvent: func(ev hcd.Event) {
				logger.Info("controller event", "source", ev.Source, "index", ev.Index, "count", ev.Count)
			},
		})
		if err != nil {
			return err
		}
		if err := promReg.Register(hcd.NewCollector(c.Metrics(), "hcd", fmt.Sprint(c.ID()))); err != nil {
			return err
		}
		nodes = append(nodes, &node{ctrl: c, sim: sim, mem: mem})
	}
	// Controllers close before the simulators under them.
	defer reg.Close()

	for _, n := range nodes {
		n.sim.Start(ctx)
		if err := n.ctrl.Start(ctx); err != nil {
			return err
		}
	}

	if opts.listen != "" {
		srv := &http.Server{Addr: opts.listen, Handler: promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics listener failed", "error", err)
			}
		}()
		defer srv.Close()
		logger.Info("serving metrics", "addr", opts.listen)
	}

	logger.Info("starting workload", "controllers", len(nodes), "workers", opts.workers, "duration", opts.duration, "irq", line)
	wctx, cancel := context.WithTimeout(ctx, opts.duration)
	defer cancel()

	g, gctx := errgroup.WithContext(wctx)
	for _, n := range nodes {
		for w := 0; w < opts.workers; w++ {
			g.Go(func() error { return requestWorker(gctx, n, w) })
		}
		if opts.endpoints {
			g.Go(func() error { return endpointWorker(gctx, n) })
		}
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return err
	}

	for _, n := range nodes {
		if _, err := n.ctrl.Exec(context.Background(), hcd.AdminFlush(0)); err != nil {
			logger.Warn("final flush failed", "ctrl", n.ctrl.ID(), "error", err)
		}
	}

	out := cmd.OutOrStdout()
	for _, n := range nodes {
		printSummary(out, n)
	}
	metrics.WriteOnce(counters, out)
	return nil
}
