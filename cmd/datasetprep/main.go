package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/denismakogon/videobox/pipeline"
	"github.com/denismakogon/videobox/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(run).Run(ctx, os.Args); err != nil {
		logrus.Error(err.Error())
		os.Exit(1)
	}
}

type planFunc func(cfg *pipeline.Config, log logrus.FieldLogger, pub pipeline.Publisher) []pipeline.Task

type actionFunc func(ctx context.Context, cmd *cli.Command, kind string, plan planFunc) error

func newApp(action actionFunc) *cli.Command {
	return &cli.Command{
		Name:  "datasetprep",
		Usage: "Derive optical flow sequences and per-clip videos from extracted frames",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "class", Aliases: []string{"c"}, Usage: "class directory to process, repeatable (env CLASSES)"},
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "dataset root holding one directory per class (env INPUT_ROOT)"},
			&cli.StringSliceFlag{Name: "ext", Usage: "accepted frame file extension, repeatable (env EXTENSIONS)"},
			&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "classes or groups processed in parallel (env WORKERS)"},
			&cli.StringFlag{Name: "publish", Usage: "S3 endpoint s3://key:secret@host/region/bucket to upload results to (env S3_ENDPOINT)"},
			&cli.StringFlag{Name: "prefix", Usage: "object key prefix for published results (env S3_PREFIX)"},
			&cli.BoolFlag{Name: "purge", Usage: "delete objects previously published for the selected classes first"},
			&cli.StringFlag{Name: "log-level", Usage: "logrus level (env LOG_LEVEL)"},
			&cli.StringFlag{Name: "metrics-addr", Usage: "serve Prometheus metrics on this address (env METRICS_ADDR)"},
			&cli.BoolFlag{Name: "no-progress", Usage: "do not draw a progress bar"},
		},
		Commands: []*cli.Command{
			{
				Name:  "flow",
				Usage: "compute dense optical flow images for every class",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "optical flow output root (env FLOW_OUTPUT_ROOT)"},
					&cli.Float64Flag{Name: "pyr-scale", Usage: "pyramid downscale factor (env FLOW_PYR_SCALE)"},
					&cli.IntFlag{Name: "levels", Usage: "pyramid levels (env FLOW_LEVELS)"},
					&cli.IntFlag{Name: "window-size", Usage: "averaging window size (env FLOW_WINDOW_SIZE)"},
					&cli.IntFlag{Name: "iterations", Usage: "iterations per pyramid level (env FLOW_ITERATIONS)"},
					&cli.IntFlag{Name: "poly-n", Usage: "polynomial expansion neighborhood (env FLOW_POLY_N)"},
					&cli.Float64Flag{Name: "poly-sigma", Usage: "polynomial expansion gaussian sigma (env FLOW_POLY_SIGMA)"},
					&cli.IntFlag{Name: "flags", Usage: "Farneback flags, 0 or 256 for a gaussian window (env FLOW_FLAGS)"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return action(ctx, cmd, pipeline.KindFlow, pipeline.FlowTasks)
				},
			},
			{
				Name:  "videos",
				Usage: "reassemble one video per clip for every class",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "video output root (env VIDEO_OUTPUT_ROOT)"},
					&cli.Float64Flag{Name: "fps", Usage: "output frame rate (env FRAME_RATE)"},
					&cli.StringFlag{Name: "codec", Usage: "four character codec code (env CODEC)"},
					&cli.StringFlag{Name: "container-ext", Usage: "container file extension (env CONTAINER_EXT)"},
					&cli.BoolFlag{Name: "atomic", Usage: "write under a temporary name and rename on success (env ATOMIC_OUTPUT)"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return action(ctx, cmd, pipeline.KindVideo, pipeline.VideoTasks)
				},
			},
		},
	}
}

func run(ctx context.Context, cmd *cli.Command, kind string, plan planFunc) error {
	cfg, err := pipeline.Load()
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	var pub pipeline.Publisher
	if cfg.S3Endpoint != "" {
		s, err := store.NewFromEndpoint(cfg.S3Endpoint, log)
		if err != nil {
			return err
		}
		if cmd.Bool("purge") {
			n, err := pipeline.PurgeClasses(ctx, cfg, kind, s)
			if err != nil {
				return err
			}
			log.Infof("%d previously published %s objects purged", n, kind)
		}
		pub = s
	}

	tasks := plan(cfg, log, pub)
	log.Infof("%d tasks planned for %d classes", len(tasks), len(cfg.Classes))

	var onDone func(pipeline.Result)
	if !cmd.Bool("no-progress") {
		bar := progressbar.NewOptions(len(tasks),
			progressbar.OptionSetDescription(cmd.Name),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWriter(os.Stderr),
		)
		onDone = func(pipeline.Result) {
			bar.Add(1)
		}
	}

	results := pipeline.Run(ctx, tasks, cfg.Workers, onDone)
	for _, r := range results {
		entry := log.WithFields(logrus.Fields{"kind": r.Kind, "task": r.Name, "outputs": r.Outputs})
		if r.Err != nil {
			entry.Error(r.String())
			continue
		}
		entry.Info(r.String())
	}

	failed := pipeline.Failed(results)
	if len(failed) > 0 {
		return cli.Exit(pipeline.Err(results).Error(), 1)
	}
	return nil
}

func applyFlags(cmd *cli.Command, cfg *pipeline.Config) {
	if cmd.IsSet("class") {
		cfg.Classes = cmd.StringSlice("class")
	}
	if cmd.IsSet("input") {
		cfg.InputRoot = cmd.String("input")
	}
	if cmd.IsSet("ext") {
		cfg.Extensions = cmd.StringSlice("ext")
	}
	if cmd.IsSet("workers") {
		cfg.Workers = cmd.Int("workers")
	}
	if cmd.IsSet("publish") {
		cfg.S3Endpoint = cmd.String("publish")
	}
	if cmd.IsSet("prefix") {
		cfg.S3Prefix = cmd.String("prefix")
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}
	if cmd.IsSet("metrics-addr") {
		cfg.MetricsAddr = cmd.String("metrics-addr")
	}

	switch cmd.Name {
	case "flow":
		if cmd.IsSet("output") {
			cfg.FlowOutputRoot = cmd.String("output")
		}
		if cmd.IsSet("pyr-scale") {
			cfg.Flow.PyrScale = cmd.Float64("pyr-scale")
		}
		if cmd.IsSet("levels") {
			cfg.Flow.Levels = cmd.Int("levels")
		}
		if cmd.IsSet("window-size") {
			cfg.Flow.WindowSize = cmd.Int("window-size")
		}
		if cmd.IsSet("iterations") {
			cfg.Flow.Iterations = cmd.Int("iterations")
		}
		if cmd.IsSet("poly-n") {
			cfg.Flow.PolyN = cmd.Int("poly-n")
		}
		if cmd.IsSet("poly-sigma") {
			cfg.Flow.PolySigma = cmd.Float64("poly-sigma")
		}
		if cmd.IsSet("flags") {
			cfg.Flow.Flags = cmd.Int("flags")
		}
	case "videos":
		if cmd.IsSet("output") {
			cfg.VideoOutputRoot = cmd.String("output")
		}
		if cmd.IsSet("fps") {
			cfg.FrameRate = cmd.Float64("fps")
		}
		if cmd.IsSet("codec") {
			cfg.Codec = cmd.String("codec")
		}
		if cmd.IsSet("container-ext") {
			cfg.ContainerExt = cmd.String("container-ext")
		}
		if cmd.IsSet("atomic") {
			cfg.AtomicOutput = cmd.Bool("atomic")
		}
	}
}

func serveMetrics(addr string, log logrus.FieldLogger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Infof("metrics server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("metrics server error: %v", err)
		}
	}()
	return srv
}
