package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/livekit/protocol/logger"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/dmisol/lkportal"
	"github.com/dmisol/lkportal/capture"
	"github.com/dmisol/lkportal/defs"
	"github.com/dmisol/lkportal/dummyclient"
	"github.com/dmisol/lkportal/stats"
	"github.com/dmisol/lkportal/video/h264"
)

var baseFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Usage:   "path to portal yaml config",
		EnvVars: []string{"LKPORTAL_CONFIG"},
	},
	&cli.StringFlag{
		Name:  "room",
		Usage: "room to join, overrides config",
	},
	&cli.StringFlag{
		Name:  "identity",
		Usage: "participant identity, overrides config",
	},
	&cli.StringFlag{
		Name:    "addr",
		Usage:   "control panel address, overrides config",
		EnvVars: []string{"LKPORTAL_ADDR"},
	},
	&cli.BoolFlag{
		Name:  "dev",
		Usage: "debug logging, console format",
	},
}

func main() {
	app := &cli.App{
		Name:        "lkportal",
		Usage:       "LiveKit room portal with an http control panel",
		Description: "run without subcommands to start the panel",
		Flags:       baseFlags,
		Action:      serve,
		Commands: []*cli.Command{
			{
				Name:   "watch",
				Usage:  "join the room as a plain subscriber and log what arrives",
				Action: watch,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Errorw("exiting", err)
		os.Exit(1)
	}
}

func getConfig(c *cli.Context) (*defs.PortalConf, error) {
	conf, err := defs.LoadConf(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.Bool("dev") {
		conf.Logging.Level = "debug"
		conf.Logging.JSON = false
	}
	if v := c.String("room"); v != "" {
		conf.Room = v
	}
	if v := c.String("identity"); v != "" {
		conf.Identity = v
	}
	if v := c.String("addr"); v != "" {
		conf.Panel.Addr = v
	}

	logger.InitFromConfig(&logger.Config{
		Level: conf.Logging.Level,
		JSON:  conf.Logging.JSON,
	}, "lkportal")
	lksdk.SetLogger(logger.GetLogger())
	return conf, nil
}

func signals(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Infow("exit requested, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func serve(c *cli.Context) error {
	conf, err := getConfig(c)
	if err != nil {
		return err
	}
	ctx, cancel := signals(c.Context)
	defer cancel()

	if err = stats.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	source, err := capture.Sources(conf.Video)
	if err != nil {
		return err
	}

	panel, err := lkportal.NewPanel(ctx, lkportal.Params{
		Conf:    conf,
		Encoder: h264.NewFactory(),
		Source:  source,
		Logger:  logger.GetLogger(),
	})
	if err != nil {
		return err
	}
	defer panel.Close()

	go tick(ctx, panel, conf.Panel.Tick)

	metrics := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	srv := &fasthttp.Server{
		Name: "lkportal",
		Handler: func(r *fasthttp.RequestCtx) {
			if string(r.Path()) == "/metrics" {
				metrics(r)
				return
			}
			panel.Handler(r)
		},
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Infow("control panel", "addr", conf.Panel.Addr, "room", conf.Room)
		errChan <- srv.ListenAndServe(conf.Panel.Addr)
	}()

	select {
	case err = <-errChan:
		return err
	case <-ctx.Done():
	}
	return srv.Shutdown()
}

// tick stands in for a frame loop polling the portal.
func tick(ctx context.Context, panel *lkportal.Panel, every time.Duration) {
	if every <= 0 {
		every = time.Second / 60
	}
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			panel.Tick()
		}
	}
}

func watch(c *cli.Context) error {
	conf, err := getConfig(c)
	if err != nil {
		return err
	}
	ctx, cancel := signals(c.Context)
	defer cancel()

	identity := c.String("identity")
	if identity == "" {
		identity = "watcher"
	}
	return dummyclient.Watch(ctx, conf, conf.Room, identity)
}
