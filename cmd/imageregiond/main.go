// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package imageregiond runs the image region gateway.  This accepts
// OMERO.web-compatible render requests over HTTP, turns each one into
// a render context, and dispatches it to a rendering worker over the
// configured bus.  With -demo-worker the process also runs the
// synthetic reference renderer, so it can be tried without any other
// service.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/omero-ms/go-imageregion/backend"
	"github.com/omero-ms/go-imageregion/cache"
	"github.com/omero-ms/go-imageregion/dispatch"
	"github.com/omero-ms/go-imageregion/render"
	"github.com/omero-ms/go-imageregion/restserver"
	"github.com/omero-ms/go-imageregion/worker"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds how long in-flight HTTP requests may take to
// finish after a signal.
const shutdownTimeout = 10 * time.Second

func main() {
	app := cli.NewApp()
	app.Name = "imageregiond"
	app.Usage = "serve OMERO image regions from rendering workers"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Usage: "YAML configuration file",
		},
		cli.StringFlag{
			Name:  "http",
			Value: ":8080",
			Usage: "[ip]:port for HTTP interface",
		},
		cli.StringFlag{
			Name:  "backend",
			Value: "memory",
			Usage: "impl[:address] of the worker bus; a nats server needs max_payload of at least 8MB",
		},
		cli.DurationFlag{
			Name:  "timeout",
			Value: dispatch.DefaultTimeout,
			Usage: "wait this long for a worker reply",
		},
		cli.IntFlag{
			Name:  "cache-size",
			Usage: "cache this many rendered replies",
		},
		cli.StringFlag{
			Name:  "embedded-nats",
			Usage: "run a NATS server on this [ip]:port and use it as the bus",
		},
		cli.BoolFlag{
			Name:  "demo-worker",
			Usage: "run the synthetic demo renderer in this process",
		},
		cli.BoolFlag{
			Name:  "log-requests",
			Usage: "log all requests",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "log at debug level",
		},
		cli.StringFlag{
			Name:  "log-file",
			Usage: "write logs to this rotated file",
		},
	}
	app.Action = func(c *cli.Context) error {
		config, err := configure(c)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		configureLogging(config.Debug, c.String("log-file"))
		err = serve(config, c.String("embedded-nats"), c.Bool("demo-worker"),
			c.Bool("log-requests"))
		if err != nil {
			logrus.WithError(err).Error("Gateway failed")
			return cli.NewExitError(err.Error(), 1)
		}
		return nil
	}
	app.RunAndExitOnError()
}

// configure merges the configuration file with command-line flags.
// A flag given on the command line wins over the file.
func configure(c *cli.Context) (Config, error) {
	config, err := readConfig(c.String("config"))
	if err != nil {
		return config, err
	}
	switch {
	case c.IsSet("http"):
		config.Listen = c.String("http")
	case config.Port != 0:
		config.Listen = fmt.Sprintf(":%d", config.Port)
	default:
		config.Listen = c.String("http")
	}
	if c.IsSet("backend") || config.Backend == "" {
		config.Backend = c.String("backend")
	}
	if c.IsSet("timeout") {
		config.Timeout = c.Duration("timeout")
	}
	if c.IsSet("cache-size") {
		config.CacheSize = c.Int("cache-size")
	}
	if c.Bool("debug") {
		config.Debug = true
	}
	return config, nil
}

// newChannel puts the circuit breaker and optional cache in front of
// a bus.
func newChannel(bus dispatch.Channel, cacheSize int) (dispatch.Channel, error) {
	channel := dispatch.NewBreaker(bus, dispatch.BreakerSettings{
		Name:          "workers",
		OnStateChange: observeBreaker,
	})
	if cacheSize > 0 {
		c := cache.New(channel, cacheSize)
		if err := registerCache(c); err != nil {
			return nil, err
		}
		channel = c
	}
	return channel, nil
}

// serve runs the gateway until it is interrupted.
func serve(config Config, embeddedNATS string, demoWorker, logRequests bool) error {
	var b backend.Backend
	if err := b.Set(config.Backend); err != nil {
		return err
	}
	if embeddedNATS != "" {
		ns, err := startEmbeddedNATS(embeddedNATS)
		if err != nil {
			return err
		}
		defer ns.Shutdown()
		b = backend.Backend{Implementation: "nats", Address: ns.ClientURL()}
		logrus.WithField("url", ns.ClientURL()).Info("Started embedded NATS server")
	}

	bus, err := b.Bus(logrus.StandardLogger())
	if err != nil {
		return fmt.Errorf("could not create worker bus: %w", err)
	}
	defer bus.Close()

	channel, err := newChannel(bus, config.CacheSize)
	if err != nil {
		return err
	}
	defaults, err := config.Defaults.Region()
	if err != nil {
		return err
	}
	sessions, err := openSessions(config.Sessions)
	if err != nil {
		return fmt.Errorf("could not open session store: %w", err)
	}
	defer sessions.Close()

	gateway := &restserver.Gateway{
		Dispatcher: &dispatch.Dispatcher{
			Channel:  channel,
			Timeout:  config.Timeout,
			Observer: observe,
		},
		Sessions: sessions.Resolver,
		Defaults: defaults,
	}
	server := &http.Server{
		Addr:    config.Listen,
		Handler: newHandler(gateway, requestLogger(logRequests)),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logrus.WithFields(logrus.Fields{
			"address": server.Addr,
			"backend": b.String(),
		}).Info("Serving HTTP")
		err := server.ListenAndServe()
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if sessions.Run != nil {
		g.Go(func() error { return sessions.Run(ctx) })
	}
	if demoWorker {
		w := &worker.Worker{
			Bus:   bus,
			Tasks: render.NewDemo().Tasks(),
			ErrorHandler: func(err error) {
				logrus.WithError(err).Error("Render task failed")
			},
			StatusHandler: func(status worker.Status) {
				logrus.WithFields(logrus.Fields{
					"worker":  status.WorkerID,
					"running": status.Running,
					"handled": status.Handled,
					"failed":  status.Failed,
				}).Debug("Worker heartbeat")
			},
		}
		g.Go(func() error { return w.Run(ctx) })
	}
	return g.Wait()
}
