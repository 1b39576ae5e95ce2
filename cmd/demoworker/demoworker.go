// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package demoworker provides a complete demonstration rendering
// worker.  It answers image region and shape mask requests from a
// bus with synthetic images: image 1 is a 1024x1024 three-channel
// pyramid with 5 focal planes and 3 timepoints, and shape 1 is an
// ellipse.  Point it at the same NATS server as an imageregiond
// gateway, for instance
//
//     demoworker -backend nats:nats://localhost:4222
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/omero-ms/go-imageregion/backend"
	"github.com/omero-ms/go-imageregion/render"
	"github.com/omero-ms/go-imageregion/worker"
	"github.com/sirupsen/logrus"
)

func main() {
	backend := backend.Backend{Implementation: "nats", Address: ""}
	flag.Var(&backend, "backend", "impl[:address] of the worker bus")
	concurrency := flag.Int("concurrency", 0, "render this many requests at once")
	timeout := flag.Duration("task-timeout", 0, "cancel renders that run longer than this")
	debug := flag.Bool("debug", false, "log at debug level")
	flag.Parse()

	if *debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	bus, err := backend.Bus(logrus.StandardLogger())
	if err != nil {
		logrus.WithError(err).Fatal("Could not connect to the worker bus")
	}
	defer bus.Close()

	w := worker.Worker{
		Bus:         bus,
		Tasks:       render.NewDemo().Tasks(),
		Concurrency: *concurrency,
		TaskTimeout: *timeout,
		ErrorHandler: func(err error) {
			logrus.WithError(err).Error("Render task failed")
		},
		StatusHandler: func(status worker.Status) {
			logrus.WithFields(logrus.Fields{
				"worker":     status.WorkerID,
				"host":       status.Hostname,
				"running":    status.Running,
				"handled":    status.Handled,
				"failed":     status.Failed,
				"goroutines": status.Goroutines,
			}).Info("Heartbeat")
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logrus.WithField("backend", backend.String()).Info("Demo worker running")
	if err := w.Run(ctx); err != nil {
		logrus.WithError(err).Fatal("Worker failed")
	}
}
