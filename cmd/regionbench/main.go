// Copyright 2016-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package regionbench provides a load-generation tool for the image
// region gateway.
package main

import (
	"fmt"
	"net/url"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/omero-ms/go-imageregion/restclient"
	"github.com/omero-ms/go-imageregion/restdata"
	"github.com/urfave/cli"
)

type benchWork struct {
	Client      *restclient.Client
	Concurrency int

	requests int64
	failures int64
	bytes    int64
}

func (bench *benchWork) Run(runner func()) {
	wg := sync.WaitGroup{}
	wg.Add(bench.Concurrency)
	for i := 0; i < bench.Concurrency; i++ {
		go func() {
			defer wg.Done()
			runner()
		}()
	}
	wg.Wait()
}

// record counts one request.
func (bench *benchWork) record(body []byte, err error) {
	atomic.AddInt64(&bench.requests, 1)
	if err != nil {
		atomic.AddInt64(&bench.failures, 1)
		return
	}
	atomic.AddInt64(&bench.bytes, int64(len(body)))
}

// report prints a summary of the run.
func (bench *benchWork) report(elapsed time.Duration) {
	requests := atomic.LoadInt64(&bench.requests)
	fmt.Printf("%d requests (%d failed) in %v, %.1f/s, %s\n",
		requests,
		atomic.LoadInt64(&bench.failures),
		elapsed,
		float64(requests)/elapsed.Seconds(),
		humanize.Bytes(uint64(atomic.LoadInt64(&bench.bytes))))
}

// counter hands out the numbers 0 to count-1 to concurrent runners.
func counter(count int) <-chan int {
	numbers := make(chan int)
	go func() {
		for i := 0; i < count; i++ {
			numbers <- i
		}
		close(numbers)
	}()
	return numbers
}

var bench benchWork

var tiles = cli.Command{
	Name:  "tiles",
	Usage: "fetch tiles of one image plane",
	Flags: []cli.Flag{
		cli.IntFlag{
			Name:  "count",
			Value: 100,
			Usage: "number of tiles to fetch",
		},
		cli.Int64Flag{
			Name:  "image",
			Value: 1,
			Usage: "image ID",
		},
		cli.IntFlag{
			Name:  "grid",
			Value: 4,
			Usage: "cycle over a grid of this many tiles square",
		},
		cli.StringFlag{
			Name:  "c",
			Value: "1|0:255$FF0000",
			Usage: "channel settings",
		},
		cli.StringFlag{
			Name:  "format",
			Value: "jpeg",
			Usage: "output format",
		},
	},
	Action: func(c *cli.Context) {
		numbers := counter(c.Int("count"))
		grid := c.Int("grid")
		if grid < 1 {
			grid = 1
		}
		start := time.Now()
		bench.Run(func() {
			for n := range numbers {
				img, err := bench.Client.RenderImageRegion(c.Int64("image"), 0, 0, url.Values{
					"tile":   {fmt.Sprintf("0,%d,%d", n%grid, (n/grid)%grid)},
					"c":      {c.String("c")},
					"format": {c.String("format")},
				})
				bench.record(img.Body, err)
			}
		})
		bench.report(time.Since(start))
	},
}

var masks = cli.Command{
	Name:  "masks",
	Usage: "fetch one shape mask repeatedly",
	Flags: []cli.Flag{
		cli.IntFlag{
			Name:  "count",
			Value: 100,
			Usage: "number of masks to fetch",
		},
		cli.Int64Flag{
			Name:  "shape",
			Value: 1,
			Usage: "shape ID",
		},
	},
	Action: func(c *cli.Context) {
		numbers := counter(c.Int("count"))
		start := time.Now()
		bench.Run(func() {
			for range numbers {
				img, err := bench.Client.RenderShapeMask(c.Int64("shape"), nil)
				bench.record(img.Body, err)
			}
		})
		bench.report(time.Since(start))
	},
}

var status = cli.Command{
	Name:  "status",
	Usage: "fetch one tile and print the outcome",
	Flags: []cli.Flag{
		cli.Int64Flag{
			Name:  "image",
			Value: 1,
			Usage: "image ID",
		},
	},
	Action: func(c *cli.Context) {
		img, err := bench.Client.RenderImageRegion(c.Int64("image"), 0, 0, url.Values{
			"tile": {"0,0,0"},
		})
		if err != nil {
			fmt.Printf("HTTP %d: %v\n", restdata.Status(err), err)
			return
		}
		fmt.Printf("%s, %s\n", img.ContentType, humanize.Bytes(uint64(len(img.Body))))
	},
}

func main() {
	app := cli.NewApp()
	app.Usage = "benchmark the image region gateway"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "url",
			Value: "http://localhost:8080/",
			Usage: "base URL of the gateway",
		},
		cli.StringFlag{
			Name:  "session",
			Usage: "OMERO.web session ID to send",
		},
		cli.IntFlag{
			Name:  "concurrency",
			Value: runtime.NumCPU(),
			Usage: "run this many requests in parallel",
		},
	}
	app.Commands = []cli.Command{
		tiles,
		masks,
		status,
	}
	app.Before = func(c *cli.Context) (err error) {
		bench.Client, err = restclient.New(c.String("url"))
		if err != nil {
			return
		}
		bench.Client.SetSession(c.String("session"))
		bench.Concurrency = c.Int("concurrency")
		return
	}
	app.RunAndExitOnError()
}
