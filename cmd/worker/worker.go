// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

/*
Starts the distributed stream-processing pipeline: W parallel workers, each
running the identical operator graph (post-tree reconstruction, active-post
statistics, friend recommendations, spammer detection) against a partitioned
event topic.

For usage details, run worker with the command line flag -h or --help.
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/dspa-project/engine/clog"
	"github.com/dspa-project/engine/config"
	"github.com/dspa-project/engine/db"
	"github.com/dspa-project/engine/event"
	"github.com/dspa-project/engine/exchange"
	"github.com/dspa-project/engine/metrics"
	"github.com/dspa-project/engine/operators/posttree"
	"github.com/dspa-project/engine/queries"
	"github.com/dspa-project/engine/worker"
)

const (
	defaultWorkers = 4   // default number of parallel workers
	maxWorkers     = 100 // maximum number of parallel workers
	defaultQueries = "1,2,3"
)

func main() {
	var queriesFlag string
	var numWorkers int
	var help bool
	var verbose bool
	var metricsAddr string

	flag.Usage = usage
	flag.StringVarP(&queriesFlag, "queries", "q", defaultQueries, "Comma-separated list of query ids to run, in {1,2,3}")
	flag.IntVarP(&numWorkers, "workers", "w", defaultWorkers, "Number of parallel workers")
	flag.BoolVarP(&help, "help", "h", false, "Show usage information")
	flag.BoolVarP(&verbose, "verbose", "l", false, "Show logging output (for debugging)")
	flag.StringVar(&metricsAddr, "metrics-addr", "", "Address to serve Prometheus metrics on (e.g. :9090); empty disables metrics")
	flag.Parse()

	if help {
		usage()
		os.Exit(0)
	}

	if verbose {
		clog.Enable()
	}

	if numWorkers < 1 || numWorkers > maxWorkers {
		fmt.Printf("Number of workers must be between 1 and %d\n", maxWorkers)
		os.Exit(1)
	}

	ids, err := queries.ParseIDs(queriesFlag)
	if err != nil {
		fmt.Printf("Invalid -q/--queries flag: %v\n", err)
		os.Exit(1)
	}
	sel := queries.NewSelection(ids)

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed loading configuration: %v\n", err)
		os.Exit(1)
	}

	// C7's relational-store bootstrap is fatal at startup only, per spec.md
	// §7 ("no partial service") — but only if query 2 needs it.
	var store *db.Store
	if sel.Enabled(queries.Recommendations) && cfg.DatabaseDSN != "" {
		store, err = db.Open(cfg.DatabaseDSN)
		if err != nil {
			fmt.Printf("Failed opening relational store: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
	}

	if metricsAddr != "" {
		go func() {
			if err := metrics.Serve(metricsAddr); err != nil {
				fmt.Printf("Metrics endpoint stopped: %v\n", err)
			}
		}()
	}

	fabric := exchange.NewFabric[event.Event](numWorkers, 1024)
	recFabric := exchange.NewFabric[posttree.RecommendationUpdate](numWorkers, 1024)
	spamFabric := exchange.NewFabric[event.Event](numWorkers, 1024)

	workers := make([]*worker.Worker, numWorkers)
	for i := 0; i < numWorkers; i++ {
		w, err := worker.New(cfg, sel, i, numWorkers, fabric, recFabric, spamFabric, store)
		if err != nil {
			fmt.Printf("Failed constructing worker %d: %v\n", i, err)
			os.Exit(1)
		}
		workers[i] = w
	}

	// Handle SIGTERM.
	signaled := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer close(signaled)
		fmt.Printf("Terminating workers on signal %v...\n", <-sigCh)
	}()

	fmt.Printf("Starting %d workers running queries %v...\n", numWorkers, ids)

	ctx, cancel := context.WithCancel(context.Background())
	completed := make(chan struct{})
	for _, w := range workers {
		go w.Start(ctx, completed)
	}

	for sw := numWorkers; sw > 0; {
		select {
		case <-signaled:
			signaled = nil
			cancel()
		case <-completed:
			sw--
		}
	}

	fabric.Close()
	recFabric.Close()
	spamFabric.Close()
}

func usage() {
	fmt.Printf(`usage: worker [-h|--help] [-l|--verbose] [-q|--queries ids] [-w|--workers count]

Starts the distributed stream-processing pipeline (default %d workers,
maximum %d), running the given comma-separated query ids (default %q).

Flags:
`, defaultWorkers, maxWorkers, defaultQueries)
	flag.PrintDefaults()
}
