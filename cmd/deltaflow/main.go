// Command deltaflow runs one of the reference dataflow graphs to
// completion and prints what each sink recorded.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/deltaflow/deltaflow/cmd/deltaflow/internal/demo"
	"github.com/deltaflow/deltaflow/config"
	"github.com/deltaflow/deltaflow/scheduler"
)

func main() {
	var (
		name     = flag.String("scenario", "", "scenario to run (default: all); one of the names printed by -list")
		list     = flag.Bool("list", false, "print scenario names and exit")
		logLevel = flag.String("log-level", "info", "scheduler log level: debug, info, warning, error")
	)
	flag.Parse()

	scenarios := demo.All()

	if *list {
		for _, s := range scenarios {
			fmt.Println(s.Name)
		}
		return
	}

	var toRun []demo.Scenario
	if *name == "" {
		toRun = scenarios
	} else {
		for _, s := range scenarios {
			if s.Name == *name {
				toRun = append(toRun, s)
				break
			}
		}
		if len(toRun) == 0 {
			fmt.Fprintf(os.Stderr, "deltaflow: unknown scenario %q (see -list)\n", *name)
			os.Exit(2)
		}
	}

	code := 0
	for _, s := range toRun {
		if err := runOne(s, *logLevel); err != nil {
			fmt.Fprintf(os.Stderr, "deltaflow: %s: %v\n", s.Name, err)
			code = 1
		}
	}
	os.Exit(code)
}

func runOne(s demo.Scenario, logLevel string) error {
	cfg := config.New(config.WithLogLevel(logLevel))

	sched, err := scheduler.New(s.Graph, cfg, os.Stderr)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	runErr := sched.Run()

	fmt.Printf("=== %s ===\n%s\n", s.Name, s.Report())

	if runErr != nil && !errors.Is(runErr, scheduler.ErrWorkerFault) {
		return runErr
	}
	if runErr != nil {
		fmt.Printf("(terminated: %v)\n", runErr)
	}
	return nil
}
