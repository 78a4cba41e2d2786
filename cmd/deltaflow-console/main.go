// Command deltaflow-console is an interactive shell for poking at a running
// graph: start it, inspect the scheduler's state and message log while it
// runs, stop it early, and inspect the final outcome, all without leaving
// a single session — the interactive debugging aid the original runtime's
// tutorials/interactive example built around a dropped-in Python console.
package main

import (
	"fmt"
	"os"
	"strings"

	prompt "github.com/joeycumines/go-prompt"
	pstrings "github.com/joeycumines/go-prompt/strings"

	"github.com/deltaflow/deltaflow/cmd/deltaflow/internal/demo"
	"github.com/deltaflow/deltaflow/config"
	"github.com/deltaflow/deltaflow/msglog"
	"github.com/deltaflow/deltaflow/scheduler"
)

type session struct {
	scenario demo.Scenario
	sched    *scheduler.Scheduler
	started  bool
	done     chan error
}

func main() {
	fmt.Println("deltaflow-console — type 'help' for commands")

	s := &session{}
	if err := s.load(defaultScenarioName); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	s.repl()
}

const defaultScenarioName = "adder-then-print"

func (s *session) repl() {
	for {
		line := prompt.Input(prompt.WithPrefix("deltaflow> "), prompt.WithCompleter(s.completer))
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		cmd, args := fields[0], fields[1:]
		switch cmd {
		case "help":
			s.help()
		case "list":
			s.list()
		case "load":
			if len(args) != 1 {
				fmt.Println("usage: load <scenario>")
				continue
			}
			if err := s.load(args[0]); err != nil {
				fmt.Println(err)
			}
		case "start":
			s.start()
		case "state":
			s.state()
		case "log":
			s.printLog()
		case "stop":
			s.stop()
		case "wait":
			s.wait()
		case "report":
			fmt.Println(s.scenario.Report())
		case "exit", "quit":
			if s.started {
				s.stop()
				s.wait()
			}
			return
		default:
			fmt.Printf("unknown command %q, type 'help'\n", cmd)
		}
	}
}

func (s *session) completer(d prompt.Document) ([]prompt.Suggest, pstrings.RuneNumber, pstrings.RuneNumber) {
	suggestions := []prompt.Suggest{
		{Text: "help", Description: "list commands"},
		{Text: "list", Description: "list loaded scenario names"},
		{Text: "load", Description: "load a scenario by name"},
		{Text: "start", Description: "start the loaded scenario's scheduler"},
		{Text: "state", Description: "print the scheduler's lifecycle state"},
		{Text: "log", Description: "print the message log collected so far"},
		{Text: "stop", Description: "signal the running scheduler to stop"},
		{Text: "wait", Description: "block until the scheduler has stopped, print the outcome"},
		{Text: "report", Description: "print the scenario's recorded results"},
		{Text: "exit", Description: "stop (if running), wait, and quit"},
	}
	w := d.GetWordBeforeCursor()
	end := d.CurrentRuneIndex()
	start := end - pstrings.RuneCountInString(w)
	return prompt.FilterHasPrefix(suggestions, w, true), start, end
}

func (s *session) help() {
	fmt.Println(`commands:
  help             show this message
  list             list scenario names
  load <name>      load a scenario (replaces any running one)
  start            start the loaded scenario
  state            print scheduler lifecycle state
  log              print the message log collected so far
  stop             signal the scheduler to stop
  wait             block for the run to finish, print the outcome
  report           print the scenario's recorded results
  exit             stop, wait, and quit`)
}

func (s *session) list() {
	for _, sc := range demo.All() {
		marker := " "
		if sc.Name == s.scenario.Name {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, sc.Name)
	}
}

func (s *session) load(name string) error {
	for _, sc := range demo.All() {
		if sc.Name == name {
			s.scenario = sc
			s.sched = nil
			s.started = false
			s.done = nil
			fmt.Printf("loaded %s\n", name)
			return nil
		}
	}
	return fmt.Errorf("no such scenario %q", name)
}

func (s *session) start() {
	if s.started {
		fmt.Println("already started; load a scenario to reset")
		return
	}
	sched, err := scheduler.New(s.scenario.Graph, config.New(), os.Stderr)
	if err != nil {
		fmt.Println("build failed:", err)
		return
	}
	if err := sched.Start(); err != nil {
		fmt.Println("start failed:", err)
		return
	}
	s.sched = sched
	s.started = true
	s.done = make(chan error, 1)
	go func() { s.done <- sched.Wait() }()
	fmt.Println("started")
}

func (s *session) state() {
	if s.sched == nil {
		fmt.Println("not started")
		return
	}
	fmt.Println(s.sched.State())
}

func (s *session) printLog() {
	if s.sched == nil {
		fmt.Println("not started")
		return
	}
	entries := s.sched.MessageLog().Entries()
	if len(entries) == 0 {
		fmt.Println("(empty)")
		return
	}
	if err := msglog.WriteJSONLines(os.Stdout, entries); err != nil {
		fmt.Println("error printing log:", err)
	}
}

func (s *session) stop() {
	if s.sched == nil {
		fmt.Println("not started")
		return
	}
	s.sched.Stop()
	fmt.Println("stop signalled")
}

func (s *session) wait() {
	if s.done == nil {
		fmt.Println("not started")
		return
	}
	err := <-s.done
	s.done = nil
	if err != nil {
		fmt.Println("finished with error:", err)
		return
	}
	fmt.Println("finished cleanly")
}
