// Command artifacts collects Harvard Art Museums records, loads them into a
// relational store, and runs the analytical query catalog.
//
// Usage:
//
//	artifacts [-env .env] [-log-json] [-trace] <command> [flags]
//
// Commands: collect, show, load, queries, query, serve, tui.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
)

var exitFunc = os.Exit

type globalFlags struct {
	envFile string
	logJSON bool
	trace   bool
}

type command struct {
	summary string
	run     func(ctx context.Context, env *environment, args []string) error
}

var commands = map[string]command{
	"collect": {"fetch a classification and archive the raw batch", runCollect},
	"show":    {"preview the latest archived batch", runShow},
	"load":    {"insert an archived batch into the database", runLoad},
	"queries": {"list the query catalog", runQueries},
	"query":   {"run one catalog query", runQuery},
	"serve":   {"start the HTTP API", runServe},
	"tui":     {"start the terminal UI", runTUI},
}

// errUsage marks argument errors; they exit with status 2.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	exitFunc(code)
}

func cli(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("artifacts", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var g globalFlags
	fs.StringVar(&g.envFile, "env", ".env", "dotenv file read before the environment")
	fs.BoolVar(&g.logJSON, "log-json", false, "log as JSON instead of text")
	fs.BoolVar(&g.trace, "trace", false, "write operation spans to stderr as JSON lines")
	fs.Usage = func() { usage(stderr, fs) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		usage(stderr, fs)
		return 2
	}
	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", name)
		usage(stderr, fs)
		return 2
	}
	env, err := newEnvironment(ctx, g, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "artifacts: %v\n", err)
		return 1
	}
	defer env.Close()
	if err := cmd.run(ctx, env, fs.Args()[1:]); err != nil {
		if errors.Is(err, errUsage) {
			return 2
		}
		fmt.Fprintf(stderr, "artifacts %s: %v\n", name, err)
		return 1
	}
	return 0
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "usage: artifacts [flags] <command> [command flags]")
	fmt.Fprintln(w, "\ncommands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-8s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(w, "\nflags:")
	fs.PrintDefaults()
}

func newFlagSet(name string, env *environment) *flag.FlagSet {
	fs := flag.NewFlagSet("artifacts "+name, flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	return fs
}

// parseFlags reports flag errors as usage errors; the flag package has
// already printed them.
func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return nil
}

func requireFlag(fs *flag.FlagSet, name, value string) error {
	if strings.TrimSpace(value) == "" {
		fmt.Fprintf(fs.Output(), "-%s is required\n", name)
		fs.Usage()
		return errUsage
	}
	return nil
}
