// Command jcl transpiles and runs JCL programs from the command line.
//
//	jcl transpile [-o out.c] prog.jcl
//	jcl run [-input stdin.txt] [-remote URL] [-config jcl.toml] prog.jcl
//	jcl runs [-remote URL] [-limit N] [-config jcl.toml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nevindra/jcl"
	"github.com/nevindra/jcl/internal/app"
	"github.com/nevindra/jcl/internal/config"
	"github.com/nevindra/jcl/remote"
	"github.com/nevindra/jcl/transpile"
)

const usage = `usage:
  jcl transpile [-o out.c] prog.jcl
  jcl run [-input file] [-remote URL] [-config file] prog.jcl
  jcl runs [-remote URL] [-limit N] [-config file]`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := runCLI(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// runCLI executes one subcommand and returns the process exit status.
func runCLI(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage)
		return 2
	}
	var err error
	switch args[0] {
	case "transpile":
		err = cmdTranspile(args[1:], stdout, stderr)
	case "run":
		var ok bool
		ok, err = cmdRun(ctx, args[1:], stdout, stderr)
		if err == nil && !ok {
			return 1
		}
	case "runs":
		err = cmdRuns(ctx, args[1:], stdout, stderr)
	case "help", "-h", "-help", "--help":
		fmt.Fprintln(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "jcl: unknown command %q\n%s\n", args[0], usage)
		return 2
	}
	var uerr usageError
	switch {
	case errors.As(err, &uerr):
		fmt.Fprintf(stderr, "jcl: %s\n%s\n", uerr, usage)
		return 2
	case errors.Is(err, flag.ErrHelp):
		return 0
	case err != nil:
		fmt.Fprintf(stderr, "jcl: %v\n", err)
		return 1
	}
	return 0
}

type usageError string

func (e usageError) Error() string { return string(e) }

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// sourceArg reads the single program file named on the command line.
func sourceArg(fs *flag.FlagSet) (string, error) {
	if fs.NArg() != 1 {
		return "", usageError("expected exactly one source file")
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func cmdTranspile(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("transpile", stderr)
	out := fs.String("o", "", "write C text to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	src, err := sourceArg(fs)
	if err != nil {
		return err
	}
	target, err := transpile.New(nil).Transpile(src)
	if err != nil {
		return err
	}
	if *out == "" {
		_, err = fmt.Fprintln(stdout, target)
		return err
	}
	if err := os.WriteFile(*out, []byte(target+"\n"), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(stderr, "wrote %s\n", *out)
	return nil
}

// cmdRun reports whether the program ran to a zero exit.
func cmdRun(ctx context.Context, args []string, stdout, stderr io.Writer) (bool, error) {
	fs := newFlagSet("run", stderr)
	input := fs.String("input", "", "file whose lines are fed to the program's stdin")
	remoteURL := fs.String("remote", "", "run on this jclserver instead of locally")
	configPath := fs.String("config", "", "path to TOML config (default jcl.toml)")
	if err := fs.Parse(args); err != nil {
		return false, err
	}
	src, err := sourceArg(fs)
	if err != nil {
		return false, err
	}
	req := jcl.RunRequest{Code: src}
	if *input != "" {
		data, err := os.ReadFile(*input)
		if err != nil {
			return false, err
		}
		req.InputData = inputLines(string(data))
	}

	var out jcl.Outcome
	if *remoteURL != "" {
		out, err = remote.New(*remoteURL).Run(ctx, req)
		if err != nil {
			return false, err
		}
	} else {
		cfg, err := config.Load(*configPath)
		if err != nil {
			return false, err
		}
		logger := app.NewLogger(cfg.Log, stderr)
		a, err := app.New(ctx, cfg, logger)
		if err != nil {
			return false, err
		}
		defer a.Close(context.WithoutCancel(ctx))
		out = a.Pipeline.Run(ctx, req)
	}

	fmt.Fprint(stdout, out.Stdout)
	if out.Stderr != "" {
		fmt.Fprint(stderr, out.Stderr)
		if !strings.HasSuffix(out.Stderr, "\n") {
			fmt.Fprintln(stderr)
		}
	}
	if !out.OK {
		fmt.Fprintf(stderr, "jcl: %s stage failed\n", out.Stage)
	}
	return out.OK, nil
}

func cmdRuns(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("runs", stderr)
	remoteURL := fs.String("remote", "", "list runs recorded by this jclserver")
	limit := fs.Int("limit", 20, "maximum number of runs")
	configPath := fs.String("config", "", "path to TOML config (default jcl.toml)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var recs []jcl.RunRecord
	if *remoteURL != "" {
		var err error
		if recs, err = remote.New(*remoteURL).Runs(ctx, *limit); err != nil {
			return err
		}
	} else {
		cfg, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		if cfg.History.Driver == "" {
			return errors.New("run history is not enabled (set history.driver)")
		}
		a, err := app.New(ctx, cfg, nil)
		if err != nil {
			return err
		}
		defer a.Close(context.WithoutCancel(ctx))
		if recs, err = a.History.ListRuns(ctx, *limit); err != nil {
			return err
		}
	}
	for _, r := range recs {
		fmt.Fprintf(stdout, "%s\t%s\tok=%t\t%dms\n", r.ID, r.Stage, r.OK, r.DurationMs)
	}
	return nil
}

// inputLines splits file content into stdin lines. A trailing newline does
// not add an empty line.
func inputLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
