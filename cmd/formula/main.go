package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/funvibe/formula/internal/config"
)

func main() {
	// Catch panics and show user-friendly error
	defer func() {
		if r := recover(); r != nil {
			if os.Getenv("DEBUG") == "1" {
				panic(r)
			}
			fmt.Fprintf(os.Stderr, "Internal error: %v\n", r)
			fmt.Fprintln(os.Stderr, "This is a bug. Please report it.")
			os.Exit(1)
		}
	}()

	if err := runCLI(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, errorText(err.Error()))
		os.Exit(1)
	}
}

func runCLI(args []string) error {
	if len(args) < 2 {
		return usageError()
	}
	switch args[1] {
	case "eval":
		return evalCommand(args[2:])
	case "check":
		config.IsTestMode = true
		return checkCommand(args[2:])
	case "class":
		return classCommand(args[2:])
	case "diff":
		return diffCommand(args[2:])
	case "replay":
		return replayCommand(args[2:])
	case "repl":
		return replCommand(args[2:])
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		return usageError()
	}
}

// newFlagSet returns a flag set carrying the options every command
// shares.
func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(new(flagErrorSink))
	settingsPath := fs.String("config", "", "path of formula.yaml (default: searched upwards from the working directory)")
	return fs, settingsPath
}

// loadSettings reads the settings file named by path, or the first
// formula.yaml found from the working directory upwards. Without one the
// defaults apply.
func loadSettings(path string) (*config.Settings, error) {
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		if path, err = config.FindSettings(wd); err != nil {
			return nil, err
		}
	}
	if path == "" {
		return config.DefaultSettings(), nil
	}
	return config.LoadSettings(path)
}

func usageError() error {
	printUsage()
	return errors.New("invalid command")
}

func printUsage() {
	prog := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [flags] [args...]\n", prog)
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  eval <expr>              evaluate an expression with lib in scope")
	fmt.Fprintln(os.Stderr, "  check [class...]         build classes and run their tests")
	fmt.Fprintln(os.Stderr, "  class <name>             create an instance and print it serialized")
	fmt.Fprintln(os.Stderr, "  diff <before> <after>    diff two serialized object graphs")
	fmt.Fprintln(os.Stderr, "  replay [root]            list or replay the diff journal")
	fmt.Fprintln(os.Stderr, "  repl                     start an interactive session")
	fmt.Fprintln(os.Stderr, "Every command accepts -config <formula.yaml>.")
}

type flagErrorSink struct{}

func (flagErrorSink) Write(p []byte) (int, error) {
	return len(p), nil
}
