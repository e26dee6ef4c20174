package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// resolveArgs maps a bare invocation to the mcp command. MCP clients start
// the binary without arguments and talk over piped stdio.
func resolveArgs(args []string) []string {
	if len(args) < 2 {
		return []string{args[0], "mcp"}
	}
	return args
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
       _  __ _
   ___(_)/ _| |_
  / __| | |_| __|
  \__ \ |  _| |_
  |___/_|_|  \__|

  Self-training text classifier with vector memory

  Usage: sift <command> [options]
         sift --help

  MCP server mode requires piped input.`)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newCLIApp(nil)
	if err := app.RunContext(ctx, resolveArgs(os.Args)); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
