/*
A tool for reading and changing the portfolio's language state and for keeping
its translation dictionaries complete.

Settings come from an optional TOML config file, PORTFOLIO_* environment
variables and a .env file. Language choice, pagination and the dictionary cache
live in a SQLite file so they survive between runs.

The program must be run with a 'command' argument. Available commands are:

  - translate: Prints the translation of a key.
  - lang: Prints or changes the current language.
  - page: Changes the current page index.
  - reset: Restores the default state.
  - state: Prints the saved state.
  - render: Translates an HTML page into the current or given language.
  - extract: Adds the keys found in the site sources to the default dictionary.
  - check: Lists keys missing from the non-default dictionaries.
  - fill: Fills missing keys from the glossary.
  - cache-clear: Drops cached dictionaries.
  - help: Prints usage instructions.
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"portfolio_bk/internal/config"
)

const (
	cmdMissing      = "missing"
	cmdUnrecognised = "unrecognised"
	cmdHelp         = "help"
	cmdTranslate    = "translate"
	cmdLang         = "lang"
	cmdPage         = "page"
	cmdReset        = "reset"
	cmdState        = "state"
	cmdRender       = "render"
	cmdExtract      = "extract"
	cmdCheck        = "check"
	cmdFill         = "fill"
	cmdCacheClear   = "cache-clear"
)

// errFindings makes the tool exit with 1 after a report was printed.
var errFindings = errors.New("findings reported")

type Command interface {
	Run(ctx context.Context, s *session, args []string) error
}

type CommandFunc func(ctx context.Context, s *session, args []string) error

func (f CommandFunc) Run(ctx context.Context, s *session, args []string) error {
	return f(ctx, s, args)
}

var commands = map[string]Command{
	cmdTranslate:  CommandFunc(translateCmd),
	cmdLang:       CommandFunc(langCmd),
	cmdPage:       CommandFunc(pageCmd),
	cmdReset:      CommandFunc(resetCmd),
	cmdState:      CommandFunc(stateCmd),
	cmdRender:     CommandFunc(renderCmd),
	cmdExtract:    CommandFunc(extractCmd),
	cmdCheck:      CommandFunc(checkCmd),
	cmdFill:       CommandFunc(fillCmd),
	cmdCacheClear: CommandFunc(cacheClearCmd),
}

// Gets list of available commands
func availableCommands() []string {
	return []string{cmdTranslate, cmdLang, cmdPage, cmdReset, cmdState, cmdRender,
		cmdExtract, cmdCheck, cmdFill, cmdCacheClear, cmdHelp}
}

// Converts the arguments to one of the cmd* constants.
func parseArgs(args []string) (command string) {
	if len(args) < 1 {
		return cmdMissing
	}
	if args[0] == cmdHelp {
		return cmdHelp
	}
	if _, ok := commands[args[0]]; ok {
		return args[0]
	}
	return cmdUnrecognised
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one invocation and returns the exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("i18nctl", flag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.String("config", "portfolio.toml", "Full `path` and file name to the config file")
	verbose := flags.Bool("v", false, "Log debug output")
	if err := flags.Parse(args); err != nil {
		return 1
	}
	usage := func() {
		fmt.Fprintf(stderr, "Usage: i18nctl [flags] <command> [args]\n\nCommands: %s\n\nFlags:\n", strings.Join(availableCommands(), ", "))
		flags.PrintDefaults()
	}

	command := parseArgs(flags.Args())
	switch command {
	case cmdHelp:
		usage()
		return 0
	case cmdMissing:
		fmt.Fprintf(stderr, "No command given.\n\n")
		usage()
		return 1
	case cmdUnrecognised:
		fmt.Fprintf(stderr, "Command '%v' not recognised.\n\n", flags.Arg(0))
		usage()
		return 1
	}

	conf, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	s := newSession(conf, stdout, slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))
	defer s.close()

	if err := commands[command].Run(ctx, s, flags.Args()[1:]); err != nil {
		if !errors.Is(err, errFindings) {
			fmt.Fprintln(stderr, "Error:", err)
		}
		return 1
	}
	return 0
}
