package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/hazyhaar/kostra/pkg/klass"
	"github.com/hazyhaar/kostra/pkg/kostra"
	"github.com/hazyhaar/kostra/pkg/table"
)

const version = "0.1.0"

var commands = []struct {
	name string
	run  func(args []string) error
	help string
}{
	{"aggregate", cmdAggregate, "Add parent-region rows to a table"},
	{"average", cmdAverage, "Add parent-region averages of level variables"},
	{"spread", cmdSpread, "Copy county values down to their municipalities"},
	{"gender", cmdGender, "Sum over kjonn"},
	{"age", cmdAge, "Add age group rows from an age hierarchy file"},
	{"round", cmdRound, "Round and convert column kinds for publication"},
	{"names", cmdNames, "Attach KLASS names next to code columns"},
	{"validate", cmdValidate, "Check a table before publication"},
	{"mapping", cmdMapping, "Print or write the region mapping of an aggregation"},
	{"kommunekorr", cmdKommunekorr, "Write the municipality correspondence table"},
	{"edit", cmdEdit, "Edit cells of a filtered slice with a logged reason"},
	{"snapshot", cmdSnapshot, "Save a KLASS code list or correspondence for offline use"},
	{"mcp", cmdMCP, "Serve the operations as MCP tools on stdio"},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	for _, c := range commands {
		if c.name == os.Args[1] {
			if err := c.run(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "kostra %s: %v\n", c.name, err)
				os.Exit(1)
			}
			return
		}
	}
	usage()
	os.Exit(1)
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: kostra <command> [flags]\n\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-12s %s\n", c.name, c.help)
	}
}

// common holds the flags every command shares.
type common struct {
	fs        *flag.FlagSet
	config    *string
	offline   *bool
	extras    *string
	logLevel  *string
	delimiter *string
	encoding  *string
}

func commonFlags(fs *flag.FlagSet) *common {
	return &common{
		fs:        fs,
		config:    fs.String("config", "kostra.yaml", "path to config file"),
		offline:   fs.Bool("offline", false, "serve KLASS from the snapshot directory"),
		extras:    fs.String("extras", "", "comma-separated extra classification variables; unset asks"),
		logLevel:  fs.String("log-level", "", "debug, info, warn or error (overrides config)"),
		delimiter: fs.String("delimiter", ",", "CSV input delimiter"),
		encoding:  fs.String("encoding", "", "CSV input encoding, e.g. windows-1252"),
	}
}

// env is what a parsed command runs with.
type env struct {
	ctx    context.Context
	cfg    config
	logger *slog.Logger
	reg    klass.Registry
	opts   kostra.Options
	read   table.ReadOptions
}

// setup parses args and builds the logger, registry and options.
func (c *common) setup(args []string) (*env, func(), error) {
	if err := c.fs.Parse(args); err != nil {
		return nil, nil, err
	}
	cfg, err := loadConfig(*c.config)
	if err != nil {
		return nil, nil, err
	}
	if *c.logLevel != "" {
		cfg.LogLevel = *c.logLevel
	}
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	e := &env{cfg: cfg, logger: logger}
	if *c.offline {
		fr := klass.NewFileRegistry(cfg.SnapshotDir, logger)
		if err := fr.Load(); err != nil {
			return nil, nil, err
		}
		e.reg = fr
	} else {
		e.reg = klass.NewClient(
			klass.WithBaseURL(cfg.BaseURL),
			klass.WithLanguage(cfg.Language),
			klass.WithLogger(logger),
			klass.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		)
	}

	e.opts = kostra.Options{Logger: logger, Extras: cfg.Extras}
	if flagSet(c.fs, "extras") {
		e.opts.Extras = kostra.ParseExtras(*c.extras)
		if e.opts.Extras == nil {
			e.opts.Extras = []string{}
		}
	}
	if e.opts.Extras == nil {
		e.opts.Prompter = &kostra.ConsolePrompter{In: os.Stdin, Out: os.Stderr}
	}

	e.read = table.ReadOptions{
		Encoding:    *c.encoding,
		TextColumns: append(append([]string(nil), kostra.ReservedColumns...), kostra.Alder),
	}
	if d := []rune(*c.delimiter); len(d) > 0 {
		e.read.Delimiter = d[0]
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	e.ctx = ctx
	return e, stop, nil
}

func (e *env) readTable(path string) (*table.Table, error) {
	if path == "" {
		return nil, fmt.Errorf("-in is required")
	}
	return table.ReadFile(path, e.read)
}

func (e *env) writeTable(path string, t *table.Table) error {
	if path == "" {
		return fmt.Errorf("-out is required")
	}
	if err := table.WriteFile(path, t); err != nil {
		return err
	}
	e.logger.Info("table written", "path", path, "rows", t.Len(), "columns", t.Width())
	return nil
}

func flagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// parsePairs reads "a=1,b=2".
func parsePairs(s string) (map[string]string, error) {
	out := make(map[string]string)
	for _, item := range strings.Split(s, ",") {
		if strings.TrimSpace(item) == "" {
			continue
		}
		k, v, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("%q: want column=value", item)
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out, nil
}

func parseRows(s string) ([]int, error) {
	var out []int
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		n, err := strconv.Atoi(item)
		if err != nil {
			return nil, fmt.Errorf("row id %q: %w", item, err)
		}
		out = append(out, n)
	}
	return out, nil
}
