// Command wikipub carries inline comment markers from a published page body
// over to a new body on the command line.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dgallion1/wikipub/internal/doctree"
	"github.com/dgallion1/wikipub/internal/matcher"
	"github.com/dgallion1/wikipub/internal/preserve"
	"github.com/dgallion1/wikipub/internal/source"
	"github.com/dgallion1/wikipub/internal/storage"
	"github.com/dgallion1/wikipub/internal/transfer"
	"golang.org/x/term"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	color := term.IsTerminal(int(os.Stdout.Fd()))
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, color))
}

type options struct {
	oldPath   string
	newPath   string
	outPath   string
	threshold float64
	exclusive bool
	render    bool
	tree      bool
	jsonOut   bool
	verbose   bool
}

func parseFlags(args []string, errOut io.Writer) (options, error) {
	var o options
	flags := flag.NewFlagSet("wikipub", flag.ContinueOnError)
	flags.SetOutput(errOut)
	flags.Usage = func() {
		fmt.Fprint(errOut, `Usage: wikipub -old PUBLISHED -new RENDERED [options]

Copies the inline comment markers of PUBLISHED onto the matching content of
RENDERED and writes the result.

`)
		flags.PrintDefaults()
	}
	flags.StringVar(&o.oldPath, "old", "", "published storage-format body")
	flags.StringVar(&o.newPath, "new", "", "new storage-format body, or a source document with -render")
	flags.StringVar(&o.outPath, "out", "", "write the result here instead of stdout")
	flags.Float64Var(&o.threshold, "threshold", matcher.DefaultThreshold, "minimum similarity for a match (0,1]")
	flags.BoolVar(&o.exclusive, "exclusive", false, "never give one new node markers from different old nodes")
	flags.BoolVar(&o.render, "render", false, "render -new from a source document (.md, .txt, .html, .csv, .docx, .pdf)")
	flags.BoolVar(&o.tree, "tree", false, "print the outline of the result to stderr")
	flags.BoolVar(&o.jsonOut, "json", false, "print the report as JSON to stderr")
	flags.BoolVar(&o.verbose, "v", false, "log matching details")

	if err := flags.Parse(args); err != nil {
		return o, err
	}
	if o.oldPath == "" || o.newPath == "" {
		return o, errors.New("both -old and -new are required")
	}
	if flags.NArg() > 0 {
		return o, fmt.Errorf("unexpected arguments: %v", flags.Args())
	}
	if o.threshold <= 0 || o.threshold > 1 {
		return o, fmt.Errorf("threshold %v out of range (0,1]", o.threshold)
	}
	return o, nil
}

func run(args []string, stdout, stderr io.Writer, color bool) int {
	o, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "%s\nUsage help: wikipub -h\n", err)
		return exitUsage
	}

	oldBody, err := os.ReadFile(o.oldPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	newBody, err := loadNew(o)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}

	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	engine := preserve.NewEngine(matcher.Options{Threshold: o.threshold, Exclusive: o.exclusive}, log)
	res, err := engine.Preserve(string(oldBody), newBody)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}

	if o.outPath != "" {
		if err := os.WriteFile(o.outPath, []byte(res.Body), 0o644); err != nil {
			fmt.Fprintln(stderr, err)
			return exitError
		}
	} else {
		fmt.Fprint(stdout, res.Body)
	}

	if o.tree {
		tree, err := storage.Parse(res.Body)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return exitError
		}
		fmt.Fprint(stderr, doctree.Describe(tree))
	}
	if o.jsonOut {
		enc := json.NewEncoder(stderr)
		enc.SetIndent("", "  ")
		enc.Encode(res.Report)
	}
	printSummary(stderr, res.Report, color)
	return exitOK
}

// loadNew returns the new body, rendering it from a source document when
// asked to.
func loadNew(o options) (string, error) {
	data, err := os.ReadFile(o.newPath)
	if err != nil {
		return "", err
	}
	if !o.render {
		return string(data), nil
	}
	r, err := source.ForFile(o.newPath, source.Options{PDFFallbackPdftotext: true})
	if err != nil {
		return "", err
	}
	page, err := r.Render(bytes.NewReader(data), o.newPath)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", o.newPath, err)
	}
	return page.Body, nil
}

const (
	ansiReset  = "\x1b[0m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

func printSummary(w io.Writer, report transfer.Report, color bool) {
	for _, d := range report.Dropped {
		line := fmt.Sprintf("dropped %s (%s, best score %.2f)", d.RefID, d.Reason, d.Score)
		if color {
			line = ansiYellow + line + ansiReset
		}
		fmt.Fprintln(w, line)
	}
	summary := report.Summary()
	if color {
		c := ansiGreen
		if report.DroppedCount() > 0 {
			c = ansiYellow
		}
		summary = c + summary + ansiReset
	}
	fmt.Fprintln(w, summary)
}
