// Command repograph prints the file graph of a GitHub repository, a local
// checkout or a JSON listing file, as the JSON document the gateway serves.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"repolens/internal/analysis"
	"repolens/internal/filegraph"
	"repolens/internal/gateway/app"
	"repolens/internal/gateway/config"
	"repolens/internal/github"
	"repolens/internal/scan"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("repograph: %v", err)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("repograph", flag.ContinueOnError)
	listingPath := fs.String("json", "", "read the listing from a JSON file ([{path,type}] or {entries:[...]})")
	dir := fs.String("dir", "", "graph a local directory")
	exclude := fs.String("exclude", "", "comma-separated globs to skip with -dir")
	configPath := fs.String("config", "", "path to a TOML config file")
	compact := fs.Bool("compact", false, "print compact JSON")
	tree := fs.Bool("tree", false, "print the graph as a text tree instead of JSON")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: repograph [-json file | -dir path] [-config file] [-tree] [owner/repo|url]\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	var doc *analysis.RepoGraph
	switch {
	case *listingPath != "":
		entries, err := readListing(*listingPath)
		if err != nil {
			return err
		}
		doc = analysis.GraphFromEntries("cli", entries)
	case *dir != "":
		var globs []string
		for _, g := range strings.Split(*exclude, ",") {
			if g = strings.TrimSpace(g); g != "" {
				globs = append(globs, g)
			}
		}
		entries, err := scan.ListDir(*dir, scan.Options{Exclude: globs})
		if err != nil {
			return err
		}
		doc = analysis.GraphFromEntries("dir", entries)
	case fs.NArg() == 1:
		var cfgArgs []string
		if *configPath != "" {
			cfgArgs = []string{"-config", *configPath}
		}
		cfg, err := config.LoadArgs(cfgArgs)
		if err != nil {
			return err
		}
		ref, err := github.ParseRepoRef(fs.Arg(0))
		if err != nil {
			return err
		}
		lister, err := app.NewLister(cfg)
		if err != nil {
			return err
		}
		doc, _, err = analysis.BuildRepoGraph(ctx, lister, ref)
		if err != nil {
			return err
		}
	default:
		fs.Usage()
		return flag.ErrHelp
	}

	if *tree {
		_, err := fmt.Fprintln(stdout, filegraph.RenderTree(doc.Graph))
		return err
	}

	enc := json.NewEncoder(stdout)
	if !*compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(doc)
}

// readListing accepts either a bare entry array or an {"entries": [...]} object.
func readListing(path string) ([]filegraph.FileEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []filegraph.FileEntry
	if err := json.Unmarshal(raw, &entries); err == nil {
		return entries, nil
	}
	var wrapped struct {
		Entries []filegraph.FileEntry `json:"entries"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return wrapped.Entries, nil
}
