package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/c360studio/semcnl/export"
	"github.com/c360studio/semcnl/pipeline"
	"github.com/c360studio/semcnl/registry"
	"github.com/c360studio/semcnl/source"
	"github.com/c360studio/semcnl/source/parser"
	"github.com/c360studio/semcnl/vocabulary/cnl"
)

// fileResult pairs an input file with its parse pass.
type fileResult struct {
	Path    string
	GraphID string
	Result  *pipeline.Result
}

func parseCmd(opts *globalOptions) *cobra.Command {
	var (
		graphID string
		format  string
		outDir  string
		jobs    int
	)

	cmd := &cobra.Command{
		Use:   "parse PATTERN...",
		Short: "Parse CNL documents into graphs",
		Long: `Parse one or more CNL markdown documents. Patterns may use ** globs.

Each document becomes one graph. The graph id comes from --graph, the
document's "graph" frontmatter field, or a generated id, in that order.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				files, err := resolveFiles(args)
				if err != nil {
					return err
				}
				if graphID != "" && len(files) > 1 {
					return errors.New("--graph needs exactly one input file")
				}
				results, err := parseFiles(ctx, app, files, graphID, jobs)
				if err != nil {
					return err
				}
				return writeResults(cmd, app, results, format, outDir)
			})
		},
	}

	cmd.Flags().StringVarP(&graphID, "graph", "g", "", "Graph id (single input only)")
	cmd.Flags().StringVarP(&format, "format", "f", formatSummary, "Output format (summary, cnl, json, turtle, ntriples, jsonld)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Write one output file per input into this directory")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 4, "Files parsed concurrently")
	return cmd
}

func renderCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "render FILE...",
		Short: "Parse documents and print them back as normalized CNL",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				files, err := resolveFiles(args)
				if err != nil {
					return err
				}
				results, err := parseFiles(ctx, app, files, "", 1)
				if err != nil {
					return err
				}
				return writeResults(cmd, app, results, formatCNL, "")
			})
		},
	}
}

func exportCmd(opts *globalOptions) *cobra.Command {
	var (
		format  string
		profile string
		outDir  string
	)

	cmd := &cobra.Command{
		Use:   "export FILE...",
		Short: "Parse documents and export the graphs as RDF",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				if format == "" {
					format = app.cfg.Export.Format
				}
				if _, err := export.ParseFormat(format); err != nil {
					return err
				}
				if profile != "" {
					app.cfg.Export.Profile = profile
				}
				files, err := resolveFiles(args)
				if err != nil {
					return err
				}
				results, err := parseFiles(ctx, app, files, "", 1)
				if err != nil {
					return err
				}
				return writeResults(cmd, app, results, format, outDir)
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "RDF format (turtle, ntriples, jsonld); defaults to export.format")
	cmd.Flags().StringVar(&profile, "profile", "", "Export profile (minimal, typed)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Write one output file per input into this directory")
	return cmd
}

func deleteGraphCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-graph GRAPH",
		Short: "Remove a graph from every node of the registry",
		Long: `Remove a graph's membership and statements from the registry. Nodes the
graph mentioned are kept, even when no other graph mentions them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				affected, err := app.service.DeleteGraph(ctx, app.cfg.User, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "graph %s removed from %d nodes\n", args[0], len(affected))
				for _, id := range affected {
					fmt.Fprintf(out, "  %s\n", id)
				}
				return nil
			})
		},
	}
}

func describeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "describe NODE [TEXT...]",
		Short: "Set a node's description",
		Long: `Set the description of a registry node. A stub with a description
becomes complete; an empty description turns the node back into a stub.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				text := strings.Join(args[1:], " ")
				if err := app.service.Describe(ctx, app.cfg.User, args[0], text); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "described %s\n", args[0])
				return nil
			})
		},
	}
}

func orphansCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "orphans",
		Short: "List registry nodes no graph mentions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				nodes, err := app.service.Orphans(ctx, app.cfg.User)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, n := range nodes {
					state := cnl.StateStub
					if _, ok := n.Detail().(registry.Complete); ok {
						state = cnl.StateComplete
					}
					fmt.Fprintf(out, "%s\t%s\t%s\n", n.ID, n.Name, state)
				}
				return nil
			})
		},
	}
}

// resolveFiles expands glob patterns into a sorted, de-duplicated file list.
func resolveFiles(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expand %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %s", pattern)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// parseFiles runs one parse pass per file, at most jobs at a time. Passes
// for the same user serialize in the registry; results keep input order.
func parseFiles(ctx context.Context, app *App, files []string, graphID string, jobs int) ([]fileResult, error) {
	results := make([]fileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, path := range files {
		g.Go(func() error {
			fr, err := parseFile(gctx, app, path, graphID)
			if err != nil {
				return err
			}
			results[i] = *fr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func parseFile(ctx context.Context, app *App, path, graphID string) (*fileResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := parser.DefaultRegistry.Parse(path, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if graphID == "" {
		graphID = graphIDFor(doc)
	}
	res, err := app.service.ParseDocument(ctx, app.cfg.User, graphID, doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &fileResult{Path: path, GraphID: graphID, Result: res}, nil
}

// graphIDFor returns the document's "graph" frontmatter field, or a new id.
func graphIDFor(doc *source.Document) string {
	if id := strings.TrimSpace(doc.FrontmatterString("graph")); id != "" {
		return id
	}
	return uuid.NewString()
}

func outputPath(dir, input, ext string) string {
	base := filepath.Base(input)
	return filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+ext)
}
