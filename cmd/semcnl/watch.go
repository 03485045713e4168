package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/c360studio/semcnl/source/parser"
)

func watchCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch DIR",
		Short: "Re-parse CNL documents under a directory as they change",
		Long: `Parse every CNL document under DIR, then re-parse each one whenever it
is written. A file keeps the graph id it was first parsed with; removing
the file deletes its graph.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()
				return newWatcher(app, cmd.OutOrStdout(), cmd.ErrOrStderr()).run(ctx, args[0])
			})
		},
	}
}

// watcher keeps graphs in step with the CNL files under a directory.
type watcher struct {
	app    *App
	out    io.Writer
	errOut io.Writer
	// graphs maps a file to the graph id it was first parsed with.
	graphs map[string]string
	// passes, when set, receives every completed parse pass.
	passes chan<- fileResult
}

func newWatcher(app *App, out, errOut io.Writer) *watcher {
	return &watcher{
		app:    app,
		out:    out,
		errOut: errOut,
		graphs: make(map[string]string),
	}
}

func (w *watcher) run(ctx context.Context, root string) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		if isCNLFile(path) {
			w.reparse(ctx, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	w.app.logger.Info("Watching for changes", "dir", root, "files", len(w.graphs))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, fw, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.app.logger.Warn("Watch error", "error", err)
		}
	}
}

func (w *watcher) handle(ctx context.Context, fw *fsnotify.Watcher, ev fsnotify.Event) {
	switch {
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.forget(ctx, ev.Name)
	case ev.Has(fsnotify.Create) && isDir(ev.Name):
		if err := fw.Add(ev.Name); err != nil {
			w.app.logger.Warn("Failed to watch directory", "dir", ev.Name, "error", err)
		}
	case ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create):
		if isCNLFile(ev.Name) {
			w.reparse(ctx, ev.Name)
		}
	}
}

// reparse runs a parse pass for path. Failures are logged; the watch goes on.
func (w *watcher) reparse(ctx context.Context, path string) {
	fr, err := parseFile(ctx, w.app, path, w.graphs[path])
	if err != nil {
		w.app.logger.Warn("Parse failed", "path", path, "error", err)
		return
	}
	w.graphs[path] = fr.GraphID

	writeDiagnostics(w.errOut, *fr)
	fmt.Fprint(w.out, summary(*fr))

	if w.passes != nil {
		select {
		case w.passes <- *fr:
		case <-ctx.Done():
		}
	}
}

// forget deletes the graph of a file that went away.
func (w *watcher) forget(ctx context.Context, path string) {
	graphID, ok := w.graphs[path]
	if !ok {
		return
	}
	delete(w.graphs, path)

	affected, err := w.app.service.DeleteGraph(ctx, w.app.cfg.User, graphID)
	if err != nil {
		w.app.logger.Warn("Failed to delete graph", "path", path, "graph_id", graphID, "error", err)
		return
	}
	fmt.Fprintf(w.out, "%s: graph %s deleted from %d nodes\n", path, graphID, len(affected))
}

// isCNLFile reports whether a parser handles path. Plain text files are
// left alone.
func isCNLFile(path string) bool {
	if strings.EqualFold(filepath.Ext(path), ".txt") {
		return false
	}
	return parser.DefaultRegistry.Supports(path)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
