package main

import (
	"fmt"
	"io"
	"os"

	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/c360studio/semcnl/export"
	"github.com/c360studio/semcnl/metrics"
)

// Output formats besides the RDF ones.
const (
	formatSummary = "summary"
	formatCNL     = "cnl"
	formatJSON    = "json"
)

// writeResults prints diagnostics to stderr and each result in format,
// either to stdout or to one file per input under outDir.
func writeResults(cmd *cobra.Command, app *App, results []fileResult, format, outDir string) error {
	for _, fr := range results {
		writeDiagnostics(cmd.ErrOrStderr(), fr)

		body, ext, err := render(app, fr, format)
		if err != nil {
			return err
		}

		if outDir == "" {
			if _, err := io.WriteString(cmd.OutOrStdout(), body); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(outDir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		path := outputPath(outDir, fr.Path, ext)
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		app.logger.Info("Wrote output", "input", fr.Path, "output", path)
	}
	return nil
}

// render returns the text of one result and the file extension it is
// written with.
func render(app *App, fr fileResult, format string) (string, string, error) {
	res := fr.Result
	switch format {
	case formatSummary:
		return summary(fr), ".txt", nil
	case formatCNL:
		return res.Readable, ".md", nil
	case formatJSON:
		return string(res.Canonical) + "\n", ".json", nil
	}

	f, err := export.ParseFormat(format)
	if err != nil {
		return "", "", err
	}
	out, err := export.NewExporter(export.Profile(app.cfg.Export.Profile)).Export(res.Document, f)
	if err != nil {
		return "", "", err
	}
	info, _ := export.GetFormatInfo(f)
	return out, info.Extension, nil
}

func summary(fr fileResult) string {
	res := fr.Result
	s := fmt.Sprintf("%s: graph %s, %d nodes, %d created, %d diagnostics, hash %s\n",
		fr.Path, fr.GraphID, len(res.Document.Nodes), len(res.Created), len(res.Diagnostics), res.Hash)
	for _, t := range res.SchemaTuples {
		s += fmt.Sprintf("  line %d: %s %q (%s -> %s)\n", t.Line, t.Kind, t.Name, orDash(t.SourceType), orDash(t.TargetType))
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func writeDiagnostics(w io.Writer, fr fileResult) {
	for _, d := range fr.Result.Diagnostics {
		fmt.Fprintf(w, "%s:%d: %s %s: %s\n", fr.Path, d.Line, d.Severity, d.Kind, d.Message)
	}
}

// writeMetrics prints the collector in the Prometheus text format.
func writeMetrics(w io.Writer, c *metrics.Collector) error {
	reg := c.Registry()
	if reg == nil {
		return nil
	}
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	return nil
}
