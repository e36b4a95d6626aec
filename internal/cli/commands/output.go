package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alvesdmateus/codebuild-run-build/internal/codebuild"
	"github.com/alvesdmateus/codebuild-run-build/internal/tasklists"
)

// render writes v in the configured format. text is handled by the caller.
func render(w io.Writer, format string, v interface{}) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
	return nil
}

func renderBuild(w io.Writer, format string, record *codebuild.BuildRecord) error {
	if format != "text" {
		return render(w, format, record)
	}

	fmt.Fprintf(w, "Build:  %s\n", record.ID)
	fmt.Fprintf(w, "Status: %s\n", record.Status)
	if record.StartTime != nil && record.EndTime != nil {
		fmt.Fprintf(w, "Took:   %s\n", record.EndTime.Sub(*record.StartTime).Round(time.Second))
	}
	return nil
}

func renderStatuses(w io.Writer, format string, statuses []tasklists.Status) error {
	if format != "text" {
		return render(w, format, statuses)
	}

	for _, s := range statuses {
		if s.Description != "" {
			fmt.Fprintf(w, "%-8s %s (%s)\n", s.State, s.Context, s.Description)
			continue
		}
		fmt.Fprintf(w, "%-8s %s\n", s.State, s.Context)
	}
	return nil
}
