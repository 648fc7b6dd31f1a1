package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// formatJSON formats the response as JSON
func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// formatHuman formats the response in human-readable format
func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *RunResponseCLI:
		return formatRunHuman(v)
	case *ResultsResponseCLI:
		return formatResultsHuman(v)
	case *RunsResponseCLI:
		return formatRunsHuman(v)
	default:
		// For unknown types, fall back to JSON
		return formatJSON(resp)
	}
}

func formatRunHuman(resp *RunResponseCLI) (string, error) {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Run: %s\n", resp.Scene))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	if resp.RunID != "" {
		b.WriteString(fmt.Sprintf("Run ID: %s\n", resp.RunID))
	}
	b.WriteString(fmt.Sprintf("Sources: %d  Receivers: %d  Bands: %s\n",
		resp.Sources, resp.Receivers, formatBands(resp.Bands)))
	b.WriteString(fmt.Sprintf("Duration: %s\n\n", time.Duration(resp.DurationMs)*time.Millisecond))

	b.WriteString("Statistics:\n")
	b.WriteString(fmt.Sprintf("  Pairs evaluated: %d\n", resp.Stats.Pairs))
	b.WriteString(fmt.Sprintf("  Paths: %d direct, %d reflected, %d diffracted\n",
		resp.Stats.DirectPaths, resp.Stats.ReflectedPaths, resp.Stats.DiffractedPaths))
	b.WriteString(fmt.Sprintf("  Mirror images: %d\n", resp.Stats.MirrorImages))
	b.WriteString(fmt.Sprintf("  Sources skipped: %d\n\n", resp.Stats.SkippedSources))

	writeLevels(&b, resp)

	if resp.Error != "" {
		b.WriteString(fmt.Sprintf("\n✗ %s\n", resp.Error))
	}
	return b.String(), nil
}

func writeLevels(b *strings.Builder, resp *RunResponseCLI) {
	if len(resp.Levels) == 0 {
		b.WriteString("No receiver level.\n")
		return
	}
	w := tabwriter.NewWriter(b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RECEIVER\tLEVEL (dB)\tPROCESSED\tSKIPPED")
	for _, s := range resp.Levels {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\n", s.ReceiverID, formatLevel(s.Power, s.Level), s.Processed, s.Skipped)
	}
	_ = w.Flush()
}

func formatResultsHuman(resp *ResultsResponseCLI) (string, error) {
	var b strings.Builder

	r := resp.Run
	b.WriteString(fmt.Sprintf("Run %s\n", r.ID))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	b.WriteString(fmt.Sprintf("  Scene: %s\n", r.Scene))
	b.WriteString(fmt.Sprintf("  Created: %s\n", r.CreatedAt.Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf("  Status: %s\n", r.Status))
	if r.Error != "" {
		b.WriteString(fmt.Sprintf("  Error: %s\n", r.Error))
	}
	b.WriteString(fmt.Sprintf("  Duration: %s\n", r.Duration))
	b.WriteString(fmt.Sprintf("  Bands: %s\n\n", formatBands(r.Bands)))

	writeLevels(&b, &RunResponseCLI{Levels: resp.Levels})

	if len(resp.Attenuation) > 0 {
		b.WriteString("\nAttenuation (dB per band):\n")
		w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "RECEIVER\tSOURCE\t%s\n", strings.Join(bandHeaders(r.Bands), "\t"))
		for _, rec := range resp.Attenuation {
			cells := make([]string, len(rec.Levels))
			for i, v := range rec.Levels {
				cells[i] = fmt.Sprintf("%.1f", v)
			}
			fmt.Fprintf(w, "%d\t%d\t%s\n", rec.ReceiverID, rec.SourceID, strings.Join(cells, "\t"))
		}
		_ = w.Flush()
	}

	for i, p := range resp.Paths {
		b.WriteString(fmt.Sprintf("\nPath %d (%s), receiver %d, source %d:\n", i+1, p.Kind, p.ReceiverID, p.SourceID))
		for _, pt := range p.Points {
			b.WriteString(fmt.Sprintf("  %-5s (%.2f, %.2f, %.2f)", pt.Type, float64(pt.X), float64(pt.Y), float64(pt.Z)))
			if pt.BuildingID != 0 {
				b.WriteString(fmt.Sprintf("  building %d", pt.BuildingID))
			}
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

func formatRunsHuman(resp *RunsResponseCLI) (string, error) {
	if len(resp.Runs) == 0 {
		return "No runs recorded.", nil
	}
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tSTATUS\tSOURCES\tRECEIVERS\tDURATION\tSCENE")
	for _, r := range resp.Runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.ID, r.CreatedAt.Format(time.RFC3339), r.Status, r.Sources, r.Receivers, r.Duration, r.Scene)
	}
	_ = w.Flush()
	return strings.TrimRight(b.String(), "\n"), nil
}

func formatLevel(power, level float64) string {
	if power <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f", level)
}

func formatBands(bands []float64) string {
	return strings.Join(bandHeaders(bands), " ")
}

func bandHeaders(bands []float64) []string {
	out := make([]string, len(bands))
	for i, f := range bands {
		if f >= 1000 {
			out[i] = fmt.Sprintf("%gk", f/1000)
		} else {
			out[i] = fmt.Sprintf("%g", f)
		}
	}
	return out
}
