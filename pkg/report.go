package fileintegrity

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/goccy/go-yaml"
)

// WriteReport renders a verification report in the given output format
func WriteReport(w io.Writer, report *Report, format string) error {
	switch strings.ToLower(format) {
	case "", FormatHuman:
		return writeHumanReport(w, report)
	case FormatJSON:
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	case FormatYAML:
		data, err := yaml.Marshal(report)
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		return ValidateOutputFormat(format)
	}
}

// writeHumanReport prints counts followed by +, - and * itemised paths
func writeHumanReport(w io.Writer, report *Report) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "Verification report")
	fmt.Fprintln(bw, "-------------------")

	sections := []struct {
		label  string
		marker string
		paths  []string
	}{
		{"Added:  ", "+", report.Added},
		{"Removed:", "-", report.Removed},
		{"Changed:", "*", report.Changed},
	}
	for _, s := range sections {
		fmt.Fprintf(bw, "%s %d\n", s.label, len(s.paths))
		for _, p := range s.paths {
			fmt.Fprintf(bw, "  %s %s\n", s.marker, p)
		}
	}

	return bw.Flush()
}
