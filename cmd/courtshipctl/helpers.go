package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"courtship/internal/format"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputFlags selects between a rendered table and raw JSON.
type outputFlags struct {
	format  string
	jsonOut bool
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.format, "format", "table", "table format: table|markdown|csv")
	cmd.Flags().BoolVar(&o.jsonOut, "json", false, "emit JSON instead of a table")
}

func (o *outputFlags) table() (format.TableBuilder, error) {
	mode, err := format.ParseMode(o.format)
	if err != nil {
		return nil, err
	}
	return format.NewTable(mode), nil
}

func render(w io.Writer, tb format.TableBuilder) {
	fmt.Fprintln(w, tb.String())
}
