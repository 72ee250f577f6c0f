package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/micro-nova/slidered/internal/codec"
	"github.com/micro-nova/slidered/internal/models"
	"github.com/micro-nova/slidered/internal/render"
	"github.com/micro-nova/slidered/internal/storage"
)

func newShowCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <file>",
		Short: "Print the controls of a parameter file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig(cmd)
			if err != nil {
				return err
			}
			fs := storage.NewOSFS(cfg.Root)
			data, err := fs.Read(cmd.Context(), fs.Path(args[0]))
			if err != nil {
				return err
			}
			params, err := codec.Decode(data)
			if err != nil {
				return err
			}
			controls := render.Controls(params)

			width, ok := terminalWidth(o.out)
			if o.jsonOutput || !ok {
				return writeJSON(o.out, controls)
			}
			return writeTable(o.out, controls, width)
		},
	}
}

// terminalWidth reports the width of out when it is a terminal.
func terminalWidth(out io.Writer) (int, bool) {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0, false
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return 80, true
	}
	return w, true
}

// writeTable prints one row per control with a bar scaled to its range.
func writeTable(out io.Writer, controls []models.Control, width int) error {
	if len(controls) == 0 {
		_, err := fmt.Fprintln(out, "(no parameters)")
		return err
	}
	nameWidth := 0
	for _, c := range controls {
		nameWidth = max(nameWidth, len(c.Label))
	}
	barWidth := min(max(width-nameWidth-16, 10), 60)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, c := range controls {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Label, bar(c, barWidth), formatValue(c.Value))
	}
	return tw.Flush()
}

// bar draws value within [Min, Max]. Out-of-range values fill or empty the
// bar completely.
func bar(c models.Control, width int) string {
	span := float64(c.Max - c.Min)
	frac := (c.Value - float64(c.Min)) / span
	filled := int(frac*float64(width) + 0.5)
	filled = min(max(filled, 0), width)
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
