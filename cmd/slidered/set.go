package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/micro-nova/slidered/internal/controller"
	"github.com/micro-nova/slidered/internal/models"
	"github.com/micro-nova/slidered/internal/storage"
)

func newSetCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "set <file> key=value...",
		Short: "Change parameters the way the slider page does, then save",
		Long: `set applies each key=value as a slider edit: the value is read as an
integer and clamped to the slider range. Unknown keys become new parameters.
The file is saved once all edits are applied.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig(cmd)
			if err != nil {
				return err
			}
			edits, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			fs := storage.NewOSFS(cfg.Root)
			ctrl, err := controller.Open(ctx, fs, "cli", fs.Path(args[0]), nil)
			if err != nil {
				return err
			}
			defer ctrl.Dispose()

			for _, e := range edits {
				if _, ok := controller.ParseValue(e.Value); !ok {
					return fmt.Errorf("%s: %q is not an integer", e.Key, e.Value)
				}
				if err := ctrl.HandleMessage(ctx, nil, e); err != nil {
					return err
				}
			}
			if err := ctrl.Save(ctx); err != nil {
				return err
			}

			sess, err := ctrl.Session(ctx)
			if err != nil {
				return err
			}
			if o.jsonOutput {
				return writeJSON(o.out, sess)
			}
			for _, c := range sess.Controls {
				fmt.Fprintf(o.out, "%s = %s\n", c.Label, formatValue(c.Value))
			}
			return nil
		},
	}
}

// parseAssignments splits key=value arguments.
func parseAssignments(args []string) ([]models.ValueChanged, error) {
	out := make([]models.ValueChanged, 0, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid assignment %q, want key=value", a)
		}
		out = append(out, models.ValueChanged{Key: k, Value: v})
	}
	return out, nil
}
