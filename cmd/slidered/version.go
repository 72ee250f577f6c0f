package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/micro-nova/slidered/internal/identity"
)

func newVersionCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.jsonOutput {
				return writeJSON(o.out, map[string]string{"version": identity.GetVersion()})
			}
			fmt.Fprintf(o.out, "slidered %s\n", identity.GetVersion())
			return nil
		},
	}
}
