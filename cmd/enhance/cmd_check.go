package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oy3o/enhance"
	"github.com/oy3o/enhance/classfile"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check <class-file|class-name>...",
		Short: "Report whether classes implement the enhancement marker",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := enhance.NewDetector(a.loader, a.cfg.EnhanceOptions(a.logger)...)
			out := cmd.OutOrStdout()
			for _, arg := range args {
				label := arg
				b, _, err := a.read(arg)
				if err != nil {
					a.logger.Warn("enhance: cannot read class", "class", arg, "error", err)
				} else if s, err := classfile.ReadSummary(b); err == nil {
					label = s.Name
				}
				fmt.Fprintf(out, "%s\t%s\n", label, d.Check(b))
			}
			return nil
		},
	}
}
