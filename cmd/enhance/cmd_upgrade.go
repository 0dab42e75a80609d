package main

import (
	"bufio"
	"errors"

	"github.com/spf13/cobra"

	"github.com/oy3o/enhance"
)

func newUpgradeCmd(a *app) *cobra.Command {
	var (
		output  string
		inPlace bool
	)
	cmd := &cobra.Command{
		Use:   "upgrade <class-file|class-name>",
		Short: "Rewrite a class, recomputing stack map frames when its version requires them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, path, err := a.read(args[0])
			if err != nil {
				return err
			}
			c, err := enhance.ParseClass(b, a.loader)
			if err != nil {
				return err
			}
			w := enhance.NewWriter(a.cfg.EnhanceOptions(a.logger)...)

			switch {
			case output == "-":
				err = w.WriteStream(c, bufio.NewWriter(cmd.OutOrStdout()))
			case output != "":
				err = w.WriteFile(c, output)
			case inPlace && path != "":
				err = w.WriteFile(c, path)
			case inPlace:
				err = w.WriteResource(c)
			default:
				err = errors.New("upgrade: one of --output or --in-place is required")
			}
			if err != nil {
				return err
			}
			a.logger.Info("enhance: upgraded", "class", c.Name(), "major", c.MajorVersion(), "frames", w.NeedsFrames(c.MajorVersion()))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file, or - for stdout")
	cmd.Flags().BoolVar(&inPlace, "in-place", false, "overwrite the class where it was found")
	cmd.MarkFlagsMutuallyExclusive("output", "in-place")
	return cmd
}
