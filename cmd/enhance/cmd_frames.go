package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oy3o/enhance/classfile"
)

func newFramesCmd(a *app) *cobra.Command {
	var compute bool
	cmd := &cobra.Command{
		Use:   "frames <class-file|class-name>",
		Short: "Print the stack map frames of every method",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, _, err := a.read(args[0])
			if err != nil {
				return err
			}
			if compute {
				if b, err = classfile.Transcode(b, classfile.ComputeFrames, a.loader); err != nil {
					return err
				}
			}
			cf, err := classfile.Parse(b)
			if err != nil {
				return err
			}
			return printFrames(cmd.OutOrStdout(), cf)
		},
	}
	cmd.Flags().BoolVar(&compute, "compute", false, "recompute frames before printing")
	return cmd
}

func printFrames(out io.Writer, cf *classfile.ClassFile) error {
	fmt.Fprintf(out, "%s (major %d)\n", cf.Name(), cf.Major)
	for i := range cf.Methods {
		m := &cf.Methods[i]
		code, err := cf.Code(m)
		if err != nil {
			return err
		}
		if code == nil {
			continue
		}
		name, desc := cf.MemberName(m)
		fmt.Fprintf(out, "%s%s max_stack=%d max_locals=%d\n", name, desc, code.MaxStack, code.MaxLocals)

		frames, err := cf.Frames(m)
		if err != nil {
			return fmt.Errorf("%s%s: %w", name, desc, err)
		}
		for _, f := range frames {
			fmt.Fprintf(out, "  @%d locals=[%s] stack=[%s]\n", f.Offset, join(f.Locals), join(f.Stack))
		}
	}
	return nil
}

func join(ts []classfile.VType) string {
	s := make([]string, len(ts))
	for i, t := range ts {
		s[i] = t.String()
	}
	return strings.Join(s, " ")
}
