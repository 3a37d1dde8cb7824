package main

import (
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spf13/cobra"

	"github.com/gorustyt/navbake/common/message"
)

func PathCmd(app *cli) *cobra.Command {
	var meshFile, configFile, from, to, outFile string
	c := &cobra.Command{
		Use:   "path",
		Short: "find a path between two points on a mesh",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseVec3(from)
			if err != nil {
				return err
			}
			end, err := parseVec3(to)
			if err != nil {
				return err
			}
			eng, err := app.loadEngine(cmd.Context(), meshFile, configFile, false)
			if err != nil {
				return err
			}

			path := eng.FindPath(start, end, mgl32.Ident4())
			out := cmd.OutOrStdout()
			if len(path) == 0 {
				fmt.Fprintln(out, "no path")
			}
			for i, p := range path {
				fmt.Fprintf(out, "%3d  %.3f %.3f %.3f\n", i, p[0], p[1], p[2])
			}
			if outFile != "" {
				return os.WriteFile(outFile, message.EncodePath(path), 0o644)
			}
			return nil
		},
	}
	c.Flags().StringVar(&meshFile, "mesh", "", "OBJ geometry file")
	c.Flags().StringVar(&configFile, "config", "", "Hjson agent config file")
	c.Flags().StringVar(&from, "from", "", "start point x,y,z")
	c.Flags().StringVar(&to, "to", "", "end point x,y,z")
	c.Flags().StringVar(&outFile, "out", "", "write the path as a protobuf message")
	_ = c.MarkFlagRequired("mesh")
	_ = c.MarkFlagRequired("from")
	_ = c.MarkFlagRequired("to")
	return c
}
