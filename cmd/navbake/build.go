package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gorustyt/navbake/navmesh"
)

func BuildCmd(app *cli) *cobra.Command {
	var meshFile, configFile string
	var noCache bool
	c := &cobra.Command{
		Use:   "build",
		Short: "bake the navigation of a mesh, or load it from its cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := app.loadEngine(cmd.Context(), meshFile, configFile, noCache)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "cache:     %s\n", navmesh.CachePath(meshFile))
			fmt.Fprintf(out, "polygons:  %d\n", eng.PolyCount())
			fmt.Fprintf(out, "blob size: %d bytes\n", len(eng.Blob().Data))
			fmt.Fprintf(out, "area size: %.3f\n", eng.AreaSize())
			return nil
		},
	}
	c.Flags().StringVar(&meshFile, "mesh", "", "OBJ geometry file")
	c.Flags().StringVar(&configFile, "config", "", "Hjson agent config file")
	c.Flags().BoolVar(&noCache, "no-cache", false, "rebuild even if a matching cache exists")
	_ = c.MarkFlagRequired("mesh")
	return c
}

func (app *cli) loadEngine(ctx context.Context, meshFile, configFile string, noCache bool) (*navmesh.Engine, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	agent, err := loadAgentConfig(configFile)
	if err != nil {
		return nil, err
	}
	model, err := navmesh.LoadOBJ(meshFile)
	if err != nil {
		return nil, err
	}
	return navmesh.LoadOrBuild(ctx, model, agent, navmesh.BuildOptions{Logger: app.log, NoCache: noCache})
}
