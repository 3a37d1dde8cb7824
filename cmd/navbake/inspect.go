package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gorustyt/navbake/navmesh"
)

func InspectCmd() *cobra.Command {
	var navFile string
	c := &cobra.Command{
		Use:   "inspect",
		Short: "print the agent config and tile header stored in a cache file",
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, tile, err := navmesh.ReadCacheHeader(navFile)
			if err != nil {
				return err
			}
			cfg, err := json.MarshalIndent(agent, "", "  ")
			if err != nil {
				return err
			}
			h := &tile.Header
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "agent config:\n%s\n", cfg)
			fmt.Fprintf(out, "tile version %d\n", h.Version)
			fmt.Fprintf(out, "  polys %d  verts %d  links %d\n", h.PolyCount, h.VertCount, h.MaxLinkCount)
			fmt.Fprintf(out, "  detail meshes %d  verts %d  tris %d\n", h.DetailMeshCount, h.DetailVertCount, h.DetailTriCount)
			fmt.Fprintf(out, "  bv nodes %d  quant %.3f\n", h.BvNodeCount, h.BvQuantFactor)
			fmt.Fprintf(out, "  walkable height %.2f  radius %.2f  climb %.2f\n", h.WalkableHeight, h.WalkableRadius, h.WalkableClimb)
			fmt.Fprintf(out, "  bounds %v - %v\n", h.Bmin, h.Bmax)
			return nil
		},
	}
	c.Flags().StringVar(&navFile, "nav", "", "cache file written by build")
	_ = c.MarkFlagRequired("nav")
	return c
}
