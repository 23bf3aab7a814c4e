package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/strata/cli/config"
	"github.com/justapithecus/strata/types"
)

// GeometryResponse is the derived geometry printed by describe.
type GeometryResponse struct {
	FrameBytes     uint64 `json:"frame_bytes"`
	ChunkBytes     uint64 `json:"chunk_bytes"`
	ChunksPerFrame uint64 `json:"chunks_per_frame"`
	ShardsPerFrame uint64 `json:"shards_per_frame,omitempty"`
	ChunksPerShard uint64 `json:"chunks_per_shard,omitempty"`
}

// DescribeCommand returns the describe command: print the array geometry
// a settings file derives to, without touching any store.
func DescribeCommand() *cli.Command {
	return &cli.Command{
		Name:  "describe",
		Usage: "Print the array geometry derived from a settings file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the YAML settings file",
				Required: true,
			},
		},
		Action: describeAction,
	}
}

func describeAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	settings, err := cfg.ToSettings()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	dims, err := types.NewDimensions(settings.Dimensions, settings.DataType)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	resp := GeometryResponse{
		FrameBytes:     dims.FrameBytes(),
		ChunkBytes:     dims.ChunkBytes(),
		ChunksPerFrame: dims.ChunksPerFrame(),
	}
	if settings.Version == types.ZarrV3 {
		resp.ShardsPerFrame = dims.ShardsPerFrame()
		resp.ChunksPerShard = dims.ChunksPerShard()
	}

	out, _ := json.MarshalIndent(resp, "", "  ")
	fmt.Fprintln(c.App.Writer, string(out))
	return nil
}
