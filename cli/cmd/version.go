package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/strata/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// VersionCommand returns the version command. All components share a
// single version (lockstep versioning).
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			out, _ := json.MarshalIndent(VersionResponse{
				Version: types.Version,
				Commit:  commit,
			}, "", "  ")
			fmt.Fprintln(c.App.Writer, string(out))
			return nil
		},
	}
}
