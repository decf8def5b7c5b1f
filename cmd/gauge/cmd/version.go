package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/wharflab/gauge/internal/version"
)

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output version information as JSON",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.Bool("json") {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Version   string `json:"version"`
					Commit    string `json:"commit,omitempty"`
					GoVersion string `json:"goVersion"`
				}{
					Version:   version.RawVersion(),
					Commit:    version.Commit(),
					GoVersion: version.GoVersion(),
				})
			}
			fmt.Printf("gauge version %s\n", version.Version())
			return nil
		},
	}
}
