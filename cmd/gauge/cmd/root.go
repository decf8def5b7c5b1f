package cmd

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/wharflab/gauge/internal/version"
)

// NewApp creates the CLI application
func NewApp() *cli.Command {
	return &cli.Command{
		Name:    "gauge",
		Usage:   "Match container images to their Chainguard equivalents",
		Version: version.Version(),
		Description: `gauge resolves alternative container images to equivalent images in a
Chainguard registry, cascading from curated mapping tables through name
heuristics to an optional LLM-backed matcher.

Examples:
  gauge match nginx:1.25
  gauge match --file images.txt --format csv --output matches.csv
  gauge match --oracle gcr.io/myproject/custom-api:v2`,
		Commands: []*cli.Command{
			matchCommand(),
			versionCommand(),
		},
	}
}

// Execute runs the CLI application
func Execute() error {
	return NewApp().Run(context.Background(), os.Args)
}
