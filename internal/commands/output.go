package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/latoulicious/rpsync/pkg/cloud"
	"github.com/urfave/cli/v2"
)

// outputJSON writes v as indented JSON to the command output
func (e *Env) outputJSON(v any) error {
	enc := json.NewEncoder(e.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats err for the CLI, prefixing gateway status codes
func outputError(err error) error {
	var apiErr *cloud.APIError
	if errors.As(err, &apiErr) {
		return cli.Exit(fmt.Sprintf("[%d] %s", apiErr.StatusCode, apiErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// profileArg returns the first positional argument
func profileArg(c *cli.Context) (string, error) {
	if c.NArg() < 1 || c.Args().First() == "" {
		return "", fmt.Errorf("profile id is required")
	}
	return c.Args().First(), nil
}

// versionArg parses the positional argument at i as a version number
func versionArg(c *cli.Context, i int) (int, error) {
	raw := c.Args().Get(i)
	if raw == "" {
		return 0, fmt.Errorf("version is required")
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid version %q", raw)
	}
	return v, nil
}
