package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/latoulicious/rpsync/internal/commands"
	"github.com/urfave/cli/v2"
)

func main() {
	app := commands.NewApp(commands.NewEnv())
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var exit cli.ExitCoder
		if errors.As(err, &exit) {
			os.Exit(exit.ExitCode())
		}
		os.Exit(1)
	}
}
