package main

import (
	"fmt"
	"os"

	"maaser/internal/cli"
)

func main() {
	cli.LoadEnvFile()

	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
