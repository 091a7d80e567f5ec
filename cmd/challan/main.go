// Command challan is the railway fare-violation field-agent CLI.
package main

import (
	"fmt"
	"os"

	"github.com/ayushhh101/challan-agent/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
