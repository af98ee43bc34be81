// Command unveil is the readiness gate CLI. It is the same entry point
// as the repository root main, split out so release builds can target
// the cmd tree directly.
package main

import (
	"fmt"
	"os"

	"github.com/unveil/unveil/cmd"
)

var (
	version   string
	commit    string
	date      string
	buildType string = "unclassified"
)

func main() {
	err := cmd.Execute(os.Args, cmd.BuildArgs{
		Version:   version,
		Commit:    commit,
		Date:      date,
		BuildType: buildType,
	})
	if err != nil {
		fmt.Printf("unveil: %s\n", err.Error())
		os.Exit(1)
	}
}
