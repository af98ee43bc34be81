package cmd

import (
	"fmt"

	"github.com/urfave/cli"
	"github.com/unveil/unveil/cmd/common"
	"github.com/unveil/unveil/pkg/unveilcli"
)

// flush drops settled runs from the daemon; with a run id it drops
// just that run, without one it drops every settled run.
func flush(ctx *cli.Context) error {
	runID := ctx.Args().First()
	if runID == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client, err := unveilcli.NewClientWithURI(daemonURI)
	if err != nil {
		common.PrintRuntimeErr(ctx, "flush", "new_client", err)
		return nil
	}
	defer client.Close()
	ok, err := client.Flush(runID)
	if err != nil {
		common.PrintRuntimeErr(ctx, "flush", "flush_runs", err)
		return nil
	}
	if !ok {
		fmt.Println("unveil: nothing to flush")
		return nil
	}
	if runID == "" {
		fmt.Println("Flushed all settled gates")
	} else {
		fmt.Printf("Flushed gate %s\n", runID)
	}
	return nil
}
