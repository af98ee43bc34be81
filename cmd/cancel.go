package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli"
	"github.com/unveil/unveil/cmd/common"
	"github.com/unveil/unveil/pkg/unveilcli"
)

func cancel(ctx *cli.Context) error {
	runID := ctx.Args().First()
	if runID == "" {
		return common.PrintErrWithCmdHelp(
			ctx,
			errors.New("no run id provided"),
		)
	} else if runID == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client, err := unveilcli.NewClientWithURI(daemonURI)
	if err != nil {
		common.PrintRuntimeErr(ctx, "cancel", "new_client", err)
		return nil
	}
	defer client.Close()
	res, err := client.Cancel(runID)
	if err != nil {
		common.PrintRuntimeErr(ctx, "cancel", "cancel_run", err)
		return nil
	}
	fmt.Printf("Gate %s canceled (state: %s)\n", res.RunId, res.State)
	return nil
}
