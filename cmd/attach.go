package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli"
	"github.com/unveil/unveil/cmd/common"
	"github.com/unveil/unveil/pkg/unveilcli"
)

var attachFlags = []cli.Flag{
	cli.StringFlag{
		Name:        "daemon-uri",
		Usage:       "connect to the daemon at this uri (unix://, tcp:// or pipe://)",
		EnvVar:      "UNVEIL_DAEMON_URI",
		Destination: &daemonURI,
	},
}

func attach(ctx *cli.Context) error {
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
		common.PrintRuntimeErr(ctx, "attach", "new_client", err)
		return nil
	}
	client.CheckVersionMismatch(currentBuildArgs.Version)
	a, err := client.Attach(runID)
	if err != nil {
		common.PrintRuntimeErr(ctx, "attach", "attach_run", err)
		return nil
	}
	fmt.Printf(`
Gate Info:
  Run Id: %s
  Url: %s
  State: %s
`, a.RunId, a.Url, a.State)
	RegisterHandlers(client)
	return client.Listen()
}
