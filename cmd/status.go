package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli"
	"github.com/unveil/unveil/cmd/common"
	"github.com/unveil/unveil/pkg/unveilcli"
)

func status(ctx *cli.Context) error {
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
		common.PrintRuntimeErr(ctx, "status", "new_client", err)
		return nil
	}
	defer client.Close()
	s, err := client.Status(runID)
	if err != nil {
		common.PrintRuntimeErr(ctx, "status", "get_status", err)
		return nil
	}
	run := s.Run
	fmt.Printf(`Gate Status:
  Run Id: %s
  Url: %s
  State: %s
  Timer: %.1f%%
  Readiness: %.1f%%
  Combined: %.1f%%
`, run.ID, run.URL, run.StateName,
		run.Current.Timer*100,
		run.Current.Readiness*100,
		run.Current.Combined*100,
	)
	if run.TimedOut {
		fmt.Println("  Timed Out: yes")
	}
	if run.Memoized {
		fmt.Println("  Memoized: yes")
	}
	return nil
}
