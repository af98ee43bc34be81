package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli"
	"github.com/unveil/unveil/cmd/common"
	"github.com/unveil/unveil/pkg/unveilcli"
)

var (
	historyLimit int

	historyFlags = []cli.Flag{
		cli.IntFlag{
			Name:        "limit, n",
			Usage:       "maximum number of records to show",
			Value:       20,
			Destination: &historyLimit,
		},
	}
)

func history(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client, err := unveilcli.NewClientWithURI(daemonURI)
	if err != nil {
		common.PrintRuntimeErr(ctx, "history", "new_client", err)
		return nil
	}
	defer client.Close()
	h, err := client.History(historyLimit)
	if err != nil {
		common.PrintRuntimeErr(ctx, "history", "get_history", err)
		return nil
	}
	if len(h.Records) == 0 {
		fmt.Println("unveil: no finalized gates on record")
		return nil
	}
	for _, rec := range h.Records {
		line := fmt.Sprintf("%s  %-9s  %s  %s",
			rec.FinalizedAt.Format(time.DateTime),
			rec.Outcome,
			time.Duration(rec.ElapsedMs)*time.Millisecond,
			rec.URL,
		)
		if rec.TimedOut {
			line += "  [timeout]"
		}
		if rec.Memoized {
			line += "  [memoized]"
		}
		fmt.Println(line)
	}
	return nil
}
