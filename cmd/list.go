package cmd

import (
	"fmt"

	"github.com/urfave/cli"
	"github.com/unveil/unveil/cmd/common"
	"github.com/unveil/unveil/pkg/unveilcli"
)

var (
	showCompleted bool
	showPending   bool
	showAll       bool

	lsFlags = []cli.Flag{
		cli.BoolFlag{
			Name:        "show-completed, c",
			Usage:       "use this flag to list settled gates (default: false)",
			Destination: &showCompleted,
		},
		cli.BoolTFlag{
			Name:        "show-pending, p",
			Usage:       "use this flag to include pending gates (default: true)",
			Destination: &showPending,
		},
		cli.BoolFlag{
			Name:        "show-all, a",
			Usage:       "use this flag to list all gates (default: false)",
			Destination: &showAll,
		},
	}
)

func list(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client, err := unveilcli.NewClientWithURI(daemonURI)
	if err != nil {
		common.PrintRuntimeErr(ctx, "list", "new_client", err)
		return nil
	}
	defer client.Close()
	l, err := client.List(&unveilcli.ListOpts{
		ShowCompleted: showCompleted || showAll,
		ShowPending:   showPending || showAll,
	})
	if err != nil {
		common.PrintRuntimeErr(ctx, "list", "get_list", err)
		return nil
	}
	if len(l.Runs) == 0 {
		fmt.Println("unveil: no gates found")
		return nil
	}
	txt := "Here are your gates:"
	txt += "\n\n----------------------------------------------------------------"
	txt += "\n|Num|            Url            |    Run Id    |     State     |"
	txt += "\n|---|---------------------------|--------------|---------------|"
	for i, run := range l.Runs {
		url := run.URL
		n := len(url)
		switch {
		case n > 25:
			url = url[:22] + "..."
		case n < 25:
			url = common.Beaut(url, 25)
		}
		state := run.StateName
		if run.TimedOut {
			state += " (timeout)"
		}
		txt += fmt.Sprintf("\n| %d | %s | %s | %s |", i+1, url, common.Beaut(run.ID, 12), common.Beaut(state, 13))
	}
	txt += "\n----------------------------------------------------------------"
	fmt.Println(txt)
	return nil
}
