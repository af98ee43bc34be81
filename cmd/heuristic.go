package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli"
	"github.com/unveil/unveil/cmd/common"
	"github.com/unveil/unveil/pkg/unveilcli"
)

func heuristicLoad(ctx *cli.Context) error {
	path := ctx.Args().First()
	if path == "" {
		return common.PrintErrWithCmdHelp(
			ctx,
			errors.New("no script file provided"),
		)
	} else if path == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		common.PrintRuntimeErr(ctx, "heuristic", "read_script", err)
		return nil
	}
	name := ctx.Args().Get(1)
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	client, err := unveilcli.NewClientWithURI(daemonURI)
	if err != nil {
		common.PrintRuntimeErr(ctx, "heuristic", "new_client", err)
		return nil
	}
	defer client.Close()
	res, err := client.LoadHeuristic(name, string(src))
	if err != nil {
		common.PrintRuntimeErr(ctx, "heuristic", "load_script", err)
		return nil
	}
	fmt.Printf("Loaded heuristic %q\n", res.Name)
	return nil
}

func heuristicList(ctx *cli.Context) error {
	client, err := unveilcli.NewClientWithURI(daemonURI)
	if err != nil {
		common.PrintRuntimeErr(ctx, "heuristic", "new_client", err)
		return nil
	}
	defer client.Close()
	res, err := client.ListHeuristics()
	if err != nil {
		common.PrintRuntimeErr(ctx, "heuristic", "list_scripts", err)
		return nil
	}
	if len(res.Names) == 0 {
		fmt.Println("unveil: no heuristics loaded")
		return nil
	}
	for _, name := range res.Names {
		fmt.Println(name)
	}
	return nil
}

func heuristicDrop(ctx *cli.Context) error {
	name := ctx.Args().First()
	if name == "" {
		return common.PrintErrWithCmdHelp(
			ctx,
			errors.New("no heuristic name provided"),
		)
	} else if name == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client, err := unveilcli.NewClientWithURI(daemonURI)
	if err != nil {
		common.PrintRuntimeErr(ctx, "heuristic", "new_client", err)
		return nil
	}
	defer client.Close()
	if _, err := client.DropHeuristic(name); err != nil {
		common.PrintRuntimeErr(ctx, "heuristic", "drop_script", err)
		return nil
	}
	fmt.Printf("Dropped heuristic %q\n", name)
	return nil
}
