package cmd

import (
	"fmt"
	"runtime"

	"github.com/urfave/cli"
	"github.com/unveil/unveil/cmd/common"
)

type BuildArgs struct {
	Version   string
	BuildType string
	Date      string
	Commit    string
}

var currentBuildArgs BuildArgs

func Execute(args []string, bArgs BuildArgs) error {
	currentBuildArgs = bArgs
	app := cli.App{
		Name:                  "unveil",
		HelpName:              "unveil",
		Usage:                 "A readiness gate for page reveals.",
		Version:               fmt.Sprintf("%s-%s", bArgs.Version, bArgs.BuildType),
		UsageText:             "unveil <command> [arguments...]",
		Description:           DESCRIPTION,
		CustomAppHelpTemplate: HELP_TEMPL,
		OnUsageError:          common.UsageErrorCallback,
		Commands: []cli.Command{
			{
				Name:   "daemon",
				Action: getDaemonAction(),
			},
			{
				Name:   "stop-daemon",
				Usage:  "stops the running daemon",
				Action: stopDaemon,
			},
			{
				Name:                   "watch",
				Aliases:                []string{"w"},
				Usage:                  "gate a page behind its readiness signals",
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				OnUsageError:           common.UsageErrorCallback,
				Action:                 watch,
				Flags:                  watchFlags,
				UseShortOptionHandling: true,
				Description:            WatchDescription,
			},
			{
				Name:               "attach",
				Aliases:            []string{"a"},
				Usage:              "join the progress stream of a running gate",
				Action:             attach,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        AttachDescription,
				Flags:              attachFlags,
			},
			{
				Name:                   "list",
				Aliases:                []string{"l"},
				Usage:                  "display gate runs",
				Action:                 list,
				OnUsageError:           common.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Description:            ListDescription,
				UseShortOptionHandling: true,
				Flags:                  lsFlags,
			},
			{
				Name:               "status",
				Aliases:            []string{"s"},
				Usage:              "show one snapshot of a gate run",
				Action:             status,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        StatusDescription,
			},
			{
				Name:               "cancel",
				Usage:              "stop a running gate before it reveals",
				Action:             cancel,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        CancelDescription,
			},
			{
				Name:                   "flush",
				Aliases:                []string{"c"},
				Usage:                  "delete finished gate runs",
				Description:            FlushDescription,
				OnUsageError:           common.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Action:                 flush,
				UseShortOptionHandling: true,
			},
			{
				Name:                   "history",
				Usage:                  "list journaled records of finished runs",
				Description:            HistoryDescription,
				OnUsageError:           common.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Action:                 history,
				UseShortOptionHandling: true,
				Flags:                  historyFlags,
			},
			{
				Name:               "heuristic",
				Usage:              "manage readiness scripts on the daemon",
				Description:        HeuristicDescription,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Subcommands: []cli.Command{
					{
						Name:   "load",
						Usage:  "load a readiness script from a file",
						Action: heuristicLoad,
					},
					{
						Name:   "list",
						Usage:  "list loaded readiness scripts",
						Action: heuristicList,
					},
					{
						Name:   "drop",
						Usage:  "remove a loaded readiness script",
						Action: heuristicDrop,
					},
				},
			},
			{
				Name:    "help",
				Aliases: []string{"h"},
				Usage:   "prints the help message",
				Action:  common.Help,
			},
			{
				Name:               "version",
				Aliases:            []string{"v"},
				Usage:              "prints installed version of unveil",
				UsageText:          " ",
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             common.GetVersion,
			},
		},
		Action:                 watch,
		Flags:                  watchFlags,
		UseShortOptionHandling: true,
		HideHelp:               true,
		HideVersion:            true,
	}
	app.Commands = append(app.Commands, getPlatformCommands()...)
	common.VersionCmdStr = fmt.Sprintf("%s %s (%s_%s)\nBuild: %s=%s\n",
		app.Name,
		app.Version,
		runtime.GOOS,
		runtime.GOARCH,
		bArgs.Date, bArgs.Commit,
	)
	return app.Run(args)
}
