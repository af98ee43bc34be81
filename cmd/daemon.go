package cmd

import (
	"fmt"
	"log"

	"github.com/urfave/cli"
	"github.com/unveil/unveil/cmd/common"
	daemonpkg "github.com/unveil/unveil/internal/daemon"
	"github.com/unveil/unveil/pkg/logger"
)

func daemon(ctx *cli.Context) error {
	lg := logger.NewStandardLogger(log.Default())

	if err := WritePidFile(); err != nil {
		common.PrintRuntimeErr(ctx, "daemon", "write_pid", err)
		return nil
	}
	defer func() {
		_ = RemovePidFile()
	}()

	comps, err := initDaemonComponents(lg)
	if err != nil {
		common.PrintRuntimeErr(ctx, "daemon", "init_components", err)
		return nil
	}

	runCtx, cancel := setupShutdownHandler()
	defer cancel()

	// The runner owns comps from here: it closes them when the serve
	// loop drains, signal or stop-daemon alike.
	runner := daemonpkg.New(nil, func(stop func()) (daemonpkg.Instance, error) {
		comps.Api.SetShutdown(stop)
		return comps, nil
	})

	fmt.Println("Unveil daemon started")
	return runner.Start(runCtx)
}
