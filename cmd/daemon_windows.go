//go:build windows

package cmd

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli"
	daemonpkg "github.com/unveil/unveil/internal/daemon"
	"github.com/unveil/unveil/internal/service"
	"github.com/unveil/unveil/pkg/gatelib"
	"github.com/unveil/unveil/pkg/logger"
	"golang.org/x/sys/windows/svc"
)

// serviceShutdownTimeout bounds how long an SCM stop request waits for
// the serve loop to drain before the handler reports an error.
const serviceShutdownTimeout = 10 * time.Second

// getDaemonAction returns the platform-specific daemon action.
// On Windows, this detects service mode and uses Event Log.
func getDaemonAction() cli.ActionFunc {
	return daemonWindows
}

// daemonWindows detects if running as a Windows service and uses the
// appropriate logger. When running as a service, logs go to the Windows
// Event Log. When running as a console application, the standard daemon()
// function is used.
func daemonWindows(ctx *cli.Context) error {
	isService, err := svc.IsWindowsService()
	if err != nil {
		return err
	}

	if !isService {
		// Console mode - use existing daemon() function (unchanged behavior)
		return daemon(ctx)
	}

	return runAsWindowsService()
}

// runAsWindowsService runs the daemon as a Windows service with Event Log
// integration. The service handler drives the shared runner: components
// are assembled on SCM start and torn down when the serve loop drains.
func runAsWindowsService() error {
	compLog := serviceComponentLogger()
	defer compLog.Close()

	runner := daemonpkg.New(&daemonpkg.Config{
		ServiceName:     daemonpkg.DefaultServiceName,
		DisplayName:     daemonpkg.DefaultDisplayName,
		ShutdownTimeout: serviceShutdownTimeout,
	}, func(stop func()) (daemonpkg.Instance, error) {
		comps, err := initDaemonComponents(compLog)
		if err != nil {
			return nil, err
		}
		comps.Api.SetShutdown(stop)
		return comps, nil
	})

	elog, err := service.NewWindowsEventLogger(daemonpkg.DefaultServiceName)
	if err != nil {
		// Event Log unavailable (not registered, permissions issue).
		return svc.Run(daemonpkg.DefaultServiceName, service.NewWindowsHandler(runner))
	}
	defer elog.Close()

	handler := service.NewWindowsHandlerWithLogger(runner, elog)
	return svc.Run(daemonpkg.DefaultServiceName, handler)
}

// daemonLogName is the component log file kept next to the journal in
// the unveil config directory.
const daemonLogName = "daemon.log"

// serviceComponentLogger builds the logger handed to the daemon
// components in service mode: the Windows Event Log teed with a
// daemon.log file in the config directory. Either backend is optional;
// with neither available the components run silent.
func serviceComponentLogger() logger.Logger {
	var backends []logger.Logger

	if elog, err := logger.NewEventLogger(daemonpkg.DefaultServiceName); err == nil {
		backends = append(backends, elog)
	}

	logPath := filepath.Join(gatelib.ConfigDir, daemonLogName)
	if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644); err == nil {
		backends = append(backends, &fileLogger{
			StandardLogger: logger.NewStandardLogger(log.New(f, "", log.LstdFlags)),
			f:              f,
		})
	}

	if len(backends) == 0 {
		return &logger.NopLogger{}
	}
	return logger.Tee(backends...)
}

// fileLogger closes its file with the logger.
type fileLogger struct {
	*logger.StandardLogger
	f *os.File
}

func (l *fileLogger) Close() error {
	return l.f.Close()
}
