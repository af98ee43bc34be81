//go:build windows

package service

import (
	"errors"
	"fmt"
)

// Sentinel errors for service registration and control.
var (
	ErrServiceExists         = errors.New("service already exists")
	ErrServiceNotFound       = errors.New("service not found")
	ErrServiceAlreadyRunning = errors.New("service is already running")
	ErrServiceNotRunning     = errors.New("service is not running")
)

// Start types accepted by Install, matching the Windows
// SERVICE_START_TYPE values.
const (
	// StartTypeAutomatic starts the service at boot.
	StartTypeAutomatic uint32 = 2

	// StartTypeManual leaves the service to be started on demand.
	StartTypeManual uint32 = 3
)

// ServiceStatus mirrors the SERVICE_STATUS dwCurrentState values.
type ServiceStatus uint32

const (
	StatusStopped         ServiceStatus = 1
	StatusStartPending    ServiceStatus = 2
	StatusStopPending     ServiceStatus = 3
	StatusRunning         ServiceStatus = 4
	StatusContinuePending ServiceStatus = 5
	StatusPausePending    ServiceStatus = 6
	StatusPaused          ServiceStatus = 7
)

func (s ServiceStatus) String() string {
	switch s {
	case StatusStopped:
		return "Stopped"
	case StatusStartPending:
		return "Start Pending"
	case StatusStopPending:
		return "Stop Pending"
	case StatusRunning:
		return "Running"
	case StatusContinuePending:
		return "Continue Pending"
	case StatusPausePending:
		return "Pause Pending"
	case StatusPaused:
		return "Paused"
	default:
		return fmt.Sprintf("Unknown (%d)", s)
	}
}

// ServiceConfig carries the registration metadata written to the SCM
// when the Unveil service is installed.
type ServiceConfig struct {
	// DisplayName is shown in the Services panel.
	DisplayName string

	// Description is the longer text shown in the service properties.
	Description string

	// StartType is one of the StartType constants.
	StartType uint32
}

// SCManagerInterface abstracts the SCM connection so the manager can be
// tested without Windows API calls.
type SCManagerInterface interface {
	OpenService(name string) (ServiceInterface, error)
	CreateService(name, exePath string, config ServiceConfig) (ServiceInterface, error)
	Close() error
}

// ServiceInterface abstracts a single service handle.
type ServiceInterface interface {
	Start() error
	Stop() error
	Delete() error
	Status() (ServiceStatus, error)
	Close() error
}

// ServiceManager provides the install/uninstall/start/stop/status
// operations the unveil CLI exposes as service subcommands.
type ServiceManager struct {
	scm SCManagerInterface
}

// NewServiceManager wraps an open SCM connection. The caller keeps
// ownership of the connection and closes it after use.
func NewServiceManager(scm SCManagerInterface) *ServiceManager {
	return &ServiceManager{scm: scm}
}

// Install registers the service under serviceName, pointing the SCM at
// exePath with the given configuration. Returns ErrServiceExists when
// the name is already registered.
func (m *ServiceManager) Install(serviceName, exePath string, cfg ServiceConfig) error {
	svc, err := m.scm.CreateService(serviceName, exePath, cfg)
	if err != nil {
		return err
	}
	return svc.Close()
}

// Uninstall stops the service if it is running and removes its
// registration. Returns ErrServiceNotFound when it does not exist.
func (m *ServiceManager) Uninstall(serviceName string) error {
	svc, err := m.scm.OpenService(serviceName)
	if err != nil {
		return err
	}
	defer svc.Close()

	status, err := svc.Status()
	if err != nil {
		return err
	}
	if status == StatusRunning {
		if err := svc.Stop(); err != nil {
			return err
		}
	}

	return svc.Delete()
}

// Start launches the service. Returns ErrServiceAlreadyRunning when it
// is already up.
func (m *ServiceManager) Start(serviceName string) error {
	svc, err := m.scm.OpenService(serviceName)
	if err != nil {
		return err
	}
	defer svc.Close()

	status, err := svc.Status()
	if err != nil {
		return err
	}
	if status == StatusRunning {
		return ErrServiceAlreadyRunning
	}

	return svc.Start()
}

// Stop sends the service a stop control. Returns ErrServiceNotRunning
// when it is already stopped.
func (m *ServiceManager) Stop(serviceName string) error {
	svc, err := m.scm.OpenService(serviceName)
	if err != nil {
		return err
	}
	defer svc.Close()

	status, err := svc.Status()
	if err != nil {
		return err
	}
	if status == StatusStopped {
		return ErrServiceNotRunning
	}

	return svc.Stop()
}

// Status queries the service's current state.
func (m *ServiceManager) Status(serviceName string) (ServiceStatus, error) {
	svc, err := m.scm.OpenService(serviceName)
	if err != nil {
		return 0, err
	}
	defer svc.Close()

	return svc.Status()
}
