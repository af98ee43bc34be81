//go:build windows

package service

import (
	"fmt"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"
)

// windowsSCManager is the production SCManagerInterface over mgr.Mgr.
type windowsSCManager struct {
	mgr *mgr.Mgr
}

// windowsService is the production ServiceInterface over a service
// handle.
type windowsService struct {
	svc *mgr.Service
}

// OpenSCManager connects to the Windows Service Control Manager. The
// caller closes the returned handle.
func OpenSCManager() (SCManagerInterface, error) {
	m, err := mgr.Connect()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to service control manager: %w", err)
	}
	return &windowsSCManager{mgr: m}, nil
}

func (m *windowsSCManager) OpenService(name string) (ServiceInterface, error) {
	s, err := m.mgr.OpenService(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open service %q: %w", name, ErrServiceNotFound)
	}
	return &windowsService{svc: s}, nil
}

// CreateService registers the service. The SCM call itself is atomic:
// on failure no partial registration is left behind, so the existence
// probe beforehand is only needed to map the error to ErrServiceExists.
func (m *windowsSCManager) CreateService(name, exePath string, config ServiceConfig) (ServiceInterface, error) {
	existing, err := m.mgr.OpenService(name)
	if err == nil {
		existing.Close()
		return nil, ErrServiceExists
	}

	s, err := m.mgr.CreateService(name, exePath, mgr.Config{
		DisplayName:  config.DisplayName,
		Description:  config.Description,
		StartType:    config.StartType,
		ServiceType:  windows.SERVICE_WIN32_OWN_PROCESS,
		ErrorControl: windows.SERVICE_ERROR_NORMAL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create service %q: %w", name, err)
	}
	return &windowsService{svc: s}, nil
}

func (m *windowsSCManager) Close() error {
	return m.mgr.Disconnect()
}

func (s *windowsService) Start() error {
	if err := s.svc.Start(); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	return nil
}

func (s *windowsService) Stop() error {
	if _, err := s.svc.Control(svc.Stop); err != nil {
		return fmt.Errorf("failed to stop service: %w", err)
	}
	return nil
}

func (s *windowsService) Delete() error {
	if err := s.svc.Delete(); err != nil {
		return fmt.Errorf("failed to delete service: %w", err)
	}
	return nil
}

func (s *windowsService) Status() (ServiceStatus, error) {
	status, err := s.svc.Query()
	if err != nil {
		return 0, fmt.Errorf("failed to query service status: %w", err)
	}
	return ServiceStatus(status.State), nil
}

func (s *windowsService) Close() error {
	return s.svc.Close()
}
