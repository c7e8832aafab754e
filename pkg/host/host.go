// Package host performs the process-level actions offered on the SETTINGS form.
package host

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	logindDest = "org.freedesktop.login1"
	logindPath = dbus.ObjectPath("/org/freedesktop/login1")

	methodReboot   = "org.freedesktop.login1.Manager.Reboot"
	methodPowerOff = "org.freedesktop.login1.Manager.PowerOff"
)

// caller is the subset of a D-Bus object used here.
type caller interface {
	Call(method string, flags dbus.Flags, args ...any) *dbus.Call
}

// Logind asks systemd-logind over the system bus, connecting on first use.
type Logind struct {
	log *zap.Logger

	mu  sync.Mutex
	obj caller
}

// NewLogind creates a logind controller.
func NewLogind(log *zap.Logger) *Logind {
	if log == nil {
		log = zap.NewNop()
	}
	return &Logind{log: log.Named("host")}
}

// Reboot restarts the machine.
func (l *Logind) Reboot() error {
	return l.call(methodReboot)
}

// Shutdown powers the machine off.
func (l *Logind) Shutdown() error {
	return l.call(methodPowerOff)
}

func (l *Logind) call(method string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.obj == nil {
		// The system bus connection is shared by the process and never closed.
		conn, err := dbus.SystemBus()
		if err != nil {
			return fmt.Errorf("failed to connect to system bus: %w", err)
		}
		l.obj = conn.Object(logindDest, logindPath)
	}

	l.log.Info("calling logind", zap.String("method", method))
	// The argument disables interactive polkit authentication.
	if err := l.obj.Call(method, 0, false).Err; err != nil {
		return fmt.Errorf("%s failed: %w", method, err)
	}
	return nil
}

// Nop logs the request and does nothing. It stands in when running off the vehicle.
type Nop struct {
	Log *zap.Logger
}

// Reboot logs the request.
func (n Nop) Reboot() error {
	n.logger().Warn("reboot requested, ignored")
	return nil
}

// Shutdown logs the request.
func (n Nop) Shutdown() error {
	n.logger().Warn("shutdown requested, ignored")
	return nil
}

func (n Nop) logger() *zap.Logger {
	if n.Log == nil {
		return zap.NewNop()
	}
	return n.Log
}
