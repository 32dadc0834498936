// Package idle reports whether the user's session is idle, so that
// unattended runs do not pop up notifications nobody will see.
package idle

import (
	"context"
	"fmt"
	"io"

	"github.com/godbus/dbus/v5"
)

const (
	consoleKitService = "org.freedesktop.ConsoleKit"
	consoleKitManager = "/org/freedesktop/ConsoleKit/Manager"
	consoleKitIface   = "org.freedesktop.ConsoleKit.Manager"
)

// Checker reports the session idle state.
type Checker interface {
	IsIdle(ctx context.Context) (bool, error)
}

// Disabled never reports idle.
type Disabled struct{}

// IsIdle always returns false.
func (Disabled) IsIdle(context.Context) (bool, error) {
	return false, nil
}

// caller is the part of dbus.BusObject the checker uses.
type caller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// ConsoleKit asks ConsoleKit on the system bus for the system idle hint.
type ConsoleKit struct {
	connect func(ctx context.Context) (caller, io.Closer, error)
}

// NewConsoleKit creates a ConsoleKit idle checker. The bus is only contacted
// on IsIdle.
func NewConsoleKit() *ConsoleKit {
	return &ConsoleKit{connect: connectSystemBus}
}

func connectSystemBus(ctx context.Context) (caller, io.Closer, error) {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return nil, nil, err
	}
	return conn.Object(consoleKitService, consoleKitManager), conn, nil
}

// IsIdle returns ConsoleKit's GetSystemIdleHint.
func (c *ConsoleKit) IsIdle(ctx context.Context) (bool, error) {
	obj, closer, err := c.connect(ctx)
	if err != nil {
		return false, fmt.Errorf("connect to system bus: %w", err)
	}
	defer closer.Close()

	var idle bool
	if err := obj.CallWithContext(ctx, consoleKitIface+".GetSystemIdleHint", 0).Store(&idle); err != nil {
		return false, fmt.Errorf("query idle hint: %w", err)
	}
	return idle, nil
}
