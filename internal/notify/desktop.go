package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	notificationsService   = "org.freedesktop.Notifications"
	notificationsPath      = "/org/freedesktop/Notifications"
	notificationsInterface = "org.freedesktop.Notifications"
)

// caller is the part of dbus.BusObject the desktop notifier uses.
type caller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// ServerInfo describes the running notification server.
type ServerInfo struct {
	Name        string
	Vendor      string
	Version     string
	SpecVersion string
}

// Desktop shows notifications through the freedesktop.org notification
// service on the session bus (notify-osd, dunst, GNOME Shell, ...).
type Desktop struct {
	appName string
	timeout time.Duration

	mu     sync.Mutex
	obj    caller
	closer io.Closer
	server ServerInfo

	// connect is replaced in tests
	connect func(ctx context.Context) (caller, io.Closer, error)
}

// NewDesktop creates a desktop notifier. Notifications auto-dismiss after
// timeout; zero lets the server decide.
func NewDesktop(appName string, timeout time.Duration) *Desktop {
	return &Desktop{
		appName: appName,
		timeout: timeout,
		connect: connectSessionBus,
	}
}

func connectSessionBus(ctx context.Context) (caller, io.Closer, error) {
	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return nil, nil, err
	}
	return conn.Object(notificationsService, notificationsPath), conn, nil
}

// Init connects to the session bus and asks the notification server who it is.
func (d *Desktop) Init(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	obj, closer, err := d.connect(ctx)
	if err != nil {
		return fmt.Errorf("connect to session bus: %w", err)
	}

	var info ServerInfo
	err = obj.CallWithContext(ctx, notificationsInterface+".GetServerInformation", 0).
		Store(&info.Name, &info.Vendor, &info.Version, &info.SpecVersion)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return fmt.Errorf("no notification server: %w", err)
	}

	d.obj = obj
	d.closer = closer
	d.server = info
	return nil
}

// Server returns what the notification server reported during Init.
func (d *Desktop) Server() ServerInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.server
}

// Notify shows a notification bubble.
func (d *Desktop) Notify(ctx context.Context, title, message string) error {
	d.mu.Lock()
	obj := d.obj
	d.mu.Unlock()

	if obj == nil {
		return fmt.Errorf("desktop notifier not initialized")
	}

	expire := int32(-1)
	if d.timeout > 0 {
		expire = int32(d.timeout / time.Millisecond)
	}

	call := obj.CallWithContext(ctx, notificationsInterface+".Notify", 0,
		d.appName,                 // app_name
		uint32(0),                 // replaces_id
		"",                        // app_icon
		title,                     // summary
		message,                   // body
		[]string{},                // actions
		map[string]dbus.Variant{}, // hints
		expire,                    // expire_timeout, ms
	)
	if call.Err != nil {
		return fmt.Errorf("show notification: %w", call.Err)
	}
	return nil
}

// Close disconnects from the session bus.
func (d *Desktop) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.obj = nil
	if d.closer == nil {
		return nil
	}
	err := d.closer.Close()
	d.closer = nil
	return err
}
