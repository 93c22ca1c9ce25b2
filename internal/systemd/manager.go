// Package systemd integrates with the service manager: readiness and
// watchdog notifications over sd_notify, and unit control over D-Bus.
package systemd

import (
	"context"
	"errors"

	"github.com/coreos/go-systemd/v22/dbus"
)

// DefaultUnit is the unit kioskcam is installed as.
const DefaultUnit = "kioskcam.service"

// ErrNoManager is returned when no D-Bus connection could be made.
var ErrNoManager = errors.New("systemd manager not available")

// UnitStatus is the subset of unit properties shown to operators.
type UnitStatus struct {
	Unit        string
	ActiveState string
	SubState    string
}

// Manager controls a single systemd unit via D-Bus.
type Manager struct {
	conn *dbus.Conn
	unit string
}

// NewManager connects to the system bus, or the user bus when user is set,
// to control unit.
func NewManager(ctx context.Context, unit string, user bool) (*Manager, error) {
	var (
		conn *dbus.Conn
		err  error
	)
	if user {
		conn, err = dbus.NewUserConnectionContext(ctx)
	} else {
		conn, err = dbus.NewSystemConnectionContext(ctx)
	}
	if err != nil {
		return nil, err
	}
	if unit == "" {
		unit = DefaultUnit
	}
	return &Manager{conn: conn, unit: unit}, nil
}

// Unit returns the controlled unit name.
func (m *Manager) Unit() string {
	if m == nil {
		return DefaultUnit
	}
	return m.unit
}

// Status returns the unit's active and sub state.
func (m *Manager) Status(ctx context.Context) (UnitStatus, error) {
	if m == nil || m.conn == nil {
		return UnitStatus{}, ErrNoManager
	}
	props, err := m.conn.GetUnitPropertiesContext(ctx, m.unit)
	if err != nil {
		return UnitStatus{}, err
	}
	st := UnitStatus{Unit: m.unit}
	st.ActiveState, _ = props["ActiveState"].(string)
	st.SubState, _ = props["SubState"].(string)
	return st, nil
}

// Restart restarts the unit in replace mode. Restarting our own unit ends
// this process; the job is queued before that happens.
func (m *Manager) Restart(ctx context.Context) error {
	if m == nil || m.conn == nil {
		return ErrNoManager
	}
	_, err := m.conn.RestartUnitContext(ctx, m.unit, "replace", nil)
	return err
}

// Close closes the D-Bus connection.
func (m *Manager) Close() {
	if m != nil && m.conn != nil {
		m.conn.Close()
	}
}
