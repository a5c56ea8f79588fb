// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// ConnectionStatus represents a connection's status.
type ConnectionStatus struct {
	Name       string
	Connected  bool
	Latency    time.Duration
	Detail     string
	LastUpdate time.Time
}

// StatusComponent renders connection status.
type StatusComponent struct {
	connections []ConnectionStatus
}

// NewStatusComponent creates a new status component.
func NewStatusComponent() *StatusComponent {
	return &StatusComponent{
		connections: make([]ConnectionStatus, 0),
	}
}

// Update updates a connection's status.
func (s *StatusComponent) Update(status ConnectionStatus) {
	for i, conn := range s.connections {
		if conn.Name == status.Name {
			s.connections[i] = status
			return
		}
	}
	s.connections = append(s.connections, status)
}

// Get returns the named connection.
func (s *StatusComponent) Get(name string) (ConnectionStatus, bool) {
	for _, conn := range s.connections {
		if conn.Name == name {
			return conn, true
		}
	}
	return ConnectionStatus{}, false
}

// View renders the connections on one line.
func (s *StatusComponent) View() string {
	if len(s.connections) == 0 {
		return "No connections"
	}

	connected := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	disconnected := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	parts := make([]string, 0, len(s.connections))
	for _, conn := range s.connections {
		if !conn.Connected {
			parts = append(parts, disconnected.Render("○ "+conn.Name+" (disconnected)"))
			continue
		}
		label := conn.Name
		switch {
		case conn.Latency > 0:
			label = fmt.Sprintf("%s (%dms)", conn.Name, conn.Latency.Milliseconds())
		case conn.Detail != "":
			label = fmt.Sprintf("%s (%s)", conn.Name, conn.Detail)
		}
		parts = append(parts, connected.Render("● "+label))
	}
	return strings.Join(parts, "  │  ")
}
