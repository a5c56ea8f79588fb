// Package ui provides the Bubble Tea TUI for the arbitrage bot.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fd1az/triarb-bot/pkg/ui/components"
)

// StartupStep represents a step in the startup process.
type StartupStep struct {
	Name   string
	Status string // "pending", "connecting", "connected", "done", "failed"
}

// Phase represents the current UI phase.
type Phase string

const (
	PhaseWelcome   Phase = "welcome"
	PhaseStartup   Phase = "startup"
	PhaseDashboard Phase = "dashboard"
)

// WelcomeDuration is how long the welcome screen shows before auto-advancing.
const WelcomeDuration = 2 * time.Second

var startupOrder = []string{"config", "exchange", "prices", "storage"}

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	prices        *components.PricesComponent
	opportunities *components.OpportunitiesComponent
	executions    *components.ExecutionsComponent
	stats         *components.StatsComponent
	connections   *components.StatusComponent

	keys     KeyMap
	help     help.Model
	showHelp bool

	phase        Phase
	welcomeStart time.Time
	dryRun       bool

	quitting   bool
	frozen     bool
	width      int
	height     int
	lastUpdate time.Time
	errors     []ErrorEntry
	logs       []string

	startupSteps map[string]*StartupStep
	startupTime  time.Time

	scanCount    int64
	activityFeed []string
	lastScanTime time.Time
}

// New creates a new TUI model.
func New(dryRun bool) Model {
	now := time.Now()
	return Model{
		prices:        components.NewPricesComponent(),
		opportunities: components.NewOpportunitiesComponent(200, 8),
		executions:    components.NewExecutionsComponent(4),
		stats:         components.NewStatsComponent(),
		connections:   components.NewStatusComponent(),
		keys:          DefaultKeyMap(),
		help:          help.New(),
		phase:         PhaseWelcome,
		welcomeStart:  now,
		dryRun:        dryRun,
		logs:          make([]string, 0, 5),
		errors:        make([]ErrorEntry, 0, 3),
		activityFeed:  make([]string, 0, 6),
		startupSteps: map[string]*StartupStep{
			"config":   {Name: "Loading configuration", Status: "pending"},
			"exchange": {Name: "Connecting to Binance", Status: "pending"},
			"prices":   {Name: "Starting price feed", Status: "pending"},
			"storage":  {Name: "Loading history and risk state", Status: "pending"},
		},
		startupTime: now,
	}
}

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// tickCmd returns a command that sends a tick every 100ms for smooth animations.
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

func (m Model) startModules() Model {
	m.phase = PhaseStartup
	m.startupTime = time.Now()
	// Send() cannot be used from within Update
	if OnStartModules != nil {
		go OnStartModules()
	}
	return m
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		if m.phase == PhaseWelcome {
			return m.startModules(), tickCmd()
		}
		switch {
		case key.Matches(msg, m.keys.Clear):
			m.opportunities.Clear()
		case key.Matches(msg, m.keys.Pause):
			m.frozen = !m.frozen
		case key.Matches(msg, m.keys.Up):
			m.opportunities.ScrollUp()
		case key.Matches(msg, m.keys.Down):
			m.opportunities.ScrollDown()
		case key.Matches(msg, m.keys.ClearErrors):
			m.errors = m.errors[:0]
		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			m.help.ShowAll = m.showHelp
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case TickMsg:
		if m.phase == PhaseWelcome && time.Since(m.welcomeStart) >= WelcomeDuration {
			m = m.startModules()
		}
		return m, tickCmd()

	case ScanMsg:
		m.scanCount = msg.Number
		m.lastScanTime = time.Now()
		m.lastUpdate = m.lastScanTime
		if m.phase == PhaseStartup {
			m.phase = PhaseDashboard
		}
		if m.frozen {
			return m, nil
		}
		m.prices.Update(msg.Prices, msg.Source, msg.At)
		rows := opportunityRows(msg)
		for i := len(rows) - 1; i >= 0; i-- {
			m.opportunities.Add(rows[i])
		}
		m.activityFeed = addActivity(m.activityFeed, activityLine(msg))

	case ExecutionMsg:
		if msg.Result == nil {
			return m, nil
		}
		m.executions.Add(executionRow(msg.Result))
		m.activityFeed = addActivity(m.activityFeed, fmt.Sprintf("execution %s: %s %s",
			msg.Result.TriangleKey, msg.Result.State, msg.Result.RealizedProfit.StringFixed(4)))
		m.lastUpdate = time.Now()

	case StatusMsg:
		m.stats.Update(msg.Stats)
		m.lastUpdate = time.Now()

	case ConnectionStatusMsg:
		m.connections.Update(components.ConnectionStatus{
			Name:       msg.Name,
			Connected:  msg.Connected,
			Latency:    msg.Latency,
			Detail:     msg.Detail,
			LastUpdate: time.Now(),
		})
		m.lastUpdate = time.Now()

	case ErrorMsg:
		m.logs = addLog(m.logs, "error", msg.Error.Error())
		m.errors = append(m.errors, ErrorEntry{
			Message:   msg.Error.Error(),
			Timestamp: time.Now(),
		})
		if len(m.errors) > 3 {
			m.errors = m.errors[len(m.errors)-3:]
		}

	case LogMsg:
		m.logs = addLog(m.logs, msg.Level, msg.Message)

	case StartupMsg:
		if step, ok := m.startupSteps[msg.Step]; ok {
			step.Status = msg.Status
		}
		if msg.Message != "" {
			m.logs = addLog(m.logs, "info", msg.Message)
		}
		if m.phase == PhaseStartup && m.startupComplete() {
			m.phase = PhaseDashboard
		}
	}

	return m, nil
}

func (m Model) startupComplete() bool {
	for _, step := range m.startupSteps {
		if step.Status != "connected" && step.Status != "done" {
			return false
		}
	}
	return true
}

// addLog adds a log message and returns the updated slice (keeps last 5).
func addLog(logs []string, level, message string) []string {
	timestamp := time.Now().Format("15:04:05")
	logs = append(logs, fmt.Sprintf("[%s] %s: %s", timestamp, level, message))
	if len(logs) > 5 {
		logs = logs[len(logs)-5:]
	}
	return logs
}

// addActivity adds an activity message and returns the updated slice (keeps last 6).
func addActivity(feed []string, message string) []string {
	timestamp := time.Now().Format("15:04:05")
	feed = append(feed, fmt.Sprintf("[%s] %s", timestamp, message))
	if len(feed) > 6 {
		feed = feed[len(feed)-6:]
	}
	return feed
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}

	switch m.phase {
	case PhaseWelcome:
		return m.renderWelcomeScreen()
	case PhaseStartup:
		return m.renderStartupScreen()
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render(" △ Triangular Arbitrage Bot "))
	b.WriteString(" ")
	if m.dryRun {
		b.WriteString(DryRunBadge.Render("DRY RUN"))
	} else {
		b.WriteString(LiveBadge.Render("LIVE"))
	}
	b.WriteString("\n\n")

	b.WriteString(m.renderStatusBar())
	b.WriteString("\n\n")

	leftCol := m.prices.View() + "\n\n" + m.renderActivityFeed()
	rightCol := m.opportunities.View() + "\n" + m.executions.View()

	if m.width > 110 {
		left := BoxStyle.Width(m.width*2/5 - 2).Render(leftCol)
		right := BoxStyle.Width(m.width*3/5 - 2).Render(rightCol)
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	} else {
		width := max(m.width-4, 40)
		b.WriteString(BoxStyle.Width(width).Render(leftCol))
		b.WriteString("\n")
		b.WriteString(BoxStyle.Width(width).Render(rightCol))
	}
	b.WriteString("\n")
	b.WriteString(BoxStyle.Render(m.stats.View()))
	b.WriteString("\n\n")

	if len(m.errors) > 0 {
		b.WriteString(NegativeValue.Bold(true).Render("ERRORS"))
		b.WriteString(MutedValue.Render(" (e: clear)"))
		b.WriteString("\n")
		for _, err := range m.errors {
			ago := time.Since(err.Timestamp).Round(time.Second)
			b.WriteString(NegativeValue.Render(fmt.Sprintf("  • %s ", err.Message)))
			b.WriteString(MutedValue.Render(fmt.Sprintf("(%s ago)", ago)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.frozen {
		b.WriteString(WarningValue.Render("⏸ FROZEN"))
		b.WriteString(" • ")
	}
	b.WriteString(HelpStyle.Render(m.help.View(m.keys)))

	return b.String()
}

func (m Model) renderActivityFeed() string {
	var sb strings.Builder
	sb.WriteString(HeaderStyle.Render("LIVE ACTIVITY"))
	sb.WriteString("\n\n")

	if len(m.activityFeed) == 0 {
		sb.WriteString(MutedValue.Render("  Waiting for the first scan..."))
		return sb.String()
	}
	for _, activity := range m.activityFeed {
		if strings.Contains(activity, "execution ") {
			sb.WriteString(InfoValue.Render("  " + activity))
		} else {
			sb.WriteString(MutedValue.Render("  " + activity))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) renderWelcomeScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	goldStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorWarning)
	greenStyle := lipgloss.NewStyle().Foreground(ColorSecondary)

	elapsed := time.Since(m.welcomeStart)
	dots := strings.Repeat(".", int(elapsed.Milliseconds()/300)%4)

	var sb strings.Builder
	sb.WriteString("\n\n\n\n")

	logo := `
   ████████╗██████╗ ██╗ █████╗ ██████╗ ██████╗
   ╚══██╔══╝██╔══██╗██║██╔══██╗██╔══██╗██╔══██╗
      ██║   ██████╔╝██║███████║██████╔╝██████╔╝
      ██║   ██╔══██╗██║██╔══██║██╔══██╗██╔══██╗
      ██║   ██║  ██║██║██║  ██║██║  ██║██████╔╝
      ╚═╝   ╚═╝  ╚═╝╚═╝╚═╝  ╚═╝╚═╝  ╚═╝╚═════╝
`
	sb.WriteString(titleStyle.Render(logo))
	sb.WriteString("\n")
	sb.WriteString(MutedValue.Render("        T R I A N G U L A R   A R B I T R A G E"))
	sb.WriteString("\n\n\n")
	sb.WriteString(goldStyle.Render("             USDT → BTC → ETH → USDT"))
	sb.WriteString("\n\n\n")
	sb.WriteString(greenStyle.Render(fmt.Sprintf("                  Initializing%s", dots)))
	sb.WriteString("\n\n")
	sb.WriteString(MutedValue.Render("            Press any key to skip, or wait..."))
	sb.WriteString("\n")

	return sb.String()
}

func (m Model) renderStartupScreen() string {
	successStyle := lipgloss.NewStyle().Foreground(ColorSecondary)
	connectingStyle := lipgloss.NewStyle().Foreground(ColorWarning)
	failedStyle := lipgloss.NewStyle().Foreground(ColorDanger)

	var sb strings.Builder
	sb.WriteString("\n\n")
	sb.WriteString(HeaderStyle.Render("  △ Triangular Arbitrage Bot"))
	sb.WriteString("\n\n")
	sb.WriteString(lipgloss.NewStyle().Bold(true).Render("  Starting up..."))
	sb.WriteString("\n\n")

	spinners := []string{"◐", "◓", "◑", "◒"}
	for _, k := range startupOrder {
		step := m.startupSteps[k]

		var icon, statusText string
		var style lipgloss.Style
		switch step.Status {
		case "connected", "done":
			icon, statusText, style = "✓", "Ready", successStyle
		case "connecting":
			icon = spinners[int(time.Since(m.startupTime).Milliseconds()/200)%len(spinners)]
			statusText, style = "Connecting...", connectingStyle
		case "failed":
			icon, statusText, style = "✗", "Failed", failedStyle
		default:
			icon, statusText, style = "○", "Pending", MutedValue
		}

		sb.WriteString(fmt.Sprintf("  %s %s %s\n",
			style.Render(icon),
			MutedValue.Render(step.Name),
			style.Render(statusText),
		))
	}

	sb.WriteString("\n")
	sb.WriteString(MutedValue.Render(fmt.Sprintf("  Elapsed: %s", time.Since(m.startupTime).Round(time.Second))))
	sb.WriteString("\n\n")
	for _, l := range m.logs {
		sb.WriteString(MutedValue.Render("  " + l))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) renderStatusBar() string {
	var parts []string

	if time.Since(m.lastScanTime) < 500*time.Millisecond {
		spinners := []string{"⟳", "◐", "◓", "◑", "◒"}
		idx := int(time.Now().UnixMilli()/100) % len(spinners)
		parts = append(parts, PositiveValue.Bold(true).Render(spinners[idx]+" Scanning"))
	}
	if m.scanCount > 0 {
		parts = append(parts, PositiveValue.Render(fmt.Sprintf("Scans: %d", m.scanCount)))
	}
	parts = append(parts, m.connections.View())

	if !m.lastUpdate.IsZero() {
		ago := time.Since(m.lastUpdate).Round(time.Second)
		parts = append(parts, MutedValue.Render(fmt.Sprintf("Updated: %s ago", ago)))
	}
	return strings.Join(parts, "  │  ")
}

// Program holds the Bubble Tea program instance for external access.
var Program *tea.Program

// OnStartModules is called once the welcome screen completes.
var OnStartModules func()

// Send sends a message to the running program.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
}
