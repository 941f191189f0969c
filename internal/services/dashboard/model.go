// Package dashboard is a terminal view of live fire alerts. Alerts are kept in
// memory only, newest first, up to a fixed bound.
package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/LeonardoBeccarini/firelinx/internal/model"
	"github.com/LeonardoBeccarini/firelinx/pkg/broker"
)

const DefaultMaxAlerts = 200

type entry struct {
	topic      string
	payload    model.AlertPayload
	receivedAt time.Time
}

// Model is the bubbletea model of the dashboard.
type Model struct {
	topic    string
	table    table.Model
	alerts   []entry
	max      int
	received int
	state    broker.State
	width    int
	height   int
}

func columns() []table.Column {
	return []table.Column{
		{Title: "Received", Width: 8},
		{Title: "Date", Width: 10},
		{Title: "Time", Width: 8},
		{Title: "Type", Width: 4},
		{Title: "Int", Width: 3},
		{Title: "Reporter", Width: 16},
		{Title: "Stn", Width: 4},
		{Title: "Latitude", Width: 14},
		{Title: "Longitude", Width: 15},
		{Title: "Ver", Width: 3},
	}
}

// New builds an empty dashboard for topic. limit <= 0 means DefaultMaxAlerts.
func New(topic string, limit int) Model {
	if limit <= 0 {
		limit = DefaultMaxAlerts
	}
	t := table.New(
		table.WithColumns(columns()),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorBorder).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(colorPrimary).
		Bold(false)
	t.SetStyles(s)

	return Model{topic: topic, table: t, max: limit, state: broker.StateUninitialized}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// titolo, stato, dettaglio e help occupano circa 14 righe
		m.table.SetHeight(max(3, msg.Height-14))
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "c":
			m.alerts = nil
			m.table.SetRows(nil)
			m.table.SetCursor(0)
			return m, nil
		}

	case AlertReceivedMsg:
		m.add(msg)
		return m, nil

	case BrokerStateMsg:
		m.state = broker.State(msg)
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) add(msg AlertReceivedMsg) {
	m.received++
	e := entry{topic: msg.Topic, payload: msg.Alert.Payload, receivedAt: msg.ReceivedAt}
	m.alerts = append([]entry{e}, m.alerts...)
	if len(m.alerts) > m.max {
		m.alerts = m.alerts[:m.max]
	}
	m.table.SetRows(m.rows())
}

func (m Model) rows() []table.Row {
	rows := make([]table.Row, 0, len(m.alerts))
	for _, e := range m.alerts {
		p := e.payload
		rows = append(rows, table.Row{
			e.receivedAt.Format("15:04:05"),
			p.Date,
			p.Time,
			p.FireType,
			p.FireIntensity,
			p.User,
			p.StnID,
			p.Latitude,
			p.Longitude,
			yesNo(p.Verified),
		})
	}
	return rows
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("FireLinx live alerts"))
	b.WriteString("  ")
	b.WriteString(labelStyle.Render("broker "))
	b.WriteString(stateStyle(m.state).Render(m.state.String()))
	b.WriteString("  ")
	b.WriteString(labelStyle.Render("topic "))
	b.WriteString(valueStyle.Render(m.topic))
	b.WriteString("\n")
	b.WriteString(m.summary())
	b.WriteString("\n\n")

	if len(m.alerts) == 0 {
		b.WriteString(mutedStyle.Render("Waiting for fire alerts..."))
		b.WriteString("\n")
	} else {
		b.WriteString(paneStyle.Render(m.table.View()))
		b.WriteString("\n")
		b.WriteString(m.detail())
	}

	b.WriteString(helpStyle.Render("↑/↓ select • c clear • q quit"))
	return b.String()
}

// summary counts the shown alerts per intensity tier.
func (m Model) summary() string {
	counts := map[model.FireIntensity]int{}
	for _, e := range m.alerts {
		counts[model.FireIntensity(e.payload.FireIntensity)]++
	}
	parts := []string{labelStyle.Render(fmt.Sprintf("received %d, showing %d", m.received, len(m.alerts)))}
	for _, i := range []model.FireIntensity{"4", "3", "2", "1"} {
		parts = append(parts, intensityStyle(i).Render(fmt.Sprintf("L%s: %d", i, counts[i])))
	}
	return strings.Join(parts, "  ")
}

func (m Model) detail() string {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.alerts) {
		return ""
	}
	p := m.alerts[idx].payload
	ft := model.FireType(p.FireType)
	fi := model.FireIntensity(p.FireIntensity)

	lines := []string{
		labelStyle.Render("Fire: ") + valueStyle.Render(fmt.Sprintf("Class %s (%s)", p.FireType, ft.Label())) +
			"  " + labelStyle.Render("Intensity: ") + intensityStyle(fi).Render(fmt.Sprintf("Level %s", p.FireIntensity)),
		labelStyle.Render("Reporter: ") + valueStyle.Render(fmt.Sprintf("%s (%s) via %s", p.User, p.UserID, p.StnID)),
		labelStyle.Render("Location: ") + valueStyle.Render(p.Latitude+" "+p.Longitude),
		labelStyle.Render("Reported: ") + valueStyle.Render(p.Date+" "+p.Time),
	}
	return paneStyle.Render(strings.Join(lines, "\n")) + "\n"
}
