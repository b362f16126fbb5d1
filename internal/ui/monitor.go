package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/maxcul/internal/moritz"
	"github.com/muurk/maxcul/internal/transceiver"
)

// MaxLogLines is how many received messages the monitor keeps.
const MaxLogLines = 200

// Messages delivered to the monitor program
type (
	radioMsg struct {
		msg moritz.Incoming
		at  time.Time
	}
	statusMsg  transceiver.Status
	linkErrMsg struct{ err error }
)

// Feed forwards transceiver callbacks to a running monitor program. It
// implements transceiver.Dispatcher and transceiver.StatusListener.
type Feed struct {
	send func(tea.Msg)
	now  func() time.Time
}

// NewFeed creates a feed that delivers to p.
func NewFeed(p *tea.Program) *Feed {
	return &Feed{send: p.Send, now: time.Now}
}

// Dispatch implements transceiver.Dispatcher.
func (f *Feed) Dispatch(msg moritz.Incoming) {
	f.send(radioMsg{msg: msg, at: f.now()})
}

// GatewayStatus implements transceiver.StatusListener.
func (f *Feed) GatewayStatus(s transceiver.Status) {
	f.send(statusMsg(s))
}

// Fail shows a fatal link error. The monitor stays open until the user quits.
func (f *Feed) Fail(err error) {
	f.send(linkErrMsg{err: err})
}

// DeviceInfo names a configured device.
type DeviceInfo struct {
	Name string
	Type string
}

// deviceState is the last known state of one device.
type deviceState struct {
	address  string
	typ      string
	mode     string
	desired  string
	measured string
	valve    string
	flags    []string
	lastSeen time.Time
}

type logLine struct {
	at      time.Time
	summary string
	typ     moritz.MessageType
}

type monitorKeyMap struct {
	Up    key.Binding
	Down  key.Binding
	Clear key.Binding
	Help  key.Binding
	Quit  key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k monitorKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Clear, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k monitorKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Clear, k.Help, k.Quit},
	}
}

// MonitorModel is a live view of the gateway: link state, one row per
// device that was heard from and a log of received messages.
type MonitorModel struct {
	Port    string
	Gateway string

	Width  int
	Height int

	status     transceiver.Status
	haveStatus bool
	err        error

	names   map[string]DeviceInfo
	devices map[string]*deviceState
	log     []logLine

	table   table.Model
	spinner spinner.Model
	help    help.Model
	keys    monitorKeyMap
}

var monitorColumns = []table.Column{
	{Title: "Address", Width: 8},
	{Title: "Name", Width: 14},
	{Title: "Type", Width: 10},
	{Title: "Mode", Width: 10},
	{Title: "Set", Width: 5},
	{Title: "Temp", Width: 5},
	{Title: "Valve", Width: 5},
	{Title: "Seen", Width: 8},
	{Title: "Flags", Width: 12},
}

// NewMonitorModel creates the monitor for the gateway at address on port.
// known maps upper case device addresses to their configured names.
func NewMonitorModel(port, address string, known map[string]DeviceInfo) MonitorModel {
	width, height := GetTerminalSize()

	names := make(map[string]DeviceInfo, len(known))
	for addr, info := range known {
		names[strings.ToUpper(addr)] = info
	}

	t := table.New(
		table.WithColumns(monitorColumns),
		table.WithFocused(true),
		table.WithHeight(8),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(MutedColor).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(TextColor).
		Background(PrimaryColor)
	t.SetStyles(styles)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(PrimaryColor)

	return MonitorModel{
		Port:    port,
		Gateway: strings.ToUpper(address),
		Width:   width,
		Height:  height,
		names:   names,
		devices: make(map[string]*deviceState),
		table:   t,
		spinner: s,
		help:    help.New(),
		keys: monitorKeyMap{
			Up: key.NewBinding(
				key.WithKeys("up", "k"),
				key.WithHelp("↑/k", "up"),
			),
			Down: key.NewBinding(
				key.WithKeys("down", "j"),
				key.WithHelp("↓/j", "down"),
			),
			Clear: key.NewBinding(
				key.WithKeys("c"),
				key.WithHelp("c", "clear log"),
			),
			Help: key.NewBinding(
				key.WithKeys("?"),
				key.WithHelp("?", "help"),
			),
			Quit: key.NewBinding(
				key.WithKeys("q", "ctrl+c"),
				key.WithHelp("q", "quit"),
			),
		},
	}
}

// Init implements tea.Model
func (m MonitorModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model
func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Clear):
			m.log = nil
			return m, nil
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		if m.haveStatus || m.err != nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case statusMsg:
		m.status = transceiver.Status(msg)
		m.haveStatus = true
		return m, nil

	case linkErrMsg:
		m.err = msg.err
		m.status.Online = false
		return m, nil

	case radioMsg:
		m.record(msg.msg, msg.at)
		return m, nil
	}
	return m, nil
}

// record updates the device table and the log with a received message.
func (m *MonitorModel) record(msg moritz.Incoming, at time.Time) {
	h := msg.Header()
	m.log = append(m.log, logLine{at: at, summary: msg.String(), typ: h.Type})
	if len(m.log) > MaxLogLines {
		m.log = m.log[len(m.log)-MaxLogLines:]
	}

	source := strings.ToUpper(h.Source)
	if source == m.Gateway {
		return
	}
	d := m.device(source)
	d.lastSeen = at

	switch v := msg.(type) {
	case *moritz.ThermostatStateMessage:
		d.applySettings(v.Settings)
		if v.HasMeasured {
			d.measured = fmt.Sprintf("%.1f", v.Measured)
		}
	case *moritz.AckMessage:
		if v.HasSettings {
			d.applySettings(v.Settings)
		}
	case *moritz.WallThermostatControlMessage:
		d.desired = fmt.Sprintf("%.1f", v.Desired)
		d.measured = fmt.Sprintf("%.1f", v.Measured)
	case *moritz.SetTemperatureMessage:
		d.mode = v.Mode.String()
		d.desired = fmt.Sprintf("%.1f", v.Desired)
	case *moritz.PairPingMessage:
		d.typ = v.DeviceType.String()
	}
	m.refreshRows()
}

func (m *MonitorModel) device(addr string) *deviceState {
	if d, ok := m.devices[addr]; ok {
		return d
	}
	d := &deviceState{address: addr}
	if info, ok := m.names[addr]; ok {
		d.typ = info.Type
	}
	m.devices[addr] = d
	return d
}

func (d *deviceState) applySettings(s moritz.ThermostatSettings) {
	d.mode = s.Mode.String()
	d.desired = fmt.Sprintf("%.1f", s.Desired)
	d.valve = fmt.Sprintf("%d%%", s.Valve)
	d.flags = d.flags[:0]
	if s.Locked {
		d.flags = append(d.flags, "locked")
	}
	if s.RFError {
		d.flags = append(d.flags, "rf")
	}
	if s.BatteryLow {
		d.flags = append(d.flags, "battery")
	}
}

func (m *MonitorModel) refreshRows() {
	addrs := make([]string, 0, len(m.devices))
	for addr := range m.devices {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	rows := make([]table.Row, 0, len(addrs))
	for _, addr := range addrs {
		d := m.devices[addr]
		rows = append(rows, table.Row{
			addr,
			m.names[addr].Name,
			shortType(d.typ),
			d.mode,
			d.desired,
			d.measured,
			d.valve,
			d.lastSeen.Format("15:04:05"),
			strings.Join(d.flags, ","),
		})
	}
	m.table.SetRows(rows)
}

// Devices returns the number of devices heard from.
func (m MonitorModel) Devices() int {
	return len(m.devices)
}

// View implements tea.Model
func (m MonitorModel) View() string {
	width := m.Width
	if width > MaxContentWidth {
		width = MaxContentWidth
	}
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	var b strings.Builder
	b.WriteString(NewHeader("Gateway Monitor", "maxcul monitor", map[string]string{
		"Port":    m.Port,
		"Gateway": m.Gateway,
		"Status":  m.statusLine(),
	}).SetWidth(width).Render())
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(NewFailureResult("Gateway link lost", m.err, nil).SetWidth(width).Render())
		b.WriteString("\n")
	}

	b.WriteString(SectionTitleStyle.Render(fmt.Sprintf("Devices (%d)", len(m.devices))))
	b.WriteString("\n")
	if len(m.devices) == 0 {
		b.WriteString(EventTimeStyle.Render("  no device heard yet"))
	} else {
		b.WriteString(m.table.View())
	}
	b.WriteString("\n")

	b.WriteString(SectionTitleStyle.Render("Messages"))
	b.WriteString("\n")
	for _, line := range m.visibleLog() {
		b.WriteString(EventTimeStyle.Render(line.at.Format("15:04:05")))
		b.WriteString(" ")
		b.WriteString(EventTypeStyle.Render(fmt.Sprintf("%-22s", line.typ)))
		b.WriteString(" ")
		b.WriteString(truncate(line.summary, width-33))
		b.WriteString("\n")
	}

	b.WriteString(HelpStyle.Render(m.help.View(m.keys)))
	return b.String()
}

func (m MonitorModel) statusLine() string {
	switch {
	case m.err != nil:
		return OfflineStyle.Render(FailureMarker + " failed")
	case !m.haveStatus:
		return m.spinner.View() + " connecting"
	case m.status.Online:
		return OnlineStyle.Render(fmt.Sprintf("%s online (firmware %d)", OnlineMarker, m.status.Version))
	default:
		return OfflineStyle.Render(OnlineMarker + " offline")
	}
}

// visibleLog returns the newest log lines that fit below the table.
func (m MonitorModel) visibleLog() []logLine {
	n := m.Height - 24
	if n < 5 {
		n = 5
	}
	if len(m.log) <= n {
		return m.log
	}
	return m.log[len(m.log)-n:]
}

func shortType(t string) string {
	switch t {
	case "HEATING_THERMOSTAT":
		return "thermo"
	case "HEATING_THERMOSTAT_PLUS":
		return "thermo+"
	case "WALL_MOUNTED_THERMOSTAT":
		return "wall"
	case "SHUTTER_CONTACT":
		return "shutter"
	case "PUSH_BUTTON":
		return "button"
	case "CUBE":
		return "cube"
	}
	return strings.ToLower(t)
}

func truncate(s string, n int) string {
	if n < 10 {
		n = 10
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// RunMonitor runs model until the user quits. feed is called with the
// program's Feed before it starts.
func RunMonitor(model MonitorModel, feed func(*Feed)) error {
	p := tea.NewProgram(model, tea.WithAltScreen())
	feed(NewFeed(p))
	_, err := p.Run()
	return err
}
