package review

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/alwinjoseph/jobquest/internal/model"
)

// Lines per record in the list view (title + subtitle + blank separator).
const recordItemHeight = 3

type viewState int

const (
	viewList viewState = iota
	viewDetail
)

var (
	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	recordTitleStyle = lipgloss.NewStyle().
				Bold(true)

	recordSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	selectedTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("24"))

	selectedSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Background(lipgloss.Color("24"))

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Width(12)

	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				MarginBottom(1)
)

type historyModel struct {
	alert    model.Alert
	records  []model.SeenRecord
	loc      *time.Location
	viewport viewport.Model
	cursor   int
	width    int
	height   int
	ready    bool
	view     viewState
	status   string
}

func (m historyModel) Init() tea.Cmd {
	return nil
}

func (m historyModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// Border (2), header (1), status bar (1).
		m.viewport = viewport.New(msg.Width-2, msg.Height-4)
		m.ready = true
		m.syncViewport()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.view == viewDetail {
				m.view = viewList
				m.syncViewport()
			}
			return m, nil
		case "up", "k":
			if m.view == viewList {
				if m.cursor > 0 {
					m.cursor--
					m.syncViewport()
				}
				return m, nil
			}
		case "down", "j":
			if m.view == viewList {
				if m.cursor < len(m.records)-1 {
					m.cursor++
					m.syncViewport()
				}
				return m, nil
			}
		case "enter":
			if m.view == viewList && len(m.records) > 0 {
				m.view = viewDetail
				m.syncViewport()
			}
			return m, nil
		case "o":
			if len(m.records) > 0 {
				link := m.records[m.cursor].Link
				if err := openURL(link); err != nil {
					m.status = "open failed: " + err.Error()
				} else {
					m.status = "opened " + link
				}
			}
			return m, nil
		}

		// Forward remaining keys (scrolling in detail view, pgup/pgdn) to
		// the viewport.
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

// syncViewport re-renders the active view's content and keeps the cursor
// visible in list mode.
func (m *historyModel) syncViewport() {
	if !m.ready {
		return
	}
	if m.view == viewDetail {
		m.viewport.SetContent(m.renderDetail())
		m.viewport.GotoTop()
		return
	}
	m.viewport.SetContent(m.renderList())
	top := m.cursor * recordItemHeight
	if top < m.viewport.YOffset {
		m.viewport.SetYOffset(top)
	} else if bottom := top + recordItemHeight; bottom > m.viewport.YOffset+m.viewport.Height {
		m.viewport.SetYOffset(bottom - m.viewport.Height)
	}
}

func (m historyModel) renderList() string {
	if len(m.records) == 0 {
		return "\n  No postings sent for this alert yet."
	}

	var b strings.Builder
	for i, r := range m.records {
		subtitle := fmt.Sprintf("%s · sent %s", r.Company, r.SentAt.In(m.loc).Format("Jan 2 15:04"))
		if i == m.cursor {
			b.WriteString(selectedTitleStyle.Render("> "+r.Title) + "\n")
			b.WriteString(selectedSubtitleStyle.Render("  "+subtitle) + "\n\n")
		} else {
			b.WriteString(recordTitleStyle.Render("  "+r.Title) + "\n")
			b.WriteString(recordSubtitleStyle.Render("  "+subtitle) + "\n\n")
		}
	}
	return b.String()
}

func (m historyModel) renderDetail() string {
	r := m.records[m.cursor]

	var b strings.Builder
	b.WriteString(detailTitleStyle.Render(r.Title) + "\n")
	row := func(label, value string) {
		b.WriteString(detailLabelStyle.Render(label) + value + "\n")
	}
	row("Company", r.Company)
	row("Identity", r.Identity)
	row("Sent", r.SentAt.In(m.loc).Format(time.RFC1123))
	row("Link", r.Link)
	return b.String()
}

func (m historyModel) View() string {
	if !m.ready {
		return "loading..."
	}

	header := headerStyle.Render(fmt.Sprintf("Alert #%d %q — %d sent", m.alert.ID, m.alert.Keywords, len(m.records)))

	hint := "↑/↓ navigate  enter detail  o open link  q quit"
	if m.view == viewDetail {
		hint = "↑/↓ scroll  esc back  o open link  q quit"
	}
	status := hint
	if m.status != "" {
		status = m.status + "  |  " + hint
	}
	bar := statusBarStyle.Width(m.width).Render(status)

	body := borderStyle.Width(m.width - 2).Render(m.viewport.View())
	return header + "\n" + body + "\n" + bar
}

// openURL opens link in the system browser.
func openURL(link string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", link).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", link).Start()
	default:
		return exec.Command("xdg-open", link).Start()
	}
}

// RunHistory shows the sent-history browser for one alert. Timestamps are
// rendered in loc.
func RunHistory(alert model.Alert, records []model.SeenRecord, loc *time.Location) error {
	m := historyModel{
		alert:   alert,
		records: records,
		loc:     loc,
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
