package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	cli3 "github.com/urfave/cli/v3"
)

// watchPollInterval is how often the dashboard re-queries ping and
// diagnostics from the daemon.
const watchPollInterval = 2 * time.Second

// buildWatchCommand builds a live status dashboard for one workspace's
// daemon (spec.md's SPEC_FULL §4.12): snapshot idle state plus a running
// diagnostics summary, refreshed on an interval. Falls back to a plain
// line-per-poll printer when stdout is not a terminal, matching the
// corpus's isInteractiveTerminal gate.
func buildWatchCommand() *cli3.Command {
	return &cli3.Command{
		Name:  "watch",
		Usage: "Show a live status dashboard for this workspace's daemon",
		Action: func(ctx context.Context, cmd *cli3.Command) error {
			ws, err := resolveWorkspace(cmd)
			if err != nil {
				return err
			}
			if !isatty.IsTerminal(os.Stdout.Fd()) {
				return watchPlain(ctx, ws)
			}
			m := newWatchModel(ws)
			p := tea.NewProgram(m)
			_, err = p.Run()
			return err
		},
	}
}

// watchPlain is the non-interactive fallback: one line per poll, forever
// until the process is interrupted.
func watchPlain(ctx context.Context, workspace string) error {
	for {
		status, err := pollWatchStatus(ctx, workspace)
		if err != nil {
			fmt.Fprintf(os.Stderr, "poll failed: %v\n", err)
		} else {
			fmt.Println(status.line())
		}
		time.Sleep(watchPollInterval)
	}
}

type watchStatus struct {
	ok                 bool
	idleTimeoutMinutes int
	idleSeconds        int64
	errorCount         int
	warningCount       int
	infoCount          int
	err                error
}

func (s watchStatus) line() string {
	if s.err != nil {
		return fmt.Sprintf("daemon unreachable: %v", s.err)
	}
	return fmt.Sprintf("idle=%ds/%dm  errors=%d warnings=%d info=%d",
		s.idleSeconds, s.idleTimeoutMinutes, s.errorCount, s.warningCount, s.infoCount)
}

func pollWatchStatus(ctx context.Context, workspace string) (watchStatus, error) {
	var out watchStatus

	pingRaw, err := query(ctx, workspace, "ping", struct{}{})
	if err != nil {
		out.err = err
		return out, err
	}
	var ping struct {
		IdleTimeoutMinutes int   `json:"idle_timeout_minutes"`
		IdleSeconds        int64 `json:"idle_seconds"`
	}
	if err := json.Unmarshal(pingRaw, &ping); err != nil {
		out.err = err
		return out, err
	}
	out.idleTimeoutMinutes = ping.IdleTimeoutMinutes
	out.idleSeconds = ping.IdleSeconds

	diagRaw, err := query(ctx, workspace, "diagnostics", map[string]interface{}{
		"include_warnings": true,
		"include_info":     true,
	})
	if err != nil {
		out.err = err
		return out, err
	}
	var diag struct {
		ErrorCount   int `json:"error_count"`
		WarningCount int `json:"warning_count"`
		InfoCount    int `json:"info_count"`
	}
	if err := json.Unmarshal(diagRaw, &diag); err != nil {
		out.err = err
		return out, err
	}
	out.ok = true
	out.errorCount = diag.ErrorCount
	out.warningCount = diag.WarningCount
	out.infoCount = diag.InfoCount
	return out, nil
}

type tickMsg time.Time

type statusMsg watchStatus

type watchModel struct {
	workspace string
	status    watchStatus
	width     int
}

func newWatchModel(workspace string) watchModel {
	return watchModel{workspace: workspace}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(pollCmd(m.workspace), tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(watchPollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func pollCmd(workspace string) tea.Cmd {
	return func() tea.Msg {
		status, _ := pollWatchStatus(context.Background(), workspace)
		return statusMsg(status)
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
		return m, nil
	case tickMsg:
		return m, tea.Batch(pollCmd(m.workspace), tickCmd())
	case statusMsg:
		m.status = watchStatus(msg)
		return m, nil
	}
	return m, nil
}

var (
	watchTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	watchOkStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	watchErrStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	watchDimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

func (m watchModel) View() string {
	title := watchTitleStyle.Render(fmt.Sprintf("roslynq watch — %s", m.workspace))
	if m.status.err != nil {
		return fmt.Sprintf("%s\n\n%s\n\n%s\n", title,
			watchErrStyle.Render(fmt.Sprintf("daemon unreachable: %v", m.status.err)),
			watchDimStyle.Render("q to quit"))
	}
	if !m.status.ok {
		return fmt.Sprintf("%s\n\nconnecting...\n\n%s\n", title, watchDimStyle.Render("q to quit"))
	}
	body := fmt.Sprintf(
		"idle timeout: %d min\nidle for:     %d s\n\nerrors:   %d\nwarnings: %d\ninfo:     %d",
		m.status.idleTimeoutMinutes, m.status.idleSeconds,
		m.status.errorCount, m.status.warningCount, m.status.infoCount,
	)
	style := watchOkStyle
	if m.status.errorCount > 0 {
		style = watchErrStyle
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s\n", title, style.Render(body), watchDimStyle.Render("q to quit"))
}
