package cli

import (
	"fmt"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/dbcoach/dbcoach-go/internal/capture"
	"github.com/dbcoach/dbcoach-go/internal/replay"
	"github.com/spf13/cobra"
)

var (
	replaySpeed  int
	replayChars  int
	replayByChar bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <session-id>",
	Short: "Replay a captured session as if it were streaming live",
	Long: `Replay reproduces a captured generation session chunk by chunk on a
fixed tick, so the original streaming can be watched again at any speed.

Examples:
  dbcoach replay 1a2b3c4d
  dbcoach replay 1a2b3c4d --speed 4
  dbcoach replay 1a2b3c4d --chars 48`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().IntVarP(&replaySpeed, "speed", "s", 1, "steps advanced per tick")
	replayCmd.Flags().BoolVar(&replayByChar, "by-char", false, "replay character by character instead of chunk by chunk")
	replayCmd.Flags().IntVarP(&replayChars, "chars", "c", 0, "characters per step in character mode (0 = configured default)")
}

// Theme holds the color scheme for terminal output.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// tickMsg triggers refreshing the replay display.
type tickMsg time.Time

// replayModel is the bubbletea model for watching a replay.
type replayModel struct {
	engine   *replay.Engine
	data     *capture.SessionData
	progress progress.Model
	theme    Theme
	tick     time.Duration
	done     bool
	quitting bool
}

func newReplayModel(engine *replay.Engine, data *capture.SessionData, tick time.Duration) replayModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)
	return replayModel{
		engine:   engine,
		data:     data,
		progress: prog,
		theme:    defaultTheme,
		tick:     tick,
	}
}

// Init starts the engine and the refresh ticks.
func (m replayModel) Init() tea.Cmd {
	m.engine.Start()
	return tea.Batch(
		m.tickCmd(),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m replayModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// Stop resolves every task to its full content before we quit.
			m.engine.Stop()
			m.quitting = true
			m.done = true
			return m, tea.Quit
		}

	case tickMsg:
		if !m.engine.Running() {
			m.done = true
			return m, tea.Quit
		}
		return m, m.tickCmd()

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the replay display.
func (m replayModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m replayModel) renderContent() string {
	displayed := m.engine.Displayed()

	var output string
	for _, task := range m.data.Session.Tasks {
		header := fmt.Sprintf("%s (%s)", task.Title, task.Agent)
		output += m.theme.statusStyle().Render(header) + "\n"
		output += displayed[task.ID] + "\n\n"
	}

	done, total := m.engine.Progress()
	var pct float64
	if total > 0 {
		pct = float64(done) / float64(total)
	}
	output += m.progress.ViewAs(pct) + fmt.Sprintf(" %d/%d steps\n", done, total)

	if m.done {
		if m.quitting {
			output += m.theme.hintStyle().Render("Stopped, full content shown.") + "\n"
		} else {
			output += m.theme.completedStyle().Render("✓ Replay complete") + "\n"
		}
	} else {
		output += m.theme.hintStyle().Render("Press q to skip to the end") + "\n"
	}
	return output
}

// tickCmd returns a command that sends a tick after the refresh interval.
func (m replayModel) tickCmd() tea.Cmd {
	return tea.Tick(m.tick, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func runReplay(cmd *cobra.Command, args []string) error {
	data := store.GetSessionData(cmd.Context(), args[0])
	if data == nil {
		return fmt.Errorf("session %s not found", args[0])
	}
	if len(data.Chunks) == 0 {
		return fmt.Errorf("session %s has no captured chunks", args[0])
	}

	opts := replay.Options{
		Tick:     cfg.ReplayTick,
		Speed:    replaySpeed,
		CharRate: cfg.ReplayCharRate,
	}
	if replayByChar || replayChars > 0 {
		opts.Mode = replay.ModeCharacter
		if replayChars > 0 {
			opts.CharRate = replayChars
		}
	}

	engine := replay.NewEngine(data.Session.ID, data.Chunks, opts, nil, nil)
	model := newReplayModel(engine, data, cfg.ReplayTick)

	if _, err := tea.NewProgram(model).Run(); err != nil {
		return fmt.Errorf("replay display: %w", err)
	}
	return nil
}
