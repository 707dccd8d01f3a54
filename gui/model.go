// Package gui drives the interactive terminal session. The bubbletea update
// loop is the single owner of the session aggregate: pipeline calls run as
// background commands and only ever come back as messages, so no lock guards
// session state.
package gui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aniterm/aniterm/history"
	"github.com/aniterm/aniterm/logger"
	"github.com/aniterm/aniterm/session"
	"github.com/aniterm/aniterm/types"
)

// Resolver is the slice of the resolution pipeline the UI needs.
type Resolver interface {
	Search(ctx context.Context, query string) ([]types.SearchResult, error)
	Episodes(ctx context.Context, result types.SearchResult) ([]types.EpisodeRef, error)
	Resolve(ctx context.Context, ep types.EpisodeRef) (*types.Stream, error)
}

// Launcher starts the external player.
type Launcher interface {
	Launch(stream *types.Stream, title string) (int, error)
}

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Background(lipgloss.Color("#5f5fd7")).Padding(0, 1).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Model is the UI controller. Rendering is a pure function of the session
// snapshot plus the cursor state local to the list components.
type Model struct {
	sess     *session.Session
	resolver Resolver
	launcher Launcher

	useHistory bool

	input    textinput.Model
	results  choicesModel
	episodes choicesModel
	spin     spinner.Model

	// cancel aborts the context of the in-flight pipeline call, if any.
	// Superseded calls that complete anyway are dropped by the session's
	// generation check; cancelling just stops wasting the socket.
	cancel context.CancelFunc

	status string
}

func NewModel(resolver Resolver, launcher Launcher, useHistory bool) Model {
	ti := textinput.New()
	ti.Placeholder = "one piece"
	ti.Prompt = "search > "
	ti.CharLimit = 120
	ti.Width = 48
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return Model{
		sess:       session.New(),
		resolver:   resolver,
		launcher:   launcher,
		useHistory: useHistory,
		input:      ti,
		results:    newChoices("results"),
		episodes:   newChoices("episodes"),
		spin:       sp,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spin.Tick)
}

// begin replaces the in-flight request context. Leaving a loading stage or
// starting a new request cancels the previous one.
func (m *Model) begin() context.Context {
	if m.cancel != nil {
		m.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	return ctx
}

func (m *Model) abort() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m Model) searchCmd(ctx context.Context, gen uint64, query string) tea.Cmd {
	return func() tea.Msg {
		results, err := m.resolver.Search(ctx, query)
		return searchDoneMsg{gen: gen, results: results, err: err}
	}
}

func (m Model) episodesCmd(ctx context.Context, gen uint64, result types.SearchResult) tea.Cmd {
	return func() tea.Msg {
		episodes, err := m.resolver.Episodes(ctx, result)
		return episodesDoneMsg{gen: gen, episodes: episodes, err: err}
	}
}

func (m Model) resolveCmd(ctx context.Context, gen uint64, ep types.EpisodeRef) tea.Cmd {
	return func() tea.Msg {
		stream, err := m.resolver.Resolve(ctx, ep)
		return streamDoneMsg{gen: gen, stream: stream, err: err}
	}
}

func (m Model) launchCmd(stream *types.Stream, title string) tea.Cmd {
	return func() tea.Msg {
		pid, err := m.launcher.Launch(stream, title)
		return launchDoneMsg{pid: pid, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case searchDoneMsg:
		if err := m.sess.ApplySearch(msg.gen, msg.results, msg.err); err != nil {
			logger.Debug("dropping superseded search result")
			return m, nil
		}
		if m.sess.Stage() == session.Results {
			m.results = m.results.setItems(formatResults(msg.results))
		}
		return m, nil

	case episodesDoneMsg:
		if err := m.sess.ApplyEpisodes(msg.gen, msg.episodes, msg.err); err != nil {
			logger.Debug("dropping superseded episode list")
			return m, nil
		}
		if m.sess.EpisodesLoaded() {
			m.episodes = m.episodes.setItems(formatEpisodes(msg.episodes))
			m.episodes = m.episodes.setCursor(m.lastWatched(msg.episodes))
		}
		return m, nil

	case streamDoneMsg:
		if err := m.sess.ApplyStream(msg.gen, msg.stream, msg.err); err != nil {
			logger.Debug("dropping superseded stream descriptor")
			return m, nil
		}
		if m.sess.Stage() != session.ReadyToPlay {
			return m, nil
		}
		m.rememberWatched()
		return m, m.launchCmd(m.sess.Stream(), m.playbackTitle())

	case launchDoneMsg:
		if msg.err != nil {
			// Fatal to the playback attempt only.
			_ = m.sess.LaunchFailed(msg.err)
			m.status = errorStyle.Render(fmt.Sprintf("player failed: %v", msg.err))
			return m, nil
		}
		m.status = statusStyle.Render(fmt.Sprintf("player running (pid %d)", msg.pid))
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.abort()
		return m, tea.Quit
	}

	switch m.sess.Stage() {
	case session.Idle:
		if msg.Type == tea.KeyEnter {
			query := strings.TrimSpace(m.input.Value())
			if query == "" {
				return m, nil
			}
			gen, err := m.sess.StartSearch(query)
			if err != nil {
				return m, nil
			}
			m.status = ""
			return m, m.searchCmd(m.begin(), gen, query)
		}
		if msg.String() == "ctrl+d" {
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case session.Searching:
		if msg.Type == tea.KeyEsc {
			m.abort()
			_ = m.sess.Back()
		}
		return m, nil

	case session.Results:
		switch msg.Type {
		case tea.KeyEnter:
			idx := m.results.selectedIndex()
			if idx < 0 {
				return m, nil
			}
			gen, err := m.sess.SelectResult(idx)
			if err != nil {
				return m, nil
			}
			return m, m.episodesCmd(m.begin(), gen, *m.sess.Selected())
		case tea.KeyEsc:
			_ = m.sess.Back()
			return m, nil
		}
		var cmd tea.Cmd
		m.results, cmd = m.results.update(msg)
		return m, cmd

	case session.EpisodeList:
		if !m.sess.EpisodesLoaded() {
			if msg.Type == tea.KeyEsc {
				m.abort()
				_ = m.sess.Back()
			}
			return m, nil
		}
		switch msg.Type {
		case tea.KeyEnter:
			idx := m.episodes.selectedIndex()
			if idx < 0 {
				return m, nil
			}
			gen, err := m.sess.SelectEpisode(idx)
			if err != nil {
				return m, nil
			}
			return m, m.resolveCmd(m.begin(), gen, *m.sess.Episode())
		case tea.KeyEsc:
			_ = m.sess.Back()
			return m, nil
		}
		var cmd tea.Cmd
		m.episodes, cmd = m.episodes.update(msg)
		return m, cmd

	case session.Resolving:
		if msg.Type == tea.KeyEsc {
			m.abort()
			_ = m.sess.Back()
		}
		return m, nil

	case session.ReadyToPlay:
		switch {
		case msg.Type == tea.KeyEsc, msg.Type == tea.KeyEnter:
			_ = m.sess.Back()
		case msg.String() == "q":
			return m, tea.Quit
		}
		return m, nil

	case session.Error:
		switch {
		case msg.String() == "r", msg.Type == tea.KeyEnter:
			return m.retry()
		case msg.Type == tea.KeyEsc:
			_ = m.sess.Back()
		}
		return m, nil
	}

	return m, nil
}

// retry re-issues the request that failed, with the same inputs.
func (m Model) retry() (tea.Model, tea.Cmd) {
	op, gen, err := m.sess.Retry()
	if err != nil {
		return m, nil
	}
	switch op {
	case session.OpSearch:
		return m, m.searchCmd(m.begin(), gen, m.sess.Query())
	case session.OpEpisodes:
		return m, m.episodesCmd(m.begin(), gen, *m.sess.Selected())
	case session.OpResolve:
		return m, m.resolveCmd(m.begin(), gen, *m.sess.Episode())
	}
	return m, nil
}

func (m Model) playbackTitle() string {
	title := "aniterm"
	if sel := m.sess.Selected(); sel != nil {
		title = sel.Title
	}
	if ep := m.sess.Episode(); ep != nil {
		title = fmt.Sprintf("%s - episode %s", title, ep.Label)
	}
	return title
}

// lastWatched returns the index of the episode recorded in history, or 0.
func (m Model) lastWatched(episodes []types.EpisodeRef) int {
	if !m.useHistory {
		return 0
	}
	sel := m.sess.Selected()
	if sel == nil {
		return 0
	}
	entry := history.Lookup(sel.Source, sel.ID)
	if entry == nil {
		return 0
	}
	for i, ep := range episodes {
		if ep.Label == entry.Episode {
			return i
		}
	}
	return 0
}

func (m Model) rememberWatched() {
	if !m.useHistory {
		return
	}
	sel, ep := m.sess.Selected(), m.sess.Episode()
	if sel == nil || ep == nil {
		return
	}
	if err := history.Save(history.Entry{
		Source:  sel.Source,
		AnimeID: sel.ID,
		Title:   sel.Title,
		Episode: ep.Label,
	}); err != nil {
		logger.Debug("saving history failed", "err", err)
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("aniterm"))
	b.WriteString("\n\n")

	switch m.sess.Stage() {
	case session.Idle:
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter: search · ctrl+c: quit"))

	case session.Searching:
		b.WriteString(m.spin.View())
		b.WriteString(fmt.Sprintf(" searching for %q...\n\n", m.sess.Query()))
		b.WriteString(helpStyle.Render("esc: cancel"))

	case session.Results:
		b.WriteString(m.results.view())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter: select · esc: back · type to filter"))

	case session.EpisodeList:
		if !m.sess.EpisodesLoaded() {
			b.WriteString(m.spin.View())
			b.WriteString(" loading episodes...\n\n")
			b.WriteString(helpStyle.Render("esc: cancel"))
			break
		}
		b.WriteString(m.episodes.view())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter: play · esc: back · type to filter"))

	case session.Resolving:
		b.WriteString(m.spin.View())
		b.WriteString(fmt.Sprintf(" resolving %s...\n\n", m.sess.Episode()))
		b.WriteString(helpStyle.Render("esc: cancel"))

	case session.ReadyToPlay:
		b.WriteString(statusStyle.Render("handed off to player"))
		b.WriteString("\n")
		if m.status != "" {
			b.WriteString(m.status)
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("esc: back to episodes · q: quit"))

	case session.Error:
		b.WriteString(errorStyle.Render(describeError(m.sess.Err())))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("r: retry · esc: back"))
	}

	if m.status != "" && m.sess.Stage() != session.ReadyToPlay {
		b.WriteString("\n")
		b.WriteString(m.status)
	}
	b.WriteString("\n")
	return b.String()
}

// describeError renders the error taxonomy in user terms.
func describeError(err error) string {
	if err == nil {
		return "unknown error"
	}
	var (
		te *types.TransportError
		pe *types.ParseError
	)
	switch {
	case errors.Is(err, types.ErrNotFound):
		return "nothing found: the title or episode does not exist on the configured sources"
	case errors.As(err, &pe):
		return "source unavailable: the backend answered with something unreadable"
	case errors.As(err, &te):
		return fmt.Sprintf("network trouble (%s), retry or check your connection", te.Kind)
	default:
		return err.Error()
	}
}

func formatResults(results []types.SearchResult) []string {
	items := make([]string, len(results))
	for i, r := range results {
		suffix := "episodes"
		if r.Episodes == 1 {
			suffix = "episode"
		}
		items[i] = fmt.Sprintf("%s · %d %s [%s]", r.Title, r.Episodes, suffix, r.Source)
	}
	return items
}

func formatEpisodes(episodes []types.EpisodeRef) []string {
	items := make([]string, len(episodes))
	for i, ep := range episodes {
		items[i] = ep.String()
	}
	return items
}
