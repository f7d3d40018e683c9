// Package tui is the interactive terminal front end: collect a classification,
// preview and insert it, then browse the query catalog with charts.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"artifactcore/internal/catalog"
	"artifactcore/internal/chart"
	"artifactcore/internal/core"
	"artifactcore/pkg/domain"
)

// Pipeline is the service surface the terminal UI drives.
type Pipeline interface {
	Collect(ctx context.Context, req core.CollectRequest) (core.CollectResult, error)
	Preview(n int) domain.Table
	Insert(ctx context.Context) (domain.LoadResult, error)
	Queries() []catalog.Query
	RunQuery(ctx context.Context, id string) (core.QueryResult, error)
	Stats() core.Stats
}

// Options seeds a Model.
type Options struct {
	APIKey     string
	Target     int
	Categories []string
}

type focus int

const (
	focusMain focus = iota
	focusKey
)

// headerLines is the number of rows View spends outside the results pane.
const headerLines = 9

type status struct {
	message string
	isError bool
}

// Model is the bubbletea model.
type Model struct {
	ctx        context.Context
	svc        Pipeline
	keyInput   textinput.Model
	focus      focus
	categories []string
	category   int
	target     int
	queries    []catalog.Query
	query      int

	busy         bool
	actionName   string
	actionCancel context.CancelFunc
	progress     float64
	progressChan chan progressMsg

	status  status
	results viewport.Model
	width   int
	height  int
}

// NewModel builds the initial model. The API key field starts focused when
// opts.APIKey is empty.
func NewModel(ctx context.Context, svc Pipeline, opts Options) Model {
	if ctx == nil {
		ctx = context.Background()
	}
	ti := textinput.New()
	ti.Placeholder = "Harvard Art Museums API key"
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '•'
	ti.CharLimit = 128
	ti.SetValue(opts.APIKey)

	categories := opts.Categories
	if len(categories) == 0 {
		categories = domain.Classifications
	}
	target := opts.Target
	if target <= 0 {
		target = domain.DefaultTargetRecords
	}
	m := Model{
		ctx:        ctx,
		svc:        svc,
		keyInput:   ti,
		categories: categories,
		target:     target,
		queries:    svc.Queries(),
		results:    viewport.New(80, 12),
	}
	if opts.APIKey == "" {
		m.focus = focusKey
		m.keyInput.Focus()
	}
	m.status = status{message: "press c to collect " + m.Category()}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	if m.focus == focusKey {
		return textinput.Blink
	}
	return nil
}

// Category returns the selected classification.
func (m Model) Category() string { return m.categories[m.category] }

// SelectedQuery returns the catalog entry enter would run.
func (m Model) SelectedQuery() (catalog.Query, bool) {
	if len(m.queries) == 0 {
		return catalog.Query{}, false
	}
	return m.queries[m.query], true
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.results.Width = typed.Width
		m.results.Height = max(typed.Height-headerLines, 3)
		return m, nil
	case progressMsg:
		m.progress = float64(typed)
		return m, listenProgressCmd(m.progressChan)
	case progressDoneMsg:
		if typed.ch == m.progressChan {
			m.progressChan = nil
		}
		return m, nil
	case collectDoneMsg:
		m = m.finishAction()
		if typed.err != nil {
			msg := fmt.Sprintf("collect failed: %v", typed.err)
			if typed.result.Count > 0 {
				msg = fmt.Sprintf("collect stopped with %d %s records kept: %v", typed.result.Count, typed.result.Category, typed.err)
			}
			m.status = status{message: msg, isError: true}
			return m, nil
		}
		m.progress = 1
		msg := fmt.Sprintf("collected %d %s records", typed.result.Count, typed.result.Category)
		if typed.result.Archive != nil {
			msg += " (archived " + typed.result.Archive.Key + ")"
		}
		m.status = status{message: msg + "; press s to preview or i to insert"}
		return m, nil
	case insertDoneMsg:
		m = m.finishAction()
		if typed.err != nil {
			m.status = status{message: fmt.Sprintf("insert failed: %v", typed.err), isError: true}
			return m, nil
		}
		r := typed.result
		msg := fmt.Sprintf("inserted %d metadata, %d media, %d color rows", r.Metadata, r.Media, r.Colors)
		if r.Dropped > 0 {
			msg += fmt.Sprintf(" (%d rows without key skipped)", r.Dropped)
		}
		m.status = status{message: msg}
		return m, nil
	case queryDoneMsg:
		m = m.finishAction()
		if typed.err != nil {
			m.status = status{message: fmt.Sprintf("query failed: %v", typed.err), isError: true}
			m.setResults("")
			return m, nil
		}
		m.status = status{message: fmt.Sprintf("query %s: %d rows", typed.result.Query.ID, typed.result.Table.Len())}
		m.setResults(m.renderResult(typed.result))
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(typed)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		m = m.cancelAction()
		return m, tea.Quit
	}
	if m.focus == focusKey {
		switch key {
		case "enter", "tab", "esc":
			m.focus = focusMain
			m.keyInput.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.keyInput, cmd = m.keyInput.Update(msg)
		return m, cmd
	}
	switch key {
	case "q":
		m = m.cancelAction()
		return m, tea.Quit
	case "tab":
		m.focus = focusKey
		return m, m.keyInput.Focus()
	case "left", "h":
		if !m.busy {
			m.category = (m.category + len(m.categories) - 1) % len(m.categories)
		}
		return m, nil
	case "right", "l":
		if !m.busy {
			m.category = (m.category + 1) % len(m.categories)
		}
		return m, nil
	case "[":
		if len(m.queries) > 0 {
			m.query = (m.query + len(m.queries) - 1) % len(m.queries)
		}
		return m, nil
	case "]":
		if len(m.queries) > 0 {
			m.query = (m.query + 1) % len(m.queries)
		}
		return m, nil
	case "c":
		return m.startCollect()
	case "s":
		m.showPreview()
		return m, nil
	case "i":
		return m.startAction("inserting", insertCmd)
	case "enter":
		q, ok := m.SelectedQuery()
		if !ok {
			return m, nil
		}
		return m.startAction("running query "+q.ID, func(ctx context.Context, svc Pipeline) tea.Cmd {
			return queryCmd(ctx, svc, q.ID)
		})
	}
	var cmd tea.Cmd
	m.results, cmd = m.results.Update(msg)
	return m, cmd
}

func (m Model) startCollect() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	ctx, cancel := context.WithCancel(m.ctx)
	ch := make(chan progressMsg)
	m.busy = true
	m.actionName = "collecting " + m.Category()
	m.actionCancel = cancel
	m.progress = 0
	m.progressChan = ch
	req := core.CollectRequest{
		APIKey:   strings.TrimSpace(m.keyInput.Value()),
		Category: m.Category(),
		Target:   m.target,
	}
	return m, tea.Batch(collectCmd(ctx, m.svc, req, ch), listenProgressCmd(ch))
}

func (m Model) startAction(name string, build func(context.Context, Pipeline) tea.Cmd) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	ctx, cancel := context.WithCancel(m.ctx)
	m.busy = true
	m.actionName = name
	m.actionCancel = cancel
	return m, build(ctx, m.svc)
}

func (m Model) finishAction() Model {
	if m.actionCancel != nil {
		m.actionCancel()
	}
	m.busy = false
	m.actionName = ""
	m.actionCancel = nil
	return m
}

func (m Model) cancelAction() Model {
	if m.actionCancel != nil {
		m.actionCancel()
		m.actionCancel = nil
	}
	return m
}

func (m *Model) showPreview() {
	preview := m.svc.Preview(core.PreviewRows)
	if preview.Empty() {
		m.status = status{message: "nothing collected yet", isError: true}
		return
	}
	st := m.svc.Stats()
	m.status = status{message: fmt.Sprintf("first %d of %d %s records", preview.Len(), st.Collected, st.Category)}
	m.setResults(renderTable(preview))
}

func (m *Model) setResults(content string) {
	m.results.SetContent(content)
	m.results.GotoTop()
}

func (m Model) renderResult(res core.QueryResult) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(res.Query.Title))
	b.WriteString("\n")
	b.WriteString(renderTable(res.Table))
	if bar := chart.BuildBar(res.Table); bar != nil {
		b.WriteString("\n\n")
		b.WriteString(renderChart(bar, m.width))
	}
	return b.String()
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Harvard artifacts"))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("API key  ") + m.keyInput.View())
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("Category ") + valueStyle.Render("◀ "+m.Category()+" ▶"))
	b.WriteString(labelStyle.Render(fmt.Sprintf("  target %d", m.target)))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("Query    ") + m.queryLine())
	b.WriteString("\n")
	st := m.svc.Stats()
	b.WriteString(labelStyle.Render(fmt.Sprintf("Session  %s: %d records collected", orDash(st.Category), st.Collected)))
	b.WriteString("\n")
	switch {
	case m.busy && m.progressChan != nil:
		b.WriteString(m.actionName + " " + renderProgress(m.progress, 30))
	case m.busy:
		b.WriteString(m.actionName + "…")
	case m.status.isError:
		b.WriteString(errorStyle.Render(m.status.message))
	default:
		b.WriteString(successStyle.Render(m.status.message))
	}
	b.WriteString("\n\n")
	b.WriteString(m.results.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("tab key • ←/→ category • c collect • s show • i insert • [/] query • enter run • q quit"))
	return b.String()
}

func (m Model) queryLine() string {
	q, ok := m.SelectedQuery()
	if !ok {
		return labelStyle.Render("(catalog empty)")
	}
	return valueStyle.Render(fmt.Sprintf("%s/%d ", q.ID, len(m.queries))) + q.Title
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Start runs the terminal UI until the user quits or ctx ends.
func Start(ctx context.Context, svc Pipeline, opts Options) error {
	if svc == nil {
		return errors.New("tui: pipeline required")
	}
	program := tea.NewProgram(NewModel(ctx, svc, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
