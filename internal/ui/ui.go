package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"todosync/internal/config"
	"todosync/internal/todo"
)

type mode int

const (
	modeList mode = iota
	modeAdd
	modeEdit
)

// Results of remote calls, applied to the view on the UI loop.
type (
	listedMsg struct {
		items []todo.Todo
		err   error
	}
	createdMsg struct {
		todo todo.Todo
		err  error
	}
	updatedMsg struct {
		id   string
		todo todo.Todo
		err  error
	}
	deletedMsg struct {
		id  string
		err error
	}
)

type Model struct {
	view       *todo.View
	keys       config.Keymap
	timeout    time.Duration
	cursor     int
	mode       mode
	editID     string
	input      textinput.Model
	spinner    spinner.Model
	status     string
	confirmDel bool
	pendingDel *todo.Todo
}

func Run(view *todo.View, cfg config.Config) error {
	program := tea.NewProgram(New(view, cfg), tea.WithAltScreen())
	_, err := program.Run()
	return err
}

func New(view *todo.View, cfg config.Config) Model {
	ti := textinput.New()
	ti.Placeholder = "Add a new task..."
	ti.CharLimit = 256
	ti.Width = 40

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = accentStyle

	return Model{
		view:    view,
		keys:    cfg.Keys,
		timeout: cfg.Timeout(),
		input:   ti,
		spinner: sp,
		mode:    modeList,
		status: fmt.Sprintf("Press '%s' to add, %s to toggle, '%s' to edit, '%s' to delete.",
			cfg.Keys.Add, keyLabel(cfg.Keys.Toggle), cfg.Keys.Edit, cfg.Keys.Delete),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.confirmDel {
			return m.updateDeleteConfirm(msg.String())
		}
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.input.Width = max(msg.Width-10, 10)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case listedMsg:
		m.view.ApplyList(msg.items, msg.err)
		m.cursor = clampCursor(m.cursor, len(m.view.Items()))
	case createdMsg:
		m.view.ApplyCreate(msg.todo, msg.err)
		if m.mode == modeList {
			m.input.SetValue(m.view.Draft())
		}
		if msg.err == nil {
			m.status = "Added task"
		}
	case updatedMsg:
		m.view.ApplyUpdate(msg.id, msg.todo, msg.err)
		if msg.err == nil {
			m.status = "Updated task"
		}
	case deletedMsg:
		m.view.ApplyDelete(msg.id, msg.err)
		m.cursor = clampCursor(m.cursor, len(m.view.Items()))
		if msg.err == nil {
			m.status = "Deleted task"
			if m.mode == modeEdit && m.editID == msg.id {
				m.leaveEdit()
			}
		}
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch m.mode {
	case modeAdd:
		return m.updateAddMode(key, msg)
	case modeEdit:
		return m.updateEditMode(key, msg)
	}
	return m.updateListMode(key)
}

func (m Model) updateAddMode(key string, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key {
	case m.keys.Cancel:
		m.mode = modeList
		m.input.Blur()
		m.status = "Cancelled"
		return m, nil
	case m.keys.Confirm:
		text := m.input.Value()
		m.view.SetDraft(text)
		if !todo.CanCreate(text) {
			m.status = "Title cannot be empty"
			return m, nil
		}
		m.input.Blur()
		m.mode = modeList
		m.status = "Adding..."
		return m, m.createCmd(text)
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		m.view.SetDraft(m.input.Value())
		return m, cmd
	}
}

func (m Model) updateEditMode(key string, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key {
	case m.keys.Cancel:
		m.view.CancelEdit()
		m.leaveEdit()
		m.status = "Edit cancelled"
		return m, nil
	case m.keys.Confirm:
		// The view's edit target is cleared by any successful update, so the
		// record being edited is tracked here.
		id := m.editID
		text := m.input.Value()
		m.leaveEdit()
		m.status = "Saving..."
		return m, m.updateCmd(id, todo.TextPatch(text))
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

func (m *Model) leaveEdit() {
	m.mode = modeList
	m.editID = ""
	m.input.Blur()
	m.input.SetValue(m.view.Draft())
}

func (m Model) updateListMode(key string) (tea.Model, tea.Cmd) {
	items := m.view.Items()
	switch key {
	case "ctrl+c", m.keys.Quit:
		return m, tea.Quit
	case m.keys.Down, "down":
		if len(items) == 0 {
			return m, nil
		}
		m.cursor = clampCursor(m.cursor+1, len(items))
	case m.keys.Up, "up":
		if m.cursor > 0 {
			m.cursor = clampCursor(m.cursor-1, len(items))
		}
	case m.keys.Refresh:
		m.view.BeginList()
		return m, m.listCmd()
	case m.keys.Add:
		m.mode = modeAdd
		m.input.Placeholder = "Add a new task..."
		m.input.SetValue(m.view.Draft())
		m.input.CursorEnd()
		m.status = "Add mode: type a title and press Enter"
		cmd := m.input.Focus()
		return m, cmd
	case m.keys.Toggle:
		if len(items) == 0 {
			return m, nil
		}
		id := items[m.cursor].ID
		p, ok := m.view.TogglePatch(id)
		if !ok {
			return m, nil
		}
		return m, m.updateCmd(id, p)
	case m.keys.Edit:
		if len(items) == 0 {
			m.status = "No tasks to edit"
			return m, nil
		}
		t := items[m.cursor]
		m.view.StartEdit(t.ID)
		m.editID = t.ID
		m.mode = modeEdit
		m.input.Placeholder = "Edit task..."
		m.input.SetValue(t.Text)
		m.input.CursorEnd()
		m.status = "Edit mode: change the title and press Enter"
		cmd := m.input.Focus()
		return m, cmd
	case m.keys.Delete:
		if len(items) == 0 {
			return m, nil
		}
		t := items[m.cursor]
		m.confirmDel = true
		m.pendingDel = &t
		m.status = fmt.Sprintf("Delete \"%s\"? y/n", t.Text)
	}
	return m, nil
}

func (m Model) updateDeleteConfirm(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "n", "N", m.keys.Cancel:
		m.status = "Delete cancelled"
		m.confirmDel = false
		m.pendingDel = nil
		return m, nil
	case "y", "Y":
		m.confirmDel = false
		if m.pendingDel == nil {
			m.status = "Nothing to delete"
			return m, nil
		}
		id := m.pendingDel.ID
		m.pendingDel = nil
		m.status = "Deleting..."
		return m, m.deleteCmd(id)
	default:
		return m, nil
	}
}

func (m Model) listCmd() tea.Cmd {
	store, timeout := m.view.Store(), m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		items, err := store.List(ctx)
		return listedMsg{items: items, err: err}
	}
}

func (m Model) createCmd(text string) tea.Cmd {
	store, timeout := m.view.Store(), m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		t, err := store.Create(ctx, text, false)
		return createdMsg{todo: t, err: err}
	}
}

func (m Model) updateCmd(id string, p todo.Patch) tea.Cmd {
	store, timeout := m.view.Store(), m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		t, err := store.Update(ctx, id, p)
		return updatedMsg{id: id, todo: t, err: err}
	}
}

func (m Model) deleteCmd(id string) tea.Cmd {
	store, timeout := m.view.Store(), m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return deletedMsg{id: id, err: store.Delete(ctx, id)}
	}
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	switch {
	case m.view.Loading():
		b.WriteString(m.spinner.View() + " Loading...")
	case len(m.view.Items()) == 0:
		b.WriteString(mutedStyle.Render("No todos found."))
	default:
		b.WriteString(m.renderTaskList())
	}

	if m.mode == modeAdd || m.mode == modeEdit {
		title := "Add new item"
		if m.mode == modeEdit {
			title = "Edit item"
		}
		b.WriteString("\n")
		b.WriteString(panelStyle.Render(title + "\n" + m.input.View()))
	}

	b.WriteString("\n\n")
	b.WriteString(m.status)
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(renderHelp(m.keys)))

	return panelStyle.Render(b.String())
}

func (m Model) renderHeader() string {
	done, pending := m.view.Counts()
	return fmt.Sprintf("%s   %s %d  %s %d  %s %d",
		titleStyle.Render("My Todo List"),
		successStyle.Render("✔"), done,
		pendingStyle.Render("•"), pending,
		accentStyle.Render("Total"), done+pending,
	)
}

func (m Model) renderTaskList() string {
	var b strings.Builder
	editing := ""
	if m.mode == modeEdit {
		editing = m.editID
	}
	for i, t := range m.view.Items() {
		cursor := "  "
		if m.cursor == i && m.mode == modeList {
			cursor = selectedStyle.Render("> ")
		}

		marker := pendingStyle.Render(dot)
		text := t.Text
		if t.Completed {
			marker = successStyle.Render(dot)
			text = doneStyle.Render(text)
		}
		if t.ID == editing {
			text += " " + accentStyle.Render(editMarker)
		}

		b.WriteString(fmt.Sprintf("%s%s %s", cursor, marker, text))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderHelp(k config.Keymap) string {
	return fmt.Sprintf("%s/%s move • %s add • %s toggle • %s edit • %s delete • %s refresh • %s quit",
		k.Up, k.Down, k.Add, keyLabel(k.Toggle), k.Edit, k.Delete, k.Refresh, k.Quit)
}

func keyLabel(k string) string {
	if k == " " {
		return "space"
	}
	return k
}

func clampCursor(cur, n int) int {
	if n <= 0 {
		return 0
	}
	if cur < 0 {
		return 0
	}
	if cur >= n {
		return n - 1
	}
	return cur
}
