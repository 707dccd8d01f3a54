package gui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const listHeight = 18

var (
	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// choicesModel is a filterable scrolling list. The cursor and scroll offset
// are UI-local; the selection only becomes session state when the owner
// calls selectedIndex on enter.
type choicesModel struct {
	title    string
	items    []string
	filtered []int // indexes into items passing the filter
	cursor   int   // position within filtered
	offset   int   // first visible row within filtered
	filter   textinput.Model
}

func newChoices(title string) choicesModel {
	ti := textinput.New()
	ti.Placeholder = "filter"
	ti.Prompt = "/ "
	ti.CharLimit = 80
	ti.Width = 30
	ti.Focus()
	return choicesModel{title: title, filter: ti}
}

func (c choicesModel) setItems(items []string) choicesModel {
	c.items = items
	c.filter.SetValue("")
	c.cursor = 0
	c.offset = 0
	c.refilter()
	return c
}

// setCursor moves the cursor to the row showing item index idx, if visible
// under the current filter.
func (c choicesModel) setCursor(idx int) choicesModel {
	for pos, item := range c.filtered {
		if item == idx {
			c.cursor = pos
			if c.cursor >= listHeight {
				c.offset = c.cursor - listHeight + 1
			}
			break
		}
	}
	return c
}

// selectedIndex returns the index into the original item slice, or -1 when
// the filter matches nothing.
func (c choicesModel) selectedIndex() int {
	if len(c.filtered) == 0 || c.cursor >= len(c.filtered) {
		return -1
	}
	return c.filtered[c.cursor]
}

func (c *choicesModel) refilter() {
	needle := strings.ToLower(strings.TrimSpace(c.filter.Value()))
	c.filtered = c.filtered[:0]
	for i, item := range c.items {
		if needle == "" || strings.Contains(strings.ToLower(item), needle) {
			c.filtered = append(c.filtered, i)
		}
	}
	if c.cursor >= len(c.filtered) {
		c.cursor = 0
		c.offset = 0
	}
}

func (c choicesModel) update(msg tea.Msg) (choicesModel, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return c, nil
	}

	switch keyMsg.Type {
	case tea.KeyDown:
		if c.cursor < len(c.filtered)-1 {
			c.cursor++
			if c.cursor >= c.offset+listHeight {
				c.offset++
			}
		}
		return c, nil
	case tea.KeyUp:
		if c.cursor > 0 {
			c.cursor--
			if c.cursor < c.offset {
				c.offset--
			}
		}
		return c, nil
	case tea.KeyPgDown:
		c.cursor = min(c.cursor+listHeight, max(len(c.filtered)-1, 0))
		c.offset = min(c.offset+listHeight, max(len(c.filtered)-listHeight, 0))
		return c, nil
	case tea.KeyPgUp:
		c.cursor = max(c.cursor-listHeight, 0)
		c.offset = max(c.offset-listHeight, 0)
		return c, nil
	}

	// Anything else edits the filter; the cursor goes back to the top so
	// the first match is always selectable immediately.
	var cmd tea.Cmd
	c.filter, cmd = c.filter.Update(msg)
	c.cursor = 0
	c.offset = 0
	c.refilter()
	return c, cmd
}

func (c choicesModel) view() string {
	var b strings.Builder

	b.WriteString(c.filter.View())
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%s %d/%d", c.title, len(c.filtered), len(c.items))))
	b.WriteString("\n\n")

	if len(c.filtered) == 0 {
		b.WriteString(dimStyle.Render("no matches"))
		b.WriteString("\n")
		return b.String()
	}

	end := min(c.offset+listHeight, len(c.filtered))
	for pos := c.offset; pos < end; pos++ {
		line := c.items[c.filtered[pos]]
		if pos == c.cursor {
			b.WriteString(cursorStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	return b.String()
}
