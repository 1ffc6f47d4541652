package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/unowned-ai/nursery/pkg/diary"
	"github.com/unowned-ai/nursery/pkg/records"

	textinput "github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type model struct {
	children []diary.Child
	entries  []dayEntry
	summary  diary.DailySummary

	day time.Time // Calendar day shown in the timeline, local time

	columnFocus int // 0 = children, 1 = day timeline
	width       int // Current terminal width (for layout)
	height      int // Current terminal height
	err         error
	status      string // Result of the last destructive action

	store      *records.Store
	diary      *diary.Diary
	dbFilename string
	now        func() time.Time

	quitting bool

	childCursor           int // Index of selected child
	childCreating         bool
	childCreatingStep     int // 0 = editing name, 1 = editing birth date
	childCreatingError    string
	childNameInput        textinput.Model
	childBirthInput       textinput.Model
	childDeleting         bool
	childDeleteConfirmIdx int // 0 = keep records, 1 = delete records too, 2 = "No"

	entryCursor           int // Index of selected timeline entry
	entryDeleting         bool
	entryDeleteConfirmIdx int // 0 = "Yes" selected, 1 = "No"

	// Animation state
	marqueeOffset int
	marqueeTimer  int
}

var childDeleteOptions = []string{"Yes, keep their records", "Yes, delete their records too", "No"}

// Initialize TUI model
func initModel(store *records.Store, d *diary.Diary, now func() time.Time) model {
	name := textinput.New()
	name.Placeholder = "Child name"
	name.Focus()
	name.CharLimit = 128

	birth := textinput.New()
	birth.Placeholder = "Birth date (YYYY-MM-DD)"
	birth.CharLimit = len(diary.DateLayout)

	return model{
		children: []diary.Child{},
		entries:  []dayEntry{},

		day: now(),

		store:      store,
		diary:      d,
		dbFilename: filepath.Base(store.Name()),
		now:        now,

		childNameInput:  name,
		childBirthInput: birth,
	}
}

func tick() tea.Cmd {
	return tea.Tick(marqueeTickDuration, func(t time.Time) tea.Msg {
		return t
	})
}

// Execute commands concurrently with no ordering guarantees during initialization
func (m model) Init() tea.Cmd {
	return tea.Batch(listChildren(m.diary), tick())
}

func (m model) selectedChild() (diary.Child, bool) {
	if m.childCursor < 0 || m.childCursor >= len(m.children) {
		return diary.Child{}, false
	}
	return m.children[m.childCursor], true
}

// Reload the timeline and summary of the selected child
func (m model) reloadDay() tea.Cmd {
	child, ok := m.selectedChild()
	if !ok {
		return nil
	}
	return loadDay(m.store, m.diary, child.ID, m.day)
}

// Processes events like window resize, errors, loaded data, and key presses
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case error:
		m.err = msg
		return m, nil

	case []diary.Child:
		m.children = msg
		if m.childCursor >= len(m.children) {
			m.childCursor = max(len(m.children)-1, 0)
		}
		if len(m.children) == 0 {
			m.entries = []dayEntry{}
			m.summary = diary.DailySummary{}
			return m, nil
		}
		return m, m.reloadDay()

	case dayMsg:
		// Drop results for a child or day that is no longer selected
		child, ok := m.selectedChild()
		if !ok || child.ID != msg.childID || !sameDay(msg.day, m.day) {
			return m, nil
		}
		m.entries = msg.entries
		m.summary = msg.summary
		if m.entryCursor >= len(m.entries) {
			m.entryCursor = max(len(m.entries)-1, 0)
		}
		if len(m.entries) == 0 {
			m.columnFocus = 0
		}
		return m, nil

	case childDeletedMsg:
		m.status = fmt.Sprintf("Child %d deleted, %d records removed", msg.id, msg.deleted)
		if m.childCursor > 0 && m.childCursor >= len(m.children)-1 {
			m.childCursor--
		}
		m.columnFocus = 0
		return m, listChildren(m.diary)

	case entryDeletedMsg:
		key, _ := msg.entry.record.Key()
		m.status = fmt.Sprintf("Deleted %s record %v", msg.entry.collection, key)
		return m, m.reloadDay()

	case tea.KeyMsg:
		if m.childCreating {
			return m.updateChildCreating(msg)
		}
		if m.childDeleting {
			return m.updateChildDeleting(msg)
		}
		if m.entryDeleting {
			return m.updateEntryDeleting(msg)
		}
		return m.updateNavigation(msg)

	case time.Time:
		// Update marquee animation every x ticks (adjust for speed)
		m.marqueeTimer++
		if m.marqueeTimer >= 10 {
			m.marqueeTimer = 0
			m.marqueeOffset++
		}
		return m, tick()
	}

	return m, nil
}

func (m model) updateChildCreating(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		if m.childCreatingStep == 0 {
			if strings.TrimSpace(m.childNameInput.Value()) == "" {
				m.childCreatingError = "Child name cannot be empty"
				return m, nil
			}
			m.childCreatingError = ""
			m.childCreatingStep = 1
			m.childNameInput.Blur()
			m.childBirthInput.Focus()
			return m, nil
		}

		birth, err := diary.ParseDate(strings.TrimSpace(m.childBirthInput.Value()))
		if err != nil {
			m.childCreatingError = err.Error()
			return m, nil
		}
		child, err := m.diary.AddChild(context.Background(), diary.Child{
			Name:      m.childNameInput.Value(),
			BirthDate: birth,
		})
		if err != nil {
			m.childCreatingError = err.Error()
			return m, nil
		}
		// Children are ordered by id, so the new one goes last
		m.children = append(m.children, child)
		m.childCursor = len(m.children) - 1
		m = m.resetChildForm()
		return m, m.reloadDay()

	case tea.KeyEsc:
		m = m.resetChildForm()
		return m, nil
	}

	var cmd tea.Cmd
	if m.childCreatingStep == 0 {
		m.childNameInput, cmd = m.childNameInput.Update(msg)
	} else {
		m.childBirthInput, cmd = m.childBirthInput.Update(msg)
	}
	return m, cmd
}

func (m model) resetChildForm() model {
	m.childCreating = false
	m.childCreatingStep = 0
	m.childCreatingError = ""
	m.childNameInput.Reset()
	m.childBirthInput.Reset()
	m.childBirthInput.Blur()
	m.childNameInput.Focus()
	return m
}

func (m model) updateChildDeleting(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.childDeleteConfirmIdx > 0 {
			m.childDeleteConfirmIdx--
		}
	case "down", "j":
		if m.childDeleteConfirmIdx < len(childDeleteOptions)-1 {
			m.childDeleteConfirmIdx++
		}
	case "enter":
		m.childDeleting = false
		child, ok := m.selectedChild()
		if !ok {
			return m, nil
		}
		switch m.childDeleteConfirmIdx {
		case 0:
			return m, deleteChild(m.diary, child.ID, diary.OrphanRecords)
		case 1:
			return m, deleteChild(m.diary, child.ID, diary.CascadeDelete)
		}
	case "esc":
		m.childDeleting = false
	}
	return m, nil
}

func (m model) updateEntryDeleting(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.entryDeleteConfirmIdx = 0
	case "down", "j":
		m.entryDeleteConfirmIdx = 1
	case "enter":
		m.entryDeleting = false
		if m.entryDeleteConfirmIdx == 0 && m.entryCursor < len(m.entries) {
			return m, deleteEntry(m.store, m.entries[m.entryCursor])
		}
	case "esc":
		m.entryDeleting = false
	}
	return m, nil
}

func (m model) updateNavigation(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		// Exit alt screen before quitting so the goodbye message displays
		return m, tea.Sequence(tea.ExitAltScreen, tea.Quit)

	case "up", "k":
		if m.columnFocus == 0 && m.childCursor > 0 {
			m.childCursor--
			m.entryCursor = 0
			return m, m.reloadDay()
		}
		if m.columnFocus == 1 && m.entryCursor > 0 {
			m.entryCursor--
		}

	case "down", "j":
		if m.columnFocus == 0 && m.childCursor < len(m.children)-1 {
			m.childCursor++
			m.entryCursor = 0
			return m, m.reloadDay()
		}
		if m.columnFocus == 1 && m.entryCursor < len(m.entries)-1 {
			m.entryCursor++
		}

	case "right", "l":
		if m.columnFocus == 0 && len(m.entries) > 0 {
			m.columnFocus = 1
			m.entryCursor = 0
		}

	case "left", "h":
		m.columnFocus = 0

	case "[":
		m.day = m.day.AddDate(0, 0, -1)
		m.entryCursor = 0
		return m, m.reloadDay()

	case "]":
		m.day = m.day.AddDate(0, 0, 1)
		m.entryCursor = 0
		return m, m.reloadDay()

	case "t":
		m.day = m.now()
		m.entryCursor = 0
		return m, m.reloadDay()

	case "n":
		m = m.resetChildForm()
		m.childCreating = true

	case "d":
		if m.columnFocus == 0 && len(m.children) > 0 {
			m.childDeleteConfirmIdx = len(childDeleteOptions) - 1
			m.childDeleting = true
		} else if m.columnFocus == 1 && len(m.entries) > 0 {
			m.entryDeleteConfirmIdx = 1
			m.entryDeleting = true
		}
	}
	return m, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Assembles the UI string for each frame
func (m model) View() string {
	if m.quitting {
		return "Lights out in the nursery... Records saved.\n"
	}
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n", m.err)
	}

	titleBar := titleStyle.Width(m.width).Render("Nursery - baby care diary")

	leftWidth, middleWidth, rightWidth := m.columnWidths()

	m.childNameInput.Width = rightWidth - bordersAndPaddingWidth
	m.childBirthInput.Width = rightWidth - bordersAndPaddingWidth

	quarterHeight := (m.height - bordersAndPaddingWidth) / 4
	panelHeightPadding := 3

	// Left column: children list and info
	var childrenBuilder, infoBuilder strings.Builder
	childrenBuilder.WriteString(subtitleStyle.Width(leftWidth - bordersAndPaddingWidth).Render("  Children"))
	childrenBuilder.WriteString("\n\n")

	if len(m.children) == 0 {
		childrenBuilder.WriteString("No children yet. Press 'n' to add one.\n")
	} else {
		for i, child := range m.children {
			selected := i == m.childCursor
			pointer := generateLinePointer(selected, 2)
			availableWidth := leftWidth - len(pointer) - bordersAndPaddingWidth - 1

			name := child.Name
			itemStyle := inactiveStyle
			if selected {
				itemStyle = selectedStyle
				name = m.marqueeText(name, availableWidth)
			} else {
				name = truncate(name, availableWidth)
			}
			name = lipgloss.NewStyle().MaxWidth(availableWidth).Render(name)
			childrenBuilder.WriteString(pointer + itemStyle.Render(name) + "\n")
		}
	}

	var databaseStatus int
	if m.dbFilename != "" {
		databaseStatus = 1
	}
	infoBuilder.WriteString(fmt.Sprintf("Database file: %v\nDay: %v\n",
		TextStatusColorize(m.dbFilename, databaseStatus),
		TextStatusColorize(m.day.Format(diary.DateLayout), 1)))
	if m.status != "" {
		infoBuilder.WriteString(TextStatusColorize(m.status, 2) + "\n")
	}

	childrenPanel := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, true, true, false).
		BorderForeground(lipgloss.Color(colorGray)).
		Padding(0, 2).
		Width(leftWidth).Height(quarterHeight * 3).
		Render(childrenBuilder.String())
	infoPanel := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, true, false, false).
		BorderForeground(lipgloss.Color(colorGray)).
		Padding(1, 2).
		Width(leftWidth).Height(quarterHeight).
		Render(infoBuilder.String())
	leftPanel := lipgloss.JoinVertical(lipgloss.Left, childrenPanel, infoPanel)

	// Middle column: day timeline
	var middleBuilder strings.Builder
	middleBuilder.WriteString(subtitleStyle.Width(middleWidth - bordersAndPaddingWidth).Render("  Day"))
	middleBuilder.WriteString("\n\n")

	if _, ok := m.selectedChild(); !ok {
		middleBuilder.WriteString("  No child selected.\n")
	} else if len(m.entries) == 0 {
		middleBuilder.WriteString("  Nothing logged on this day.\n")
	} else {
		for i, entry := range m.entries {
			focused := i == m.entryCursor && m.columnFocus == 1
			pointer := generateLinePointer(focused, 2)
			itemStyle := inactiveStyle
			if focused {
				itemStyle = selectedStyle
			}
			availableWidth := middleWidth - len(pointer) - bordersAndPaddingWidth - 1
			line := lipgloss.NewStyle().MaxWidth(availableWidth).Render(truncate(entryLine(entry), availableWidth))
			middleBuilder.WriteString(pointer + itemStyle.Render(line) + "\n")
		}
	}

	// Right column: summary, entry details or a form
	var rightBuilder strings.Builder
	rightTitle := "Summary"
	switch {
	case m.childCreating:
		rightTitle = "Add Child"
	case m.childDeleting:
		rightTitle = "Delete Child"
	case m.entryDeleting:
		rightTitle = "Delete Record"
	case m.columnFocus == 1:
		rightTitle = "Record"
	}
	rightBuilder.WriteString(subtitleStyle.Width(rightWidth - bordersAndPaddingWidth).Render(rightTitle))
	rightBuilder.WriteString("\n\n")

	switch {
	case m.childCreating:
		rightBuilder.WriteString("Name: " + m.childNameInput.View() + "\n")
		rightBuilder.WriteString("Birth date: " + m.childBirthInput.View() + "\n\n")
		rightBuilder.WriteString("(enter to submit, esc to cancel)")
		if m.childCreatingError != "" {
			rightBuilder.WriteString("\n\n" + textRedStyle.Render(m.childCreatingError) + "\n")
		}

	case m.childDeleting:
		child, _ := m.selectedChild()
		rightBuilder.WriteString("Name: " + textRedStyle.Render(child.Name) + "\n\n")
		rightBuilder.WriteString(confirmOptions(childDeleteOptions, m.childDeleteConfirmIdx))
		rightBuilder.WriteString("(enter to confirm, esc to cancel, up/down to switch)")

	case m.entryDeleting:
		rightBuilder.WriteString("Record: " + textRedStyle.Render(entryLine(m.entries[m.entryCursor])) + "\n\n")
		rightBuilder.WriteString(confirmOptions([]string{"Yes", "No"}, m.entryDeleteConfirmIdx))
		rightBuilder.WriteString("(enter to confirm, esc to cancel, up/down to switch)")

	case m.columnFocus == 1 && m.entryCursor < len(m.entries):
		entry := m.entries[m.entryCursor]
		rightBuilder.WriteString(labelStyle.Bold(true).Render("Collection: ") + inactiveStyle.Render(entry.collection) + "\n\n")
		rightBuilder.WriteString(recordDetails(entry.record))

	default:
		if child, ok := m.selectedChild(); ok {
			rightBuilder.WriteString(renderSummary(child, m.summary, m.now()))
		} else {
			rightBuilder.WriteString("Select a child to view their day.")
		}
	}

	middlePanel := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, true, false, false).
		BorderForeground(lipgloss.Color(colorGray)).
		Padding(0, 2).
		Width(middleWidth).Height(m.height - panelHeightPadding).
		Render(middleBuilder.String())
	rightPanel := lipgloss.NewStyle().Padding(0, 2).
		Width(rightWidth).Height(m.height - panelHeightPadding).
		Render(rightBuilder.String())

	columns := lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, middlePanel, rightPanel)

	footerText := "\n↑/↓ to navigate • [/] to change day • t for today • n to add child • d to delete • q to quit"
	footerBar := footerStyle.Width(m.width).Render(footerText)

	return titleBar + "\n\n" + columns + footerBar
}

// Render a vertical option list with the selected option highlighted
func confirmOptions(options []string, selected int) string {
	var b strings.Builder
	for i, opt := range options {
		switch {
		case i != selected:
			b.WriteString(inactiveStyle.Render("  "+opt) + "\n")
		case i == len(options)-1:
			b.WriteString(selectedStyle.Render(" >"+opt) + "\n")
		default:
			b.WriteString(dangerSelectedStyle.Render(" >"+opt) + "\n")
		}
	}
	b.WriteString("\n")
	return b.String()
}

func formatMinutes(minutes int) string {
	return fmt.Sprintf("%dh %02dm", minutes/60, minutes%60)
}

// Render the daily summary panel
func renderSummary(child diary.Child, sum diary.DailySummary, now time.Time) string {
	var b strings.Builder
	line := func(label, value string) {
		b.WriteString(labelStyle.Render(label+": ") + valueStyle.Render(value) + "\n")
	}

	line("Name", child.Name)
	line("Age", fmt.Sprintf("%d months", diary.AgeInMonths(child.BirthDate.Time, now)))
	line("Day", sum.Day)
	b.WriteString("\n")

	feeding := fmt.Sprintf("%d", sum.Feedings)
	if sum.FeedingVolumeML > 0 {
		feeding += fmt.Sprintf(", %.1f ml", sum.FeedingVolumeML)
	}
	if sum.BreastMinutes > 0 {
		feeding += fmt.Sprintf(", breast %d min", sum.BreastMinutes)
	}
	line("Feedings", feeding)
	if sum.LastFeeding != nil {
		line("Last feeding", sum.LastFeeding.In(now.Location()).Format("15:04"))
	}

	sleep := formatMinutes(sum.SleepMinutes)
	if sum.Sleeping {
		sleep += " (sleeping now)"
	}
	line("Sleep", sleep)

	var diapers []string
	for _, t := range diary.DiaperTypes {
		if n := sum.Diapers[t]; n > 0 {
			diapers = append(diapers, fmt.Sprintf("%s %d", t, n))
		}
	}
	if len(diapers) == 0 {
		diapers = []string{"-"}
	}
	line("Diapers", strings.Join(diapers, ", "))

	mood := string(sum.DominantMood)
	if mood == "" {
		mood = "-"
	}
	line("Mood", mood)
	return b.String()
}

// Create and start the Bubble Tea TUI
func ShowTUI(store *records.Store, d *diary.Diary) error {
	p := tea.NewProgram(initModel(store, d, time.Now), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
