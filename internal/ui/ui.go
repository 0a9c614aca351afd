package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/questsync/internal/models"
	"github.com/desertthunder/questsync/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	QuestListView ViewState = iota
	CheckpointView
)

const barWidth = 30

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	view      ViewState
	engine    *tasks.QuestEngine
	width     int
	height    int
	questList list.Model
	quests    []*models.Quest
	stats     models.UserStats
	details   *models.QuestDetails
	cursor    int
	notice    string
	err       error
	help      help.Model
	keys      keyMap
}

// NewModel creates a new TUI model over engine.
func NewModel(ctx context.Context, engine *tasks.QuestEngine) *Model {
	questList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	questList.Title = "Quests"
	questList.SetShowHelp(false)

	return &Model{
		ctx:       ctx,
		view:      QuestListView,
		engine:    engine,
		questList: questList,
		help:      help.New(),
		keys:      newKeyMap(),
	}
}

// Init loads the quest list.
func (m *Model) Init() tea.Cmd {
	return m.fetchQuests()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.questList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) && !m.questList.SettingFilter() {
			return m, tea.Quit
		}
		switch m.view {
		case QuestListView:
			return m.handleQuestListKeys(msg)
		case CheckpointView:
			return m.handleCheckpointKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	if m.view == QuestListView {
		m.questList, cmd = m.questList.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgQuestsFetched:
		data := msg.data.(questsFetched)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.err = nil
		m.quests = data.quests
		m.stats = data.stats
		items := make([]list.Item, len(data.quests))
		for i, q := range data.quests {
			items[i] = questItem{quest: q}
		}
		return m, m.questList.SetItems(items)

	case MsgDetailsFetched:
		data := msg.data.(detailsFetched)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.err = nil
		m.details = data.details
		m.cursor = min(m.cursor, max(0, len(data.details.Checkpoints)-1))
		m.view = CheckpointView
		return m, nil

	case MsgQuestUpdated:
		data := msg.data.(questUpdated)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.err = nil
		m.notice = data.notice
		if m.details != nil && m.details.ID == data.quest.ID {
			m.details.Quest = data.quest
		}
		return m, m.fetchQuests()

	case MsgCheckpointCompleted:
		data := msg.data.(checkpointCompleted)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.err = nil
		m.notice = fmt.Sprintf("completed %q", data.checkpoint.Title)
		return m, tea.Batch(m.fetchDetails(data.checkpoint.QuestID), m.fetchQuests())
	}
	return m, nil
}

func (m *Model) handleQuestListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.questList.SettingFilter() {
		var cmd tea.Cmd
		m.questList, cmd = m.questList.Update(msg)
		return m, cmd
	}

	quest := m.selectedQuest()
	switch {
	case key.Matches(msg, m.keys.enter):
		if quest != nil {
			m.cursor = 0
			m.notice = ""
			return m, m.fetchDetails(quest.ID)
		}
		return m, nil
	case key.Matches(msg, m.keys.sync):
		if quest != nil {
			return m, m.toggleSync(quest)
		}
		return m, nil
	case key.Matches(msg, m.keys.loot):
		if quest != nil {
			return m, m.retrieveLoot(quest)
		}
		return m, nil
	case key.Matches(msg, m.keys.refresh):
		return m, m.fetchQuests()
	}

	var cmd tea.Cmd
	m.questList, cmd = m.questList.Update(msg)
	return m, cmd
}

func (m *Model) handleCheckpointKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.details == nil {
		m.view = QuestListView
		return m, nil
	}

	checkpoints := m.details.Checkpoints
	switch {
	case key.Matches(msg, m.keys.back):
		m.view = QuestListView
		m.details = nil
		m.notice = ""
		return m, m.fetchQuests()
	case key.Matches(msg, m.keys.up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.down):
		if m.cursor < len(checkpoints)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.complete):
		if m.cursor < len(checkpoints) {
			return m, m.completeCheckpoint(checkpoints[m.cursor].ID)
		}
	case key.Matches(msg, m.keys.sync):
		return m, m.toggleSync(m.details.Quest)
	case key.Matches(msg, m.keys.loot):
		return m, m.retrieveLoot(m.details.Quest)
	case key.Matches(msg, m.keys.refresh):
		return m, m.fetchDetails(m.details.ID)
	}
	return m, nil
}

func (m *Model) selectedQuest() *models.Quest {
	if item, ok := m.questList.SelectedItem().(questItem); ok {
		return item.quest
	}
	return nil
}

func (m *Model) fetchQuests() tea.Cmd {
	return func() tea.Msg {
		quests, err := m.engine.ListQuests(m.ctx, "")
		if err != nil {
			return questsFetchedMsg(nil, models.UserStats{}, err)
		}
		stats, err := m.engine.UserStats(m.ctx)
		return questsFetchedMsg(quests, stats, err)
	}
}

func (m *Model) fetchDetails(id string) tea.Cmd {
	return func() tea.Msg {
		details, err := m.engine.QuestDetails(m.ctx, id)
		return detailsFetchedMsg(details, err)
	}
}

func (m *Model) toggleSync(quest *models.Quest) tea.Cmd {
	syncing := !quest.IsSyncing
	return func() tea.Msg {
		updated, err := m.engine.SetSyncing(m.ctx, quest.ID, syncing)
		notice := fmt.Sprintf("stopped syncing %q", quest.Title)
		if syncing {
			notice = fmt.Sprintf("syncing %q", quest.Title)
		}
		return questUpdatedMsg(updated, notice, err)
	}
}

func (m *Model) retrieveLoot(quest *models.Quest) tea.Cmd {
	return func() tea.Msg {
		updated, err := m.engine.RetrieveLoot(m.ctx, quest.ID)
		return questUpdatedMsg(updated, fmt.Sprintf("loot retrieved for %q", quest.Title), err)
	}
}

func (m *Model) completeCheckpoint(id string) tea.Cmd {
	return func() tea.Msg {
		checkpoint, err := m.engine.CompleteCheckpoint(m.ctx, id)
		return checkpointCompletedMsg(checkpoint, err)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var b strings.Builder

	switch m.view {
	case CheckpointView:
		b.WriteString(m.renderCheckpoints())
	default:
		b.WriteString(m.renderQuestList())
	}

	if m.err != nil {
		b.WriteString("\n" + styles.err.Render(fmt.Sprintf("Error: %v", m.err)))
	} else if m.notice != "" {
		b.WriteString("\n" + styles.ok.Render(m.notice))
	}
	return b.String()
}

func (m *Model) renderStats() string {
	return styles.help.Render(fmt.Sprintf(
		"Level %d • %d XP (%d/%d to next) • %d quests completed",
		m.stats.Level, m.stats.TotalXP, m.stats.XPIntoLevel, m.stats.XPToNextLevel, m.stats.QuestsCompleted,
	))
}

func (m *Model) renderQuestList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.sync, m.keys.loot, m.keys.refresh, m.keys.quit}
	body := m.questList.View()
	if len(m.quests) == 0 {
		body = styles.title.Render("Quests") + "\n" + styles.help.Render("No quests yet. Create one with `questsync quest create`.")
	}
	return fmt.Sprintf("%s\n%s\n\n%s", body, m.renderStats(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderCheckpoints() string {
	if m.details == nil {
		return ""
	}

	quest := m.details.Quest
	title := fmt.Sprintf("%s %s", badge(quest.Status), quest.Title)
	if quest.IsSyncing {
		title += " " + styles.ok.Render("♪ syncing")
	}

	var b strings.Builder
	b.WriteString(styles.title.Render(title))
	b.WriteString("\n")

	total := len(m.details.Checkpoints)
	done := 0
	for _, cp := range m.details.Checkpoints {
		if cp.Completed {
			done++
		}
	}
	pct := 0.0
	if total > 0 {
		pct = float64(done) / float64(total) * 100
	}
	fmt.Fprintf(&b, "%s %d/%d (%.0f%%)\n\n", progressBar(pct, barWidth), done, total, pct)

	if total == 0 {
		b.WriteString(styles.help.Render("No checkpoints yet. Add one with `questsync checkpoint add`."))
		b.WriteString("\n")
	}
	for i, cp := range m.details.Checkpoints {
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}
		check := "[ ]"
		line := cp.Title
		if cp.Completed {
			check = styles.ok.Render("[x]")
			line = styles.help.Render(line)
		}
		fmt.Fprintf(&b, "%s%s %s\n", cursor, check, line)
	}

	if quest.LootRetrieved {
		b.WriteString("\n" + styles.warn.Render("loot collected"))
	}

	helpKeys := []key.Binding{m.keys.up, m.keys.down, m.keys.complete, m.keys.sync, m.keys.loot, m.keys.back, m.keys.quit}
	fmt.Fprintf(&b, "\n%s\n\n%s", m.renderStats(), m.help.ShortHelpView(helpKeys))
	return b.String()
}
