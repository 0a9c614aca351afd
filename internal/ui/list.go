package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/questsync/internal/models"
)

var _ list.Item = questItem{}

// questItem wraps [models.Quest] to implement [list.Item].
type questItem struct {
	quest *models.Quest
}

func (i questItem) FilterValue() string { return i.quest.Title }

func (i questItem) Title() string {
	title := fmt.Sprintf("%s %s", badge(i.quest.Status), i.quest.Title)
	if i.quest.IsSyncing {
		title += " " + styles.ok.Render("♪ syncing")
	}
	return title
}

func (i questItem) Description() string {
	desc := fmt.Sprintf("created %s", i.quest.CreatedAt.Local().Format("Jan 2 2006"))
	if d, ok := i.quest.Description.Get(); ok && d != "" {
		desc = fmt.Sprintf("%s • %s", d, desc)
	}
	if i.quest.LootRetrieved {
		desc += " • loot collected"
	}
	return desc
}
