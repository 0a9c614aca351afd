package models

// XPPerLevel is the experience needed to advance one level.
const XPPerLevel = 50

// UserStats are the gamification ledger totals.
type UserStats struct {
	TotalXP         int `json:"total_xp"`
	QuestsCompleted int `json:"quests_completed"`
	Level           int `json:"level"`
	XPIntoLevel     int `json:"xp_into_level"`
	XPToNextLevel   int `json:"xp_to_next_level"`
}

// NewUserStats derives level progress from the raw totals.
func NewUserStats(totalXP, questsCompleted int) UserStats {
	return UserStats{
		TotalXP:         totalXP,
		QuestsCompleted: questsCompleted,
		Level:           totalXP/XPPerLevel + 1,
		XPIntoLevel:     totalXP % XPPerLevel,
		XPToNextLevel:   XPPerLevel - totalXP%XPPerLevel,
	}
}
