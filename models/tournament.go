package models

import "time"

// TournamentStatus описывает жизненный цикл сетки турнира.
type TournamentStatus string

const (
	TournamentStatusBuilding   TournamentStatus = "building"
	TournamentStatusInProgress TournamentStatus = "in_progress"
	TournamentStatusCompleted  TournamentStatus = "completed"
)

// SplitPolicy определяет, как упорядоченный список участников делится на группы.
type SplitPolicy string

const (
	SplitHalves    SplitPolicy = "halves"
	SplitAlternate SplitPolicy = "alternate"
)

func (p SplitPolicy) Valid() bool {
	return p == SplitHalves || p == SplitAlternate
}

// Tournament хранит состояние сетки турнира. Метаданные турнира принадлежат внешнему сервису.
type Tournament struct {
	ID                string           `json:"id"`
	Roster            []string         `json:"roster"`
	GroupCount        int              `json:"group_count"`
	GroupSize         int              `json:"group_size"`
	SplitPolicy       SplitPolicy      `json:"split_policy"`
	Status            TournamentStatus `json:"status"`
	ChampionID        *string          `json:"champion_id,omitempty"`
	AdvancementHalted bool             `json:"advancement_halted"`
	HaltReason        *string          `json:"halt_reason,omitempty"`
	CreatedBy         *string          `json:"created_by,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	CompletedAt       *time.Time       `json:"completed_at,omitempty"`
}

func (t *Tournament) Clone() *Tournament {
	c := *t
	c.Roster = append([]string(nil), t.Roster...)
	c.ChampionID = cloneString(t.ChampionID)
	c.HaltReason = cloneString(t.HaltReason)
	c.CreatedBy = cloneString(t.CreatedBy)
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		c.CompletedAt = &v
	}
	return &c
}
