package domain

import (
	"fmt"
	"time"
)

// Team is the single roster container held by an owner.
type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultTeamName returns the name given to the team created at registration.
func DefaultTeamName(handle string) string {
	return fmt.Sprintf("%s's Team", handle)
}

// Member is one tracked external profile within a team.
type Member struct {
	ID          string    `json:"id"`
	TeamID      string    `json:"team_id"`
	DisplayName string    `json:"display_name"`
	ExternalID  string    `json:"external_id"`
	AddedAt     time.Time `json:"added_at"`
}

// Stats summarises stored records across all owners.
type Stats struct {
	Owners  int `json:"total_owners"`
	Teams   int `json:"total_teams"`
	Members int `json:"total_members"`
}
