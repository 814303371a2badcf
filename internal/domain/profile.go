package domain

import "time"

// Difficulty tiers reported by the statistics API.
const (
	DifficultyEasy   = "Easy"
	DifficultyMedium = "Medium"
	DifficultyHard   = "Hard"
)

// DifficultyCount is one accepted-submission record for a difficulty tier.
type DifficultyCount struct {
	Difficulty  string `json:"difficulty"`
	Count       int    `json:"count"`
	Submissions *int   `json:"submissions,omitempty"`
}

// ProfileSnapshot is the normalized result of one statistics fetch.
type ProfileSnapshot struct {
	Username       string            `json:"username"`
	RealName       string            `json:"real_name"`
	Avatar         string            `json:"avatar"`
	Ranking        int               `json:"ranking"`
	TotalSolved    int               `json:"total_solved"`
	TotalAttempted *int              `json:"total_attempted,omitempty"`
	AcceptanceRate *float64          `json:"acceptance_rate,omitempty"`
	Easy           int               `json:"easy"`
	Medium         int               `json:"medium"`
	Hard           int               `json:"hard"`
	Submissions    []DifficultyCount `json:"submissions"`
	Calendar       map[string]int    `json:"calendar"`
	FetchedAt      time.Time         `json:"fetched_at"`
}

// CacheEntry is a stored snapshot keyed by external id.
type CacheEntry struct {
	ExternalID string
	Snapshot   []byte
	UpdatedAt  time.Time
}
