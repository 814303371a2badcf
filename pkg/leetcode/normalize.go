package leetcode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/saralaufeyson/leetcode-team-dashboard/internal/domain"
)

const calendarDateLayout = "2006-01-02"

// normalize converts the upstream node into a snapshot. The returned error
// only describes a calendar that could not be parsed; the snapshot is usable
// either way and carries an empty calendar in that case.
func normalize(user *matchedUser, fetchedAt time.Time) (domain.ProfileSnapshot, error) {
	snap := domain.ProfileSnapshot{
		Username:    user.Username,
		Submissions: make([]domain.DifficultyCount, 0),
		Calendar:    map[string]int{},
		FetchedAt:   fetchedAt.UTC(),
	}
	if p := user.Profile; p != nil {
		snap.RealName = deref(p.RealName)
		snap.Avatar = deref(p.UserAvatar)
		if p.Ranking != nil {
			snap.Ranking = *p.Ranking
		}
	}

	var records []submissionRecord
	if user.SubmitStatsGlobal != nil {
		records = user.SubmitStatsGlobal.AcSubmissionNum
	}
	attempted, sawAttempts := 0, false
	for _, rec := range records {
		snap.TotalSolved += rec.Count
		if rec.Submissions != nil {
			attempted += *rec.Submissions
			sawAttempts = true
		}
		snap.Submissions = append(snap.Submissions, domain.DifficultyCount{
			Difficulty:  rec.Difficulty,
			Count:       rec.Count,
			Submissions: copyInt(rec.Submissions),
		})
	}
	if sawAttempts {
		snap.TotalAttempted = &attempted
	}
	snap.AcceptanceRate = acceptanceRate(snap.TotalSolved, attempted)
	snap.Easy = tierCount(records, domain.DifficultyEasy)
	snap.Medium = tierCount(records, domain.DifficultyMedium)
	snap.Hard = tierCount(records, domain.DifficultyHard)

	if user.UserCalendar == nil {
		return snap, nil
	}
	calendar, err := decodeCalendar(user.UserCalendar.SubmissionCalendar)
	if err != nil {
		return snap, err
	}
	snap.Calendar = calendar
	return snap, nil
}

// acceptanceRate returns solved/attempted as a percentage rounded to two
// decimals, or nil when nothing was attempted.
func acceptanceRate(solved, attempted int) *float64 {
	if attempted <= 0 {
		return nil
	}
	rate := math.Round(float64(solved)/float64(attempted)*100*100) / 100
	return &rate
}

// tierCount looks a tier up by exact name; absent tiers count as zero.
func tierCount(records []submissionRecord, difficulty string) int {
	for _, rec := range records {
		if rec.Difficulty == difficulty {
			return rec.Count
		}
	}
	return 0
}

// decodeCalendar unwraps the string-encoded calendar. Absent or null values
// give an empty calendar; any non-string shape is an error.
func decodeCalendar(raw json.RawMessage) (map[string]int, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]int{}, nil
	}
	var encoded string
	if err := json.Unmarshal(trimmed, &encoded); err != nil {
		return map[string]int{}, fmt.Errorf("submission calendar is not a string: %w", err)
	}
	return parseCalendar(encoded)
}

// parseCalendar turns {"<epoch seconds>": count} into UTC YYYY-MM-DD keys,
// summing counts that land on the same day.
func parseCalendar(raw string) (map[string]int, error) {
	calendar := map[string]int{}
	if strings.TrimSpace(raw) == "" {
		return calendar, nil
	}
	var byEpoch map[string]int
	if err := json.Unmarshal([]byte(raw), &byEpoch); err != nil {
		return map[string]int{}, fmt.Errorf("decode submission calendar: %w", err)
	}
	for key, count := range byEpoch {
		secs, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
		if err != nil {
			return map[string]int{}, fmt.Errorf("calendar key %q: %w", key, err)
		}
		day := time.Unix(secs, 0).UTC().Format(calendarDateLayout)
		calendar[day] += count
	}
	return calendar, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
