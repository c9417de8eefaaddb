package models

import "time"

// Participant is one side of a match
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// OddsPair holds decimal odds for both sides of a match from one source
type OddsPair struct {
	Home float64 `json:"home"`
	Away float64 `json:"away"`
}

// Match is a sporting fixture as cached by the resolution chain. The data
// is owned by the external providers; Provenance records which provider
// last supplied this record.
type Match struct {
	ID            string              `db:"id"`
	Home          Participant         `db:"home"`
	Away          Participant         `db:"away"`
	ScheduledTime time.Time           `db:"scheduled_time"`
	OddsBySource  map[string]OddsPair `db:"odds_by_source"`
	HomeScore     *int                `db:"home_score"`
	AwayScore     *int                `db:"away_score"`
	Completed     bool                `db:"completed"`
	Provenance    string              `db:"provenance"`
	FetchedAt     time.Time           `db:"fetched_at"`
}

// Participants returns both sides in home, away order
func (m *Match) Participants() [2]Participant {
	return [2]Participant{m.Home, m.Away}
}

// HasSide checks whether the given side ID belongs to this match
func (m *Match) HasSide(sideID string) bool {
	return m.Home.ID == sideID || m.Away.ID == sideID
}

// WinningSideID returns the side that won a completed match, or "" when the
// match is not completed, has no scores, or ended level.
func (m *Match) WinningSideID() string {
	if !m.Completed || m.HomeScore == nil || m.AwayScore == nil {
		return ""
	}
	switch {
	case *m.HomeScore > *m.AwayScore:
		return m.Home.ID
	case *m.AwayScore > *m.HomeScore:
		return m.Away.ID
	}
	return ""
}
