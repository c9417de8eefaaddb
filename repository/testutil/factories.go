package testutil

import (
	"time"

	"sidestake/models"

	"github.com/google/uuid"
)

// CreateTestBet creates an open test bet with default values
func CreateTestBet(creator, matchID, selectedSideID string, stake int64) *models.Bet {
	return &models.Bet{
		ID:             uuid.NewString(),
		Creator:        creator,
		MatchID:        matchID,
		SelectedSideID: selectedSideID,
		Stake:          stake,
		Status:         models.BetStatusOpen,
		EscrowID:       uuid.NewString(),
	}
}

// CreateTestEscrow creates a pending test escrow holding the creator's leg
func CreateTestEscrow(betID, creatorID string, amount int64) *models.Escrow {
	return &models.Escrow{
		ID:            uuid.NewString(),
		BetID:         betID,
		CreatorID:     creatorID,
		CreatorAmount: amount,
		Status:        models.EscrowStatusPending,
	}
}

// CreateTestMatch creates an upcoming test match with odds from one source
func CreateTestMatch(id string) *models.Match {
	return &models.Match{
		ID:            id,
		Home:          models.Participant{ID: "los-angeles-lakers", Name: "Los Angeles Lakers"},
		Away:          models.Participant{ID: "boston-celtics", Name: "Boston Celtics"},
		ScheduledTime: time.Date(2026, 12, 25, 20, 0, 0, 0, time.UTC),
		OddsBySource: map[string]models.OddsPair{
			"odds-api": {Home: 1.91, Away: 1.95},
		},
		Provenance: "odds-api",
		FetchedAt:  time.Now().UTC(),
	}
}

// CreateTestMatchCompleted creates a completed test match with final scores
func CreateTestMatchCompleted(id string, homeScore, awayScore int) *models.Match {
	m := CreateTestMatch(id)
	m.Completed = true
	m.HomeScore = &homeScore
	m.AwayScore = &awayScore
	return m
}
