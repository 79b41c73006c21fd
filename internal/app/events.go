package app

import "math-race-service/internal/domain"

// Outbound event types, as they appear on the wire.
const (
	EventQuestion        = "question"
	EventLeaderboard     = "leaderboard"
	EventUsersCount      = "usersCount"
	EventWinnerAnnounced = "winnerAnnounced"
	EventYouWon          = "youWon"
	EventTooLate         = "tooLate"
	EventWrongAnswer     = "wrongAnswer"
)

// Event is a single outbound message destined for one or all connections.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type UsersCountPayload struct {
	Count int `json:"count"`
}

type YouWonPayload struct {
	Points int `json:"points"`
}

type TooLatePayload struct {
	CorrectAnswer float64 `json:"correctAnswer"`
}

type WrongAnswerPayload struct {
	Message string `json:"message"`
}

type LeaderboardPayload struct {
	Entries []domain.HighScoreEntry `json:"entries"`
}
