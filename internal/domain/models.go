package domain

import "time"

// Question is one arithmetic challenge. The ID doubles as the epoch: it is
// strictly increasing across rotations, so a stale ID identifies a stale round.
type Question struct {
	ID         int64   `json:"id"`
	Kind       string  `json:"kind"`
	Prompt     string  `json:"prompt"`
	Difficulty int     `json:"difficulty"` // 1..3
	Answer     float64 `json:"answer"`
}

// View strips the answer for anything client-facing.
func (q Question) View() QuestionView {
	return QuestionView{ID: q.ID, Prompt: q.Prompt, Difficulty: q.Difficulty}
}

// QuestionView is the client-safe projection of a question.
type QuestionView struct {
	ID         int64  `json:"id"`
	Prompt     string `json:"prompt"`
	Difficulty int    `json:"difficulty"`
}

// Participant is a live connection's identity and running score. Keyed by
// connection ID, never by username: two connections may share a username.
type Participant struct {
	ConnID   string
	Username string
	Score    int
	JoinedAt time.Time
}

// AttemptRecord is one accepted (correct) submission for the current question.
// The first record appended in an epoch is the winning one; later records are
// kept for audit only. Client timestamps are advisory metadata and are never
// used for ordering.
type AttemptRecord struct {
	ConnID     string
	Username   string
	AnswerText string
	ClientTS   int64 // epoch-ms as reported by the client
	ServerTS   time.Time
}

// HighScoreEntry is the best cumulative score ever reached under a username,
// independent of connection lifetime. BestScore never decreases.
type HighScoreEntry struct {
	Username  string    `json:"username"`
	BestScore int       `json:"bestScore"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SeedQuestion is curated question content as stored in a question set.
type SeedQuestion struct {
	Prompt     string  `json:"prompt"`
	Answer     float64 `json:"answer"`
	Difficulty int     `json:"difficulty"`
}

// QuestionSet is a named collection of curated questions.
type QuestionSet struct {
	ID        string         `json:"id"`
	Questions []SeedQuestion `json:"questions"`
}

// WinnerAnnouncement is broadcast to every connection when a round is won.
type WinnerAnnouncement struct {
	Username      string  `json:"username"`
	AnswerText    string  `json:"answerText"`
	Points        int     `json:"points"`
	CorrectAnswer float64 `json:"correctAnswer"`
}
