package app

import (
	"context"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"math-race-service/internal/domain"
)

// QuestionSource supplies the next question on rotation. Implementations must
// hand out strictly increasing IDs; the arena leans on that for epoch guards.
type QuestionSource interface {
	Next(ctx context.Context) (domain.Question, error)
}

// HighScoreStore keeps the best cumulative score per username. UpsertIfHigher
// must never lower a stored score.
type HighScoreStore interface {
	UpsertIfHigher(ctx context.Context, username string, score int, at time.Time) error
	Top(ctx context.Context, n int) ([]domain.HighScoreEntry, error)
}

const (
	defaultRotationDelay = 3 * time.Second
	defaultTopN          = 10
)

// Arena is the quiz session coordinator. Every mutation of session state
// (current question, attempt log, participants, subscriptions) happens under
// one mutex, so "first correct answer" means first to acquire it. Connection
// handling code never touches the state directly; it only calls these methods
// and drains the event channel handed out by Subscribe.
type Arena struct {
	source        QuestionSource
	scores        HighScoreStore
	rotationDelay time.Duration
	topN          int
	now           func() time.Time
	schedule      func(d time.Duration, f func())

	mu           sync.Mutex
	question     domain.Question
	attempts     []domain.AttemptRecord
	participants map[string]*domain.Participant
	subscribers  map[string]chan Event
}

func NewArena(ctx context.Context, source QuestionSource, scores HighScoreStore, rotationDelay time.Duration, topN int) (*Arena, error) {
	return NewArenaWithHooks(ctx, source, scores, rotationDelay, topN, time.Now, func(d time.Duration, f func()) {
		time.AfterFunc(d, f)
	})
}

// NewArenaWithHooks injects the clock and timer for deterministic tests.
func NewArenaWithHooks(ctx context.Context, source QuestionSource, scores HighScoreStore, rotationDelay time.Duration, topN int, now func() time.Time, schedule func(d time.Duration, f func())) (*Arena, error) {
	first, err := source.Next(ctx)
	if err != nil {
		return nil, err
	}
	if rotationDelay <= 0 {
		rotationDelay = defaultRotationDelay
	}
	if topN <= 0 {
		topN = defaultTopN
	}
	return &Arena{
		source:        source,
		scores:        scores,
		rotationDelay: rotationDelay,
		topN:          topN,
		now:           now,
		schedule:      schedule,
		question:      first,
		participants:  make(map[string]*domain.Participant),
		subscribers:   make(map[string]chan Event),
	}, nil
}

// Subscribe hands out the event channel for a connection and seeds it with the
// current question and leaderboard snapshot. The caller must invoke cancel (or
// Disconnect) to avoid leaks.
func (a *Arena) Subscribe(ctx context.Context, connID string) (<-chan Event, func()) {
	top, err := a.scores.Top(ctx, a.topN)
	if err != nil {
		log.Printf("leaderboard snapshot for %s: %v", connID, err)
	}

	ch := make(chan Event, 16)

	a.mu.Lock()
	a.subscribers[connID] = ch
	ch <- Event{Type: EventQuestion, Payload: a.question.View()}
	ch <- Event{Type: EventLeaderboard, Payload: LeaderboardPayload{Entries: top}}
	a.mu.Unlock()

	cancel := func() {
		a.mu.Lock()
		a.unsubscribeLocked(connID)
		a.mu.Unlock()
	}
	return ch, cancel
}

// Join registers a participant for the connection. Calling it again for a
// registered connection keeps the existing score.
func (a *Arena) Join(connID, username string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.registerLocked(connID, username)
	a.broadcastLocked(Event{Type: EventUsersCount, Payload: UsersCountPayload{Count: len(a.participants)}})
}

// SubmitAnswer resolves one submission against the current question. A
// submission racing ahead of an explicit join lazily creates the participant.
// Malformed answers are just wrong answers, never errors.
func (a *Arena) SubmitAnswer(ctx context.Context, connID, username, answerText string, clientTS int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p := a.registerLocked(connID, username)

	parsed, err := strconv.ParseFloat(strings.TrimSpace(answerText), 64)
	if err != nil || parsed != a.question.Answer {
		a.sendLocked(connID, Event{Type: EventWrongAnswer, Payload: WrongAnswerPayload{Message: "Incorrect answer, try again!"}})
		return
	}

	a.attempts = append(a.attempts, domain.AttemptRecord{
		ConnID:     connID,
		Username:   p.Username,
		AnswerText: answerText,
		ClientTS:   clientTS,
		ServerTS:   a.now(),
	})

	if len(a.attempts) > 1 {
		a.sendLocked(connID, Event{Type: EventTooLate, Payload: TooLatePayload{CorrectAnswer: a.question.Answer}})
		return
	}

	// First correct submission of this epoch: the winner.
	points := a.question.Difficulty * 10
	p.Score += points
	if err := a.scores.UpsertIfHigher(ctx, p.Username, p.Score, a.now()); err != nil {
		log.Printf("high score update for %s: %v", p.Username, err)
	}

	a.broadcastLocked(Event{Type: EventWinnerAnnounced, Payload: domain.WinnerAnnouncement{
		Username:      p.Username,
		AnswerText:    answerText,
		Points:        points,
		CorrectAnswer: a.question.Answer,
	}})
	a.sendLocked(connID, Event{Type: EventYouWon, Payload: YouWonPayload{Points: points}})

	epoch := a.question.ID
	a.schedule(a.rotationDelay, func() { a.rotate(epoch) })
}

// Disconnect removes the connection's participant and subscription. The active
// question, attempt log, and high scores are untouched.
func (a *Arena) Disconnect(connID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.unsubscribeLocked(connID)
	if _, ok := a.participants[connID]; !ok {
		return
	}
	delete(a.participants, connID)
	a.broadcastLocked(Event{Type: EventUsersCount, Payload: UsersCountPayload{Count: len(a.participants)}})
}

// CurrentQuestion returns the client-safe view of the active question.
func (a *Arena) CurrentQuestion() domain.QuestionView {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.question.View()
}

// CurrentQuestionID reports the active epoch; used by the liveness probe.
func (a *Arena) CurrentQuestionID() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.question.ID
}

// TopScores is a pure read of the high-score table.
func (a *Arena) TopScores(ctx context.Context, n int) ([]domain.HighScoreEntry, error) {
	if n <= 0 {
		n = a.topN
	}
	return a.scores.Top(ctx, n)
}

// UsersCount reports the number of registered participants.
func (a *Arena) UsersCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.participants)
}

// rotate swaps in the next question if the session is still at the epoch the
// timer was armed for. A firing for a superseded epoch is silently dropped.
func (a *Arena) rotate(epoch int64) {
	ctx := context.Background()

	a.mu.Lock()
	if a.question.ID != epoch {
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	next, err := a.source.Next(ctx)
	if err != nil {
		log.Printf("next question: %v", err)
		a.schedule(a.rotationDelay, func() { a.rotate(epoch) })
		return
	}
	top, err := a.scores.Top(ctx, a.topN)
	if err != nil {
		log.Printf("leaderboard on rotation: %v", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	// Re-check: the source and store calls above ran unlocked.
	if a.question.ID != epoch {
		return
	}
	a.question = next
	a.attempts = nil
	a.broadcastLocked(Event{Type: EventQuestion, Payload: next.View()})
	a.broadcastLocked(Event{Type: EventLeaderboard, Payload: LeaderboardPayload{Entries: top}})
}

func (a *Arena) registerLocked(connID, username string) *domain.Participant {
	if p, ok := a.participants[connID]; ok {
		return p
	}
	if username == "" {
		username = "anonymous"
	}
	p := &domain.Participant{
		ConnID:   connID,
		Username: username,
		Score:    0,
		JoinedAt: a.now(),
	}
	a.participants[connID] = p
	return p
}

func (a *Arena) unsubscribeLocked(connID string) {
	if ch, ok := a.subscribers[connID]; ok {
		delete(a.subscribers, connID)
		close(ch)
	}
}

func (a *Arena) broadcastLocked(ev Event) {
	for _, ch := range a.subscribers {
		push(ch, ev)
	}
}

func (a *Arena) sendLocked(connID string, ev Event) {
	if ch, ok := a.subscribers[connID]; ok {
		push(ch, ev)
	}
}

// push never blocks the coordinator on a slow consumer: when a subscriber's
// buffer is full the oldest event is dropped to make room.
func push(ch chan Event, ev Event) {
	select {
	case ch <- ev:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}
