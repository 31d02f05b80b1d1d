package match

import (
	"sync"

	"github.com/google/uuid"

	"mathduel/internal/models"
)

// Participant identifies one player entering a match.
type Participant struct {
	ID          uuid.UUID
	DisplayName string
	Rating      int
}

// PlayerProgress tracks one player's live state within a match. Mutated only
// by that player's own submissions; CurrentQuestion never decreases.
type PlayerProgress struct {
	PlayerID        uuid.UUID `json:"id"`
	DisplayName     string    `json:"displayName"`
	Score           int       `json:"score"`
	CurrentQuestion int       `json:"currentQuestion"`
}

// Session is the live, in-memory record of one ongoing match. All access to
// mutable state goes through its mutex; the session lock is only ever
// acquired on its own, never while holding the queue lock.
type Session struct {
	mu sync.Mutex

	MatchID   uuid.UUID
	Questions []models.Question

	player1 PlayerProgress
	player2 PlayerProgress
	status  models.MatchStatus
	winner  *uuid.UUID

	// firstFinisher records which player exhausted the question sequence
	// first; used only as the score tie-break.
	firstFinisher *uuid.UUID
}

// AnswerResult describes the effect of one accepted submission.
type AnswerResult struct {
	Correct         bool
	NewScore        int
	CurrentQuestion int
	// Finished is set when this submission advanced the player past the last
	// question.
	Finished bool
}

// Outcome is the adjudicated result of a finished match.
type Outcome struct {
	MatchID       uuid.UUID
	Player1       PlayerProgress
	Player2       PlayerProgress
	WinnerID      *uuid.UUID
	FirstToFinish *uuid.UUID
}

// Draw reports whether the match ended with no winner.
func (o Outcome) Draw() bool {
	return o.WinnerID == nil
}

func newSession(matchID uuid.UUID, p1, p2 Participant, qs []models.Question) *Session {
	return &Session{
		MatchID:   matchID,
		Questions: qs,
		player1:   PlayerProgress{PlayerID: p1.ID, DisplayName: p1.DisplayName},
		player2:   PlayerProgress{PlayerID: p2.ID, DisplayName: p2.DisplayName},
		status:    models.MatchStatusInProgress,
	}
}

// ApplyAnswer validates and applies one submission. It returns ok=false when
// the submission must be silently dropped: finished session, unknown player,
// out-of-range index, or replay of an already-answered index.
func (s *Session) ApplyAnswer(playerID uuid.UUID, questionIndex, answer int) (AnswerResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != models.MatchStatusInProgress {
		return AnswerResult{}, false
	}
	if questionIndex < 0 || questionIndex >= len(s.Questions) {
		return AnswerResult{}, false
	}
	progress := s.progressForLocked(playerID)
	if progress == nil {
		return AnswerResult{}, false
	}
	if questionIndex < progress.CurrentQuestion {
		// Replaying an answered index would let a client inflate its score.
		return AnswerResult{}, false
	}

	correct := s.Questions[questionIndex].Answer == answer
	if correct {
		progress.Score++
	} else if progress.Score > 0 {
		progress.Score--
	}
	progress.CurrentQuestion = questionIndex + 1

	finished := progress.CurrentQuestion >= len(s.Questions)
	if finished && s.firstFinisher == nil {
		id := playerID
		s.firstFinisher = &id
	}

	return AnswerResult{
		Correct:         correct,
		NewScore:        progress.Score,
		CurrentQuestion: progress.CurrentQuestion,
		Finished:        finished,
	}, true
}

// Finish transitions the session to its terminal state exactly once and
// adjudicates the outcome: higher score wins; equal scores go to the first
// finisher; no recorded finisher is a true draw. The second and later calls
// return ok=false.
func (s *Session) Finish() (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == models.MatchStatusFinished {
		return Outcome{}, false
	}
	s.status = models.MatchStatusFinished

	switch {
	case s.player1.Score > s.player2.Score:
		id := s.player1.PlayerID
		s.winner = &id
	case s.player2.Score > s.player1.Score:
		id := s.player2.PlayerID
		s.winner = &id
	case s.firstFinisher != nil:
		id := *s.firstFinisher
		s.winner = &id
	}

	return Outcome{
		MatchID:       s.MatchID,
		Player1:       s.player1,
		Player2:       s.player2,
		WinnerID:      s.winner,
		FirstToFinish: s.firstFinisher,
	}, true
}

// Snapshot returns a consistent copy of the session for state resync.
type Snapshot struct {
	MatchID   uuid.UUID          `json:"matchId"`
	Player1   PlayerProgress     `json:"player1"`
	Player2   PlayerProgress     `json:"player2"`
	Questions []models.Question  `json:"questions"`
	Status    models.MatchStatus `json:"status"`
	WinnerID  *uuid.UUID         `json:"winnerId,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		MatchID:   s.MatchID,
		Player1:   s.player1,
		Player2:   s.player2,
		Questions: s.Questions,
		Status:    s.status,
		WinnerID:  s.winner,
	}
}

// Players returns both participant ids.
func (s *Session) Players() (uuid.UUID, uuid.UUID) {
	return s.player1.PlayerID, s.player2.PlayerID
}

func (s *Session) progressForLocked(playerID uuid.UUID) *PlayerProgress {
	switch playerID {
	case s.player1.PlayerID:
		return &s.player1
	case s.player2.PlayerID:
		return &s.player2
	}
	return nil
}
