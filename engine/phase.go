package engine

import "time"

// Phase is the coarse state of a game.
type Phase string

const (
	PhaseLobby         Phase = "LOBBY"
	PhasePlaying       Phase = "PLAYING"
	PhaseBetweenRounds Phase = "BETWEEN_ROUNDS"
	PhaseFinished      Phase = "FINISHED"
)

// MinTeams is the number of teams required before a game can start.
const MinTeams = 2

func (p Phase) String() string {
	return string(p)
}

// Shape describes how many questions each round holds. Shape[i] is the
// question count of round i.
type Shape []int

// State is the part of a game the phase machine owns. Transitions never
// mutate the receiver; they return the next state.
type State struct {
	Phase           Phase      `json:"phase"`
	CurrentRound    int        `json:"current_round"`
	CurrentQuestion int        `json:"current_question"`
	TimerEndsAt     *time.Time `json:"timer_ends_at,omitempty"`
	ShowResults     bool       `json:"show_results"`
}

func NewState() State {
	return State{Phase: PhaseLobby}
}

// Start moves a lobby to the first question of the first round.
func (s State) Start(teamCount int) (State, error) {
	if s.Phase != PhaseLobby {
		return s, Preconditionf("game already started (phase %s)", s.Phase)
	}
	if teamCount < MinTeams {
		return s, Preconditionf("at least %d teams are required to start, have %d", MinTeams, teamCount)
	}

	return State{Phase: PhasePlaying}, nil
}

// Advance moves the cursor to the next question, to the break before the next
// round, or to the end of the game. At FINISHED it reports no change, so the
// game finishes exactly once no matter how often it is called.
func (s State) Advance(shape Shape) (next State, changed bool, err error) {
	switch s.Phase {
	case PhaseFinished:
		return s, false, nil
	case PhasePlaying:
	default:
		return s, false, Preconditionf("cannot advance while %s", s.Phase)
	}

	next = State{
		Phase:           PhasePlaying,
		CurrentRound:    s.CurrentRound,
		CurrentQuestion: s.CurrentQuestion,
	}

	switch {
	case s.CurrentRound < len(shape) && s.CurrentQuestion+1 < shape[s.CurrentRound]:
		next.CurrentQuestion++
	case s.CurrentRound+1 < len(shape):
		next.CurrentRound++
		next.CurrentQuestion = 0
		next.Phase = PhaseBetweenRounds
	default:
		next.Phase = PhaseFinished
	}

	return next, true, nil
}

// StartNextRound resumes play after a round break. The cursor was already
// moved by Advance.
func (s State) StartNextRound() (State, error) {
	if s.Phase != PhaseBetweenRounds {
		return s, Preconditionf("no round break to leave (phase %s)", s.Phase)
	}
	s.Phase = PhasePlaying
	return s, nil
}

// StartTimer sets an absolute deadline for the current question and hides
// results again.
func (s State) StartTimer(now time.Time, d time.Duration) (State, error) {
	if s.Phase != PhasePlaying {
		return s, Preconditionf("timer can only run while playing (phase %s)", s.Phase)
	}
	if d <= 0 {
		return s, Validationf("timer duration must be positive")
	}
	deadline := now.Add(d)
	s.TimerEndsAt = &deadline
	s.ShowResults = false
	return s, nil
}

// Reveal exposes the correct answer. It may happen before the timer runs out
// and never advances the game.
func (s State) Reveal() (State, error) {
	if s.Phase != PhasePlaying {
		return s, Preconditionf("nothing to reveal (phase %s)", s.Phase)
	}
	s.ShowResults = true
	return s, nil
}

// TimeRemaining is max(0, deadline-now). Without a deadline it is zero and
// TimerStarted reports false.
func (s State) TimeRemaining(now time.Time) time.Duration {
	if s.TimerEndsAt == nil {
		return 0
	}
	if left := s.TimerEndsAt.Sub(now); left > 0 {
		return left
	}
	return 0
}

func (s State) TimerStarted() bool {
	return s.TimerEndsAt != nil
}

func (s State) TimerExpired(now time.Time) bool {
	return s.TimerEndsAt != nil && !now.Before(*s.TimerEndsAt)
}

// AcceptingAnswers reports whether a submission for the current question may
// still be taken: the host opened the window, it has not run out and the
// answer has not been revealed.
func (s State) AcceptingAnswers(now time.Time) bool {
	return s.Phase == PhasePlaying && s.TimerStarted() && !s.ShowResults && !s.TimerExpired(now)
}

// OnQuestion reports whether the cursor points at the given question.
func (s State) OnQuestion(round, question int) bool {
	return s.CurrentRound == round && s.CurrentQuestion == question
}

// QuestionClosed reports whether play on the given question is over: the
// cursor moved past it, the game finished on it, or it is current and
// reveal eligible.
func (s State) QuestionClosed(round, question int, now time.Time) bool {
	switch {
	case s.Phase == PhaseLobby:
		return false
	case s.CurrentRound > round, s.CurrentRound == round && s.CurrentQuestion > question:
		return true
	case s.OnQuestion(round, question):
		return s.Phase == PhaseFinished || s.RevealEligible(now)
	}
	return false
}

// RevealEligible reports whether the correct answer may be shown: the host
// revealed it or the timer ran out.
func (s State) RevealEligible(now time.Time) bool {
	return s.ShowResults || s.TimerExpired(now)
}
