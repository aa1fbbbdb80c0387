package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"teamtrivia/engine"
)

func TestCreateGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	game, err := f.svc.CreateGame(ctx, &CreateGameRequest{HostName: "  Quizmaster "})
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if len(game.Code) != codeLength || strings.ToUpper(game.Code) != game.Code {
		t.Errorf("code = %q, want %d upper-case characters", game.Code, codeLength)
	}
	if game.HostName != "Quizmaster" {
		t.Errorf("host = %q", game.HostName)
	}
	if game.Phase != engine.PhaseLobby {
		t.Errorf("phase = %s, want LOBBY", game.Phase)
	}
	if game.ID == "" {
		t.Error("expected an id")
	}

	if _, err := f.svc.CreateGame(ctx, &CreateGameRequest{HostName: "   "}); !errors.Is(err, engine.ErrValidation) {
		t.Errorf("blank host: err = %v, want validation", err)
	}
}

func TestJoinByCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	game := f.createGame(t)
	f.addTeam(t, game.ID, "Owls")

	joined, err := f.svc.JoinByCode(ctx, &JoinGameRequest{Code: strings.ToLower(game.Code)})
	if err != nil {
		t.Fatalf("JoinByCode: %v", err)
	}
	if joined.ID != game.ID {
		t.Errorf("joined %s, want %s", joined.ID, game.ID)
	}
	if len(joined.Teams) != 1 || joined.Teams[0].Name != "Owls" {
		t.Errorf("teams = %+v", joined.Teams)
	}

	if _, err := f.svc.JoinByCode(ctx, &JoinGameRequest{Code: "ZZZZZZ"}); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("unknown code: err = %v, want not found", err)
	}
}

func TestAddTeam(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	game := f.createGame(t)

	first := f.addTeam(t, game.ID, "Owls")
	second := f.addTeam(t, game.ID, "Foxes")
	if first.Color != "hsl(0, 70%, 50%)" || second.Color != "hsl(45, 70%, 50%)" {
		t.Errorf("colors = %q, %q", first.Color, second.Color)
	}
	if f.notifier.count() != 2 {
		t.Errorf("notifications = %d, want 2", f.notifier.count())
	}

	_, err := f.svc.AddTeam(ctx, game.ID, &AddTeamRequest{Name: " owls "})
	if !errors.Is(err, engine.ErrConflict) {
		t.Errorf("duplicate name: err = %v, want conflict", err)
	}
	_, err = f.svc.AddTeam(ctx, game.ID, &AddTeamRequest{Name: ""})
	if !errors.Is(err, engine.ErrValidation) {
		t.Errorf("empty name: err = %v, want validation", err)
	}
	_, err = f.svc.AddTeam(ctx, "missing", &AddTeamRequest{Name: "Bats"})
	if !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("unknown game: err = %v, want not found", err)
	}

	if _, err := f.svc.StartGame(ctx, game.ID); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	_, err = f.svc.AddTeam(ctx, game.ID, &AddTeamRequest{Name: "Latecomers"})
	if !errors.Is(err, engine.ErrPrecondition) {
		t.Errorf("join after start: err = %v, want precondition", err)
	}
}

func TestStartGameNeedsTwoTeams(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	game := f.createGame(t)
	f.addTeam(t, game.ID, "Owls")

	before := f.notifier.count()
	if _, err := f.svc.StartGame(ctx, game.ID); !errors.Is(err, engine.ErrPrecondition) {
		t.Fatalf("err = %v, want precondition", err)
	}
	if got := f.game(t, game.ID).Phase; got != engine.PhaseLobby {
		t.Errorf("phase = %s, want LOBBY", got)
	}
	if f.notifier.count() != before {
		t.Error("failed start must not notify")
	}

	f.addTeam(t, game.ID, "Foxes")
	desc, err := f.svc.StartGame(ctx, game.ID)
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if desc.Phase != engine.PhasePlaying || !desc.Changed {
		t.Errorf("desc = %+v", desc)
	}
	if got := f.game(t, game.ID); got.CurrentRound != 0 || got.CurrentQuestion != 0 {
		t.Errorf("cursor = %d/%d", got.CurrentRound, got.CurrentQuestion)
	}
}

func TestAdvanceThroughGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	game, _ := f.startedGame(t, "Owls", "Foxes")

	steps := []struct {
		advance  func() (*PhaseDescriptor, error)
		phase    engine.Phase
		round    int
		question int
	}{
		{func() (*PhaseDescriptor, error) { return f.svc.Advance(ctx, game.ID) }, engine.PhasePlaying, 0, 1},
		{func() (*PhaseDescriptor, error) { return f.svc.Advance(ctx, game.ID) }, engine.PhaseBetweenRounds, 1, 0},
		{func() (*PhaseDescriptor, error) { return f.svc.StartNextRound(ctx, game.ID) }, engine.PhasePlaying, 1, 0},
		{func() (*PhaseDescriptor, error) { return f.svc.Advance(ctx, game.ID) }, engine.PhaseFinished, 1, 0},
	}
	for i, step := range steps {
		desc, err := step.advance()
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if desc.Phase != step.phase || desc.CurrentRound != step.round || desc.CurrentQuestion != step.question {
			t.Fatalf("step %d: got %s %d/%d, want %s %d/%d", i,
				desc.Phase, desc.CurrentRound, desc.CurrentQuestion, step.phase, step.round, step.question)
		}
		stored := f.game(t, game.ID)
		if stored.Phase != step.phase || stored.CurrentRound != step.round || stored.CurrentQuestion != step.question {
			t.Fatalf("step %d: stored %s %d/%d", i, stored.Phase, stored.CurrentRound, stored.CurrentQuestion)
		}
	}

	before := f.notifier.count()
	desc, err := f.svc.Advance(ctx, game.ID)
	if err != nil {
		t.Fatalf("advance when finished: %v", err)
	}
	if desc.Changed || desc.Phase != engine.PhaseFinished {
		t.Errorf("desc = %+v, want unchanged FINISHED", desc)
	}
	if f.notifier.count() != before {
		t.Error("unchanged advance must not notify")
	}
}

func TestAdvanceRejectedInLobby(t *testing.T) {
	f := newFixture(t)
	game := f.createGame(t)
	if _, err := f.svc.Advance(context.Background(), game.ID); !errors.Is(err, engine.ErrPrecondition) {
		t.Errorf("err = %v, want precondition", err)
	}
	if _, err := f.svc.Advance(context.Background(), "missing"); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestStartTimerUsesRoundDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	game, _ := f.startedGame(t, "Owls", "Foxes")

	desc, err := f.svc.StartTimer(ctx, game.ID, &StartTimerRequest{})
	if err != nil {
		t.Fatalf("StartTimer: %v", err)
	}
	want := f.clock.Now().Add(30 * time.Second)
	if desc.TimerEndsAt == nil || !desc.TimerEndsAt.Equal(want) {
		t.Errorf("ends at %v, want %v", desc.TimerEndsAt, want)
	}

	desc, err = f.svc.StartTimer(ctx, game.ID, &StartTimerRequest{Seconds: 5})
	if err != nil {
		t.Fatalf("StartTimer: %v", err)
	}
	if got := desc.TimeRemaining(f.clock.Now()); got != 5*time.Second {
		t.Errorf("remaining = %v, want 5s", got)
	}

	if _, err := f.svc.StartTimer(ctx, game.ID, &StartTimerRequest{Seconds: -1}); !errors.Is(err, engine.ErrValidation) {
		t.Errorf("negative: err = %v, want validation", err)
	}
}

func TestRevealOnlyChangesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	game, _ := f.startedGame(t, "Owls", "Foxes")

	desc, err := f.svc.Reveal(ctx, game.ID)
	if err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	if !desc.Changed || !desc.ShowResults {
		t.Errorf("first reveal = %+v", desc)
	}
	desc, err = f.svc.Reveal(ctx, game.ID)
	if err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	if desc.Changed {
		t.Error("second reveal should be unchanged")
	}
}

func TestGetViewHidesAnswerUntilReveal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	game, teams := f.startedGame(t, "Owls", "Foxes")

	if _, err := f.svc.StartTimer(ctx, game.ID, &StartTimerRequest{Seconds: 10}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.SubmitAnswer(ctx, game.ID, &SubmitAnswerRequest{
		TeamID: teams[0].ID, RoundID: intPtr(0), QuestionID: intPtr(0), AnswerIndex: intPtr(1),
	}); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}

	view, err := f.svc.GetView(ctx, game.ID)
	if err != nil {
		t.Fatalf("GetView: %v", err)
	}
	if view.Reveal != nil || view.Answers != nil {
		t.Error("answer visible before reveal")
	}
	if !view.AcceptingAnswers || view.TimeRemaining != 10 {
		t.Errorf("accepting = %v remaining = %d", view.AcceptingAnswers, view.TimeRemaining)
	}
	if view.Teams[0].ID != teams[0].ID || !view.Teams[0].Answered || view.Teams[1].Answered {
		t.Errorf("teams = %+v", view.Teams)
	}

	f.clock.Advance(10 * time.Second)
	view, err = f.svc.GetView(ctx, game.ID)
	if err != nil {
		t.Fatalf("GetView: %v", err)
	}
	if view.AcceptingAnswers {
		t.Error("still accepting after expiry")
	}
	if view.Reveal == nil || view.Reveal.CorrectIndex == nil || *view.Reveal.CorrectIndex != 1 {
		t.Fatalf("reveal = %+v", view.Reveal)
	}
	if len(view.Answers) != 1 || !view.Answers[0].IsCorrect {
		t.Errorf("answers = %+v", view.Answers)
	}

	if _, err := f.svc.GetView(ctx, "missing"); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}
