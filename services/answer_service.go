package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"teamtrivia/catalog"
	"teamtrivia/engine"
	"teamtrivia/models"

	"gorm.io/gorm"
)

type SubmitAnswerRequest struct {
	TeamID      string  `json:"team_id"`
	RoundID     *int    `json:"round_id"`
	QuestionID  *int    `json:"question_id"`
	AnswerIndex *int    `json:"answer_index"`
	TextAnswer  *string `json:"text_answer"`
}

type SubmitResult struct {
	Accepted      bool           `json:"accepted"`
	IsCorrect     bool           `json:"is_correct"`
	PointsAwarded int            `json:"points_awarded"`
	Answer        *models.Answer `json:"answer"`
}

func (r *SubmitAnswerRequest) validate() error {
	var missing []string
	if strings.TrimSpace(r.TeamID) == "" {
		missing = append(missing, "team_id")
	}
	if r.RoundID == nil {
		missing = append(missing, "round_id")
	}
	if r.QuestionID == nil {
		missing = append(missing, "question_id")
	}
	hasText := r.TextAnswer != nil && strings.TrimSpace(*r.TextAnswer) != ""
	if r.AnswerIndex == nil && !hasText {
		missing = append(missing, "answer_index or text_answer")
	}
	if len(missing) > 0 {
		return engine.Validationf("missing required fields: %s", strings.Join(missing, ", "))
	}
	if r.AnswerIndex != nil && r.TextAnswer != nil {
		return engine.Validationf("answer_index and text_answer are mutually exclusive")
	}
	return nil
}

// SubmitAnswer is the intake gate: it checks the submission, scores it and
// records it together with the team's score increment in one transaction.
func (s *GameService) SubmitAnswer(ctx context.Context, gameID string, req *SubmitAnswerRequest) (*SubmitResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	game, err := s.loadGame(db, gameID)
	if err != nil {
		return nil, err
	}

	var team models.Team
	if err := db.Where("id = ? AND game_id = ?", req.TeamID, gameID).First(&team).Error; err != nil {
		return nil, notFound(err, "team not found in this game")
	}

	round, question, err := s.catalog.Question(*req.RoundID, *req.QuestionID)
	if err != nil {
		return nil, err
	}

	answer := models.Answer{
		GameID:        gameID,
		TeamID:        team.ID,
		RoundIndex:    *req.RoundID,
		QuestionIndex: *req.QuestionID,
		QuestionRef:   question.ID,
	}

	switch {
	case question.IsOpenEnded():
		if req.TextAnswer == nil {
			return nil, engine.Validationf("question %d expects a text answer", question.ID)
		}
		// Open-ended answers earn nothing here; the closest-guess resolution awards them.
		text := strings.TrimSpace(*req.TextAnswer)
		answer.TextAnswer = &text
	default:
		if req.AnswerIndex == nil {
			return nil, engine.Validationf("question %d expects an option index", question.ID)
		}
		if *req.AnswerIndex < 0 || *req.AnswerIndex >= len(question.Options) {
			return nil, engine.Validationf("option %d out of range for question %d", *req.AnswerIndex, question.ID)
		}
		idx := *req.AnswerIndex
		answer.AnswerIndex = &idx
		answer.IsCorrect = engine.IsCorrectChoice(&idx, question.CorrectIndex)
		answer.PointsAwarded = engine.ScoreChoice(&idx, question.CorrectIndex, round.PointsPerQuestion)
	}

	var existing int64
	if err := db.Model(&models.Answer{}).
		Where("game_id = ? AND team_id = ? AND round_index = ? AND question_index = ?",
			gameID, team.ID, answer.RoundIndex, answer.QuestionIndex).
		Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to check for previous answer: %w", err)
	}
	if existing > 0 {
		return nil, errDuplicateAnswer()
	}

	if err := answerWindowOpen(game, answer.RoundIndex, answer.QuestionIndex, question.IsOpenEnded(), s.now()); err != nil {
		return nil, err
	}

	if err := db.Transaction(func(tx *gorm.DB) error {
		if question.IsOpenEnded() {
			current, err := s.loadGame(tx, gameID)
			if err != nil {
				return err
			}
			if current.FinalResolvedAt != nil {
				return errFinalResolved()
			}
		}
		return recordAnswer(tx, &answer)
	}); err != nil {
		return nil, err
	}

	s.logger.Info("answer accepted",
		"game_id", gameID,
		"team_id", team.ID,
		"round", answer.RoundIndex,
		"question", answer.QuestionIndex,
		"correct", answer.IsCorrect,
		"points", answer.PointsAwarded,
	)
	s.notifier.GameChanged(ctx, gameID)

	return &SubmitResult{
		Accepted:      true,
		IsCorrect:     answer.IsCorrect,
		PointsAwarded: answer.PointsAwarded,
		Answer:        &answer,
	}, nil
}

// answerWindowOpen is the timing half of the intake gate. Only the question
// under the cursor takes answers, and only while its timer runs and before
// the reveal.
func answerWindowOpen(game *models.Game, round, question int, openEnded bool, now time.Time) error {
	state := game.State()
	switch {
	case game.Phase != engine.PhasePlaying:
		return engine.Preconditionf("game is not accepting answers (phase %s)", game.Phase)
	case !state.OnQuestion(round, question):
		return engine.Preconditionf("round %d question %d is not the current question", round, question)
	case openEnded && game.FinalResolvedAt != nil:
		return errFinalResolved()
	case !state.TimerStarted():
		return engine.Preconditionf("the timer for this question has not started")
	case game.ShowResults:
		return engine.Preconditionf("the answer has already been revealed")
	case state.TimerExpired(now):
		return engine.Preconditionf("time is up for this question")
	}
	return nil
}

func errFinalResolved() error {
	return engine.Preconditionf("the final round has already been resolved")
}

// recordAnswer inserts the answer and bumps the team's score inside tx. A
// second writer for the same tuple hits the unique index and gets a
// ConflictError; its transaction then rolls back leaving the score alone.
func recordAnswer(tx *gorm.DB, answer *models.Answer) error {
	if err := tx.Create(answer).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errDuplicateAnswer()
		}
		return fmt.Errorf("failed to record answer: %w", err)
	}
	if answer.PointsAwarded == 0 {
		return nil
	}
	return incrementScore(tx, answer.TeamID, answer.PointsAwarded)
}

func incrementScore(tx *gorm.DB, teamID string, points int) error {
	res := tx.Model(&models.Team{}).Where("id = ?", teamID).
		Update("score", gorm.Expr("score + ?", points))
	if res.Error != nil {
		return fmt.Errorf("failed to update team score: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return engine.NotFoundf("team %s not found", teamID)
	}
	return nil
}

func errDuplicateAnswer() error {
	return engine.Conflictf("answer already submitted for this question")
}

// FinalResult is a closest-without-going-over resolution with the names
// needed to render it.
type FinalResult struct {
	engine.Resolution
	Round      int               `json:"round"`
	Question   int               `json:"question"`
	Points     int               `json:"points"`
	TeamNames  map[string]string `json:"team_names"`
	Applied    bool              `json:"applied"`
	ResolvedAt *time.Time        `json:"resolved_at,omitempty"`
}

type FinalizeRequest struct {
	Round    *int `json:"round"`
	Question *int `json:"question"`
}

// PreviewFinal resolves the open-ended question from the stored guesses
// without writing anything.
func (s *GameService) PreviewFinal(ctx context.Context, gameID string, round, question int) (*FinalResult, error) {
	db := s.db.WithContext(ctx)

	game, err := s.loadGame(db, gameID)
	if err != nil {
		return nil, err
	}
	r, q, err := s.openEndedQuestion(round, question)
	if err != nil {
		return nil, err
	}

	result, err := s.resolveFinal(db, game.ID, round, question, r, q)
	if err != nil {
		return nil, err
	}
	if game.FinalResolvedAt != nil {
		if err := useStoredWinners(db, result, game.ID); err != nil {
			return nil, err
		}
		result.ResolvedAt = game.FinalResolvedAt
	}
	return result, nil
}

// FinalizeFinal awards the open-ended question's points to its winners. It
// applies at most once per game: later calls return the same resolution with
// Applied false and award nothing.
func (s *GameService) FinalizeFinal(ctx context.Context, gameID string, req *FinalizeRequest) (*FinalResult, error) {
	if req.Round == nil || req.Question == nil {
		return nil, engine.Validationf("round and question are required")
	}
	roundIdx, questionIdx := *req.Round, *req.Question

	r, q, err := s.openEndedQuestion(roundIdx, questionIdx)
	if err != nil {
		return nil, err
	}

	var result *FinalResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		game, err := s.loadGame(tx, gameID)
		if err != nil {
			return err
		}
		if game.Phase == engine.PhaseLobby {
			return engine.Preconditionf("game has not started")
		}
		if !game.State().QuestionClosed(roundIdx, questionIdx, s.now()) {
			return engine.Preconditionf("round %d question %d is still open; reveal it or let the timer run out first", roundIdx, questionIdx)
		}

		result, err = s.resolveFinal(tx, gameID, roundIdx, questionIdx, r, q)
		if err != nil {
			return err
		}

		now := s.now()
		claim := tx.Model(&models.Game{}).
			Where("id = ? AND final_resolved_at IS NULL", gameID).
			Update("final_resolved_at", now)
		if claim.Error != nil {
			return fmt.Errorf("failed to mark final round resolved: %w", claim.Error)
		}
		if claim.RowsAffected == 0 {
			result.ResolvedAt = game.FinalResolvedAt
			return useStoredWinners(tx, result, gameID)
		}

		for _, teamID := range result.Winners {
			if err := tx.Model(&models.Answer{}).
				Where("game_id = ? AND team_id = ? AND round_index = ? AND question_index = ?",
					gameID, teamID, roundIdx, questionIdx).
				Updates(map[string]any{"is_correct": true, "points_awarded": r.PointsPerQuestion}).Error; err != nil {
				return fmt.Errorf("failed to mark winning answer: %w", err)
			}
			if err := incrementScore(tx, teamID, r.PointsPerQuestion); err != nil {
				return err
			}
		}

		result.Applied = true
		result.ResolvedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Applied {
		s.logger.Info("final round resolved",
			"game_id", gameID,
			"winners", result.Winners,
			"all_over", result.AllOver,
			"points", result.Points,
		)
		s.notifier.GameChanged(ctx, gameID)
	}
	return result, nil
}

func (s *GameService) openEndedQuestion(round, question int) (*catalog.Round, *catalog.Question, error) {
	r, q, err := s.catalog.Question(round, question)
	if err != nil {
		return nil, nil, err
	}
	if !q.IsOpenEnded() {
		return nil, nil, engine.Validationf("round %d question %d is not an open-ended question", round, question)
	}
	return r, q, nil
}

func (s *GameService) resolveFinal(tx *gorm.DB, gameID string, round, question int, r *catalog.Round, q *catalog.Question) (*FinalResult, error) {
	var answers []models.Answer
	if err := tx.Where("game_id = ? AND round_index = ? AND question_index = ? AND text_answer IS NOT NULL",
		gameID, round, question).
		Preload("Team").
		Order("id").
		Find(&answers).Error; err != nil {
		return nil, fmt.Errorf("failed to load guesses: %w", err)
	}

	guesses := make([]engine.Guess, 0, len(answers))
	names := make(map[string]string, len(answers))
	for _, a := range answers {
		guesses = append(guesses, engine.Guess{TeamID: a.TeamID, Raw: *a.TextAnswer})
		names[a.TeamID] = a.Team.Name
	}

	return &FinalResult{
		Resolution: engine.ResolveClosest(guesses, q.Target),
		Round:      round,
		Question:   question,
		Points:     r.PointsPerQuestion,
		TeamNames:  names,
	}, nil
}

// useStoredWinners replaces the re-derived winners with the teams that were
// actually awarded, so a resolved final always reports what the scores show.
func useStoredWinners(tx *gorm.DB, result *FinalResult, gameID string) error {
	winners := []string{}
	if err := tx.Model(&models.Answer{}).
		Where("game_id = ? AND round_index = ? AND question_index = ? AND is_correct = ?",
			gameID, result.Round, result.Question, true).
		Order("id").
		Pluck("team_id", &winners).Error; err != nil {
		return fmt.Errorf("failed to load awarded answers: %w", err)
	}
	if winners == nil {
		winners = []string{}
	}
	result.Winners = winners
	return nil
}
