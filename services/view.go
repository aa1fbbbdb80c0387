package services

import (
	"math"
	"sort"
	"time"

	"teamtrivia/catalog"
	"teamtrivia/engine"
	"teamtrivia/models"
)

// GameView is everything a host screen or team device renders. It is a pure
// function of the stored rows, the catalog and the clock, so any client can
// re-fetch it at any moment and see the same thing.
type GameView struct {
	GameID           string                  `json:"game_id"`
	Code             string                  `json:"code"`
	HostName         string                  `json:"host_name"`
	Phase            engine.Phase            `json:"phase"`
	CurrentRound     int                     `json:"current_round"`
	CurrentQuestion  int                     `json:"current_question"`
	TotalRounds      int                     `json:"total_rounds"`
	TotalQuestions   int                     `json:"total_questions"`
	Round            *RoundInfo              `json:"round,omitempty"`
	Question         *catalog.PublicQuestion `json:"question,omitempty"`
	TimerStarted     bool                    `json:"timer_started"`
	TimerEndsAt      *time.Time              `json:"timer_ends_at,omitempty"`
	TimeRemaining    int                     `json:"time_remaining"` // seconds
	AcceptingAnswers bool                    `json:"accepting_answers"`
	ShowResults      bool                    `json:"show_results"`
	Reveal           *QuestionReveal         `json:"reveal,omitempty"`
	Teams            []TeamView              `json:"teams"`
	Answers          []AnswerView            `json:"answers,omitempty"`
	Leaders          []string                `json:"leaders,omitempty"`
	FinalResolved    bool                    `json:"final_resolved"`
}

type RoundInfo struct {
	Title             string `json:"title"`
	Theme             string `json:"theme"`
	Emoji             string `json:"emoji,omitempty"`
	PointsPerQuestion int    `json:"points_per_question"`
	TimerSeconds      int    `json:"timer_seconds"`
	QuestionCount     int    `json:"question_count"`
}

// QuestionReveal is only filled once the host revealed or the timer ran out.
type QuestionReveal struct {
	CorrectIndex *int   `json:"correct_index,omitempty"`
	Target       *int   `json:"target,omitempty"`
	Explanation  string `json:"explanation,omitempty"`
}

type TeamView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    string `json:"color"`
	Score     int    `json:"score"`
	Answered  bool   `json:"answered"`
	Connected bool   `json:"connected"`
}

type AnswerView struct {
	TeamID        string  `json:"team_id"`
	AnswerIndex   *int    `json:"answer_index,omitempty"`
	TextAnswer    *string `json:"text_answer,omitempty"`
	IsCorrect     bool    `json:"is_correct"`
	PointsAwarded int     `json:"points_awarded"`
}

func BuildView(game *models.Game, teams []models.Team, answers []models.Answer, cat *catalog.Catalog, now time.Time) GameView {
	state := game.State()

	view := GameView{
		GameID:          game.ID,
		Code:            game.Code,
		HostName:        game.HostName,
		Phase:           game.Phase,
		CurrentRound:    game.CurrentRound,
		CurrentQuestion: game.CurrentQuestion,
		TotalRounds:     len(cat.Rounds),
		TotalQuestions:  cat.TotalQuestions(),
		TimerStarted:    state.TimerStarted(),
		TimerEndsAt:     game.TimerEndsAt,
		TimeRemaining:   int(math.Ceil(state.TimeRemaining(now).Seconds())),
		ShowResults:     game.ShowResults,
		FinalResolved:   game.FinalResolvedAt != nil,
		Teams:           make([]TeamView, 0, len(teams)),
	}

	answered := make(map[string]models.Answer)
	for _, a := range answers {
		if a.RoundIndex == game.CurrentRound && a.QuestionIndex == game.CurrentQuestion {
			answered[a.TeamID] = a
		}
	}

	if round, question, err := cat.Question(game.CurrentRound, game.CurrentQuestion); err == nil && game.Phase != engine.PhaseLobby {
		view.Round = &RoundInfo{
			Title:             round.Title,
			Theme:             round.Theme,
			Emoji:             round.Emoji,
			PointsPerQuestion: round.PointsPerQuestion,
			TimerSeconds:      round.TimerSeconds,
			QuestionCount:     len(round.Questions),
		}

		if game.Phase == engine.PhasePlaying {
			pq := question.Public()
			view.Question = &pq
			view.AcceptingAnswers = state.AcceptingAnswers(now)

			if state.RevealEligible(now) {
				view.Reveal = revealFor(question)
				view.Answers = make([]AnswerView, 0, len(answered))
				for _, t := range teams {
					if a, ok := answered[t.ID]; ok {
						view.Answers = append(view.Answers, AnswerView{
							TeamID:        a.TeamID,
							AnswerIndex:   a.AnswerIndex,
							TextAnswer:    a.TextAnswer,
							IsCorrect:     a.IsCorrect,
							PointsAwarded: a.PointsAwarded,
						})
					}
				}
			}
		}
	}

	for _, t := range teams {
		_, ok := answered[t.ID]
		view.Teams = append(view.Teams, TeamView{
			ID:       t.ID,
			Name:     t.Name,
			Color:    t.Color,
			Score:    t.Score,
			Answered: ok && game.Phase == engine.PhasePlaying,
		})
	}
	sortTeams(view.Teams, teams)

	if game.Phase == engine.PhaseFinished {
		view.Leaders = Leaders(teams)
	}

	return view
}

func revealFor(q *catalog.Question) *QuestionReveal {
	r := &QuestionReveal{Explanation: q.Explanation}
	if q.IsOpenEnded() {
		target := q.Target
		r.Target = &target
	} else {
		correct := q.CorrectIndex
		r.CorrectIndex = &correct
	}
	return r
}

// sortTeams orders by score, highest first, keeping join order among equals.
func sortTeams(views []TeamView, teams []models.Team) {
	joined := make(map[string]time.Time, len(teams))
	for _, t := range teams {
		joined[t.ID] = t.JoinedAt
	}
	sort.SliceStable(views, func(i, j int) bool {
		if views[i].Score != views[j].Score {
			return views[i].Score > views[j].Score
		}
		return joined[views[i].ID].Before(joined[views[j].ID])
	})
}

// Leaders returns the ids of every team tied for the top score.
func Leaders(teams []models.Team) []string {
	if len(teams) == 0 {
		return nil
	}
	top := teams[0].Score
	for _, t := range teams[1:] {
		if t.Score > top {
			top = t.Score
		}
	}
	var ids []string
	for _, t := range teams {
		if t.Score == top {
			ids = append(ids, t.ID)
		}
	}
	return ids
}
