package app

import (
	"context"
	"strings"

	"groundedchat/internal/model"
	"groundedchat/internal/repository"
)

type QuestionnaireService struct {
	questionRepo *repository.QuestionnaireRepository
	actionRepo   *repository.SuggestedActionRepository
}

type AnswerInput struct {
	QuestionID uint   `json:"question_id"`
	Answer     string `json:"answer"`
}

type QuestionnaireView struct {
	Questions []model.QuestionnaireQuestion `json:"questions"`
	// Answers is keyed by question key.
	Answers map[string]string `json:"answers"`
}

func NewQuestionnaireService(questionRepo *repository.QuestionnaireRepository, actionRepo *repository.SuggestedActionRepository) *QuestionnaireService {
	return &QuestionnaireService{questionRepo: questionRepo, actionRepo: actionRepo}
}

func (s *QuestionnaireService) Questionnaire(ctx context.Context, userID uint) (*QuestionnaireView, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	questions, err := s.questionRepo.ListQuestions(ctx)
	if err != nil {
		return nil, err
	}
	answers, err := s.questionRepo.ListAnswers(ctx, userID)
	if err != nil {
		return nil, err
	}
	view := &QuestionnaireView{Questions: questions, Answers: make(map[string]string, len(answers))}
	for _, a := range answers {
		view.Answers[a.Key] = a.Answer
	}
	return view, nil
}

func (s *QuestionnaireService) SubmitAnswers(ctx context.Context, userID uint, input []AnswerInput) error {
	rows, err := s.answerRows(ctx, userID, input)
	if err != nil {
		return err
	}
	return s.questionRepo.CreateAnswers(ctx, rows)
}

// UpdateAnswers replaces every stored answer of the user.
func (s *QuestionnaireService) UpdateAnswers(ctx context.Context, userID uint, input []AnswerInput) error {
	rows, err := s.answerRows(ctx, userID, input)
	if err != nil {
		return err
	}
	return s.questionRepo.ReplaceAnswers(ctx, userID, rows)
}

func (s *QuestionnaireService) SuggestedActions(ctx context.Context) ([]model.SuggestedAction, error) {
	return s.actionRepo.ListActive(ctx)
}

func (s *QuestionnaireService) answerRows(ctx context.Context, userID uint, input []AnswerInput) ([]model.QuestionnaireAnswer, error) {
	if userID == 0 || len(input) == 0 {
		return nil, ErrInvalidInput
	}
	known, err := s.questionRepo.QuestionIDs(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[uint]struct{}, len(input))
	rows := make([]model.QuestionnaireAnswer, 0, len(input))
	for _, in := range input {
		if _, ok := known[in.QuestionID]; !ok {
			return nil, ErrUnknownQuestion
		}
		if _, dup := seen[in.QuestionID]; dup {
			return nil, ErrInvalidInput
		}
		seen[in.QuestionID] = struct{}{}
		rows = append(rows, model.QuestionnaireAnswer{
			UserID:     userID,
			QuestionID: in.QuestionID,
			Answer:     strings.TrimSpace(in.Answer),
		})
	}
	return rows, nil
}
