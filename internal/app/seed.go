package app

import (
	"context"

	"groundedchat/internal/model"
	"groundedchat/internal/repository"
)

func DefaultQuestions() []model.QuestionnaireQuestion {
	return []model.QuestionnaireQuestion{
		{Key: "purpose", Question: "What is the main purpose of your knowledge base?", Placeholder: "e.g. answering customer support questions", SortOrder: 1, IsRequired: true},
		{Key: "expertise", Question: "What is your area of expertise?", Placeholder: "e.g. tax law, cloud infrastructure", SortOrder: 2, IsRequired: true},
		{Key: "interests", Question: "Which topics should answers focus on?", Placeholder: "e.g. pricing, onboarding, troubleshooting", SortOrder: 3, IsRequired: true},
		{Key: "preferred_style", Question: "How should answers be written?", Placeholder: "e.g. concise bullet points, formal tone", SortOrder: 4, IsRequired: true},
	}
}

func DefaultSuggestedActions() []model.SuggestedAction {
	return []model.SuggestedAction{
		{Title: "Summarize", Label: "my uploaded documents", Action: "Summarize the key points of my uploaded documents.", IsActive: true, SortOrder: 1},
		{Title: "Find", Label: "a specific policy", Action: "What does the documentation say about the refund policy?", IsActive: true, SortOrder: 2},
		{Title: "Compare", Label: "two documents", Action: "What are the main differences between my two most recent documents?", IsActive: true, SortOrder: 3},
		{Title: "Explain", Label: "a term from my files", Action: "Explain the most important terms used in my documents.", IsActive: true, SortOrder: 4},
	}
}

// Seed fills the questionnaire and suggested action tables when they are empty.
func Seed(ctx context.Context, questions *repository.QuestionnaireRepository, actions *repository.SuggestedActionRepository) error {
	if err := questions.SeedQuestions(ctx, DefaultQuestions()); err != nil {
		return err
	}
	return actions.Seed(ctx, DefaultSuggestedActions())
}
