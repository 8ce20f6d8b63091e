package model

// All lists every persisted model for AutoMigrate.
func All() []any {
	return []any{
		&User{},
		&Chat{},
		&Message{},
		&Document{},
		&DocumentChunk{},
		&ChatHistory{},
		&QuestionnaireQuestion{},
		&QuestionnaireAnswer{},
		&SuggestedAction{},
	}
}
