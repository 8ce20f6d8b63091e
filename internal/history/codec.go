package history

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"groundedchat/internal/model"
	"groundedchat/internal/rag"
)

// Encode serializes a record for the queue.
func Encode(rec rag.HistoryRecord) ([]byte, error) {
	if rec.Sources == nil {
		rec.Sources = []rag.Candidate{}
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal history record failed: %w", err)
	}
	return b, nil
}

func Decode(body []byte) (rag.HistoryRecord, error) {
	var rec rag.HistoryRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return rag.HistoryRecord{}, fmt.Errorf("unmarshal history record failed: %w", err)
	}
	if rec.Question == "" {
		return rag.HistoryRecord{}, fmt.Errorf("history record has no question")
	}
	return rec, nil
}

// ToRow converts a record into its chat_history row.
func ToRow(rec rag.HistoryRecord) (*model.ChatHistory, error) {
	sources := rec.Sources
	if sources == nil {
		sources = []rag.Candidate{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return nil, fmt.Errorf("marshal history sources failed: %w", err)
	}

	var metaJSON datatypes.JSON
	if len(rec.Metadata) > 0 {
		b, err := json.Marshal(rec.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal history metadata failed: %w", err)
		}
		metaJSON = b
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return &model.ChatHistory{
		Question:  rec.Question,
		Answer:    rec.Answer,
		Accuracy:  rec.Accuracy,
		RiskLevel: string(rec.RiskLevel),
		Sources:   sourcesJSON,
		Metadata:  metaJSON,
		UserID:    rec.UserID,
		CreatedAt: createdAt,
	}, nil
}
