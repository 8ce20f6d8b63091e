package history

import (
	"context"

	"groundedchat/internal/model"
	"groundedchat/internal/rag"
)

type rowStore interface {
	Create(ctx context.Context, row *model.ChatHistory) error
}

// DBRecorder writes history rows synchronously.
type DBRecorder struct {
	store rowStore
}

func NewDBRecorder(store rowStore) *DBRecorder {
	return &DBRecorder{store: store}
}

func (r *DBRecorder) RecordHistory(ctx context.Context, rec rag.HistoryRecord) error {
	row, err := ToRow(rec)
	if err != nil {
		return err
	}
	return r.store.Create(ctx, row)
}
