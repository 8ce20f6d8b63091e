package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"groundedchat/internal/model"
	"groundedchat/internal/platform/logger"
	"groundedchat/internal/rag"
	"groundedchat/internal/repository"
)

const (
	defaultChatTitle     = "New Chat"
	defaultHistoryWindow = 50
	maxHistoryRows       = 500
)

// Answerer runs one grounded question. *rag.Pipeline satisfies it.
type Answerer interface {
	Chat(ctx context.Context, query string, opts rag.Options) (*rag.ChatResponse, error)
}

type ConversationCache interface {
	Recent(ctx context.Context, chatID uint) ([]model.Message, bool, error)
	Seed(ctx context.Context, chatID uint, messages []model.Message) error
	Append(ctx context.Context, chatID uint, turns ...model.Message) error
	Delete(ctx context.Context, chatID uint) error
}

type ChatService struct {
	chatRepo      *repository.ChatRepository
	messageRepo   *repository.MessageRepository
	historyRepo   *repository.ChatHistoryRepository
	answerer      Answerer
	cache         ConversationCache
	historyWindow int
	log           *logger.Logger
}

type CreateChatInput struct {
	UserID     uint
	Title      string
	Visibility string
}

type AskInput struct {
	UserID              uint
	ChatID              uint
	Question            string
	MaxSources          int
	SimilarityThreshold *float64
}

type AskResult struct {
	UserMessage      model.Message     `json:"user_message"`
	AssistantMessage model.Message     `json:"assistant_message"`
	Response         *rag.ChatResponse `json:"response"`
}

// MessageMetadata is stored on assistant messages.
type MessageMetadata struct {
	Sources         []rag.Candidate `json:"sources"`
	AverageAccuracy float64         `json:"averageAccuracy"`
	RiskLevel       rag.RiskLevel   `json:"riskLevel"`
}

type HistoryQuery struct {
	UserID      string
	RiskLevel   string
	MinAccuracy float64
	Limit       int
}

// NewChatService wires chat persistence around answerer. cache may be nil.
func NewChatService(
	chatRepo *repository.ChatRepository,
	messageRepo *repository.MessageRepository,
	historyRepo *repository.ChatHistoryRepository,
	answerer Answerer,
	cache ConversationCache,
	historyWindow int,
	log *logger.Logger,
) *ChatService {
	if historyWindow <= 0 {
		historyWindow = defaultHistoryWindow
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ChatService{
		chatRepo:      chatRepo,
		messageRepo:   messageRepo,
		historyRepo:   historyRepo,
		answerer:      answerer,
		cache:         cache,
		historyWindow: historyWindow,
		log:           log.With("component", "app.ChatService"),
	}
}

func (s *ChatService) CreateChat(ctx context.Context, input CreateChatInput) (*model.Chat, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = defaultChatTitle
	}
	visibility := input.Visibility
	switch visibility {
	case "":
		visibility = model.VisibilityPrivate
	case model.VisibilityPrivate, model.VisibilityPublic:
	default:
		return nil, ErrInvalidInput
	}

	chat := &model.Chat{UserID: input.UserID, Title: title, Visibility: visibility}
	if err := s.chatRepo.Create(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

func (s *ChatService) ListChats(ctx context.Context, userID uint) ([]model.Chat, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.chatRepo.ListByUserID(ctx, userID)
}

func (s *ChatService) DeleteChat(ctx context.Context, userID, chatID uint) error {
	if userID == 0 || chatID == 0 {
		return ErrInvalidInput
	}
	if err := s.chatRepo.DeleteWithMessages(ctx, chatID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrChatNotFound
		}
		return err
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, chatID); err != nil {
			s.log.Warn("drop cached conversation failed", "chat_id", chatID, "error", err)
		}
	}
	return nil
}

// Ask answers question inside a chat and stores both turns. Pipeline errors
// are returned unchanged so callers can match rag sentinels.
func (s *ChatService) Ask(ctx context.Context, input AskInput) (*AskResult, error) {
	if input.UserID == 0 || input.ChatID == 0 {
		return nil, ErrInvalidInput
	}
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, ErrMessageEmpty
	}
	if _, err := s.ownedChat(ctx, input.UserID, input.ChatID); err != nil {
		return nil, err
	}

	resp, err := s.answerer.Chat(ctx, question, rag.Options{
		MaxSources:          input.MaxSources,
		SimilarityThreshold: input.SimilarityThreshold,
		UserID:              strconv.FormatUint(uint64(input.UserID), 10),
	})
	if err != nil {
		if errors.Is(err, rag.ErrEmptyQuery) {
			return nil, ErrMessageEmpty
		}
		return nil, err
	}

	meta, err := json.Marshal(MessageMetadata{
		Sources:         resp.Sources,
		AverageAccuracy: resp.AverageAccuracy,
		RiskLevel:       resp.RiskLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal message metadata failed: %w", err)
	}

	now := time.Now()
	userMsg := model.Message{ChatID: input.ChatID, UserID: input.UserID, Role: model.RoleUser, Content: question, CreatedAt: now}
	assistantMsg := model.Message{ChatID: input.ChatID, UserID: input.UserID, Role: model.RoleAssistant, Content: resp.Answer, Metadata: meta, CreatedAt: now.Add(time.Millisecond)}
	if err := s.messageRepo.Create(ctx, &userMsg); err != nil {
		return nil, err
	}
	if err := s.messageRepo.Create(ctx, &assistantMsg); err != nil {
		return nil, err
	}
	if err := s.chatRepo.Touch(ctx, input.ChatID); err != nil {
		s.log.Warn("touch chat failed", "chat_id", input.ChatID, "error", err)
	}
	if s.cache != nil {
		if err := s.cache.Append(ctx, input.ChatID, userMsg, assistantMsg); err != nil {
			s.log.Warn("append cached conversation failed", "chat_id", input.ChatID, "error", err)
		}
	}

	return &AskResult{UserMessage: userMsg, AssistantMessage: assistantMsg, Response: resp}, nil
}

// Messages returns the most recent turns of a chat, oldest first, reading
// through the conversation cache when one is configured.
func (s *ChatService) Messages(ctx context.Context, userID, chatID uint) ([]model.Message, error) {
	if userID == 0 || chatID == 0 {
		return nil, ErrInvalidInput
	}
	if _, err := s.ownedChat(ctx, userID, chatID); err != nil {
		return nil, err
	}

	if s.cache != nil {
		cached, hit, err := s.cache.Recent(ctx, chatID)
		if err != nil {
			s.log.Warn("read cached conversation failed", "chat_id", chatID, "error", err)
		} else if hit {
			return cached, nil
		}
	}

	messages, err := s.messageRepo.ListRecentByChatID(ctx, chatID, s.historyWindow)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Seed(ctx, chatID, messages); err != nil {
			s.log.Warn("seed cached conversation failed", "chat_id", chatID, "error", err)
		}
	}
	return messages, nil
}

func (s *ChatService) ChatHistory(ctx context.Context, q HistoryQuery) ([]model.ChatHistory, error) {
	switch rag.RiskLevel(q.RiskLevel) {
	case "", rag.RiskLow, rag.RiskMedium, rag.RiskHigh:
	default:
		return nil, ErrInvalidInput
	}
	if q.MinAccuracy < 0 || q.MinAccuracy > 100 || q.Limit < 0 {
		return nil, ErrInvalidInput
	}
	limit := q.Limit
	if limit == 0 || limit > maxHistoryRows {
		limit = maxHistoryRows
	}
	return s.historyRepo.List(ctx, repository.HistoryFilter{
		UserID:      q.UserID,
		RiskLevel:   q.RiskLevel,
		MinAccuracy: q.MinAccuracy,
		Limit:       limit,
	})
}

func (s *ChatService) ownedChat(ctx context.Context, userID, chatID uint) (*model.Chat, error) {
	chat, err := s.chatRepo.GetByIDAndUserID(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}
	return chat, nil
}
