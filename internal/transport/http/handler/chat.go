package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"groundedchat/internal/app"
	"groundedchat/internal/rag"
	"groundedchat/internal/transport/http/response"
)

const (
	streamSliceRunes  = 20
	processingMessage = "an error occurred while processing your request"
)

type ChatHandler struct {
	chatService *app.ChatService
}

type CreateChatRequest struct {
	Title      string `json:"title" binding:"max=256"`
	Visibility string `json:"visibility" binding:"omitempty,oneof=private public"`
}

// SendMessageRequest leaves the threshold to the server config when
// similarity_threshold is omitted; an explicit 0 disables filtering.
type SendMessageRequest struct {
	Content             string   `json:"content" binding:"required"`
	MaxSources          int      `json:"max_sources" binding:"gte=0,lte=50"`
	SimilarityThreshold *float64 `json:"similarity_threshold" binding:"omitempty,gte=0,lte=1"`
}

type streamMetadata struct {
	Sources   []rag.Candidate `json:"sources"`
	Accuracy  float64         `json:"accuracy"`
	RiskLevel rag.RiskLevel   `json:"riskLevel"`
}

type streamFrame struct {
	Type     string          `json:"type"`
	ID       string          `json:"id,omitempty"`
	Role     string          `json:"role,omitempty"`
	Content  string          `json:"content,omitempty"`
	Delta    string          `json:"delta,omitempty"`
	Metadata *streamMetadata `json:"metadata,omitempty"`
	Error    string          `json:"error,omitempty"`
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

func (h *ChatHandler) CreateChat(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	chat, err := h.chatService.CreateChat(c.Request.Context(), app.CreateChatInput{
		UserID:     userID,
		Title:      req.Title,
		Visibility: req.Visibility,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "create chat failed")
		}
		return
	}

	response.OK(c, chat)
}

func (h *ChatHandler) ListChats(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	chats, err := h.chatService.ListChats(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list chats failed")
		return
	}

	response.OK(c, chats)
}

func (h *ChatHandler) DeleteChat(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	chatID, ok := parseIDParam(c, "id")
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid chat id")
		return
	}

	if err := h.chatService.DeleteChat(c.Request.Context(), userID, chatID); err != nil {
		switch {
		case errors.Is(err, app.ErrChatNotFound):
			response.Error(c, http.StatusNotFound, response.CodeChatNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete chat failed")
		}
		return
	}

	response.OK(c, gin.H{"deleted_chat_id": chatID})
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	input, ok := h.bindAsk(c)
	if !ok {
		return
	}

	result, err := h.chatService.Ask(c.Request.Context(), input)
	if err != nil {
		writeAskError(c, err)
		return
	}

	response.OK(c, result)
}

// StreamMessage answers like SendMessage and replays the answer as SSE
// frames: partial slices, one complete frame, then done with the metadata.
func (h *ChatHandler) StreamMessage(c *gin.Context) {
	input, ok := h.bindAsk(c)
	if !ok {
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stream not supported")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	send := func(frame streamFrame) bool {
		b, err := json.Marshal(frame)
		if err != nil {
			return false
		}
		if _, err := c.Writer.Write([]byte("data: " + string(b) + "\n\n")); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	result, err := h.chatService.Ask(c.Request.Context(), input)
	if err != nil {
		_, _, message := askErrorStatus(err)
		send(streamFrame{Type: "error", Error: message})
		return
	}

	meta := &streamMetadata{
		Sources:   result.Response.Sources,
		Accuracy:  result.Response.AverageAccuracy,
		RiskLevel: result.Response.RiskLevel,
	}
	id := strconv.FormatUint(uint64(result.AssistantMessage.ID), 10)
	full := ""
	for _, delta := range runeSlices(result.Response.Answer, streamSliceRunes) {
		full += delta
		if !send(streamFrame{Type: "partial", ID: id, Role: "assistant", Content: full, Delta: delta, Metadata: meta}) {
			return
		}
	}
	if !send(streamFrame{Type: "complete", ID: id, Role: "assistant", Content: full, Metadata: meta}) {
		return
	}
	send(streamFrame{Type: "done", Metadata: meta})
}

func (h *ChatHandler) ListMessages(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	chatID, ok := parseIDParam(c, "id")
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid chat id")
		return
	}

	messages, err := h.chatService.Messages(c.Request.Context(), userID, chatID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrChatNotFound):
			response.Error(c, http.StatusNotFound, response.CodeChatNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list messages failed")
		}
		return
	}

	response.OK(c, messages)
}

// History lists the caller's answered questions, newest first.
func (h *ChatHandler) History(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	q := app.HistoryQuery{
		UserID:    strconv.FormatUint(uint64(userID), 10),
		RiskLevel: c.Query("risk_level"),
	}
	if raw := c.Query("min_accuracy"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid min_accuracy")
			return
		}
		q.MinAccuracy = v
	}
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid limit")
			return
		}
		q.Limit = v
	}

	rows, err := h.chatService.ChatHistory(c.Request.Context(), q)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get history failed")
		}
		return
	}

	response.OK(c, rows)
}

func (h *ChatHandler) bindAsk(c *gin.Context) (app.AskInput, bool) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return app.AskInput{}, false
	}
	chatID, ok := parseIDParam(c, "id")
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid chat id")
		return app.AskInput{}, false
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return app.AskInput{}, false
	}

	return app.AskInput{
		UserID:              userID,
		ChatID:              chatID,
		Question:            req.Content,
		MaxSources:          req.MaxSources,
		SimilarityThreshold: req.SimilarityThreshold,
	}, true
}

func writeAskError(c *gin.Context, err error) {
	status, code, message := askErrorStatus(err)
	response.Error(c, status, code, message)
}

// askErrorStatus hides pipeline failures behind a generic message.
func askErrorStatus(err error) (int, int, string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrMessageEmpty):
		return http.StatusBadRequest, response.CodeBadRequest, err.Error()
	case errors.Is(err, app.ErrChatNotFound):
		return http.StatusNotFound, response.CodeChatNotFound, err.Error()
	case errors.Is(err, rag.ErrEmbedding), errors.Is(err, rag.ErrRetrieval), errors.Is(err, rag.ErrGeneration):
		return http.StatusInternalServerError, response.CodeProcessing, processingMessage
	default:
		return http.StatusInternalServerError, response.CodeInternalServer, "send message failed"
	}
}

func runeSlices(s string, n int) []string {
	runes := []rune(s)
	out := make([]string, 0, len(runes)/n+1)
	for i := 0; i < len(runes); i += n {
		out = append(out, string(runes[i:min(i+n, len(runes))]))
	}
	return out
}
