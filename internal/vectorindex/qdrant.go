package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"groundedchat/internal/model"
	"groundedchat/internal/platform/logger"
	"groundedchat/internal/rag"
)

const maxErrorBodyBytes = 1024

var pointIDNamespace = uuid.MustParse("6b1d3c8e-5a55-4c1e-9a63-1f0f4f2f7d21")

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Dimension  int
}

// QdrantIndex keeps chunk vectors in a Qdrant collection. Point IDs are
// deterministic UUIDv5 values derived from the chunk ID so upserts are idempotent.
type QdrantIndex struct {
	log     *logger.Logger
	cfg     QdrantConfig
	baseURL string
	http    *http.Client
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type qdrantScoredPoint struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

type qdrantRecord struct {
	ID     json.RawMessage `json:"id"`
	Vector []float32       `json:"vector"`
}

func NewQdrantIndex(log *logger.Logger, cfg QdrantConfig) (*QdrantIndex, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, opErr("init", OperationErrorValidation, "qdrant url is required", nil)
	}
	if strings.TrimSpace(cfg.Collection) == "" {
		return nil, opErr("init", OperationErrorValidation, "qdrant collection is required", nil)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &QdrantIndex{
		log:     log.With("component", "QdrantIndex"),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// EnsureCollection creates the collection with cosine distance when it does not exist
// and checks the vector size when it does.
func (q *QdrantIndex) EnsureCollection(ctx context.Context) error {
	const op = "ensure_collection"

	var info struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size int `json:"size"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	err := q.doJSON(ctx, op, http.MethodGet, q.collectionPath(""), nil, &info)
	if err == nil {
		size := info.Config.Params.Vectors.Size
		if q.cfg.Dimension > 0 && size != 0 && size != q.cfg.Dimension {
			return opErr(op, OperationErrorValidation,
				fmt.Sprintf("collection %q vector size mismatch: expected=%d actual=%d", q.cfg.Collection, q.cfg.Dimension, size), nil)
		}
		return nil
	}
	var typed *OperationError
	if !errors.As(err, &typed) || typed.StatusCode != http.StatusNotFound {
		return err
	}
	if q.cfg.Dimension <= 0 {
		return opErr(op, OperationErrorValidation, "vector dimension is required to create a collection", nil)
	}

	req := map[string]any{
		"vectors": map[string]any{"size": q.cfg.Dimension, "distance": "Cosine"},
	}
	if err := q.doJSON(ctx, op, http.MethodPut, q.collectionPath(""), req, nil); err != nil {
		return err
	}
	q.log.Info("qdrant collection created", "collection", q.cfg.Collection, "dimension", q.cfg.Dimension)
	return nil
}

func (q *QdrantIndex) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]rag.Candidate, error) {
	const op = "search"
	if len(vector) == 0 {
		return nil, opErr(op, OperationErrorValidation, "query vector required", nil)
	}
	if k <= 0 {
		k = rag.DefaultMaxSources
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
		"with_vector":  false,
		"filter":       matchFilter(MetaActive, true),
	}
	var points []qdrantScoredPoint
	if err := q.doJSON(ctx, op, http.MethodPost, q.collectionPath("/points/search"), req, &points); err != nil {
		return nil, err
	}

	out := make([]rag.Candidate, 0, len(points))
	for _, p := range points {
		id := payloadChunkID(p.Payload)
		if id == "" {
			continue
		}
		content, _ := p.Payload[MetaContent].(string)
		meta := make(map[string]any, len(p.Payload))
		for key, v := range p.Payload {
			if key == MetaContent || key == MetaChunkID || key == MetaActive {
				continue
			}
			meta[key] = v
		}
		out = append(out, rag.Candidate{
			ID:         id,
			Content:    content,
			Metadata:   meta,
			Similarity: p.Score,
		})
	}
	return out, nil
}

func (q *QdrantIndex) StoredEmbedding(ctx context.Context, candidateID string) ([]float32, error) {
	const op = "retrieve"
	req := map[string]any{
		"ids":          []string{pointID(candidateID)},
		"with_vector":  true,
		"with_payload": false,
	}
	var records []qdrantRecord
	if err := q.doJSON(ctx, op, http.MethodPost, q.collectionPath("/points"), req, &records); err != nil {
		return nil, err
	}
	if len(records) == 0 || len(records[0].Vector) == 0 {
		return nil, opErr(op, OperationErrorNotFound, fmt.Sprintf("no vector stored for chunk %s", candidateID), nil)
	}
	return records[0].Vector, nil
}

func (q *QdrantIndex) Upsert(ctx context.Context, chunks []model.DocumentChunk) error {
	const op = "upsert"
	if len(chunks) == 0 {
		return nil
	}

	points := make([]map[string]any, 0, len(chunks))
	for _, c := range chunks {
		vec := c.EmbeddingVector()
		if len(vec) == 0 {
			return opErr(op, OperationErrorValidation, fmt.Sprintf("chunk %d has no embedding", c.ID), nil)
		}
		if q.cfg.Dimension > 0 && len(vec) != q.cfg.Dimension {
			return opErr(op, OperationErrorValidation,
				fmt.Sprintf("chunk %d dimension mismatch: expected=%d got=%d", c.ID, q.cfg.Dimension, len(vec)), nil)
		}
		id := strconv.FormatUint(uint64(c.ID), 10)
		payload := chunkMetadata(c)
		payload[MetaChunkID] = id
		payload[MetaContent] = c.Content
		payload[MetaActive] = c.IsActive
		points = append(points, map[string]any{
			"id":      pointID(id),
			"vector":  vec,
			"payload": payload,
		})
	}

	return q.doJSON(ctx, op, http.MethodPut, q.collectionPath("/points?wait=true"), map[string]any{"points": points}, nil)
}

func (q *QdrantIndex) DeleteDocument(ctx context.Context, documentID uint) error {
	req := map[string]any{"filter": matchFilter(MetaDocumentID, documentID)}
	return q.doJSON(ctx, "delete", http.MethodPost, q.collectionPath("/points/delete?wait=true"), req, nil)
}

func (q *QdrantIndex) SetDocumentActive(ctx context.Context, documentID uint, active bool) error {
	req := map[string]any{
		"payload": map[string]any{MetaActive: active},
		"filter":  matchFilter(MetaDocumentID, documentID),
	}
	return q.doJSON(ctx, "set_payload", http.MethodPost, q.collectionPath("/points/payload?wait=true"), req, nil)
}

func (q *QdrantIndex) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.cfg.APIKey != "" {
		req.Header.Set("api-key", q.cfg.APIKey)
	}

	resp, err := q.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode envelope failed", err)
	}
	if msg := parseEnvelopeStatus(envelope.Status); msg != "" {
		return &OperationError{Code: OperationErrorQueryFailed, Operation: op, StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil || len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode result failed", err)
	}
	return nil
}

func (q *QdrantIndex) collectionPath(suffix string) string {
	return "/collections/" + q.cfg.Collection + suffix
}

func pointID(chunkID string) string {
	return uuid.NewSHA1(pointIDNamespace, []byte("chunk|"+chunkID)).String()
}

func matchFilter(key string, value any) map[string]any {
	return map[string]any{
		"must": []any{
			map[string]any{"key": key, "match": map[string]any{"value": value}},
		},
	}
}

// payloadChunkID reads the chunk id, which JSON decoding may surface as a
// string or a number.
func payloadChunkID(payload map[string]any) string {
	switch v := payload[MetaChunkID].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func classifyHTTPCallError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, "request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, "request timed out", err)
	}
	return opErr(op, OperationErrorTransportFailed, "request failed", err)
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.EqualFold(s, "ok") {
			return ""
		}
		return fmt.Sprintf("status=%q", s)
	}
	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && strings.TrimSpace(obj.Error) != "" {
		return strings.TrimSpace(obj.Error)
	}
	return "status=" + status
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}
