package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
)

const (
	maxErrorBodyBytes = 512

	payloadText   = "text"
	payloadSource = "source"
	payloadOwner  = "owner"
	payloadIndex  = "index"
)

// Storage is a REST client for one Qdrant collection using cosine distance.
type Storage struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	collection string
	http       *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// NewStorage creates a client for one Qdrant collection.
func NewStorage(log *logger.Logger, cfg Config) (*Storage, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, opErr("configure", OperationErrorValidation, "missing qdrant url", nil)
	}
	if cfg.Collection == "" {
		cfg.Collection = "docs"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Storage{
		log:        log.With("service", "QdrantVectorStore", "collection", cfg.Collection),
		baseURL:    base,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		http:       &http.Client{Timeout: timeout},
	}, nil
}

type collectionInfo struct {
	Config struct {
		Params struct {
			Vectors struct {
				Size     int    `json:"size"`
				Distance string `json:"distance"`
			} `json:"vectors"`
		} `json:"params"`
	} `json:"config"`
}

// Init creates the collection and its payload indexes when missing, and
// checks the vector size of an existing one.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	const op = "init"
	if dimension <= 0 {
		return opErr(op, OperationErrorValidation, "invalid dimension", nil)
	}

	var info collectionInfo
	err := s.doJSON(ctx, op, http.MethodGet, s.collectionPath(""), nil, &info)
	switch {
	case err == nil:
		if size := info.Config.Params.Vectors.Size; size != 0 && size != dimension {
			return opErr(op, OperationErrorValidation,
				fmt.Sprintf("collection vector size %d, embedder produces %d", size, dimension), nil)
		}
		return nil
	case !isNotFound(err):
		return err
	}

	create := map[string]any{
		"vectors": map[string]any{"size": dimension, "distance": "Cosine"},
	}
	if err := s.doJSON(ctx, op, http.MethodPut, s.collectionPath(""), create, nil); err != nil {
		return err
	}
	for _, field := range []string{payloadOwner, payloadSource} {
		index := map[string]any{"field_name": field, "field_schema": "keyword"}
		if err := s.doJSON(ctx, op, http.MethodPut, s.collectionPath("/index?wait=true"), index, nil); err != nil {
			return err
		}
	}
	s.log.Info("qdrant collection created", "dimension", dimension)
	return nil
}

func (s *Storage) Upsert(ctx context.Context, chunks []domain.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	points := make([]map[string]any, len(chunks))
	for i, c := range chunks {
		owner, _ := domain.SplitSource(c.Chunk.SourceID)
		points[i] = map[string]any{
			"id":     PointID(c.Chunk.ChunkID),
			"vector": c.Vector,
			"payload": map[string]any{
				payloadText:   c.Chunk.Text,
				payloadSource: c.Chunk.SourceID,
				payloadOwner:  owner,
				payloadIndex:  c.Chunk.Index,
			},
		}
	}
	return s.doJSON(ctx, "upsert", http.MethodPut, s.collectionPath("/points?wait=true"), map[string]any{"points": points}, nil)
}

type searchHit struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

// Search runs a similarity search, filtered to opts.Owner when set. The score
// threshold is sent unless opts.NoThreshold is set.
func (s *Storage) Search(ctx context.Context, vector []float32, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if !opts.NoThreshold {
		req["score_threshold"] = opts.ScoreThreshold
	}
	if opts.Owner != "" {
		req["filter"] = matchFilter(payloadOwner, opts.Owner)
	}

	var hits []searchHit
	if err := s.doJSON(ctx, "search", http.MethodPost, s.collectionPath("/points/search"), req, &hits); err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(hits))
	for _, h := range hits {
		chunk := domain.Chunk{}
		if v, ok := h.Payload[payloadSource].(string); ok {
			chunk.SourceID = v
		}
		if v, ok := h.Payload[payloadText].(string); ok {
			chunk.Text = v
		}
		if v, ok := h.Payload[payloadIndex].(float64); ok {
			chunk.Index = int(v)
		}
		chunk.ChunkID = fmt.Sprintf("%s:%d", chunk.SourceID, chunk.Index)
		results = append(results, domain.SearchResult{Chunk: chunk, Score: h.Score})
	}
	return results, nil
}

func (s *Storage) DeleteBySource(ctx context.Context, source string) error {
	if source == "" {
		return opErr("delete", OperationErrorValidation, "empty source", nil)
	}
	body := map[string]any{"filter": matchFilter(payloadSource, source)}
	return s.doJSON(ctx, "delete", http.MethodPost, s.collectionPath("/points/delete?wait=true"), body, nil)
}

// PointID maps a chunk ID to the UUIDv5 Qdrant stores it under, so re-upserting
// the same chunk overwrites it.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunkID)).String()
}

func matchFilter(key, value string) map[string]any {
	return map[string]any{
		"must": []any{
			map[string]any{"key": key, "match": map[string]any{"value": value}},
		},
	}
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
}

func (s *Storage) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorRequestFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode envelope failed", err)
	}
	if msg := parseEnvelopeStatus(env.Status); msg != "" {
		return &OperationError{
			Code:       OperationErrorRequestFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    msg,
		}
	}
	if out == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode result failed", err)
	}
	return nil
}

func classifyHTTPCallError(op, message string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

func isNotFound(err error) bool {
	var oe *OperationError
	return errors.As(err, &oe) && oe.StatusCode == http.StatusNotFound
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if strings.EqualFold(str, "ok") || strings.EqualFold(str, "acknowledged") || strings.EqualFold(str, "completed") {
			return ""
		}
		return fmt.Sprintf("status=%q", str)
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

func (s *Storage) collectionPath(suffix string) string {
	return "/collections/" + s.collection + suffix
}
