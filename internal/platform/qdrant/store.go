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

	"github.com/docuchat/backend/internal/platform/ctxutil"
	"github.com/docuchat/backend/internal/platform/logger"
)

const (
	denseVectorName   = "dense"
	sparseVectorName  = "sparse"
	maxErrorBodyBytes = 1024
)

// ErrCollectionNotFound marks queries against a collection that has
// never been created (or was dropped). Callers must treat this as
// distinct from an empty result set.
var ErrCollectionNotFound = errors.New("qdrant collection not found")

var pointIDNamespaceUUID = uuid.MustParse("6cb1f6e4-9f87-44d1-9a7a-4c1f2b3d8a01")

// SparseVector is a term-index weighted vector in Qdrant's sparse
// representation.
type SparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

// Point is one chunk's dual representation plus payload.
type Point struct {
	ID      string
	Dense   []float32
	Sparse  SparseVector
	Payload map[string]any
}

// ScoredPoint is a hybrid query hit.
type ScoredPoint struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// Store speaks Qdrant's REST API for a single collection holding named
// dense + sparse vectors. The collection is always rebuilt wholesale:
// Recreate drops and recreates it so one generation of embeddings never
// mixes with another.
type Store struct {
	log     *logger.Logger
	cfg     Config
	baseURL string
	http    *http.Client
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

func NewStore(log *logger.Logger, cfg Config) (*Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	s := &Store{
		log:     log.With("service", "QdrantStore"),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	if err := s.verifyReady(context.Background()); err != nil {
		return nil, err
	}

	s.log.Info(
		"qdrant store ready",
		"url", s.baseURL,
		"collection", cfg.Collection,
		"vector_dim", cfg.VectorDim,
	)
	return s, nil
}

// Recreate drops the collection if present and creates it fresh with a
// cosine dense vector space and an idf-weighted sparse space.
func (s *Store) Recreate(ctx context.Context) error {
	const op = "recreate"

	if err := s.doJSON(ctx, op, http.MethodDelete, s.collectionPath(""), nil, nil); err != nil {
		var operr *OperationError
		if !errors.As(err, &operr) || operr.Code != OperationErrorNotFound {
			return err
		}
	}

	req := map[string]any{
		"vectors": map[string]any{
			denseVectorName: map[string]any{
				"size":     s.cfg.VectorDim,
				"distance": "Cosine",
			},
		},
		"sparse_vectors": map[string]any{
			sparseVectorName: map[string]any{
				"modifier": "idf",
			},
		},
	}
	return s.doJSON(ctx, op, http.MethodPut, s.collectionPath(""), req, nil)
}

// Exists reports whether the collection has been created.
func (s *Store) Exists(ctx context.Context) (bool, error) {
	const op = "exists"
	var result struct {
		Exists bool `json:"exists"`
	}
	if err := s.doJSON(ctx, op, http.MethodGet, s.collectionPath("/exists"), nil, &result); err != nil {
		return false, err
	}
	return result.Exists, nil
}

func (s *Store) Upsert(ctx context.Context, points []Point) error {
	const op = "upsert"
	if len(points) == 0 {
		return nil
	}

	body := make([]map[string]any, 0, len(points))
	for _, p := range points {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return opErr(op, OperationErrorValidation, "point id is required", nil)
		}
		if len(p.Dense) != s.cfg.VectorDim {
			return opErr(
				op,
				OperationErrorValidation,
				fmt.Sprintf(
					"point %q dense dimension mismatch: expected=%d got=%d",
					id,
					s.cfg.VectorDim,
					len(p.Dense),
				),
				nil,
			)
		}
		if len(p.Sparse.Indices) != len(p.Sparse.Values) {
			return opErr(
				op,
				OperationErrorValidation,
				fmt.Sprintf(
					"point %q sparse indices/values length mismatch: %d vs %d",
					id,
					len(p.Sparse.Indices),
					len(p.Sparse.Values),
				),
				nil,
			)
		}
		body = append(body, map[string]any{
			"id": s.pointID(id),
			"vector": map[string]any{
				denseVectorName:  p.Dense,
				sparseVectorName: p.Sparse,
			},
			"payload": p.Payload,
		})
	}

	req := map[string]any{"points": body}
	return s.doJSON(ctx, op, http.MethodPut, s.collectionPath("/points?wait=true"), req, nil)
}

// HybridQuery runs dense and sparse prefetches fused with reciprocal
// rank fusion and returns up to limit hits, highest fused score first
// (the store's native order).
func (s *Store) HybridQuery(ctx context.Context, dense []float32, sparse SparseVector, limit int) ([]ScoredPoint, error) {
	const op = "hybrid_query"
	if len(dense) == 0 {
		return nil, opErr(op, OperationErrorValidation, "dense query vector required", nil)
	}
	if len(dense) != s.cfg.VectorDim {
		return nil, opErr(
			op,
			OperationErrorValidation,
			fmt.Sprintf("query vector dimension mismatch: expected=%d got=%d", s.cfg.VectorDim, len(dense)),
			nil,
		)
	}
	if limit <= 0 {
		limit = 10
	}

	prefetch := []map[string]any{
		{
			"query": dense,
			"using": denseVectorName,
			"limit": limit,
		},
	}
	if len(sparse.Indices) > 0 {
		prefetch = append(prefetch, map[string]any{
			"query": sparse,
			"using": sparseVectorName,
			"limit": limit,
		})
	}

	req := map[string]any{
		"prefetch":     prefetch,
		"query":        map[string]any{"fusion": "rrf"},
		"limit":        limit,
		"with_payload": true,
	}

	var result struct {
		Points []struct {
			ID      json.RawMessage `json:"id"`
			Score   float64         `json:"score"`
			Payload map[string]any  `json:"payload"`
		} `json:"points"`
	}
	if err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/query"), req, &result); err != nil {
		var operr *OperationError
		if errors.As(err, &operr) && operr.Code == OperationErrorNotFound {
			return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, s.cfg.Collection)
		}
		return nil, err
	}

	out := make([]ScoredPoint, 0, len(result.Points))
	for _, item := range result.Points {
		out = append(out, ScoredPoint{
			ID:      decodePointID(item.ID),
			Score:   item.Score,
			Payload: item.Payload,
		})
	}
	return out, nil
}

func (s *Store) verifyReady(ctx context.Context) error {
	const op = "bootstrap_verify"

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodGet, s.baseURL+"/readyz", nil)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build ready request failed", err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant ready check failed", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant ready check returned status=%d", resp.StatusCode),
		}
	}
	return nil
}

func (s *Store) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, s.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 10*maxErrorBodyBytes))
	if readErr != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", readErr)
	}
	if resp.StatusCode == http.StatusNotFound {
		return &OperationError{
			Code:       OperationErrorNotFound,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=404 body=%q", truncateBody(raw)),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant envelope failed", err)
	}
	if statusErr := parseEnvelopeStatus(envelope.Status); statusErr != "" {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    statusErr,
		}
	}

	if out == nil {
		return nil
	}
	if len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

func classifyHTTPCallError(op, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}

	var statusString string
	if err := json.Unmarshal(raw, &statusString); err == nil {
		if strings.EqualFold(statusString, "ok") || strings.EqualFold(statusString, "acknowledged") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", statusString)
	}

	var statusObject struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &statusObject); err == nil {
		if strings.TrimSpace(statusObject.Error) != "" {
			return strings.TrimSpace(statusObject.Error)
		}
	}

	return fmt.Sprintf("qdrant status=%s", status)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

// pointID derives a stable UUID from the chunk key so re-ingesting the
// same corpus produces the same point identities.
func (s *Store) pointID(id string) string {
	deterministic := uuid.NewSHA1(pointIDNamespaceUUID, []byte(s.cfg.Collection+"|"+id))
	return deterministic.String()
}

func (s *Store) collectionPath(suffix string) string {
	path := "/collections/" + s.cfg.Collection
	if strings.TrimSpace(suffix) == "" {
		return path
	}
	return path + suffix
}

func decodePointID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var idString string
	if err := json.Unmarshal(raw, &idString); err == nil {
		return strings.TrimSpace(idString)
	}
	var idNumber int64
	if err := json.Unmarshal(raw, &idNumber); err == nil {
		return fmt.Sprintf("%d", idNumber)
	}
	return strings.TrimSpace(string(raw))
}
