package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/BaSui01/meshflow/api"
	"github.com/BaSui01/meshflow/internal/ctxkeys"
	"github.com/BaSui01/meshflow/internal/metrics"
	"github.com/BaSui01/meshflow/internal/storage"
	"github.com/BaSui01/meshflow/pipeline"
	"github.com/BaSui01/meshflow/prompt"
	"github.com/BaSui01/meshflow/store"
	"github.com/BaSui01/meshflow/types"
)

// wsHandshakeTimeout bounds the wait for the client's request frame.
const wsHandshakeTimeout = 30 * time.Second

// Generator runs the furniture pipeline for one prompt.
type Generator interface {
	Generate(ctx context.Context, req pipeline.Request) (*types.Result, error)
}

// GenerateHandlerOptions carries the optional collaborators of a
// GenerateHandler. Nil fields disable the matching feature.
type GenerateHandlerOptions struct {
	// Store persists generation records.
	Store *store.Store
	// Artifacts uploads plan files to object storage.
	Artifacts *storage.Client
	// Metrics records generation outcomes.
	Metrics *metrics.Collector
	// Analyzer strictly validates prompts before a run.
	Analyzer *prompt.Analyzer
	// WSOrigins are origin patterns accepted on WebSocket upgrades.
	WSOrigins []string
}

// GenerateHandler serves the generation endpoints.
type GenerateHandler struct {
	generator Generator
	store     *store.Store
	artifacts *storage.Client
	metrics   *metrics.Collector
	analyzer  *prompt.Analyzer
	wsOrigins []string
	logger    *zap.Logger
}

// NewGenerateHandler builds a GenerateHandler around the pipeline.
func NewGenerateHandler(gen Generator, opts GenerateHandlerOptions, logger *zap.Logger) *GenerateHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerateHandler{
		generator: gen,
		store:     opts.Store,
		artifacts: opts.Artifacts,
		metrics:   opts.Metrics,
		analyzer:  opts.Analyzer,
		wsOrigins: opts.WSOrigins,
		logger:    logger,
	}
}

// HandleGenerate serves POST /api/v1/generate: it runs the pipeline
// synchronously and replies with the finished record.
func (h *GenerateHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.GenerateRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if err := h.validate(&req); err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	rec, runErr := h.run(r.Context(), req)
	if runErr != nil {
		WriteError(w, r, asTypedError(runErr), h.logger)
		return
	}
	WriteSuccess(w, r, rec)
}

// HandleList serves GET /api/v1/generations with optional status,
// limit and offset query parameters.
func (h *GenerateHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		WriteError(w, r, types.NewError(types.ErrServiceUnavailable, "persistence is not configured"), h.logger)
		return
	}

	opts := store.ListOptions{Status: store.Status(r.URL.Query().Get("status"))}
	var err *types.Error
	if opts.Limit, err = queryInt(r, "limit"); err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	if opts.Offset, err = queryInt(r, "offset"); err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	records, total, listErr := h.store.List(r.Context(), opts)
	if listErr != nil {
		WriteError(w, r, types.NewError(types.ErrInternalError, "failed to list generations").WithCause(listErr), h.logger)
		return
	}
	WriteSuccess(w, r, api.ListGenerationsResponse{
		Generations: records,
		Total:       total,
		Limit:       opts.Limit,
		Offset:      opts.Offset,
	})
}

// HandleGet serves GET /api/v1/generations/{id}.
func (h *GenerateHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		WriteError(w, r, types.NewError(types.ErrServiceUnavailable, "persistence is not configured"), h.logger)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		WriteError(w, r, types.NewError(types.ErrInvalidRequest, "generation id is required"), h.logger)
		return
	}

	rec, err := h.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		WriteError(w, r, types.NewError(types.ErrNotFound, "generation not found"), h.logger)
		return
	}
	if err != nil {
		WriteError(w, r, types.NewError(types.ErrInternalError, "failed to load generation").WithCause(err), h.logger)
		return
	}
	WriteSuccess(w, r, rec)
}

// HandleGenerateWS serves GET /api/v1/generate/ws. The client sends
// one GenerateRequest frame; the server streams stage events and
// finishes with a result or error frame.
func (h *GenerateHandler) HandleGenerateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.wsOrigins,
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()

	readCtx, cancel := context.WithTimeout(ctx, wsHandshakeTimeout)
	_, data, err := conn.Read(readCtx)
	cancel()
	if err != nil {
		h.logger.Debug("websocket request frame not received", zap.Error(err))
		return
	}

	var req api.GenerateRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.writeWSResult(ctx, conn, api.WSResult{
			Type:  api.WSFrameError,
			Error: types.NewError(types.ErrInvalidRequest, "invalid JSON request frame"),
		})
		conn.Close(websocket.StatusUnsupportedData, "invalid request")
		return
	}
	if verr := h.validate(&req); verr != nil {
		h.writeWSResult(ctx, conn, api.WSResult{Type: api.WSFrameError, Error: verr})
		conn.Close(websocket.StatusNormalClosure, "")
		return
	}

	// Events fire synchronously inside Generate, so writes never race.
	runCtx := pipeline.WithEmitter(ctx, func(ev pipeline.Event) {
		frame, err := json.Marshal(ev)
		if err != nil {
			return
		}
		if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
			h.logger.Debug("websocket event dropped", zap.Error(err))
		}
	})

	rec, runErr := h.run(runCtx, req)
	if runErr != nil {
		h.writeWSResult(ctx, conn, api.WSResult{Type: api.WSFrameError, Error: asTypedError(runErr)})
		conn.Close(websocket.StatusNormalClosure, "")
		return
	}
	h.writeWSResult(ctx, conn, api.WSResult{Type: api.WSFrameResult, Record: rec})
	conn.Close(websocket.StatusNormalClosure, "")
}

// validate applies request checks plus the strict prompt gate.
func (h *GenerateHandler) validate(req *api.GenerateRequest) *types.Error {
	if err := req.Validate(); err != nil {
		return err
	}
	if h.analyzer != nil {
		if err := h.analyzer.ValidateStrict(req.Prompt); err != nil {
			return err
		}
	}
	return nil
}

// run executes the pipeline for one request and persists the outcome.
// The returned record is non-nil even when the run failed.
func (h *GenerateHandler) run(ctx context.Context, req api.GenerateRequest) (*store.GenerationRecord, error) {
	queued := h.createQueued(ctx, req.Prompt)
	if queued != nil {
		ctx = ctxkeys.WithGenerationID(ctx, queued.ID)
	}

	res, runErr := h.generator.Generate(ctx, pipeline.Request{
		Prompt:        req.Prompt,
		RawPath:       req.RawPath,
		ValidatedPath: req.ValidatedPath,
		BuildBlend:    req.BuildBlend,
	})

	rec := store.RecordFromResult(res, runErr)
	if queued != nil {
		rec.ID = queued.ID
		rec.CreatedAt = queued.CreatedAt
	}
	if h.analyzer != nil {
		analysis := h.analyzer.Analyze(req.Prompt)
		rec.AssetType = analysis.AssetType
		rec.Style = analysis.Style
	}

	if runErr == nil && h.artifacts.Enabled() && rec.ID != "" {
		urls := h.artifacts.UploadArtifacts(ctx, rec.ID, map[string]string{
			"raw":       rec.RawPath,
			"validated": rec.ValidatedPath,
			"blend":     rec.BlendPath,
		})
		if u, ok := urls["raw"]; ok {
			rec.RawPath = u
		}
		if u, ok := urls["validated"]; ok {
			rec.ValidatedPath = u
		}
		if u, ok := urls["blend"]; ok {
			rec.BlendPath = u
		}
	}

	if h.metrics != nil && res != nil {
		h.metrics.RecordGeneration(string(rec.Status), res.Duration)
	}

	if h.store != nil && queued != nil {
		var stages []types.StageUsage
		if res != nil {
			stages = res.Stages
		}
		if err := h.store.Finalize(ctx, rec, stages); err != nil {
			h.logger.Error("failed to persist generation outcome",
				zap.String("id", rec.ID),
				zap.Error(err))
		}
	}

	h.logger.Info("generation finished",
		zap.String("id", rec.ID),
		zap.String("status", string(rec.Status)),
		zap.Int64("duration_ms", rec.DurationMS),
	)
	return rec, runErr
}

// createQueued inserts the queued record when persistence is on.
func (h *GenerateHandler) createQueued(ctx context.Context, promptText string) *store.GenerationRecord {
	if h.store == nil {
		return nil
	}
	rec := &store.GenerationRecord{Prompt: promptText, Status: store.StatusQueued}
	if err := h.store.Create(ctx, rec); err != nil {
		h.logger.Error("failed to create generation record", zap.Error(err))
		return nil
	}
	return rec
}

func (h *GenerateHandler) writeWSResult(ctx context.Context, conn *websocket.Conn, res api.WSResult) {
	frame, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
		h.logger.Debug("websocket result dropped", zap.Error(err))
	}
}

// queryInt parses a non-negative integer query parameter.
func queryInt(r *http.Request, name string) (int, *types.Error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, types.NewError(types.ErrInvalidRequest, name+" must be a non-negative integer")
	}
	return v, nil
}

// asTypedError surfaces the typed error inside a pipeline failure.
func asTypedError(err error) *types.Error {
	var typed *types.Error
	if errors.As(err, &typed) {
		return typed
	}
	return types.NewError(types.ErrGenerationFailed, "generation failed").WithCause(err)
}
