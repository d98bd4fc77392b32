package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	chiRouter "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/studyowl/ragserver/internal/domain"
	"github.com/studyowl/ragserver/internal/domain/batch"
	"github.com/studyowl/ragserver/internal/domain/chunk"
	"github.com/studyowl/ragserver/internal/metrics"
	"github.com/studyowl/ragserver/internal/transport/youtube"
	channeluc "github.com/studyowl/ragserver/internal/usecase/channel"
	chatuc "github.com/studyowl/ragserver/internal/usecase/chat"
	healthuc "github.com/studyowl/ragserver/internal/usecase/health"
	ingestuc "github.com/studyowl/ragserver/internal/usecase/ingest"
	libraryuc "github.com/studyowl/ragserver/internal/usecase/library"
	retrievaluc "github.com/studyowl/ragserver/internal/usecase/retrieval"
	videouc "github.com/studyowl/ragserver/internal/usecase/video"
	"github.com/studyowl/ragserver/internal/version"
)

// Error codes returned in the uniform error payload.
const (
	codeBadRequest           = "bad_request"
	codeUnauthorized         = "unauthorized"
	codeValidationError      = "validation_error"
	codeUnsupportedMediaType = "unsupported_media_type"
	codeNoTranscript         = "no_transcript_available"
	codeAlreadyIngested      = "already_ingested"
	codeNotFound             = "not_found"
	codeExtractionFailed     = "extraction_failed"
	codeInvalidVector        = "invalid_vector"
	codeRateLimited          = "rate_limited"
	codeTranscriptionFailed  = "transcription_failed"
	codeExternalService      = "external_service_error"
	codeInternalError        = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the ingestion, retrieval and chat services over HTTP.
type Server struct {
	documents     *ingestuc.Service
	videos        *videouc.Service
	channels      *channeluc.Service
	retrieval     *retrievaluc.Service
	chat          *chatuc.Service
	library       *libraryuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	documents *ingestuc.Service,
	videos *videouc.Service,
	channels *channeluc.Service,
	retrieval *retrievaluc.Service,
	chat *chatuc.Service,
	library *libraryuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		documents: documents,
		videos:    videos,
		channels:  channels,
		retrieval: retrieval,
		chat:      chat,
		library:   library,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrAlreadyIngested, http.StatusConflict, codeAlreadyIngested),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrUnsupportedMediaType, http.StatusUnsupportedMediaType, codeUnsupportedMediaType),
		sentinelHandler(domain.ErrNoTranscript, http.StatusNotFound, codeNoTranscript),
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, codeValidationError),
		sentinelHandler(domain.ErrExtractionFailed, http.StatusUnprocessableEntity, codeExtractionFailed),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusUnprocessableEntity, codeInvalidVector),
		sentinelHandler(domain.ErrDegenerateVector, http.StatusUnprocessableEntity, codeInvalidVector),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded, http.StatusBadGateway, codeExternalService),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeExternalService),
		sentinelHandler(domain.ErrCompletionProviderError, http.StatusBadGateway, codeExternalService),
		sentinelHandler(domain.ErrTranscriptionFailed, http.StatusBadGateway, codeTranscriptionFailed),
		sentinelHandler(domain.ErrExternalService, http.StatusBadGateway, codeExternalService),
	}
	return s
}

// Routes mounts all endpoints on the router. Middleware is attached by the caller.
func (s *Server) Routes(r chiRouter.Router) {
	r.Route("/api/v1", func(r chiRouter.Router) {
		r.Post("/documents", s.IngestDocument)
		r.Post("/videos", s.IngestVideo)
		r.Post("/channels", s.IngestChannel)
		r.Post("/retrieve", s.Retrieve)
		r.Post("/chat", s.Chat)
		r.Get("/chunks", s.ListChunks)
		r.Delete("/chunks/{id}", s.DeleteChunk)
		r.Delete("/chunks", s.ClearChunks)
		r.Get("/stats", s.Stats)
	})
	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

// IngestDocument handles POST /api/v1/documents. Accepts a JSON body with
// pasted text or a multipart upload with a "file" field.
func (s *Server) IngestDocument(w http.ResponseWriter, r *http.Request) {
	ctx, usage := domain.NewContextWithUsage(r.Context())

	var (
		receipt domain.IngestReceipt
		err     error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, ferr := r.FormFile("file")
		if ferr != nil {
			writeError(w, http.StatusBadRequest, codeValidationError, `Multipart field "file" is required`)
			return
		}
		defer func() { _ = file.Close() }()

		receipt, err = s.documents.IngestFile(ctx, ingestuc.FileUpload{
			Name:  header.Filename,
			MIME:  header.Header.Get("Content-Type"),
			Title: r.FormValue("title"),
			Body:  file,
		})
	} else {
		var req ingestDocumentRequest
		if derr := json.NewDecoder(r.Body).Decode(&req); derr != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+derr.Error())
			return
		}
		receipt, err = s.documents.IngestText(ctx, req.Title, req.Text)
	}
	if err != nil {
		metrics.IngestSourcesTotal.WithLabelValues(string(chunk.SourceDocument), "error").Inc()
		s.handleDomainError(w, err)
		return
	}

	recordIngest(chunk.SourceDocument, receipt.Chunks)
	setEmbeddingHeaders(w, usage)
	w.Header().Set("Location", "/api/v1/chunks?q="+url.QueryEscape(receipt.Source))
	writeJSON(w, http.StatusCreated, receiptToResponse(receipt))
}

// IngestVideo handles POST /api/v1/videos.
func (s *Server) IngestVideo(w http.ResponseWriter, r *http.Request) {
	var req ingestVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, codeValidationError, "Video URL is required")
		return
	}

	videoID, err := youtube.ParseVideoID(req.URL)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	receipt, err := s.videos.Ingest(ctx, videouc.Request{
		VideoID:    videoID,
		URL:        youtube.WatchURL(videoID),
		Strategy:   videouc.Strategy(req.Strategy),
		Transcript: req.Transcript,
		Title:      req.Title,
		Force:      req.Force,
	})
	if err != nil {
		metrics.IngestSourcesTotal.WithLabelValues(string(chunk.SourceYouTube), "error").Inc()
		s.handleDomainError(w, err)
		return
	}

	recordIngest(chunk.SourceYouTube, receipt.Chunks)
	setEmbeddingHeaders(w, usage)
	w.Header().Set("Location", "/api/v1/chunks?q="+url.QueryEscape(receipt.Source))
	writeJSON(w, http.StatusCreated, receiptToResponse(receipt))
}

// IngestChannel handles POST /api/v1/channels. Per-video failures end up in
// the report items, not in the response status.
func (s *Server) IngestChannel(w http.ResponseWriter, r *http.Request) {
	var req ingestChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	report, err := s.channels.Ingest(ctx, channeluc.Request{
		Channel:      req.Channel,
		MaxVideos:    req.MaxVideos,
		SkipExisting: req.SkipExisting,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	// Чанки считаем только для success: skipped уже учтены при первом инжесте.
	for _, res := range report.Results {
		metrics.IngestSourcesTotal.WithLabelValues(string(chunk.SourceYouTube), string(res.Status())).Inc()
		if res.Status() == batch.StatusSuccess {
			metrics.IngestChunksTotal.WithLabelValues(string(chunk.SourceYouTube)).Add(float64(res.Chunks()))
		}
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, channelReportToResponse(report))
}

// Retrieve handles POST /api/v1/retrieve.
func (s *Server) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	matches, err := s.retrieval.Retrieve(ctx, req.Query, req.TopK)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]retrieveResultItem, len(matches))
	for i, m := range matches {
		items[i] = matchToItem(m)
	}
	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, retrieveResponse{Items: items, Total: len(items)})
}

// Chat handles POST /api/v1/chat.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	history := make([]chatuc.Turn, len(req.History))
	for i, t := range req.History {
		history[i] = chatuc.Turn{Role: t.Role, Content: t.Content}
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	answer, err := s.chat.Answer(ctx, chatuc.Request{
		Message: req.Message,
		History: history,
		TopK:    req.TopK,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	citations := make([]citationItem, len(answer.Citations))
	for i, c := range answer.Citations {
		citations[i] = citationToItem(c)
	}
	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, chatResponse{
		Answer:      answer.Text,
		Citations:   citations,
		ContextUsed: answer.ContextUsed,
	})
}

// ListChunks handles GET /api/v1/chunks with optional "type" and "q" filters.
func (s *Server) ListChunks(w http.ResponseWriter, r *http.Request) {
	filter := chunk.ListFilter{Term: r.URL.Query().Get("q")}
	if t := r.URL.Query().Get("type"); t != "" {
		st := chunk.SourceType(t)
		if !st.Valid() {
			writeError(w, http.StatusBadRequest, codeValidationError, "Unknown source type: "+strconv.Quote(t))
			return
		}
		filter.Type = st
	}

	chunks := s.library.List(filter)
	items := make([]chunkItem, len(chunks))
	for i, c := range chunks {
		items[i] = chunkToItem(c)
	}
	writeJSON(w, http.StatusOK, chunkListResponse{Items: items, Total: len(items)})
}

// DeleteChunk handles DELETE /api/v1/chunks/{id}.
func (s *Server) DeleteChunk(w http.ResponseWriter, r *http.Request) {
	id := chiRouter.URLParam(r, "id")
	removed := s.library.Delete(id)
	writeJSON(w, http.StatusOK, chunkDeleteResponse{Removed: removed})
}

// ClearChunks handles DELETE /api/v1/chunks and wipes the whole index.
func (s *Server) ClearChunks(w http.ResponseWriter, r *http.Request) {
	removed := s.library.Clear()
	s.logger.Info("index cleared", zap.Int("chunks_removed", removed))
	writeJSON(w, http.StatusOK, indexClearResponse{Removed: removed})
}

// Stats handles GET /api/v1/stats.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	stats := s.library.Stats()
	byType := make(map[string]int, len(stats.ByType))
	for k, v := range stats.ByType {
		byType[string(k)] = v
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Chunks:     stats.Chunks,
		Sources:    stats.Sources,
		Dimensions: stats.Dimensions,
		ByType:     byType,
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for name, result := range report.Checks {
		checks[name] = string(result)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, healthResponse{
		Status:  string(report.Status),
		Version: version.Version,
		Checks:  checks,
	})
}

// handleDomainError maps a usecase error onto an HTTP response.
func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	msg := safeDomainMessage(err)
	s.logger.Warn("domain error", zap.Error(err))
	for _, handle := range s.errorHandlers {
		if handle(w, err, msg) {
			return
		}
	}
	s.logger.Error("unhandled domain error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, msg)
}

// sentinelHandler maps one domain sentinel to a status and error code.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// mappedSentinels are the domain errors whose wrap chains are safe to show.
var mappedSentinels = []error{
	domain.ErrAlreadyIngested,
	domain.ErrNotFound,
	domain.ErrUnsupportedMediaType,
	domain.ErrNoTranscript,
	domain.ErrValidation,
	domain.ErrExtractionFailed,
	domain.ErrVectorDimMismatch,
	domain.ErrDegenerateVector,
	domain.ErrRateLimited,
	domain.ErrEmbeddingQuotaExceeded,
	domain.ErrEmbeddingProviderError,
	domain.ErrCompletionProviderError,
	domain.ErrTranscriptionFailed,
	domain.ErrExternalService,
}

// safeDomainMessage returns the error text for recognized domain errors.
// Unrecognized errors collapse to a generic message so internals never leak.
func safeDomainMessage(err error) string {
	for _, sentinel := range mappedSentinels {
		if errors.Is(err, sentinel) {
			return err.Error()
		}
	}
	return "internal error"
}

// setEmbeddingHeaders exposes per-request embedding token usage.
func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage == nil || !usage.Used {
		return
	}
	w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
}

func recordIngest(sourceType chunk.SourceType, chunks int) {
	metrics.IngestSourcesTotal.WithLabelValues(string(sourceType), "success").Inc()
	metrics.IngestChunksTotal.WithLabelValues(string(sourceType)).Add(float64(chunks))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ingestDocumentRequest struct {
	Text  string `json:"text"`
	Title string `json:"title"`
}

type ingestVideoRequest struct {
	URL        string `json:"url"`
	Strategy   string `json:"strategy"`
	Transcript string `json:"transcript"`
	Title      string `json:"title"`
	Force      bool   `json:"force"`
}

type ingestChannelRequest struct {
	Channel      string `json:"channel"`
	MaxVideos    int    `json:"max_videos"`
	SkipExisting bool   `json:"skip_existing"`
}

type ingestReceiptResponse struct {
	Source       string `json:"source"`
	Title        string `json:"title,omitempty"`
	Chunks       int    `json:"chunks"`
	PromptTokens int    `json:"prompt_tokens,omitempty"`
	TotalTokens  int    `json:"total_tokens,omitempty"`
}

type videoResultItem struct {
	VideoID string         `json:"video_id"`
	Title   string         `json:"title,omitempty"`
	Status  string         `json:"status"`
	Chunks  int            `json:"chunks"`
	Error   *errorResponse `json:"error,omitempty"`
}

type channelReportResponse struct {
	ChannelID   string            `json:"channel_id"`
	Requested   int               `json:"requested"`
	Processed   int               `json:"processed"`
	Succeeded   int               `json:"succeeded"`
	Skipped     int               `json:"skipped"`
	Failed      int               `json:"failed"`
	TotalChunks int               `json:"total_chunks"`
	Results     []videoResultItem `json:"results"`
}

type retrieveRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type retrieveResultItem struct {
	ID         string  `json:"id"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
	SourceType string  `json:"source_type"`
	Source     string  `json:"source"`
	Title      string  `json:"title,omitempty"`
	Ref        string  `json:"ref,omitempty"`
	ChunkIndex int     `json:"chunk_index"`
}

type retrieveResponse struct {
	Items []retrieveResultItem `json:"items"`
	Total int                  `json:"total"`
}

type chatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Message string     `json:"message"`
	History []chatTurn `json:"history"`
	TopK    int        `json:"top_k"`
}

type citationItem struct {
	SourceType string  `json:"source_type"`
	Source     string  `json:"source"`
	Title      string  `json:"title,omitempty"`
	Ref        string  `json:"ref,omitempty"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
}

type chatResponse struct {
	Answer      string         `json:"answer"`
	Citations   []citationItem `json:"citations"`
	ContextUsed bool           `json:"context_used"`
}

type chunkItem struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	SourceType string    `json:"source_type"`
	Source     string    `json:"source"`
	Title      string    `json:"title,omitempty"`
	Ref        string    `json:"ref,omitempty"`
	ChunkIndex int       `json:"chunk_index"`
	IngestedAt time.Time `json:"ingested_at"`
}

type chunkListResponse struct {
	Items []chunkItem `json:"items"`
	Total int         `json:"total"`
}

type chunkDeleteResponse struct {
	Removed bool `json:"removed"`
}

type indexClearResponse struct {
	Removed int `json:"removed"`
}

type statsResponse struct {
	Chunks     int            `json:"chunks"`
	Sources    int            `json:"sources"`
	Dimensions int            `json:"dimensions"`
	ByType     map[string]int `json:"by_type"`
}

type healthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
}

func receiptToResponse(r domain.IngestReceipt) ingestReceiptResponse {
	return ingestReceiptResponse{
		Source:       r.Source,
		Title:        r.Title,
		Chunks:       r.Chunks,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}
}

func channelReportToResponse(r channeluc.Report) channelReportResponse {
	results := make([]videoResultItem, len(r.Results))
	for i, res := range r.Results {
		results[i] = videoResultToItem(res)
	}
	return channelReportResponse{
		ChannelID:   r.ChannelID,
		Requested:   r.Requested,
		Processed:   r.Processed,
		Succeeded:   r.Succeeded,
		Skipped:     r.Skipped,
		Failed:      r.Failed,
		TotalChunks: r.TotalChunks,
		Results:     results,
	}
}

func videoResultToItem(r batch.Result) videoResultItem {
	item := videoResultItem{
		VideoID: r.VideoID(),
		Title:   r.Title(),
		Status:  string(r.Status()),
		Chunks:  r.Chunks(),
	}
	if err := r.Err(); err != nil {
		item.Error = &errorResponse{
			Code:    videoErrorCode(err),
			Message: safeDomainMessage(err),
		}
	}
	return item
}

// videoErrorCode maps a per-video batch error to the response code without
// committing to an HTTP status.
func videoErrorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoTranscript):
		return codeNoTranscript
	case errors.Is(err, domain.ErrTranscriptionFailed):
		return codeTranscriptionFailed
	case errors.Is(err, domain.ErrValidation):
		return codeValidationError
	case errors.Is(err, domain.ErrVectorDimMismatch), errors.Is(err, domain.ErrDegenerateVector):
		return codeInvalidVector
	case errors.Is(err, domain.ErrRateLimited):
		return codeRateLimited
	case errors.Is(err, domain.ErrEmbeddingQuotaExceeded),
		errors.Is(err, domain.ErrEmbeddingProviderError),
		errors.Is(err, domain.ErrExternalService):
		return codeExternalService
	case errors.Is(err, domain.ErrNotFound):
		return codeNotFound
	default:
		return codeInternalError
	}
}

func matchToItem(m chunk.Scored) retrieveResultItem {
	meta := m.Chunk.Meta()
	return retrieveResultItem{
		ID:         m.Chunk.ID(),
		Content:    m.Chunk.Content(),
		Score:      m.Score,
		SourceType: string(meta.Type()),
		Source:     meta.SourceID(),
		Title:      meta.Title(),
		Ref:        meta.Ref(),
		ChunkIndex: meta.ChunkIndex(),
	}
}

func citationToItem(c retrievaluc.Citation) citationItem {
	return citationItem{
		SourceType: string(c.SourceType),
		Source:     c.SourceID,
		Title:      c.Title,
		Ref:        c.Ref,
		ChunkIndex: c.ChunkIndex,
		Score:      c.Score,
	}
}

func chunkToItem(c chunk.Chunk) chunkItem {
	meta := c.Meta()
	return chunkItem{
		ID:         c.ID(),
		Content:    c.Content(),
		SourceType: string(meta.Type()),
		Source:     meta.SourceID(),
		Title:      meta.Title(),
		Ref:        meta.Ref(),
		ChunkIndex: meta.ChunkIndex(),
		IngestedAt: meta.IngestedAt(),
	}
}
