// Package server exposes the content studio as a JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"medisocial/agenda"
	"medisocial/generator"
	"medisocial/logger"
	"medisocial/publisher"
)

// Uploaded images travel inline as data URIs.
const maxBodyBytes = 20 << 20

type Server struct {
	orch *generator.Orchestrator
	book *agenda.Book
	log  *logger.Logger
	now  func() time.Time
}

func New(orch *generator.Orchestrator, book *agenda.Book, log *logger.Logger) (*Server, error) {
	if orch == nil {
		return nil, errors.New("orchestrator required")
	}
	if book == nil {
		return nil, errors.New("agenda required")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Server{orch: orch, book: book, log: log, now: time.Now}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/post", s.handlePostGet)
	mux.HandleFunc("POST /api/post", s.handlePostSubmit)
	mux.HandleFunc("PATCH /api/post", s.handlePostEdit)
	mux.HandleFunc("GET /api/post/request", s.handlePostRequest)
	mux.HandleFunc("POST /api/post/regenerate-text", s.handlePostRegenerateText)
	mux.HandleFunc("POST /api/post/regenerate-image", s.handlePostRegenerateImage)
	mux.HandleFunc("POST /api/post/refine", s.handlePostRefine)
	mux.HandleFunc("GET /api/post/image", s.handlePostImage)
	mux.HandleFunc("GET /api/post/copy", s.handlePostCopy)

	mux.HandleFunc("GET /api/article", s.handleArticleGet)
	mux.HandleFunc("POST /api/article", s.handleArticleSubmit)
	mux.HandleFunc("GET /api/article/preview", s.handleArticlePreview)

	mux.HandleFunc("GET /api/infographic", s.handleInfographicGet)
	mux.HandleFunc("POST /api/infographic", s.handleInfographicSubmit)
	mux.HandleFunc("POST /api/infographic/images/{part}", s.handleInfographicRetry)

	mux.HandleFunc("GET /api/conversion", s.handleConversionGet)
	mux.HandleFunc("POST /api/conversion", s.handleConversionSubmit)

	mux.HandleFunc("GET /api/appointments", s.handleAppointmentList)
	mux.HandleFunc("GET /api/appointment", s.handleAppointmentMessageGet)
	mux.HandleFunc("POST /api/appointments/{id}/message", s.handleAppointmentMessage)
	mux.HandleFunc("POST /api/appointments/{id}/send", s.handleAppointmentSend)

	mux.HandleFunc("DELETE /api/{tool}/error", s.handleDismissError)
	mux.HandleFunc("POST /api/{tool}/reset", s.handleReset)

	return s.logMiddleware(mux)
}

// --- Post ---

func (s *Server) handlePostGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Post())
}

func (s *Server) handlePostSubmit(w http.ResponseWriter, r *http.Request) {
	var req generator.PostRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		writeError(w, http.StatusBadRequest, "topic is required")
		return
	}
	if req.UploadedImage != "" {
		if _, err := generator.ParseDataURI(req.UploadedImage); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, s.orch.SubmitPost(r.Context(), req))
}

// handlePostRequest returns the last submitted form so the wizard can be prefilled.
func (s *Server) handlePostRequest(w http.ResponseWriter, r *http.Request) {
	req, ok := s.orch.LastPostRequest()
	if !ok {
		writeError(w, http.StatusNotFound, "no post request")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handlePostEdit(w http.ResponseWriter, r *http.Request) {
	var edit generator.PostEdit
	if !s.decode(w, r, &edit) {
		return
	}
	snap, err := s.orch.EditPost(edit)
	s.reply(w, snap, err)
}

func (s *Server) handlePostRegenerateText(w http.ResponseWriter, r *http.Request) {
	snap, err := s.orch.RegeneratePostText(r.Context())
	s.reply(w, snap, err)
}

func (s *Server) handlePostRegenerateImage(w http.ResponseWriter, r *http.Request) {
	snap, err := s.orch.RegeneratePostImage(r.Context())
	s.reply(w, snap, err)
}

type refineReq struct {
	Caption     string `json:"caption"`
	Instruction string `json:"instruction"`
}

func (s *Server) handlePostRefine(w http.ResponseWriter, r *http.Request) {
	var req refineReq
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Instruction) == "" {
		writeError(w, http.StatusBadRequest, "instruction is required")
		return
	}
	caption := req.Caption
	if caption == "" {
		if snap := s.orch.Post(); snap.Result != nil && snap.Result.Content != nil {
			caption = snap.Result.Content.Caption
		}
	}
	snap, err := s.orch.RefinePostCaption(r.Context(), caption, req.Instruction)
	s.reply(w, snap, err)
}

func (s *Server) handlePostImage(w http.ResponseWriter, r *http.Request) {
	snap := s.orch.Post()
	if snap.Result == nil || snap.Result.ImageURL == "" {
		writeError(w, http.StatusNotFound, "no image")
		return
	}
	att, err := generator.ParseDataURI(snap.Result.ImageURL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	name := publisher.ImageFilename(s.now(), att.MimeType)
	w.Header().Set("Content-Type", att.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if _, err := w.Write(att.Data); err != nil {
		s.log.Warn("write image failed", "error", err)
	}
}

func (s *Server) handlePostCopy(w http.ResponseWriter, r *http.Request) {
	snap := s.orch.Post()
	if snap.Result == nil || snap.Result.Content == nil {
		writeError(w, http.StatusNotFound, "no post")
		return
	}
	c := snap.Result.Content
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, publisher.CopyText(c.Headline, c.Caption, c.Hashtags))
}

// --- Article ---

func (s *Server) handleArticleGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Article())
}

func (s *Server) handleArticleSubmit(w http.ResponseWriter, r *http.Request) {
	var req generator.ArticleRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		writeError(w, http.StatusBadRequest, "topic is required")
		return
	}
	writeJSON(w, http.StatusOK, s.orch.SubmitArticle(r.Context(), req))
}

func (s *Server) handleArticlePreview(w http.ResponseWriter, r *http.Request) {
	snap := s.orch.Article()
	if snap.Result == nil {
		writeError(w, http.StatusNotFound, "no article")
		return
	}
	a := snap.Result.Article
	page, err := publisher.ArticlePage(a.Title, a.MetaDescription, a.ContentHTML)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

// --- Infographic ---

func (s *Server) handleInfographicGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Infographic())
}

func (s *Server) handleInfographicSubmit(w http.ResponseWriter, r *http.Request) {
	var req generator.InfographicRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Diagnosis) == "" {
		writeError(w, http.StatusBadRequest, "diagnosis is required")
		return
	}
	writeJSON(w, http.StatusOK, s.orch.SubmitInfographic(r.Context(), req))
}

func (s *Server) handleInfographicRetry(w http.ResponseWriter, r *http.Request) {
	var stage generator.Stage
	switch r.PathValue("part") {
	case "hero":
		stage = generator.StageHeroImage
	case "anatomy":
		stage = generator.StageAnatomyImage
	default:
		writeError(w, http.StatusNotFound, "unknown image "+r.PathValue("part"))
		return
	}
	snap, err := s.orch.RetryInfographicImage(r.Context(), stage)
	s.reply(w, snap, err)
}

// --- Conversion ---

func (s *Server) handleConversionGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Conversion())
}

func (s *Server) handleConversionSubmit(w http.ResponseWriter, r *http.Request) {
	var req generator.ConversionRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Pathology) == "" {
		writeError(w, http.StatusBadRequest, "pathology is required")
		return
	}
	if req.Format != generator.ConversionReels && req.Format != generator.ConversionDeepArticle {
		writeError(w, http.StatusBadRequest, "format must be REELS or DEEP_ARTICLE")
		return
	}
	writeJSON(w, http.StatusOK, s.orch.SubmitConversion(r.Context(), req))
}

// --- Appointments ---

func (s *Server) handleAppointmentList(w http.ResponseWriter, r *http.Request) {
	items, err := s.book.List(agenda.Filter(r.URL.Query().Get("filter")))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleAppointmentMessageGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Appointment())
}

type messageReq struct {
	Tone       generator.Tone `json:"tone"`
	CustomNote string         `json:"customNote"`
}

func (s *Server) handleAppointmentMessage(w http.ResponseWriter, r *http.Request) {
	appt, err := s.book.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	var req messageReq
	if !s.decodeOptional(w, r, &req) {
		return
	}
	snap := s.orch.SubmitAppointmentMessage(r.Context(), generator.AppointmentMessageRequest{
		Appointment: appt,
		Tone:        req.Tone,
		CustomNote:  req.CustomNote,
	})
	writeJSON(w, http.StatusOK, snap)
}

type sendReq struct {
	Text string `json:"text"`
}

// handleAppointmentSend hands the message to WhatsApp. Without a body text it
// sends the generated message for that appointment.
func (s *Server) handleAppointmentSend(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req sendReq
	if !s.decodeOptional(w, r, &req) {
		return
	}
	text := req.Text
	if strings.TrimSpace(text) == "" {
		snap := s.orch.Appointment()
		if snap.Result == nil || snap.Result.AppointmentID != id {
			writeError(w, http.StatusConflict, generator.ErrNoResult.Error())
			return
		}
		text = snap.Result.Text
	}
	h, err := s.book.HandOff(id, text)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	s.log.Info("appointment handed off", "appointment_id", id, "status", h.Appointment.Status)
	writeJSON(w, http.StatusOK, h)
}

// --- Tool lifecycle ---

func (s *Server) handleDismissError(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.DismissError(generator.Tool(r.PathValue("tool"))); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.Reset(generator.Tool(r.PathValue("tool"))); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

type errorResp struct {
	Error string `json:"error"`
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.log.Warn("decode request failed", "request_id", RequestID(r.Context()), "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// decodeOptional accepts an empty body.
func (s *Server) decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// reply writes the snapshot, or the refusal when the orchestrator declined.
func (s *Server) reply(w http.ResponseWriter, snap any, err error) {
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, generator.ErrBusy),
		errors.Is(err, generator.ErrCustomImage),
		errors.Is(err, generator.ErrNothingToRegenerate):
		return http.StatusConflict
	case errors.Is(err, generator.ErrNoResult),
		errors.Is(err, generator.ErrUnknownTool),
		errors.Is(err, generator.ErrUnknownStage),
		errors.Is(err, agenda.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, agenda.ErrUnknownFilter):
		return http.StatusBadRequest
	case errors.Is(err, publisher.ErrInvalidPhone):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		data, _ = json.Marshal(errorResp{Error: "internal server error"})
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResp{Error: msg})
}

type requestIDKey struct{}

// RequestID returns the id assigned to the request by the log middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
		s.log.Info("http request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
