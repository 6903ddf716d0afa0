// Package handlers はデザインセッションの操作を JSON API として公開するのだ。
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shouni/go-http-kit/httpkit"

	"github.com/shouni/go-tattoo-kit/internal/storage"
	"github.com/shouni/go-tattoo-kit/pkg/design"
	"github.com/shouni/go-tattoo-kit/pkg/domain"
	"github.com/shouni/go-tattoo-kit/pkg/questionnaire"
)

const maxUploadSize = 10 << 20

// SessionFactory は新しいセッションを作るのだ。
type SessionFactory interface {
	NewSession() (*design.Session, error)
}

// DesignLister は保存済みデザインを返すのだ。
type DesignLister interface {
	ListDesigns(ctx context.Context, f domain.DesignFilter) ([]domain.DesignRecord, error)
}

type Handler struct {
	sessionStore *storage.SessionStore
	factory      SessionFactory
	bank         *questionnaire.Bank
	designs      DesignLister
	urls         httpkit.URLValidator
}

// Option は Handler の任意設定なのだ。
type Option func(*Handler)

// WithURLValidator は参照画像 URL を受け付ける前に安全性を確かめるのだ。
func WithURLValidator(v httpkit.URLValidator) Option {
	return func(h *Handler) { h.urls = v }
}

// New は Handler を返すのだ。designs は nil でもよいのだ。
func New(factory SessionFactory, bank *questionnaire.Bank, designs DesignLister, opts ...Option) (*Handler, error) {
	if factory == nil {
		return nil, errors.New("SessionFactory は必須です")
	}
	if bank == nil {
		return nil, errors.New("質問バンクは必須です")
	}
	h := &Handler{
		sessionStore: storage.New(),
		factory:      factory,
		bank:         bank,
		designs:      designs,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Routes は全エンドポイントを登録した mux を返すのだ。
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/questions", h.HandleQuestions)
	mux.HandleFunc("GET /api/designs", h.HandleDesigns)

	mux.HandleFunc("POST /api/sessions", h.HandleCreateSession)
	mux.HandleFunc("GET /api/sessions", h.HandleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", h.HandleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.HandleDeleteSession)
	mux.HandleFunc("GET /api/sessions/{id}/answers", h.HandleAnswers)

	mux.HandleFunc("PUT /api/sessions/{id}/stories/{step}", h.HandleSubmitAnswer)
	mux.HandleFunc("POST /api/sessions/{id}/stories/{step}/skip", h.HandleSkip)
	mux.HandleFunc("GET /api/sessions/{id}/stories/{step}/followup", h.HandleFollowUp)
	mux.HandleFunc("POST /api/sessions/{id}/selections/{category}", h.HandleSelect)
	mux.HandleFunc("DELETE /api/sessions/{id}/selections/{category}/{tag}", h.HandleDeselect)
	mux.HandleFunc("PUT /api/sessions/{id}/closing-note", h.HandleClosingNote)
	mux.HandleFunc("POST /api/sessions/{id}/references", h.HandleAddReference)

	mux.HandleFunc("GET /api/sessions/{id}/can-advance", h.HandleCanAdvance)
	mux.HandleFunc("POST /api/sessions/{id}/advance", h.HandleAdvance)
	mux.HandleFunc("POST /api/sessions/{id}/retreat", h.HandleRetreat)

	mux.HandleFunc("POST /api/sessions/{id}/generate", h.HandleGenerate)
	mux.HandleFunc("POST /api/sessions/{id}/retry", h.HandleRetry)
	mux.HandleFunc("POST /api/sessions/{id}/new-design", h.HandleNewDesign)
	mux.HandleFunc("GET /api/sessions/{id}/images/{kind}", h.HandleImage)

	mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})
	return mux
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message)
	} else {
		slog.Debug(message, "status", code)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeOpError はコアの拒否エラーを HTTP ステータスに対応づけるのだ。
func (h *Handler) writeOpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrStepOutOfRange),
		errors.Is(err, domain.ErrUnknownCategory),
		errors.Is(err, domain.ErrEmptyTag),
		errors.Is(err, domain.ErrEmptyReference):
		h.writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, questionnaire.ErrGateNotSatisfied),
		errors.Is(err, questionnaire.ErrAtFirstStep),
		errors.Is(err, questionnaire.ErrComplete),
		errors.Is(err, questionnaire.ErrSkipNotAllowed),
		errors.Is(err, design.ErrRetryUnavailable),
		errors.Is(err, design.ErrAlreadyGenerated),
		errors.Is(err, design.ErrGenerationPending):
		h.writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, design.ErrNoFollowUp):
		h.writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, design.ErrAbandoned):
		// 呼び出し側はもういないので記録だけ残すのだ
		slog.Info("放棄された要求です", "err", err)
	default:
		h.writeError(w, "Internal server error", http.StatusInternalServerError)
		slog.Error("Unexpected error", "err", err)
	}
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, r *http.Request) (*design.Session, bool) {
	session, exists := h.sessionStore.Get(r.PathValue("id"))
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return session, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadSize)).Decode(v); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
