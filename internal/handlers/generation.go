package handlers

import (
	"log/slog"
	"net/http"

	"github.com/shouni/go-tattoo-kit/pkg/domain"
)

func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	out, err := s.Generate(r.Context())
	if err != nil {
		h.writeOpError(w, err)
		return
	}
	h.writeJSON(w, out)
}

func (h *Handler) HandleRetry(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	out, err := s.Retry(r.Context())
	if err != nil {
		h.writeOpError(w, err)
		return
	}
	h.writeJSON(w, out)
}

func (h *Handler) HandleNewDesign(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	s.NewDesign()
	h.writeJSON(w, h.sessionView(s))
}

// HandleImage は成功した試行の color / stencil 画像をそのまま返すのだ。
func (h *Handler) HandleImage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	result := s.Result()
	if result == nil {
		h.writeError(w, "No design has been generated yet", http.StatusNotFound)
		return
	}
	img, found := result.Image(domain.ImageKind(r.PathValue("kind")))
	if !found {
		h.writeError(w, "Image not found", http.StatusNotFound)
		return
	}
	mimeType := img.MimeType
	if mimeType == "" {
		mimeType = http.DetectContentType(img.Data)
	}
	w.Header().Set("Content-Type", mimeType)
	if _, err := w.Write(img.Data); err != nil {
		slog.Error("Unable to write image", "err", err)
	}
}
