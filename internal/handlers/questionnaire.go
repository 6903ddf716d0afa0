package handlers

import (
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/shouni/go-tattoo-kit/pkg/domain"
	"github.com/shouni/go-tattoo-kit/pkg/questionnaire"
)

func (h *Handler) stepOrError(w http.ResponseWriter, r *http.Request) (int, bool) {
	step, err := strconv.Atoi(r.PathValue("step"))
	if err != nil {
		h.writeError(w, "Invalid step", http.StatusBadRequest)
		return 0, false
	}
	return step, true
}

func (h *Handler) HandleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	step, ok := h.stepOrError(w, r)
	if !ok {
		return
	}
	var body struct {
		Value string `json:"value"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	status, err := s.SubmitAnswer(step, body.Value)
	if err != nil {
		h.writeOpError(w, err)
		return
	}
	h.writeJSON(w, status)
}

func (h *Handler) HandleSkip(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	step, ok := h.stepOrError(w, r)
	if !ok {
		return
	}
	status, err := s.Skip(step)
	if err != nil {
		h.writeOpError(w, err)
		return
	}
	h.writeJSON(w, status)
}

func (h *Handler) HandleFollowUp(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	step, ok := h.stepOrError(w, r)
	if !ok {
		return
	}
	f, err := s.FollowUp(r.Context(), step)
	if err != nil {
		h.writeOpError(w, err)
		return
	}
	h.writeJSON(w, f)
}

func (h *Handler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	var sel domain.Selection
	if !h.decode(w, r, &sel) {
		return
	}
	status, err := s.Select(domain.VisualCategory(r.PathValue("category")), sel)
	if err != nil {
		h.writeOpError(w, err)
		return
	}
	h.writeJSON(w, status)
}

func (h *Handler) HandleDeselect(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	status, err := s.Deselect(domain.VisualCategory(r.PathValue("category")), r.PathValue("tag"))
	if err != nil {
		h.writeOpError(w, err)
		return
	}
	h.writeJSON(w, status)
}

func (h *Handler) HandleClosingNote(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	var body struct {
		Note string `json:"note"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	status, err := s.SetClosingNote(body.Note)
	if err != nil {
		h.writeOpError(w, err)
		return
	}
	h.writeJSON(w, status)
}

// HandleAddReference は JSON (url または base64 data) か multipart の file を受け付けるのだ。
func (h *Handler) HandleAddReference(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	var ref domain.ReferenceImage
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			URL   string `json:"url"`
			Data  string `json:"data"`
			Label string `json:"label"`
		}
		if !h.decode(w, r, &body) {
			return
		}
		if body.URL != "" && h.urls != nil {
			if ok, err := h.urls.IsSafeURL(body.URL); !ok {
				slog.Warn("参照画像 URL を拒否したのだ", "url", body.URL, "err", err)
				h.writeError(w, "Reference URL is not allowed", http.StatusBadRequest)
				return
			}
		}
		ref = domain.ReferenceImage{URL: body.URL, Label: body.Label}
		if body.Data != "" {
			data, err := base64.StdEncoding.DecodeString(body.Data)
			if err != nil {
				h.writeError(w, "Invalid base64 data", http.StatusBadRequest)
				return
			}
			ref.Data = data
			ref.MimeType = http.DetectContentType(data)
		}
	} else {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			h.writeError(w, "Unable to parse form: "+err.Error(), http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			h.writeError(w, "No file uploaded", http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
		if err != nil {
			h.writeError(w, "Unable to read file", http.StatusBadRequest)
			return
		}
		ref = domain.ReferenceImage{Data: data, MimeType: http.DetectContentType(data), Label: header.Filename}
	}

	added, err := s.AddReference(ref)
	if err != nil {
		h.writeOpError(w, err)
		return
	}
	h.writeJSON(w, added)
}

func (h *Handler) HandleCanAdvance(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	snap := s.Snapshot()
	h.writeJSON(w, questionnaire.GateStatus{State: snap.State, CanAdvance: snap.CanAdvance})
}

type advanceResponse struct {
	State   questionnaire.State `json:"state"`
	Outcome any                 `json:"outcome,omitempty"`
}

func (h *Handler) HandleAdvance(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	state, out, err := s.Advance(r.Context())
	if err != nil {
		h.writeOpError(w, err)
		return
	}
	resp := advanceResponse{State: state}
	if out != nil {
		resp.Outcome = out
	}
	h.writeJSON(w, resp)
}

func (h *Handler) HandleRetreat(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	state, err := s.Retreat()
	if err != nil {
		h.writeOpError(w, err)
		return
	}
	h.writeJSON(w, advanceResponse{State: state})
}
