package attempt

import (
	"encoding/json"
	"net/http"
	"strconv"

	"quizmaster/internal/apperr"

	"github.com/gorilla/mux"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func pathID(r *http.Request, name string) uint {
	id, _ := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	return uint(id)
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Start(pathID(r, "id"), pathID(r, "examId"))
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusCreated, result)
}

type submitRequest struct {
	// Keys are question ids as JSON object keys; null means unanswered.
	Answers map[string]*int `json:"answers"`
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.Validationf("invalid request body"))
		return
	}

	answers := make(map[uint]*int, len(req.Answers))
	for key, choice := range req.Answers {
		questionID, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			// Forged or garbage ids are skipped, not rejected.
			continue
		}
		answers[uint(questionID)] = choice
	}

	result, err := h.service.Submit(pathID(r, "id"), pathID(r, "attemptId"), answers)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, result)
}

func (h *Handler) Results(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.Results(pathID(r, "id"), pathID(r, "attemptId"))
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, results)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.History(pathID(r, "id"))
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, entries)
}

func (h *Handler) ExportHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ExportHistory(pathID(r, "id")); err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusAccepted, map[string]string{
		"message": "Your quiz history is being exported and will be sent to your email.",
	})
}
