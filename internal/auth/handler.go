package auth

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

type LoginRequest struct {
	Type     string `json:"type"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.Validationf("invalid request body"))
		return
	}

	result, err := h.service.Login(req.Type, req.Email, req.Password)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, result)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterStudentInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.Validationf("invalid request body"))
		return
	}

	if _, err := h.service.RegisterStudent(req); err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusCreated, map[string]string{"message": "Student registered successfully"})
}

func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	student, err := h.service.GetStudent(id)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, student)
}

func (h *Handler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	var req UpdateStudentInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.Validationf("invalid request body"))
		return
	}

	student, err := h.service.UpdateStudent(id, req)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, student)
}

func (h *Handler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	if err := h.service.DeleteStudent(id); err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, map[string]string{"message": "Student deleted successfully"})
}

func pathID(r *http.Request, name string) uint {
	id, _ := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	return uint(id)
}
