package catalog

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

func queryID(r *http.Request, name string) uint {
	id, _ := strconv.ParseUint(r.URL.Query().Get(name), 10, 64)
	return uint(id)
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Validationf("invalid request body")
	}
	return nil
}

// == Subjects ==

func (h *Handler) CreateSubject(w http.ResponseWriter, r *http.Request) {
	var in SubjectInput
	if err := decode(r, &in); err != nil {
		apperr.Write(w, err)
		return
	}
	subject, err := h.service.CreateSubject(in)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusCreated, subject)
}

func (h *Handler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.service.ListSubjects(r.URL.Query().Get("search"))
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, subjects)
}

func (h *Handler) UpdateSubject(w http.ResponseWriter, r *http.Request) {
	var in SubjectInput
	if err := decode(r, &in); err != nil {
		apperr.Write(w, err)
		return
	}
	subject, err := h.service.UpdateSubject(pathID(r, "id"), in)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, subject)
}

func (h *Handler) DeleteSubject(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSubject(pathID(r, "id")); err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, map[string]string{"message": "Subject deleted successfully"})
}

// == Chapters ==

func (h *Handler) CreateChapter(w http.ResponseWriter, r *http.Request) {
	var in ChapterInput
	if err := decode(r, &in); err != nil {
		apperr.Write(w, err)
		return
	}
	chapter, err := h.service.CreateChapter(pathID(r, "id"), in)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusCreated, chapter)
}

func (h *Handler) ListChapters(w http.ResponseWriter, r *http.Request) {
	subjectID := pathID(r, "id")
	if subjectID == 0 {
		subjectID = queryID(r, "subject_id")
	}
	chapters, err := h.service.ListChapters(subjectID, r.URL.Query().Get("search"))
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, chapters)
}

func (h *Handler) UpdateChapter(w http.ResponseWriter, r *http.Request) {
	var in ChapterInput
	if err := decode(r, &in); err != nil {
		apperr.Write(w, err)
		return
	}
	chapter, err := h.service.UpdateChapter(pathID(r, "id"), in)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, chapter)
}

func (h *Handler) DeleteChapter(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteChapter(pathID(r, "id")); err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, map[string]string{"message": "Chapter deleted successfully"})
}

// == Exams ==

func (h *Handler) CreateExam(w http.ResponseWriter, r *http.Request) {
	chapterID := queryID(r, "chapter_id")
	var in ExamInput
	if err := decode(r, &in); err != nil {
		apperr.Write(w, err)
		return
	}
	exam, err := h.service.CreateExam(chapterID, in)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusCreated, exam)
}

func (h *Handler) ListExams(w http.ResponseWriter, r *http.Request) {
	filter := ExamFilter{
		ChapterID: queryID(r, "chapter_id"),
		SubjectID: queryID(r, "subject_id"),
	}
	exams, err := h.service.ListExams(filter)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, exams)
}

func (h *Handler) UpdateExam(w http.ResponseWriter, r *http.Request) {
	var in ExamInput
	if err := decode(r, &in); err != nil {
		apperr.Write(w, err)
		return
	}
	exam, err := h.service.UpdateExam(pathID(r, "id"), in)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, exam)
}

func (h *Handler) DeleteExam(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteExam(pathID(r, "id")); err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, map[string]string{"message": "Exam deleted successfully"})
}

func (h *Handler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	exam, err := h.service.TogglePublish(pathID(r, "id"))
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, exam)
}

// == Questions ==

func (h *Handler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.service.ListQuestions(pathID(r, "id"))
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, questions)
}

func (h *Handler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	var in QuestionInput
	if err := decode(r, &in); err != nil {
		apperr.Write(w, err)
		return
	}
	question, err := h.service.AddQuestion(pathID(r, "id"), in)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusCreated, question)
}

func (h *Handler) UpdateQuestion(w http.ResponseWriter, r *http.Request) {
	var in QuestionInput
	if err := decode(r, &in); err != nil {
		apperr.Write(w, err)
		return
	}
	question, err := h.service.UpdateQuestion(pathID(r, "id"), in)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, question)
}

func (h *Handler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteQuestion(pathID(r, "id")); err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, map[string]string{"message": "Question deleted successfully"})
}

// == Admin students and dashboards ==

func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.service.ListStudents(r.URL.Query().Get("search"), queryID(r, "student_id"))
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, students)
}

func (h *Handler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	studentID := queryID(r, "student_id")
	if studentID == 0 {
		apperr.Write(w, apperr.Validationf("student_id is required"))
		return
	}
	if err := h.service.DeleteStudent(studentID); err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, map[string]string{"message": "Student deleted successfully"})
}

func (h *Handler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.service.AdminDashboard()
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, dashboard)
}

func (h *Handler) StudentDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.service.StudentDashboard(pathID(r, "id"))
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, dashboard)
}

// ListPublishedExams serves the student browse path (published exams only).
func (h *Handler) ListPublishedExams(w http.ResponseWriter, r *http.Request) {
	filter := ExamFilter{
		ChapterID: queryID(r, "chapter_id"),
		SubjectID: queryID(r, "subject_id"),
	}
	exams, err := h.service.ListPublishedExams(filter)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, exams)
}
