package attempt

import (
	"errors"
	"fmt"
	"time"

	"quizmaster/internal/apperr"
	"quizmaster/internal/models"

	"gorm.io/gorm"
)

// Exporter receives fire-and-forget history-export requests. It must not
// block.
type Exporter interface {
	HistoryExport(studentID uint)
}

type Service struct {
	repo     *Repository
	exporter Exporter
	now      func() time.Time
}

func NewService(repo *Repository, exporter Exporter) *Service {
	return &Service{repo: repo, exporter: exporter, now: time.Now}
}

type ExamDetails struct {
	ExamName       string `json:"exam_name"`
	TotalDuration  int    `json:"total_duration"`
	TotalQuestions int    `json:"total_questions"`
}

type StartResult struct {
	AttemptID   uint                  `json:"attempt_id"`
	ExamDetails ExamDetails           `json:"exam_details"`
	Questions   []models.QuestionView `json:"questions"`
}

// Start creates a fresh attempt against a published exam and returns the
// question set in its student-safe projection. TotalMarks is snapshotted
// here and never recomputed, so later edits to the exam cannot change the
// denominator of this attempt.
func (s *Service) Start(studentID, examID uint) (*StartResult, error) {
	exam, err := s.repo.GetExamWithQuestions(examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: exam", apperr.ErrNotFound)
		}
		return nil, err
	}
	if !exam.Published {
		// Unpublished exams are invisible to students.
		return nil, fmt.Errorf("%w: exam", apperr.ErrNotFound)
	}
	if exam.ScheduleType == models.ScheduleSpecificTime &&
		exam.StartTime != nil && s.now().Before(*exam.StartTime) {
		return nil, apperr.Validationf("exam has not opened yet")
	}

	attempt := &models.Attempt{
		StudentID:   studentID,
		ExamID:      examID,
		AttemptDate: s.now(),
		TotalMarks:  exam.TotalMarks,
	}
	if err := s.repo.CreateAttempt(attempt); err != nil {
		return nil, err
	}

	questions := make([]models.QuestionView, len(exam.Questions))
	for i, q := range exam.Questions {
		questions[i] = q.StudentView()
	}

	return &StartResult{
		AttemptID: attempt.ID,
		ExamDetails: ExamDetails{
			ExamName:       exam.Name,
			TotalDuration:  exam.DurationMinutes,
			TotalQuestions: exam.TotalQuestions,
		},
		Questions: questions,
	}, nil
}

type SubmitResult struct {
	AttemptID  uint    `json:"attempt_id"`
	Score      float64 `json:"score"`
	TotalMarks float64 `json:"total_marks"`
}

// Submit scores the attempt and makes it terminal. Answers are keyed by
// question id; a nil value means unanswered and produces neither a score
// delta nor a SelectedAnswer row. Ids that don't belong to the exam are
// skipped silently. Re-submission fails with ErrAlreadySubmitted and leaves
// the first result untouched.
func (s *Service) Submit(studentID, attemptID uint, answers map[uint]*int) (*SubmitResult, error) {
	attempt, err := s.repo.GetAttemptForStudent(attemptID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: attempt", apperr.ErrNotFoundOrUnauthorized)
		}
		return nil, err
	}
	if attempt.Submitted {
		return nil, apperr.ErrAlreadySubmitted
	}

	exam, err := s.repo.GetExamWithQuestions(attempt.ExamID)
	if err != nil {
		return nil, err
	}

	var total float64
	var selected []models.SelectedAnswer
	for _, q := range exam.Questions {
		choice, ok := answers[q.ID]
		if !ok || choice == nil {
			continue
		}
		total += Score(q, choice)
		selected = append(selected, models.SelectedAnswer{
			AttemptID:      attempt.ID,
			QuestionID:     q.ID,
			SelectedOption: *choice,
		})
	}

	if err := s.repo.FinalizeSubmission(attempt.ID, total, selected); err != nil {
		return nil, err
	}

	return &SubmitResult{
		AttemptID:  attempt.ID,
		Score:      total,
		TotalMarks: attempt.TotalMarks,
	}, nil
}

type ResultsResponse struct {
	AttemptID  uint               `json:"attempt_id"`
	ExamName   string             `json:"exam_name"`
	Score      float64            `json:"score"`
	TotalMarks float64            `json:"total_marks"`
	Results    []models.ResultRow `json:"results"`
}

// Results reconstructs the post-submission review: every exam question,
// answered or not, with the student's pick next to the correct option.
// Correct options stay hidden until the attempt is submitted.
func (s *Service) Results(studentID, attemptID uint) (*ResultsResponse, error) {
	attempt, err := s.repo.GetAttemptWithAnswers(attemptID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: attempt", apperr.ErrNotFoundOrUnauthorized)
		}
		return nil, err
	}
	if !attempt.Submitted {
		return nil, apperr.Validationf("attempt has not been submitted yet")
	}

	exam, err := s.repo.GetExamWithQuestions(attempt.ExamID)
	if err != nil {
		return nil, err
	}

	answerMap := make(map[uint]int, len(attempt.Answers))
	for _, a := range attempt.Answers {
		answerMap[a.QuestionID] = a.SelectedOption
	}

	rows := make([]models.ResultRow, len(exam.Questions))
	for i, q := range exam.Questions {
		yourAnswer := models.UnansweredSentinel
		if choice, ok := answerMap[q.ID]; ok {
			yourAnswer = choice
		}
		rows[i] = models.ResultRow{
			Statement:     q.Statement,
			Option1:       q.Option1,
			Option2:       q.Option2,
			Option3:       q.Option3,
			Option4:       q.Option4,
			CorrectOption: q.CorrectOption,
			YourAnswer:    yourAnswer,
			Marks:         q.Marks,
			NegativeMarks: q.NegativeMarks,
		}
	}

	return &ResultsResponse{
		AttemptID:  attempt.ID,
		ExamName:   exam.Name,
		Score:      attempt.MarksObtained,
		TotalMarks: attempt.TotalMarks,
		Results:    rows,
	}, nil
}

// History lists the student's attempts, newest first.
func (s *Service) History(studentID uint) ([]models.HistoryEntry, error) {
	attempts, err := s.repo.ListAttempts(studentID)
	if err != nil {
		return nil, err
	}
	entries := make([]models.HistoryEntry, len(attempts))
	for i, a := range attempts {
		entry := models.HistoryEntry{
			AttemptID:     a.ID,
			ExamID:        a.ExamID,
			MarksObtained: a.MarksObtained,
			TotalMarks:    a.TotalMarks,
			AttemptDate:   a.AttemptDate,
		}
		if a.Exam != nil {
			entry.ExamName = a.Exam.Name
		}
		entries[i] = entry
	}
	return entries, nil
}

// ExportHistory hands the export off to the task queue; the caller gets an
// immediate acknowledgment.
func (s *Service) ExportHistory(studentID uint) error {
	if s.exporter == nil {
		return apperr.Validationf("history export is not configured")
	}
	s.exporter.HistoryExport(studentID)
	return nil
}
