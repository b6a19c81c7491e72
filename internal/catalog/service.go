package catalog

import (
	"errors"
	"fmt"
	"log"
	"time"

	"quizmaster/internal/apperr"
	"quizmaster/internal/models"

	"gorm.io/gorm"
)

// Cache fronts the published-exam read path and is invalidated wholesale
// after any mutating catalog operation. Correctness never depends on cache
// content, only read latency does.
type Cache interface {
	GetPublishedExams(key string) ([]models.Exam, bool)
	SetPublishedExams(key string, exams []models.Exam)
	InvalidateExams()
}

// Notifier is invoked after a publish transition has committed. It must not
// block the request.
type Notifier interface {
	ExamPublished(exam *models.Exam)
}

type Service struct {
	repo     *Repository
	cache    Cache
	notifier Notifier
}

func NewService(repo *Repository, cache Cache, notifier Notifier) *Service {
	return &Service{repo: repo, cache: cache, notifier: notifier}
}

func (s *Service) invalidate() {
	if s.cache != nil {
		s.cache.InvalidateExams()
	}
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", apperr.ErrNotFound, what)
	}
	return err
}

// == Subjects ==

type SubjectInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Service) CreateSubject(in SubjectInput) (*models.Subject, error) {
	if in.Name == "" {
		return nil, apperr.Validationf("subject name is required")
	}
	count, err := s.repo.CountSubjectsByName(in.Name, 0)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: subject %q", apperr.ErrConflict, in.Name)
	}
	subject := &models.Subject{Name: in.Name, Description: in.Description}
	if err := s.repo.CreateSubject(subject); err != nil {
		return nil, err
	}
	s.invalidate()
	return subject, nil
}

func (s *Service) ListSubjects(search string) ([]models.Subject, error) {
	return s.repo.ListSubjects(search)
}

func (s *Service) UpdateSubject(id uint, in SubjectInput) (*models.Subject, error) {
	subject, err := s.repo.GetSubject(id)
	if err != nil {
		return nil, notFound(err, "subject")
	}
	if in.Name != "" {
		count, err := s.repo.CountSubjectsByName(in.Name, id)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, fmt.Errorf("%w: subject %q", apperr.ErrConflict, in.Name)
		}
		subject.Name = in.Name
	}
	subject.Description = in.Description
	if err := s.repo.UpdateSubject(subject); err != nil {
		return nil, err
	}
	s.invalidate()
	return subject, nil
}

func (s *Service) DeleteSubject(id uint) error {
	if _, err := s.repo.GetSubject(id); err != nil {
		return notFound(err, "subject")
	}
	if err := s.repo.DeleteSubject(id); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// == Chapters ==

type ChapterInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Service) CreateChapter(subjectID uint, in ChapterInput) (*models.Chapter, error) {
	if in.Name == "" {
		return nil, apperr.Validationf("chapter name is required")
	}
	if _, err := s.repo.GetSubject(subjectID); err != nil {
		return nil, notFound(err, "subject")
	}
	count, err := s.repo.CountChaptersByName(subjectID, in.Name, 0)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: chapter %q", apperr.ErrConflict, in.Name)
	}
	chapter := &models.Chapter{SubjectID: subjectID, Name: in.Name, Description: in.Description}
	if err := s.repo.CreateChapter(chapter); err != nil {
		return nil, err
	}
	s.invalidate()
	return chapter, nil
}

func (s *Service) ListChapters(subjectID uint, search string) ([]models.Chapter, error) {
	return s.repo.ListChapters(subjectID, search)
}

func (s *Service) UpdateChapter(id uint, in ChapterInput) (*models.Chapter, error) {
	chapter, err := s.repo.GetChapter(id)
	if err != nil {
		return nil, notFound(err, "chapter")
	}
	if in.Name != "" {
		count, err := s.repo.CountChaptersByName(chapter.SubjectID, in.Name, id)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, fmt.Errorf("%w: chapter %q", apperr.ErrConflict, in.Name)
		}
		chapter.Name = in.Name
	}
	chapter.Description = in.Description
	if err := s.repo.UpdateChapter(chapter); err != nil {
		return nil, err
	}
	s.invalidate()
	return chapter, nil
}

func (s *Service) DeleteChapter(id uint) error {
	if _, err := s.repo.GetChapter(id); err != nil {
		return notFound(err, "chapter")
	}
	if err := s.repo.DeleteChapter(id); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// == Exams ==

type ExamInput struct {
	Name            string  `json:"name"`
	DurationMinutes int     `json:"duration_minutes"`
	ExamDate        string  `json:"exam_date"`
	ScheduleType    string  `json:"schedule_type"`
	StartTime       *string `json:"start_time"`
}

const examTimeLayout = "2006-01-02 15:04:05"

func (s *Service) CreateExam(chapterID uint, in ExamInput) (*models.Exam, error) {
	if _, err := s.repo.GetChapter(chapterID); err != nil {
		return nil, notFound(err, "chapter")
	}
	exam := &models.Exam{ChapterID: chapterID}
	if err := applyExamInput(exam, in); err != nil {
		return nil, err
	}
	if err := s.repo.CreateExam(exam); err != nil {
		return nil, err
	}
	s.invalidate()
	return exam, nil
}

func applyExamInput(exam *models.Exam, in ExamInput) error {
	if in.Name == "" {
		return apperr.Validationf("exam name is required")
	}
	if in.DurationMinutes <= 0 {
		return apperr.Validationf("duration must be positive")
	}
	examDate, err := time.Parse(examTimeLayout, in.ExamDate)
	if err != nil {
		return apperr.Validationf("exam_date must be YYYY-MM-DD HH:MM:SS")
	}

	switch in.ScheduleType {
	case "", models.ScheduleDeadline:
		exam.ScheduleType = models.ScheduleDeadline
		exam.StartTime = nil
	case models.ScheduleSpecificTime:
		if in.StartTime == nil {
			return apperr.Validationf("start_time is required for specific-time exams")
		}
		startTime, err := time.Parse(examTimeLayout, *in.StartTime)
		if err != nil {
			return apperr.Validationf("start_time must be YYYY-MM-DD HH:MM:SS")
		}
		exam.ScheduleType = models.ScheduleSpecificTime
		exam.StartTime = &startTime
	default:
		return apperr.Validationf("schedule_type must be deadline or specific_time")
	}

	exam.Name = in.Name
	exam.DurationMinutes = in.DurationMinutes
	exam.ExamDate = examDate
	return nil
}

func (s *Service) GetExam(id uint) (*models.Exam, error) {
	exam, err := s.repo.GetExam(id)
	if err != nil {
		return nil, notFound(err, "exam")
	}
	return exam, nil
}

func (s *Service) ListExams(filter ExamFilter) ([]models.Exam, error) {
	return s.repo.ListExams(filter)
}

// ListPublishedExams is the student browse path: published exams only,
// cache-aside.
func (s *Service) ListPublishedExams(filter ExamFilter) ([]models.Exam, error) {
	filter.PublishedOnly = true
	key := fmt.Sprintf("published:chapter:%d:subject:%d", filter.ChapterID, filter.SubjectID)
	if s.cache != nil {
		if exams, ok := s.cache.GetPublishedExams(key); ok {
			return exams, nil
		}
	}
	exams, err := s.repo.ListExams(filter)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetPublishedExams(key, exams)
	}
	return exams, nil
}

// mutableExam loads an exam and enforces the publish lock: every structural
// mutation except the publish toggle must go through here.
func (s *Service) mutableExam(id uint) (*models.Exam, error) {
	exam, err := s.repo.GetExam(id)
	if err != nil {
		return nil, notFound(err, "exam")
	}
	if exam.Locked() {
		return nil, fmt.Errorf("%w: unpublish it first", apperr.ErrLocked)
	}
	return exam, nil
}

func (s *Service) UpdateExam(id uint, in ExamInput) (*models.Exam, error) {
	exam, err := s.mutableExam(id)
	if err != nil {
		return nil, err
	}
	if err := applyExamInput(exam, in); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateExam(exam); err != nil {
		return nil, err
	}
	s.invalidate()
	return exam, nil
}

func (s *Service) DeleteExam(id uint) error {
	if _, err := s.mutableExam(id); err != nil {
		return err
	}
	if err := s.repo.DeleteExam(id); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// TogglePublish flips the publish flag. The false→true transition fires the
// new-exam notification exactly once per toggle, and only after the flag
// update has committed.
func (s *Service) TogglePublish(id uint) (*models.Exam, error) {
	exam, err := s.repo.GetExam(id)
	if err != nil {
		return nil, notFound(err, "exam")
	}
	exam.Published = !exam.Published
	if err := s.repo.SetPublished(id, exam.Published); err != nil {
		return nil, err
	}
	s.invalidate()
	if exam.Published && s.notifier != nil {
		s.notifier.ExamPublished(exam)
	}
	log.Printf("Exam %d published=%v", exam.ID, exam.Published)
	return exam, nil
}

// == Questions ==

type QuestionInput struct {
	Statement     string  `json:"statement"`
	Option1       string  `json:"option1"`
	Option2       string  `json:"option2"`
	Option3       string  `json:"option3"`
	Option4       string  `json:"option4"`
	CorrectOption int     `json:"correct_option"`
	Marks         float64 `json:"marks"`
	NegativeMarks float64 `json:"negative_marks"`
}

func (in QuestionInput) validate() error {
	if in.Statement == "" {
		return apperr.Validationf("question statement is required")
	}
	if in.Option1 == "" || in.Option2 == "" || in.Option3 == "" || in.Option4 == "" {
		return apperr.Validationf("all four options are required")
	}
	if in.CorrectOption < 1 || in.CorrectOption > 4 {
		return apperr.Validationf("correct_option must be between 1 and 4")
	}
	if in.Marks < 0 || in.NegativeMarks < 0 {
		return apperr.Validationf("marks and negative_marks must be non-negative")
	}
	return nil
}

func (s *Service) ListQuestions(examID uint) ([]models.Question, error) {
	if _, err := s.repo.GetExam(examID); err != nil {
		return nil, notFound(err, "exam")
	}
	return s.repo.ListQuestions(examID)
}

func (s *Service) AddQuestion(examID uint, in QuestionInput) (*models.Question, error) {
	if _, err := s.mutableExam(examID); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	question := &models.Question{
		ExamID:        examID,
		Statement:     in.Statement,
		Option1:       in.Option1,
		Option2:       in.Option2,
		Option3:       in.Option3,
		Option4:       in.Option4,
		CorrectOption: in.CorrectOption,
		Marks:         in.Marks,
		NegativeMarks: in.NegativeMarks,
	}
	if err := s.repo.AddQuestion(question); err != nil {
		return nil, err
	}
	s.invalidate()
	return question, nil
}

func (s *Service) UpdateQuestion(id uint, in QuestionInput) (*models.Question, error) {
	question, err := s.repo.GetQuestion(id)
	if err != nil {
		return nil, notFound(err, "question")
	}
	if _, err := s.mutableExam(question.ExamID); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	marksDelta := in.Marks - question.Marks
	question.Statement = in.Statement
	question.Option1 = in.Option1
	question.Option2 = in.Option2
	question.Option3 = in.Option3
	question.Option4 = in.Option4
	question.CorrectOption = in.CorrectOption
	question.Marks = in.Marks
	question.NegativeMarks = in.NegativeMarks

	if err := s.repo.UpdateQuestion(question, marksDelta); err != nil {
		return nil, err
	}
	s.invalidate()
	return question, nil
}

func (s *Service) DeleteQuestion(id uint) error {
	question, err := s.repo.GetQuestion(id)
	if err != nil {
		return notFound(err, "question")
	}
	if _, err := s.mutableExam(question.ExamID); err != nil {
		return err
	}
	if err := s.repo.DeleteQuestion(question); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// == Students and dashboards ==

func (s *Service) ListStudents(search string, studentID uint) ([]models.Student, error) {
	return s.repo.ListStudents(search, studentID)
}

func (s *Service) DeleteStudent(id uint) error {
	return s.repo.DeleteStudent(id)
}

type AdminDashboard struct {
	TotalAttempts []models.SubjectStat `json:"total_attempts"`
	AverageScores []models.SubjectStat `json:"average_scores"`
	TotalExams    int64                `json:"total_exams"`
	TotalStudents int64                `json:"total_students"`
}

func (s *Service) AdminDashboard() (*AdminDashboard, error) {
	stats, err := s.repo.SubjectAttemptStats(0)
	if err != nil {
		return nil, err
	}
	totalExams, err := s.repo.CountExams()
	if err != nil {
		return nil, err
	}
	totalStudents, err := s.repo.CountStudents()
	if err != nil {
		return nil, err
	}
	return &AdminDashboard{
		TotalAttempts: stats,
		AverageScores: stats,
		TotalExams:    totalExams,
		TotalStudents: totalStudents,
	}, nil
}

type ScorePoint struct {
	Score      float64 `json:"score"`
	TotalMarks float64 `json:"total_marks"`
}

type StudentDashboard struct {
	SubjectStats     []models.SubjectStat `json:"subject_stats"`
	TotalExams       int64                `json:"total_exams"`
	AverageScore     float64              `json:"average_score"`
	HighestScore     float64              `json:"highest_score"`
	AttemptsOverTime []ScorePoint         `json:"attempts_over_time"`
}

func (s *Service) StudentDashboard(studentID uint) (*StudentDashboard, error) {
	stats, err := s.repo.SubjectAttemptStats(studentID)
	if err != nil {
		return nil, err
	}
	total, average, highest, err := s.repo.StudentAttemptSummary(studentID)
	if err != nil {
		return nil, err
	}
	attempts, err := s.repo.AttemptsOverTime(studentID)
	if err != nil {
		return nil, err
	}
	points := make([]ScorePoint, len(attempts))
	for i, a := range attempts {
		points[i] = ScorePoint{Score: a.MarksObtained, TotalMarks: a.TotalMarks}
	}
	return &StudentDashboard{
		SubjectStats:     stats,
		TotalExams:       total,
		AverageScore:     average,
		HighestScore:     highest,
		AttemptsOverTime: points,
	}, nil
}
