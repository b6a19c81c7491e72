package catalog

import (
	"testing"
	"time"

	"quizmaster/internal/apperr"
	"quizmaster/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeCache struct {
	store       map[string][]models.Exam
	invalidated int
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: make(map[string][]models.Exam)}
}

func (c *fakeCache) GetPublishedExams(key string) ([]models.Exam, bool) {
	exams, ok := c.store[key]
	return exams, ok
}

func (c *fakeCache) SetPublishedExams(key string, exams []models.Exam) {
	c.store[key] = exams
}

func (c *fakeCache) InvalidateExams() {
	c.store = make(map[string][]models.Exam)
	c.invalidated++
}

type fakeNotifier struct {
	published []uint
}

func (n *fakeNotifier) ExamPublished(exam *models.Exam) {
	n.published = append(n.published, exam.ID)
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *fakeCache, *fakeNotifier) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Subject{},
		&models.Chapter{},
		&models.Exam{},
		&models.Question{},
		&models.Student{},
		&models.Attempt{},
		&models.SelectedAnswer{},
	))
	cache := newFakeCache()
	notifier := &fakeNotifier{}
	return NewService(NewRepository(db), cache, notifier), db, cache, notifier
}

func seedExam(t *testing.T, svc *Service) *models.Exam {
	t.Helper()
	subject, err := svc.CreateSubject(SubjectInput{Name: "Maths " + t.Name()})
	require.NoError(t, err)
	chapter, err := svc.CreateChapter(subject.ID, ChapterInput{Name: "Algebra"})
	require.NoError(t, err)
	exam, err := svc.CreateExam(chapter.ID, ExamInput{
		Name:            "Algebra Basics",
		DurationMinutes: 45,
		ExamDate:        time.Now().Add(24 * time.Hour).Format("2006-01-02 15:04:05"),
	})
	require.NoError(t, err)
	return exam
}

func questionInput(marks float64) QuestionInput {
	return QuestionInput{
		Statement:     "pick one",
		Option1:       "a",
		Option2:       "b",
		Option3:       "c",
		Option4:       "d",
		CorrectOption: 1,
		Marks:         marks,
		NegativeMarks: 1,
	}
}

// checkAggregates asserts the exam's stored totals equal the recomputed
// sum/count over its questions.
func checkAggregates(t *testing.T, db *gorm.DB, examID uint) {
	t.Helper()
	var exam models.Exam
	require.NoError(t, db.First(&exam, examID).Error)

	var count int64
	var sum struct{ Total float64 }
	require.NoError(t, db.Model(&models.Question{}).Where("exam_id = ?", examID).Count(&count).Error)
	require.NoError(t, db.Raw(
		"SELECT COALESCE(SUM(marks), 0) AS total FROM questions WHERE exam_id = ?", examID,
	).Scan(&sum).Error)

	assert.Equal(t, int(count), exam.TotalQuestions)
	assert.Equal(t, sum.Total, exam.TotalMarks)
}

func TestQuestionAggregateConsistency(t *testing.T) {
	svc, db, _, _ := newTestService(t)
	exam := seedExam(t, svc)

	q1, err := svc.AddQuestion(exam.ID, questionInput(4))
	require.NoError(t, err)
	checkAggregates(t, db, exam.ID)

	q2, err := svc.AddQuestion(exam.ID, questionInput(6))
	require.NoError(t, err)
	checkAggregates(t, db, exam.ID)

	// Marks edit adjusts TotalMarks by the delta, question count untouched.
	_, err = svc.UpdateQuestion(q1.ID, questionInput(10))
	require.NoError(t, err)
	checkAggregates(t, db, exam.ID)

	require.NoError(t, svc.DeleteQuestion(q2.ID))
	checkAggregates(t, db, exam.ID)

	var exam2 models.Exam
	require.NoError(t, db.First(&exam2, exam.ID).Error)
	assert.Equal(t, 1, exam2.TotalQuestions)
	assert.Equal(t, float64(10), exam2.TotalMarks)
}

func TestPublishLock(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	exam := seedExam(t, svc)
	q, err := svc.AddQuestion(exam.ID, questionInput(4))
	require.NoError(t, err)

	_, err = svc.TogglePublish(exam.ID)
	require.NoError(t, err)

	examInput := ExamInput{
		Name:            "Renamed",
		DurationMinutes: 60,
		ExamDate:        time.Now().Add(48 * time.Hour).Format("2006-01-02 15:04:05"),
	}

	_, err = svc.UpdateExam(exam.ID, examInput)
	assert.ErrorIs(t, err, apperr.ErrLocked)
	assert.ErrorIs(t, svc.DeleteExam(exam.ID), apperr.ErrLocked)
	_, err = svc.AddQuestion(exam.ID, questionInput(2))
	assert.ErrorIs(t, err, apperr.ErrLocked)
	_, err = svc.UpdateQuestion(q.ID, questionInput(9))
	assert.ErrorIs(t, err, apperr.ErrLocked)
	assert.ErrorIs(t, svc.DeleteQuestion(q.ID), apperr.ErrLocked)

	// Unpublishing re-enables mutation.
	_, err = svc.TogglePublish(exam.ID)
	require.NoError(t, err)
	_, err = svc.UpdateExam(exam.ID, examInput)
	assert.NoError(t, err)
	_, err = svc.UpdateQuestion(q.ID, questionInput(9))
	assert.NoError(t, err)
}

func TestPublishNotifiesOncePerToggle(t *testing.T) {
	svc, _, _, notifier := newTestService(t)
	exam := seedExam(t, svc)

	published, err := svc.TogglePublish(exam.ID)
	require.NoError(t, err)
	assert.True(t, published.Published)
	assert.Len(t, notifier.published, 1)

	// Unpublishing must not notify.
	unpublished, err := svc.TogglePublish(exam.ID)
	require.NoError(t, err)
	assert.False(t, unpublished.Published)
	assert.Len(t, notifier.published, 1)

	_, err = svc.TogglePublish(exam.ID)
	require.NoError(t, err)
	assert.Len(t, notifier.published, 2)
}

func TestMutationInvalidatesExamCache(t *testing.T) {
	svc, _, cache, _ := newTestService(t)
	exam := seedExam(t, svc)

	_, err := svc.TogglePublish(exam.ID)
	require.NoError(t, err)

	// Prime the student browse cache, mutate, expect a fresh read.
	exams, err := svc.ListPublishedExams(ExamFilter{})
	require.NoError(t, err)
	require.Len(t, exams, 1)
	require.NotEmpty(t, cache.store)

	_, err = svc.TogglePublish(exam.ID)
	require.NoError(t, err)
	assert.Empty(t, cache.store)

	exams, err = svc.ListPublishedExams(ExamFilter{})
	require.NoError(t, err)
	assert.Empty(t, exams)
}

func TestSubjectNameConflict(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.CreateSubject(SubjectInput{Name: "Chemistry"})
	require.NoError(t, err)

	_, err = svc.CreateSubject(SubjectInput{Name: "Chemistry"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestChapterNameUniquePerSubject(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	s1, err := svc.CreateSubject(SubjectInput{Name: "Biology"})
	require.NoError(t, err)
	s2, err := svc.CreateSubject(SubjectInput{Name: "History"})
	require.NoError(t, err)

	_, err = svc.CreateChapter(s1.ID, ChapterInput{Name: "Intro"})
	require.NoError(t, err)
	_, err = svc.CreateChapter(s1.ID, ChapterInput{Name: "Intro"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	// Same name under a different subject is fine.
	_, err = svc.CreateChapter(s2.ID, ChapterInput{Name: "Intro"})
	assert.NoError(t, err)
}

func TestQuestionValidation(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	exam := seedExam(t, svc)

	tests := []struct {
		name   string
		mutate func(*QuestionInput)
	}{
		{name: "missing statement", mutate: func(in *QuestionInput) { in.Statement = "" }},
		{name: "missing option", mutate: func(in *QuestionInput) { in.Option3 = "" }},
		{name: "correct option too low", mutate: func(in *QuestionInput) { in.CorrectOption = 0 }},
		{name: "correct option too high", mutate: func(in *QuestionInput) { in.CorrectOption = 5 }},
		{name: "negative marks", mutate: func(in *QuestionInput) { in.Marks = -1 }},
		{name: "negative penalty", mutate: func(in *QuestionInput) { in.NegativeMarks = -0.5 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := questionInput(4)
			tc.mutate(&in)
			_, err := svc.AddQuestion(exam.ID, in)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestExamScheduleValidation(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	subject, err := svc.CreateSubject(SubjectInput{Name: "Geo"})
	require.NoError(t, err)
	chapter, err := svc.CreateChapter(subject.ID, ChapterInput{Name: "Maps"})
	require.NoError(t, err)

	date := time.Now().Add(24 * time.Hour).Format("2006-01-02 15:04:05")

	// specific_time without start_time is rejected.
	_, err = svc.CreateExam(chapter.ID, ExamInput{
		Name: "x", DurationMinutes: 10, ExamDate: date,
		ScheduleType: models.ScheduleSpecificTime,
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	start := date
	exam, err := svc.CreateExam(chapter.ID, ExamInput{
		Name: "x", DurationMinutes: 10, ExamDate: date,
		ScheduleType: models.ScheduleSpecificTime, StartTime: &start,
	})
	require.NoError(t, err)
	require.NotNil(t, exam.StartTime)

	_, err = svc.CreateExam(chapter.ID, ExamInput{
		Name: "y", DurationMinutes: 10, ExamDate: "not-a-date",
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDashboardAggregates(t *testing.T) {
	svc, db, _, _ := newTestService(t)
	exam := seedExam(t, svc)
	_, err := svc.AddQuestion(exam.ID, questionInput(10))
	require.NoError(t, err)

	student := models.Student{Name: "S", Email: "dash@test.com", PasswordHash: "x"}
	require.NoError(t, db.Create(&student).Error)
	for _, marks := range []float64{4, 8} {
		attempt := models.Attempt{
			StudentID: student.ID, ExamID: exam.ID,
			AttemptDate: time.Now(), MarksObtained: marks, TotalMarks: 10, Submitted: true,
		}
		require.NoError(t, db.Create(&attempt).Error)
	}

	admin, err := svc.AdminDashboard()
	require.NoError(t, err)
	assert.Equal(t, int64(1), admin.TotalExams)
	assert.Equal(t, int64(1), admin.TotalStudents)
	require.Len(t, admin.TotalAttempts, 1)
	assert.Equal(t, int64(2), admin.TotalAttempts[0].Count)
	assert.Equal(t, float64(6), admin.TotalAttempts[0].Average)

	dash, err := svc.StudentDashboard(student.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), dash.TotalExams)
	assert.Equal(t, float64(6), dash.AverageScore)
	assert.Equal(t, float64(8), dash.HighestScore)
	require.Len(t, dash.AttemptsOverTime, 2)
}
