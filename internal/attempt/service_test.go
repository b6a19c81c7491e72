package attempt

import (
	"encoding/json"
	"errors"
	"strings"
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

func newTestDB(t *testing.T) *gorm.DB {
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
	return db
}

// seedExam creates a published exam with the given questions and correct
// aggregates, under a throwaway subject/chapter.
func seedExam(t *testing.T, db *gorm.DB, published bool, questions ...models.Question) *models.Exam {
	t.Helper()
	subject := models.Subject{Name: "Physics " + t.Name()}
	require.NoError(t, db.Create(&subject).Error)
	chapter := models.Chapter{SubjectID: subject.ID, Name: "Kinematics"}
	require.NoError(t, db.Create(&chapter).Error)

	exam := models.Exam{
		ChapterID:       chapter.ID,
		Name:            "Unit Test Exam",
		DurationMinutes: 30,
		ExamDate:        time.Now().Add(24 * time.Hour),
		ScheduleType:    models.ScheduleDeadline,
		Published:       published,
	}
	for _, q := range questions {
		exam.TotalMarks += q.Marks
		exam.TotalQuestions++
	}
	require.NoError(t, db.Create(&exam).Error)
	for i := range questions {
		questions[i].ExamID = exam.ID
		require.NoError(t, db.Create(&questions[i]).Error)
	}
	return &exam
}

func seedStudent(t *testing.T, db *gorm.DB, email string) *models.Student {
	t.Helper()
	student := models.Student{Name: "Test Student", Email: email, PasswordHash: "x"}
	require.NoError(t, db.Create(&student).Error)
	return &student
}

func question(statement string, correct int, marks, negative float64) models.Question {
	return models.Question{
		Statement:     statement,
		Option1:       "a",
		Option2:       "b",
		Option3:       "c",
		Option4:       "d",
		CorrectOption: correct,
		Marks:         marks,
		NegativeMarks: negative,
	}
}

func TestStartSnapshotsTotalMarks(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(NewRepository(db), nil)
	student := seedStudent(t, db, "snap@test.com")
	exam := seedExam(t, db, true,
		question("q1", 1, 5, 2),
		question("q2", 2, 3, 1),
	)

	result, err := svc.Start(student.ID, exam.ID)
	require.NoError(t, err)
	assert.NotZero(t, result.AttemptID)
	assert.Equal(t, "Unit Test Exam", result.ExamDetails.ExamName)
	assert.Equal(t, 30, result.ExamDetails.TotalDuration)
	assert.Equal(t, 2, result.ExamDetails.TotalQuestions)
	assert.Len(t, result.Questions, 2)

	var attempt models.Attempt
	require.NoError(t, db.First(&attempt, result.AttemptID).Error)
	assert.Equal(t, float64(8), attempt.TotalMarks)
	assert.Equal(t, float64(0), attempt.MarksObtained)
	assert.False(t, attempt.Submitted)

	// A later question edit must not touch the existing snapshot.
	require.NoError(t, db.Model(&models.Exam{}).Where("id = ?", exam.ID).
		Update("total_marks", 100).Error)
	require.NoError(t, db.First(&attempt, result.AttemptID).Error)
	assert.Equal(t, float64(8), attempt.TotalMarks)
}

func TestStartStripsCorrectAnswers(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(NewRepository(db), nil)
	student := seedStudent(t, db, "strip@test.com")
	exam := seedExam(t, db, true, question("secret", 3, 4, 1))

	result, err := svc.Start(student.ID, exam.ID)
	require.NoError(t, err)

	payload, err := json.Marshal(result)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(payload), "correct_option"),
		"start payload must not carry the correct option: %s", payload)
}

func TestStartRejectsUnpublishedExam(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(NewRepository(db), nil)
	student := seedStudent(t, db, "unpub@test.com")
	exam := seedExam(t, db, false, question("q", 1, 1, 0))

	_, err := svc.Start(student.ID, exam.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStartRejectsBeforeStartTime(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(NewRepository(db), nil)
	student := seedStudent(t, db, "early@test.com")
	exam := seedExam(t, db, true, question("q", 1, 1, 0))
	opensAt := time.Now().Add(time.Hour)
	require.NoError(t, db.Model(&models.Exam{}).Where("id = ?", exam.ID).
		Updates(map[string]interface{}{
			"schedule_type": models.ScheduleSpecificTime,
			"start_time":    opensAt,
		}).Error)

	_, err := svc.Start(student.ID, exam.ID)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	// Once the window opens, starting works.
	svc.now = func() time.Time { return opensAt.Add(time.Minute) }
	_, err = svc.Start(student.ID, exam.ID)
	assert.NoError(t, err)
}

func TestSubmitScoring(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(NewRepository(db), nil)
	student := seedStudent(t, db, "score@test.com")
	exam := seedExam(t, db, true, question("q", 1, 5, 2))

	var q models.Question
	require.NoError(t, db.Where("exam_id = ?", exam.ID).First(&q).Error)

	tests := []struct {
		name      string
		selection *int
		wantScore float64
		wantRows  int64
	}{
		{name: "correct answer", selection: intPtr(1), wantScore: 5, wantRows: 1},
		{name: "wrong answer", selection: intPtr(3), wantScore: -2, wantRows: 1},
		{name: "unanswered", selection: nil, wantScore: 0, wantRows: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			started, err := svc.Start(student.ID, exam.ID)
			require.NoError(t, err)

			result, err := svc.Submit(student.ID, started.AttemptID, map[uint]*int{q.ID: tc.selection})
			require.NoError(t, err)
			assert.Equal(t, tc.wantScore, result.Score)
			assert.Equal(t, float64(5), result.TotalMarks)

			var rows int64
			require.NoError(t, db.Model(&models.SelectedAnswer{}).
				Where("attempt_id = ?", started.AttemptID).Count(&rows).Error)
			assert.Equal(t, tc.wantRows, rows)
		})
	}
}

func TestSubmitSkipsUnknownQuestionIDs(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(NewRepository(db), nil)
	student := seedStudent(t, db, "forged@test.com")
	exam := seedExam(t, db, true, question("q", 2, 3, 1))

	var q models.Question
	require.NoError(t, db.Where("exam_id = ?", exam.ID).First(&q).Error)

	started, err := svc.Start(student.ID, exam.ID)
	require.NoError(t, err)

	result, err := svc.Submit(student.ID, started.AttemptID, map[uint]*int{
		q.ID:      intPtr(2),
		q.ID + 99: intPtr(1), // forged id: no error, no score effect
	})
	require.NoError(t, err)
	assert.Equal(t, float64(3), result.Score)

	var rows int64
	require.NoError(t, db.Model(&models.SelectedAnswer{}).
		Where("attempt_id = ?", started.AttemptID).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestSubmitOwnershipConflated(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(NewRepository(db), nil)
	owner := seedStudent(t, db, "owner@test.com")
	other := seedStudent(t, db, "other@test.com")
	exam := seedExam(t, db, true, question("q", 1, 1, 0))

	started, err := svc.Start(owner.ID, exam.ID)
	require.NoError(t, err)

	// Someone else's attempt and a nonexistent attempt look identical.
	_, errForeign := svc.Submit(other.ID, started.AttemptID, nil)
	_, errMissing := svc.Submit(owner.ID, started.AttemptID+999, nil)
	assert.ErrorIs(t, errForeign, apperr.ErrNotFoundOrUnauthorized)
	assert.ErrorIs(t, errMissing, apperr.ErrNotFoundOrUnauthorized)
	assert.Equal(t, errForeign.Error(), errMissing.Error())

	_, errResults := svc.Results(other.ID, started.AttemptID)
	assert.ErrorIs(t, errResults, apperr.ErrNotFoundOrUnauthorized)
}

func TestResubmitFailsAndKeepsFirstResult(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(NewRepository(db), nil)
	student := seedStudent(t, db, "twice@test.com")
	exam := seedExam(t, db, true, question("q", 1, 5, 2))

	var q models.Question
	require.NoError(t, db.Where("exam_id = ?", exam.ID).First(&q).Error)

	started, err := svc.Start(student.ID, exam.ID)
	require.NoError(t, err)

	first, err := svc.Submit(student.ID, started.AttemptID, map[uint]*int{q.ID: intPtr(1)})
	require.NoError(t, err)
	assert.Equal(t, float64(5), first.Score)

	_, err = svc.Submit(student.ID, started.AttemptID, map[uint]*int{q.ID: intPtr(3)})
	assert.ErrorIs(t, err, apperr.ErrAlreadySubmitted)

	var attempt models.Attempt
	require.NoError(t, db.First(&attempt, started.AttemptID).Error)
	assert.Equal(t, float64(5), attempt.MarksObtained)

	var rows int64
	require.NoError(t, db.Model(&models.SelectedAnswer{}).
		Where("attempt_id = ?", started.AttemptID).Count(&rows).Error)
	assert.Equal(t, int64(1), rows, "re-submission must not insert duplicate answer rows")
}

func TestFinalizeSubmissionCompareAndSet(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	student := seedStudent(t, db, "cas@test.com")
	exam := seedExam(t, db, true, question("q", 1, 5, 0))

	attempt := models.Attempt{StudentID: student.ID, ExamID: exam.ID, AttemptDate: time.Now(), TotalMarks: 5}
	require.NoError(t, repo.CreateAttempt(&attempt))

	// Two racers that both read Started: only the first CAS wins.
	require.NoError(t, repo.FinalizeSubmission(attempt.ID, 5, nil))
	err := repo.FinalizeSubmission(attempt.ID, -2, nil)
	assert.True(t, errors.Is(err, apperr.ErrAlreadySubmitted))

	var reloaded models.Attempt
	require.NoError(t, db.First(&reloaded, attempt.ID).Error)
	assert.Equal(t, float64(5), reloaded.MarksObtained)
}

func TestResultsIncludeUnansweredSentinel(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(NewRepository(db), nil)
	student := seedStudent(t, db, "results@test.com")
	exam := seedExam(t, db, true,
		question("answered", 1, 5, 2),
		question("skipped", 2, 3, 1),
	)

	var questions []models.Question
	require.NoError(t, db.Where("exam_id = ?", exam.ID).Order("id asc").Find(&questions).Error)

	started, err := svc.Start(student.ID, exam.ID)
	require.NoError(t, err)
	_, err = svc.Submit(student.ID, started.AttemptID, map[uint]*int{questions[0].ID: intPtr(4)})
	require.NoError(t, err)

	results, err := svc.Results(student.ID, started.AttemptID)
	require.NoError(t, err)
	require.Len(t, results.Results, 2)
	assert.Equal(t, float64(-2), results.Score)
	assert.Equal(t, float64(8), results.TotalMarks)
	assert.Equal(t, 4, results.Results[0].YourAnswer)
	assert.Equal(t, 1, results.Results[0].CorrectOption)
	assert.Equal(t, models.UnansweredSentinel, results.Results[1].YourAnswer)
}

func TestResultsHiddenUntilSubmitted(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(NewRepository(db), nil)
	student := seedStudent(t, db, "peek@test.com")
	exam := seedExam(t, db, true, question("q1", 3, 4, 1))

	started, err := svc.Start(student.ID, exam.ID)
	require.NoError(t, err)

	// Peeking at results mid-attempt would hand over every correct option.
	results, err := svc.Results(student.ID, started.AttemptID)
	assert.Nil(t, results)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	var questions []models.Question
	require.NoError(t, db.Where("exam_id = ?", exam.ID).Find(&questions).Error)
	_, err = svc.Submit(student.ID, started.AttemptID, map[uint]*int{questions[0].ID: intPtr(3)})
	require.NoError(t, err)

	results, err = svc.Results(student.ID, started.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, 3, results.Results[0].CorrectOption)
}

func TestHistoryNewestFirst(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(NewRepository(db), nil)
	student := seedStudent(t, db, "history@test.com")
	exam := seedExam(t, db, true, question("q", 1, 2, 0))

	older := models.Attempt{
		StudentID: student.ID, ExamID: exam.ID,
		AttemptDate: time.Now().Add(-48 * time.Hour), MarksObtained: 1, TotalMarks: 2,
	}
	newer := models.Attempt{
		StudentID: student.ID, ExamID: exam.ID,
		AttemptDate: time.Now(), MarksObtained: 2, TotalMarks: 2,
	}
	require.NoError(t, db.Create(&older).Error)
	require.NoError(t, db.Create(&newer).Error)

	entries, err := svc.History(student.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, newer.ID, entries[0].AttemptID)
	assert.Equal(t, older.ID, entries[1].AttemptID)
	assert.Equal(t, "Unit Test Exam", entries[0].ExamName)
}

type recordingExporter struct {
	calls []uint
}

func (r *recordingExporter) HistoryExport(studentID uint) {
	r.calls = append(r.calls, studentID)
}

func TestExportHistoryDelegates(t *testing.T) {
	db := newTestDB(t)
	exporter := &recordingExporter{}
	svc := NewService(NewRepository(db), exporter)

	require.NoError(t, svc.ExportHistory(42))
	assert.Equal(t, []uint{42}, exporter.calls)

	svc = NewService(NewRepository(db), nil)
	assert.ErrorIs(t, svc.ExportHistory(42), apperr.ErrValidation)
}
