package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"quizmaster/internal/attempt"
	"quizmaster/internal/auth"
	"quizmaster/internal/catalog"
	"quizmaster/internal/models"
	"quizmaster/internal/tasks"
	"quizmaster/pkg/cache"
	"quizmaster/pkg/database"
	"quizmaster/pkg/notify"

	"github.com/gorilla/mux"
)

// publishNotifier fans a publish transition out to the mail queue and the
// websocket feed. Only called after the toggle has committed.
type publishNotifier struct {
	jobs *tasks.Jobs
	hub  *notify.Hub
}

func (n *publishNotifier) ExamPublished(exam *models.Exam) {
	n.jobs.ExamPublished(exam)
	n.hub.Broadcast("exam_published", map[string]interface{}{
		"exam_id":   exam.ID,
		"exam_name": exam.Name,
		"exam_date": exam.ExamDate,
	})
}

func envInt(name string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(name)); err == nil {
		return v
	}
	return fallback
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found")
	}

	// Initialize database
	dbConfig := &database.Config{
		Host:     os.Getenv("DB_HOST"),
		Port:     os.Getenv("DB_PORT"),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		DBName:   os.Getenv("DB_NAME"),
		SSLMode:  os.Getenv("DB_SSLMODE"),
	}

	db, err := database.NewPostgresDB(dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	err = db.AutoMigrate(
		&models.Subject{},
		&models.Chapter{},
		&models.Exam{},
		&models.Question{},
		&models.Student{},
		&models.Admin{},
		&models.Attempt{},
		&models.SelectedAnswer{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Initialize Redis cache
	redisCache := cache.NewRedisCache(os.Getenv("REDIS_ADDR"))

	// Initialize WebSocket hub
	wsHub := notify.NewHub()
	go wsHub.Run()

	// Background task queue
	queue := tasks.NewQueue(tasks.Config{
		Workers:      envInt("TASK_WORKERS", 2),
		MaxRetries:   envInt("TASK_RETRIES", 3),
		RetryBackoff: time.Duration(envInt("TASK_BACKOFF_MS", 1000)) * time.Millisecond,
	})
	queue.Start()

	var mailer tasks.Mailer = tasks.LogMailer{}
	if host := os.Getenv("SMTP_HOST"); host != "" {
		mailer = tasks.NewSMTPMailer(host, os.Getenv("SMTP_PORT"),
			os.Getenv("SMTP_USERNAME"), os.Getenv("SMTP_PASSWORD"), os.Getenv("SMTP_FROM"))
	}
	jobs := tasks.NewJobs(db, mailer, queue)

	reminderCtx, stopReminders := context.WithCancel(context.Background())
	jobs.StartReminderLoop(reminderCtx, 24*time.Hour)
	jobs.StartMonthlyReportLoop(reminderCtx)

	// Initialize repositories
	authRepo := auth.NewRepository(db)
	catalogRepo := catalog.NewRepository(db)
	attemptRepo := attempt.NewRepository(db)

	// Initialize services
	jwtSecret := os.Getenv("JWT_SECRET")
	authService := auth.NewService(authRepo, jwtSecret)
	catalogService := catalog.NewService(catalogRepo, redisCache, &publishNotifier{jobs: jobs, hub: wsHub})
	attemptService := attempt.NewService(attemptRepo, jobs)

	// Bootstrap the singleton admin account
	err = authService.BootstrapAdmin(
		os.Getenv("ADMIN_USERNAME"),
		os.Getenv("ADMIN_EMAIL"),
		os.Getenv("ADMIN_PASSWORD"),
	)
	if err != nil {
		log.Fatalf("Failed to bootstrap admin: %v", err)
	}

	// Initialize handlers
	authHandler := auth.NewHandler(authService)
	catalogHandler := catalog.NewHandler(catalogService)
	attemptHandler := attempt.NewHandler(attemptService)

	// Setup router
	router := mux.NewRouter()

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	handler := corsMiddleware.Handler(router)

	// Public routes - no JWT required
	router.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/student/register", authHandler.Register).Methods("POST", "OPTIONS")

	// Student routes - JWT + student role; {id} must match the token subject
	studentRouter := router.PathPrefix("/api/student").Subrouter()
	studentRouter.Use(auth.JWTMiddleware(jwtSecret), auth.RequireRole(models.RoleStudent))
	studentRouter.HandleFunc("/subjects", catalogHandler.ListSubjects).Methods("GET")
	studentRouter.HandleFunc("/chapters", catalogHandler.ListChapters).Methods("GET")
	studentRouter.HandleFunc("/exams", catalogHandler.ListPublishedExams).Methods("GET")

	ownRouter := router.PathPrefix("/api/student/{id:[0-9]+}").Subrouter()
	ownRouter.Use(auth.JWTMiddleware(jwtSecret), auth.RequireSelf)
	ownRouter.HandleFunc("", authHandler.GetStudent).Methods("GET")
	ownRouter.HandleFunc("", authHandler.UpdateStudent).Methods("PUT")
	ownRouter.HandleFunc("", authHandler.DeleteStudent).Methods("DELETE")
	ownRouter.HandleFunc("/dashboard", catalogHandler.StudentDashboard).Methods("GET")
	ownRouter.HandleFunc("/exam/{examId:[0-9]+}/start", attemptHandler.Start).Methods("POST")
	ownRouter.HandleFunc("/attempt/{attemptId:[0-9]+}/submit", attemptHandler.Submit).Methods("POST")
	ownRouter.HandleFunc("/attempt/{attemptId:[0-9]+}/results", attemptHandler.Results).Methods("GET")
	ownRouter.HandleFunc("/history", attemptHandler.History).Methods("GET")
	ownRouter.HandleFunc("/history/export", attemptHandler.ExportHistory).Methods("POST")

	// Admin routes - JWT + admin role
	adminRouter := router.PathPrefix("/api/admin").Subrouter()
	adminRouter.Use(auth.JWTMiddleware(jwtSecret), auth.RequireRole(models.RoleAdmin))
	adminRouter.HandleFunc("/dashboard", catalogHandler.AdminDashboard).Methods("GET")
	adminRouter.HandleFunc("/students", catalogHandler.ListStudents).Methods("GET")
	adminRouter.HandleFunc("/students", catalogHandler.DeleteStudent).Methods("DELETE")
	adminRouter.HandleFunc("/subjects", catalogHandler.ListSubjects).Methods("GET")
	adminRouter.HandleFunc("/subjects", catalogHandler.CreateSubject).Methods("POST")
	adminRouter.HandleFunc("/subjects/{id:[0-9]+}", catalogHandler.UpdateSubject).Methods("PUT")
	adminRouter.HandleFunc("/subjects/{id:[0-9]+}", catalogHandler.DeleteSubject).Methods("DELETE")
	adminRouter.HandleFunc("/subjects/{id:[0-9]+}/chapters", catalogHandler.ListChapters).Methods("GET")
	adminRouter.HandleFunc("/subjects/{id:[0-9]+}/chapters", catalogHandler.CreateChapter).Methods("POST")
	adminRouter.HandleFunc("/chapters/{id:[0-9]+}", catalogHandler.UpdateChapter).Methods("PUT")
	adminRouter.HandleFunc("/chapters/{id:[0-9]+}", catalogHandler.DeleteChapter).Methods("DELETE")
	adminRouter.HandleFunc("/exams", catalogHandler.ListExams).Methods("GET")
	adminRouter.HandleFunc("/exams", catalogHandler.CreateExam).Methods("POST")
	adminRouter.HandleFunc("/exams/{id:[0-9]+}", catalogHandler.UpdateExam).Methods("PUT")
	adminRouter.HandleFunc("/exams/{id:[0-9]+}", catalogHandler.DeleteExam).Methods("DELETE")
	adminRouter.HandleFunc("/exams/{id:[0-9]+}/publish", catalogHandler.TogglePublish).Methods("PUT")
	adminRouter.HandleFunc("/exams/{id:[0-9]+}/questions", catalogHandler.ListQuestions).Methods("GET")
	adminRouter.HandleFunc("/exams/{id:[0-9]+}/questions", catalogHandler.CreateQuestion).Methods("POST")
	adminRouter.HandleFunc("/questions/{id:[0-9]+}", catalogHandler.UpdateQuestion).Methods("PUT")
	adminRouter.HandleFunc("/questions/{id:[0-9]+}", catalogHandler.DeleteQuestion).Methods("DELETE")

	// WebSocket announcement feed
	router.HandleFunc("/ws", wsHub.HandleWebSocket)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown setup
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c

	stopReminders()
	queue.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server shutdown gracefully")
}
