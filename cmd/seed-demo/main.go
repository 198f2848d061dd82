package main

import (
	"context"
	"fmt"
	"time"

	"github.com/classplay/classplay-backend/internal/config"
	"github.com/classplay/classplay-backend/internal/database"
	"github.com/classplay/classplay-backend/internal/logger"
	"github.com/classplay/classplay-backend/internal/model"
	"github.com/classplay/classplay-backend/internal/repository"
	"github.com/classplay/classplay-backend/internal/service"
	"github.com/jackc/pgx/v5"
)

// Seeds one demo class with a teacher, 20 students and a sample quiz.
// Every seeded account uses the password "classplay".
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	classRepo := repository.NewClassRepository(pool)
	studentRepo := repository.NewStudentRepository(pool)
	teacherRepo := repository.NewTeacherRepository(pool)
	quizRepo := repository.NewQuizRepository(pool)
	authService := service.NewAuthService(cfg, nil)

	fmt.Println("=== Seeding Demo Class ===")

	hash, err := authService.HashPassword("classplay")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash seed password")
	}

	class, err := classRepo.GetByName(ctx, "Demo 7A")
	if err == pgx.ErrNoRows {
		class = &model.Class{Name: "Demo 7A", GradeLevel: 7}
		if err := classRepo.Create(ctx, class); err != nil {
			log.Fatal().Err(err).Msg("Failed to create class")
		}
		fmt.Printf("Created class with ID: %d\n", class.ID)
	} else if err != nil {
		log.Fatal().Err(err).Msg("Failed to check existing class")
	} else {
		fmt.Printf("Found existing class with ID: %d\n", class.ID)
	}

	teacher := &model.Teacher{
		Username:     "teacher1",
		Name:         "Dewi Anggraini",
		PasswordHash: hash,
		ClassID:      class.ID,
	}
	if err := teacherRepo.Create(ctx, teacher); err != nil {
		fmt.Printf("Teacher seed skipped: %v\n", err)
	} else {
		fmt.Printf("Created teacher %q (ID %d)\n", teacher.Username, teacher.ID)
	}

	names := []string{
		"Budi Santoso", "Siti Aminah", "Andi Pratama", "Rina Wati", "Joko Susilo",
		"Ayu Lestari", "Dodi Kusuma", "Eka Putri", "Fahri Hamzah", "Gita Savitri",
		"Hendra Gunawan", "Ika Sari", "Lukman Hakim", "Maya Septiana", "Nanda Pratama",
		"Putri Dian", "Rafi Ahmad", "Toni Setiawan", "Vina Panduwinata", "Wahyu Hidayat",
	}

	successCount := 0
	for i, name := range names {
		student := &model.Student{
			Username:     fmt.Sprintf("student%d", i+1),
			Name:         name,
			PasswordHash: hash,
			ClassID:      class.ID,
		}
		if err := studentRepo.Create(ctx, student); err != nil {
			fmt.Printf("Error creating student %s: %v\n", student.Username, err)
		} else {
			successCount++
		}
	}
	fmt.Printf("Seeded %d/%d students.\n", successCount, len(names))

	quizService := service.NewQuizService(quizRepo, nil, log)
	quiz, err := quizService.Create(ctx, teacher.ID, class.ID, &model.CreateQuizRequest{
		Title:              "Perkalian Dasar",
		PerQuestionSeconds: 15,
		MaxAttempts:        3,
		BasePoints:         100,
		Questions: []model.CreateQuestionRequest{
			{QuestionText: "7 x 8 = ?", Options: []string{"54", "56", "63", "64"}, CorrectIndex: 1},
			{QuestionText: "6 x 9 = ?", Options: []string{"52", "54", "56", "63"}, CorrectIndex: 1},
			{QuestionText: "12 x 12 = ?", Options: []string{"124", "132", "144", "154"}, CorrectIndex: 2},
			{QuestionText: "9 x 9 = ?", Options: []string{"72", "79", "81", "89"}, CorrectIndex: 2},
			{QuestionText: "8 x 4 = ?", Options: []string{"28", "32", "36", "42"}, CorrectIndex: 1},
		},
	})
	if err != nil {
		fmt.Printf("Quiz seed skipped: %v\n", err)
	} else {
		fmt.Printf("Created quiz %q (%s)\n", quiz.Title, quiz.ID)
	}

	fmt.Println("\nSeed completed!")
}
