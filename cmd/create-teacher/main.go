package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/classplay/classplay-backend/internal/config"
	"github.com/classplay/classplay-backend/internal/database"
	"github.com/classplay/classplay-backend/internal/logger"
	"github.com/classplay/classplay-backend/internal/model"
	"github.com/classplay/classplay-backend/internal/repository"
	"github.com/classplay/classplay-backend/internal/service"
	"github.com/jackc/pgx/v5"
	"golang.org/x/term"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	classRepo := repository.NewClassRepository(pool)
	teacherRepo := repository.NewTeacherRepository(pool)
	authService := service.NewAuthService(cfg, nil)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create New Teacher ===")

	fmt.Print("Enter Name: ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		fmt.Println("Error: Name is required")
		return
	}

	fmt.Print("Enter Username: ")
	username, _ := reader.ReadString('\n')
	username = strings.TrimSpace(username)
	if username == "" {
		fmt.Println("Error: Username is required")
		return
	}

	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading password")
		return
	}
	password := string(bytePassword)
	fmt.Println() // Newline after password input
	if len(password) < 6 {
		fmt.Println("Error: Password must be at least 6 characters")
		return
	}

	fmt.Print("Enter Class Name: ")
	className, _ := reader.ReadString('\n')
	className = strings.TrimSpace(className)
	if className == "" {
		fmt.Println("Error: Class name is required")
		return
	}

	fmt.Print("Enter Grade Level (default 7): ")
	gradeStr, _ := reader.ReadString('\n')
	gradeStr = strings.TrimSpace(gradeStr)
	gradeLevel := 7
	if gradeStr != "" {
		g, err := strconv.Atoi(gradeStr)
		if err != nil {
			fmt.Println("Error: Grade level must be a number")
			return
		}
		gradeLevel = g
	}

	// ─── Get or Create Class ───────────────────────────────────────────
	class, err := classRepo.GetByName(ctx, className)
	if errors.Is(err, pgx.ErrNoRows) {
		class = &model.Class{Name: className, GradeLevel: gradeLevel}
		if err := classRepo.Create(ctx, class); err != nil {
			fmt.Printf("Error: failed to create class: %v\n", err)
			return
		}
		fmt.Printf("Created class %q (ID %d)\n", class.Name, class.ID)
	} else if err != nil {
		fmt.Printf("Error: failed to look up class: %v\n", err)
		return
	}

	// ─── Create Teacher ────────────────────────────────────────────────
	hash, err := authService.HashPassword(password)
	if err != nil {
		fmt.Printf("Error: failed to hash password: %v\n", err)
		return
	}

	teacher := &model.Teacher{
		Username:     username,
		Name:         name,
		PasswordHash: hash,
		ClassID:      class.ID,
	}
	if err := teacherRepo.Create(ctx, teacher); err != nil {
		fmt.Printf("Error: failed to create teacher: %v\n", err)
		return
	}

	fmt.Printf("Teacher %q created with ID %d for class %q\n", teacher.Username, teacher.ID, class.Name)
}
