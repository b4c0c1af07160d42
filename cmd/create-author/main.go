package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/stemsi/exstem-cms/internal/config"
	"github.com/stemsi/exstem-cms/internal/database"
	"github.com/stemsi/exstem-cms/internal/logger"
	"github.com/stemsi/exstem-cms/internal/model"
	"github.com/stemsi/exstem-cms/internal/repository"
	"golang.org/x/crypto/bcrypt"
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

	authorRepo := repository.NewAuthorRepository(pool)
	bankRepo := repository.NewQuestionBankRepository(pool)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create New Author ===")

	fmt.Print("Enter Name: ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		fmt.Println("Error: Name is required")
		return
	}

	fmt.Print("Enter Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		fmt.Println("Error: A valid email is required")
		return
	}

	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // Newline after password input
	if err != nil {
		fmt.Println("Error reading password")
		return
	}
	password := string(bytePassword)
	if len(password) < 6 {
		fmt.Println("Error: Password must be at least 6 characters")
		return
	}

	fmt.Print("Grant security admin role? [y/N]: ")
	adminAnswer, _ := reader.ReadString('\n')
	role := model.RoleAuthor
	if strings.EqualFold(strings.TrimSpace(adminAnswer), "y") {
		role = model.RoleAdmin
	}

	fmt.Print("Starter question bank name (blank to skip): ")
	bankName, _ := reader.ReadString('\n')
	bankName = strings.TrimSpace(bankName)

	// ─── Logic ─────────────────────────────────────────────────────────
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	author := &model.Author{
		Email:        email,
		Name:         name,
		Role:         role,
		PasswordHash: string(hashedPassword),
	}
	if err := authorRepo.Create(ctx, author); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			fmt.Printf("Error: an author with email %s already exists\n", email)
			return
		}
		log.Fatal().Err(err).Msg("Failed to create author")
	}
	fmt.Printf("\nSuccess! Author '%s' (%s) created with ID: %d, role %s\n", author.Name, author.Email, author.ID, author.Role)

	if bankName == "" {
		return
	}
	bank := &model.QuestionBank{AuthorID: author.ID, Name: bankName, IsActive: true}
	if err := bankRepo.Create(ctx, bank); err != nil {
		log.Fatal().Err(err).Msg("Failed to create question bank")
	}
	fmt.Printf("Question bank '%s' created with ID: %d\n", bank.Name, bank.ID)
}
