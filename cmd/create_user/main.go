package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/expensetrack/expensetrack/domain/entity"
	"github.com/expensetrack/expensetrack/domain/valueobject"
	"github.com/expensetrack/expensetrack/infrastructure/adapter/postgres"
	"github.com/expensetrack/expensetrack/infrastructure/config"
	"github.com/expensetrack/expensetrack/infrastructure/service/password"
)

// Usage: create_user <email> <password> [name] [role]
func main() {
	if len(os.Args) < 3 {
		log.Fatalf("usage: %s <email> <password> [name] [ADMIN|USER]", os.Args[0])
	}

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	email, err := valueobject.NormalizeEmail(os.Args[1])
	if err != nil {
		log.Fatalf("Invalid email: %v", err)
	}
	userPassword := os.Args[2]
	if err := valueobject.ValidateNewPassword(userPassword); err != nil {
		log.Fatalf("Invalid password: %v", err)
	}

	name := "Administrator"
	if len(os.Args) > 3 {
		name = strings.TrimSpace(os.Args[3])
	}
	role := entity.RoleAdmin
	if len(os.Args) > 4 {
		role = entity.Role(strings.ToUpper(os.Args[4]))
		if !role.Valid() {
			log.Fatalf("Unknown role %q", os.Args[4])
		}
	}

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	userRepo := postgres.NewUserRepositoryAdapter(db)

	hashedPassword, err := password.NewBcryptPasswordService(cfg.BcryptCost).HashPassword(userPassword)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	user := entity.NewUser(name, email, "", "", hashedPassword, role)
	if err := userRepo.Create(ctx, user); err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}

	fmt.Printf("User created: id=%d email=%s role=%s\n", user.ID, user.Email, user.Role)
}
