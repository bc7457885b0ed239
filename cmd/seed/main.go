// Command seed creates the initial admin account and a few sample users.
// Existing accounts are left untouched, so it is safe to run repeatedly.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wuwenbin0122/useradmin/internal/auth"
	"github.com/wuwenbin0122/useradmin/internal/db"
	"github.com/wuwenbin0122/useradmin/internal/users"
	"github.com/wuwenbin0122/useradmin/internal/utils"
)

func seedUsers(password string) []users.CreateInput {
	return []users.CreateInput{
		{
			Email:            "admin@example.com",
			PhoneNumber:      "1234567890",
			Password:         password,
			AgreeToTerms:     true,
			IsRecruiter:      true,
			IsVerified:       true,
			CinPanGst:        "ADMIN001",
			CompanyEmail:     "admin@company.com",
			OfficeEmail:      "admin@office.com",
			Remarks:          "System administrator account",
			FavouriteCourses: []string{"Full Stack Development", "Data Science"},
		},
		{
			Email:            "john.doe@example.com",
			PhoneNumber:      "9876543210",
			Password:         password,
			AgreeToTerms:     true,
			IsVerified:       true,
			Remarks:          "Sample user account",
			FavouriteCourses: []string{"JavaScript", "React"},
		},
		{
			Email:            "jane.smith@example.com",
			PhoneNumber:      "8765432109",
			Password:         password,
			AgreeToTerms:     true,
			IsRecruiter:      true,
			CinPanGst:        "COMP001",
			CompanyEmail:     "jane@techcorp.com",
			OfficeEmail:      "jane@office.com",
			Remarks:          "Recruiter from TechCorp",
			FavouriteCourses: []string{"Python", "AI/ML"},
		},
	}
}

func main() {
	if err := utils.LoadEnvFile(".env"); err != nil {
		log.Fatalf("config: %v", err)
	}

	mongoCfg, err := utils.LoadMongoConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	password := os.Getenv("SEED_PASSWORD")
	if strings.TrimSpace(password) == "" {
		log.Fatalf("config: SEED_PASSWORD must be set")
	}

	logger, err := utils.NewLogger(utils.LoggingConfig{Level: "info", ServiceName: "seed"})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	mongoStore, err := db.NewMongo(ctx, mongoCfg)
	if err != nil {
		logger.Fatal("connect mongo", zap.Error(err))
	}
	defer func() { _ = mongoStore.Close(context.Background()) }()

	if err := mongoStore.EnsureCollections(ctx); err != nil {
		logger.Fatal("ensure collections", zap.Error(err))
	}

	service := users.NewService(users.NewMongoStore(mongoStore.Users), auth.NewHasher(auth.DefaultCost, 2), logger)

	created, err := seed(ctx, service, seedUsers(password), logger)
	if err != nil {
		logger.Fatal("seed users", zap.Error(err))
	}

	logger.Info("database seeded", zap.Int("created", created))
}

// seed creates every input whose email is not taken yet and returns how many
// were created.
func seed(ctx context.Context, service *users.Service, inputs []users.CreateInput, logger *zap.Logger) (int, error) {
	created := 0
	for _, in := range inputs {
		if _, err := service.Create(ctx, in); err != nil {
			if errors.Is(err, users.ErrEmailExists) {
				logger.Info("user already exists", zap.String("email", in.Email))
				continue
			}
			return created, err
		}
		created++
	}
	return created, nil
}
