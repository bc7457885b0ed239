package users

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wuwenbin0122/useradmin/internal/models"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	maxPage = math.MaxInt32
)

// PasswordHasher turns a plaintext password into its stored hash.
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
}

// CreateInput is the payload accepted when creating a user.
type CreateInput struct {
	Email            string   `json:"email" validate:"required,email"`
	PhoneNumber      string   `json:"phoneNumber" validate:"required"`
	Password         string   `json:"password" validate:"required,min=6,bcryptlen"`
	AgreeToTerms     bool     `json:"agreeToTerms"`
	IsRecruiter      bool     `json:"isRecruiter"`
	IsVerified       bool     `json:"isVerified"`
	CinPanGst        string   `json:"cinPanGst"`
	CompanyEmail     string   `json:"companyEmail" validate:"omitempty,email"`
	OfficeEmail      string   `json:"officeEmail" validate:"omitempty,email"`
	Remarks          string   `json:"remarks"`
	FavouriteCourses []string `json:"favouriteCourses"`
}

func (in *CreateInput) normalize() {
	in.Email = normalizeEmail(in.Email)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	in.CompanyEmail = strings.TrimSpace(in.CompanyEmail)
	in.OfficeEmail = strings.TrimSpace(in.OfficeEmail)
}

// UpdateInput is a partial update. Absent fields are left unchanged, and an
// absent or empty password keeps the stored hash.
type UpdateInput struct {
	Email            *string   `json:"email"`
	PhoneNumber      *string   `json:"phoneNumber"`
	Password         *string   `json:"password"`
	AgreeToTerms     *bool     `json:"agreeToTerms"`
	IsRecruiter      *bool     `json:"isRecruiter"`
	IsVerified       *bool     `json:"isVerified"`
	CinPanGst        *string   `json:"cinPanGst"`
	CompanyEmail     *string   `json:"companyEmail"`
	OfficeEmail      *string   `json:"officeEmail"`
	Remarks          *string   `json:"remarks"`
	FavouriteCourses *[]string `json:"favouriteCourses"`
}

type ListParams struct {
	Page   int
	Limit  int
	Search string
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

type Page struct {
	Users      []models.User `json:"users"`
	Pagination Pagination    `json:"pagination"`
}

type Service struct {
	store  Store
	hasher PasswordHasher
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store Store, hasher PasswordHasher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, hasher: hasher, logger: logger, now: time.Now}
}

func (s *Service) List(ctx context.Context, params ListParams) (*Page, error) {
	page := params.Page
	if page < 1 {
		page = DefaultPage
	}
	if page > maxPage {
		page = maxPage
	}

	limit := params.Limit
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	records, total, err := s.store.List(ctx, ListQuery{
		Search: strings.TrimSpace(params.Search),
		Skip:   int64(page-1) * int64(limit),
		Limit:  int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	users := make([]models.User, 0, len(records))
	for _, u := range records {
		users = append(users, u.Sanitize())
	}

	return &Page{
		Users: users,
		Pagination: Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: int((total + int64(limit) - 1) / int64(limit)),
		},
	}, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	clean := user.Sanitize()
	return &clean, nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*models.User, error) {
	in.normalize()
	if err := validateStruct(&in); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	// BSON dates carry millisecond precision; truncating keeps the response
	// identical to what a later read returns.
	now := s.now().UTC().Truncate(time.Millisecond)
	user := &models.User{
		Email:            in.Email,
		PhoneNumber:      in.PhoneNumber,
		PasswordHash:     hash,
		AgreeToTerms:     in.AgreeToTerms,
		IsRecruiter:      in.IsRecruiter,
		IsVerified:       in.IsVerified,
		CinPanGst:        in.CinPanGst,
		CompanyEmail:     in.CompanyEmail,
		OfficeEmail:      in.OfficeEmail,
		Remarks:          in.Remarks,
		FavouriteCourses: append([]string{}, in.FavouriteCourses...),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.store.Insert(ctx, user); err != nil {
		if errors.Is(err, ErrEmailExists) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user created", zap.String("user_id", user.ID.Hex()))

	clean := user.Sanitize()
	return &clean, nil
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*models.User, error) {
	var (
		checker fieldChecker
		patch   Patch
	)

	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		checker.check("email", email, "required,email")
		patch.Email = &email
	}
	if in.PhoneNumber != nil {
		phone := strings.TrimSpace(*in.PhoneNumber)
		checker.check("phoneNumber", phone, "required")
		patch.PhoneNumber = &phone
	}
	rehash := in.Password != nil && *in.Password != ""
	if rehash {
		checker.check("password", *in.Password, fmt.Sprintf("min=%d,bcryptlen", minPasswordLength))
	}
	if in.CompanyEmail != nil {
		v := strings.TrimSpace(*in.CompanyEmail)
		checker.check("companyEmail", v, "omitempty,email")
		patch.CompanyEmail = &v
	}
	if in.OfficeEmail != nil {
		v := strings.TrimSpace(*in.OfficeEmail)
		checker.check("officeEmail", v, "omitempty,email")
		patch.OfficeEmail = &v
	}
	if err := checker.err(); err != nil {
		return nil, err
	}

	patch.AgreeToTerms = in.AgreeToTerms
	patch.IsRecruiter = in.IsRecruiter
	patch.IsVerified = in.IsVerified
	patch.CinPanGst = in.CinPanGst
	patch.Remarks = in.Remarks
	if in.FavouriteCourses != nil {
		courses := append([]string{}, (*in.FavouriteCourses)...)
		patch.FavouriteCourses = &courses
	}

	if rehash {
		hash, err := s.hasher.Hash(ctx, *in.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		patch.PasswordHash = &hash
	}

	user, err := s.store.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrEmailExists) {
			return nil, err
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.logger.Info("user updated", zap.String("user_id", id), zap.Bool("password_changed", rehash))

	clean := user.Sanitize()
	return &clean, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}

	s.logger.Info("user deleted", zap.String("user_id", id))
	return nil
}

// FindByEmail returns the stored record, hash included, for credential checks.
func (s *Service) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.store.FindByEmail(ctx, normalizeEmail(email))
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
