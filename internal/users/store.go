package users

import (
	"context"
	"errors"

	"github.com/wuwenbin0122/useradmin/internal/models"
)

var (
	ErrNotFound    = errors.New("users: user not found")
	ErrEmailExists = errors.New("users: user with this email already exists")
)

// Store persists user records. Implementations enforce email uniqueness and
// report a violation as ErrEmailExists.
type Store interface {
	Insert(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, query ListQuery) ([]models.User, int64, error)
	Update(ctx context.Context, id string, patch Patch) (*models.User, error)
	Delete(ctx context.Context, id string) error
}

// ListQuery selects one page of records, newest first. Search is matched as a
// case-insensitive literal substring of email, phone number or remarks.
type ListQuery struct {
	Search string
	Skip   int64
	Limit  int64
}

// Patch carries the fields an update sets. Nil fields are left untouched.
type Patch struct {
	Email            *string
	PhoneNumber      *string
	PasswordHash     *string
	AgreeToTerms     *bool
	IsRecruiter      *bool
	IsVerified       *bool
	CinPanGst        *string
	CompanyEmail     *string
	OfficeEmail      *string
	Remarks          *string
	FavouriteCourses *[]string
}

// Apply writes the patch onto user in memory.
func (p Patch) Apply(user *models.User) {
	assign(&user.Email, p.Email)
	assign(&user.PhoneNumber, p.PhoneNumber)
	assign(&user.PasswordHash, p.PasswordHash)
	assign(&user.AgreeToTerms, p.AgreeToTerms)
	assign(&user.IsRecruiter, p.IsRecruiter)
	assign(&user.IsVerified, p.IsVerified)
	assign(&user.CinPanGst, p.CinPanGst)
	assign(&user.CompanyEmail, p.CompanyEmail)
	assign(&user.OfficeEmail, p.OfficeEmail)
	assign(&user.Remarks, p.Remarks)
	if p.FavouriteCourses != nil {
		user.FavouriteCourses = append([]string{}, (*p.FavouriteCourses)...)
	}
}

func assign[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
