package service

import (
	"context"
	"log/slog"

	"github.com/attaboy/siteadmin/internal/domain"
	"github.com/attaboy/siteadmin/internal/repository"
	"github.com/attaboy/siteadmin/internal/secret"
)

// AdminService manages the lifecycle of the singleton admin account.
type AdminService struct {
	repo   repository.AdminRepository
	hasher *secret.Hasher
	inv    Invalidator
	logger *slog.Logger
}

// NewAdminService creates a new AdminService. A nil Invalidator disables revalidation.
func NewAdminService(repo repository.AdminRepository, hasher *secret.Hasher, inv Invalidator, logger *slog.Logger) *AdminService {
	if inv == nil {
		inv = nopInvalidator{}
	}
	return &AdminService{repo: repo, hasher: hasher, inv: inv, logger: logger}
}

// CreateAccountInput holds the account-creation form.
type CreateAccountInput struct {
	AdminName       string `json:"adminName"`
	AdminID         string `json:"adminId"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Credentials holds the primary login form. All four fields must match.
type Credentials struct {
	AdminName string `json:"adminName"`
	AdminID   string `json:"adminId"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// UpdateProfileInput holds the settings form. AdminID is accepted but never applied.
type UpdateProfileInput struct {
	AdminName          string `json:"adminName"`
	AdminID            string `json:"adminId,omitempty"`
	Email              string `json:"email"`
	CurrentPassword    string `json:"currentPassword,omitempty"`
	NewPassword        string `json:"newPassword,omitempty"`
	ConfirmNewPassword string `json:"confirmNewPassword,omitempty"`
}

// Exists reports whether the admin account has been created.
func (s *AdminService) Exists(ctx context.Context) (bool, error) {
	acct, err := s.repo.Get(ctx)
	if err != nil {
		return false, toAppError(s.logger, "check admin exists", err)
	}
	return acct != nil, nil
}

// Create makes the one and only admin account.
func (s *AdminService) Create(ctx context.Context, in CreateAccountInput) (*domain.AdminProfile, error) {
	fields := domain.FieldErrors{}
	fields.Check("adminName", domain.ValidateAdminName(in.AdminName))
	fields.Check("adminId", domain.ValidateAdminID(in.AdminID))
	fields.Check("email", domain.ValidateEmail(in.Email))
	fields.Check("password", domain.ValidatePassword(in.Password))
	fields.Check("password", secret.CheckLength(in.Password))
	if in.Password != in.ConfirmPassword {
		fields.Check("confirmPassword", errPasswordsDiffer)
	}
	if err := fields.Err(); err != nil {
		return nil, err
	}

	existing, err := s.repo.Get(ctx)
	if err != nil {
		return nil, toAppError(s.logger, "create admin", err)
	}
	if existing != nil {
		return nil, domain.ErrAlreadyExists("an admin account already exists")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, domain.ErrInternal("hash password", err)
	}

	acct := domain.AdminAccount{
		AdminName:    in.AdminName,
		AdminID:      in.AdminID,
		Email:        in.Email,
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, acct); err != nil {
		return nil, toAppError(s.logger, "create admin", err)
	}

	s.logger.Info("admin account created", "admin_id", acct.AdminID)
	notify(ctx, s.inv, s.logger, "account created")
	profile := acct.Profile()
	return &profile, nil
}

// VerifyPrimaryCredentials checks name, ID, email and password together.
// Any mismatch yields the same error so the caller cannot tell which field failed.
func (s *AdminService) VerifyPrimaryCredentials(ctx context.Context, c Credentials) (*domain.AdminProfile, error) {
	acct, err := s.repo.Get(ctx)
	if err != nil {
		return nil, toAppError(s.logger, "verify credentials", err)
	}
	if acct == nil {
		return nil, errBadCredentials()
	}

	// bcrypt runs regardless of the identity fields so timing does not reveal which one differed.
	passwordOK := s.hasher.Verify(acct.PasswordHash, c.Password)
	identityOK := c.AdminName == acct.AdminName && c.AdminID == acct.AdminID && c.Email == acct.Email
	if !passwordOK || !identityOK {
		return nil, errBadCredentials()
	}

	profile := acct.Profile()
	return &profile, nil
}

// GetProfile returns the public-safe view of the account.
func (s *AdminService) GetProfile(ctx context.Context) (*domain.AdminProfile, error) {
	acct, err := s.repo.Get(ctx)
	if err != nil {
		return nil, toAppError(s.logger, "get profile", err)
	}
	if acct == nil {
		return nil, domain.ErrNotFound("admin account", "")
	}
	profile := acct.Profile()
	return &profile, nil
}

// UpdateProfile changes name, email and optionally the password of the account
// identified by actorID. A new password needs the current one in the same request.
func (s *AdminService) UpdateProfile(ctx context.Context, actorID string, in UpdateProfileInput) (*domain.AdminProfile, error) {
	fields := domain.FieldErrors{}
	fields.Check("adminName", domain.ValidateAdminName(in.AdminName))
	fields.Check("email", domain.ValidateEmail(in.Email))

	changePassword := in.NewPassword != "" || in.ConfirmNewPassword != ""
	if changePassword {
		fields.Check("newPassword", domain.ValidatePassword(in.NewPassword))
		fields.Check("newPassword", secret.CheckLength(in.NewPassword))
		if in.NewPassword != in.ConfirmNewPassword {
			fields.Check("confirmNewPassword", errPasswordsDiffer)
		}
	}
	if err := fields.Err(); err != nil {
		return nil, err
	}
	if changePassword && in.CurrentPassword == "" {
		return nil, domain.ErrInvalidCredentials("current password is required to set a new password")
	}

	var newHash string
	if changePassword {
		h, err := s.hasher.Hash(in.NewPassword)
		if err != nil {
			return nil, domain.ErrInternal("hash password", err)
		}
		newHash = h
	}

	updated, err := s.repo.Update(ctx, func(acct *domain.AdminAccount) error {
		if acct.AdminID != actorID {
			return domain.ErrNotFound("admin account", actorID)
		}
		if changePassword {
			if !s.hasher.Verify(acct.PasswordHash, in.CurrentPassword) {
				return domain.ErrInvalidCredentials("current password is incorrect")
			}
			acct.PasswordHash = newHash
		}
		acct.AdminName = in.AdminName
		acct.Email = in.Email
		return nil
	})
	if err != nil {
		return nil, toAppError(s.logger, "update profile", err)
	}

	if in.AdminID != "" && in.AdminID != updated.AdminID {
		s.logger.Info("ignored admin ID change in profile update", "admin_id", updated.AdminID)
	}
	s.logger.Info("admin profile updated", "admin_id", updated.AdminID, "password_changed", changePassword)
	notify(ctx, s.inv, s.logger, "profile updated")
	profile := updated.Profile()
	return &profile, nil
}

var errPasswordsDiffer = fieldMessage("passwords do not match")

type fieldMessage string

func (m fieldMessage) Error() string { return string(m) }

func errBadCredentials() *domain.AppError {
	return domain.ErrInvalidCredentials("invalid credentials")
}
