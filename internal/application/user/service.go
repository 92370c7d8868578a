package user

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"promptmarket/internal/application/emails"
	"promptmarket/internal/domain"
	"promptmarket/internal/pkg/apperror"
	"promptmarket/internal/pkg/constants"
	"promptmarket/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Service holds DB and Redis for user operations.
type Service struct {
	DB  *gorm.DB
	Rdb *redis.Client
	// Emails, when set, receives the welcome email after registration.
	Emails emails.Sender
	Now    func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// RegisterInput is the signup body. Role defaults to buyer.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"signup_role"`
}

// Register creates a buyer or seller account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	fields := map[string][]string{}
	name := strings.TrimSpace(in.Name)
	if !validation.IsValidFullname(name) {
		fields["name"] = append(fields["name"], "Name contains invalid characters (only letters, spaces, hyphens, and apostrophes allowed)")
	}
	if !validation.IsValidPassword(in.Password) {
		fields["password"] = append(fields["password"], "Password needs a letter, a digit and a symbol")
	}
	if len(fields) > 0 {
		return nil, apperror.Validation("The given data was invalid", fields)
	}

	role := in.Role
	if role == "" {
		role = constants.Buyer
	}
	email := strings.TrimSpace(strings.ToLower(in.Email))

	var count int64
	if err := s.DB.WithContext(ctx).Model(&domain.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), 10)
	if err != nil {
		return nil, err
	}
	u := &domain.User{
		Name:         titleCaseAndNormalize(name),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.DB.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	if s.Emails != nil {
		if err := s.Emails.SendWelcome(ctx, u.Email, u.Name); err != nil {
			log.Warn().Err(err).Str("user_id", u.ID.String()).Msg("welcome email failed")
		}
	}
	return u, nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	var u domain.User
	if err := s.DB.WithContext(ctx).Where("id = ?", userID).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Ban suspends a user and ends every session they hold. Banning an already
// banned user keeps the original timestamp.
func (s *Service) Ban(ctx context.Context, adminID, userID uuid.UUID) (*domain.User, error) {
	if adminID == userID {
		return nil, ErrCannotBanSelf
	}
	u, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Role == constants.Admin {
		return nil, ErrCannotBanAdmin
	}
	if err := s.DB.WithContext(ctx).Model(&domain.User{}).
		Where("id = ? AND banned_at IS NULL", userID).
		Update("banned_at", s.now()).Error; err != nil {
		return nil, err
	}
	DestroyUserSessions(ctx, s.Rdb, userID.String())
	log.Info().Str("admin_id", adminID.String()).Str("user_id", userID.String()).Msg("user banned")
	return s.Get(ctx, userID)
}

func (s *Service) Unban(ctx context.Context, adminID, userID uuid.UUID) (*domain.User, error) {
	if _, err := s.Get(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", userID).
		Update("banned_at", nil).Error; err != nil {
		return nil, err
	}
	log.Info().Str("admin_id", adminID.String()).Str("user_id", userID.String()).Msg("user unbanned")
	return s.Get(ctx, userID)
}

// SetPayoutAccount stores the seller's connected Stripe account id.
func (s *Service) SetPayoutAccount(ctx context.Context, sellerID uuid.UUID, accountID string) (*domain.User, error) {
	accountID = strings.TrimSpace(accountID)
	if !strings.HasPrefix(accountID, "acct_") || len(accountID) < 6 {
		return nil, ErrPayoutAccountForm
	}
	u, err := s.Get(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if u.Role != constants.Seller && u.Role != constants.Admin {
		return nil, ErrNotSeller
	}
	if err := s.DB.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", sellerID).
		Update("stripe_account_id", accountID).Error; err != nil {
		return nil, err
	}
	u.StripeAccountID = &accountID
	return u, nil
}

func titleCaseAndNormalize(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	var b strings.Builder
	capitalize := true
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !capitalize {
				b.WriteRune(' ')
				capitalize = true
			}
			continue
		}
		if capitalize {
			b.WriteRune(unicode.ToUpper(r))
			capitalize = false
		} else {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
