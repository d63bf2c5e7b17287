package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"

	"github.com/tech-arch1tect/sessiongate/services/autherror"
	"github.com/tech-arch1tect/sessiongate/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound      = errors.New("identity not found")
	ErrUsernameTaken = errors.New("username already exists")
	ErrInvalidInput  = errors.New("invalid registration input")
)

// Provider resolves an identity per request. Implementations must not cache: permission and
// status changes take effect on the next request.
type Provider interface {
	FindBySubject(ctx context.Context, subject string) (*Record, error)
}

type PasswordService interface {
	Hash(plain string) (string, error)
	Verify(plain, encoded string) (bool, error)
	NeedsRehash(encoded string) bool
}

type RegisterInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

type Service struct {
	db        *gorm.DB
	passwords PasswordService
	logger    *logging.Service

	dummyOnce sync.Once
	dummyHash string
}

func NewService(db *gorm.DB, passwords PasswordService, logger *logging.Service) *Service {
	return &Service{
		db:        db,
		passwords: passwords,
		logger:    logger,
	}
}

func (s *Service) FindBySubject(ctx context.Context, subject string) (*Record, error) {
	user, err := s.loadUser(ctx, subject)
	if err != nil {
		return nil, err
	}
	return recordFromUser(user), nil
}

func (s *Service) loadUser(ctx context.Context, username string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).
		Preload("Permissions").
		Preload("Groups.Permissions").
		Where("username = ?", username).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}
	return &user, nil
}

// Authenticate checks a username and password. Unknown users, wrong passwords and disabled
// accounts all fail with the same InvalidCredential error.
func (s *Service) Authenticate(ctx context.Context, username, plain string) (*Record, error) {
	user, err := s.loadUser(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.burnVerify(plain)
			s.logger.Debug("login rejected - unknown user")
			return nil, autherror.New(autherror.KindInvalidCredential, "invalid username or password")
		}
		return nil, autherror.Wrap(autherror.KindProcessing, "credential lookup failed", err)
	}

	ok, err := s.passwords.Verify(plain, user.PasswordHash)
	if err != nil {
		s.logger.Warn("stored password hash unreadable", zap.Uint("user_id", user.ID), zap.Error(err))
		return nil, autherror.New(autherror.KindInvalidCredential, "invalid username or password")
	}
	if !ok {
		s.logger.Debug("login rejected - wrong password", zap.Uint("user_id", user.ID))
		return nil, autherror.New(autherror.KindInvalidCredential, "invalid username or password")
	}
	if !user.Enabled {
		s.logger.Info("login rejected - account disabled", zap.Uint("user_id", user.ID))
		return nil, autherror.New(autherror.KindInvalidCredential, "invalid username or password")
	}

	if s.passwords.NeedsRehash(user.PasswordHash) {
		s.upgradeHash(ctx, user, plain)
	}

	return recordFromUser(user), nil
}

// burnVerify runs one hash verification for an unknown user so the rejection costs the same
// as a wrong password.
func (s *Service) burnVerify(plain string) {
	s.dummyOnce.Do(func() {
		hash, err := s.passwords.Hash("unknown-user-placeholder")
		if err != nil {
			s.logger.Warn("failed to prepare placeholder password hash", zap.Error(err))
			return
		}
		s.dummyHash = hash
	})
	if s.dummyHash != "" {
		_, _ = s.passwords.Verify(plain, s.dummyHash)
	}
}

func (s *Service) upgradeHash(ctx context.Context, user *User, plain string) {
	hash, err := s.passwords.Hash(plain)
	if err != nil {
		s.logger.Warn("failed to rehash password", zap.Uint("user_id", user.ID), zap.Error(err))
		return
	}
	err = s.db.WithContext(ctx).Model(&User{}).Where("id = ?", user.ID).Update("password_hash", hash).Error
	if err != nil {
		s.logger.Warn("failed to store rehashed password", zap.Uint("user_id", user.ID), zap.Error(err))
		return
	}
	s.logger.Info("password hash upgraded", zap.Uint("user_id", user.ID))
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)

	if in.Username == "" || in.Name == "" || in.Email == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: username, password, name and email are required", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, fmt.Errorf("%w: invalid email address", ErrInvalidInput)
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	user := &User{
		Username:     in.Username,
		PasswordHash: hash,
		Name:         in.Name,
		Email:        in.Email,
		Enabled:      true,
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(strings.ToLower(err.Error()), "unique") {
			return nil, ErrUsernameTaken
		}
		s.logger.Error("failed to register user", zap.Error(err))
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	s.logger.Info("user registered", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	return user, nil
}

// Grant attaches existing permissions to a user by key.
func (s *Service) Grant(ctx context.Context, username string, keys ...string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user User
		if err := tx.Where("username = ?", username).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var perms []Permission
		values := make([]any, len(keys))
		for i, k := range keys {
			values[i] = k
		}
		if err := tx.Where(clause.IN{Column: clause.Column{Name: "key"}, Values: values}).Find(&perms).Error; err != nil {
			return err
		}
		if len(perms) != len(keys) {
			return fmt.Errorf("unknown permission in %v", keys)
		}

		return tx.Model(&user).Association("Permissions").Append(perms)
	})
}

// AddToGroup makes the user a member of the named group.
func (s *Service) AddToGroup(ctx context.Context, username, group string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user User
		if err := tx.Where("username = ?", username).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var g Group
		if err := tx.Where("name = ?", group).First(&g).Error; err != nil {
			return fmt.Errorf("group %q: %w", group, err)
		}

		return tx.Model(&user).Association("Groups").Append(&g)
	})
}

func (s *Service) SetEnabled(ctx context.Context, username string, enabled bool) error {
	result := s.db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Update("enabled", enabled)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
