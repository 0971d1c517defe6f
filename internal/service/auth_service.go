package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignatzorin/autoclaim-backend/internal/domain/entity"
	"github.com/ignatzorin/autoclaim-backend/internal/domain/repository"
	"github.com/ignatzorin/autoclaim-backend/internal/pkg/apperror"
	"github.com/ignatzorin/autoclaim-backend/internal/validation"
)

var ErrAccountDisabled = apperror.New(apperror.ErrCodeForbidden, "аккаунт заблокирован")

// AuthService инкапсулирует регистрацию, аутентификацию и профиль пользователя.
type AuthService struct {
	users  repository.UserRepository
	tokens *TokenManager
	log    logrus.FieldLogger
}

type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
}

type LoginInput struct {
	Email    string
	Password string
}

// AuthResult возвращает итог регистрации или авторизации.
type AuthResult struct {
	User      *entity.User
	TokenPair *TokenPair
}

func NewAuthService(users repository.UserRepository, tokens *TokenManager, log logrus.FieldLogger) *AuthService {
	return &AuthService{users: users, tokens: tokens, log: log}
}

// Register создаёт пользователя с ролью user и выпускает токены.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	fields := map[string]string{}
	if err := validation.ValidateEmail(in.Email); err != nil {
		fields["email"] = err.Error()
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		fields["password"] = err.Error()
	}
	if strings.TrimSpace(in.DisplayName) != "" {
		if err := validation.ValidateDisplayName(in.DisplayName); err != nil {
			fields["displayName"] = err.Error()
		}
	}
	if len(fields) > 0 {
		return nil, apperror.Validation(fields)
	}

	user, err := s.createUser(ctx, in.Email, in.DisplayName, entity.RoleUser, in.Password)
	if err != nil {
		return nil, err
	}

	pair, err := s.tokens.GeneratePair(user)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось выпустить токены")
	}

	s.log.WithField("user_id", user.ID).Info("auth: пользователь зарегистрирован")
	return &AuthResult{User: user, TokenPair: pair}, nil
}

// Login проверяет учётные данные и возвращает токены.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, apperror.ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(in.Email)))
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, apperror.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	pair, err := s.tokens.GeneratePair(user)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось выпустить токены")
	}
	return &AuthResult{User: user, TokenPair: pair}, nil
}

// Refresh выпускает новую пару токенов по действующему refresh токену.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeUnauthorized, "refresh токен невалиден")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.ErrUnauthorized
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	pair, err := s.tokens.GeneratePair(user)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось выпустить токены")
	}
	return pair, nil
}

func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	return s.users.FindByID(ctx, userID)
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, displayName string) (*entity.User, error) {
	if err := validation.ValidateDisplayName(displayName); err != nil {
		return nil, apperror.Validation(map[string]string{"displayName": err.Error()})
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Rename(displayName)
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Deactivate отключает пользователя. Администратор не может отключить себя.
func (s *AuthService) Deactivate(ctx context.Context, actorID, userID uuid.UUID) (*entity.User, error) {
	if actorID == userID {
		return nil, apperror.New(apperror.ErrCodeBadRequest, "нельзя заблокировать собственный аккаунт")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return user, nil
	}
	user.Deactivate()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"user_id": userID, "actor_id": actorID}).Info("auth: пользователь заблокирован")
	return user, nil
}

// EnsureAdmin создаёт администратора, если пользователя с таким email ещё нет.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	if err := validation.ValidateEmail(email); err != nil {
		return apperror.Validation(map[string]string{"email": err.Error()})
	}

	existing, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	switch {
	case err == nil:
		if !existing.IsAdmin() {
			s.log.WithField("user_id", existing.ID).Warn("auth: ADMIN_EMAIL принадлежит обычному пользователю")
		}
		return nil
	case !apperror.IsNotFound(err):
		return err
	}

	user, err := s.createUser(ctx, email, "", entity.RoleAdmin, password)
	if err != nil {
		if errors.Is(err, apperror.ErrEmailTaken) {
			return nil
		}
		return err
	}
	s.log.WithField("user_id", user.ID).Info("auth: создан администратор")
	return nil
}

func (s *AuthService) createUser(ctx context.Context, email, displayName, role, password string) (*entity.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось захешировать пароль")
	}

	user, err := entity.NewUser(email, displayName, role, string(hash))
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
