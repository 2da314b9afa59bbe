package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go-freshflow/internal/events"
	"go-freshflow/internal/model"
	"go-freshflow/internal/repository"
	"go-freshflow/pkg/jwt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrSessionTimeout     = errors.New("session expired due to inactivity")
	ErrSessionReplaced    = errors.New("session expired (logged in on another device)")
)

type AuthService interface {
	Login(ctx context.Context, email, password string) (*LoginResponse, error)
	ChangePassword(ctx context.Context, email, oldPassword, newPassword string) error
	ValidateToken(ctx context.Context, tokenString string) (*TokenValidationResponse, error)
	// Authenticate resolves a bearer token to its user, enforcing the single
	// session rule. Idle expiry is not checked here.
	Authenticate(ctx context.Context, tokenString string) (*jwt.Claims, *model.User, error)
	Heartbeat(ctx context.Context, actor Actor) error
}

type LoginResponse struct {
	Token      string             `json:"token"`
	User       model.UserResponse `json:"user"`
	Role       *model.Role        `json:"role"`
	Privileges []string           `json:"privileges"`
}

type TokenValidationResponse struct {
	User       model.UserResponse `json:"user"`
	Role       *model.Role        `json:"role"`
	Privileges []string           `json:"privileges"`
}

type authService struct {
	userRepo   repository.UserRepository
	signer     *jwt.Signer
	idleExpiry time.Duration
	events     publisher
	now        func() time.Time
}

// NewAuthService builds the login service. An idleExpiry of zero disables
// the inactivity check in ValidateToken.
func NewAuthService(userRepo repository.UserRepository, signer *jwt.Signer, idleExpiry time.Duration, pub events.Publisher, log *zap.Logger) AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &authService{
		userRepo:   userRepo,
		signer:     signer,
		idleExpiry: idleExpiry,
		events:     publisher{pub: pub, log: log},
		now:        time.Now,
	}
	s.events.now = func() time.Time { return s.now() }
	return s
}

func (s *authService) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	if !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}

	// A new token version logs out every other session of this user.
	now := s.now().UTC()
	user.TokenVersion = uuid.New().String()
	user.LastSeenAt = &now
	if err := s.userRepo.UpdateTokenVersion(ctx, user.ID, user.TokenVersion); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}
	if err := s.userRepo.UpdateLastSeen(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	token, err := s.signer.GenerateToken(claimsFor(user))
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &LoginResponse{
		Token:      token,
		User:       user.ToResponse(),
		Role:       user.Role,
		Privileges: user.GetPrivilegeCodes(),
	}, nil
}

func claimsFor(user *model.User) jwt.Claims {
	roleCode := ""
	if user.Role != nil {
		roleCode = user.Role.Code
	}
	return jwt.Claims{
		UserID:       user.ID,
		Email:        user.Email,
		Name:         user.FullName,
		RoleCode:     roleCode,
		PartyID:      user.PartyID,
		PartyTier:    string(user.PartyTier()),
		Privileges:   user.GetPrivilegeCodes(),
		TokenVersion: user.TokenVersion,
	}
}

// ChangePassword sets a new password and ends every open session.
func (s *authService) ChangePassword(ctx context.Context, email, oldPassword, newPassword string) error {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return ErrUserNotFound
	}
	if !user.CheckPassword(oldPassword) {
		return ErrWrongPassword
	}
	if err := user.SetPassword(newPassword); err != nil {
		return errors.New("failed to hash new password")
	}
	user.TokenVersion = uuid.New().String()
	return s.userRepo.Update(ctx, user)
}

func (s *authService) Authenticate(ctx context.Context, tokenString string) (*jwt.Claims, *model.User, error) {
	claims, err := s.signer.ValidateToken(tokenString)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, nil, ErrUserNotFound
	}
	if !user.IsActive {
		return nil, nil, ErrUserInactive
	}
	if user.TokenVersion != claims.TokenVersion {
		return nil, nil, ErrSessionReplaced
	}
	return claims, user, nil
}

func (s *authService) ValidateToken(ctx context.Context, tokenString string) (*TokenValidationResponse, error) {
	_, user, err := s.Authenticate(ctx, tokenString)
	if err != nil {
		return nil, err
	}

	if s.idleExpiry > 0 {
		if user.LastSeenAt == nil || s.now().Sub(*user.LastSeenAt) > s.idleExpiry {
			return nil, ErrSessionTimeout
		}
	}

	return &TokenValidationResponse{
		User:       user.ToResponse(),
		Role:       user.Role,
		Privileges: user.GetPrivilegeCodes(),
	}, nil
}

func (s *authService) Heartbeat(ctx context.Context, actor Actor) error {
	now := s.now().UTC()
	if err := s.userRepo.UpdateLastSeen(ctx, actor.UserID, now); err != nil {
		return err
	}

	var parties []uuid.UUID
	if actor.PartyID != nil {
		parties = append(parties, *actor.PartyID)
	}
	s.events.emit(ctx, actor, events.TypeUserStatus, events.ActionUserOnline,
		fmt.Sprintf("%s is online", actor.Name),
		map[string]interface{}{"user_id": actor.UserID, "last_seen_at": now},
		parties...)
	return nil
}
