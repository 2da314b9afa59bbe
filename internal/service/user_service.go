package service

import (
	"context"
	"errors"

	"go-freshflow/internal/model"
	"go-freshflow/internal/repository"
	"go-freshflow/pkg/validator"

	"github.com/google/uuid"
)

var (
	ErrEmailExists  = errors.New("email already exists")
	ErrRoleNotFound = errors.New("role not found")
)

type UserService interface {
	CreateUser(ctx context.Context, actor Actor, req *CreateUserRequest) (*model.User, error)
	UpdateUser(ctx context.Context, actor Actor, userID uuid.UUID, req *UpdateUserRequest) (*model.User, error)
	DeleteUser(ctx context.Context, actor Actor, userID uuid.UUID) error
	UpdateUserPrivileges(ctx context.Context, actor Actor, userID uuid.UUID, privilegeCodes []string) (*model.User, error)
	GetAllUsers(ctx context.Context, partyID *uuid.UUID) ([]model.UserResponse, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*model.UserResponse, error)
}

type CreateUserRequest struct {
	Email    string     `json:"email" validate:"required,email"`
	Password string     `json:"password" validate:"required,min=6"`
	FullName string     `json:"full_name" validate:"required"`
	RoleID   uint       `json:"role_id" validate:"required"`
	PartyID  *uuid.UUID `json:"party_id"`
}

type UpdateUserRequest struct {
	Email    string     `json:"email" validate:"required,email"`
	Password *string    `json:"password,omitempty" validate:"omitempty,min=6"`
	FullName string     `json:"full_name" validate:"required"`
	RoleID   uint       `json:"role_id" validate:"required"`
	PartyID  *uuid.UUID `json:"party_id"`
	IsActive *bool      `json:"is_active"`
}

type userService struct {
	userRepo      repository.UserRepository
	privilegeRepo repository.PrivilegeRepository
	roleRepo      repository.RoleRepository
	partyRepo     repository.PartyRepository
}

func NewUserService(
	userRepo repository.UserRepository,
	privilegeRepo repository.PrivilegeRepository,
	roleRepo repository.RoleRepository,
	partyRepo repository.PartyRepository,
) UserService {
	return &userService{
		userRepo:      userRepo,
		privilegeRepo: privilegeRepo,
		roleRepo:      roleRepo,
		partyRepo:     partyRepo,
	}
}

// roleAndParty loads the role and checks that every non-admin user works for
// an existing party.
func (s *userService) roleAndParty(ctx context.Context, roleID uint, partyID *uuid.UUID) (*model.Role, error) {
	role, err := s.roleRepo.FindByID(ctx, roleID)
	if err != nil {
		return nil, ErrRoleNotFound
	}
	if partyID == nil {
		if role.Code != model.RoleAdmin {
			return nil, ErrNoParty
		}
		return role, nil
	}
	if _, err := s.partyRepo.FindByID(ctx, *partyID); err != nil {
		return nil, ErrPartyNotFound
	}
	return role, nil
}

func (s *userService) CreateUser(ctx context.Context, actor Actor, req *CreateUserRequest) (*model.User, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}

	if existing, _ := s.userRepo.FindByEmail(ctx, req.Email); existing != nil {
		return nil, ErrEmailExists
	}

	role, err := s.roleAndParty(ctx, req.RoleID, req.PartyID)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:      req.Email,
		FullName:   req.FullName,
		PartyID:    req.PartyID,
		RoleID:     &role.ID,
		IsActive:   true,
		Privileges: role.Privileges,
	}
	user.Stamp(actor.String())
	if err := user.SetPassword(req.Password); err != nil {
		return nil, errors.New("failed to hash password")
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.userRepo.FindByID(ctx, user.ID)
}

func (s *userService) UpdateUser(ctx context.Context, actor Actor, userID uuid.UUID, req *UpdateUserRequest) (*model.User, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	if req.Email != user.Email {
		if existing, _ := s.userRepo.FindByEmail(ctx, req.Email); existing != nil {
			return nil, ErrEmailExists
		}
	}

	role, err := s.roleAndParty(ctx, req.RoleID, req.PartyID)
	if err != nil {
		return nil, err
	}

	roleChanged := user.RoleID == nil || *user.RoleID != role.ID
	user.Email = req.Email
	user.FullName = req.FullName
	user.RoleID = &role.ID
	user.PartyID = req.PartyID
	user.Party = nil
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	user.UpdatedBy = actor.String()
	if req.Password != nil && *req.Password != "" {
		if err := user.SetPassword(*req.Password); err != nil {
			return nil, errors.New("failed to hash password")
		}
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	if roleChanged {
		if err := s.userRepo.UpdatePrivileges(ctx, user.ID, role.Privileges); err != nil {
			return nil, err
		}
	}
	return s.userRepo.FindByID(ctx, userID)
}

func (s *userService) DeleteUser(ctx context.Context, actor Actor, userID uuid.UUID) error {
	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		return ErrUserNotFound
	}
	return s.userRepo.Delete(ctx, userID, actor.String())
}

func (s *userService) UpdateUserPrivileges(ctx context.Context, actor Actor, userID uuid.UUID, privilegeCodes []string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	privileges, err := s.privilegeRepo.FindByCodes(ctx, privilegeCodes)
	if err != nil {
		return nil, errors.New("failed to find privileges")
	}
	if err := s.userRepo.UpdatePrivileges(ctx, userID, privileges); err != nil {
		return nil, err
	}

	user.UpdatedBy = actor.String()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return s.userRepo.FindByID(ctx, userID)
}

func (s *userService) GetAllUsers(ctx context.Context, partyID *uuid.UUID) ([]model.UserResponse, error) {
	users, err := s.userRepo.FindAll(ctx, partyID)
	if err != nil {
		return nil, err
	}

	responses := make([]model.UserResponse, len(users))
	for i, user := range users {
		responses[i] = user.ToResponse()
	}
	return responses, nil
}

func (s *userService) GetUserByID(ctx context.Context, id uuid.UUID) (*model.UserResponse, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, ErrUserNotFound
	}
	response := user.ToResponse()
	return &response, nil
}
