package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/facturia/facturia/internal/auditlog"
	"github.com/facturia/facturia/internal/authz"
	"github.com/facturia/facturia/internal/platform/httpx"
	"github.com/facturia/facturia/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	CreateUser(ctx context.Context, u User) (User, error)
	UpdateUser(ctx context.Context, u User) (User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// AuditRecorder appends audit events. *auditlog.Writer satisfies it.
type AuditRecorder interface {
	Info(ctx context.Context, message string, fields auditlog.Context) error
	Warning(ctx context.Context, message string, fields auditlog.Context) error
}

// ErrRoleInvalid is returned for role names outside the catalogue.
var ErrRoleInvalid = fmt.Errorf("users: unknown role: %w", httpx.ErrValidation)

const unauthorizedMessage = "Unauthorized user operation"

// Service handles user business logic.
type Service struct {
	repo   RepositoryPort
	engine *authz.Engine
	audit  AuditRecorder
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, engine *authz.Engine, audit AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, engine: engine, audit: audit, logger: logger}
}

// List returns all users.
func (s *Service) List(ctx context.Context, actor *authz.Actor, meta shared.RequestMeta) ([]User, error) {
	if !s.engine.CanAbility(actor, authz.AbilityView, authz.ResourceUser, nil) {
		return nil, s.deny(ctx, actor, authz.AbilityView, 0, meta)
	}
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []User{}
	}
	return users, nil
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, actor *authz.Actor, id int64, meta shared.RequestMeta) (User, error) {
	if !s.engine.CanAbility(actor, authz.AbilityView, authz.ResourceUser, nil) {
		return User{}, s.deny(ctx, actor, authz.AbilityView, id, meta)
	}
	return s.repo.GetUser(ctx, id)
}

// AssignableRoles lists the roles actor may hand out.
func (s *Service) AssignableRoles(actor *authz.Actor) []authz.Role {
	return s.engine.AssignableRoles(actor)
}

// Create registers a new account.
func (s *Service) Create(ctx context.Context, actor *authz.Actor, in CreateInput, meta shared.RequestMeta) (User, error) {
	role, ok := authz.ParseRole(in.Role)
	if !ok {
		return User{}, ErrRoleInvalid
	}
	if !s.engine.CanAbility(actor, authz.AbilityCreate, authz.ResourceUser, nil) || !s.engine.CanAssignRole(actor, role) {
		return User{}, s.deny(ctx, actor, authz.AbilityCreate, 0, meta)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	created, err := s.repo.CreateUser(ctx, User{
		Username:     normalizeUsername(in.Username),
		Email:        normalizeEmail(in.Email),
		Name:         normalizeName(in.Name),
		Role:         role,
		IsActive:     true,
		PasswordHash: string(hash),
	})
	if err != nil {
		return User{}, err
	}
	fields := s.actorFields(ctx, actor, meta)
	fields[auditlog.KeyAction] = auditlog.ActionUserCreated
	addTarget(fields, created)
	s.record(ctx, "User created", fields)
	return created, nil
}

// Update applies the non-nil fields of in to user id.
func (s *Service) Update(ctx context.Context, actor *authz.Actor, id int64, in UpdateInput, meta shared.RequestMeta) (User, error) {
	current, err := s.repo.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) && !s.engine.HasPermission(actor, authz.PermEditUsers) {
			return User{}, s.deny(ctx, actor, authz.AbilityUpdate, id, meta)
		}
		return User{}, err
	}
	if !s.engine.CanAbility(actor, authz.AbilityUpdate, authz.ResourceUser, current.Resource()) {
		return User{}, s.deny(ctx, actor, authz.AbilityUpdate, id, meta)
	}

	next := current
	if in.Role != nil {
		role, ok := authz.ParseRole(*in.Role)
		if !ok {
			return User{}, ErrRoleInvalid
		}
		if role != current.Role && !s.engine.CanAssignRole(actor, role) {
			return User{}, s.deny(ctx, actor, authz.AbilityUpdate, id, meta)
		}
		next.Role = role
	}
	if in.Email != nil {
		next.Email = normalizeEmail(*in.Email)
	}
	if in.Name != nil {
		next.Name = normalizeName(*in.Name)
	}
	if in.IsActive != nil {
		next.IsActive = *in.IsActive
	}
	passwordChanged := false
	if in.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
		if err != nil {
			return User{}, fmt.Errorf("users: hash password: %w", err)
		}
		next.PasswordHash = string(hash)
		passwordChanged = true
	}

	updated, err := s.repo.UpdateUser(ctx, next)
	if err != nil {
		return User{}, err
	}
	fields := s.actorFields(ctx, actor, meta)
	fields[auditlog.KeyAction] = auditlog.ActionUserUpdated
	addTarget(fields, updated)
	fields[auditlog.KeyOldEmail] = current.Email
	fields[auditlog.KeyOldName] = current.Name
	fields[auditlog.KeyOldRole] = current.Role.String()
	fields[auditlog.KeyPasswordChanged] = passwordChanged
	s.record(ctx, "User updated", fields)
	return updated, nil
}

// Delete removes user id.
func (s *Service) Delete(ctx context.Context, actor *authz.Actor, id int64, meta shared.RequestMeta) error {
	target, err := s.repo.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) && !s.engine.HasPermission(actor, authz.PermDeleteUsers) {
			return s.deny(ctx, actor, authz.AbilityDelete, id, meta)
		}
		return err
	}
	if !s.engine.CanAbility(actor, authz.AbilityDelete, authz.ResourceUser, target.Resource()) {
		return s.deny(ctx, actor, authz.AbilityDelete, id, meta)
	}
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	fields := s.actorFields(ctx, actor, meta)
	fields[auditlog.KeyAction] = auditlog.ActionUserDeleted
	addTarget(fields, target)
	s.record(ctx, "User deleted", fields)
	return nil
}

// deny records the rejected attempt and returns ErrForbidden. The event
// carries no action so the analyzer counts it as a failed attempt.
func (s *Service) deny(ctx context.Context, actor *authz.Actor, ability authz.Ability, targetID int64, meta shared.RequestMeta) error {
	fields := s.actorFields(ctx, actor, meta)
	fields["attempted_ability"] = ability.String()
	if targetID > 0 {
		fields[auditlog.KeyTargetUserID] = targetID
	}
	if s.audit != nil {
		if err := s.audit.Warning(ctx, unauthorizedMessage, fields); err != nil {
			s.logger.Warn("audit write failed", slog.Any("error", err))
		}
	}
	return httpx.ErrForbidden
}

func (s *Service) record(ctx context.Context, message string, fields auditlog.Context) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Info(ctx, message, fields); err != nil {
		s.logger.Warn("audit write failed", slog.String("action", fields.String(auditlog.KeyAction)), slog.Any("error", err))
	}
}

func (s *Service) actorFields(ctx context.Context, actor *authz.Actor, meta shared.RequestMeta) auditlog.Context {
	fields := auditlog.Context{
		auditlog.KeyIPAddress: meta.IPAddress,
		auditlog.KeyUserAgent: meta.UserAgent,
	}
	if actor == nil {
		return fields
	}
	fields[auditlog.KeyActorUserID] = actor.ID
	if u, err := s.repo.GetUser(ctx, actor.ID); err == nil {
		fields[auditlog.KeyActorUsername] = u.Username
	}
	return fields
}

func addTarget(fields auditlog.Context, u User) {
	fields[auditlog.KeyTargetUserID] = u.ID
	fields[auditlog.KeyTargetEmail] = u.Email
	fields[auditlog.KeyTargetName] = u.Name
	fields[auditlog.KeyTargetRole] = u.Role.String()
}
