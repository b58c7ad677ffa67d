package user

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/schoolfin/core"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError(errors.New("User not found"))
	ErrEmailExists        = core.NewConflictError(errors.New("A user with this email already exists"))
	ErrInvalidCredentials = core.NewValidationError(errors.New("Invalid credentials"))
	ErrAccountDeactivated = errors.New("Account deactivated")

	nowFunc = time.Now // mockable
)

type (
	// Repository persists Users. Implementations must return ErrNotFound when no User matches
	// and ErrEmailExists when a write breaks the email uniqueness.
	Repository interface {
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

// Authenticate checks the credentials of an active User and records the login.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if core.IsNotFound(err) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}

	usr.LastLogin.SetValid(nowFunc().UTC())
	if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return User{}, errors.Wrap(err, "setting lastLogin")
	}
	return usr, nil
}

// Save creates the User, or updates the name, role & password of the User with the same email.
// The saved User is active. nu must have been validated.
func (svc *Service) Save(ctx context.Context, nu NewUser) (User, error) {
	now := nowFunc().UTC()
	usr, err := svc.repo.GetUserByEmail(ctx, nu.Email)
	creating := core.IsNotFound(err)
	if err != nil && !creating {
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if creating {
		usr = User{Email: nu.Email, CreatedAt: now}
	}

	usr.Name = nu.Name
	usr.Role = nu.Role
	usr.IsActive = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}

	if creating {
		return svc.repo.CreateUser(ctx, usr)
	}
	return svc.repo.UpdateUser(ctx, usr)
}
