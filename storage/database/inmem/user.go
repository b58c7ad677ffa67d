package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/schoolfin/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

// emailExists must be called with the lock held.
func (repo *userRepository) emailExists(email string, excludedIDs ...string) bool {
	for id, usr := range repo.db.users {
		if usr.Email == email && !isExcluded(id, excludedIDs) {
			return true
		}
	}
	return false
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.emailExists(usr.Email) {
		return user.User{}, user.ErrEmailExists
	}
	usr.ID = uuid.New().String()
	u := usr
	repo.db.users[usr.ID] = &u
	return usr, nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id string) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if usr, ok := repo.db.users[id]; ok {
		return *usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, usr := range repo.db.users {
		if usr.Email == email {
			return *usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	origUsr, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if repo.emailExists(usr.Email, usr.ID) {
		return user.User{}, user.ErrEmailExists
	}
	usr.CreatedAt = origUsr.CreatedAt
	*origUsr = usr
	return usr, nil
}
