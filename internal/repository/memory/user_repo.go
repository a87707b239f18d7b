package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"alcyxob/climb-sim/internal/domain"
	"alcyxob/climb-sim/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// userRepository implements repository.UserRepository on a Store.
type userRepository struct {
	mu    sync.Mutex
	store *Store
}

// NewUserRepository keeps accounts in the users table of store.
func NewUserRepository(store *Store) repository.UserRepository {
	return &userRepository{store: store}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error) {
	if user.Email == "" || user.PasswordHash == "" || user.Role == "" {
		return primitive.NilObjectID, errors.New("user email, password hash, and role are required")
	}
	// Email uniqueness needs check-then-insert to be atomic.
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.GetByEmail(ctx, user.Email); err == nil {
		return primitive.NilObjectID, repository.ErrDuplicate
	} else if !errors.Is(err, repository.ErrNotFound) {
		return primitive.NilObjectID, err
	}

	user.ID = primitive.NewObjectID()
	now := time.Now().UTC().Truncate(time.Millisecond)
	user.CreatedAt = now
	user.UpdatedAt = now
	if err := r.store.Insert(ctx, repository.TableUsers, user); err != nil {
		return primitive.NilObjectID, err
	}
	return user.ID, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	if err := r.store.FindOne(ctx, repository.TableUsers, bson.M{"email": email}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	var user domain.User
	if err := r.store.FindOne(ctx, repository.TableUsers, bson.M{"_id": id}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
