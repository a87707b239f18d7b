package repository

import (
	"alcyxob/climb-sim/internal/domain"
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for the repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrDuplicate    = RepositoryError("duplicate key")
	ErrUpdateFailed = RepositoryError("update failed")
	// ErrWriteBoundaryViolation means code tried to write a table it was not granted.
	// It always indicates a defect and must never be retried.
	ErrWriteBoundaryViolation = RepositoryError("write outside allowed tables")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// Table names.
const (
	TableEpisodes         = "episodes"
	TableScenarioStates   = "scenario_states"
	TableEvents           = "events"
	TablePlannedWorkouts  = "planned_workouts"
	TableExecutedWorkouts = "executed_workouts"
	TableParameterSets    = "parameter_sets"
	TableUsers            = "users"
)

// SimulationTables is the write allow-list of the simulation core.
var SimulationTables = []string{
	TableEpisodes,
	TableScenarioStates,
	TableEvents,
	TablePlannedWorkouts,
	TableExecutedWorkouts,
}

// Reader reads single rows. out must be a pointer to a struct with bson tags.
type Reader interface {
	FindOne(ctx context.Context, table string, filter bson.M, out any) error
}

// Store is the persistence collaborator of the simulation core: read one row,
// insert a row, patch rows matching a filter. Insert returns ErrDuplicate when the
// row's _id already exists; FindOne and Update return ErrNotFound on no match.
type Store interface {
	Reader
	Insert(ctx context.Context, table string, doc any) error
	Update(ctx context.Context, table string, filter bson.M, patch bson.M) error
}

// UserRepository defines the interface for interacting with account data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
}
