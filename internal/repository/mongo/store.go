package mongo

import (
	"alcyxob/climb-sim/internal/repository"
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoStore implements repository.Store on top of one database; tables are collections.
type mongoStore struct {
	db *mongo.Database
}

// NewMongoStore creates the simulation persistence collaborator.
func NewMongoStore(db *mongo.Database) repository.Store {
	return &mongoStore{db: db}
}

// FindOne decodes the first document matching filter into out.
func (s *mongoStore) FindOne(ctx context.Context, table string, filter bson.M, out any) error {
	err := s.db.Collection(table).FindOne(ctx, filter).Decode(out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return repository.ErrNotFound
		}
		return err
	}
	return nil
}

// Insert writes one document. A clash on _id or on a unique index is ErrDuplicate.
func (s *mongoStore) Insert(ctx context.Context, table string, doc any) error {
	_, err := s.db.Collection(table).InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	return nil
}

// Update applies patch to the first document matching filter.
func (s *mongoStore) Update(ctx context.Context, table string, filter bson.M, patch bson.M) error {
	result, err := s.db.Collection(table).UpdateOne(ctx, filter, patch)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureSimulationIndexes creates the indexes backing the one-row-per-(episode, step) invariants.
func EnsureSimulationIndexes(ctx context.Context, db *mongo.Database) error {
	byEpisodeStep := bson.D{{Key: "episodeId", Value: 1}, {Key: "step", Value: 1}}
	specs := map[string][]mongo.IndexModel{
		repository.TableEpisodes: {
			{Keys: bson.D{{Key: "coachId", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index()},
		},
		repository.TableScenarioStates: {
			{Keys: byEpisodeStep, Options: options.Index().SetUnique(true)},
		},
		repository.TablePlannedWorkouts: {
			{Keys: byEpisodeStep, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "actionId", Value: 1}}, Options: options.Index()},
		},
		repository.TableExecutedWorkouts: {
			{Keys: byEpisodeStep, Options: options.Index().SetUnique(true)},
		},
		repository.TableEvents: {
			{Keys: bson.D{{Key: "episodeId", Value: 1}, {Key: "startStep", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
	for table, models := range specs {
		if _, err := db.Collection(table).Indexes().CreateMany(ctx, models); err != nil {
			return err
		}
	}
	return nil
}
