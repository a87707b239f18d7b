package memory

import (
	"context"
	"testing"

	"alcyxob/climb-sim/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

type row struct {
	ID    string  `bson:"_id"`
	Step  int     `bson:"step"`
	Score float64 `bson:"score"`
}

func TestStore_InsertFindUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.Insert(ctx, "rows", row{ID: "a", Step: 1, Score: 0.5}))
	require.NoError(t, s.Insert(ctx, "rows", row{ID: "b", Step: 2, Score: 0.7}))
	assert.ErrorIs(t, s.Insert(ctx, "rows", row{ID: "a"}), repository.ErrDuplicate)

	var got row
	require.NoError(t, s.FindOne(ctx, "rows", bson.M{"step": 2}, &got))
	assert.Equal(t, row{ID: "b", Step: 2, Score: 0.7}, got)

	require.NoError(t, s.Update(ctx, "rows", bson.M{"_id": "b", "step": 2}, bson.M{"$set": bson.M{"step": 3}}))
	require.NoError(t, s.FindOne(ctx, "rows", bson.M{"_id": "b"}, &got))
	assert.Equal(t, 3, got.Step)

	assert.ErrorIs(t, s.Update(ctx, "rows", bson.M{"_id": "b", "step": 2}, bson.M{"$set": bson.M{"step": 4}}), repository.ErrNotFound)
	assert.ErrorIs(t, s.FindOne(ctx, "rows", bson.M{"step": 9}, &got), repository.ErrNotFound)
	assert.ErrorIs(t, s.FindOne(ctx, "missing", bson.M{}, &got), repository.ErrNotFound)
	assert.Equal(t, 2, s.Count("rows"))
}

func TestStore_RejectsNonSetPatch(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Insert(ctx, "rows", row{ID: "a"}))
	err := s.Update(ctx, "rows", bson.M{"_id": "a"}, bson.M{"$inc": bson.M{"step": 1}})
	assert.ErrorIs(t, err, repository.ErrUpdateFailed)
}

func TestGuardedStore_WriteBoundary(t *testing.T) {
	ctx := context.Background()
	inner := NewStore()
	g := repository.NewSimulationStore(inner)

	require.NoError(t, g.Insert(ctx, repository.TableEpisodes, row{ID: "e1"}))
	assert.ErrorIs(t, g.Insert(ctx, repository.TableUsers, row{ID: "u1"}), repository.ErrWriteBoundaryViolation)
	assert.ErrorIs(t, g.Insert(ctx, repository.TableParameterSets, row{ID: "p1"}), repository.ErrWriteBoundaryViolation)
	assert.ErrorIs(t, g.Update(ctx, repository.TableUsers, bson.M{"_id": "u1"}, bson.M{"$set": bson.M{"x": 1}}), repository.ErrWriteBoundaryViolation)
	assert.Zero(t, inner.Count(repository.TableUsers))

	var got row
	require.NoError(t, inner.Insert(ctx, repository.TableParameterSets, row{ID: "p1"}))
	assert.NoError(t, g.FindOne(ctx, repository.TableParameterSets, bson.M{"_id": "p1"}, &got))
	assert.True(t, g.Allows(repository.TableScenarioStates))
	assert.False(t, g.Allows(repository.TableUsers))
}
