package service

import (
	"fmt"

	"github.com/google/uuid"
)

// Row ids are derived from (episode, step) so that a retried write collides with
// the row it already produced instead of creating a second one.
var (
	stateNamespace    = uuid.MustParse("4a0f7a4e-91c2-4b7e-8f0d-2d6a3c1e5b90")
	plannedNamespace  = uuid.MustParse("9c3e2b71-0d4f-4f6a-b8e5-71a2c9d0e3f4")
	executedNamespace = uuid.MustParse("d2b85c16-7e93-4a0b-9f41-6c8e0a3b5d27")
)

func rowID(ns uuid.UUID, episodeID string, step int) string {
	return uuid.NewSHA1(ns, []byte(fmt.Sprintf("%s/%d", episodeID, step))).String()
}

func stateID(episodeID string, step int) string {
	return rowID(stateNamespace, episodeID, step)
}

func plannedID(episodeID string, step int) string {
	return rowID(plannedNamespace, episodeID, step)
}

func executedID(episodeID string, step int) string {
	return rowID(executedNamespace, episodeID, step)
}
