// internal/api/episode_handler.go
package api

import (
	"alcyxob/climb-sim/internal/domain"
	"alcyxob/climb-sim/internal/service"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type EpisodeHandler struct {
	episodeService service.EpisodeService
	exportService  service.ExportService
}

func NewEpisodeHandler(episodeService service.EpisodeService, exportService service.ExportService) *EpisodeHandler {
	return &EpisodeHandler{
		episodeService: episodeService,
		exportService:  exportService,
	}
}

// --- DTOs ---

type StartEpisodeRequest struct {
	Seed         *int64 `json:"seed"`
	MaxSteps     int    `json:"maxSteps" binding:"omitempty,min=1,max=520"`
	ParameterSet string `json:"parameterSet"`
}

// StateResponse pairs the stored state with the view a coach plans against:
// readiness and constraints with the active event applied.
type StateResponse struct {
	State     *domain.ScenarioState `json:"state"`
	Effective EffectiveView         `json:"effective"`
}

type EffectiveView struct {
	Readiness        domain.Readiness   `json:"readiness"`
	Constraints      domain.Constraints `json:"constraints"`
	IntensityCeiling *float64           `json:"intensityCeiling,omitempty"`
}

type StartEpisodeResponse struct {
	Episode *domain.Episode `json:"episode"`
	StateResponse
}

type AdvanceResponse struct {
	Episode  *domain.Episode               `json:"episode"`
	Executed *domain.ExecutedWorkoutRecord `json:"executed"`
	Started  *domain.Event                 `json:"startedEvent,omitempty"`
	Ended    *domain.Event                 `json:"endedEvent,omitempty"`
	StateResponse
}

func newStateResponse(st *domain.ScenarioState) StateResponse {
	r, c := st.Effective()
	return StateResponse{
		State: st,
		Effective: EffectiveView{
			Readiness:        r,
			Constraints:      c,
			IntensityCeiling: st.IntensityCeiling(),
		},
	}
}

// --- Handler Methods ---

// StartEpisode godoc
// @Summary Start a simulated episode
// @Tags Episodes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param episode body StartEpisodeRequest false "Seed, length and parameter set"
// @Success 201 {object} StartEpisodeResponse
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 424 {object} gin.H "Parameter set not found"
// @Router /episodes [post]
func (h *EpisodeHandler) StartEpisode(c *gin.Context) {
	var req StartEpisodeRequest
	// An empty body starts an episode with the defaults.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	coachID, err := getUserObjectID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify coach from token.")
		return
	}

	episode, state, err := h.episodeService.StartEpisode(c.Request.Context(), coachID, service.StartOptions{
		Seed:            req.Seed,
		MaxSteps:        req.MaxSteps,
		ParameterSetRef: req.ParameterSet,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, StartEpisodeResponse{Episode: episode, StateResponse: newStateResponse(state)})
}

// GetEpisode godoc
// @Summary Get an episode
// @Tags Episodes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Episode ID"
// @Success 200 {object} domain.Episode
// @Failure 403 {object} gin.H "Not the owning coach"
// @Failure 404 {object} gin.H "Episode not found"
// @Router /episodes/{id} [get]
func (h *EpisodeHandler) GetEpisode(c *gin.Context) {
	episode, ok := h.authorizedEpisode(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, episode)
}

// GetState godoc
// @Summary Get the scenario state of a reached step
// @Tags Episodes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Episode ID"
// @Param step path int true "Step (1-based)"
// @Success 200 {object} StateResponse
// @Failure 404 {object} gin.H "Episode not found or step not reached"
// @Router /episodes/{id}/states/{step} [get]
func (h *EpisodeHandler) GetState(c *gin.Context) {
	episode, ok := h.authorizedEpisode(c)
	if !ok {
		return
	}
	step, ok := stepParam(c)
	if !ok {
		return
	}

	state, err := h.episodeService.GetState(c.Request.Context(), episode.ID, step)
	if err != nil {
		if errors.Is(err, service.ErrStepOutOfRange) {
			abortWithError(c, http.StatusNotFound, err.Error())
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newStateResponse(state))
}

// ListStates godoc
// @Summary Get the trajectory of an episode
// @Tags Episodes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Episode ID"
// @Success 200 {array} domain.ScenarioState
// @Router /episodes/{id}/states [get]
func (h *EpisodeHandler) ListStates(c *gin.Context) {
	episode, ok := h.authorizedEpisode(c)
	if !ok {
		return
	}
	states, err := h.episodeService.ListStates(c.Request.Context(), episode.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, states)
}

// RecordPlannedWorkout godoc
// @Summary Record the planned workout for the current step
// @Description The body is the planned workout document itself. Re-posting the same
// @Description plan returns the stored record; a different plan for the step is a conflict.
// @Tags Episodes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Episode ID"
// @Param step path int true "Current step"
// @Param plan body domain.PlannedWorkout true "Planned workout"
// @Success 201 {object} domain.PlannedWorkoutRecord
// @Failure 409 {object} gin.H "Not the current step, or a different plan is recorded"
// @Failure 422 {object} gin.H "Schema violation with per-field errors"
// @Router /episodes/{id}/steps/{step}/plan [post]
func (h *EpisodeHandler) RecordPlannedWorkout(c *gin.Context) {
	episode, ok := h.authorizedEpisode(c)
	if !ok {
		return
	}
	step, ok := stepParam(c)
	if !ok {
		return
	}
	raw, err := c.GetRawData()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Unable to read request body")
		return
	}

	record, err := h.episodeService.RecordPlannedWorkout(c.Request.Context(), episode.ID, step, raw)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

// GetPlannedWorkout godoc
// @Summary Get the planned workout of a step
// @Tags Episodes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Episode ID"
// @Param step path int true "Step"
// @Success 200 {object} domain.PlannedWorkoutRecord
// @Failure 404 {object} gin.H "No plan recorded"
// @Router /episodes/{id}/steps/{step}/plan [get]
func (h *EpisodeHandler) GetPlannedWorkout(c *gin.Context) {
	episode, ok := h.authorizedEpisode(c)
	if !ok {
		return
	}
	step, ok := stepParam(c)
	if !ok {
		return
	}
	record, err := h.episodeService.GetPlannedWorkout(c.Request.Context(), episode.ID, step)
	if err != nil {
		if errors.Is(err, service.ErrMissingRecommendation) {
			abortWithError(c, http.StatusNotFound, err.Error())
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// AdvanceEpisode godoc
// @Summary Simulate the current step and move to the next
// @Tags Episodes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Episode ID"
// @Success 200 {object} AdvanceResponse
// @Failure 409 {object} gin.H "No plan recorded, episode completed, or advanced concurrently"
// @Failure 424 {object} gin.H "Parameter set not found"
// @Router /episodes/{id}/advance [post]
func (h *EpisodeHandler) AdvanceEpisode(c *gin.Context) {
	episode, ok := h.authorizedEpisode(c)
	if !ok {
		return
	}
	res, err := h.episodeService.AdvanceEpisode(c.Request.Context(), episode.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, AdvanceResponse{
		Episode:       res.Episode,
		Executed:      res.Executed,
		Started:       res.Started,
		Ended:         res.Ended,
		StateResponse: newStateResponse(res.State),
	})
}

// ExportEpisode godoc
// @Summary Export the trajectory as JSON Lines
// @Description Stores the trajectory in object storage and returns a presigned download URL.
// @Tags Episodes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Episode ID"
// @Success 200 {object} service.ExportResult
// @Router /episodes/{id}/export [post]
func (h *EpisodeHandler) ExportEpisode(c *gin.Context) {
	if h.exportService == nil {
		abortWithError(c, http.StatusServiceUnavailable, "Export storage is not configured")
		return
	}
	episode, ok := h.authorizedEpisode(c)
	if !ok {
		return
	}
	result, err := h.exportService.ExportEpisode(c.Request.Context(), episode.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// authorizedEpisode loads the :id episode. Coaches only see their own episodes;
// reviewers see all. On failure the response has been written.
func (h *EpisodeHandler) authorizedEpisode(c *gin.Context) (*domain.Episode, bool) {
	episodeID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid episode ID format")
		return nil, false
	}
	userID, err := getUserObjectID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return nil, false
	}
	role, err := getUserRoleFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify role from token.")
		return nil, false
	}

	episode, err := h.episodeService.GetEpisode(c.Request.Context(), episodeID)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if role == domain.RoleCoach && episode.CoachID != userID {
		abortWithError(c, http.StatusForbidden, "Access denied: episode belongs to another coach")
		return nil, false
	}
	return episode, true
}

func stepParam(c *gin.Context) (int, bool) {
	step, err := strconv.Atoi(c.Param("step"))
	if err != nil || step < 1 {
		abortWithError(c, http.StatusBadRequest, "Step must be a positive integer")
		return 0, false
	}
	return step, true
}
