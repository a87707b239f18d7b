package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"alcyxob/climb-sim/internal/adherence"
	"alcyxob/climb-sim/internal/domain"
	"alcyxob/climb-sim/internal/dose"
	"alcyxob/climb-sim/internal/events"
	"alcyxob/climb-sim/internal/identity"
	"alcyxob/climb-sim/internal/params"
	"alcyxob/climb-sim/internal/repository"
	"alcyxob/climb-sim/internal/schema"
	"alcyxob/climb-sim/internal/sim"
	"alcyxob/climb-sim/internal/traits"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// --- Error Definitions ---
var (
	ErrEpisodeNotFound        = errors.New("episode not found")
	ErrEpisodeCompleted       = errors.New("episode is completed")
	ErrMissingRecommendation  = errors.New("no planned workout recorded for the current step")
	ErrRecommendationConflict = errors.New("a different planned workout is already recorded for this step")
	ErrStepOutOfRange         = errors.New("step out of range")
	ErrStaleEpisode           = errors.New("episode was advanced concurrently")
	ErrStateMissing           = errors.New("scenario state missing for current step")
	ErrInvalidEpisodeOptions  = errors.New("invalid episode options")
)

// stableCompletion is the completion at or above which a step extends the stable streak.
const stableCompletion = 0.8

// StartOptions configure a new episode. Zero values take the service defaults;
// a nil Seed draws a fresh one.
type StartOptions struct {
	Seed            *int64
	MaxSteps        int
	ParameterSetRef string
}

// AdvanceResult is the outcome of one step.
type AdvanceResult struct {
	Episode  *domain.Episode
	State    *domain.ScenarioState
	Executed *domain.ExecutedWorkoutRecord
	Started  *domain.Event
	Ended    *domain.Event
}

// EpisodeConfig holds engine defaults.
type EpisodeConfig struct {
	MaxSteps        int
	ParameterSetRef string
	HiThreshold     float64
	PhaseLength     int
}

// --- Service Interface ---
type EpisodeService interface {
	StartEpisode(ctx context.Context, coachID primitive.ObjectID, opts StartOptions) (*domain.Episode, *domain.ScenarioState, error)
	GetEpisode(ctx context.Context, episodeID primitive.ObjectID) (*domain.Episode, error)
	GetState(ctx context.Context, episodeID primitive.ObjectID, step int) (*domain.ScenarioState, error)
	ListStates(ctx context.Context, episodeID primitive.ObjectID) ([]domain.ScenarioState, error)
	RecordPlannedWorkout(ctx context.Context, episodeID primitive.ObjectID, step int, raw []byte) (*domain.PlannedWorkoutRecord, error)
	GetPlannedWorkout(ctx context.Context, episodeID primitive.ObjectID, step int) (*domain.PlannedWorkoutRecord, error)
	GetExecutedWorkout(ctx context.Context, episodeID primitive.ObjectID, step int) (*domain.ExecutedWorkoutRecord, error)
	AdvanceEpisode(ctx context.Context, episodeID primitive.ObjectID) (*AdvanceResult, error)
}

// --- Service Implementation ---

// episodeService implements EpisodeService. It holds no per-episode state: the
// generator travels inside each ScenarioState.
type episodeService struct {
	store  repository.Store
	loader *params.Loader
	cfg    EpisodeConfig
	log    *zap.Logger
	now    func() time.Time
}

// NewEpisodeService wires the engine. store should be the guarded simulation handle;
// loader may read from any store.
func NewEpisodeService(store repository.Store, loader *params.Loader, cfg EpisodeConfig, log *zap.Logger) EpisodeService {
	return newEpisodeService(store, loader, cfg, log, time.Now)
}

func newEpisodeService(store repository.Store, loader *params.Loader, cfg EpisodeConfig, log *zap.Logger, now func() time.Time) *episodeService {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 24
	}
	if cfg.HiThreshold <= 0 {
		cfg.HiThreshold = dose.DefaultHiThreshold
	}
	if cfg.PhaseLength <= 0 {
		cfg.PhaseLength = 3
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &episodeService{store: store, loader: loader, cfg: cfg, log: log, now: now}
}

func (s *episodeService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// StartEpisode draws a persona and writes the episode with its step-1 state.
func (s *episodeService) StartEpisode(ctx context.Context, coachID primitive.ObjectID, opts StartOptions) (*domain.Episode, *domain.ScenarioState, error) {
	// 1. Resolve options
	if coachID.IsZero() {
		return nil, nil, fmt.Errorf("%w: coach id is required", ErrInvalidEpisodeOptions)
	}
	maxSteps := opts.MaxSteps
	if maxSteps == 0 {
		maxSteps = s.cfg.MaxSteps
	}
	if maxSteps < 1 {
		return nil, nil, fmt.Errorf("%w: max steps must be positive", ErrInvalidEpisodeOptions)
	}
	ref := opts.ParameterSetRef
	if ref == "" {
		ref = s.cfg.ParameterSetRef
	}
	var seed int64
	if opts.Seed != nil {
		seed = *opts.Seed
	} else {
		seed = rand.Int64()
	}

	// 2. The parameter set must exist before anything is written
	set, err := s.loader.Load(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	eventParams := events.ParamsFrom(set)

	// 3. Draw the persona
	now := s.timestamp()
	episode := &domain.Episode{
		ID:              primitive.NewObjectID(),
		CoachID:         coachID,
		PersonaID:       personaID(seed),
		Seed:            seed,
		EngineVersion:   domain.EngineVersion,
		ParameterSetRef: ref,
		MaxStep:         maxSteps,
		CurrentStep:     1,
		Status:          domain.EpisodeActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if episode.CurrentStep >= episode.MaxStep {
		episode.Status = domain.EpisodeCompleted
	}
	epID := episode.ID.Hex()

	r := sim.NewRand(uint64(seed))
	baseline, ceilings, latent, readiness, constraints := newPersona(r)
	state := &domain.ScenarioState{
		ID:          stateID(epID, 1),
		EpisodeID:   epID,
		Step:        1,
		PersonaID:   episode.PersonaID,
		Baseline:    baseline,
		Ceilings:    ceilings,
		Latent:      latent,
		Uncertainty: initialUncertainty(),
		Readiness:   readiness,
		Constraints: constraints,
		Phase:       domain.PhaseAt(1, s.cfg.PhaseLength),
		Cooldowns:   events.InitialCooldowns(),
		Budgets:     eventParams.InitialBudgets(),
		RNGState:    r.State(),
		CreatedAt:   now,
	}

	// 4. Persist: the state first, so a visible episode always has its first state
	if err := s.store.Insert(ctx, repository.TableScenarioStates, state); err != nil {
		return nil, nil, s.writeFailed("insert initial state", epID, err)
	}
	if err := s.store.Insert(ctx, repository.TableEpisodes, episode); err != nil {
		return nil, nil, s.writeFailed("insert episode", epID, err)
	}

	s.log.Info("episode started",
		zap.String("episode_id", epID),
		zap.String("coach_id", coachID.Hex()),
		zap.Int64("seed", seed),
		zap.String("parameter_set", ref),
		zap.Int("max_step", maxSteps))
	return episode, state, nil
}

// GetEpisode loads an episode by id.
func (s *episodeService) GetEpisode(ctx context.Context, episodeID primitive.ObjectID) (*domain.Episode, error) {
	var episode domain.Episode
	err := s.store.FindOne(ctx, repository.TableEpisodes, bson.M{"_id": episodeID}, &episode)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEpisodeNotFound
		}
		return nil, fmt.Errorf("load episode: %w", err)
	}
	return &episode, nil
}

// GetState is a pure read of a step that has already been reached.
func (s *episodeService) GetState(ctx context.Context, episodeID primitive.ObjectID, step int) (*domain.ScenarioState, error) {
	episode, err := s.GetEpisode(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	if step < 1 || step > episode.CurrentStep {
		return nil, fmt.Errorf("%w: step %d, current %d", ErrStepOutOfRange, step, episode.CurrentStep)
	}
	return s.loadState(ctx, episode.ID.Hex(), step)
}

// ListStates returns the trajectory from step 1 to the current step.
func (s *episodeService) ListStates(ctx context.Context, episodeID primitive.ObjectID) ([]domain.ScenarioState, error) {
	episode, err := s.GetEpisode(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	states := make([]domain.ScenarioState, 0, episode.CurrentStep)
	for step := 1; step <= episode.CurrentStep; step++ {
		st, err := s.loadState(ctx, episode.ID.Hex(), step)
		if err != nil {
			return nil, err
		}
		states = append(states, *st)
	}
	return states, nil
}

func (s *episodeService) loadState(ctx context.Context, epID string, step int) (*domain.ScenarioState, error) {
	var state domain.ScenarioState
	err := s.store.FindOne(ctx, repository.TableScenarioStates, bson.M{"episodeId": epID, "step": step}, &state)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: episode %s step %d", ErrStateMissing, epID, step)
		}
		return nil, fmt.Errorf("load state: %w", err)
	}
	return &state, nil
}

// RecordPlannedWorkout validates, hashes and stores the plan for the current step.
// Recording the same plan twice returns the stored record; a different plan is a conflict.
func (s *episodeService) RecordPlannedWorkout(ctx context.Context, episodeID primitive.ObjectID, step int, raw []byte) (*domain.PlannedWorkoutRecord, error) {
	// 1. The episode must be waiting on this step
	episode, err := s.GetEpisode(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	if episode.IsCompleted() {
		return nil, ErrEpisodeCompleted
	}
	if step != episode.CurrentStep {
		return nil, fmt.Errorf("%w: plans are recorded for step %d, got %d", ErrStepOutOfRange, episode.CurrentStep, step)
	}

	// 2. Validate before hashing or featurizing
	doc, err := schema.DecodePlanned(raw)
	if err != nil {
		return nil, err
	}

	// 3. Identity of the decoded plan, so null and absent fields hash alike
	actionID, err := identity.Of(doc)
	if err != nil {
		return nil, fmt.Errorf("compute action id: %w", err)
	}
	epID := episode.ID.Hex()
	record := &domain.PlannedWorkoutRecord{
		ID:        plannedID(epID, step),
		EpisodeID: epID,
		Step:      step,
		ActionID:  actionID,
		Document:  *doc,
		Features:  dose.FromPlanned(doc, s.cfg.HiThreshold),
		CreatedAt: s.timestamp(),
	}

	// 4. Write once
	err = s.store.Insert(ctx, repository.TablePlannedWorkouts, record)
	if err == nil {
		s.log.Info("planned workout recorded",
			zap.String("episode_id", epID),
			zap.Int("step", step),
			zap.String("action_id", record.ActionID))
		return record, nil
	}
	if !errors.Is(err, repository.ErrDuplicate) {
		return nil, s.writeFailed("insert planned workout", epID, err)
	}
	existing, err := s.GetPlannedWorkout(ctx, episodeID, step)
	if err != nil {
		return nil, err
	}
	if existing.ActionID != record.ActionID {
		return nil, ErrRecommendationConflict
	}
	return existing, nil
}

// GetPlannedWorkout loads the plan recorded for a step.
func (s *episodeService) GetPlannedWorkout(ctx context.Context, episodeID primitive.ObjectID, step int) (*domain.PlannedWorkoutRecord, error) {
	var record domain.PlannedWorkoutRecord
	err := s.store.FindOne(ctx, repository.TablePlannedWorkouts, bson.M{"_id": plannedID(episodeID.Hex(), step)}, &record)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMissingRecommendation
		}
		return nil, fmt.Errorf("load planned workout: %w", err)
	}
	return &record, nil
}

// GetExecutedWorkout loads the simulated execution of a step.
func (s *episodeService) GetExecutedWorkout(ctx context.Context, episodeID primitive.ObjectID, step int) (*domain.ExecutedWorkoutRecord, error) {
	var record domain.ExecutedWorkoutRecord
	err := s.store.FindOne(ctx, repository.TableExecutedWorkouts, bson.M{"_id": executedID(episodeID.Hex(), step)}, &record)
	if err != nil {
		return nil, fmt.Errorf("load executed workout: %w", err)
	}
	return &record, nil
}

// AdvanceEpisode runs one simulation step from the current state. Given the same
// prior state it always produces the same rows, so a failed call can be retried.
func (s *episodeService) AdvanceEpisode(ctx context.Context, episodeID primitive.ObjectID) (*AdvanceResult, error) {
	// 1. Load episode, current state, plan and parameters
	episode, err := s.GetEpisode(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	if episode.IsCompleted() {
		return nil, ErrEpisodeCompleted
	}
	epID := episode.ID.Hex()
	t := episode.CurrentStep

	state, err := s.loadState(ctx, epID, t)
	if err != nil {
		return nil, err
	}
	planned, err := s.GetPlannedWorkout(ctx, episodeID, t)
	if err != nil {
		return nil, err
	}
	set, err := s.loader.Load(ctx, episode.ParameterSetRef)
	if err != nil {
		return nil, err
	}
	r, err := sim.Restore(state.RNGState)
	if err != nil {
		return nil, fmt.Errorf("episode %s step %d: %w", epID, t, err)
	}

	// 2. Adherence, then dose on both documents
	exec, err := adherence.Run(&planned.Document, planned.ActionID, adherence.ViewOf(state), adherence.ParamsFrom(set), r)
	if err != nil {
		return nil, err
	}
	plannedFeatures := dose.FromPlanned(&planned.Document, s.cfg.HiThreshold)
	execFeatures := dose.FromExecuted(exec.Executed, s.cfg.HiThreshold)

	// 3. Traits and readiness
	traitParams := traits.ParamsFrom(set)
	evolved := traits.Update(state.Latent, state.Ceilings, state.Readiness.Fatigue, execFeatures, traitParams, r)
	readiness := traits.EvolveReadiness(domain.Readiness{
		Fatigue:      evolved.Fatigue,
		SleepQuality: state.Readiness.SleepQuality,
		Motivation:   state.Readiness.Motivation,
	}, exec.Completion, traitParams, r)

	streak := 0
	if exec.Completion >= stableCompletion && !state.ActiveEvent.ActiveAt(t) {
		streak = state.StableStreak + 1
	}

	// 4. Events for the step being entered
	outcome := events.Step(events.Input{
		EpisodeID:           epID,
		Step:                t + 1,
		Fatigue:             readiness.Fatigue,
		SleepQuality:        readiness.SleepQuality,
		InjuryRisk:          evolved.Latent[domain.DimInjuryRisk],
		ScheduleConsistency: state.Constraints.ScheduleConsistency,
		StableStreak:        streak,
		Active:              state.ActiveEvent,
		Cooldowns:           state.Cooldowns,
		GlobalCooldown:      state.GlobalCooldown,
		Budgets:             state.Budgets,
	}, events.ParamsFrom(set), r)

	// 5. Assemble step t+1
	now := s.timestamp()
	completion := exec.Completion
	next := &domain.ScenarioState{
		ID:             stateID(epID, t+1),
		EpisodeID:      epID,
		Step:           t + 1,
		PersonaID:      state.PersonaID,
		Baseline:       state.Baseline,
		Ceilings:       state.Ceilings.Clone(),
		Latent:         evolved.Latent,
		Uncertainty:    traits.Observe(state.Uncertainty, traitParams),
		Readiness:      readiness,
		Constraints:    state.Constraints.Clone(),
		Phase:          domain.PhaseAt(t+1, s.cfg.PhaseLength),
		ActiveEvent:    outcome.Active,
		Cooldowns:      outcome.Cooldowns,
		GlobalCooldown: outcome.GlobalCooldown,
		Budgets:        outcome.Budgets,
		StableStreak:   streak,
		LastCompletion: &completion,
		RNGState:       r.State(),
		PreviousID:     state.ID,
		CreatedAt:      now,
	}
	executed := &domain.ExecutedWorkoutRecord{
		ID:        executedID(epID, t),
		EpisodeID: epID,
		Step:      t,
		ActionID:  planned.ActionID,
		Document:  *exec.Executed,
		Features:  execFeatures,
		CreatedAt: now,
	}

	// 6. Write rows, then move the counter. A retry reproduces identical ids.
	if err := s.insertOnce(ctx, repository.TableExecutedWorkouts, executed); err != nil {
		return nil, s.writeFailed("insert executed workout", epID, err)
	}
	if outcome.Started != nil {
		if err := s.insertOnce(ctx, repository.TableEvents, outcome.Started); err != nil {
			return nil, s.writeFailed("insert event", epID, err)
		}
	}
	if err := s.insertOnce(ctx, repository.TableScenarioStates, next); err != nil {
		return nil, s.writeFailed("insert state", epID, err)
	}

	status := domain.EpisodeActive
	if t+1 >= episode.MaxStep {
		status = domain.EpisodeCompleted
	}
	err = s.store.Update(ctx, repository.TableEpisodes,
		bson.M{"_id": episode.ID, "currentStep": t},
		bson.M{"$set": bson.M{"currentStep": t + 1, "status": status, "updatedAt": now}})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrStaleEpisode
		}
		return nil, s.writeFailed("advance episode counter", epID, err)
	}
	episode.CurrentStep = t + 1
	episode.Status = status
	episode.UpdatedAt = now

	fields := []zap.Field{
		zap.String("episode_id", epID),
		zap.Int("step", t+1),
		zap.Float64("completion", completion),
		zap.Float64("planned_volume", plannedFeatures.VolumeScore),
		zap.Float64("executed_volume", execFeatures.VolumeScore),
		zap.Float64("hazard", outcome.Hazard),
	}
	if ev := outcome.Started; ev != nil {
		fields = append(fields, zap.String("family", string(ev.Family)), zap.String("severity", string(ev.Severity)))
	}
	s.log.Info("episode advanced", fields...)

	return &AdvanceResult{
		Episode:  episode,
		State:    next,
		Executed: executed,
		Started:  outcome.Started,
		Ended:    outcome.Ended,
	}, nil
}

// insertOnce treats a duplicate id as the write having already happened.
func (s *episodeService) insertOnce(ctx context.Context, table string, doc any) error {
	err := s.store.Insert(ctx, table, doc)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil
	}
	return err
}

// writeFailed wraps a store error. Boundary violations are defects and logged loudly.
func (s *episodeService) writeFailed(op, epID string, err error) error {
	if errors.Is(err, repository.ErrWriteBoundaryViolation) {
		s.log.Error("write boundary violation", zap.String("op", op), zap.String("episode_id", epID), zap.Error(err))
	}
	return fmt.Errorf("%s: %w", op, err)
}
