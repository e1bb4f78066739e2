// Package engine is the external interface of the scheduler. It owns the
// committed matrix for one residency program and serializes every write
// through a single resolve path; reads run concurrently against the last
// committed snapshot.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/medrota/rotaplan/core/audit"
	"github.com/medrota/rotaplan/core/events"
	"github.com/medrota/rotaplan/core/leave"
	"github.com/medrota/rotaplan/core/logger"
	coremetrics "github.com/medrota/rotaplan/core/metrics"
	"github.com/medrota/rotaplan/core/model"
	"github.com/medrota/rotaplan/core/rules"
	"github.com/medrota/rotaplan/core/schedule"
	"github.com/medrota/rotaplan/core/solver"
	"github.com/medrota/rotaplan/core/validate"
	"github.com/medrota/rotaplan/internal/eventbus"
)

// ErrJustificationRequired rejects overrides without a written reason.
var ErrJustificationRequired = errors.New("override requires a justification")

// Buses groups the engine's outbound event streams.
type Buses struct {
	Resolves  *eventbus.Bus[events.ResolveEvent]
	Moves     *eventbus.Bus[events.MoveEvent]
	Overrides *eventbus.Bus[events.OverrideEvent]
}

// NewBuses allocates the three engine buses.
func NewBuses() Buses {
	return Buses{
		Resolves:  eventbus.New[events.ResolveEvent](),
		Moves:     eventbus.New[events.MoveEvent](),
		Overrides: eventbus.New[events.OverrideEvent](),
	}
}

// Close closes every bus.
func (b Buses) Close() {
	b.Resolves.Close()
	b.Moves.Close()
	b.Overrides.Close()
}

// Options configures an Engine. Zero values fall back to a no-op logger,
// an in-memory audit store, a no-op metrics sink and the solver default
// budget.
type Options struct {
	Logger logger.Logger
	Audit  audit.Store
	Sink   coremetrics.MetricsSink
	Budget time.Duration
}

// Engine owns the committed schedule state of one program.
type Engine struct {
	// resolveMu serializes writers; mu guards the committed snapshot.
	resolveMu sync.Mutex
	mu        sync.RWMutex
	state     *schedule.State

	catalog *rules.Catalog
	solver  *solver.Solver
	store   audit.Store
	sink    coremetrics.MetricsSink
	log     logger.Logger
	budget  time.Duration
	buses   Buses
}

// New builds an engine over the given rule catalog and initial state.
func New(catalog *rules.Catalog, initial *schedule.State, opts Options) (*Engine, error) {
	if catalog == nil {
		return nil, errors.New("engine: nil catalog")
	}
	if initial == nil {
		return nil, errors.New("engine: nil initial state")
	}
	log := opts.Logger
	if log == nil {
		log = logger.NopLogger{}
	}
	store := opts.Audit
	if store == nil {
		store = audit.NewMemoryStore()
	}
	sink := opts.Sink
	if sink == nil {
		sink = coremetrics.NopSink{}
	}
	budget := opts.Budget
	if budget <= 0 {
		budget = solver.DefaultBudget
	}
	return &Engine{
		state:   initial.Clone(),
		catalog: catalog,
		solver:  solver.New(log),
		store:   store,
		sink:    sink,
		log:     log,
		budget:  budget,
		buses:   NewBuses(),
	}, nil
}

// Buses exposes the engine event streams for collectors and notifiers.
func (e *Engine) Buses() Buses { return e.buses }

// Snapshot returns a copy of the committed state.
func (e *Engine) Snapshot() *schedule.State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Clone()
}

// Capacity summarizes occupancy of the committed state under the rule
// set effective at m.
func (e *Engine) Capacity(m model.Month) ([]schedule.CapacityCell, error) {
	rs, err := e.catalog.EffectiveRuleSet(m)
	if err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return schedule.TrackState(e.state).Summary(rs), nil
}

// Forecast reports under- and over-staffed station months over the
// lookahead window, read from the committed state.
func (e *Engine) Forecast(m model.Month, lookahead int) (schedule.ForecastReport, error) {
	rs, err := e.catalog.EffectiveRuleSet(m)
	if err != nil {
		return schedule.ForecastReport{}, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return schedule.Forecast(e.state, rs, lookahead), nil
}

// ResolveRequest carries the explicit inputs of one resolve. The current
// month comes from the caller, never from the wall clock.
type ResolveRequest struct {
	Actor   string
	Current model.Month
	Anchors []model.Anchor
	Leaves  []model.LeaveEvent
	Budget  time.Duration

	overrides     []solver.CapacityOverride
	justification string
}

// Resolve runs a full solve and atomically commits the resulting matrix
// when it is valid. Infeasible and timed-out resolves leave the
// committed state untouched.
func (e *Engine) Resolve(ctx context.Context, req ResolveRequest) (solver.Result, error) {
	e.resolveMu.Lock()
	defer e.resolveMu.Unlock()
	return e.resolve(ctx, req)
}

func (e *Engine) resolve(ctx context.Context, req ResolveRequest) (solver.Result, error) {
	rs, err := e.catalog.EffectiveRuleSet(req.Current)
	if err != nil {
		return solver.Result{}, err
	}
	budget := req.Budget
	if budget <= 0 {
		budget = e.budget
	}
	e.mu.RLock()
	committed := e.state
	e.mu.RUnlock()

	res := e.solver.Resolve(ctx, solver.Input{
		State:     committed,
		Rules:     rs,
		Anchors:   req.Anchors,
		Leaves:    req.Leaves,
		Current:   req.Current,
		Budget:    budget,
		Overrides: req.overrides,
	})

	if res.Status == solver.StatusValid && res.State != nil {
		e.mu.Lock()
		e.state = res.State
		e.mu.Unlock()
		e.recordOccupancy(req.Current, res.Capacity)
	}

	entry := audit.NewEntry(req.Actor, audit.ActionResolve)
	entry.Outcome = res.Status.String()
	entry.Justification = req.justification
	if len(req.overrides) > 0 {
		entry.Action = audit.ActionOverride
	}
	if err := e.store.Append(ctx, entry); err != nil {
		e.log.Errorf("audit append failed: %v", err)
	}

	ev := events.ResolveEvent{
		Status:   res.Status.String(),
		Relaxed:  res.Relaxed,
		Elapsed:  res.Elapsed,
		Trainees: committed.NumTrainees(),
	}
	if res.Conflict != nil {
		ev.Reason = string(res.Conflict.Reason)
	}
	e.buses.Resolves.Publish(ev)
	if err := e.sink.RecordResolve(coremetrics.ResolveSample{
		Status:   ev.Status,
		Relaxed:  ev.Relaxed,
		Elapsed:  ev.Elapsed,
		Trainees: ev.Trainees,
		Reason:   ev.Reason,
		Time:     time.Now(),
	}); err != nil {
		e.log.Warnf("metrics record failed: %v", err)
	}
	e.log.Infof("resolve finished status=%s elapsed=%s", ev.Status, res.Elapsed)
	return res, nil
}

// OverrideRequest is a resolve with relaxed capacity minima. The
// justification is mandatory and lands in the audit log verbatim.
type OverrideRequest struct {
	Actor         string
	Justification string
	Overrides     []solver.CapacityOverride
	Current       model.Month
	Anchors       []model.Anchor
	Leaves        []model.LeaveEvent
	Budget        time.Duration
}

// Override relaxes the named capacity minima and runs a normal resolve.
func (e *Engine) Override(ctx context.Context, req OverrideRequest) (solver.Result, error) {
	if req.Justification == "" {
		return solver.Result{}, ErrJustificationRequired
	}
	if len(req.Overrides) == 0 {
		return solver.Result{}, errors.New("override requires at least one relaxed station")
	}
	e.resolveMu.Lock()
	defer e.resolveMu.Unlock()
	res, err := e.resolve(ctx, ResolveRequest{
		Actor:         req.Actor,
		Current:       req.Current,
		Anchors:       req.Anchors,
		Leaves:        req.Leaves,
		Budget:        req.Budget,
		overrides:     req.Overrides,
		justification: req.Justification,
	})
	if err != nil {
		return res, err
	}
	if res.Status == solver.StatusValid {
		stations := make([]model.StationID, 0, len(req.Overrides))
		for _, o := range req.Overrides {
			stations = append(stations, o.Station)
		}
		e.buses.Overrides.Publish(events.OverrideEvent{
			Actor:         req.Actor,
			Justification: req.Justification,
			Stations:      stations,
		})
	}
	return res, nil
}

// ValidateMove checks one proposed cell change against the committed
// snapshot. A nil report means the move is admissible. The committed
// state is never modified.
func (e *Engine) ValidateMove(ctx context.Context, current model.Month, leaves []model.LeaveEvent, a model.Assignment) (*validate.ConflictReport, error) {
	rs, err := e.catalog.EffectiveRuleSet(current)
	if err != nil {
		return nil, err
	}
	e.mu.RLock()
	st := e.state
	targets, derr := leave.DeriveAll(st.Trainees(), leaves, rs.Leave)
	if derr != nil {
		e.mu.RUnlock()
		return nil, derr
	}
	rep := validate.New(rs, targets).CheckMove(st, a)
	e.mu.RUnlock()

	ev := events.MoveEvent{
		TraineeID: a.TraineeID,
		Station:   a.Station,
		Accepted:  rep == nil,
	}
	if ord, ok := st.Ordinal(a.TraineeID); ok {
		ev.Month = st.Trainee(ord).MonthAt(a.MonthIndex)
	}
	if rep != nil {
		ev.Reason = string(rep.Reason)
	}
	e.buses.Moves.Publish(ev)
	if rec, ok := e.sink.(coremetrics.MoveRecorder); ok {
		_ = rec.RecordMove(coremetrics.MoveSample{
			TraineeID: a.TraineeID,
			Station:   a.Station,
			Accepted:  rep == nil,
			Reason:    ev.Reason,
			Time:      time.Now(),
		})
	}

	entry := audit.NewEntry("", audit.ActionMove)
	entry.TraineeID = a.TraineeID
	entry.Month = ev.Month
	entry.Next = a.Station
	if ord, ok := st.Ordinal(a.TraineeID); ok && a.MonthIndex >= 0 && a.MonthIndex < st.Months(ord) {
		entry.Prior = st.Get(ord, a.MonthIndex)
	}
	if rep != nil {
		entry.Outcome = string(rep.Reason)
	} else {
		entry.Outcome = "accepted"
	}
	if err := e.store.Append(ctx, entry); err != nil {
		e.log.Errorf("audit append failed: %v", err)
	}
	return rep, nil
}

// Audit exposes the audit trail for read-side queries.
func (e *Engine) Audit() audit.Store { return e.store }

func (e *Engine) recordOccupancy(current model.Month, cells []schedule.CapacityCell) {
	rec, ok := e.sink.(coremetrics.OccupancyRecorder)
	if !ok {
		return
	}
	samples := make([]coremetrics.OccupancySample, 0, 8)
	for _, c := range cells {
		if c.Month != current {
			continue
		}
		samples = append(samples, coremetrics.OccupancySample{
			StationKey: c.StationKey,
			Month:      c.Month,
			Count:      c.Count,
			Max:        c.Max,
			Time:       time.Now(),
		})
	}
	if len(samples) == 0 {
		return
	}
	if err := rec.RecordOccupancy(samples); err != nil {
		e.log.Warnf("occupancy record failed: %v", err)
	}
}
