// Package allocation turns a press run into batches: one batch per vessel
// assignment, with composition rows tracing juice and cost back to the
// purchase lines that were pressed.
package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vsinha/cidery/pkg/application/dto"
	"github.com/vsinha/cidery/pkg/domain/entities"
	"github.com/vsinha/cidery/pkg/domain/repositories"
	"github.com/vsinha/cidery/pkg/domain/services"
	"github.com/vsinha/cidery/pkg/infrastructure/events"
	"github.com/vsinha/cidery/pkg/infrastructure/locking"
)

const tracerName = "github.com/vsinha/cidery/allocation"

// errDryRun rolls back a dry run after every check has passed
var errDryRun = errors.New("dry run")

// Request asks for one press run to be split across vessels
type Request struct {
	PressRunID  string
	Assignments []entities.Assignment
	Mode        services.AllocationMode
	// DryRun computes and checks everything, then rolls back
	DryRun bool
}

// Service processes press runs into batches
type Service struct {
	store     repositories.AllocationStore
	loader    Loader
	logger    *zap.Logger
	locker    locking.Locker
	publisher events.Publisher
	metrics   MetricsRecorder
	tracer    trace.Tracer
	now       func() time.Time
	newID     func() string
	costCheck CostCheck
}

// NewService creates an allocation service over store
func NewService(store repositories.AllocationStore, opts ...Option) *Service {
	s := &Service{
		store:     store,
		logger:    zap.NewNop(),
		locker:    locking.NewKeyedMutex(),
		publisher: events.NopPublisher,
		metrics:   nopMetrics{},
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
		newID:     uuid.NewString,
		costCheck: CostCheckAllocated,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AllocatePressRun creates one batch per assignment inside a single
// transaction. Either every batch and composition row is committed or none
// is. Batch events are published after the commit.
func (s *Service) AllocatePressRun(ctx context.Context, req Request) (result *dto.AllocationResult, err error) {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, "allocation.AllocatePressRun", trace.WithAttributes(
		attribute.String("cidery.press_run_id", req.PressRunID),
		attribute.String("cidery.allocation_mode", req.Mode.String()),
		attribute.Int("cidery.assignments", len(req.Assignments)),
		attribute.Bool("cidery.dry_run", req.DryRun),
	))
	defer func() {
		outcome := runOutcome(result, err)
		s.metrics.ObserveRun(outcome, time.Since(started))
		span.SetAttributes(attribute.String("cidery.result", outcome))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	logger := s.logger.With(
		zap.String("press_run_id", req.PressRunID),
		zap.Stringer("mode", req.Mode),
		zap.Bool("dry_run", req.DryRun),
	)

	startDate := s.now()
	var composed []*ComposedBatch

	err = s.locker.WithLock(ctx, locking.PressRunKey(req.PressRunID), func(ctx context.Context) error {
		return s.store.RunInTransaction(ctx, func(ctx context.Context, tx repositories.AllocationTx) error {
			// A retried transaction starts from nothing.
			composed = nil

			var err error
			composed, err = s.allocate(ctx, tx, req, startDate, logger)
			if err != nil {
				return err
			}
			if req.DryRun {
				return errDryRun
			}
			return nil
		})
	})

	dryRun := errors.Is(err, errDryRun)
	if err != nil && !dryRun {
		s.logFailure(logger, err)
		return nil, err
	}

	result = buildResult(req, composed, dryRun)
	if dryRun {
		logger.Info("dry run allocation checked and rolled back", zap.Int("batches", len(composed)))
		return result, nil
	}

	s.metrics.BatchesCreated(len(composed))
	for _, cb := range composed {
		if cb.Diverges() {
			s.metrics.CostDivergence()
			logger.Warn("batch material cost diverges from press run purchase cost",
				zap.String("batch_id", cb.Batch.ID),
				zap.String("batch_name", cb.Batch.Name),
				zap.String("material_cost", cb.Totals.MaterialCost.String()),
				zap.String("purchase_cost", cb.PurchaseCost.String()),
				zap.Int("vessels", len(composed)),
			)
		}
	}

	s.publish(ctx, logger, req.Mode, composed, startDate)

	logger.Info("press run allocated",
		zap.Strings("batch_ids", result.CreatedBatchIDs),
		zap.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

func (s *Service) allocate(ctx context.Context, tx repositories.AllocationTx, req Request, startDate time.Time, logger *zap.Logger) ([]*ComposedBatch, error) {
	loaded, err := s.loader.Load(ctx, tx, req.PressRunID, req.Assignments)
	if err != nil {
		return nil, err
	}

	fractions, err := services.ComputeFractions(loaded.Lines, req.Mode)
	if err != nil {
		if entities.KindOf(err) == entities.Invariant {
			logger.Error("fraction computation failed", zap.Error(err), zap.Array("lines", purchaseLines(loaded.Lines)))
		}
		return nil, err
	}

	claim := entities.PressRunAllocation{
		PressRunID:  req.PressRunID,
		AllocatedAt: startDate,
		BatchCount:  len(req.Assignments),
	}
	if err := tx.ClaimPressRun(ctx, claim); err != nil {
		if errors.Is(err, repositories.ErrAlreadyAllocated) {
			return nil, entities.NewAllocationError(entities.Conflict, "press run has already been processed into batches",
				"press_run_id", req.PressRunID).Wrap(err)
		}
		return nil, fmt.Errorf("failed to claim press run %s: %w", req.PressRunID, err)
	}

	composer := &Composer{
		StartDate: startDate,
		NewID:     s.newID,
		CostCheck: s.costCheck,
	}

	sequences := make(map[string]int)
	composed := make([]*ComposedBatch, 0, len(req.Assignments))
	for i, assignment := range req.Assignments {
		vessel := loaded.Vessels[i]
		code := vessel.Code()
		sequence := services.SequenceLabel(sequences[code])
		sequences[code]++

		cb, err := composer.Compose(ComposeInput{
			PressRunID: req.PressRunID,
			Assignment: assignment,
			Vessel:     vessel,
			Fractions:  fractions,
			Sequence:   sequence,
		})
		if err != nil {
			return nil, err
		}

		if err := composer.CheckInvariants(cb); err != nil {
			logger.Error("allocation invariant violated",
				zap.Error(err),
				zap.Int("assignment", i),
				zap.String("vessel_id", vessel.ID),
				zap.String("assigned_volume", assignment.Volume.String()),
				zap.String("press_run_volume", loaded.PressRun.TotalJuiceVolume.String()),
				zap.Stringer("cost_check", s.costCheck),
				zap.Array("fractions", lineFractions(fractions)),
				zap.Array("compositions", compositionRows(cb.Compositions)),
			)
			return nil, err
		}

		if err := composer.Persist(ctx, tx, cb); err != nil {
			return nil, err
		}
		composed = append(composed, cb)
	}
	return composed, nil
}

// publish emits audit events for committed batches. Failures are logged and
// counted; the allocation stays committed.
func (s *Service) publish(ctx context.Context, logger *zap.Logger, mode services.AllocationMode, composed []*ComposedBatch, at time.Time) {
	ctx = context.WithoutCancel(ctx)
	emit := func(event events.Event) {
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.metrics.PublishFailure()
			logger.Warn("failed to publish audit event",
				zap.String("event_type", event.Type()),
				zap.String("stream_id", event.StreamID()),
				zap.Error(err),
			)
		}
	}

	for _, cb := range composed {
		emit(events.NewBatchCreatedEvent(*cb.Batch, mode.String(), at))
		for _, row := range cb.Compositions {
			emit(events.NewBatchCompositionCreatedEvent(*row, at))
		}
	}
}

func (s *Service) logFailure(logger *zap.Logger, err error) {
	var allocErr *entities.AllocationError
	switch {
	case errors.As(err, &allocErr) && allocErr.Kind == entities.Invariant:
		// already logged with its context where it was raised
	case errors.As(err, &allocErr):
		logger.Info("allocation rejected", zap.Stringer("kind", allocErr.Kind), zap.Error(err))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logger.Warn("allocation aborted", zap.Error(err))
	default:
		logger.Error("allocation failed", zap.Error(err))
	}
}

func runOutcome(result *dto.AllocationResult, err error) string {
	if err != nil {
		if kind := entities.KindOf(err); kind != 0 {
			return kind.String()
		}
		return "error"
	}
	if result != nil && result.DryRun {
		return "dry_run"
	}
	return "success"
}

func buildResult(req Request, composed []*ComposedBatch, dryRun bool) *dto.AllocationResult {
	result := &dto.AllocationResult{
		PressRunID:      req.PressRunID,
		Mode:            req.Mode.String(),
		CreatedBatchIDs: make([]string, 0, len(composed)),
		Batches:         make([]dto.BatchAllocation, 0, len(composed)),
		DryRun:          dryRun,
	}
	for _, cb := range composed {
		rows := make([]entities.BatchComposition, len(cb.Compositions))
		for i, row := range cb.Compositions {
			rows[i] = *row
		}
		result.CreatedBatchIDs = append(result.CreatedBatchIDs, cb.Batch.ID)
		result.Batches = append(result.Batches, dto.BatchAllocation{
			Batch:          *cb.Batch,
			Compositions:   rows,
			CostDivergence: cb.CostDivergence(),
		})
	}
	return result
}

// zap array encoders for invariant context

type lineFractions []services.LineFraction

func (fs lineFractions) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, f := range fs {
		f := f
		if err := enc.AppendObject(zapcore.ObjectMarshalerFunc(func(obj zapcore.ObjectEncoder) error {
			obj.AddString("purchase_line_id", f.Line.ID)
			obj.AddString("fraction", f.Fraction.String())
			obj.AddString("input_weight", f.Line.InputWeight.String())
			obj.AddString("total_cost", f.Line.TotalCost.String())
			if f.SugarMass != nil {
				obj.AddString("sugar_mass", f.SugarMass.String())
			}
			return nil
		})); err != nil {
			return err
		}
	}
	return nil
}

type compositionRows []*entities.BatchComposition

func (rows compositionRows) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, row := range rows {
		row := row
		if err := enc.AppendObject(zapcore.ObjectMarshalerFunc(func(obj zapcore.ObjectEncoder) error {
			obj.AddString("purchase_line_id", row.PurchaseLineID)
			obj.AddString("fraction", row.FractionOfBatch.String())
			obj.AddString("juice_volume", row.JuiceVolume.String())
			obj.AddString("material_cost", row.MaterialCost.String())
			return nil
		})); err != nil {
			return err
		}
	}
	return nil
}

type purchaseLines []*entities.PurchaseLine

func (lines purchaseLines) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, line := range lines {
		sugar := "unmeasured"
		if line.MeasuredSugarPercent != nil {
			sugar = line.MeasuredSugarPercent.String()
		}
		enc.AppendString(fmt.Sprintf("%s weight=%s sugar=%s", line.ID, line.InputWeight, sugar))
	}
	return nil
}

// TotalMaterialCost sums material cost across every batch of a result
func TotalMaterialCost(result *dto.AllocationResult) decimal.Decimal {
	total := decimal.Zero
	for _, b := range result.Batches {
		for _, row := range b.Compositions {
			total = total.Add(row.MaterialCost)
		}
	}
	return total
}
