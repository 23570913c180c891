package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"funnel-analytics-service/internal/config"
	"funnel-analytics-service/internal/funnel"
	"funnel-analytics-service/internal/model"
	"funnel-analytics-service/internal/preset"
	"funnel-analytics-service/internal/repository"
)

// FunnelService is the engine's orchestration boundary: it resolves a
// request into a definition, fans out to the store, and assembles the
// structured result with the documented degrade-to-default policies.
type FunnelService interface {
	ComputeFunnel(ctx context.Context, req model.FunnelRequest) (model.FunnelResponse, error)
	ComputeLatency(ctx context.Context, req model.FunnelRequest) ([]model.StepLatency, error)
	ComputePriceSensitivity(ctx context.Context, req model.FunnelRequest) ([]model.PriceStepStats, error)
	ComputeDropOffPaths(ctx context.Context, req model.FunnelRequest, step int) (model.PathAnalysis, error)
	ComputeCohortRecovery(ctx context.Context, req model.FunnelRequest, step int) (model.CohortRecovery, error)
	GetFrictionPoints(ctx context.Context, stepName string) ([]model.FrictionPoint, error)
	ListPresets() []preset.Funnel
}

type funnelService struct {
	repo    repository.FunnelRepository
	presets *preset.Registry
	cfg     *config.Config
	now     func() time.Time
	newID   func() string
}

// NewFunnelService constructs a funnelService.
func NewFunnelService(repo repository.FunnelRepository, presets *preset.Registry, cfg *config.Config) FunnelService {
	return &funnelService{
		repo:    repo,
		presets: presets,
		cfg:     cfg,
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
}

// legacy measure -> counting mode, kept for older clients.
var measureMap = map[string]model.CountingMode{
	"guests":  model.CountUniqueUsers,
	"revenue": model.CountSessions,
	"intent":  model.CountUniqueUsers,
}

// resolveDefinition turns the raw request into an executable definition.
func (s *funnelService) resolveDefinition(req model.FunnelRequest) model.FunnelDefinition {
	mode := req.Mode
	if mode == "" {
		// Bare requests carrying steps are ad-hoc funnels; everything else
		// gets the curated default.
		if len(req.Steps) > 0 {
			mode = model.ModeAdHoc
		} else {
			mode = model.ModeCurated
		}
	}

	steps := funnel.ResolveSteps(s.presets, mode, req.Steps, req.FunnelID)

	counting := model.CountingMode(req.CountingBy)
	switch counting {
	case model.CountUniqueUsers, model.CountSessions, model.CountEvents:
	default:
		if m, ok := measureMap[req.Measure]; ok {
			counting = m
		} else {
			counting = model.CountUniqueUsers
		}
	}

	window := s.cfg.CompletionWindow
	if req.CompletedWithin > 0 {
		window = time.Duration(req.CompletedWithin) * 24 * time.Hour
	}

	groupBy := req.GroupBy
	if len(req.Segments) > 0 {
		// Named segments take priority over a grouping dimension.
		groupBy = ""
	}

	funnelID := req.FunnelID
	if funnelID == "" {
		funnelID = s.presets.DefaultID()
	}

	return model.FunnelDefinition{
		FunnelID:      funnelID,
		Mode:          mode,
		Steps:         steps,
		Window:        window,
		CountingMode:  counting,
		GroupBy:       groupBy,
		Segments:      req.Segments,
		GlobalFilters: req.GlobalFilters,
	}
}

// storeQuery assembles the repository query for a definition, with optional
// extra entity filters (named segment runs).
func (s *funnelService) storeQuery(def model.FunnelDefinition, extraFilters []funnel.Expr) repository.FunnelQuery {
	preds := make([]funnel.Expr, 0, len(def.Steps))
	for _, step := range def.Steps {
		preds = append(preds, funnel.BuildStepPredicate(step))
	}
	return repository.FunnelQuery{
		Predicates:    preds,
		Window:        def.Window,
		CountingMode:  def.CountingMode,
		GroupBy:       def.GroupBy,
		EntityFilters: extraFilters,
		Location:      NormalizeLocation(def.GlobalFilters["location"]),
	}
}

// runAggregation executes one reach computation, through the store's
// windowFunnel primitive or over raw rows in process when the store side is
// disabled.
func (s *funnelService) runAggregation(ctx context.Context, q repository.FunnelQuery) (model.StepReach, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	if s.cfg.NativeWindowFunnel {
		return s.repo.RunFunnel(ctx, q)
	}

	sessions, err := s.repo.FetchSessionEvents(ctx, q)
	if err != nil {
		return nil, err
	}
	return funnel.Aggregate(q.Predicates, q.Window, q.CountingMode, sessions), nil
}

func (s *funnelService) ComputeFunnel(ctx context.Context, req model.FunnelRequest) (model.FunnelResponse, error) {
	def := s.resolveDefinition(req)

	resp := model.FunnelResponse{
		ComputationID: s.newID(),
		Data:          []model.StepResult{},
		Meta: model.FunnelMeta{
			FunnelID:   def.FunnelID,
			Mode:       def.Mode,
			CountingBy: string(def.CountingMode),
			Window:     def.Window.String(),
			GroupBy:    def.GroupBy,
			IsValid:    true,
		},
	}

	// Zero steps is "no funnel to compute", not an error.
	if def.StepCount() == 0 {
		return resp, nil
	}

	mainQuery := s.storeQuery(def, nil)

	// The primary reach aggregation is the only hard dependency.
	reach, err := s.runAggregation(ctx, mainQuery)
	if err != nil {
		return model.FunnelResponse{}, &StoreError{Op: "funnel aggregation", Err: err}
	}

	// Named segments and the supporting reads are independent reads over
	// the same immutable log; run them concurrently and let each degrade
	// on its own.
	segmentReach := make([]model.StepReach, len(def.Segments))
	var population *uint64
	abv := s.cfg.FallbackBookingValue

	var wg sync.WaitGroup
	for i, seg := range def.Segments {
		wg.Add(1)
		go func(i int, seg model.SegmentFilterSet) {
			defer wg.Done()
			filters := make([]funnel.Expr, 0, len(seg.Filters))
			for _, f := range seg.Filters {
				filters = append(filters, funnel.FilterClause(f))
			}
			r, segErr := s.runAggregation(ctx, s.storeQuery(def, filters))
			if segErr != nil {
				log.Printf("[WARN] segment %q aggregation failed, omitting: %v", seg.Name, segErr)
				return
			}
			segmentReach[i] = r
		}(i, seg)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		qctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
		defer cancel()
		total, popErr := s.repo.CountSessions(qctx, mainQuery)
		if popErr != nil {
			log.Printf("[WARN] session population count failed, skipping bound check: %v", popErr)
			return
		}
		population = &total
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		qctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
		defer cancel()
		value, abvErr := s.repo.FetchAverageBookingValue(qctx, mainQuery.Location)
		if abvErr != nil {
			log.Printf("[WARN] booking value benchmark unavailable, using fallback %.2f: %v", s.cfg.FallbackBookingValue, abvErr)
			return
		}
		abv = value
	}()

	wg.Wait()

	results := funnel.ComputeMetrics(def.Steps, reach, abv)

	// Named segment counts replace the display breakdown; the percentage
	// math above stays on ungrouped totals.
	if len(def.Segments) > 0 {
		for i := range results {
			segments := make(map[string]float64, len(def.Segments))
			for j, seg := range def.Segments {
				if segmentReach[j] == nil {
					continue
				}
				segments[segmentName(seg, j)] = segmentReach[j].Total(i + 1)
			}
			if len(segments) > 0 {
				results[i].Segments = segments
			}
		}
	}

	isValid, anomalies := funnel.Validate(reach, population, def.StepCount())
	if !isValid {
		log.Printf("[WARN] funnel validation anomalies: %v", anomalies)
	}

	resp.Data = results
	resp.Meta.IsValid = isValid
	resp.ValidationAnomalies = anomalies
	return resp, nil
}

func segmentName(seg model.SegmentFilterSet, idx int) string {
	if seg.Name != "" {
		return seg.Name
	}
	if seg.ID != "" {
		return seg.ID
	}
	return fmt.Sprintf("segment_%d", idx+1)
}

// heuristicLatency is the documented default used when the latency query
// fails: a coarse transition-time guess so the caller still renders.
var heuristicLatency = model.LatencyQuantiles{
	P10: 10, P25: 30, Median: 60, P75: 120, P90: 240, P95: 300,
}

func (s *funnelService) ComputeLatency(ctx context.Context, req model.FunnelRequest) ([]model.StepLatency, error) {
	def := s.resolveDefinition(req)
	if def.StepCount() == 0 {
		return []model.StepLatency{}, nil
	}

	q := s.storeQuery(def, nil)

	qctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	quants, err := s.repo.FetchStepLatencies(qctx, q)
	estimated := false
	if err != nil {
		log.Printf("[WARN] latency query failed, using heuristic defaults: %v", err)
		estimated = true
		quants = make([]model.LatencyQuantiles, def.StepCount()-1)
		for i := range quants {
			quants[i] = heuristicLatency
		}
	}

	out := make([]model.StepLatency, 0, def.StepCount())
	for i, lq := range quants {
		out = append(out, model.StepLatency{
			FromStep:   i + 1,
			ToStep:     i + 2,
			FromLabel:  def.Steps[i].Label,
			ToLabel:    def.Steps[i+1].Label,
			Seconds:    lq,
			Bottleneck: funnel.FlagBottleneck(lq, s.cfg.BottleneckThreshold),
			Estimated:  estimated,
		})
	}

	// The final step has no outgoing transition; time-on-page is its proxy.
	dwellCtx, dwellCancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer dwellCancel()
	dwell, dwellErr := s.repo.FetchLastStepDwell(dwellCtx, q)
	if dwellErr != nil {
		log.Printf("[WARN] last step dwell query failed, using heuristic default: %v", dwellErr)
		dwell = heuristicLatency.Median
	}
	last := def.StepCount()
	lastQ := model.LatencyQuantiles{Median: dwell, P95: dwell}
	out = append(out, model.StepLatency{
		FromStep:   last,
		ToStep:     last,
		FromLabel:  def.Steps[last-1].Label,
		ToLabel:    def.Steps[last-1].Label,
		Seconds:    lastQ,
		Bottleneck: funnel.FlagBottleneck(lastQ, s.cfg.BottleneckThreshold),
		Estimated:  true,
	})

	return out, nil
}

func (s *funnelService) ComputePriceSensitivity(ctx context.Context, req model.FunnelRequest) ([]model.PriceStepStats, error) {
	def := s.resolveDefinition(req)
	if def.StepCount() == 0 {
		return []model.PriceStepStats{}, nil
	}

	qctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	stats, err := s.repo.FetchPriceStats(qctx, s.storeQuery(def, nil))
	if err != nil {
		log.Printf("[WARN] price stats query failed, returning empty series: %v", err)
		return []model.PriceStepStats{}, nil
	}

	for i := range stats {
		if i < len(def.Steps) {
			stats[i].StepName = def.Steps[i].Label
		}
	}
	return funnel.PriceDeltas(stats, s.cfg.PriceSpikePct), nil
}

func (s *funnelService) ComputeDropOffPaths(ctx context.Context, req model.FunnelRequest, step int) (model.PathAnalysis, error) {
	def := s.resolveDefinition(req)
	if step < 1 || step >= def.StepCount() {
		return model.PathAnalysis{}, &ValidationError{Message: "step must be between 1 and steps-1"}
	}

	q := s.storeQuery(def, nil)
	analysis := model.PathAnalysis{
		Step:     step,
		StepName: def.Steps[step-1].Label,
		Groups:   []model.PathGroup{},
	}

	// Both reads are independent; the reach run only feeds the dropped
	// count and may degrade to zero.
	var wg sync.WaitGroup
	var counts map[string]uint64
	var pathErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		qctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
		defer cancel()
		counts, pathErr = s.repo.FetchDropOffPaths(qctx, q, step)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		reach, reachErr := s.runAggregation(ctx, q)
		if reachErr != nil {
			log.Printf("[WARN] reach aggregation for path analysis failed, dropped count omitted: %v", reachErr)
			return
		}
		dropped := reach.Total(step) - reach.Total(step+1)
		if dropped > 0 {
			analysis.DroppedCount = uint64(dropped)
		}
	}()

	wg.Wait()

	if pathErr != nil {
		log.Printf("[WARN] drop-off path query failed, returning empty buckets: %v", pathErr)
		return analysis, nil
	}
	analysis.Groups = funnel.BucketPathEvents(counts)
	return analysis, nil
}

func (s *funnelService) ComputeCohortRecovery(ctx context.Context, req model.FunnelRequest, step int) (model.CohortRecovery, error) {
	def := s.resolveDefinition(req)
	if step < 1 || step >= def.StepCount() {
		return model.CohortRecovery{}, &ValidationError{Message: "step must be between 1 and steps-1"}
	}

	result := model.CohortRecovery{
		Step:     step,
		StepName: def.Steps[step-1].Label,
	}

	qctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	dropped, recovered, totalDays, err := s.repo.FetchCohortRecovery(qctx, s.storeQuery(def, nil), step, s.cfg.RecoveryWindow)
	if err != nil {
		log.Printf("[WARN] cohort recovery query failed, returning zeroes: %v", err)
		return result, nil
	}

	result.Dropped = dropped
	result.Recovered = recovered
	result.RecoveryRate, result.AvgDaysToRecover = funnel.RecoveryStats(dropped, recovered, totalDays)
	return result, nil
}

// fallbackFrictionPoints keeps the friction view rendering when the stage
// is unmapped or the table is absent.
var fallbackFrictionPoints = []model.FrictionPoint{
	{Element: "Apply Promo Button", Clicks: 1200, Failures: 960, FailureRate: 80.0},
	{Element: "Date Picker", Clicks: 800, Failures: 400, FailureRate: 50.0},
}

func (s *funnelService) GetFrictionPoints(ctx context.Context, stepName string) ([]model.FrictionPoint, error) {
	stage, ok := funnel.HospitalityStep(stepName)
	if !ok {
		return fallbackFrictionPoints, nil
	}

	qctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	points, err := s.repo.FetchFrictionPoints(qctx, stage)
	if err != nil {
		log.Printf("[WARN] friction query failed, using fallback data: %v", err)
		return fallbackFrictionPoints, nil
	}
	if len(points) == 0 {
		return fallbackFrictionPoints, nil
	}
	return points, nil
}

func (s *funnelService) ListPresets() []preset.Funnel {
	return s.presets.List()
}
