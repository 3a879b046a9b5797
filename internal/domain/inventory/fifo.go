package inventory

import (
	"sort"

	"github.com/beataims/backend/internal/domain/shared"
)

// BatchDeduction is one planned deduction against a single batch.
type BatchDeduction struct {
	BatchID          uint
	DeductedQuantity int
	RemainingInBatch int
	FullyConsumed    bool
}

// ConsumptionPlan is the complete result of planning a FIFO deduction.
type ConsumptionPlan struct {
	Deductions        []BatchDeduction
	TotalDeducted     int
	RemainingShortage int
	FullyFulfilled    bool
}

// PlanFIFO calculates which batches to consume for the requested quantity,
// oldest received first, ties broken by batch id so the order is
// deterministic. The plan does not mutate the batches; ApplyPlan does.
//
// A plan that is not fully fulfilled means the aggregate batch quantity is
// smaller than the caller believed — with a validated request this is the
// cache-drift consistency fault and the caller must abort.
func PlanFIFO(requested int, batches []StockBatch) (*ConsumptionPlan, error) {
	if requested <= 0 {
		return nil, ErrInvalidQuantity
	}

	open := make([]StockBatch, 0, len(batches))
	for _, b := range batches {
		if b.HasStock() {
			open = append(open, b)
		}
	}
	sort.Slice(open, func(i, j int) bool {
		if !open[i].ReceivedAt.Equal(open[j].ReceivedAt) {
			return open[i].ReceivedAt.Before(open[j].ReceivedAt)
		}
		return open[i].ID < open[j].ID
	})

	plan := &ConsumptionPlan{Deductions: make([]BatchDeduction, 0, len(open))}
	remaining := requested
	for _, b := range open {
		if remaining == 0 {
			break
		}
		take := remaining
		if take > b.Quantity {
			take = b.Quantity
		}
		left := b.Quantity - take
		plan.Deductions = append(plan.Deductions, BatchDeduction{
			BatchID:          b.ID,
			DeductedQuantity: take,
			RemainingInBatch: left,
			FullyConsumed:    left == 0,
		})
		plan.TotalDeducted += take
		remaining -= take
	}

	plan.RemainingShortage = remaining
	plan.FullyFulfilled = remaining == 0
	return plan, nil
}

// ApplyPlan executes a consumption plan against the actual batch entities.
// Each deduction must take exactly what the plan promised; a mismatch means
// the batches changed between planning and application.
func ApplyPlan(batches []*StockBatch, plan *ConsumptionPlan) error {
	if plan == nil {
		return shared.ErrInvalidInput
	}

	byID := make(map[uint]*StockBatch, len(batches))
	for _, b := range batches {
		byID[b.ID] = b
	}

	for _, d := range plan.Deductions {
		batch, ok := byID[d.BatchID]
		if !ok {
			return ErrConsistencyFault
		}
		if taken := batch.Deduct(d.DeductedQuantity); taken != d.DeductedQuantity {
			return ErrConsistencyFault
		}
	}
	return nil
}
