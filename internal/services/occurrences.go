package services

import (
	"fmt"
	"maaser/internal/core"
)

// Occurrence is one scheduled materialization of an obligation.
type Occurrence struct {
	Date   core.Date
	Number int // 1-based position within the obligation's lifetime
}

// CatchUpPlan is the outcome of generating the missed occurrences of an
// obligation: the occurrences to write and the schedule state to persist with them.
type CatchUpPlan struct {
	Occurrences    []Occurrence
	NextDueDate    core.Date
	ExecutionCount int
	Status         core.Status
}

// Advance converts the plan's final state into a schedule update.
func (p CatchUpPlan) Advance() core.ScheduleAdvance {
	return core.ScheduleAdvance{
		NextDueDate:    p.NextDueDate,
		ExecutionCount: p.ExecutionCount,
		Status:         p.Status,
	}
}

// PlanCatchUp generates every occurrence of o falling on or before today, in
// chronological order, starting at o.NextDueDate. It has no side effects.
//
// Generation stops once the obligation reaches its total occurrences; the
// plan then carries status completed. An unknown frequency or a cadence step
// that does not move forward fails the whole plan.
func PlanCatchUp(o core.Obligation, today core.Date) (CatchUpPlan, error) {
	plan := CatchUpPlan{
		NextDueDate:    o.NextDueDate,
		ExecutionCount: o.ExecutionCount,
		Status:         core.StatusActive,
	}
	if o.Status.Terminal() {
		plan.Status = o.Status
		return plan, nil
	}

	cadence, err := GetCadence(o.Frequency)
	if err != nil {
		return CatchUpPlan{}, err
	}

	capReached := func() bool {
		return o.TotalOccurrences != nil && plan.ExecutionCount >= *o.TotalOccurrences
	}

	cursor := o.NextDueDate
	for !cursor.After(today) {
		if capReached() {
			plan.Status = core.StatusCompleted
			break
		}

		plan.ExecutionCount++
		plan.Occurrences = append(plan.Occurrences, Occurrence{Date: cursor, Number: plan.ExecutionCount})

		next, err := cadence.Next(cursor)
		if err != nil {
			return CatchUpPlan{}, err
		}
		if !next.After(cursor) {
			return CatchUpPlan{}, fmt.Errorf("%w: %s cadence did not advance past %s", core.ErrDateArithmetic, o.Frequency, cursor)
		}
		cursor = next
		plan.NextDueDate = cursor

		// The capping occurrence completes the obligation even when the
		// next cadence date lies after today.
		if capReached() {
			plan.Status = core.StatusCompleted
			break
		}
	}

	return plan, nil
}
