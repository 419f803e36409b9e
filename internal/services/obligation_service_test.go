package services

import (
	"context"
	"errors"
	"maaser/internal/core"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestService() (*ObligationService, *memStore) {
	store := newMemStore()
	svc := NewObligationService(store)
	svc.now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }
	svc.newID = func() string { return "ob-1" }
	return svc, store
}

func samplePayload() core.Payload {
	return core.Payload{
		Amount:   decimal.RequireFromString("1200"),
		Currency: "USD",
		Type:     core.TypeIncome,
	}
}

func TestObligationService_Add(t *testing.T) {
	svc, store := newTestService()

	ob, err := svc.Add(context.Background(), NewObligation{
		StartDate: core.NewDate(2024, 1, 31),
		Frequency: core.Monthly,
		Payload:   samplePayload(),
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if ob.Status != core.StatusActive || ob.ExecutionCount != 0 {
		t.Errorf("new obligation = %+v", ob)
	}
	if !ob.NextDueDate.Equal(ob.StartDate) {
		t.Errorf("next due = %s, want start date", ob.NextDueDate)
	}
	if ob.DayOfMonth != 31 {
		t.Errorf("day of month = %d, want 31", ob.DayOfMonth)
	}
	if _, ok := store.obligations["ob-1"]; !ok {
		t.Errorf("obligation not stored")
	}
}

func TestObligationService_AddRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		in   NewObligation
		want error
	}{
		{"unknown frequency", NewObligation{StartDate: core.NewDate(2024, 1, 1), Frequency: "hourly", Payload: samplePayload()}, core.ErrUnsupportedFrequency},
		{"zero amount", NewObligation{StartDate: core.NewDate(2024, 1, 1), Frequency: core.Monthly, Payload: core.Payload{Amount: decimal.Zero, Currency: "USD", Type: core.TypeIncome}}, core.ErrInvalidAmount},
		{"zero cap", NewObligation{StartDate: core.NewDate(2024, 1, 1), Frequency: core.Monthly, TotalOccurrences: intp(0), Payload: samplePayload()}, core.ErrInvalidSchedule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService()
			_, err := svc.Add(context.Background(), tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("Add() error = %v, want %v", err, tt.want)
			}
			if len(store.obligations) != 0 {
				t.Errorf("invalid obligation stored")
			}
		})
	}
}

func TestObligationService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("cap equal to count completes", func(t *testing.T) {
		svc, store := newTestService()
		ob, _ := svc.Add(ctx, NewObligation{StartDate: core.NewDate(2024, 1, 1), Frequency: core.Monthly, Payload: samplePayload()})
		ob.ExecutionCount = 4
		ob.NextDueDate = core.NewDate(2024, 5, 1)
		store.obligations[ob.ID] = ob

		got, err := svc.Update(ctx, ob.ID, ObligationUpdate{TotalOccurrences: intp(4)})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if got.Status != core.StatusCompleted {
			t.Errorf("status = %s, want completed", got.Status)
		}
	})

	t.Run("cap below count rejected", func(t *testing.T) {
		svc, store := newTestService()
		ob, _ := svc.Add(ctx, NewObligation{StartDate: core.NewDate(2024, 1, 1), Frequency: core.Monthly, Payload: samplePayload()})
		ob.ExecutionCount = 4
		store.obligations[ob.ID] = ob

		_, err := svc.Update(ctx, ob.ID, ObligationUpdate{TotalOccurrences: intp(3)})
		if !errors.Is(err, core.ErrCapExceeded) {
			t.Errorf("Update() error = %v, want ErrCapExceeded", err)
		}
	})

	t.Run("completed is never reactivated", func(t *testing.T) {
		svc, store := newTestService()
		ob, _ := svc.Add(ctx, NewObligation{StartDate: core.NewDate(2024, 1, 1), Frequency: core.Monthly, TotalOccurrences: intp(1), Payload: samplePayload()})
		ob.ExecutionCount = 1
		ob.Status = core.StatusCompleted
		store.obligations[ob.ID] = ob

		active := core.StatusActive
		for name, u := range map[string]ObligationUpdate{
			"status":    {Status: &active},
			"raise cap": {TotalOccurrences: intp(5)},
			"clear cap": {ClearCap: true},
		} {
			if _, err := svc.Update(ctx, ob.ID, u); !errors.Is(err, core.ErrReactivation) {
				t.Errorf("%s: error = %v, want ErrReactivation", name, err)
			}
		}
		if store.obligations[ob.ID].Status != core.StatusCompleted {
			t.Errorf("obligation reactivated")
		}
	})

	t.Run("payload edit", func(t *testing.T) {
		svc, _ := newTestService()
		ob, _ := svc.Add(ctx, NewObligation{StartDate: core.NewDate(2024, 1, 1), Frequency: core.Monthly, Payload: samplePayload()})

		p := samplePayload()
		p.Amount = decimal.RequireFromString("1300")
		got, err := svc.Update(ctx, ob.ID, ObligationUpdate{Payload: &p})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if !got.Payload.Amount.Equal(decimal.RequireFromString("1300")) {
			t.Errorf("amount = %s", got.Payload.Amount)
		}
	})

	t.Run("next due before start rejected", func(t *testing.T) {
		svc, _ := newTestService()
		ob, _ := svc.Add(ctx, NewObligation{StartDate: core.NewDate(2024, 3, 1), Frequency: core.Monthly, Payload: samplePayload()})

		early := core.NewDate(2024, 1, 1)
		if _, err := svc.Update(ctx, ob.ID, ObligationUpdate{NextDueDate: &early}); !errors.Is(err, core.ErrInvalidSchedule) {
			t.Errorf("Update() error = %v, want ErrInvalidSchedule", err)
		}
	})

	t.Run("missing", func(t *testing.T) {
		svc, _ := newTestService()
		if _, err := svc.Update(ctx, "nope", ObligationUpdate{}); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("Update() error = %v, want ErrNotFound", err)
		}
	})
}

func TestObligationService_Delete(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	ob, _ := svc.Add(ctx, NewObligation{StartDate: core.NewDate(2024, 1, 1), Frequency: core.Monthly, Payload: samplePayload()})

	if err := svc.Delete(ctx, ob.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(store.obligations) != 0 {
		t.Errorf("obligation not deleted")
	}
	if err := svc.Delete(ctx, ob.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}
