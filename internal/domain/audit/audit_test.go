package audit

import (
	"context"
	"strings"
	"testing"
)

func TestBuildBaseQueryNumbersPlaceholders(t *testing.T) {
	query, args := buildBaseQuery("SELECT COUNT(1)", Filter{Action: ActionPayrollRun, ActorID: "u1"})
	if !strings.Contains(query, "action = $1") || !strings.Contains(query, "actor_user_id = $2") {
		t.Fatalf("unexpected query: %s", query)
	}
	if len(args) != 2 || args[0] != ActionPayrollRun || args[1] != "u1" {
		t.Fatalf("unexpected args: %v", args)
	}

	query, args = buildBaseQuery("SELECT id", Filter{})
	if strings.Contains(query, "$") || len(args) != 0 {
		t.Fatalf("expected unfiltered query, got %s %v", query, args)
	}
}

func TestMemLogFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	log := NewMemLog()
	for _, action := range []string{ActionPeriodCreate, ActionPayrollRun, ActionPayrollRun, ActionPayrollFinalize} {
		if err := log.Record(ctx, Entry{ActorID: "u1", Action: action, EntityType: "payroll_period", EntityID: "p1", After: map[string]string{"status": "x"}}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	events, total, err := log.List(ctx, Filter{Action: ActionPayrollRun}, 1, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(events) != 1 {
		t.Fatalf("expected 1 of 2 run events, got %d of %d", len(events), total)
	}
	if string(events[0].After) != `{"status":"x"}` {
		t.Fatalf("unexpected after payload: %s", events[0].After)
	}

	events, total, _ = log.List(ctx, Filter{EntityID: "p1"}, 10, 10)
	if total != 4 || len(events) != 0 {
		t.Fatalf("expected empty page past the end, got %d of %d", len(events), total)
	}
}
