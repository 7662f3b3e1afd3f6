package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/elliotnash/piopener/internal/infrastructure/database"
	"github.com/elliotnash/piopener/migrations"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

var base = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func stateEvent(status string, position float64, at time.Time) *Event {
	return &Event{
		DoorID:    "garage",
		Kind:      KindState,
		Status:    status,
		Setpoint:  "open",
		Position:  position,
		CreatedAt: at,
	}
}

func TestRecord_GeneratesIDAndTime(t *testing.T) {
	repo := newTestRepo(t)
	repo.now = func() time.Time { return base }

	e := &Event{DoorID: "garage", Kind: KindCommand, Command: "open", Status: "closed", Setpoint: "closed", Source: "api"}
	if err := repo.Record(context.Background(), e); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if e.ID == "" {
		t.Error("ID not generated")
	}
	if !e.CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", e.CreatedAt, base)
	}

	got, err := repo.Get(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if *got != *e {
		t.Errorf("Get() = %+v, want %+v", got, e)
	}
}

func TestRecord_Validation(t *testing.T) {
	repo := newTestRepo(t)

	tests := []struct {
		name  string
		event Event
	}{
		{"missing door", Event{Kind: KindState, Status: "open", Setpoint: "open"}},
		{"unknown kind", Event{DoorID: "garage", Kind: "moved", Status: "open", Setpoint: "open"}},
		{"command without command", Event{DoorID: "garage", Kind: KindCommand, Status: "open", Setpoint: "open"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.event
			if err := repo.Record(context.Background(), &e); !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("Record() error = %v, want ErrInvalidEvent", err)
			}
		})
	}
}

func TestRecord_RejectsOutOfRangePosition(t *testing.T) {
	repo := newTestRepo(t)

	if err := repo.Record(context.Background(), stateEvent("open", 1.5, base)); err == nil {
		t.Error("Record() error = nil, want CHECK constraint failure")
	}
}

func TestGet_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	if _, err := repo.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestList_MostRecentFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i, status := range []string{"moving_up", "open", "moving_down"} {
		if err := repo.Record(ctx, stateEvent(status, 0.5, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	res, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Total != 3 || len(res.Events) != 3 {
		t.Fatalf("List() total=%d len=%d, want 3/3", res.Total, len(res.Events))
	}
	if res.Events[0].Status != "moving_down" || res.Events[2].Status != "moving_up" {
		t.Errorf("order = %s, %s, %s; want newest first",
			res.Events[0].Status, res.Events[1].Status, res.Events[2].Status)
	}
	if res.Limit != DefaultLimit || res.Offset != 0 {
		t.Errorf("Limit/Offset = %d/%d, want %d/0", res.Limit, res.Offset, DefaultLimit)
	}
}

func TestList_SubSecondOrdering(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_ = repo.Record(ctx, stateEvent("moving_up", 0.1, base.Add(100*time.Millisecond)))
	_ = repo.Record(ctx, stateEvent("ajar", 0.2, base.Add(900*time.Millisecond)))

	res, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Events[0].Status != "ajar" {
		t.Errorf("first = %s, want ajar", res.Events[0].Status)
	}
}

func TestList_FilterAndPaginate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = repo.Record(ctx, stateEvent("open", 1, base.Add(time.Duration(i)*time.Second)))
	}
	_ = repo.Record(ctx, &Event{DoorID: "garage", Kind: KindCommand, Command: "close", Status: "open", Setpoint: "open", Position: 1, Source: "mqtt"})
	_ = repo.Record(ctx, &Event{DoorID: "side", Kind: KindCommand, Command: "open", Status: "closed", Setpoint: "closed", Source: "api"})

	res, err := repo.List(ctx, Filter{Kind: KindCommand, DoorID: "garage"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Total != 1 || res.Events[0].Command != "close" || res.Events[0].Source != "mqtt" {
		t.Errorf("filtered = %+v", res)
	}

	page, err := repo.List(ctx, Filter{Kind: KindState, Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Total != 5 || len(page.Events) != 1 {
		t.Errorf("page total=%d len=%d, want 5/1", page.Total, len(page.Events))
	}
}

func TestList_ClampsLimit(t *testing.T) {
	repo := newTestRepo(t)

	res, err := repo.List(context.Background(), Filter{Limit: 1000, Offset: -3})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Limit != MaxLimit || res.Offset != 0 {
		t.Errorf("Limit/Offset = %d/%d, want %d/0", res.Limit, res.Offset, MaxLimit)
	}
	if res.Events == nil {
		t.Error("Events = nil, want empty slice")
	}
}
