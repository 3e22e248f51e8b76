package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	ActionStaffCreate     = "staff.create"
	ActionAllowanceCreate = "staff.allowance.create"
	ActionPeriodCreate    = "payroll.period.create"
	ActionPayrollRun      = "payroll.run"
	ActionPayrollFinalize = "payroll.finalize"
	ActionPayrollReopen   = "payroll.reopen"
)

type Event struct {
	ID         string          `json:"id"`
	ActorID    string          `json:"actorId"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	RequestID  string          `json:"requestId"`
	IP         string          `json:"ip"`
	CreatedAt  time.Time       `json:"createdAt"`
	After      json.RawMessage `json:"after,omitempty"`
}

// Entry is what callers hand to Record. After is marshalled to JSON.
type Entry struct {
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	RequestID  string
	IP         string
	After      any
}

type Filter struct {
	Action     string
	EntityType string
	EntityID   string
	ActorID    string
}

// Log records and lists audit events.
type Log interface {
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, filter Filter, limit, offset int) ([]Event, int, error)
}

type Service struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Service {
	return &Service{DB: db}
}

func (s *Service) Record(ctx context.Context, entry Entry) error {
	afterJSON, err := marshalAfter(entry.After)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
    INSERT INTO audit_events (actor_user_id, action, entity_type, entity_id, after_json, request_id, ip)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
  `, entry.ActorID, entry.Action, entry.EntityType, entry.EntityID, afterJSON, entry.RequestID, entry.IP)
	return err
}

func (s *Service) List(ctx context.Context, filter Filter, limit, offset int) ([]Event, int, error) {
	countQuery, args := buildBaseQuery("SELECT COUNT(1)", filter)
	var total int
	if err := s.DB.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query, args := buildBaseQuery("SELECT id, actor_user_id, action, entity_type, entity_id, request_id, ip, created_at, after_json", filter)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var evt Event
		if err := rows.Scan(&evt.ID, &evt.ActorID, &evt.Action, &evt.EntityType, &evt.EntityID, &evt.RequestID, &evt.IP, &evt.CreatedAt, &evt.After); err != nil {
			return nil, 0, err
		}
		out = append(out, evt)
	}
	return out, total, rows.Err()
}

func buildBaseQuery(prefix string, filter Filter) (string, []any) {
	query := prefix + " FROM audit_events WHERE 1=1"
	var args []any
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		query += fmt.Sprintf(" AND %s = $%d", column, len(args))
	}
	add("action", filter.Action)
	add("entity_type", filter.EntityType)
	add("entity_id", filter.EntityID)
	add("actor_user_id", filter.ActorID)
	return query, args
}

func marshalAfter(after any) ([]byte, error) {
	if after == nil {
		return nil, nil
	}
	return json.Marshal(after)
}

// MemLog keeps events in memory. Used by tests and the in-memory server.
type MemLog struct {
	mu     sync.Mutex
	events []Event
}

func NewMemLog() *MemLog {
	return &MemLog{}
}

func (m *MemLog) Record(_ context.Context, entry Entry) error {
	afterJSON, err := marshalAfter(entry.After)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, Event{
		ID:         uuid.NewString(),
		ActorID:    entry.ActorID,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		RequestID:  entry.RequestID,
		IP:         entry.IP,
		CreatedAt:  time.Now().UTC(),
		After:      afterJSON,
	})
	return nil
}

func (m *MemLog) List(_ context.Context, filter Filter, limit, offset int) ([]Event, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []Event
	for _, evt := range m.events {
		if filter.Action != "" && evt.Action != filter.Action {
			continue
		}
		if filter.EntityType != "" && evt.EntityType != filter.EntityType {
			continue
		}
		if filter.EntityID != "" && evt.EntityID != filter.EntityID {
			continue
		}
		if filter.ActorID != "" && evt.ActorID != filter.ActorID {
			continue
		}
		matched = append(matched, evt)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}
