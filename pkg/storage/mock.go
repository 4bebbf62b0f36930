package storage

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/companion-engine/pkg/character"
	"github.com/jwebster45206/companion-engine/pkg/chat"
	"github.com/jwebster45206/companion-engine/pkg/story"
)

// Operation names accepted by MockStorage.SetError
const (
	OpGetCharacter          = "GetCharacter"
	OpListActiveCharacters  = "ListActiveCharacters"
	OpSaveCharacter         = "SaveCharacter"
	OpListActiveNeeds       = "ListActiveNeeds"
	OpSaveNeed              = "SaveNeed"
	OpListActiveStoryEvents = "ListActiveStoryEvents"
	OpCreateStoryEvent      = "CreateStoryEvent"
	OpCreateProgress        = "CreateProgress"
	OpLatestCompletions     = "LatestCompletions"
	OpLastDialog            = "LastDialog"
	OpRecentMessages        = "RecentMessages"
)

type mockData struct {
	characters map[uuid.UUID]character.Character
	needs      map[uuid.UUID]character.Need
	events     map[uuid.UUID]story.Event
	progress   map[uuid.UUID]story.Progress
	dialogs    map[uuid.UUID]chat.Dialog
	messages   map[uuid.UUID]chat.Message
}

func (d mockData) clone() mockData {
	return mockData{
		characters: maps.Clone(d.characters),
		needs:      maps.Clone(d.needs),
		events:     maps.Clone(d.events),
		progress:   maps.Clone(d.progress),
		dialogs:    maps.Clone(d.dialogs),
		messages:   maps.Clone(d.messages),
	}
}

// MockStorage is an in-memory implementation of Storage for testing.
// Values are copied in and out so callers can't mutate stored rows.
type MockStorage struct {
	mu        sync.RWMutex
	data      mockData
	seq       int64 // insertion order for story events
	eventSeq  map[uuid.UUID]int64
	pingError error
	errs      map[string]error
	// errAfter lets an operation succeed n times before failing
	errAfter map[string]int
	calls    map[string]int
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		data: mockData{
			characters: make(map[uuid.UUID]character.Character),
			needs:      make(map[uuid.UUID]character.Need),
			events:     make(map[uuid.UUID]story.Event),
			progress:   make(map[uuid.UUID]story.Progress),
			dialogs:    make(map[uuid.UUID]chat.Dialog),
			messages:   make(map[uuid.UUID]chat.Message),
		},
		eventSeq: make(map[uuid.UUID]int64),
		errs:     make(map[string]error),
		errAfter: make(map[string]int),
		calls:    make(map[string]int),
	}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetError makes the named operation fail with err; nil clears it
func (m *MockStorage) SetError(op string, err error) {
	m.SetErrorAfter(op, 0, err)
}

// SetErrorAfter makes the named operation fail with err after n successful calls
func (m *MockStorage) SetErrorAfter(op string, n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, op)
		delete(m.errAfter, op)
		return
	}
	m.errs[op] = err
	m.errAfter[op] = n
	m.calls[op] = 0
}

// Calls returns how many times the named operation was invoked
func (m *MockStorage) Calls(op string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[op]
}

// fail must be called with the lock held
func (m *MockStorage) fail(op string) error {
	m.calls[op]++
	err, ok := m.errs[op]
	if !ok {
		return nil
	}
	if m.calls[op] <= m.errAfter[op] {
		return nil
	}
	return err
}

func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MockStorage) Close() error {
	return nil
}

// Transaction snapshots the data and restores it if fn fails
func (m *MockStorage) Transaction(ctx context.Context, fn func(tx Storage) error) error {
	m.mu.Lock()
	snapshot := m.data.clone()
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.data = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

// Character operations

func (m *MockStorage) GetCharacter(ctx context.Context, id uuid.UUID) (*character.Character, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(OpGetCharacter); err != nil {
		return nil, err
	}
	ch, ok := m.data.characters[id]
	if !ok {
		return nil, nil
	}
	return ch.Clone(), nil
}

func (m *MockStorage) ListActiveCharacters(ctx context.Context) ([]*character.Character, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(OpListActiveCharacters); err != nil {
		return nil, err
	}
	var result []*character.Character
	for _, ch := range m.data.characters {
		if ch.IsActive {
			result = append(result, ch.Clone())
		}
	}
	slices.SortFunc(result, func(a, b *character.Character) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return result, nil
}

func (m *MockStorage) CreateCharacter(ctx context.Context, ch *character.Character) error {
	if ch == nil {
		return errors.New("character cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch.ID == uuid.Nil {
		ch.ID = uuid.New()
	}
	if ch.RelationshipStage == "" {
		ch.RelationshipStage = character.StageAcquaintance
	}
	now := time.Now()
	ch.CreatedAt, ch.UpdatedAt = now, now
	m.data.characters[ch.ID] = *ch.Clone()
	return nil
}

func (m *MockStorage) SaveCharacter(ctx context.Context, ch *character.Character) error {
	if ch == nil {
		return errors.New("character cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(OpSaveCharacter); err != nil {
		return err
	}
	ch.UpdatedAt = time.Now()
	m.data.characters[ch.ID] = *ch.Clone()
	return nil
}

// Need operations

func (m *MockStorage) ListActiveNeeds(ctx context.Context, characterID uuid.UUID) ([]*character.Need, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(OpListActiveNeeds); err != nil {
		return nil, err
	}
	result := []*character.Need{}
	for _, n := range m.data.needs {
		if n.CharacterID == characterID && n.IsActive {
			cp := n
			result = append(result, &cp)
		}
	}
	slices.SortFunc(result, func(a, b *character.Need) int {
		if a.Type < b.Type {
			return -1
		}
		if a.Type > b.Type {
			return 1
		}
		return 0
	})
	return result, nil
}

func (m *MockStorage) CreateNeed(ctx context.Context, n *character.Need) error {
	if n == nil {
		return errors.New("need cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	m.data.needs[n.ID] = *n
	return nil
}

func (m *MockStorage) SaveNeed(ctx context.Context, n *character.Need) error {
	if n == nil {
		return errors.New("need cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(OpSaveNeed); err != nil {
		return err
	}
	n.UpdatedAt = time.Now()
	m.data.needs[n.ID] = *n
	return nil
}

// Story event operations

func (m *MockStorage) ListActiveStoryEvents(ctx context.Context) ([]*story.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(OpListActiveStoryEvents); err != nil {
		return nil, err
	}
	var result []*story.Event
	for _, ev := range m.data.events {
		if ev.IsActive {
			cp := ev
			result = append(result, &cp)
		}
	}
	slices.SortFunc(result, func(a, b *story.Event) int {
		if a.Priority != b.Priority {
			return b.Priority - a.Priority
		}
		return int(m.eventSeq[a.ID] - m.eventSeq[b.ID])
	})
	return result, nil
}

func (m *MockStorage) GetStoryEventByName(ctx context.Context, name string) (*story.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ev := range m.data.events {
		if ev.Name == name {
			cp := ev
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockStorage) CreateStoryEvent(ctx context.Context, ev *story.Event) error {
	if ev == nil {
		return errors.New("story event cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(OpCreateStoryEvent); err != nil {
		return err
	}
	for _, existing := range m.data.events {
		if existing.Name == ev.Name {
			return fmt.Errorf("%w: %s", ErrDuplicateName, ev.Name)
		}
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	now := time.Now()
	ev.CreatedAt, ev.UpdatedAt = now, now
	m.seq++
	m.eventSeq[ev.ID] = m.seq
	m.data.events[ev.ID] = *ev
	return nil
}

// Progress operations

func (m *MockStorage) CreateProgress(ctx context.Context, p *story.Progress) error {
	if p == nil {
		return errors.New("progress cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(OpCreateProgress); err != nil {
		return err
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CompletedAt.IsZero() {
		p.CompletedAt = time.Now()
	}
	p.CreatedAt = time.Now()
	stored := *p
	stored.Event = nil
	m.data.progress[p.ID] = stored
	return nil
}

func (m *MockStorage) ListProgress(ctx context.Context, characterID uuid.UUID) ([]*story.Progress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := []*story.Progress{}
	for _, p := range m.data.progress {
		if p.CharacterID != characterID {
			continue
		}
		cp := p
		if ev, ok := m.data.events[p.EventID]; ok {
			cp.Event = &ev
		}
		result = append(result, &cp)
	}
	slices.SortFunc(result, func(a, b *story.Progress) int {
		return b.CompletedAt.Compare(a.CompletedAt)
	})
	return result, nil
}

func (m *MockStorage) LatestCompletions(ctx context.Context, characterID uuid.UUID) (map[uuid.UUID]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(OpLatestCompletions); err != nil {
		return nil, err
	}
	latest := make(map[uuid.UUID]time.Time)
	for _, p := range m.data.progress {
		if p.CharacterID != characterID {
			continue
		}
		if p.CompletedAt.After(latest[p.EventID]) {
			latest[p.EventID] = p.CompletedAt
		}
	}
	return latest, nil
}

// Dialog operations

func (m *MockStorage) LastDialog(ctx context.Context, characterID uuid.UUID) (*chat.Dialog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(OpLastDialog); err != nil {
		return nil, err
	}
	var last *chat.Dialog
	for _, d := range m.data.dialogs {
		if d.CharacterID != characterID {
			continue
		}
		if last == nil || d.UpdatedAt.After(last.UpdatedAt) {
			cp := d
			last = &cp
		}
	}
	return last, nil
}

func (m *MockStorage) RecentMessages(ctx context.Context, dialogID uuid.UUID, limit int) ([]chat.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(OpRecentMessages); err != nil {
		return nil, err
	}
	var result []chat.Message
	for _, msg := range m.data.messages {
		if msg.DialogID == dialogID {
			result = append(result, msg)
		}
	}
	slices.SortFunc(result, func(a, b chat.Message) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockStorage) CreateDialog(ctx context.Context, d *chat.Dialog) error {
	if d == nil {
		return errors.New("dialog cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = time.Now()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = d.UpdatedAt
	}
	m.data.dialogs[d.ID] = *d
	return nil
}

func (m *MockStorage) CreateMessage(ctx context.Context, msg *chat.Message) error {
	if msg == nil {
		return errors.New("message cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	m.data.messages[msg.ID] = *msg
	return nil
}
