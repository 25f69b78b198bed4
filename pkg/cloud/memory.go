package cloud

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultMaxVersions is how many history rows a profile keeps
const DefaultMaxVersions = 10

// RollbackChangeLog marks the snapshot taken right before a rollback
const RollbackChangeLog = "before rollback"

// MemoryGateway is an in-process Gateway with the same versioning rules as
// the database store. It backs `serve` when no database is configured
type MemoryGateway struct {
	mu          sync.Mutex
	userID      string
	maxVersions int
	now         func() time.Time
	profiles    map[string]*CloudProfile
	versions    map[string][]ProfileVersion
	nextID      uint
}

// NewMemoryGateway creates an empty store owned by userID
func NewMemoryGateway(userID string, maxVersions int) *MemoryGateway {
	if maxVersions <= 0 {
		maxVersions = DefaultMaxVersions
	}
	return &MemoryGateway{
		userID:      userID,
		maxVersions: maxVersions,
		now:         time.Now,
		profiles:    make(map[string]*CloudProfile),
		versions:    make(map[string][]ProfileVersion),
	}
}

var _ Gateway = (*MemoryGateway)(nil)

// ListProfiles returns every stored profile ordered by id
func (m *MemoryGateway) ListProfiles(ctx context.Context) ([]CloudProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]CloudProfile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetProfile returns a copy of one profile
func (m *MemoryGateway) GetProfile(ctx context.Context, id string) (*CloudProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cp := *p
	return &cp, nil
}

// CreateProfile stores a new profile at version 1
func (m *MemoryGateway) CreateProfile(ctx context.Context, data ProfileData) (*CloudProfile, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.profiles[data.ID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, data.ID)
	}

	now := m.now().UTC()
	p := &CloudProfile{
		ID:          data.ID,
		UserID:      m.userID,
		AccountID:   data.AccountID,
		ProfileName: data.ProfileName,
		RawLua:      data.RawLua,
		Checksum:    data.Checksum,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.profiles[p.ID] = p

	cp := *p
	return &cp, nil
}

// UpdateProfile snapshots the current content into the history, then
// overwrites it and bumps the version
func (m *MemoryGateway) UpdateProfile(ctx context.Context, id string, data ProfileData) (*CloudProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	m.snapshot(p, "")
	p.ProfileName = data.ProfileName
	p.RawLua = data.RawLua
	p.Checksum = data.Checksum
	p.Version++
	p.UpdatedAt = m.now().UTC()

	cp := *p
	return &cp, nil
}

// DeleteProfile drops a profile and its history
func (m *MemoryGateway) DeleteProfile(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.profiles[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.profiles, id)
	delete(m.versions, id)
	return nil
}

// GetVersions returns the kept history, newest first
func (m *MemoryGateway) GetVersions(ctx context.Context, id string) ([]ProfileVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.profiles[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	history := m.versions[id]
	out := make([]ProfileVersion, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		out = append(out, history[i])
	}
	return out, nil
}

// Rollback makes a stored version current again. The replaced content is
// kept in the history with RollbackChangeLog
func (m *MemoryGateway) Rollback(ctx context.Context, id string, version int) (*CloudProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	var target *ProfileVersion
	for i := range m.versions[id] {
		if m.versions[id][i].Version == version {
			target = &m.versions[id][i]
		}
	}
	if target == nil {
		return nil, fmt.Errorf("%w: %s@%d", ErrVersionNotFound, id, version)
	}
	rawLua, checksum := target.RawLua, target.Checksum

	m.snapshot(p, RollbackChangeLog)
	p.RawLua = rawLua
	p.Checksum = checksum
	p.Version++
	p.UpdatedAt = m.now().UTC()

	cp := *p
	return &cp, nil
}

// snapshot records p's current content and trims history to maxVersions.
// Callers hold m.mu
func (m *MemoryGateway) snapshot(p *CloudProfile, changeLog string) {
	m.nextID++
	history := append(m.versions[p.ID], ProfileVersion{
		ID:        m.nextID,
		ProfileID: p.ID,
		Version:   p.Version,
		RawLua:    p.RawLua,
		Checksum:  p.Checksum,
		ChangeLog: changeLog,
		CreatedAt: m.now().UTC(),
	})
	if len(history) > m.maxVersions {
		history = append([]ProfileVersion(nil), history[len(history)-m.maxVersions:]...)
	}
	m.versions[p.ID] = history
}
