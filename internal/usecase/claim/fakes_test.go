package claim_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/autoclaim-backend/internal/domain/entity"
	"github.com/ignatzorin/autoclaim-backend/internal/domain/repository"
	"github.com/ignatzorin/autoclaim-backend/internal/domain/valueobject"
	"github.com/ignatzorin/autoclaim-backend/internal/pkg/apperror"
)

type mockClaimRepository struct {
	mu      sync.Mutex
	claims  map[uuid.UUID]*entity.Claim
	history map[uuid.UUID][]entity.StatusChange

	duplicateCreates int
	createErr        error
	createCalls      int
	// beforeCAS вызывается перед сравнением статуса в UpdateStatus.
	beforeCAS func(stored *entity.Claim)
	lastFilter repository.ClaimFilter
	// afterFind вызывается один раз после чтения в FindByID, вне блокировки.
	afterFind func()
}

func newMockClaimRepository() *mockClaimRepository {
	return &mockClaimRepository{
		claims:  make(map[uuid.UUID]*entity.Claim),
		history: make(map[uuid.UUID][]entity.StatusChange),
	}
}

func cloneClaim(c *entity.Claim) *entity.Claim {
	cp := *c
	cp.ImageRefs = append([]string(nil), c.ImageRefs...)
	cp.DamageAnalyses = append([]entity.DamageAnalysis(nil), c.DamageAnalyses...)
	cp.History = nil
	return &cp
}

func (m *mockClaimRepository) Create(ctx context.Context, c *entity.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.duplicateCreates > 0 {
		m.duplicateCreates--
		return apperror.ErrDuplicateClaimNumber
	}
	if m.createErr != nil {
		return m.createErr
	}
	m.claims[c.ID] = cloneClaim(c)
	return nil
}

func (m *mockClaimRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Claim, error) {
	m.mu.Lock()
	c, ok := m.claims[id]
	var found *entity.Claim
	if ok {
		found = cloneClaim(c)
	}
	hook := m.afterFind
	m.afterFind = nil
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	if !ok {
		return nil, apperror.ErrClaimNotFound
	}
	return found, nil
}

func (m *mockClaimRepository) List(ctx context.Context, filter repository.ClaimFilter) ([]*entity.Claim, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = filter
	var result []*entity.Claim
	for _, c := range m.claims {
		if filter.UserID != nil && c.UserID != *filter.UserID {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.Severity != "" && c.Severity != filter.Severity {
			continue
		}
		result = append(result, cloneClaim(c))
	}
	total := len(result)
	if filter.Offset >= len(result) {
		return nil, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(result) {
		end = len(result)
	}
	return result[filter.Offset:end], total, nil
}

func (m *mockClaimRepository) UpdateStatus(ctx context.Context, c *entity.Claim, expected valueobject.ClaimStatus, change entity.StatusChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.claims[c.ID]
	if !ok {
		return apperror.ErrClaimNotFound
	}
	if m.beforeCAS != nil {
		m.beforeCAS(stored)
		m.beforeCAS = nil
	}
	if stored.Status != expected {
		return apperror.ErrStatusConflict
	}
	m.claims[c.ID] = cloneClaim(c)
	m.history[c.ID] = append(m.history[c.ID], change)
	return nil
}

func (m *mockClaimRepository) UpdateDetails(ctx context.Context, c *entity.Claim) error {
	return m.updateActive(c.ID, func(stored *entity.Claim) {
		stored.VehicleInfo = c.VehicleInfo
		stored.IncidentDescription = c.IncidentDescription
		stored.IncidentDate = c.IncidentDate
		stored.Location = c.Location
		stored.UpdatedAt = c.UpdatedAt
	})
}

func (m *mockClaimRepository) UpdateAssessment(ctx context.Context, c *entity.Claim) error {
	return m.updateActive(c.ID, func(stored *entity.Claim) {
		stored.ImageRefs = append([]string(nil), c.ImageRefs...)
		stored.DamageAnalyses = append([]entity.DamageAnalysis(nil), c.DamageAnalyses...)
		stored.Severity = c.Severity
		stored.EstimatedAmount = c.EstimatedAmount
		stored.UpdatedAt = c.UpdatedAt
	})
}

func (m *mockClaimRepository) updateActive(id uuid.UUID, apply func(stored *entity.Claim)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.claims[id]
	if !ok {
		return apperror.ErrClaimNotFound
	}
	if stored.Status.IsTerminal() {
		return apperror.ErrStatusConflict
	}
	apply(stored)
	return nil
}

func (m *mockClaimRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.claims[id]; !ok {
		return apperror.ErrClaimNotFound
	}
	delete(m.claims, id)
	return nil
}

func (m *mockClaimRepository) History(ctx context.Context, claimID uuid.UUID) ([]entity.StatusChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entity.StatusChange(nil), m.history[claimID]...), nil
}

func (m *mockClaimRepository) Statistics(ctx context.Context) (*entity.ClaimStatistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &entity.ClaimStatistics{ByStatus: map[valueobject.ClaimStatus]entity.StatusBucket{}}
	for _, c := range m.claims {
		stats.Total++
		b := stats.ByStatus[c.Status]
		b.Count++
		b.TotalAmount += c.PayableAmount()
		stats.ByStatus[c.Status] = b
	}
	return stats, nil
}

func (m *mockClaimRepository) stored(id uuid.UUID) *entity.Claim {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.claims[id]
}

type mockUserRepository struct {
	mu    sync.Mutex
	users map[uuid.UUID]*entity.User
	err   error
}

func newMockUserRepository(users ...*entity.User) *mockUserRepository {
	m := &mockUserRepository{users: make(map[uuid.UUID]*entity.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserRepository) Create(ctx context.Context, u *entity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.ErrUserNotFound
	}
	return u, nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, apperror.ErrUserNotFound
}

func (m *mockUserRepository) Update(ctx context.Context, u *entity.User) error {
	return m.Create(ctx, u)
}

// memoryObjectStore выдаёт ссылки вида mem://<имя файла>.
type memoryObjectStore struct {
	mu         sync.Mutex
	objects    map[string][]byte
	failStore  map[string]bool
	failDelete map[string]bool
	deleted    []string
}

func newMemoryObjectStore() *memoryObjectStore {
	return &memoryObjectStore{
		objects:    make(map[string][]byte),
		failStore:  make(map[string]bool),
		failDelete: make(map[string]bool),
	}
}

func (s *memoryObjectStore) Store(ctx context.Context, data []byte, originalName, mimeType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failStore[originalName] {
		return "", errors.New("store unavailable")
	}
	ref := "mem://" + originalName
	s.objects[ref] = data
	return ref, nil
}

func (s *memoryObjectStore) Delete(ctx context.Context, reference string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDelete[reference] {
		return false
	}
	if _, ok := s.objects[reference]; !ok {
		return false
	}
	delete(s.objects, reference)
	s.deleted = append(s.deleted, reference)
	return true
}

func (s *memoryObjectStore) has(ref string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[ref]
	return ok
}

// scriptedAnalyzer возвращает уровень по имени файла: minor-*, moderate-*,
// severe-*; fail-* завершается ошибкой.
type scriptedAnalyzer struct {
	mu    sync.Mutex
	calls int
	fail  map[string]bool
}

func (a *scriptedAnalyzer) Analyze(ctx context.Context, reference string) (entity.DamageAnalysis, error) {
	a.mu.Lock()
	a.calls++
	failing := a.fail[reference]
	a.mu.Unlock()

	name := strings.TrimPrefix(reference, "mem://")
	if failing || strings.HasPrefix(name, "fail") {
		return entity.DamageAnalysis{}, apperror.New(apperror.ErrCodeDependency, "vision unavailable")
	}
	severity := valueobject.SeverityMinor
	switch {
	case strings.HasPrefix(name, "severe"):
		severity = valueobject.SeveritySevere
	case strings.HasPrefix(name, "moderate"):
		severity = valueobject.SeverityModerate
	}
	return entity.DamageAnalysis{Severity: severity, Confidence: 0.9, DamageTypes: []string{"dent"}}, nil
}

type mockNotifier struct {
	mock.Mock
	sent chan string
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{sent: make(chan string, 16)}
}

func (m *mockNotifier) Send(ctx context.Context, address, subject, body string) (repository.DeliveryResult, error) {
	args := m.Called(ctx, address, subject, body)
	m.sent <- subject
	return args.Get(0).(repository.DeliveryResult), args.Error(1)
}

func (m *mockNotifier) waitSent(timeout time.Duration) (string, bool) {
	select {
	case s := <-m.sent:
		return s, true
	case <-time.After(timeout):
		return "", false
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []repository.ClaimEvent
}

func (p *recordingPublisher) PublishClaimEvent(userID uuid.UUID, event repository.ClaimEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) all() []repository.ClaimEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]repository.ClaimEvent(nil), p.events...)
}
