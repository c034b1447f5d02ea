package repository

import (
	"context"
	"strings"
	"sync"

	"github.com/pediamatch/intake-service/internal/domain"
)

// memoryPatientRepository keeps patients in process memory. It backs the
// service when no POSTGRES_DSN is configured.
type memoryPatientRepository struct {
	mu       sync.RWMutex
	nextID   int64
	patients map[int64]domain.Patient
	order    []int64
}

// NewMemoryPatientRepository returns an empty in-memory repository.
func NewMemoryPatientRepository() PatientRepository {
	return &memoryPatientRepository{patients: make(map[int64]domain.Patient)}
}

func (r *memoryPatientRepository) Create(_ context.Context, patient *domain.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	patient.ID = r.nextID
	r.patients[patient.ID] = *patient
	r.order = append(r.order, patient.ID)
	return nil
}

func (r *memoryPatientRepository) Update(_ context.Context, patient *domain.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.patients[patient.ID]
	if !ok {
		return ErrNotFound
	}
	updated := *patient
	updated.EntryDate = stored.EntryDate
	updated.FollowUpDate = stored.FollowUpDate
	r.patients[patient.ID] = updated
	return nil
}

func (r *memoryPatientRepository) GetByID(_ context.Context, id int64) (*domain.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (r *memoryPatientRepository) FindByFirstName(_ context.Context, firstName string) (*domain.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		p := r.patients[id]
		if strings.EqualFold(p.FirstName, firstName) {
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryPatientRepository) List(_ context.Context, limit, offset int) ([]domain.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	offset = max(offset, 0)
	if offset >= len(r.order) {
		return nil, nil
	}
	end := min(offset+normalizeLimit(limit), len(r.order))
	out := make([]domain.Patient, 0, end-offset)
	for _, id := range r.order[offset:end] {
		out = append(out, r.patients[id])
	}
	return out, nil
}
