// Package repositorytest provides PatientRepository doubles for tests.
package repositorytest

import (
	"context"

	"github.com/pediamatch/intake-service/internal/domain"
	"github.com/pediamatch/intake-service/internal/repository"
)

// FailingPatients delegates to an underlying repository but fails lookups or
// updates with the configured errors.
type FailingPatients struct {
	repository.PatientRepository
	FindErr   error
	UpdateErr error
}

var _ repository.PatientRepository = (*FailingPatients)(nil)

// FindByFirstName returns FindErr when set.
func (f *FailingPatients) FindByFirstName(ctx context.Context, firstName string) (*domain.Patient, error) {
	if f.FindErr != nil {
		return nil, f.FindErr
	}
	return f.PatientRepository.FindByFirstName(ctx, firstName)
}

// Update returns UpdateErr when set.
func (f *FailingPatients) Update(ctx context.Context, patient *domain.Patient) error {
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	return f.PatientRepository.Update(ctx, patient)
}
