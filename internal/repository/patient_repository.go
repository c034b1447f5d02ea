package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pediamatch/intake-service/internal/domain"
)

// ErrNotFound is returned when no patient matches a lookup.
var ErrNotFound = errors.New("patient not found")

// PatientRepository encapsulates patient persistence.
type PatientRepository interface {
	Create(ctx context.Context, patient *domain.Patient) error
	Update(ctx context.Context, patient *domain.Patient) error
	GetByID(ctx context.Context, id int64) (*domain.Patient, error)
	// FindByFirstName matches case-insensitively and returns the lowest id
	// when several patients share a first name.
	FindByFirstName(ctx context.Context, firstName string) (*domain.Patient, error)
	List(ctx context.Context, limit, offset int) ([]domain.Patient, error)
}

type patientRepository struct {
	pool *pgxpool.Pool
}

// NewPatientRepository returns a Postgres-backed implementation.
func NewPatientRepository(pool *pgxpool.Pool) PatientRepository {
	return &patientRepository{pool: pool}
}

const patientColumns = `id, first_name, last_name, email, phone_number, postal_code,
               guardian_first_name, guardian_last_name, selected_clinic,
               entry_date, follow_up_date, consultation_scheduled`

func (r *patientRepository) Create(ctx context.Context, patient *domain.Patient) error {
	const query = `
        INSERT INTO patients (first_name, last_name, email, phone_number, postal_code,
            guardian_first_name, guardian_last_name, selected_clinic,
            entry_date, follow_up_date, consultation_scheduled)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING id`

	return r.pool.QueryRow(ctx, query,
		patient.FirstName,
		patient.LastName,
		patient.Email,
		patient.PhoneNumber,
		patient.PostalCode,
		patient.GuardianFirstName,
		patient.GuardianLastName,
		patient.SelectedClinic,
		patient.EntryDate,
		patient.FollowUpDate,
		patient.ConsultationScheduled,
	).Scan(&patient.ID)
}

// Update rewrites the mutable columns. entry_date and follow_up_date are fixed
// at creation and never touched here.
func (r *patientRepository) Update(ctx context.Context, patient *domain.Patient) error {
	const query = `
        UPDATE patients SET first_name=$1, last_name=$2, email=$3, phone_number=$4, postal_code=$5,
            guardian_first_name=$6, guardian_last_name=$7, selected_clinic=$8, consultation_scheduled=$9
        WHERE id=$10`

	cmd, err := r.pool.Exec(ctx, query,
		patient.FirstName,
		patient.LastName,
		patient.Email,
		patient.PhoneNumber,
		patient.PostalCode,
		patient.GuardianFirstName,
		patient.GuardianLastName,
		patient.SelectedClinic,
		patient.ConsultationScheduled,
		patient.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *patientRepository) GetByID(ctx context.Context, id int64) (*domain.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *patientRepository) FindByFirstName(ctx context.Context, firstName string) (*domain.Patient, error) {
	query := `SELECT ` + patientColumns + `
        FROM patients WHERE LOWER(first_name) = LOWER($1)
        ORDER BY id ASC LIMIT 1`
	return r.fetchSingle(ctx, query, firstName)
}

func (r *patientRepository) List(ctx context.Context, limit, offset int) ([]domain.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients ORDER BY id ASC LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, normalizeLimit(limit), max(offset, 0))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patients []domain.Patient
	for rows.Next() {
		var p domain.Patient
		if err := scanPatient(rows, &p); err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

func (r *patientRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Patient, error) {
	var p domain.Patient
	if err := scanPatient(r.pool.QueryRow(ctx, query, arg), &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanPatient(row pgx.Row, p *domain.Patient) error {
	return row.Scan(
		&p.ID,
		&p.FirstName,
		&p.LastName,
		&p.Email,
		&p.PhoneNumber,
		&p.PostalCode,
		&p.GuardianFirstName,
		&p.GuardianLastName,
		&p.SelectedClinic,
		&p.EntryDate,
		&p.FollowUpDate,
		&p.ConsultationScheduled,
	)
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
