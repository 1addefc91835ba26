package patients

import "context"

// Store is the persistence surface for patient records.
type Store interface {
	// GetAll returns every record, newest clinical date first.
	GetAll(ctx context.Context) ([]Patient, error)
	GetByID(ctx context.Context, id string) (*Patient, error)
	// Create validates in and returns the new id.
	Create(ctx context.Context, in CreateInput) (string, error)
	Update(ctx context.Context, id string, u UpdateInput) (*Patient, error)
	Delete(ctx context.Context, id string) error
	// Search is a case-insensitive substring search; a blank query behaves
	// like GetAll.
	Search(ctx context.Context, query string) ([]Patient, error)
}
