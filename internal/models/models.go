// package models defines the data model for quest progression and music tracking
package models

import "context"

// Model defines the base interface for all persistent models.
// Implementations include Quest, Checkpoint, and MusicSession.
type Model interface {
	Identifier() string // Identifier returns the unique identifier for this model
	Validate() error    // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations shared by every entity.
// Updates take entity-specific partial payloads and live on the concrete repositories.
type Repository[T Model] interface {
	// Create inserts a new model into the database
	Create(ctx context.Context, model T) error
	// Get retrieves a model by its ID
	Get(ctx context.Context, id string) (T, error)
	// Delete removes a model (and anything it owns) by its ID
	Delete(ctx context.Context, id string) error
	// List retrieves all models matching the given criteria
	List(ctx context.Context, criteria map[string]any) ([]T, error)
}
