package prediction

import "context"

// Result is one prediction returned by the collaborator.
type Result struct {
	// VehicleID is the predicted best assignment.
	VehicleID string `json:"vehicle_id"`
	// Confidence is the model's self-assessed certainty in [0,1].
	Confidence float64 `json:"confidence"`
	// Probabilities maps candidate vehicle ids to class probabilities.
	Probabilities map[string]float64 `json:"probabilities,omitempty"`
}

// Engine is the narrow contract of the prediction collaborator. Callers are
// expected to bound each call with a context deadline; implementations must
// honour cancellation.
type Engine interface {
	Predict(ctx context.Context, f Features) (Result, error)
	PredictBatch(ctx context.Context, fs []Features) ([]Result, error)
}
