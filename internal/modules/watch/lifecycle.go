package watch

import "github.com/georgemunganga/watchdealer-backend/internal/pkg/apperr"

// manualTransitions lists the status changes a dealer may make directly.
// Entering sold is only possible through a completed sale; leaving it only
// through a sale reversal.
var manualTransitions = map[Status][]Status{
	StatusAvailable:   {StatusConsignment, StatusReserved},
	StatusConsignment: {StatusAvailable, StatusReserved},
	StatusReserved:    {StatusAvailable, StatusConsignment},
	StatusSold:        {},
}

// CheckManualTransition validates a direct status change.
func CheckManualTransition(from, to Status) error {
	if to == StatusSold {
		return apperr.Validation("status sold can only be reached by completing a sale")
	}
	if from == StatusSold {
		return apperr.Conflict("watch is sold; only a sale reversal can change its status")
	}
	if from == to {
		return nil
	}
	for _, s := range manualTransitions[from] {
		if s == to {
			return nil
		}
	}
	return apperr.Validation("cannot transition watch from %s to %s", from, to)
}
