package projections

import (
	"context"

	"github.com/ghmbegerez/converge/pkg/models"
)

// QueueState reports the live breakdown of intents by lifecycle
// status (spec.md §4.11): how many are pending (READY, VALIDATED, or
// QUEUED), merged, or rejected.
func (s *Service) QueueState(ctx context.Context, tenantID *string) (*models.QueueStateSnapshot, error) {
	all, err := s.Intents.ListAllIntents(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	snapshot := &models.QueueStateSnapshot{
		ByStatus: map[string]int{},
	}
	for _, i := range all {
		snapshot.Total++
		snapshot.ByStatus[string(i.Status)]++
		switch i.Status {
		case models.StatusReady, models.StatusValidated, models.StatusQueued:
			snapshot.Pending = append(snapshot.Pending, i.ID)
		case models.StatusMerged:
			snapshot.Merged++
		case models.StatusRejected:
			snapshot.Rejected++
		}
	}
	if snapshot.Pending == nil {
		snapshot.Pending = []string{}
	}

	return snapshot, nil
}
