package module

import "ejournal/internal/services/gradesync/domain"

// Ports defines grade sync module ports exposed for cross wiring
type Ports struct {
	Sync   domain.SyncPort
	Jobs   domain.JobsPort
	Worker domain.WorkerPort
	Health domain.HealthPort
}
