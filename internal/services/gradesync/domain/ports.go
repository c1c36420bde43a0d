package domain

import "context"

// SyncPort runs one grade sync synchronously
type SyncPort interface {
	Sync(ctx context.Context, req SyncRequest) (Batch, error)
}

// JobsPort queues syncs for the worker and reports on them
type JobsPort interface {
	Enqueue(ctx context.Context, req SyncRequest) (string, error)
	Job(ctx context.Context, id string) (JobView, error)
}

// WorkerPort runs the long-lived queue processor
type WorkerPort interface {
	Run(ctx context.Context) error
}

// HealthPort reports whether the service can reach its store
type HealthPort interface {
	Health(ctx context.Context) error
}
