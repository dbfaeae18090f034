package port

import "context"

type FailureNotifier interface {
	NotifyFailure(ctx context.Context, userEmail string, jobID string, identifier string, errorMsg string) error
}
