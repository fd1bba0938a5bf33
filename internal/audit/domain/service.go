package domain

import "context"

// Service writes immutable audit rows. Failing to audit never fails the
// underlying operation; implementations log and swallow storage errors.
type Service interface {
	AuditLog(ctx context.Context, action string, targetType string, targetID *string, metadata map[string]any) error
}
