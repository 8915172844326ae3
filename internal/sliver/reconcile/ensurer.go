package reconcile

import "context"

// GatewayEnsurer asks the Observer to create a gateway record for a
// volume it doesn't yet know about, so a spawn that failed for lack of
// a registered gateway can be retried once.
type GatewayEnsurer interface {
	EnsureGatewayExists(ctx context.Context, kind, volumeName string) error
}

// NoEnsurer never succeeds; use it when no Observer ensure-exists
// endpoint is configured, so the one retry attempt fails fast instead
// of hanging.
type NoEnsurer struct{}

func (NoEnsurer) EnsureGatewayExists(ctx context.Context, kind, volumeName string) error {
	return ErrSpawnFailed
}
