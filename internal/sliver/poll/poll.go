// Package poll implements the PollLoop: periodically fetching the
// target volume set from the Observer and handing it to the Reconciler.
package poll

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/syndicate/sliverd/internal/sliver/credential"
	"github.com/syndicate/sliverd/internal/sliver/metrics"
	"github.com/syndicate/sliverd/internal/sliver/reconcile"
	"github.com/syndicate/sliverd/internal/sliver/secret"
)

// ObserverClient is the subset of observerclient.Client the loop needs.
type ObserverClient interface {
	FetchSliceSecret(ctx context.Context) ([]byte, error)
	FetchVolumeListEnvelope(ctx context.Context) ([]byte, error)
	FetchVolumeRecordEnvelope(ctx context.Context, volumeName string) ([]byte, error)
}

// Loop runs the periodic poll cycle until its context is canceled.
type Loop struct {
	Observer   ObserverClient
	Pipeline   *credential.Pipeline
	Secrets    *secret.Store
	Reconciler *reconcile.Reconciler
	Interval   time.Duration
	HexSecret  bool
	Logger     *slog.Logger
}

func (l *Loop) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

// Run executes cycles every Interval until ctx is canceled. It never
// returns on its own initiative: transient errors are logged and the
// loop proceeds to the next cycle.
func (l *Loop) Run(ctx context.Context) {
	for {
		l.runOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(l.Interval):
		}
	}
}

// RunOnce executes exactly one poll+reconcile cycle, for --run_once mode.
func (l *Loop) RunOnce(ctx context.Context) {
	l.runOnce(ctx)
}

func (l *Loop) runOnce(ctx context.Context) {
	sliceSecret, err := l.Secrets.EnsureLoaded(func() ([]byte, error) {
		return l.fetchSecret(ctx)
	})
	if err != nil {
		l.logger().Warn("poll: could not obtain slice secret", "error", err)
		return
	}

	names, err := l.fetchVolumeList(ctx, sliceSecret)
	if err != nil {
		l.logger().Warn("poll: fetch volume list failed", "error", err)
		return
	}

	target := make(map[string]credential.VolumeDescriptor, len(names))
	for _, name := range names {
		desc, err := l.fetchVolumeRecord(ctx, sliceSecret, name)
		if err != nil {
			l.logger().Warn("poll: skipping malformed volume record", "volume", name, "error", err)
			continue
		}
		target[name] = desc
	}

	status, err := l.Reconciler.Reconcile(ctx, target, sliceSecret)
	switch {
	case errors.Is(err, reconcile.ErrBusy):
		metrics.ReconcileRuns.WithLabelValues("busy").Inc()
		l.logger().Debug("poll: reconcile busy, will retry next cycle")
	case err != nil:
		metrics.ReconcileRuns.WithLabelValues("error").Inc()
		l.logger().Warn("poll: reconcile failed", "error", err)
	default:
		metrics.ReconcileRuns.WithLabelValues("ok").Inc()
		metrics.VolumesReconciled.WithLabelValues("succeeded").Add(float64(status.Succeeded))
		metrics.VolumesReconciled.WithLabelValues("failed").Add(float64(status.Failed))
		l.logger().Info("poll: reconcile complete", "status", status.String())
	}
}

func (l *Loop) fetchSecret(ctx context.Context) ([]byte, error) {
	raw, err := l.Observer.FetchSliceSecret(ctx)
	if err != nil {
		return nil, err
	}
	if l.HexSecret {
		return hex.DecodeString(string(raw))
	}
	return raw, nil
}

func (l *Loop) fetchVolumeList(ctx context.Context, sliceSecret []byte) ([]string, error) {
	envelope, err := l.Observer.FetchVolumeListEnvelope(ctx)
	if err != nil {
		return nil, err
	}
	return l.Pipeline.VolumeList(sliceSecret, envelope)
}

func (l *Loop) fetchVolumeRecord(ctx context.Context, sliceSecret []byte, name string) (credential.VolumeDescriptor, error) {
	envelope, err := l.Observer.FetchVolumeRecordEnvelope(ctx, name)
	if err != nil {
		return credential.VolumeDescriptor{}, err
	}
	return l.Pipeline.VolumeRecord(sliceSecret, envelope)
}
