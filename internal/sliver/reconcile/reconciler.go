package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"syscall"

	"github.com/syndicate/sliverd/internal/sliver/credential"
	"github.com/syndicate/sliverd/internal/sliver/metrics"
	"github.com/syndicate/sliverd/internal/sliver/probe"
)

const namespace = "OpenCloud"

// Gateway kind labels, used in gateway names, ensure-exists calls, and
// metrics. GatewayRegistry matches on the watchdog binary names instead.
const (
	ugWatchdogKind = "UG"
	rgWatchdogKind = "RG"
)

// Options configures a Reconciler. All fields are required except
// Ensurer, Logger, and Lister.
type Options struct {
	LocalHostname    string
	RGPublic         bool
	UGOnly           bool
	RGOnly           bool
	MountpointRoot   string
	UGWatchdogBinary string
	RGWatchdogBinary string
	UGGatewayBinary  string
	RGGatewayBinary  string

	Registry *probe.Registry
	Lister   probe.Lister
	Spawner  Spawner
	Ensurer  GatewayEnsurer
	Logger   *slog.Logger
}

// Reconciler aligns the host's running UG/RG watchdogs with a target
// set of volumes. It holds no back-references to
// PushEndpoint or PollLoop; both simply call Reconcile.
type Reconciler struct {
	opts Options
	mu   sync.Mutex
}

// New builds a Reconciler from opts, filling in a no-op Ensurer, the
// default logger, and a real process Probe as Lister if unset.
func New(opts Options) *Reconciler {
	if opts.Ensurer == nil {
		opts.Ensurer = NoEnsurer{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Lister == nil {
		opts.Lister = probe.NewProbe()
	}
	return &Reconciler{opts: opts}
}

// Reconcile ensures every volume in target has its required UG/RG
// watchdogs running, then stops any running watchdog not named in
// target. It requires sliceSecret to be present; it fails fast with
// ErrBusy if another reconcile is already running.
func (r *Reconciler) Reconcile(ctx context.Context, target map[string]credential.VolumeDescriptor, sliceSecret []byte) (Status, error) {
	if len(sliceSecret) == 0 {
		return Status{}, ErrNoSecret
	}
	if !r.mu.TryLock() {
		return Status{}, ErrBusy
	}
	defer r.mu.Unlock()

	status := newStatus()
	log := r.opts.Logger.With("run_id", status.RunID)
	log.Debug("reconcile: starting", "targets", len(target))

	for name, desc := range target {
		if err := r.reconcileVolume(ctx, desc, sliceSecret); err != nil {
			status.Failed++
			status.FailedVolumes[name] = err
			log.Warn("reconcile: volume failed", "volume", name, "error", err)
			continue
		}
		status.Succeeded++
	}

	stopped, err := r.stopUnauthorized(ctx, target)
	status.Stopped = stopped
	if err != nil {
		log.Warn("reconcile: stopping unauthorized gateways", "error", err)
	}

	r.updateGatewayGauges(ctx)

	log.Info("reconcile: done", "status", status.String())
	return status, nil
}

// updateGatewayGauges refreshes the running-gateway-count gauges from
// the process table, the only authoritative source.
func (r *Reconciler) updateGatewayGauges(ctx context.Context) {
	if ugPids, err := r.opts.Registry.Find(ctx, r.opts.UGWatchdogBinary, nil); err == nil {
		metrics.GatewaysRunning.WithLabelValues(ugWatchdogKind).Set(float64(len(ugPids)))
	}
	if rgPids, err := r.opts.Registry.Find(ctx, r.opts.RGWatchdogBinary, nil); err == nil {
		metrics.GatewaysRunning.WithLabelValues(rgWatchdogKind).Set(float64(len(rgPids)))
	}
}

func (r *Reconciler) reconcileVolume(ctx context.Context, desc credential.VolumeDescriptor, sliceSecret []byte) error {
	rgHostname := RGHostname(r.opts.LocalHostname, r.opts.RGPublic)
	ugName := GatewayName(namespace, ugWatchdogKind, desc.VolumeName, r.opts.LocalHostname)
	rgName := GatewayName(namespace, rgWatchdogKind, desc.VolumeName, rgHostname)

	mountpoint := MountpointPath(r.opts.MountpointRoot, desc.VolumeName)
	if err := EnsureMountpoint(mountpoint); err != nil {
		return fmt.Errorf("ensure mountpoint %s: %w", mountpoint, err)
	}

	if !r.opts.UGOnly {
		if err := r.ensureRGRunning(ctx, desc, rgName, sliceSecret); err != nil {
			return fmt.Errorf("ensure RG running: %w", err)
		}
	}

	if !r.opts.RGOnly {
		if err := r.ensureUGRunning(ctx, desc, ugName, mountpoint, sliceSecret); err != nil {
			return fmt.Errorf("ensure UG running: %w", err)
		}
	}

	return nil
}

func (r *Reconciler) ensureRGRunning(ctx context.Context, desc credential.VolumeDescriptor, rgName string, sliceSecret []byte) error {
	attrs := map[string]string{"volume": desc.VolumeName}
	pids, err := r.opts.Registry.Find(ctx, r.opts.RGWatchdogBinary, attrs)
	if err != nil {
		return err
	}
	switch len(pids) {
	case 1:
		return nil
	case 0:
		return r.spawnGateway(ctx, rgWatchdogKind, desc, rgName, "", attrs, sliceSecret)
	default:
		return ErrTransient
	}
}

func (r *Reconciler) ensureUGRunning(ctx context.Context, desc credential.VolumeDescriptor, ugName, mountpoint string, sliceSecret []byte) error {
	attrs := map[string]string{"volume": desc.VolumeName, "mountpoint": mountpoint}
	pids, err := r.opts.Registry.Find(ctx, r.opts.UGWatchdogBinary, attrs)
	if err != nil {
		return err
	}
	switch len(pids) {
	case 1:
		return nil
	case 0:
		return r.spawnGateway(ctx, ugWatchdogKind, desc, ugName, mountpoint, attrs, sliceSecret)
	default:
		return ErrTransient
	}
}

// spawnGateway spawns a watchdog for kind. On failure it asks the
// Observer to create the gateway record and retries exactly once.
func (r *Reconciler) spawnGateway(ctx context.Context, kind string, desc credential.VolumeDescriptor, gatewayName, mountpoint string, attrs map[string]string, sliceSecret []byte) error {
	keyPassword := KeyPassword(gatewayName, sliceSecret)
	watchdogBinary, gatewayArgv := r.buildSpawnArgs(kind, desc, gatewayName, keyPassword, mountpoint)

	_, err := r.opts.Spawner.Spawn(watchdogBinary, attrs, gatewayArgv)
	if err == nil {
		return nil
	}

	if ensureErr := r.opts.Ensurer.EnsureGatewayExists(ctx, kind, desc.VolumeName); ensureErr != nil {
		return fmt.Errorf("%w: %v (ensure-exists also failed: %v)", ErrSpawnFailed, err, ensureErr)
	}

	if _, retryErr := r.opts.Spawner.Spawn(watchdogBinary, attrs, gatewayArgv); retryErr != nil {
		return fmt.Errorf("%w: %v (after ensure-exists retry)", ErrSpawnFailed, retryErr)
	}
	return nil
}

// buildSpawnArgs renders the gateway binary's command line: "-m <url>
// -u <principal> -v <volume> -g <gateway_name> -K <key_password> -P
// <pkey_pem>" plus a trailing mountpoint for UG.
func (r *Reconciler) buildSpawnArgs(kind string, desc credential.VolumeDescriptor, gatewayName, keyPassword, mountpoint string) (watchdogBinary string, gatewayArgv []string) {
	if kind == ugWatchdogKind {
		watchdogBinary = r.opts.UGWatchdogBinary
		gatewayArgv = []string{
			r.opts.UGGatewayBinary,
			"-m", desc.SyndicateURL,
			"-u", desc.VolumeOwnerID,
			"-v", desc.VolumeName,
			"-g", gatewayName,
			"-K", keyPassword,
			"-P", desc.PrincipalPKeyPEM,
			mountpoint,
		}
		return watchdogBinary, gatewayArgv
	}

	watchdogBinary = r.opts.RGWatchdogBinary
	gatewayArgv = []string{
		r.opts.RGGatewayBinary,
		"-m", desc.SyndicateURL,
		"-u", desc.VolumeOwnerID,
		"-v", desc.VolumeName,
		"-g", gatewayName,
		"-K", keyPassword,
		"-P", desc.PrincipalPKeyPEM,
	}
	return watchdogBinary, gatewayArgv
}

// stopUnauthorized sends SIGTERM to every running UG/RG watchdog whose
// volume isn't in target.
func (r *Reconciler) stopUnauthorized(ctx context.Context, target map[string]credential.VolumeDescriptor) (int, error) {
	stopped := 0
	var firstErr error

	for _, watchdogBinary := range []string{r.opts.UGWatchdogBinary, r.opts.RGWatchdogBinary} {
		pids, err := r.opts.Registry.Find(ctx, watchdogBinary, nil)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, pid := range pids {
			running, err := r.runningVolumeFor(ctx, pid)
			if err != nil || running == "" {
				continue
			}
			if _, ok := target[running]; ok {
				continue
			}
			if err := stopWatchdog(pid); err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("%w: pid %d: %v", ErrStopFailed, pid, err)
				}
				continue
			}
			stopped++
		}
	}
	return stopped, firstErr
}

// runningVolumeFor re-derives which volume a watchdog pid belongs to by
// re-listing processes and reading its attr tokens; GatewayRegistry
// holds no state of its own, the process table is authoritative.
func (r *Reconciler) runningVolumeFor(ctx context.Context, pid int32) (string, error) {
	procs, err := r.opts.Lister.ListProcesses(ctx)
	if err != nil {
		return "", err
	}
	for _, p := range procs {
		if p.Pid != pid {
			continue
		}
		attrs := probe.ParseAttrs(p.CmdlineTokens)
		return attrs["volume"], nil
	}
	return "", nil
}

func stopWatchdog(pid int32) error {
	err := syscall.Kill(int(pid), syscall.SIGTERM)
	if err == nil || err == syscall.ESRCH {
		return nil
	}
	return err
}
