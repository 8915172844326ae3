// Package reconcile implements the Reconciler: given a target set of
// volume descriptors, it ensures the required UG/RG watchdogs exist and
// are running, and stops those no longer authorized.
package reconcile

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// GatewayName derives a stable, deterministic gateway name from a
// namespace, gateway kind, volume name, and hostname. It carries no
// secret material, so it is safe to log and to pass on a watchdog's
// argv.
func GatewayName(namespace, kind, volumeName, hostname string) string {
	h := sha256.New()
	h.Write([]byte(namespace))
	h.Write([]byte{0})
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(volumeName))
	h.Write([]byte{0})
	h.Write([]byte(hostname))
	return hex.EncodeToString(h.Sum(nil))
}

// KeyPassword derives a gateway's key password from its name and the
// cached slice secret via a keyed hash. Unlike
// GatewayName this is secret-dependent and must never be logged.
func KeyPassword(gatewayName string, sliceSecret []byte) string {
	mac := hmac.New(sha256.New, sliceSecret)
	mac.Write([]byte(gatewayName))
	return hex.EncodeToString(mac.Sum(nil))
}

// RGHostname picks the hostname an RG advertises itself under: the real
// local hostname when the RG is meant to be publicly reachable,
// otherwise the loopback name so it's only addressable from this host.
func RGHostname(localHostname string, rgPublic bool) string {
	if rgPublic {
		return localHostname
	}
	return "localhost"
}
