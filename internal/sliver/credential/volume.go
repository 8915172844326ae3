package credential

import (
	"encoding/json"
	"fmt"
	"strings"
)

// VolumeDescriptor is the decoded, unsealed shape of a single volume
// record: everything the Reconciler needs to derive gateway
// names, mountpoints, and the sensitive command lines handed to the
// watchdogs. Field names mirror the wire keys so grounding against the
// Observer's response stays obvious at a glance.
type VolumeDescriptor struct {
	VolumeName       string
	VolumeOwnerID    string
	SyndicateURL     string
	SliceUGPort      string
	PrincipalPKeyPEM string
}

const (
	keyVolumeName    = "OPENCLOUD_VOLUME_NAME"
	keyVolumeOwnerID = "OPENCLOUD_VOLUME_OWNER_ID"
	keySyndicateURL  = "OPENCLOUD_SYNDICATE_URL"
	keySliceUGPort   = "OPENCLOUD_SLICE_UG_PORT"
	keyPrincipalPKey = "OPENCLOUD_PRINCIPAL_PKEY_PEM"
)

var requiredVolumeKeys = []string{
	keyVolumeName,
	keyVolumeOwnerID,
	keySyndicateURL,
	keySliceUGPort,
	keyPrincipalPKey,
}

// ParseVolumeList decodes the plaintext of the slice's volume list
// (already verified and unsealed) into the set of volume names the
// Observer wants this host to run.
func ParseVolumeList(plaintext []byte) ([]string, error) {
	var names []string
	if err := json.Unmarshal(plaintext, &names); err != nil {
		return nil, fmt.Errorf("%w: volume list: %v", ErrMalformedData, err)
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// ParseVolumeRecord decodes the plaintext of a single volume record
// (already verified and unsealed) into a VolumeDescriptor, rejecting
// anything missing one of the required keys.
func ParseVolumeRecord(plaintext []byte) (VolumeDescriptor, error) {
	var raw map[string]string
	if err := json.Unmarshal(plaintext, &raw); err != nil {
		return VolumeDescriptor{}, fmt.Errorf("%w: volume record: %v", ErrMalformedData, err)
	}
	for _, key := range requiredVolumeKeys {
		if strings.TrimSpace(raw[key]) == "" {
			return VolumeDescriptor{}, fmt.Errorf("%w: missing %s", ErrMalformedData, key)
		}
	}
	return VolumeDescriptor{
		VolumeName:       raw[keyVolumeName],
		VolumeOwnerID:    raw[keyVolumeOwnerID],
		SyndicateURL:     raw[keySyndicateURL],
		SliceUGPort:      raw[keySliceUGPort],
		PrincipalPKeyPEM: raw[keyPrincipalPKey],
	}, nil
}

// MountSuffix returns the volume name with path separators folded into
// dots, the form used to build the per-volume mountpoint directory:
// "lab/project" becomes "lab.project".
func (v VolumeDescriptor) MountSuffix() string {
	return strings.ReplaceAll(v.VolumeName, "/", ".")
}
