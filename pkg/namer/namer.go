// Package namer derives deterministic, kernel-safe names for every
// object the reconciler creates: bridges, namespaces, veth endpoints, and
// peering links. The Linux kernel caps link names at 15 bytes, so any
// name that would overflow is hash-truncated to a fixed-width suffix.
package namer

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// linkNameMaxLen is the kernel's IFNAMSIZ-derived limit on interface and
// bridge names.
const linkNameMaxLen = 15

// hashSuffixLen is the number of hex characters kept when a name must be
// truncated.
const hashSuffixLen = 6

// Bridge returns the bridge object-name for a VPC: vpc-<vpc>-br.
func Bridge(vpc string) string {
	return truncate("vpc-", vpc+"-br")
}

// Namespace returns the namespace object-name for a subnet: vpc-<vpc>-ns-<subnet>.
func Namespace(vpc, subnet string) string {
	return truncate("vpc-", vpc+"-ns-"+subnet)
}

// HostVeth returns the host-side veth name for a subnet: veth-<vpc>-<subnet>.
func HostVeth(vpc, subnet string) string {
	return truncate("veth-", vpc+"-"+subnet)
}

// NSVeth returns the namespace-side veth name for a subnet: veth-ns-<subnet>.
func NSVeth(subnet string) string {
	return truncate("veth-", "ns-"+subnet)
}

// PeerLink returns the peering endpoint name owned by "owner", facing "peer":
// peer-<owner>-<peer>. Callers canonicalize (a,b) ordering themselves;
// PeerLink names one side at a time so both endpoints of a pairing can be
// derived with two calls.
func PeerLink(owner, peer string) string {
	return truncate("peer-", owner+"-"+peer)
}

// truncate builds prefix+variable, hash-truncating the variable segment
// to a deterministic 6-character hex digest if the full name would
// exceed the kernel's link-name limit. The prefix is always preserved so
// the object's type tag survives truncation.
func truncate(prefix, variable string) string {
	full := prefix + variable
	if len(full) <= linkNameMaxLen {
		return full
	}

	maxVarLen := linkNameMaxLen - len(prefix)
	if maxVarLen > hashSuffixLen {
		maxVarLen = hashSuffixLen
	}
	if maxVarLen < 1 {
		maxVarLen = 1
	}

	hash := sha1.Sum([]byte(variable))
	digest := hex.EncodeToString(hash[:])
	return fmt.Sprintf("%s%s", prefix, digest[:maxVarLen])
}
