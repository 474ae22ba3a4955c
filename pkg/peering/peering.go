// Package peering establishes and tears down bidirectional bridge-to-bridge
// links between two VPCs, with allowlisted route injection.
package peering

import (
	"fmt"
	"net"
	"sort"

	"github.com/vpcnet/vpcctl/pkg/hostexec"
	"github.com/vpcnet/vpcctl/pkg/namer"
	"github.com/vpcnet/vpcctl/pkg/vpcmodel"
)

// Canonicalize orders two VPC names lexicographically so every caller
// derives the same peering identity regardless of argument order.
func Canonicalize(a, b string) (first, second string) {
	names := []string{a, b}
	sort.Strings(names)
	return names[0], names[1]
}

// LinkNames returns the two peering endpoint names for the canonically
// ordered pair (a, b): a's link faces b, b's link faces a.
func LinkNames(a, b string) (aLink, bLink string) {
	return namer.PeerLink(a, b), namer.PeerLink(b, a)
}

// Create establishes a peering between two already-realized VPCs: a veth
// pair is created (if absent), each endpoint attached to its own VPC's
// bridge, and a route to each allowed CIDR is installed on the opposite
// bridge so traffic destined for the other VPC's addresses crosses the
// peering link.
func Create(exec *hostexec.Executor, a, b *vpcmodel.VPC, allowedCIDRs []string) error {
	if a.Name == b.Name {
		return fmt.Errorf("cannot peer vpc %q with itself", a.Name)
	}

	first, second := Canonicalize(a.Name, b.Name)
	firstVPC, secondVPC := a, b
	if first != a.Name {
		firstVPC, secondVPC = b, a
	}

	firstLink, secondLink := LinkNames(first, second)

	if r := exec.CreateVethPair(firstLink, secondLink); !r.Succeeded() {
		return fmt.Errorf("create peering veth pair %s/%s: %w", firstLink, secondLink, r.Err)
	}
	if r := exec.AttachToBridge(firstLink, firstVPC.Bridge); !r.Succeeded() {
		return fmt.Errorf("attach %s to bridge %s: %w", firstLink, firstVPC.Bridge, r.Err)
	}
	if r := exec.AttachToBridge(secondLink, secondVPC.Bridge); !r.Succeeded() {
		return fmt.Errorf("attach %s to bridge %s: %w", secondLink, secondVPC.Bridge, r.Err)
	}

	for _, cidrStr := range allowedCIDRs {
		_, cidr, err := net.ParseCIDR(cidrStr)
		if err != nil {
			return fmt.Errorf("invalid allowed cidr %q: %w", cidrStr, err)
		}
		if r := exec.AddRoute(cidr, nil, firstLink); !r.Succeeded() {
			return fmt.Errorf("add route %s via %s: %w", cidrStr, firstLink, r.Err)
		}
		if r := exec.AddRoute(cidr, nil, secondLink); !r.Succeeded() {
			return fmt.Errorf("add route %s via %s: %w", cidrStr, secondLink, r.Err)
		}
	}

	recordPeering(a, b, firstLink, secondLink, allowedCIDRs)
	return nil
}

// recordPeering writes symmetric peering records into both VPCs' state,
// satisfying the invariant that if A records a peering with B, B records
// the mirrored peering with A (link names swapped, identical allowed CIDRs).
func recordPeering(a, b *vpcmodel.VPC, firstLink, secondLink string, allowedCIDRs []string) {
	first, _ := Canonicalize(a.Name, b.Name)

	aLink, bLink := firstLink, secondLink
	if first != a.Name {
		aLink, bLink = secondLink, firstLink
	}

	a.Peerings[b.Name] = &vpcmodel.Peering{
		PeerVPC:      b.Name,
		LocalLink:    aLink,
		RemoteLink:   bLink,
		AllowedCIDRs: allowedCIDRs,
	}
	b.Peerings[a.Name] = &vpcmodel.Peering{
		PeerVPC:      a.Name,
		LocalLink:    bLink,
		RemoteLink:   aLink,
		AllowedCIDRs: allowedCIDRs,
	}
}

// Remove tears down a's peering link with peerName, best-effort: not-found
// outcomes are treated as success. The caller is responsible for also
// removing the symmetric record from the peer VPC.
func Remove(exec *hostexec.Executor, a *vpcmodel.VPC, peerName string) error {
	p, ok := a.Peerings[peerName]
	if !ok {
		return nil
	}
	if r := exec.DeleteLink(p.LocalLink); !r.Succeeded() {
		return fmt.Errorf("delete peering link %s: %w", p.LocalLink, r.Err)
	}
	delete(a.Peerings, peerName)
	return nil
}
