// Package addrplan validates VPC and subnet CIDR blocks and derives the
// gateway and host addresses the reconciler assigns to bridges and
// namespaces.
package addrplan

import (
	"fmt"
	"net"

	"github.com/vpcnet/vpcctl/pkg/util"
)

const (
	minPrefixLen = 8
	maxPrefixLen = 28
)

// ValidateBlock checks that cidr is a canonical IPv4 CIDR with a prefix
// length in [8, 28].
func ValidateBlock(cidr string) (*net.IPNet, error) {
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, util.NewValidationError(fmt.Sprintf("cidr %q is invalid: %v", cidr, err))
	}
	if ip.To4() == nil {
		return nil, util.NewValidationError(fmt.Sprintf("cidr %q is not IPv4", cidr))
	}
	if !ip.Equal(ipnet.IP) {
		return nil, util.NewValidationError(fmt.Sprintf("cidr %q is not in canonical network form", cidr))
	}
	ones, _ := ipnet.Mask.Size()
	if ones < minPrefixLen || ones > maxPrefixLen {
		return nil, util.NewValidationError(fmt.Sprintf("cidr %q prefix length %d out of range [%d,%d]", cidr, ones, minPrefixLen, maxPrefixLen))
	}
	return ipnet, nil
}

// Contains reports whether inner is strictly contained in outer: every
// address of inner is inside outer, and inner is more specific.
func Contains(outer, inner *net.IPNet) bool {
	outerOnes, _ := outer.Mask.Size()
	innerOnes, _ := inner.Mask.Size()
	if innerOnes <= outerOnes {
		return false
	}
	return outer.Contains(inner.IP)
}

// Overlaps reports whether a and b share any address.
func Overlaps(a, b *net.IPNet) bool {
	return a.Contains(b.IP) || b.Contains(a.IP)
}

// Gateway returns the first usable host address of block (network + 1).
func Gateway(block *net.IPNet) net.IP {
	return uintToIPv4(ipv4ToUint(block.IP) + 1)
}

// HostIP returns the second usable host address of block (network + 2).
func HostIP(block *net.IPNet) net.IP {
	return uintToIPv4(ipv4ToUint(block.IP) + 2)
}

// PlanVPC validates cidr and ensures it overlaps none of existing.
func PlanVPC(cidr string, existing []string) (*net.IPNet, error) {
	block, err := ValidateBlock(cidr)
	if err != nil {
		return nil, err
	}
	for _, other := range existing {
		otherBlock, err := ValidateBlock(other)
		if err != nil {
			continue
		}
		if Overlaps(block, otherBlock) {
			return nil, util.NewValidationError(fmt.Sprintf("cidr %q overlaps existing VPC block %q", cidr, other))
		}
	}
	return block, nil
}

// PlanSubnet validates subnetCIDR against containment in vpcCIDR and
// non-overlap with sibling subnet CIDRs.
func PlanSubnet(vpcCIDR, subnetCIDR string, siblings []string) (*net.IPNet, error) {
	vpcBlock, err := ValidateBlock(vpcCIDR)
	if err != nil {
		return nil, err
	}
	subnetBlock, err := ValidateBlock(subnetCIDR)
	if err != nil {
		return nil, err
	}
	if !Contains(vpcBlock, subnetBlock) {
		return nil, util.NewValidationError(fmt.Sprintf("subnet cidr %q is not strictly contained in vpc cidr %q", subnetCIDR, vpcCIDR))
	}
	for _, sibling := range siblings {
		siblingBlock, err := ValidateBlock(sibling)
		if err != nil {
			continue
		}
		if Overlaps(subnetBlock, siblingBlock) {
			return nil, util.NewValidationError(fmt.Sprintf("subnet cidr %q overlaps sibling subnet %q", subnetCIDR, sibling))
		}
	}
	return subnetBlock, nil
}

func ipv4ToUint(ip net.IP) uint32 {
	ip = ip.To4()
	return uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])
}

func uintToIPv4(v uint32) net.IP {
	return net.IPv4(byte(v>>24), byte(v>>16), byte(v>>8), byte(v)).To4()
}
