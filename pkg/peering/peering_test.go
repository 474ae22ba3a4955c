package peering

import (
	"testing"

	"github.com/vpcnet/vpcctl/pkg/vpcmodel"
)

func TestCanonicalizeIsOrderIndependent(t *testing.T) {
	f1, s1 := Canonicalize("prod", "staging")
	f2, s2 := Canonicalize("staging", "prod")
	if f1 != f2 || s1 != s2 {
		t.Fatalf("canonicalization depends on argument order: (%s,%s) vs (%s,%s)", f1, s1, f2, s2)
	}
}

func TestLinkNamesAreDistinct(t *testing.T) {
	a, b := LinkNames("prod", "staging")
	if a == b {
		t.Fatalf("expected distinct link names, got %s twice", a)
	}
}

func TestRecordPeeringIsSymmetric(t *testing.T) {
	a := vpcmodel.NewVPC("prod", "10.20.0.0/16", "vpc-prod-br", "eth0")
	b := vpcmodel.NewVPC("staging", "10.30.0.0/16", "vpc-staging-br", "eth0")
	allowed := []string{"10.20.0.0/16", "10.30.0.0/16"}

	recordPeering(a, b, "peer-prod-staging", "peer-staging-prod", allowed)

	pa, ok := a.Peerings["staging"]
	if !ok {
		t.Fatal("expected prod to record peering with staging")
	}
	pb, ok := b.Peerings["prod"]
	if !ok {
		t.Fatal("expected staging to record peering with prod")
	}
	if len(pa.AllowedCIDRs) != len(pb.AllowedCIDRs) {
		t.Fatalf("allowed CIDRs not symmetric: %v vs %v", pa.AllowedCIDRs, pb.AllowedCIDRs)
	}
	if pa.LocalLink != pb.RemoteLink || pa.RemoteLink != pb.LocalLink {
		t.Fatalf("link names not mirrored: a=%+v b=%+v", pa, pb)
	}
}

func TestRemoveNonExistentPeeringIsNoOp(t *testing.T) {
	a := vpcmodel.NewVPC("prod", "10.20.0.0/16", "vpc-prod-br", "eth0")
	if err := Remove(nil, a, "nonexistent"); err != nil {
		t.Fatalf("Remove on absent peering should be a no-op: %v", err)
	}
}
