package vpcmodel

import (
	"testing"
	"time"
)

func TestNewVPC(t *testing.T) {
	v := NewVPC("prod", "10.20.0.0/16", "vpc-prod-br", "eth0")
	if v.Name != "prod" || v.CIDR != "10.20.0.0/16" {
		t.Fatalf("unexpected VPC: %+v", v)
	}
	if v.Subnets == nil || v.Peerings == nil {
		t.Fatal("NewVPC must initialize maps")
	}
	if v.CreatedAt.IsZero() || v.UpdatedAt.IsZero() {
		t.Fatal("NewVPC must stamp timestamps")
	}
}

func TestVPCTouchUpdatesTimestamp(t *testing.T) {
	v := NewVPC("prod", "10.20.0.0/16", "vpc-prod-br", "eth0")
	before := v.UpdatedAt
	defer func() { timeNow = time.Now }()
	timeNow = func() time.Time { return before.Add(time.Second) }
	v.Touch()
	if !v.UpdatedAt.After(before) {
		t.Fatalf("Touch did not advance UpdatedAt: before=%v after=%v", before, v.UpdatedAt)
	}
}

func TestSiblingCIDRs(t *testing.T) {
	v := NewVPC("prod", "10.20.0.0/16", "vpc-prod-br", "eth0")
	v.Subnets["public"] = &Subnet{Name: "public", CIDR: "10.20.1.0/24"}
	v.Subnets["private"] = &Subnet{Name: "private", CIDR: "10.20.2.0/24"}

	siblings := v.SiblingCIDRs("public")
	if len(siblings) != 1 || siblings[0] != "10.20.2.0/24" {
		t.Fatalf("expected only private CIDR, got %v", siblings)
	}
}
