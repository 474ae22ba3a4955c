package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vpcnet/vpcctl/pkg/hostexec"
	"github.com/vpcnet/vpcctl/pkg/store"
	"github.com/vpcnet/vpcctl/pkg/util"
	"github.com/vpcnet/vpcctl/pkg/vpcmodel"
)

// newTestReconciler returns a Reconciler rooted at a temp directory. The
// real hostexec.Executor shells out to ip/iptables, which is not available
// in a test sandbox; every test here exercises only the validation and
// record-bookkeeping paths that return before the first executor call.
func newTestReconciler(t *testing.T) *Reconciler {
	t.Helper()
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return New(st, hostexec.New(), time.Second)
}

func TestCreateVPCRejectsDuplicateName(t *testing.T) {
	r := newTestReconciler(t)
	v := vpcmodel.NewVPC("prod", "10.20.0.0/16", "vpc-prod-br", "eth0")
	if err := r.store.Put(v); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	_, err := r.CreateVPC(context.Background(), "prod", "10.30.0.0/16", "eth0")
	if !errors.Is(err, util.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestCreateVPCRejectsInvalidCIDR(t *testing.T) {
	r := newTestReconciler(t)
	_, err := r.CreateVPC(context.Background(), "prod", "not-a-cidr", "eth0")
	if err == nil {
		t.Fatal("expected validation error for malformed cidr")
	}
}

func TestCreateVPCRejectsOverlapWithExisting(t *testing.T) {
	r := newTestReconciler(t)
	v := vpcmodel.NewVPC("prod", "10.20.0.0/16", "vpc-prod-br", "eth0")
	if err := r.store.Put(v); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	_, err := r.CreateVPC(context.Background(), "staging", "10.20.0.0/16", "eth0")
	if err == nil {
		t.Fatal("expected overlap validation error")
	}
}

func TestAddSubnetRejectsUnknownVPC(t *testing.T) {
	r := newTestReconciler(t)
	_, err := r.AddSubnet(context.Background(), "nope", "web", "10.20.1.0/24", vpcmodel.SubnetPublic)
	if !errors.Is(err, util.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAddSubnetRejectsDuplicateName(t *testing.T) {
	r := newTestReconciler(t)
	v := vpcmodel.NewVPC("prod", "10.20.0.0/16", "vpc-prod-br", "eth0")
	v.Subnets["web"] = &vpcmodel.Subnet{Name: "web", CIDR: "10.20.1.0/24"}
	if err := r.store.Put(v); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	_, err := r.AddSubnet(context.Background(), "prod", "web", "10.20.2.0/24", vpcmodel.SubnetPrivate)
	if !errors.Is(err, util.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestAddSubnetRejectsCIDRNotContainedInVPC(t *testing.T) {
	r := newTestReconciler(t)
	v := vpcmodel.NewVPC("prod", "10.20.0.0/16", "vpc-prod-br", "eth0")
	if err := r.store.Put(v); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	_, err := r.AddSubnet(context.Background(), "prod", "web", "10.99.1.0/24", vpcmodel.SubnetPrivate)
	if err == nil {
		t.Fatal("expected containment validation error")
	}
}

func TestDeployAppRejectsUnknownSubnet(t *testing.T) {
	r := newTestReconciler(t)
	v := vpcmodel.NewVPC("prod", "10.20.0.0/16", "vpc-prod-br", "eth0")
	if err := r.store.Put(v); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	_, err := r.DeployApp(context.Background(), "prod", "nope", "nginx", []string{"nginx"})
	if !errors.Is(err, util.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestApplyPolicyNoMatchingSubnetIsNoOp(t *testing.T) {
	r := newTestReconciler(t)
	v := vpcmodel.NewVPC("prod", "10.20.0.0/16", "vpc-prod-br", "eth0")
	v.Subnets["web"] = &vpcmodel.Subnet{Name: "web", CIDR: "10.20.1.0/24", Namespace: "vpc-prod-ns-web"}
	if err := r.store.Put(v); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	warnings, err := r.ApplyPolicy(context.Background(), vpcmodel.PolicyTarget{Subnet: "10.20.99.0/24"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
}

func TestPeerRejectsUnknownVPC(t *testing.T) {
	r := newTestReconciler(t)
	err := r.Peer(context.Background(), "prod", "staging", nil)
	if !errors.Is(err, util.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPeerRejectsSelfPeering(t *testing.T) {
	r := newTestReconciler(t)
	v := vpcmodel.NewVPC("prod", "10.20.0.0/16", "vpc-prod-br", "eth0")
	if err := r.store.Put(v); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	err := r.Peer(context.Background(), "prod", "prod", nil)
	if !errors.Is(err, util.ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed, got %v", err)
	}
}

func TestInspectAndListVPCs(t *testing.T) {
	r := newTestReconciler(t)
	a := vpcmodel.NewVPC("prod", "10.20.0.0/16", "vpc-prod-br", "eth0")
	b := vpcmodel.NewVPC("staging", "10.30.0.0/16", "vpc-staging-br", "eth0")
	if err := r.store.Put(a); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	if err := r.store.Put(b); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	vpcs, err := r.ListVPCs()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vpcs) != 2 {
		t.Fatalf("expected 2 vpcs, got %d", len(vpcs))
	}

	v, err := r.Inspect("prod")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Name != "prod" {
		t.Fatalf("expected prod, got %s", v.Name)
	}
}

func TestDeleteVPCOnAbsentRecordIsNoOp(t *testing.T) {
	r := newTestReconciler(t)
	errs := r.DeleteVPC(context.Background(), "nope")
	if len(errs) != 0 {
		t.Fatalf("expected no errors for absent vpc, got %v", errs)
	}
}
