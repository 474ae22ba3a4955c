package manifest

import (
	"context"
	"fmt"

	"github.com/vpcnet/vpcctl/pkg/reconciler"
	"github.com/vpcnet/vpcctl/pkg/vpcmodel"
)

// StepResult records the outcome of applying one manifest entry.
type StepResult struct {
	Kind  string // "vpc", "subnet", "peering"
	Name  string
	Err   error
}

// Summary is the outcome of applying a whole manifest: every step is
// attempted, and failures are collected rather than aborting the batch,
// matching the policy engine's skip-with-warning philosophy.
type Summary struct {
	Steps []StepResult
}

// Failed reports whether any step in the summary failed.
func (s Summary) Failed() bool {
	for _, step := range s.Steps {
		if step.Err != nil {
			return true
		}
	}
	return false
}

// Apply creates every VPC and subnet in m, then every peering, against r,
// in document order, recording one StepResult per attempt. A failed VPC
// creation (including ErrAlreadyExists on re-apply) skips that VPC's
// subnets but never aborts the rest of the manifest.
func Apply(ctx context.Context, r *reconciler.Reconciler, m *Manifest) Summary {
	var summary Summary

	for _, v := range m.VPCs {
		_, err := r.CreateVPC(ctx, v.Name, v.CIDR, v.InternetIface)
		summary.Steps = append(summary.Steps, StepResult{Kind: "vpc", Name: v.Name, Err: err})
		if err != nil {
			continue
		}
		for _, s := range v.Subnets {
			subnetType := vpcmodel.SubnetType(s.Type)
			_, err := r.AddSubnet(ctx, v.Name, s.Name, s.CIDR, subnetType)
			summary.Steps = append(summary.Steps, StepResult{
				Kind: "subnet",
				Name: fmt.Sprintf("%s/%s", v.Name, s.Name),
				Err:  err,
			})
		}
	}

	for _, p := range m.Peerings {
		err := r.Peer(ctx, p.VPCA, p.VPCB, p.AllowedCIDRs)
		summary.Steps = append(summary.Steps, StepResult{
			Kind: "peering",
			Name: fmt.Sprintf("%s<->%s", p.VPCA, p.VPCB),
			Err:  err,
		})
	}

	return summary
}
