// Package policy compiles declarative ingress/egress rule documents into
// ordered packet-filter commands scoped to a subnet's namespace.
package policy

import (
	"encoding/json"
	"fmt"
	"net"
	"os"

	"github.com/vpcnet/vpcctl/pkg/hostexec"
	"github.com/vpcnet/vpcctl/pkg/util"
	"github.com/vpcnet/vpcctl/pkg/vpcmodel"
)

// LoadDocument reads and validates a policy file: a top-level JSON array
// of PolicyTarget objects.
func LoadDocument(path string) ([]vpcmodel.PolicyTarget, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file %s: %w", path, err)
	}
	var targets []vpcmodel.PolicyTarget
	if err := json.Unmarshal(data, &targets); err != nil {
		return nil, fmt.Errorf("parsing policy file %s: %w", path, err)
	}
	if err := ValidateDocument(targets); err != nil {
		return nil, err
	}
	return targets, nil
}

// chainIngress and chainEgress are the iptables chains each rule
// direction compiles to.
const (
	chainIngress = "INPUT"
	chainEgress  = "OUTPUT"
)

var validProtocols = map[string]bool{"tcp": true, "udp": true, "icmp": true, "any": true}

// Warning describes a rule that was skipped rather than aborting the batch.
type Warning struct {
	Subnet string
	Rule   vpcmodel.PolicyRule
	Reason string
}

// Apply compiles target's ingress and egress rules into namespace chain
// entries, in listed order, using check-then-insert so repeated applies
// are idempotent. Rules with unknown protocols are skipped with a
// warning rather than aborting the rest of the target.
func Apply(exec *hostexec.Executor, namespace string, target vpcmodel.PolicyTarget) ([]Warning, error) {
	var warnings []Warning

	applyDirection := func(chain string, rules []vpcmodel.PolicyRule) error {
		position := 1
		for i, rule := range rules {
			if !validProtocols[rule.Protocol] {
				warnings = append(warnings, Warning{Subnet: target.Subnet, Rule: rule, Reason: "unknown protocol"})
				continue
			}
			args := ruleArgs(rule)
			// Rules are inserted in listed order; inserting each at the
			// head after the previous keeps the final chain order equal
			// to the documented order (insert position 1 for the first
			// compiled rule, then immediately after it for the next, and
			// so on; skipped rules take no position).
			r := exec.InsertFilterRule(namespace, chain, position, args)
			if !r.Succeeded() {
				return fmt.Errorf("insert %s rule %d for subnet %s: %w", chain, i, target.Subnet, r.Err)
			}
			position++
		}
		return nil
	}

	if err := applyDirection(chainIngress, target.Ingress); err != nil {
		return warnings, err
	}
	if err := applyDirection(chainEgress, target.Egress); err != nil {
		return warnings, err
	}
	return warnings, nil
}

// ruleArgs renders a PolicyRule into iptables match + action arguments.
func ruleArgs(rule vpcmodel.PolicyRule) []string {
	var args []string
	if rule.Protocol != "any" {
		args = append(args, "-p", rule.Protocol)
		if rule.Port != "" && rule.Port != "any" {
			args = append(args, "--dport", rule.Port)
		}
	}
	action := "ACCEPT"
	if rule.Action == "deny" {
		action = "DROP"
	}
	args = append(args, "-j", action)
	return args
}

// ValidateDocument checks structural validity of a parsed policy document
// before any rule is applied (cidr well-formed, action recognized).
func ValidateDocument(targets []vpcmodel.PolicyTarget) error {
	v := &util.ValidationBuilder{}
	for i, t := range targets {
		v.Add(t.Subnet != "", fmt.Sprintf("policy entry %d: subnet is required", i))
		_, _, cidrErr := net.ParseCIDR(t.Subnet)
		v.Add(t.Subnet == "" || cidrErr == nil, fmt.Sprintf("policy entry %d: subnet %q is not a valid CIDR", i, t.Subnet))
		for _, r := range append(append([]vpcmodel.PolicyRule{}, t.Ingress...), t.Egress...) {
			v.Add(r.Action == "allow" || r.Action == "deny", fmt.Sprintf("policy entry %d: action %q must be allow or deny", i, r.Action))
		}
	}
	return v.Build()
}
