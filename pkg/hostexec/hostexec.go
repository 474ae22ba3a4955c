// Package hostexec is the only component that touches the host OS. It
// wraps ip/iptables/sysctl/ip-netns-exec invocations and classifies
// their failures into typed outcomes the reconciler can treat as success
// (already-exists, not-found) or as a hard error.
package hostexec

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"

	"github.com/containernetworking/plugins/pkg/ns"
)

// Outcome classifies the result of a host operation.
type Outcome int

const (
	// OutcomeOK means the command succeeded.
	OutcomeOK Outcome = iota
	// OutcomeAlreadyExists means the command failed because the target
	// object already exists — idempotent callers may treat this as success.
	OutcomeAlreadyExists
	// OutcomeNotFound means the command failed because the target object
	// does not exist — idempotent delete callers may treat this as success.
	OutcomeNotFound
	// OutcomePermissionDenied means the command failed due to insufficient
	// privilege.
	OutcomePermissionDenied
	// OutcomeOther is any other failure.
	OutcomeOther
)

// Result captures a host command's outcome and captured output.
type Result struct {
	Outcome Outcome
	Output  string
	Err     error
}

// Succeeded reports whether the result should be treated as a successful
// step, including benign duplicate/not-found outcomes.
func (r Result) Succeeded() bool {
	return r.Outcome == OutcomeOK || r.Outcome == OutcomeAlreadyExists || r.Outcome == OutcomeNotFound
}

// Executor runs host network commands. Implementations shell out for
// link/namespace/NAT/filter management and use direct namespace entry
// only where shelling out is materially worse (spawning deploy-app
// processes).
type Executor struct{}

// New returns an Executor backed by ip/iptables/sysctl.
func New() *Executor {
	return &Executor{}
}

// run executes name with args, classifying failure text into an Outcome.
func (e *Executor) run(name string, args ...string) Result {
	cmd := exec.Command(name, args...)
	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))
	if err == nil {
		return Result{Outcome: OutcomeOK, Output: output}
	}
	return Result{Outcome: classify(output, err), Output: output, Err: fmt.Errorf("%s %s: %s", name, strings.Join(args, " "), output)}
}

func classify(output string, err error) Outcome {
	lower := strings.ToLower(output)
	switch {
	case strings.Contains(lower, "file exists"), strings.Contains(lower, "already exists"):
		return OutcomeAlreadyExists
	case strings.Contains(lower, "cannot find device"), strings.Contains(lower, "no such"), strings.Contains(lower, "does not exist"):
		return OutcomeNotFound
	case strings.Contains(lower, "operation not permitted"), strings.Contains(lower, "permission denied"):
		return OutcomePermissionDenied
	default:
		return OutcomeOther
	}
}

// --- link management ---

// EnsureBridge creates a bridge if missing and brings it up.
func (e *Executor) EnsureBridge(name string) Result {
	create := e.run("ip", "link", "add", "name", name, "type", "bridge")
	if !create.Succeeded() {
		return create
	}
	return e.run("ip", "link", "set", "dev", name, "up")
}

// AssignAddress assigns a CIDR address to a link.
func (e *Executor) AssignAddress(link string, addr *net.IPNet) Result {
	return e.run("ip", "addr", "add", addr.String(), "dev", link)
}

// SetLinkUp brings a link up.
func (e *Executor) SetLinkUp(link string) Result {
	return e.run("ip", "link", "set", "dev", link, "up")
}

// DeleteLink deletes a host-namespace link.
func (e *Executor) DeleteLink(name string) Result {
	return e.run("ip", "link", "del", "dev", name)
}

// ListLinksWithPrefix returns the names of every host-namespace link
// whose name starts with prefix, used to find bridges or veths left
// behind by a crashed or interrupted operation.
func (e *Executor) ListLinksWithPrefix(prefix string) ([]string, error) {
	r := e.run("ip", "-o", "link", "show")
	if !r.Succeeded() {
		return nil, r.Err
	}
	return parseLinkNames(r.Output, prefix), nil
}

// parseLinkNames extracts link names from `ip -o link show` output,
// keeping only those starting with prefix. Each line looks like:
// "3: vpc-prod-br: <BROADCAST,...> ..." or "4: veth-x@if5: ...".
func parseLinkNames(output, prefix string) []string {
	var names []string
	for _, line := range strings.Split(output, "\n") {
		fields := strings.SplitN(line, ":", 3)
		if len(fields) < 2 {
			continue
		}
		name := strings.TrimSpace(fields[1])
		if at := strings.Index(name, "@"); at != -1 {
			name = name[:at]
		}
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names
}

// CreateVethPair creates a host/namespace veth pair.
func (e *Executor) CreateVethPair(hostName, peerName string) Result {
	return e.run("ip", "link", "add", hostName, "type", "veth", "peer", "name", peerName)
}

// AttachToBridge sets a link's master to a bridge and brings it up.
func (e *Executor) AttachToBridge(link, bridge string) Result {
	r := e.run("ip", "link", "set", "dev", link, "master", bridge)
	if !r.Succeeded() {
		return r
	}
	return e.run("ip", "link", "set", "dev", link, "up")
}

// MoveToNamespace moves a link into a named network namespace.
func (e *Executor) MoveToNamespace(link, namespace string) Result {
	return e.run("ip", "link", "set", "dev", link, "netns", namespace)
}

// AddDefaultRouteInNamespace adds a default route via gateway inside the
// named subnet namespace.
func (e *Executor) AddDefaultRouteInNamespace(namespace string, gateway net.IP) Result {
	return e.ExecInNamespace(namespace, "ip", "route", "add", "default", "via", gateway.String())
}

// AddRoute adds a route to dst via gateway on the given link (used for
// peering route injection into a VPC's bridge scope).
func (e *Executor) AddRoute(dst *net.IPNet, gateway net.IP, link string) Result {
	args := []string{"route", "add", dst.String()}
	if gateway != nil {
		args = append(args, "via", gateway.String())
	}
	args = append(args, "dev", link)
	return e.run("ip", args...)
}

// --- namespace management ---

// AddNamespace creates a named network namespace.
func (e *Executor) AddNamespace(name string) Result {
	return e.run("ip", "netns", "add", name)
}

// DeleteNamespace deletes a named network namespace.
func (e *Executor) DeleteNamespace(name string) Result {
	return e.run("ip", "netns", "delete", name)
}

// ListNamespacesWithPrefix returns the names of every network namespace
// whose name starts with prefix.
func (e *Executor) ListNamespacesWithPrefix(prefix string) ([]string, error) {
	r := e.run("ip", "netns", "list")
	if !r.Succeeded() {
		return nil, r.Err
	}
	var names []string
	for _, line := range strings.Split(r.Output, "\n") {
		name := strings.TrimSpace(strings.SplitN(line, " ", 2)[0])
		if name == "" {
			continue
		}
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names, nil
}

// ExecInNamespace runs args inside the named namespace via ip netns exec.
func (e *Executor) ExecInNamespace(namespace string, args ...string) Result {
	full := append([]string{"netns", "exec", namespace}, args...)
	return e.run("ip", full...)
}

// --- NAT ---

// MasqueradeExists checks whether a POSTROUTING masquerade rule for
// source/outIface already exists.
func (e *Executor) MasqueradeExists(source *net.IPNet, outIface string) bool {
	r := e.run("iptables", "-t", "nat", "-C", "POSTROUTING", "-s", source.String(), "-o", outIface, "-j", "MASQUERADE")
	return r.Outcome == OutcomeOK
}

// EnsureMasquerade inserts a masquerade rule for source out outIface if
// one is not already present (check-then-insert, matching the reference
// idiom for idempotent iptables management).
func (e *Executor) EnsureMasquerade(source *net.IPNet, outIface string) Result {
	if e.MasqueradeExists(source, outIface) {
		return Result{Outcome: OutcomeAlreadyExists}
	}
	return e.run("iptables", "-t", "nat", "-A", "POSTROUTING", "-s", source.String(), "-o", outIface, "-j", "MASQUERADE")
}

// DeleteMasquerade removes a masquerade rule if present.
func (e *Executor) DeleteMasquerade(source *net.IPNet, outIface string) Result {
	return e.run("iptables", "-t", "nat", "-D", "POSTROUTING", "-s", source.String(), "-o", outIface, "-j", "MASQUERADE")
}

// --- packet filtering ---

// FilterRuleExists checks whether an equivalent rule is already present
// on chain.
func (e *Executor) FilterRuleExists(namespace, chain string, ruleArgs []string) bool {
	args := append([]string{"netns", "exec", namespace, "iptables", "-C", chain}, ruleArgs...)
	r := e.run("ip", args...)
	return r.Outcome == OutcomeOK
}

// InsertFilterRule inserts ruleArgs into chain inside namespace, at
// position, unless an equivalent rule is already present.
func (e *Executor) InsertFilterRule(namespace, chain string, position int, ruleArgs []string) Result {
	if e.FilterRuleExists(namespace, chain, ruleArgs) {
		return Result{Outcome: OutcomeAlreadyExists}
	}
	args := append([]string{"netns", "exec", namespace, "iptables", "-I", chain, fmt.Sprintf("%d", position)}, ruleArgs...)
	return e.run("ip", args...)
}

// DeleteFilterRule removes ruleArgs from chain inside namespace.
func (e *Executor) DeleteFilterRule(namespace, chain string, ruleArgs []string) Result {
	args := append([]string{"netns", "exec", namespace, "iptables", "-D", chain}, ruleArgs...)
	return e.run("ip", args...)
}

// --- sysctl ---

// EnableIPForwarding enables global IPv4 forwarding (idempotent).
func (e *Executor) EnableIPForwarding() Result {
	return e.run("sysctl", "-w", "net.ipv4.ip_forward=1")
}

// --- process spawning into a namespace ---

// SpawnInNamespace launches cmd with its network namespace set to the
// target subnet's namespace, detaches it from the parent, and returns its
// pid. It uses containernetworking/plugins' ns.GetNS/targetNS.Do to enter
// the namespace directly rather than shelling out to nsenter: this is the
// one place a direct kernel call is materially simpler than invoking a
// subprocess.
func SpawnInNamespace(ctx context.Context, namespace string, command []string) (pid int, err error) {
	if len(command) == 0 {
		return 0, errors.New("command is required")
	}

	nsPath := "/var/run/netns/" + namespace
	targetNS, err := ns.GetNS(nsPath)
	if err != nil {
		return 0, fmt.Errorf("open namespace %s: %w", namespace, err)
	}
	defer targetNS.Close()

	err = targetNS.Do(func(_ ns.NetNS) error {
		cmd := exec.CommandContext(ctx, command[0], command[1:]...)
		if startErr := cmd.Start(); startErr != nil {
			return startErr
		}
		pid = cmd.Process.Pid
		// Detach: release so the parent's wait4 does not reap the child;
		// the reconciler only records the pid, it does not supervise it.
		return cmd.Process.Release()
	})
	if err != nil {
		return 0, fmt.Errorf("spawn in namespace %s: %w", namespace, err)
	}
	return pid, nil
}
