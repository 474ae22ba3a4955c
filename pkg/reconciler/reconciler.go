// Package reconciler translates desired VPC operations into idempotent
// sequences of Host Executor calls: it creates, mutates, and reverses
// kernel objects, and is the only component that writes committed state
// after kernel mutation succeeds.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/vpcnet/vpcctl/pkg/addrplan"
	"github.com/vpcnet/vpcctl/pkg/hostexec"
	"github.com/vpcnet/vpcctl/pkg/lock"
	"github.com/vpcnet/vpcctl/pkg/namer"
	"github.com/vpcnet/vpcctl/pkg/peering"
	"github.com/vpcnet/vpcctl/pkg/policy"
	"github.com/vpcnet/vpcctl/pkg/store"
	"github.com/vpcnet/vpcctl/pkg/util"
	"github.com/vpcnet/vpcctl/pkg/vpcmodel"
)

// Reconciler owns the state store and executor and exposes one method
// per user verb.
type Reconciler struct {
	store       *store.Store
	exec        *hostexec.Executor
	lockTimeout time.Duration
}

// New returns a Reconciler backed by st and exec, acquiring locks with
// lockTimeout.
func New(st *store.Store, exec *hostexec.Executor, lockTimeout time.Duration) *Reconciler {
	return &Reconciler{store: st, exec: exec, lockTimeout: lockTimeout}
}

func (r *Reconciler) withVPCLock(ctx context.Context, name string, fn func() error) error {
	l, err := lock.AcquireVPC(ctx, r.store.Dir(), name, r.lockTimeout)
	if err != nil {
		return fmt.Errorf("acquire lock for %s: %w", name, err)
	}
	defer l.Release()
	return fn()
}

func (r *Reconciler) withGlobalLock(ctx context.Context, fn func() error) error {
	l, err := lock.AcquireGlobal(ctx, r.store.Dir(), r.lockTimeout)
	if err != nil {
		return fmt.Errorf("acquire global lock: %w", err)
	}
	defer l.Release()
	return fn()
}

// CreateVPC validates cidr against existing VPCs, ensures the bridge
// exists with the gateway address assigned and up, enables IPv4
// forwarding, and writes the VPC record.
func (r *Reconciler) CreateVPC(ctx context.Context, name, cidr, internetIface string) (*vpcmodel.VPC, error) {
	var result *vpcmodel.VPC
	err := r.withVPCLock(ctx, name, func() error {
		if r.store.Exists(name) {
			return fmt.Errorf("vpc %q: %w", name, util.ErrAlreadyExists)
		}

		existing, err := r.store.List()
		if err != nil {
			return err
		}
		existingCIDRs := make([]string, 0, len(existing))
		for _, v := range existing {
			existingCIDRs = append(existingCIDRs, v.CIDR)
		}

		block, err := addrplan.PlanVPC(cidr, existingCIDRs)
		if err != nil {
			return err
		}

		bridge := namer.Bridge(name)
		var rb rollback

		if res := r.exec.EnsureBridge(bridge); !res.Succeeded() {
			return fmt.Errorf("ensure bridge %s: %w", bridge, res.Err)
		}
		rb.push(func() { r.exec.DeleteLink(bridge) })

		gateway := addrplan.Gateway(block)
		gatewayNet := &net.IPNet{IP: gateway, Mask: block.Mask}
		if res := r.exec.AssignAddress(bridge, gatewayNet); !res.Succeeded() {
			rb.Unwind()
			return fmt.Errorf("assign gateway %s to bridge %s: %w", gatewayNet, bridge, res.Err)
		}
		if res := r.exec.SetLinkUp(bridge); !res.Succeeded() {
			rb.Unwind()
			return fmt.Errorf("set bridge %s up: %w", bridge, res.Err)
		}
		if res := r.exec.EnableIPForwarding(); !res.Succeeded() {
			rb.Unwind()
			return fmt.Errorf("enable ip forwarding: %w", res.Err)
		}

		v := vpcmodel.NewVPC(name, cidr, bridge, internetIface)
		if err := r.store.Put(v); err != nil {
			rb.Unwind()
			return fmt.Errorf("persist vpc record: %w", err)
		}
		rb.disarm()
		result = v
		return nil
	})
	return result, err
}

// AddSubnet creates a namespace, veth pair, assigns addressing, installs
// a default route, and (for public subnets) a NAT rule, then updates the
// VPC record.
func (r *Reconciler) AddSubnet(ctx context.Context, vpcName, subnetName, cidr string, subnetType vpcmodel.SubnetType) (*vpcmodel.Subnet, error) {
	var result *vpcmodel.Subnet
	err := r.withVPCLock(ctx, vpcName, func() error {
		v, err := r.store.Get(vpcName)
		if err != nil {
			return err
		}
		if _, exists := v.Subnets[subnetName]; exists {
			return fmt.Errorf("subnet %q in vpc %q: %w", subnetName, vpcName, util.ErrAlreadyExists)
		}

		subnetBlock, err := addrplan.PlanSubnet(v.CIDR, cidr, v.SiblingCIDRs(""))
		if err != nil {
			return err
		}

		namespace := namer.Namespace(vpcName, subnetName)
		hostVeth := namer.HostVeth(vpcName, subnetName)
		nsVeth := namer.NSVeth(subnetName)

		var rb rollback

		if res := r.exec.AddNamespace(namespace); !res.Succeeded() {
			return fmt.Errorf("create namespace %s: %w", namespace, res.Err)
		}
		rb.push(func() { r.exec.DeleteNamespace(namespace) })

		if res := r.exec.CreateVethPair(hostVeth, nsVeth); !res.Succeeded() {
			rb.Unwind()
			return fmt.Errorf("create veth pair %s/%s: %w", hostVeth, nsVeth, res.Err)
		}
		rb.push(func() { r.exec.DeleteLink(hostVeth) })

		if res := r.exec.AttachToBridge(hostVeth, v.Bridge); !res.Succeeded() {
			rb.Unwind()
			return fmt.Errorf("attach %s to bridge %s: %w", hostVeth, v.Bridge, res.Err)
		}

		if res := r.exec.MoveToNamespace(nsVeth, namespace); !res.Succeeded() {
			rb.Unwind()
			return fmt.Errorf("move %s into %s: %w", nsVeth, namespace, res.Err)
		}

		hostIP := addrplan.HostIP(subnetBlock)
		ones, _ := subnetBlock.Mask.Size()
		hostIPNet := &net.IPNet{IP: hostIP, Mask: subnetBlock.Mask}

		if res := r.exec.ExecInNamespace(namespace, "ip", "link", "set", "dev", nsVeth, "up"); !res.Succeeded() {
			rb.Unwind()
			return fmt.Errorf("bring up %s in %s: %w", nsVeth, namespace, res.Err)
		}
		if res := r.exec.ExecInNamespace(namespace, "ip", "link", "set", "dev", "lo", "up"); !res.Succeeded() {
			rb.Unwind()
			return fmt.Errorf("bring up loopback in %s: %w", namespace, res.Err)
		}
		if res := r.exec.ExecInNamespace(namespace, "ip", "addr", "add", hostIPNet.String(), "dev", nsVeth); !res.Succeeded() {
			rb.Unwind()
			return fmt.Errorf("assign %s to %s in %s: %w", hostIPNet, nsVeth, namespace, res.Err)
		}

		gateway := addrplan.Gateway(subnetBlock)
		if res := r.exec.AddDefaultRouteInNamespace(namespace, gateway); !res.Succeeded() {
			rb.Unwind()
			return fmt.Errorf("add default route via %s in %s: %w", gateway, namespace, res.Err)
		}

		natInserted := false
		if subnetType == vpcmodel.SubnetPublic {
			if res := r.exec.EnsureMasquerade(subnetBlock, v.InternetIface); !res.Succeeded() {
				rb.Unwind()
				return fmt.Errorf("insert NAT rule for %s: %w", subnetBlock, res.Err)
			}
			natInserted = true
		}

		subnet := &vpcmodel.Subnet{
			Name:        subnetName,
			CIDR:        cidr,
			Type:        subnetType,
			Namespace:   namespace,
			HostVeth:    hostVeth,
			NSVeth:      nsVeth,
			Gateway:     gateway.String(),
			HostIP:      fmt.Sprintf("%s/%d", hostIP.String(), ones),
			NATInserted: natInserted,
		}
		v.Subnets[subnetName] = subnet
		v.Touch()
		if err := r.store.Put(v); err != nil {
			rb.Unwind()
			return fmt.Errorf("persist vpc record: %w", err)
		}
		rb.disarm()
		result = subnet
		return nil
	})
	return result, err
}

// DeployApp spawns cmd with its network namespace set to the subnet's
// namespace and records the resulting pid. Failure to spawn never
// mutates kernel state that needs reversing: the process either starts
// or it doesn't.
func (r *Reconciler) DeployApp(ctx context.Context, vpcName, subnetName, appName string, command []string) (*vpcmodel.Application, error) {
	var result *vpcmodel.Application
	err := r.withVPCLock(ctx, vpcName, func() error {
		v, err := r.store.Get(vpcName)
		if err != nil {
			return err
		}
		subnet, ok := v.Subnets[subnetName]
		if !ok {
			return fmt.Errorf("subnet %q in vpc %q: %w", subnetName, vpcName, util.ErrNotFound)
		}

		pid, err := hostexec.SpawnInNamespace(ctx, subnet.Namespace, command)
		if err != nil {
			return fmt.Errorf("spawn app %s: %w", appName, err)
		}

		app := vpcmodel.Application{Name: appName, Command: joinCommand(command), PID: pid}
		subnet.Apps = append(subnet.Apps, app)
		v.Touch()
		if err := r.store.Put(v); err != nil {
			return fmt.Errorf("persist vpc record: %w", err)
		}
		result = &app
		return nil
	})
	return result, err
}

func joinCommand(command []string) string {
	out := ""
	for i, part := range command {
		if i > 0 {
			out += " "
		}
		out += part
	}
	return out
}

// ApplyPolicy enumerates every VPC record and, for each subnet whose CIDR
// equals target.Subnet, compiles target's rules onto that namespace.
// Rules that cannot be compiled are skipped with a warning; the batch
// never aborts because of one bad rule.
func (r *Reconciler) ApplyPolicy(ctx context.Context, target vpcmodel.PolicyTarget) ([]policy.Warning, error) {
	vpcs, err := r.store.List()
	if err != nil {
		return nil, err
	}

	var allWarnings []policy.Warning
	for _, v := range vpcs {
		for _, subnet := range v.Subnets {
			if subnet.CIDR != target.Subnet {
				continue
			}
			warnings, err := policy.Apply(r.exec, subnet.Namespace, target)
			allWarnings = append(allWarnings, warnings...)
			if err != nil {
				return allWarnings, err
			}
		}
	}
	return allWarnings, nil
}

// Peer establishes a bidirectional peering between two VPCs and persists
// symmetric records to both, under the global lock (the operation spans
// two VPC records).
func (r *Reconciler) Peer(ctx context.Context, vpcA, vpcB string, allowedCIDRs []string) error {
	if vpcA == vpcB {
		return fmt.Errorf("cannot peer vpc %q with itself: %w", vpcA, util.ErrValidationFailed)
	}
	return r.withGlobalLock(ctx, func() error {
		a, err := r.store.Get(vpcA)
		if err != nil {
			return err
		}
		b, err := r.store.Get(vpcB)
		if err != nil {
			return err
		}

		if err := peering.Create(r.exec, a, b, allowedCIDRs); err != nil {
			return err
		}

		a.Touch()
		b.Touch()
		if err := r.store.Put(a); err != nil {
			return fmt.Errorf("persist vpc %s: %w", vpcA, err)
		}
		if err := r.store.Put(b); err != nil {
			return fmt.Errorf("persist vpc %s: %w", vpcB, err)
		}
		return nil
	})
}

// Inspect returns the current record for a VPC.
func (r *Reconciler) Inspect(name string) (*vpcmodel.VPC, error) {
	return r.store.Get(name)
}

// ListVPCs returns every VPC record, sorted by name.
func (r *Reconciler) ListVPCs() ([]*vpcmodel.VPC, error) {
	return r.store.List()
}

// DeleteVPC reverses peerings, best-effort kills deployed app pids,
// deletes each subnet's namespace/veth/NAT rule, deletes the bridge, and
// removes the state file. Every step is best-effort: not-found is
// success, and a hard failure on one step is logged by the caller and
// does not stop the remaining steps — the invariant being protected is
// that no known-owned object remains, not that every removal succeeds on
// the first try.
func (r *Reconciler) DeleteVPC(ctx context.Context, name string) []error {
	var errs []error
	err := r.withGlobalLock(ctx, func() error {
		v, err := r.store.Get(name)
		if err != nil {
			if errors.Is(err, util.ErrNotFound) {
				return nil
			}
			errs = append(errs, err)
			return nil
		}

		for peerName := range v.Peerings {
			peer, perr := r.store.Get(peerName)
			if perr == nil {
				if rerr := peering.Remove(r.exec, peer, name); rerr != nil {
					errs = append(errs, rerr)
				} else {
					peer.Touch()
					if serr := r.store.Put(peer); serr != nil {
						errs = append(errs, serr)
					}
				}
			}
			if rerr := peering.Remove(r.exec, v, peerName); rerr != nil {
				errs = append(errs, rerr)
			}
		}

		for _, subnet := range v.Subnets {
			killAppPids(subnet)

			if res := r.exec.DeleteNamespace(subnet.Namespace); !res.Succeeded() {
				errs = append(errs, fmt.Errorf("delete namespace %s: %w", subnet.Namespace, res.Err))
			}
			if res := r.exec.DeleteLink(subnet.HostVeth); !res.Succeeded() {
				errs = append(errs, fmt.Errorf("delete veth %s: %w", subnet.HostVeth, res.Err))
			}
			if subnet.NATInserted {
				_, block, parseErr := net.ParseCIDR(subnet.CIDR)
				if parseErr == nil {
					if res := r.exec.DeleteMasquerade(block, v.InternetIface); !res.Succeeded() {
						errs = append(errs, fmt.Errorf("delete NAT rule for %s: %w", subnet.CIDR, res.Err))
					}
				}
			}
		}

		if res := r.exec.DeleteLink(v.Bridge); !res.Succeeded() {
			errs = append(errs, fmt.Errorf("delete bridge %s: %w", v.Bridge, res.Err))
		}

		if err := r.store.Delete(name); err != nil {
			errs = append(errs, fmt.Errorf("delete state file for %s: %w", name, err))
		}
		return nil
	})
	if err != nil {
		errs = append(errs, err)
	}
	return errs
}

// killAppPids best-effort signals (SIGTERM then SIGKILL) any recorded
// app pid that still resolves to a live process in the subnet's
// namespace, guarding against a stale pid reused by an unrelated
// process.
func killAppPids(subnet *vpcmodel.Subnet) {
	for _, app := range subnet.Apps {
		if app.PID <= 0 {
			continue
		}
		if !pidInNamespace(app.PID, subnet.Namespace) {
			continue
		}
		_ = syscall.Kill(app.PID, syscall.SIGTERM)
		time.Sleep(100 * time.Millisecond)
		_ = syscall.Kill(app.PID, syscall.SIGKILL)
	}
}

// pidInNamespace reports whether pid's network namespace still matches
// the subnet's namespace, by comparing /proc/<pid>/ns/net against the
// named namespace's inode. Any error (process gone, permission) is
// treated as "not matching" — best-effort only.
func pidInNamespace(pid int, namespace string) bool {
	procNS, err := readNetNSInode(fmt.Sprintf("/proc/%d/ns/net", pid))
	if err != nil {
		return false
	}
	targetNS, err := readNetNSInode("/var/run/netns/" + namespace)
	if err != nil {
		return false
	}
	return procNS == targetNS
}

func readNetNSInode(path string) (uint64, error) {
	var stat syscall.Stat_t
	if err := syscall.Stat(path, &stat); err != nil {
		return 0, err
	}
	return stat.Ino, nil
}

// TeardownAll deletes every known VPC, then sweeps for orphan objects
// matching the naming scheme and removes them. Completes even if
// individual removals fail.
func (r *Reconciler) TeardownAll(ctx context.Context) []error {
	var errs []error
	vpcs, err := r.store.List()
	if err != nil {
		return []error{err}
	}
	for _, v := range vpcs {
		errs = append(errs, r.DeleteVPC(ctx, v.Name)...)
	}
	errs = append(errs, r.sweepOrphans()...)
	return errs
}

// sweepOrphans removes links and namespaces matching the naming scheme
// that survive after every known VPC record has been deleted — the
// residue of a crash between a kernel mutation and its record write.
func (r *Reconciler) sweepOrphans() []error {
	var errs []error

	for _, prefix := range []string{"vpc-", "veth-", "peer-"} {
		names, err := r.exec.ListLinksWithPrefix(prefix)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, name := range names {
			if res := r.exec.DeleteLink(name); !res.Succeeded() {
				errs = append(errs, fmt.Errorf("sweep link %s: %w", name, res.Err))
			}
		}
	}

	nsNames, err := r.exec.ListNamespacesWithPrefix("vpc-")
	if err != nil {
		errs = append(errs, err)
		return errs
	}
	for _, name := range nsNames {
		if res := r.exec.DeleteNamespace(name); !res.Succeeded() {
			errs = append(errs, fmt.Errorf("sweep namespace %s: %w", name, res.Err))
		}
	}
	return errs
}
