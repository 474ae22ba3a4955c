// Package vpcmodel defines the durable record types for VPCs, subnets,
// applications, and peerings — the data the rest of the control plane
// validates, plans, and reconciles against.
package vpcmodel

import (
	"encoding/json"
	"fmt"
	"time"
)

// SubnetType distinguishes NAT-enabled subnets from fully internal ones.
type SubnetType string

const (
	SubnetPublic  SubnetType = "public"
	SubnetPrivate SubnetType = "private"
)

// Application is a workload deployed into a subnet's namespace.
type Application struct {
	Name    string `json:"name"`
	Command string `json:"command"`
	PID     int    `json:"pid,omitempty"`
}

// Subnet is an address block inside a VPC, realized as a namespace
// bridged to the VPC's bridge.
type Subnet struct {
	Name        string        `json:"name"`
	CIDR        string        `json:"cidr"`
	Type        SubnetType    `json:"type"`
	Namespace   string        `json:"namespace"`
	HostVeth    string        `json:"hostVeth"`
	NSVeth      string        `json:"nsVeth"`
	Gateway     string        `json:"gateway"`
	HostIP      string        `json:"hostIP"`
	Apps        []Application `json:"apps,omitempty"`
	NATInserted bool          `json:"natInserted,omitempty"`
}

// Peering is one side of a bidirectional bridge-to-bridge link between
// two VPCs. Each VPC holds its own mirrored copy, keyed by the other's name:
// PeerVPC and the two link names are seen from that VPC's side, and
// AllowedCIDRs is the same in both.
type Peering struct {
	PeerVPC      string   `json:"peerVPC"`
	LocalLink    string   `json:"localLink"`
	RemoteLink   string   `json:"remoteLink"`
	AllowedCIDRs []string `json:"allowedCIDRs"`
}

// VPC is the top-level record: everything the control plane owns for one
// virtual network.
type VPC struct {
	Name          string              `json:"name"`
	CIDR          string              `json:"cidr"`
	Bridge        string              `json:"bridge"`
	InternetIface string              `json:"internetIface"`
	Subnets       map[string]*Subnet  `json:"subnets"`
	Peerings      map[string]*Peering `json:"peerings"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

// NewVPC returns an empty VPC record ready to be populated by create-vpc.
func NewVPC(name, cidr, bridge, internetIface string) *VPC {
	now := timeNow()
	return &VPC{
		Name:          name,
		CIDR:          cidr,
		Bridge:        bridge,
		InternetIface: internetIface,
		Subnets:       make(map[string]*Subnet),
		Peerings:      make(map[string]*Peering),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// timeNow is overridden in tests to keep record timestamps deterministic.
var timeNow = time.Now

// Touch updates UpdatedAt; called after every mutation before persisting.
func (v *VPC) Touch() {
	v.UpdatedAt = timeNow()
}

// SiblingCIDRs returns the CIDRs of every subnet in v other than exclude.
func (v *VPC) SiblingCIDRs(exclude string) []string {
	cidrs := make([]string, 0, len(v.Subnets))
	for name, s := range v.Subnets {
		if name == exclude {
			continue
		}
		cidrs = append(cidrs, s.CIDR)
	}
	return cidrs
}

// PolicyRule is a single ingress or egress filter rule.
type PolicyRule struct {
	Port     string `json:"port"` // decimal string or "any"
	Protocol string `json:"protocol"`
	Action   string `json:"action"` // "allow" | "deny"
}

// UnmarshalJSON accepts port as a JSON number (80) or a string ("80", "any").
func (r *PolicyRule) UnmarshalJSON(data []byte) error {
	var raw struct {
		Port     interface{} `json:"port"`
		Protocol string      `json:"protocol"`
		Action   string      `json:"action"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = PolicyRule{Protocol: raw.Protocol, Action: raw.Action}
	if raw.Port != nil {
		r.Port = fmt.Sprint(raw.Port)
	}
	return nil
}

// PolicyTarget binds a set of rules to a subnet CIDR; it is never
// persisted to the state store, only parsed from a policy file and
// applied immediately.
type PolicyTarget struct {
	Subnet  string       `json:"subnet"`
	Ingress []PolicyRule `json:"ingress"`
	Egress  []PolicyRule `json:"egress"`
}
