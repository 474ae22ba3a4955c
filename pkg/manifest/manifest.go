// Package manifest parses declarative YAML batch files describing VPCs,
// subnets, and peerings, and applies them through a Reconciler in
// document order.
package manifest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vpcnet/vpcctl/pkg/vpcmodel"
)

// SubnetSpec describes one subnet entry under a VPC in a manifest file.
type SubnetSpec struct {
	Name string `yaml:"name"`
	CIDR string `yaml:"cidr"`
	Type string `yaml:"type"` // "public" | "private"
}

// VPCSpec describes one VPC entry in a manifest file.
type VPCSpec struct {
	Name          string       `yaml:"name"`
	CIDR          string       `yaml:"cidr"`
	InternetIface string       `yaml:"internetIface"`
	Subnets       []SubnetSpec `yaml:"subnets"`
}

// PeeringSpec describes one peering entry in a manifest file.
type PeeringSpec struct {
	VPCA         string   `yaml:"vpcA"`
	VPCB         string   `yaml:"vpcB"`
	AllowedCIDRs []string `yaml:"allowedCidrs"`
}

// Manifest is the top-level shape of a manifest YAML document.
type Manifest struct {
	VPCs     []VPCSpec     `yaml:"vpcs"`
	Peerings []PeeringSpec `yaml:"peerings"`
}

// Parse reads and unmarshals a manifest file, then validates it
// structurally. Semantic validation (CIDR arithmetic, VPC existence) is
// left to the reconciler, which already owns that logic and the state it
// needs to check it.
func Parse(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}

	if err := validate(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

func validate(m *Manifest) error {
	seen := make(map[string]bool, len(m.VPCs))
	for i, v := range m.VPCs {
		if v.Name == "" {
			return fmt.Errorf("vpcs[%d]: name is required", i)
		}
		if v.CIDR == "" {
			return fmt.Errorf("vpcs[%d] %q: cidr is required", i, v.Name)
		}
		if seen[v.Name] {
			return fmt.Errorf("vpcs[%d]: duplicate vpc name %q", i, v.Name)
		}
		seen[v.Name] = true

		subnetNames := make(map[string]bool, len(v.Subnets))
		for j, s := range v.Subnets {
			prefix := fmt.Sprintf("vpcs[%d].subnets[%d]", i, j)
			if s.Name == "" {
				return fmt.Errorf("%s: name is required", prefix)
			}
			if s.CIDR == "" {
				return fmt.Errorf("%s %q: cidr is required", prefix, s.Name)
			}
			if s.Type != string(vpcmodel.SubnetPublic) && s.Type != string(vpcmodel.SubnetPrivate) {
				return fmt.Errorf("%s %q: type must be %q or %q", prefix, s.Name, vpcmodel.SubnetPublic, vpcmodel.SubnetPrivate)
			}
			if subnetNames[s.Name] {
				return fmt.Errorf("%s: duplicate subnet name %q", prefix, s.Name)
			}
			subnetNames[s.Name] = true
		}
	}

	for i, p := range m.Peerings {
		prefix := fmt.Sprintf("peerings[%d]", i)
		if p.VPCA == "" || p.VPCB == "" {
			return fmt.Errorf("%s: vpcA and vpcB are required", prefix)
		}
		if p.VPCA == p.VPCB {
			return fmt.Errorf("%s: vpcA and vpcB must differ", prefix)
		}
	}
	return nil
}
