package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestParseWellFormedManifest(t *testing.T) {
	path := writeManifest(t, `
vpcs:
  - name: prod
    cidr: 10.20.0.0/16
    internetIface: eth0
    subnets:
      - name: web
        cidr: 10.20.1.0/24
        type: public
      - name: db
        cidr: 10.20.2.0/24
        type: private
  - name: staging
    cidr: 10.30.0.0/16
    internetIface: eth0
peerings:
  - vpcA: prod
    vpcB: staging
    allowedCidrs: ["10.20.0.0/16", "10.30.0.0/16"]
`)

	m, err := Parse(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.VPCs) != 2 {
		t.Fatalf("expected 2 vpcs, got %d", len(m.VPCs))
	}
	if len(m.VPCs[0].Subnets) != 2 {
		t.Fatalf("expected 2 subnets under prod, got %d", len(m.VPCs[0].Subnets))
	}
	if len(m.Peerings) != 1 {
		t.Fatalf("expected 1 peering, got %d", len(m.Peerings))
	}
}

func TestParseRejectsMissingVPCCIDR(t *testing.T) {
	path := writeManifest(t, `
vpcs:
  - name: prod
`)
	if _, err := Parse(path); err == nil {
		t.Fatal("expected error for missing cidr")
	}
}

func TestParseRejectsDuplicateVPCName(t *testing.T) {
	path := writeManifest(t, `
vpcs:
  - name: prod
    cidr: 10.20.0.0/16
  - name: prod
    cidr: 10.30.0.0/16
`)
	if _, err := Parse(path); err == nil {
		t.Fatal("expected error for duplicate vpc name")
	}
}

func TestParseRejectsBadSubnetType(t *testing.T) {
	path := writeManifest(t, `
vpcs:
  - name: prod
    cidr: 10.20.0.0/16
    subnets:
      - name: web
        cidr: 10.20.1.0/24
        type: weird
`)
	if _, err := Parse(path); err == nil {
		t.Fatal("expected error for invalid subnet type")
	}
}

func TestParseRejectsSelfPeering(t *testing.T) {
	path := writeManifest(t, `
vpcs:
  - name: prod
    cidr: 10.20.0.0/16
peerings:
  - vpcA: prod
    vpcB: prod
`)
	if _, err := Parse(path); err == nil {
		t.Fatal("expected error for self-peering")
	}
}

func TestParseMissingFile(t *testing.T) {
	if _, err := Parse("/nonexistent/manifest.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
