package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/vpcnet/vpcctl/pkg/cli"
	"github.com/vpcnet/vpcctl/pkg/vpcmodel"
)

// printResult emits v as a JSON object when --json is set, otherwise
// delegates to render for human-readable output.
func printResult(v interface{}, render func()) error {
	if app.jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	render()
	return nil
}

func printVPCTable(vpcs []*vpcmodel.VPC) {
	t := cli.NewTable("NAME", "CIDR", "BRIDGE", "SUBNETS", "PEERINGS")
	for _, v := range vpcs {
		t.Row(v.Name, v.CIDR, v.Bridge, fmt.Sprintf("%d", len(v.Subnets)), fmt.Sprintf("%d", len(v.Peerings)))
	}
	t.Flush()
}

func printSubnetTable(v *vpcmodel.VPC) {
	t := cli.NewTable("SUBNET", "CIDR", "TYPE", "NAMESPACE", "GATEWAY", "APPS")
	for _, s := range v.Subnets {
		t.Row(s.Name, s.CIDR, string(s.Type), s.Namespace, s.Gateway, fmt.Sprintf("%d", len(s.Apps)))
	}
	t.Flush()
}

func printPeeringTable(v *vpcmodel.VPC) {
	t := cli.NewTable("PEER", "LOCAL LINK", "REMOTE LINK", "ALLOWED CIDRS")
	for _, p := range v.Peerings {
		t.Row(p.PeerVPC, p.LocalLink, p.RemoteLink, fmt.Sprintf("%v", p.AllowedCIDRs))
	}
	t.Flush()
}

func statusColor(ok bool) string {
	if ok {
		return cli.Green("ok")
	}
	return cli.Red("failed")
}
