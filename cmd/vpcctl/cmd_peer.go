package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vpcnet/vpcctl/pkg/auth"
)

var (
	peerVPCA         string
	peerVPCB         string
	peerAllowedCIDRs string
)

var peerCmd = &cobra.Command{
	Use:   "peer",
	Short: "Establish a bidirectional peering between two VPCs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if peerVPCA == "" || peerVPCB == "" {
			return fmt.Errorf("--vpc-a and --vpc-b are required")
		}

		permCtx := auth.NewContext().WithVPC(peerVPCA).WithResource(peerVPCB)
		if err := checkPermission(auth.PermPeerCreate, permCtx, "peer"); err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		var cidrs []string
		if peerAllowedCIDRs != "" {
			cidrs = strings.Split(peerAllowedCIDRs, ",")
		}

		err := app.reconciler.Peer(ctx, peerVPCA, peerVPCB, cidrs)
		recordAudit("peer", permCtx, nil, err, 0)
		if err != nil {
			return err
		}

		return printResult(map[string]string{"vpcA": peerVPCA, "vpcB": peerVPCB}, func() {
			fmt.Printf("peered vpc %q with vpc %q\n", peerVPCA, peerVPCB)
		})
	},
}

func init() {
	peerCmd.Flags().StringVar(&peerVPCA, "vpc-a", "", "First VPC name")
	peerCmd.Flags().StringVar(&peerVPCB, "vpc-b", "", "Second VPC name")
	peerCmd.Flags().StringVar(&peerAllowedCIDRs, "allowed-cidrs", "", "Comma-separated CIDRs routable across the peering")
}
