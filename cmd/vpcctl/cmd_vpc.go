package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vpcnet/vpcctl/pkg/auth"
	"github.com/vpcnet/vpcctl/pkg/vpcmodel"
)

var (
	createVPCName          string
	createVPCCIDR          string
	createVPCInternetIface string
)

var createVPCCmd = &cobra.Command{
	Use:   "create-vpc",
	Short: "Create a new VPC bridge and address plan",
	RunE: func(cmd *cobra.Command, args []string) error {
		if createVPCName == "" || createVPCCIDR == "" || createVPCInternetIface == "" {
			return fmt.Errorf("--name, --cidr, and --internet-iface are required")
		}
		permCtx := auth.NewContext().WithVPC(createVPCName)
		if err := checkPermission(auth.PermVPCCreate, permCtx, "create-vpc"); err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		v, err := app.reconciler.CreateVPC(ctx, createVPCName, createVPCCIDR, createVPCInternetIface)
		recordAudit("create-vpc", permCtx, nil, err, 0)
		if err != nil {
			return err
		}

		return printResult(v, func() {
			fmt.Printf("created vpc %q (cidr %s, bridge %s)\n", v.Name, v.CIDR, v.Bridge)
		})
	},
}

func init() {
	createVPCCmd.Flags().StringVar(&createVPCName, "name", "", "VPC name")
	createVPCCmd.Flags().StringVar(&createVPCCIDR, "cidr", "", "VPC address block")
	createVPCCmd.Flags().StringVar(&createVPCInternetIface, "internet-iface", "", "Upstream interface for public subnets")
}

var deleteVPCName string

var deleteVPCCmd = &cobra.Command{
	Use:   "delete-vpc",
	Short: "Tear down a VPC and everything inside it",
	RunE: func(cmd *cobra.Command, args []string) error {
		if deleteVPCName == "" {
			return fmt.Errorf("--name is required")
		}
		permCtx := auth.NewContext().WithVPC(deleteVPCName)
		if err := checkPermission(auth.PermVPCDelete, permCtx, "delete-vpc"); err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		errs := app.reconciler.DeleteVPC(ctx, deleteVPCName)
		var firstErr error
		if len(errs) > 0 {
			firstErr = errs[0]
		}
		recordAudit("delete-vpc", permCtx, nil, firstErr, 0)

		return printResult(errs, func() {
			fmt.Printf("delete-vpc %s: %s\n", deleteVPCName, statusColor(len(errs) == 0))
			for _, e := range errs {
				fmt.Printf("  - %v\n", e)
			}
		})
	},
}

func init() {
	deleteVPCCmd.Flags().StringVar(&deleteVPCName, "name", "", "VPC name")
}

var teardownAllCmd = &cobra.Command{
	Use:   "teardown-all",
	Short: "Tear down every known VPC",
	RunE: func(cmd *cobra.Command, args []string) error {
		permCtx := auth.NewContext()
		if err := checkPermission(auth.PermTeardownAll, permCtx, "teardown-all"); err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		errs := app.reconciler.TeardownAll(ctx)
		var firstErr error
		if len(errs) > 0 {
			firstErr = errs[0]
		}
		recordAudit("teardown-all", permCtx, nil, firstErr, 0)

		return printResult(errs, func() {
			fmt.Printf("teardown-all: %s\n", statusColor(len(errs) == 0))
			for _, e := range errs {
				fmt.Printf("  - %v\n", e)
			}
		})
	},
}

var inspectVPCName string

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show a VPC's full record",
	RunE: func(cmd *cobra.Command, args []string) error {
		if inspectVPCName == "" {
			return fmt.Errorf("--vpc is required")
		}
		permCtx := auth.NewContext().WithVPC(inspectVPCName)
		if err := checkPermission(auth.PermVPCView, permCtx, "inspect"); err != nil {
			return err
		}

		v, err := app.reconciler.Inspect(inspectVPCName)
		if err != nil {
			return err
		}

		return printResult(v, func() {
			fmt.Printf("vpc %s (cidr %s, bridge %s, internet-iface %s)\n", v.Name, v.CIDR, v.Bridge, v.InternetIface)
			printSubnetTable(v)
			printPeeringTable(v)
		})
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectVPCName, "vpc", "", "VPC name")
}

var listVPCsCmd = &cobra.Command{
	Use:   "list-vpcs",
	Short: "List every known VPC",
	RunE: func(cmd *cobra.Command, args []string) error {
		permCtx := auth.NewContext()
		if err := checkPermission(auth.PermVPCView, permCtx, "list-vpcs"); err != nil {
			return err
		}

		vpcs, err := app.reconciler.ListVPCs()
		if err != nil {
			return err
		}

		return printResult(struct {
			VPCs []*vpcmodel.VPC `json:"vpcs"`
		}{VPCs: vpcs}, func() { printVPCTable(vpcs) })
	},
}
