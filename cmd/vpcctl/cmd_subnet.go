package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vpcnet/vpcctl/pkg/auth"
	"github.com/vpcnet/vpcctl/pkg/vpcmodel"
)

var (
	addSubnetVPC  string
	addSubnetName string
	addSubnetCIDR string
	addSubnetType string
)

var addSubnetCmd = &cobra.Command{
	Use:   "add-subnet",
	Short: "Add a subnet namespace to a VPC",
	RunE: func(cmd *cobra.Command, args []string) error {
		if addSubnetVPC == "" || addSubnetName == "" || addSubnetCIDR == "" {
			return fmt.Errorf("--vpc, --name, and --cidr are required")
		}
		if addSubnetType != string(vpcmodel.SubnetPublic) && addSubnetType != string(vpcmodel.SubnetPrivate) {
			return fmt.Errorf("--type must be %q or %q", vpcmodel.SubnetPublic, vpcmodel.SubnetPrivate)
		}

		permCtx := auth.NewContext().WithVPC(addSubnetVPC).WithSubnet(addSubnetName)
		if err := checkPermission(auth.PermSubnetCreate, permCtx, "add-subnet"); err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		subnet, err := app.reconciler.AddSubnet(ctx, addSubnetVPC, addSubnetName, addSubnetCIDR, vpcmodel.SubnetType(addSubnetType))
		recordAudit("add-subnet", permCtx, nil, err, 0)
		if err != nil {
			return err
		}

		return printResult(subnet, func() {
			fmt.Printf("added subnet %q to vpc %q (namespace %s)\n", subnet.Name, addSubnetVPC, subnet.Namespace)
		})
	},
}

func init() {
	addSubnetCmd.Flags().StringVar(&addSubnetVPC, "vpc", "", "VPC name")
	addSubnetCmd.Flags().StringVar(&addSubnetName, "name", "", "Subnet name")
	addSubnetCmd.Flags().StringVar(&addSubnetCIDR, "cidr", "", "Subnet address block")
	addSubnetCmd.Flags().StringVar(&addSubnetType, "type", string(vpcmodel.SubnetPrivate), "Subnet type: public or private")
}
