package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vpcnet/vpcctl/pkg/auth"
)

var (
	deployAppVPC     string
	deployAppSubnet  string
	deployAppName    string
	deployAppCommand string
)

var deployAppCmd = &cobra.Command{
	Use:   "deploy-app",
	Short: "Spawn a command inside a subnet's namespace",
	RunE: func(cmd *cobra.Command, args []string) error {
		if deployAppVPC == "" || deployAppSubnet == "" || deployAppName == "" || deployAppCommand == "" {
			return fmt.Errorf("--vpc, --subnet, --name, and --cmd are required")
		}

		permCtx := auth.NewContext().WithVPC(deployAppVPC).WithSubnet(deployAppSubnet)
		if err := checkPermission(auth.PermAppDeploy, permCtx, "deploy-app"); err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		command := []string{"sh", "-c", deployAppCommand}
		deployed, err := app.reconciler.DeployApp(ctx, deployAppVPC, deployAppSubnet, deployAppName, command)
		recordAudit("deploy-app", permCtx, nil, err, 0)
		if err != nil {
			return err
		}

		return printResult(deployed, func() {
			fmt.Printf("deployed %q in vpc %q subnet %q (pid %d)\n", deployed.Name, deployAppVPC, deployAppSubnet, deployed.PID)
		})
	},
}

func init() {
	deployAppCmd.Flags().StringVar(&deployAppVPC, "vpc", "", "VPC name")
	deployAppCmd.Flags().StringVar(&deployAppSubnet, "subnet", "", "Subnet name")
	deployAppCmd.Flags().StringVar(&deployAppName, "name", "", "Application name")
	deployAppCmd.Flags().StringVar(&deployAppCommand, "cmd", "", "Shell command string to run inside the subnet namespace")
}
