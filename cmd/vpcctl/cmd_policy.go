package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vpcnet/vpcctl/pkg/auth"
	"github.com/vpcnet/vpcctl/pkg/policy"
)

var applyPolicyFile string

var applyPolicyCmd = &cobra.Command{
	Use:   "apply-policy",
	Short: "Apply an ingress/egress packet-filter document",
	RunE: func(cmd *cobra.Command, args []string) error {
		if applyPolicyFile == "" {
			return fmt.Errorf("--policy-file is required")
		}

		targets, err := policy.LoadDocument(applyPolicyFile)
		if err != nil {
			return err
		}

		permCtx := auth.NewContext()
		if err := checkPermission(auth.PermPolicyApply, permCtx, "apply-policy"); err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		var allWarnings []policy.Warning
		for _, target := range targets {
			warnings, err := app.reconciler.ApplyPolicy(ctx, target)
			allWarnings = append(allWarnings, warnings...)
			if err != nil {
				recordAudit("apply-policy", permCtx, nil, err, 0)
				return err
			}
		}
		recordAudit("apply-policy", permCtx, nil, nil, 0)

		return printResult(allWarnings, func() {
			fmt.Printf("applied policy for %d subnet target(s)\n", len(targets))
			for _, w := range allWarnings {
				fmt.Printf("  warning: subnet %s rule %+v: %s\n", w.Subnet, w.Rule, w.Reason)
			}
		})
	},
}

func init() {
	applyPolicyCmd.Flags().StringVar(&applyPolicyFile, "policy-file", "", "Path to a JSON policy document")
}
