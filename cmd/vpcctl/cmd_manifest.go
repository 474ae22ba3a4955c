package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vpcnet/vpcctl/pkg/auth"
	"github.com/vpcnet/vpcctl/pkg/cli"
	"github.com/vpcnet/vpcctl/pkg/manifest"
)

// manifestStepDotWidth is the column at which step status is aligned in
// human-readable apply-manifest output.
const manifestStepDotWidth = 40

var applyManifestFile string

var applyManifestCmd = &cobra.Command{
	Use:   "apply-manifest",
	Short: "Apply a YAML batch manifest of VPCs, subnets, and peerings",
	RunE: func(cmd *cobra.Command, args []string) error {
		if applyManifestFile == "" {
			return fmt.Errorf("--file is required")
		}

		m, err := manifest.Parse(applyManifestFile)
		if err != nil {
			return err
		}

		permCtx := auth.NewContext()
		if err := checkPermission(auth.PermManifestApply, permCtx, "apply-manifest"); err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		summary := manifest.Apply(ctx, app.reconciler, m)
		var firstErr error
		for _, step := range summary.Steps {
			if step.Err != nil {
				firstErr = step.Err
				break
			}
		}
		recordAudit("apply-manifest", permCtx, nil, firstErr, 0)

		result := struct {
			Applied []string `json:"applied"`
			Errors  []string `json:"errors"`
		}{Applied: []string{}, Errors: []string{}}
		for _, step := range summary.Steps {
			label := step.Kind + " " + step.Name
			if step.Err != nil {
				result.Errors = append(result.Errors, label+": "+step.Err.Error())
			} else {
				result.Applied = append(result.Applied, label)
			}
		}

		return printResult(result, func() {
			fmt.Printf("applied manifest %s: %d step(s)\n", applyManifestFile, len(summary.Steps))
			for _, step := range summary.Steps {
				label := cli.DotPad(fmt.Sprintf("  %s %s", step.Kind, step.Name), manifestStepDotWidth)
				if step.Err != nil {
					fmt.Printf("%s %s\n", label, cli.Red(step.Err.Error()))
				} else {
					fmt.Printf("%s %s\n", label, cli.Green("ok"))
				}
			}
		})
	},
}

func init() {
	applyManifestCmd.Flags().StringVar(&applyManifestFile, "file", "", "Path to a YAML manifest file")
}
