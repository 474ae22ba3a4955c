// vpcctl is a single-host control plane for Linux network namespaces
// wired together as virtual private clouds: bridges per VPC, namespaces
// per subnet, NAT for public subnets, and packet-filter policy and
// cross-VPC peering on top.
//
// Flat verb surface (not a noun-group hierarchy, since the system has
// one resource tree rather than many device-scoped ones):
//
//	vpcctl create-vpc --name prod --cidr 10.20.0.0/16 --internet-iface eth0
//	vpcctl add-subnet --vpc prod --name web --cidr 10.20.1.0/24 --type public
//	vpcctl deploy-app --vpc prod --subnet web --name nginx --cmd "nginx -g 'daemon off;'"
//	vpcctl apply-policy --policy-file policy.json
//	vpcctl peer --vpc-a prod --vpc-b staging --allowed-cidrs 10.20.0.0/16,10.30.0.0/16
//	vpcctl inspect --vpc prod
//	vpcctl list-vpcs
//	vpcctl delete-vpc --name prod
//	vpcctl teardown-all
//	vpcctl apply-manifest --file manifest.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vpcnet/vpcctl/pkg/audit"
	"github.com/vpcnet/vpcctl/pkg/auth"
	"github.com/vpcnet/vpcctl/pkg/hostexec"
	"github.com/vpcnet/vpcctl/pkg/reconciler"
	"github.com/vpcnet/vpcctl/pkg/settings"
	"github.com/vpcnet/vpcctl/pkg/store"
	"github.com/vpcnet/vpcctl/pkg/util"
)

// exit codes, per the external-interface contract.
const (
	exitOK         = 0
	exitUsage      = 1
	exitHostExec   = 2
	exitStateStore = 3
)

// App holds CLI state shared across all verb commands.
type App struct {
	stateDir   string
	timeout    time.Duration
	jsonOutput bool
	verbose    bool

	settings    *settings.Settings
	reconciler  *reconciler.Reconciler
	permChecker *auth.Checker
	auditLogger audit.Logger
}

var app = &App{}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor classifies an error into the documented exit code set.
func exitCodeFor(err error) int {
	switch {
	case isStateStoreError(err):
		return exitStateStore
	case isHostExecError(err):
		return exitHostExec
	default:
		return exitUsage
	}
}

var rootCmd = &cobra.Command{
	Use:           "vpcctl",
	Short:         "Single-host VPC control plane",
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `vpcctl builds and tears down virtual private clouds on a single Linux
host: one bridge per VPC, one network namespace per subnet, NAT for
public subnets, packet-filter policy, and bridge-to-bridge peering
between VPCs.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if isHelpOrVersion(cmd) {
			return nil
		}

		var err error
		app.settings, err = settings.Load()
		if err != nil {
			util.Warnf("could not load settings: %v", err)
			app.settings = &settings.Settings{}
		}

		if app.stateDir == "" {
			app.stateDir = app.settings.GetStateDir()
		}
		if app.timeout == 0 {
			app.timeout = time.Duration(app.settings.GetLockTimeoutSeconds()) * time.Second
		}

		if app.verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("warn")
		}
		if app.jsonOutput {
			util.SetJSONFormat()
		}

		st, err := store.New(app.stateDir)
		if err != nil {
			return fmt.Errorf("initializing state store: %w", err)
		}
		app.reconciler = reconciler.New(st, hostexec.New(), app.timeout)
		app.permChecker = auth.NewChecker(&auth.Policy{
			SuperUsers:   app.settings.SuperUsers,
			UserGroups:   app.settings.UserGroups,
			Permissions:  app.settings.Permissions,
			VPCOverrides: app.settings.VPCOverrides,
		})

		auditPath := app.settings.GetAuditLogPath(app.stateDir)
		logger, err := audit.NewFileLogger(auditPath, audit.RotationConfig{
			MaxSize:    int64(app.settings.GetAuditMaxSizeMB()) * 1024 * 1024,
			MaxBackups: app.settings.GetAuditMaxBackups(),
		})
		if err != nil {
			util.Warnf("could not initialize audit logging: %v", err)
		} else {
			app.auditLogger = logger
			audit.SetDefaultLogger(logger)
		}

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&app.stateDir, "state-dir", "", "Directory holding VPC state files and locks (default from settings, or ./state)")
	rootCmd.PersistentFlags().DurationVar(&app.timeout, "timeout", 0, "Lock acquisition timeout (default from settings, or 30s)")
	rootCmd.PersistentFlags().BoolVar(&app.jsonOutput, "json", false, "Structured JSON output")
	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "Verbose logging")

	rootCmd.AddCommand(
		createVPCCmd,
		addSubnetCmd,
		deployAppCmd,
		applyPolicyCmd,
		peerCmd,
		inspectCmd,
		listVPCsCmd,
		deleteVPCCmd,
		teardownAllCmd,
		applyManifestCmd,
	)
}

// signalContext returns a context canceled on SIGINT/SIGTERM. Reconciler
// operations consult it only while waiting for a VPC or global lock and
// when spawning a deploy-app process; once the lock is held, the
// operation's executor calls run to completion.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// isHelpOrVersion skips PersistentPreRunE setup for commands that need none.
func isHelpOrVersion(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "help" {
			return true
		}
	}
	return false
}

// checkPermission enforces a verb's permission before the reconciler is
// invoked, and logs a denial to the audit trail even though no kernel
// mutation was attempted.
func checkPermission(perm auth.Permission, ctx *auth.Context, operation string) error {
	if err := app.permChecker.Check(perm, ctx); err != nil {
		recordAudit(operation, ctx, nil, err, 0)
		return err
	}
	return nil
}

// recordAudit appends one event to the audit trail, regardless of outcome.
func recordAudit(operation string, permCtx *auth.Context, changes []audit.Change, opErr error, duration time.Duration) {
	vpc, subnet := "", ""
	if permCtx != nil {
		vpc, subnet = permCtx.VPC, permCtx.Subnet
	}
	event := audit.NewEvent(app.permChecker.CurrentUser(), vpc, operation).
		WithSubnet(subnet).
		WithChanges(changes).
		WithDuration(duration).
		WithExecuteMode(true)
	if opErr != nil {
		event.WithError(opErr)
	} else {
		event.WithSuccess()
	}
	if err := audit.Log(event); err != nil {
		util.Warnf("audit log write failed: %v", err)
	}
}
