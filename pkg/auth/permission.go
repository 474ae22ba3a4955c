// Package auth provides permission-based access control for vpcctl verbs.
package auth

// Permission defines an action that can be controlled
type Permission string

// Standard permissions, one pair (or view-only) per vpcctl verb.
const (
	PermVPCCreate Permission = "vpc.create"
	PermVPCDelete Permission = "vpc.delete"
	PermVPCView   Permission = "vpc.view"

	PermSubnetCreate Permission = "subnet.create"
	PermSubnetDelete Permission = "subnet.delete"
	PermSubnetView   Permission = "subnet.view"

	PermAppDeploy Permission = "app.deploy"
	PermAppView   Permission = "app.view"

	PermPolicyApply Permission = "policy.apply"
	PermPolicyView  Permission = "policy.view"

	PermPeerCreate Permission = "peer.create"
	PermPeerDelete Permission = "peer.delete"
	PermPeerView   Permission = "peer.view"

	PermManifestApply Permission = "manifest.apply"

	PermTeardownAll Permission = "teardown.all"

	PermAuditView Permission = "audit.view"

	PermAll Permission = "all" // Superuser - allows everything
)

// PermissionCategory groups related permissions
type PermissionCategory struct {
	Name        string
	Description string
	Permissions []Permission
}

// StandardCategories defines standard permission categories
var StandardCategories = []PermissionCategory{
	{
		Name:        "vpc",
		Description: "VPC lifecycle",
		Permissions: []Permission{PermVPCCreate, PermVPCDelete, PermVPCView},
	},
	{
		Name:        "subnet",
		Description: "Subnet lifecycle",
		Permissions: []Permission{PermSubnetCreate, PermSubnetDelete, PermSubnetView},
	},
	{
		Name:        "app",
		Description: "Application deployment",
		Permissions: []Permission{PermAppDeploy, PermAppView},
	},
	{
		Name:        "policy",
		Description: "Packet filter policy",
		Permissions: []Permission{PermPolicyApply, PermPolicyView},
	},
	{
		Name:        "peer",
		Description: "VPC peering",
		Permissions: []Permission{PermPeerCreate, PermPeerDelete, PermPeerView},
	},
	{
		Name:        "manifest",
		Description: "Batch manifest application",
		Permissions: []Permission{PermManifestApply},
	},
	{
		Name:        "teardown",
		Description: "Full host teardown",
		Permissions: []Permission{PermTeardownAll},
	},
	{
		Name:        "audit",
		Description: "Audit log access",
		Permissions: []Permission{PermAuditView},
	},
}

// Context provides context for permission checks
type Context struct {
	VPC      string
	Subnet   string
	Resource string
}

// NewContext creates a new permission context
func NewContext() *Context {
	return &Context{}
}

// WithVPC sets the VPC context
func (c *Context) WithVPC(vpc string) *Context {
	c.VPC = vpc
	return c
}

// WithSubnet sets the subnet context
func (c *Context) WithSubnet(subnet string) *Context {
	c.Subnet = subnet
	return c
}

// WithResource sets a generic resource context
func (c *Context) WithResource(resource string) *Context {
	c.Resource = resource
	return c
}

// IsReadOnly returns true if the permission is read-only
func (p Permission) IsReadOnly() bool {
	switch p {
	case PermVPCView, PermSubnetView, PermAppView, PermPolicyView, PermPeerView, PermAuditView:
		return true
	}
	return false
}

// IsWriteOperation returns true if the permission involves modification
func (p Permission) IsWriteOperation() bool {
	return !p.IsReadOnly()
}

// RequiresLock returns true if the permission requires a VPC or global lock
// before it may proceed.
func (p Permission) RequiresLock() bool {
	return p.IsWriteOperation()
}
