package auth

import (
	"fmt"
	"os/user"
	"slices"

	"github.com/vpcnet/vpcctl/pkg/util"
)

// Policy is the authorization configuration consulted by Checker. It has no
// on-disk format of its own: vpcctl builds one in memory from the
// SuperUsers/UserGroups/Permissions/VPCOverrides fields of settings.Settings.
// A Policy with none of SuperUsers, Permissions or VPCOverrides set is
// unconfigured and fails open; UserGroups alone does not configure it.
type Policy struct {
	// SuperUsers bypass all permission checks.
	SuperUsers []string

	// UserGroups maps a group name to its member usernames.
	UserGroups map[string][]string

	// Permissions maps a permission (or "all") to the groups/usernames
	// allowed to exercise it, checked when no VPC-specific override applies.
	Permissions map[string][]string

	// VPCOverrides maps a VPC name to a permission map checked before
	// Permissions for operations scoped to that VPC. A user it does not
	// grant is still checked against Permissions, so an override can add
	// access but cannot take away access that Permissions grants.
	VPCOverrides map[string]map[string][]string
}

// isUnconfigured reports whether the policy carries no access-control
// data at all: no superusers, no permission maps, no per-VPC overrides.
// An unconfigured policy fails open rather than denying every verb,
// since running with no policy file is the common case for a single
// local operator, not a lockout condition.
func (p *Policy) isUnconfigured() bool {
	return len(p.SuperUsers) == 0 && len(p.Permissions) == 0 && len(p.VPCOverrides) == 0
}

// Checker validates user permissions against a Policy
type Checker struct {
	policy      *Policy
	currentUser string
}

// NewChecker creates a permission checker for the given policy
func NewChecker(policy *Policy) *Checker {
	if policy == nil {
		policy = &Policy{}
	}
	username := "unknown"
	if u, err := user.Current(); err == nil {
		username = u.Username
	}

	return &Checker{
		policy:      policy,
		currentUser: username,
	}
}

// SetUser overrides the current user (for testing or sudo)
func (c *Checker) SetUser(username string) {
	c.currentUser = username
}

// CurrentUser returns the current username
func (c *Checker) CurrentUser() string {
	return c.currentUser
}

// Check verifies if the current user has a permission
func (c *Checker) Check(permission Permission, ctx *Context) error {
	return c.CheckUser(c.currentUser, permission, ctx)
}

// CheckUser verifies if a specific user has a permission
func (c *Checker) CheckUser(username string, permission Permission, ctx *Context) error {
	// Superusers can do anything
	if c.isSuperUser(username) {
		return nil
	}

	// No policy has been configured: fail open rather than deny every
	// verb to every user.
	if c.policy.isUnconfigured() {
		return nil
	}

	// Check VPC-specific overrides first
	if ctx != nil && ctx.VPC != "" {
		if vpcPerms, ok := c.policy.VPCOverrides[ctx.VPC]; ok {
			if c.checkPermissionMap(username, permission, vpcPerms) {
				return nil
			}
		}
	}

	// Fall back to the global permission map
	if c.checkPermissionMap(username, permission, c.policy.Permissions) {
		return nil
	}

	return &PermissionError{
		User:       username,
		Permission: permission,
		Context:    ctx,
	}
}

// IsSuperUser returns true if the current user is a superuser
func (c *Checker) IsSuperUser() bool {
	return c.isSuperUser(c.currentUser)
}

func (c *Checker) isSuperUser(username string) bool {
	return slices.Contains(c.policy.SuperUsers, username)
}

// checkPermissionMap checks whether username has the given permission in permMap.
// It first checks the "all" wildcard key, then the specific permission key.
func (c *Checker) checkPermissionMap(username string, permission Permission, permMap map[string][]string) bool {
	if permMap == nil {
		return false
	}

	if groups, ok := permMap["all"]; ok {
		if c.userInGroups(username, groups) {
			return true
		}
	}

	groups, ok := permMap[string(permission)]
	if !ok {
		return false
	}

	return c.userInGroups(username, groups)
}

func (c *Checker) userInGroups(username string, allowedGroups []string) bool {
	for _, group := range allowedGroups {
		if group == username {
			return true
		}
		if members, ok := c.policy.UserGroups[group]; ok {
			if slices.Contains(members, username) {
				return true
			}
		}
	}
	return false
}

// PermissionError represents a permission denial
type PermissionError struct {
	User       string
	Permission Permission
	Context    *Context
}

func (e *PermissionError) Error() string {
	msg := fmt.Sprintf("permission denied: user '%s' does not have '%s' permission", e.User, e.Permission)
	if e.Context != nil {
		if e.Context.VPC != "" {
			msg += fmt.Sprintf(" on vpc '%s'", e.Context.VPC)
		}
		if e.Context.Subnet != "" {
			msg += fmt.Sprintf(" (subnet '%s')", e.Context.Subnet)
		}
	}
	return msg
}

func (e *PermissionError) Unwrap() error {
	return util.ErrPermissionDenied
}
