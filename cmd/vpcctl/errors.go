package main

import (
	"errors"

	"github.com/vpcnet/vpcctl/pkg/util"
)

// isStateStoreError reports whether err reflects a corrupted state record,
// as opposed to a host-execution or usage failure.
func isStateStoreError(err error) bool {
	return errors.Is(err, util.ErrStateCorrupt)
}

// usageSentinels are errors the reconciler/validation layers raise before
// any host command runs; these map to exitUsage rather than exitHostExec.
var usageSentinels = []error{
	util.ErrNotFound,
	util.ErrAlreadyExists,
	util.ErrValidationFailed,
	util.ErrInvalidConfig,
	util.ErrLockTimeout,
	util.ErrPermissionDenied,
	util.ErrDependencyMissing,
	util.ErrInUse,
}

// isHostExecError reports whether err reflects a failed host kernel
// mutation: every reconciler error that isn't a known usage sentinel or
// state corruption is assumed to have come from a hostexec.Result.Err,
// since that is the only other error source inside the reconciler.
func isHostExecError(err error) bool {
	if isStateStoreError(err) {
		return false
	}
	for _, sentinel := range usageSentinels {
		if errors.Is(err, sentinel) {
			return false
		}
	}
	return true
}
