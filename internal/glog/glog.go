// Package glog wraps klog with the small set of helpers the rest of this
// repository calls, so call sites don't import klog directly.
package glog

import (
	"fmt"

	"k8s.io/klog/v2"
)

// Infof logs at the default info verbosity.
func Infof(format string, args ...interface{}) {
	klog.InfoDepth(1, fmt.Sprintf(format, args...))
}

// Warningf logs a warning, e.g. an audit round whose remaining spare nodes
// cannot cover the deficit, or a metadata log line with an unrecognized
// status token.
func Warningf(format string, args ...interface{}) {
	klog.WarningDepth(1, fmt.Sprintf(format, args...))
}

// Errorf logs an error without returning one; used on the cleanup paths
// where a secondary failure (e.g. glfs_close equivalent) must not mask the
// primary one already being returned to the caller.
func Errorf(format string, args ...interface{}) {
	klog.ErrorDepth(1, fmt.Sprintf(format, args...))
}

// Fatalf logs and terminates the process. Reserved for startup failures in
// cmd/ main packages.
func Fatalf(format string, args ...interface{}) {
	klog.FatalDepth(1, fmt.Sprintf(format, args...))
}
