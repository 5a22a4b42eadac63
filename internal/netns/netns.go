// Package netns runs a task bound to a named network namespace (spec.md
// §4.4), grounded on the dedicated-thread netns.Get/netns.Set pattern in
// the retrieved glacic project's setupNetworkNamespace.
package netns

import (
	"fmt"
	"runtime"

	"github.com/vishvananda/netns"

	"github.com/fcnet/fcnet/internal/fcerrors"
)

// RunInNetns opens the namespace file at /var/run/netns/<name>, switches
// the calling OS thread into it, runs task, and restores the ambient
// namespace before returning — on every exit path, including task's
// failure. setns is thread-global, so this locks a dedicated OS thread for
// the duration; the goroutine never returns to the scheduler's general
// pool with a foreign namespace active.
func RunInNetns(name string, task func() error) (err error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	origNs, err := netns.Get()
	if err != nil {
		return &fcerrors.NetnsError{Cause: fmt.Errorf("get current netns: %w", err)}
	}
	defer origNs.Close()

	targetNs, err := netns.GetFromName(name)
	if err != nil {
		return &fcerrors.NetnsError{Cause: fmt.Errorf("open netns %q: %w", name, err)}
	}
	defer targetNs.Close()

	if err := netns.Set(targetNs); err != nil {
		return &fcerrors.NetnsError{Cause: fmt.Errorf("enter netns %q: %w", name, err)}
	}

	// Always restore the ambient namespace, even if task panics or fails;
	// the caller's thread must never observably keep running in a foreign
	// namespace after this function returns.
	defer func() {
		if resetErr := netns.Set(origNs); resetErr != nil && err == nil {
			err = &fcerrors.NetnsError{Cause: fmt.Errorf("restore original netns: %w", resetErr)}
		}
	}()

	return task()
}

// OpenByName opens the namespace file at /var/run/netns/<name> without
// switching into it, for callers that need a raw file descriptor — e.g.
// rtnl.Ops.LinkSetNsByFd, which moves a link into a namespace by fd rather
// than by name. The caller must Close the returned handle.
func OpenByName(name string) (netns.NsHandle, error) {
	h, err := netns.GetFromName(name)
	if err != nil {
		return 0, &fcerrors.NetnsError{Cause: fmt.Errorf("open netns %q: %w", name, err)}
	}
	return h, nil
}
