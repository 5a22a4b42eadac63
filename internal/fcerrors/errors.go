// Package fcerrors defines the closed error taxonomy that every topology
// engine returns. Callers match on kind with errors.As, not string content.
package fcerrors

import "fmt"

// ObjectKind enumerates the kernel objects Check/Delete can report missing.
type ObjectKind string

const (
	Tap                  ObjectKind = "Tap"
	Veth                 ObjectKind = "Veth"
	NfTable              ObjectKind = "NfTable"
	NfPostroutingChain   ObjectKind = "NfPostroutingChain"
	NfPreroutingChain    ObjectKind = "NfPreroutingChain"
	NfFilterChain        ObjectKind = "NfFilterChain"
	NfMasqueradeRule     ObjectKind = "NfMasqueradeRule"
	NfEgressForwardRule  ObjectKind = "NfEgressForwardRule"
	NfIngressForwardRule ObjectKind = "NfIngressForwardRule"
	NfSnatRule           ObjectKind = "NfSnatRule"
	NfDnatRule           ObjectKind = "NfDnatRule"
)

// NetlinkOperationError wraps any RTNL failure.
type NetlinkOperationError struct{ Cause error }

func (e *NetlinkOperationError) Error() string { return fmt.Sprintf("netlink operation: %v", e.Cause) }
func (e *NetlinkOperationError) Unwrap() error  { return e.Cause }

// NftablesError wraps a failure of the external nftables executor, or a
// parse error on its output.
type NftablesError struct{ Cause error }

func (e *NftablesError) Error() string { return fmt.Sprintf("nftables: %v", e.Cause) }
func (e *NftablesError) Unwrap() error  { return e.Cause }

// TapDeviceError wraps a failure to create/configure a TAP device.
type TapDeviceError struct{ Cause error }

func (e *TapDeviceError) Error() string { return fmt.Sprintf("tap device: %v", e.Cause) }
func (e *TapDeviceError) Unwrap() error  { return e.Cause }

// NetnsError wraps a failure to open or switch network namespaces.
type NetnsError struct{ Cause error }

func (e *NetnsError) Error() string { return fmt.Sprintf("netns: %v", e.Cause) }
func (e *NetnsError) Unwrap() error  { return e.Cause }

// IoError wraps a failure to open a fresh netlink socket.
type IoError struct{ Cause error }

func (e *IoError) Error() string { return fmt.Sprintf("io: %v", e.Cause) }
func (e *IoError) Unwrap() error  { return e.Cause }

// ObjectNotFoundError reports that a named kernel object is missing.
type ObjectNotFoundError struct{ Kind ObjectKind }

func (e *ObjectNotFoundError) Error() string { return fmt.Sprintf("object not found: %s", e.Kind) }

// ObjectNotFound constructs an ObjectNotFoundError for the given kind.
func ObjectNotFound(kind ObjectKind) error { return &ObjectNotFoundError{Kind: kind} }

// ErrForbiddenDualStackInRoute is returned when a route's destination and
// gateway belong to different address families.
var ErrForbiddenDualStackInRoute = fmt.Errorf("forbidden dual stack in route")
