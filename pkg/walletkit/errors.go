package walletkit

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/walletkit/internal/log"
)

// Lookup errors.
var (
	ErrUnknownLedger = errors.New("walletkit: unknown ledger")
	ErrNotFound      = errors.New("walletkit: not found")
)

// Validation errors.
var (
	ErrInvalidAddress       = errors.New("walletkit: invalid address")
	ErrInvalidHash          = errors.New("walletkit: invalid hash")
	ErrInvalidSerialization = errors.New("walletkit: invalid serialization")
	ErrInvalidSeed          = errors.New("walletkit: invalid seed")
	ErrLedgerMismatch       = errors.New("walletkit: ledger mismatch")
	ErrCurrencyMismatch     = errors.New("walletkit: currency mismatch")
	ErrAddressUnassigned    = errors.New("walletkit: account address not assigned")
	ErrUnsupported          = errors.New("walletkit: operation not supported by ledger")
	ErrInsufficientFunds    = errors.New("walletkit: insufficient funds")
	ErrInvalidTransition    = errors.New("walletkit: invalid transfer state transition")
	ErrNotOwned             = errors.New("walletkit: transfer addresses not owned by wallet")
	ErrNotSigned            = errors.New("walletkit: transfer not signed")
	ErrWalletDeleted        = errors.New("walletkit: wallet deleted")
	ErrNegativeAmount       = errors.New("walletkit: negative amount")
	ErrNoFeeBasis           = errors.New("walletkit: no fee basis")
)

// Numeric errors.
var (
	ErrNegativeCostFactor = errors.New("walletkit: negative cost factor")
	ErrFeeOverflow        = errors.New("walletkit: fee overflows 256 bits")
	ErrNegativeFee        = errors.New("walletkit: negative fee")
)

// AttributeErrorKind classifies a failed attribute validation.
type AttributeErrorKind int

const (
	RequiredButNotProvided AttributeErrorKind = iota + 1
	MismatchedType
	RelationshipInconsistency
)

func (k AttributeErrorKind) String() string {
	switch k {
	case RequiredButNotProvided:
		return "required but not provided"
	case MismatchedType:
		return "mismatched type"
	case RelationshipInconsistency:
		return "relationship inconsistency"
	default:
		return "unknown"
	}
}

// AttributeError reports why a transfer attribute was rejected.
type AttributeError struct {
	Key  string
	Kind AttributeErrorKind
}

func (e *AttributeError) Error() string {
	return fmt.Sprintf("walletkit: attribute %q: %s", e.Key, e.Kind)
}

// SubmitErrorKind classifies a submission failure.
type SubmitErrorKind int

const (
	SubmitUnknown SubmitErrorKind = iota
	SubmitPosix
)

// SubmitError describes why a transfer could not be submitted. It is carried
// in the Errored state and delivered to listeners rather than returned.
type SubmitError struct {
	Kind    SubmitErrorKind
	Errno   int
	Message string
}

func (e SubmitError) Error() string {
	if e.Kind == SubmitPosix {
		return fmt.Sprintf("submit: posix errno %d: %s", e.Errno, e.Message)
	}
	if e.Message == "" {
		return "submit: unknown error"
	}
	return "submit: " + e.Message
}

// ContractError is the panic value raised when an internal invariant is
// broken. It is never returned.
type ContractError struct {
	Msg string
	Err error
}

func (e *ContractError) Error() string {
	if e.Err != nil {
		return "walletkit: contract violation: " + e.Msg + ": " + e.Err.Error()
	}
	return "walletkit: contract violation: " + e.Msg
}

func (e *ContractError) Unwrap() error { return e.Err }

func violate(format string, args ...any) {
	err := &ContractError{Msg: fmt.Sprintf(format, args...)}
	log.Registry.Error().Str("violation", err.Msg).Msg("Contract violation")
	panic(err)
}
