package manager

import (
	"github.com/google/uuid"

	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

// State is the connection state of a Manager.
type State int

const (
	StateCreated State = iota
	StateConnected
	StateDisconnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateClosed:
		return "closed"
	default:
		return "invalid"
	}
}

// Event is delivered to a manager Listener.
type Event interface{ isManagerEvent() }

type EventStateChanged struct{ Old, New State }

type EventWalletAdded struct{ Wallet *walletkit.Wallet }

// EventWallet forwards an event of one of the manager's wallets.
type EventWallet struct {
	Wallet *walletkit.Wallet
	Event  walletkit.WalletEvent
}

type EventSyncStarted struct{}

// EventSyncStopped ends a sync; Err is nil on success.
type EventSyncStopped struct{ Err error }

type EventBlockHeight struct{ Height uint64 }

// EventFeeEstimated answers EstimateFee. FeeBasis is only valid during the
// callback unless the listener takes a reference.
type EventFeeEstimated struct {
	Cookie   uuid.UUID
	FeeBasis *walletkit.FeeBasis
	Err      error
}

func (EventStateChanged) isManagerEvent() {}
func (EventWalletAdded) isManagerEvent()  {}
func (EventWallet) isManagerEvent()       {}
func (EventSyncStarted) isManagerEvent()  {}
func (EventSyncStopped) isManagerEvent()  {}
func (EventBlockHeight) isManagerEvent()  {}
func (EventFeeEstimated) isManagerEvent() {}

// Listener receives manager events. It is called without manager locks
// held and may call back into the manager.
type Listener func(m *Manager, e Event)
