package ethereum

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/Klingon-tech/walletkit/pkg/amount"
	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

// transferSelector is the ERC-20 transfer(address,uint256) method id.
var transferSelector = []byte{0xa9, 0x05, 0x9c, 0xbb}

type walletHandlers struct{}

func keyOf(w *walletkit.Wallet) *accountKey {
	return w.Account().Key().(*accountKey)
}

// tokenContract returns the ERC-20 contract of a token wallet.
func tokenContract(w *walletkit.Wallet) (common.Address, bool) {
	c := w.Currency()
	if c.Type() != amount.TypeERC20 || !common.IsHexAddress(c.Issuer()) {
		return common.Address{}, false
	}
	return common.HexToAddress(c.Issuer()), true
}

// erc20TransferData encodes transfer(to, value).
func erc20TransferData(to common.Address, value *uint256.Int) []byte {
	data := make([]byte, 0, 4+2*32)
	data = append(data, transferSelector...)
	data = append(data, common.LeftPadBytes(to.Bytes(), 32)...)
	word := value.Bytes32()
	return append(data, word[:]...)
}

func (walletHandlers) NewData(*walletkit.Wallet) walletkit.WalletData { return nil }

func (walletHandlers) Address(w *walletkit.Wallet, _ walletkit.AddressScheme) (walletkit.AddressValue, error) {
	return keyOf(w).Address(), nil
}

func (walletHandlers) HasAddress(w *walletkit.Wallet, v walletkit.AddressValue) bool {
	return keyOf(w).HasAddress(v)
}

func (walletHandlers) AddressesForRecovery(w *walletkit.Wallet) []walletkit.AddressValue {
	return keyOf(w).Addresses()
}

// TransferAttributes offers call data on ether transfers only.
func (walletHandlers) TransferAttributes(w *walletkit.Wallet, _ *walletkit.Address) []walletkit.Attribute {
	if _, ok := tokenContract(w); ok {
		return nil
	}
	return []walletkit.Attribute{{Key: AttributeData}}
}

func (walletHandlers) ValidateAttribute(w *walletkit.Wallet, a walletkit.Attribute) error {
	if _, ok := tokenContract(w); ok || !a.KeyIs(AttributeData) {
		return &walletkit.AttributeError{Key: a.Key, Kind: walletkit.RelationshipInconsistency}
	}
	if a.Value == "" {
		return nil
	}
	if _, err := hexutil.Decode(a.Value); err != nil {
		return &walletkit.AttributeError{Key: a.Key, Kind: walletkit.MismatchedType}
	}
	return nil
}

func attributeData(attrs []walletkit.Attribute) []byte {
	for _, a := range attrs {
		if a.KeyIs(AttributeData) && a.Value != "" {
			b, _ := hexutil.Decode(a.Value)
			return b
		}
	}
	return nil
}

// nextNonce returns the nonce for a new transaction. Nonces belong to the
// account, so every wallet of the account on the network is counted, each
// transaction once, and the result is never below a nonce the key has
// already signed with.
func nextNonce(w *walletkit.Wallet) uint64 {
	seen := make(map[string]bool)
	var n uint64
	for _, s := range w.Siblings() {
		for _, t := range s.Transfers() {
			if t.Direction() == walletkit.DirectionReceived {
				continue
			}
			switch t.State().(type) {
			case walletkit.StateErrored, walletkit.StateDeleted:
				continue
			}
			if id := t.Identifier(); id != "" {
				if seen[id] {
					continue
				}
				seen[id] = true
			}
			n++
		}
	}
	return max(n, keyOf(w).signedNonce())
}

// gasBalance is the balance of the wallet paying w's fees, zero when the
// account has none.
func gasBalance(w *walletkit.Wallet) *uint256.Int {
	fw, ok := w.FeeWallet()
	if !ok {
		return new(uint256.Int)
	}
	bal := fw.Balance()
	if bal.IsNegative() {
		return new(uint256.Int)
	}
	return bal.Value()
}

func (walletHandlers) CreateTransfer(w *walletkit.Wallet, target *walletkit.Address, amt amount.Amount, fb *walletkit.FeeBasis, attrs []walletkit.Attribute) (*walletkit.TransferDraft, error) {
	to, ok := addressOf(target.Value())
	if !ok {
		return nil, fmt.Errorf("%w: not an ethereum address", walletkit.ErrInvalidAddress)
	}
	chainID, err := chainIDOf(w.Network())
	if err != nil {
		return nil, err
	}

	contract, isToken := tokenContract(w)
	gasLimit := uint64(fb.CostFactor())
	floor := uint64(DefaultGasLimit)
	if isToken {
		floor = DefaultTokenGasLimit
	}
	gasLimit = max(gasLimit, floor)
	basis := newFeeBasis(fb.Value().PricePerCostFactor(), gasLimit)
	fee, ok := basis.fee()
	if !ok {
		return nil, walletkit.ErrFeeOverflow
	}

	value := amt.Value()
	need := new(uint256.Int).Set(value)
	if !isToken {
		if _, overflow := need.AddOverflow(need, fee); overflow {
			return nil, walletkit.ErrFeeOverflow
		}
	}
	if bal := w.Balance(); bal.IsNegative() || bal.Value().Lt(need) {
		return nil, fmt.Errorf("%w: need %s, have %s", walletkit.ErrInsufficientFunds, need.Dec(), bal.Value().Dec())
	}
	if isToken {
		if gas := gasBalance(w); gas.Lt(fee) {
			return nil, fmt.Errorf("%w: gas needs %s wei, have %s", walletkit.ErrInsufficientFunds, fee.Dec(), gas.Dec())
		}
	}

	inner := &types.LegacyTx{
		Nonce:    nextNonce(w),
		GasPrice: basis.gasPrice.ToBig(),
		Gas:      gasLimit,
		To:       &to,
		Value:    value.ToBig(),
		Data:     attributeData(attrs),
	}
	if isToken {
		inner.To = &contract
		inner.Value = new(big.Int)
		inner.Data = erc20TransferData(to, value)
	}

	key := keyOf(w)
	return &walletkit.TransferDraft{
		Value:      &transferValue{chainID: chainID, unsigned: inner},
		Source:     key.Address(),
		Target:     address{to},
		Amount:     value,
		FeeBasis:   basis,
		Attributes: attrs,
	}, nil
}

func (walletHandlers) CreateMultiOutputTransfer(*walletkit.Wallet, []walletkit.TransferOutput, *walletkit.FeeBasis) (*walletkit.TransferDraft, error) {
	return nil, fmt.Errorf("%w: ethereum transactions have one recipient", walletkit.ErrUnsupported)
}
