package hedera

import (
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the ledger's protobuf messages.
const (
	fieldBodyTransactionID   protowire.Number = 1
	fieldBodyNodeAccount     protowire.Number = 2
	fieldBodyFee             protowire.Number = 3
	fieldBodyValidDuration   protowire.Number = 4
	fieldBodyMemo            protowire.Number = 6
	fieldBodyCryptoTransfer  protowire.Number = 14
	fieldTxIDValidStart      protowire.Number = 1
	fieldTxIDAccount         protowire.Number = 2
	fieldTransferList        protowire.Number = 1
	fieldAccountAmounts      protowire.Number = 1
	fieldAccountAmountID     protowire.Number = 1
	fieldAccountAmountValue  protowire.Number = 2
	fieldSignedBody          protowire.Number = 1
	fieldSignedSigMap        protowire.Number = 2
	fieldSigMapPair          protowire.Number = 1
	fieldSigPairPrefix       protowire.Number = 1
	fieldSigPairEd25519      protowire.Number = 3
	fieldTransactionSignedTx protowire.Number = 5
)

type accountAmount struct {
	account address
	amount  int64
}

// body is a crypto transfer transaction body.
type body struct {
	payer      address
	node       address
	validStart time.Time
	fee        uint64
	memo       string
	transfers  []accountAmount
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendMessage(b []byte, num protowire.Number, m []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m)
}

func appendAccountID(b []byte, num protowire.Number, a address) []byte {
	var m []byte
	m = appendVarint(m, 1, a.shard)
	m = appendVarint(m, 2, a.realm)
	m = appendVarint(m, 3, a.num)
	return appendMessage(b, num, m)
}

func appendTimestamp(b []byte, num protowire.Number, t time.Time) []byte {
	var m []byte
	m = appendVarint(m, 1, uint64(t.Unix()))
	m = appendVarint(m, 2, uint64(t.Nanosecond()))
	return appendMessage(b, num, m)
}

func (tb *body) marshal() []byte {
	var txID []byte
	txID = appendTimestamp(txID, fieldTxIDValidStart, tb.validStart)
	txID = appendAccountID(txID, fieldTxIDAccount, tb.payer)

	var list []byte
	for _, aa := range tb.transfers {
		var m []byte
		m = appendAccountID(m, fieldAccountAmountID, aa.account)
		m = appendVarint(m, fieldAccountAmountValue, protowire.EncodeZigZag(aa.amount))
		list = appendMessage(list, fieldAccountAmounts, m)
	}
	var transfer []byte
	transfer = appendMessage(transfer, fieldTransferList, list)

	var b []byte
	b = appendMessage(b, fieldBodyTransactionID, txID)
	b = appendAccountID(b, fieldBodyNodeAccount, tb.node)
	b = appendVarint(b, fieldBodyFee, tb.fee)
	b = appendMessage(b, fieldBodyValidDuration, appendVarint(nil, 1, uint64(validDuration/time.Second)))
	if tb.memo != "" {
		b = protowire.AppendTag(b, fieldBodyMemo, protowire.BytesType)
		b = protowire.AppendString(b, tb.memo)
	}
	return appendMessage(b, fieldBodyCryptoTransfer, transfer)
}

// signedTransaction wraps a body and one ed25519 signature.
func signedTransaction(bodyBytes, pub, sig []byte) []byte {
	var pair []byte
	pair = appendMessage(pair, fieldSigPairPrefix, pub)
	pair = appendMessage(pair, fieldSigPairEd25519, sig)
	var sigMap []byte
	sigMap = appendMessage(sigMap, fieldSigMapPair, pair)

	var b []byte
	b = appendMessage(b, fieldSignedBody, bodyBytes)
	if sig != nil {
		b = appendMessage(b, fieldSignedSigMap, sigMap)
	}
	return b
}

func transaction(signedTx []byte) []byte {
	return appendMessage(nil, fieldTransactionSignedTx, signedTx)
}
