package tx

// Size constants of the wire form used for fee estimation.
const (
	overheadSize = 4 + 4 + 4 + 8    // version + inputCount + outputCount + locktime
	inputSize    = 32 + 4 + 64 + 33 // txID + index + signature + pubkey
	p2pkhOutSize = 8 + 1 + 4 + 20   // value + scriptType + scriptDataLen + address
	witnessSize  = 64 + 33          // signature + pubkey
)

// EstimateSize returns the signed size in bytes of a transaction spending
// numInputs P2PKH outputs into numOutputs P2PKH outputs.
func EstimateSize(numInputs, numOutputs int) int {
	return overheadSize + inputSize*numInputs + p2pkhOutSize*numOutputs
}

// Size returns the signed size of tx: its signing bytes plus a signature
// and public key per input, whether or not it is signed yet.
func (tx *Transaction) Size() int {
	n := len(tx.SigningBytes())
	for _, in := range tx.Inputs {
		if !in.PrevOut.IsZero() {
			n += witnessSize
		}
	}
	return n
}
