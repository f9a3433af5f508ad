package types

import (
	"encoding/hex"
	"encoding/json"
)

// ScriptType identifies the locking condition of an output.
type ScriptType uint8

// Script types the wallet tells apart. Every other type is carried opaquely
// and never counted as spendable.
const (
	ScriptTypeP2PKH ScriptType = 0x01
	ScriptTypeP2SH  ScriptType = 0x02
	ScriptTypeBurn  ScriptType = 0x11
	ScriptTypeStake ScriptType = 0x40
)

var scriptTypeNames = map[ScriptType]string{
	ScriptTypeP2PKH: "P2PKH",
	ScriptTypeP2SH:  "P2SH",
	ScriptTypeBurn:  "Burn",
	ScriptTypeStake: "Stake",
}

func (st ScriptType) String() string {
	if name, ok := scriptTypeNames[st]; ok {
		return name
	}
	return "Unknown"
}

// Script locks an output. Data is the address for P2PKH.
type Script struct {
	Type ScriptType
	Data []byte
}

// PayToAddress locks an output to a.
func PayToAddress(a Address) Script {
	return Script{Type: ScriptTypeP2PKH, Data: a.Bytes()}
}

// Address returns the owner of a P2PKH script.
func (s Script) Address() (Address, bool) {
	var a Address
	if s.Type != ScriptTypeP2PKH || len(s.Data) != AddressSize {
		return a, false
	}
	copy(a[:], s.Data)
	return a, true
}

type scriptJSON struct {
	Type ScriptType `json:"type"`
	Data string     `json:"data"`
}

func (s Script) MarshalJSON() ([]byte, error) {
	return json.Marshal(scriptJSON{Type: s.Type, Data: hex.EncodeToString(s.Data)})
}

func (s *Script) UnmarshalJSON(b []byte) error {
	var j scriptJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	data, err := hex.DecodeString(j.Data)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		data = nil
	}
	*s = Script{Type: j.Type, Data: data}
	return nil
}
