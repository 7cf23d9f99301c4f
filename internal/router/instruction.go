package router

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/ppiankov/oraclegate/internal/model"
)

// OpcodeSize is the length of the leading instruction tag.
const OpcodeSize = 8

// ExecuteSize is the length of an execute instruction: opcode then amount.
const ExecuteSize = OpcodeSize + 8

// ExecuteOpcode is the transfer-hook execute discriminator.
var ExecuteOpcode = opcode("spl-transfer-hook-interface:execute")

func opcode(preimage string) [OpcodeSize]byte {
	sum := sha256.Sum256([]byte(preimage))
	var op [OpcodeSize]byte
	copy(op[:], sum[:OpcodeSize])
	return op
}

// EncodeExecute builds the raw execute instruction for amount.
func EncodeExecute(amount uint64) []byte {
	buf := make([]byte, ExecuteSize)
	copy(buf, ExecuteOpcode[:])
	binary.LittleEndian.PutUint64(buf[OpcodeSize:], amount)
	return buf
}

// ParseExecute returns the amount carried by an execute instruction. Any
// other opcode, or a buffer too short to hold the amount, is
// InvalidInstruction. Trailing bytes are ignored.
func ParseExecute(data []byte) (uint64, error) {
	if len(data) < OpcodeSize {
		return 0, model.Denied(model.InvalidInstruction, fmt.Sprintf("instruction of %d bytes has no opcode", len(data)))
	}
	if [OpcodeSize]byte(data[:OpcodeSize]) != ExecuteOpcode {
		return 0, model.Denied(model.InvalidInstruction, fmt.Sprintf("unknown opcode %x", data[:OpcodeSize]))
	}
	if len(data) < ExecuteSize {
		return 0, model.Denied(model.InvalidInstruction, "execute instruction missing amount")
	}
	return binary.LittleEndian.Uint64(data[OpcodeSize:ExecuteSize]), nil
}
