package solana

import (
	"encoding/binary"
	"testing"

	"github.com/chigozirigeorge/omnixec-sub000/internal/svcerrors"
)

// buildInstructionBlob assembles the length-prefixed wire format decodeInstructions expects.
func buildInstructionBlob(t *testing.T, instructions [][]byte) []byte {
	t.Helper()
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(len(instructions)))
	for _, ins := range instructions {
		buf = append(buf, ins...)
	}
	return buf
}

// buildSingleInstruction builds one instruction's bytes: program id, zero
// accounts, and an opaque data blob.
func buildSingleInstruction(programID [32]byte, data []byte) []byte {
	out := make([]byte, 0, 4+32+4+4+len(data))
	idLen := make([]byte, 4)
	binary.LittleEndian.PutUint32(idLen, 32)
	out = append(out, idLen...)
	out = append(out, programID[:]...)

	numAccounts := make([]byte, 4)
	binary.LittleEndian.PutUint32(numAccounts, 0)
	out = append(out, numAccounts...)

	dataLen := make([]byte, 4)
	binary.LittleEndian.PutUint32(dataLen, uint32(len(data)))
	out = append(out, dataLen...)
	out = append(out, data...)
	return out
}

func TestDecodeInstructionsSingleInstructionNoAccounts(t *testing.T) {
	var programID [32]byte
	programID[0] = 1
	blob := buildInstructionBlob(t, [][]byte{buildSingleInstruction(programID, []byte("payload"))})

	instructions, err := decodeInstructions(blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(instructions) != 1 {
		t.Fatalf("expected 1 instruction, got %d", len(instructions))
	}
	data, err := instructions[0].Data()
	if err != nil {
		t.Fatalf("instruction data: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("expected data %q, got %q", "payload", data)
	}
}

func TestDecodeInstructionsWithAccountMetas(t *testing.T) {
	var programID [32]byte
	programID[0] = 2
	var key [32]byte
	key[1] = 9

	ins := make([]byte, 0, 64)
	idLen := make([]byte, 4)
	binary.LittleEndian.PutUint32(idLen, 32)
	ins = append(ins, idLen...)
	ins = append(ins, programID[:]...)

	numAccounts := make([]byte, 4)
	binary.LittleEndian.PutUint32(numAccounts, 1)
	ins = append(ins, numAccounts...)
	ins = append(ins, key[:]...)
	ins = append(ins, byte(1), byte(1)) // is_signer=true, is_writable=true

	dataLen := make([]byte, 4)
	binary.LittleEndian.PutUint32(dataLen, 0)
	ins = append(ins, dataLen...)

	blob := buildInstructionBlob(t, [][]byte{ins})

	instructions, err := decodeInstructions(blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	accounts := instructions[0].Accounts()
	if len(accounts) != 1 {
		t.Fatalf("expected 1 account meta, got %d", len(accounts))
	}
	if !accounts[0].IsSigner || !accounts[0].IsWritable {
		t.Fatal("expected signer and writable flags to be set")
	}
}

func TestDecodeInstructionsRejectsEmptyInput(t *testing.T) {
	_, err := decodeInstructions(nil)
	if err == nil {
		t.Fatal("expected error for input too short to contain a count")
	}
	if se := svcerrors.As(err); se == nil || se.Code != svcerrors.CodeInvalidInput {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestDecodeInstructionsRejectsZeroCount(t *testing.T) {
	blob := make([]byte, 4)
	binary.LittleEndian.PutUint32(blob, 0)

	_, err := decodeInstructions(blob)
	if err == nil {
		t.Fatal("expected error for zero instruction count")
	}
}

func TestDecodeInstructionsRejectsCountAboveMax(t *testing.T) {
	blob := make([]byte, 4)
	binary.LittleEndian.PutUint32(blob, maxInstructions+1)

	_, err := decodeInstructions(blob)
	if err == nil {
		t.Fatal("expected error for instruction count above maximum")
	}
}

func TestDecodeInstructionsRejectsTruncatedPayload(t *testing.T) {
	var programID [32]byte
	full := buildInstructionBlob(t, [][]byte{buildSingleInstruction(programID, []byte("payload"))})
	truncated := full[:len(full)-3]

	_, err := decodeInstructions(truncated)
	if err == nil {
		t.Fatal("expected error for truncated instruction payload")
	}
}

func TestDecodeInstructionsRejectsTrailingBytes(t *testing.T) {
	var programID [32]byte
	blob := buildInstructionBlob(t, [][]byte{buildSingleInstruction(programID, []byte("payload"))})
	blob = append(blob, 0xFF)

	_, err := decodeInstructions(blob)
	if err == nil {
		t.Fatal("expected error for trailing bytes after the last instruction")
	}
}
