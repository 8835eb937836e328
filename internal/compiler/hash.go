package compiler

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash"

	"github.com/schirrmacher/malwi/internal/types"
)

// Hash computes the canonical SHA-256 digest of obj within arena: opcode,
// argument and jump-target bytes only, line numbers excluded (spec §4.2 rule 11 — two
// syntactically different but semantically identical programs should
// produce the same Code Object when only source positions differ). A child
// Code Object reference is folded in via the child's own hash rather than
// its numeric ID, so renumbering children across compiles does not change
// the hash (spec §9, Merkle-style composition).
func Hash(arena *Arena, id types.CodeObjectID) [32]byte {
	memo := make(map[types.CodeObjectID][32]byte, len(arena.Objects))
	return hashObject(arena, id, memo)
}

func hashObject(arena *Arena, id types.CodeObjectID, memo map[types.CodeObjectID][32]byte) [32]byte {
	if h, ok := memo[id]; ok {
		return h
	}
	obj := arena.get(id)
	h := sha256.New()
	for _, ins := range obj.Instructions {
		fmt.Fprintf(h, "op:%d\n", ins.Op)
		writeArg(h, arena, ins.Arg, memo)
		if ins.JumpTarget >= 0 {
			binary.Write(h, binary.BigEndian, int64(ins.JumpTarget))
		}
	}
	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	memo[id] = digest
	return digest
}

func writeArg(h hash.Hash, arena *Arena, arg types.Argument, memo map[types.CodeObjectID][32]byte) {
	fmt.Fprintf(h, "kind:%d\n", arg.Kind)
	switch arg.Kind {
	case types.ArgInt:
		binary.Write(h, binary.BigEndian, arg.Int)
	case types.ArgFloat:
		binary.Write(h, binary.BigEndian, arg.Float)
	case types.ArgBool:
		if arg.Bool {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	case types.ArgString, types.ArgSymbol, types.ArgCategory:
		fmt.Fprintf(h, "s:%s\n", arg.Str)
	case types.ArgKwNames:
		for _, n := range arg.KwNames {
			fmt.Fprintf(h, "kw:%s\n", n)
		}
	case types.ArgCodeObjectRef:
		child := hashObject(arena, arg.ObjectID, memo)
		fmt.Fprintf(h, "ref:%x\n", child)
	}
}

// HashHex returns Hash as a hex string, the form stored on a Scan Object
// (spec §3) and used for instruction-hash dedup by the Report Aggregator
// (spec §4.5).
func HashHex(arena *Arena, id types.CodeObjectID) string {
	h := Hash(arena, id)
	return fmt.Sprintf("%x", h)
}
