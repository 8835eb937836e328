// Package token implements the Token Projector (spec §4.4): a pure mapping
// from a Code Object's Instructions to the flat sequence of lowercase
// tokens the classifier consumes. Grounded on the teacher's
// internal/analysis symbol-to-string projection idiom (a single switch over
// a closed tag set, deterministic order, no hidden state).
package token

import (
	"strconv"
	"strings"

	"github.com/schirrmacher/malwi/internal/compiler"
	"github.com/schirrmacher/malwi/internal/types"
)

// Project walks obj's Instructions in order and appends one or more tokens
// per instruction to the running sequence: always the opcode name, then
// zero or more tokens for its argument (spec §4.4). A child Code Object
// reference (MAKE_FUNCTION/MAKE_CLASS) projects to the child's name only,
// never its body — the body is projected separately, once, when that Code
// Object itself is walked (spec §9, avoids double-counting shared
// children).
func Project(arena *compiler.Arena, id types.CodeObjectID) []string {
	obj := arenaGet(arena, id)
	tokens := make([]string, 0, len(obj.Instructions)*2)
	for _, ins := range obj.Instructions {
		tokens = append(tokens, strings.ToLower(ins.Op.String()))
		if ins.Arg.Kind == types.ArgCodeObjectRef {
			tokens = append(tokens, strings.ToLower(arenaGet(arena, ins.Arg.ObjectID).Name))
			continue
		}
		tokens = append(tokens, projectArg(ins.Arg)...)
	}
	return tokens
}

// ProjectAll projects every Code Object reachable from root (root included)
// in a deterministic pre-order walk, concatenating their token sequences.
// This is the whole-file projection a Scan Object stores (spec §3).
func ProjectAll(arena *compiler.Arena, root types.CodeObjectID) []string {
	var tokens []string
	var walk func(id types.CodeObjectID)
	walk = func(id types.CodeObjectID) {
		obj := arenaGet(arena, id)
		tokens = append(tokens, Project(arena, id)...)
		for _, child := range obj.Children {
			walk(child)
		}
	}
	walk(root)
	return tokens
}

func arenaGet(arena *compiler.Arena, id types.CodeObjectID) *types.CodeObject {
	return arena.Objects[id]
}

func projectArg(arg types.Argument) []string {
	switch arg.Kind {
	case types.ArgNone:
		return nil
	case types.ArgInt:
		return []string{strconv.FormatInt(arg.Int, 10)}
	case types.ArgFloat:
		return []string{strconv.FormatFloat(arg.Float, 'g', -1, 64)}
	case types.ArgBool:
		return []string{strconv.FormatBool(arg.Bool)}
	case types.ArgString, types.ArgSymbol:
		return []string{strings.ToLower(arg.Str)}
	case types.ArgCategory:
		return []string{strings.ToLower(arg.Str)}
	case types.ArgKwNames:
		out := make([]string, len(arg.KwNames))
		for i, n := range arg.KwNames {
			out[i] = strings.ToLower(n)
		}
		return out
	case types.ArgCodeObjectRef:
		return nil
	default:
		return nil
	}
}
