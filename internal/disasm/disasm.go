// Package disasm turns MBR boot code into an x86 real-mode listing.
package disasm

import (
	"fmt"
	"strings"

	"golang.org/x/arch/x86/x86asm"

	"diskinspect/internal/common"
)

// DefaultOrigin is where the BIOS loads the boot sector.
const DefaultOrigin = 0x7c00

type Syntax string

const (
	Intel Syntax = "intel"
	GNU   Syntax = "gnu"
)

func ParseSyntax(s string) (Syntax, error) {
	switch strings.ToLower(s) {
	case "", "intel":
		return Intel, nil
	case "gnu", "att", "at&t":
		return GNU, nil
	default:
		return "", fmt.Errorf("disasm syntax %q: %w", s, common.ErrUnsupported)
	}
}

type Instruction struct {
	Address  uint64 `json:"address"`
	Mnemonic string `json:"mnemonic"`
	Operands string `json:"operands"`
	Size     int    `json:"size"`
	Bytes    []byte `json:"bytes"`
	Bad      bool   `json:"bad,omitempty"`
}

type Listing struct {
	Origin       uint64        `json:"origin"`
	Instructions []Instruction `json:"instructions"`
	// TotalSize is the number of bytes covered by decoded instructions.
	TotalSize int `json:"total_size"`
	BadBytes  int `json:"bad_bytes"`
}

// Disassembler decodes a code buffer loaded at origin.
type Disassembler interface {
	Disassemble(code []byte, origin uint64) (*Listing, error)
}

type Options struct {
	Syntax Syntax
	// StopOnBad ends the listing at the first undecodable byte instead of
	// emitting "(bad)" and resyncing one byte later.
	StopOnBad bool
}

type x86 struct {
	opt Options
}

// New returns a 16-bit x86 disassembler.
func New(opt Options) Disassembler {
	if opt.Syntax == "" {
		opt.Syntax = Intel
	}
	return &x86{opt: opt}
}

func (d *x86) Disassemble(code []byte, origin uint64) (*Listing, error) {
	l := &Listing{Origin: origin, Instructions: []Instruction{}}
	for off := 0; off < len(code); {
		pc := origin + uint64(off)
		inst, err := x86asm.Decode(code[off:], 16)
		// a truncated tail or a lone prefix decodes without error but with no opcode
		if err != nil || inst.Len == 0 || inst.Op == 0 {
			if d.opt.StopOnBad {
				break
			}
			l.Instructions = append(l.Instructions, Instruction{
				Address: pc, Mnemonic: "(bad)", Size: 1,
				Bytes: []byte{code[off]}, Bad: true,
			})
			l.BadBytes++
			off++
			continue
		}
		mn, ops := split(d.render(inst, pc))
		l.Instructions = append(l.Instructions, Instruction{
			Address:  pc,
			Mnemonic: mn,
			Operands: ops,
			Size:     inst.Len,
			Bytes:    append([]byte(nil), code[off:off+inst.Len]...),
		})
		l.TotalSize += inst.Len
		off += inst.Len
	}
	return l, nil
}

func (d *x86) render(inst x86asm.Inst, pc uint64) string {
	if d.opt.Syntax == GNU {
		return x86asm.GNUSyntax(inst, pc, nil)
	}
	return x86asm.IntelSyntax(inst, pc, nil)
}

var prefixes = map[string]bool{
	"rep": true, "repe": true, "repz": true, "repne": true, "repnz": true,
	"lock": true, "data16": true, "data32": true, "addr16": true, "addr32": true,
}

// split separates the mnemonic (with any prefixes) from the operand text.
func split(text string) (string, string) {
	fields := strings.Fields(text)
	i := 0
	for i < len(fields)-1 && prefixes[fields[i]] {
		i++
	}
	if len(fields) == 0 {
		return "", ""
	}
	mn := strings.Join(fields[:i+1], " ")
	ops := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), mn))
	return mn, ops
}
