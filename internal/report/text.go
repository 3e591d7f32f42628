package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"diskinspect/internal/disasm"
)

// BytesPerLine is the width of hex dumps.
const BytesPerLine = 10

const (
	ansiBold  = "\x1b[1m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
	ansiReset = "\x1b[0m"
)

// UseColor reports whether f is an interactive terminal.
func UseColor(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type Sections struct {
	MBR, GPT, Hex, Disasm bool
}

var AllSections = Sections{MBR: true, GPT: true, Hex: true, Disasm: true}

type printer struct {
	w     io.Writer
	color bool
}

func (p printer) title(s string) {
	if p.color {
		fmt.Fprintf(p.w, "%s%s%s\n", ansiBold, s, ansiReset)
	} else {
		fmt.Fprintln(p.w, s)
	}
	fmt.Fprintln(p.w, strings.Repeat("-", 30))
}

func (p printer) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if p.color {
		msg = ansiRed + msg + ansiReset
	}
	fmt.Fprintln(p.w, msg)
}

func (p printer) field(name string, v any) {
	fmt.Fprintf(p.w, "%-22s %v\n", name+":", v)
}

// WriteText renders the selected sections of r for a human reader.
func WriteText(w io.Writer, r *Report, sec Sections, color bool) {
	p := printer{w: w, color: color}
	p.field("Image", r.Image)
	if r.Codec != "" && r.Codec != "none" {
		p.field("Compression", r.Codec)
	}
	p.field("Size", fmt.Sprintf("%s (%d bytes)", r.SizeHuman, r.Size))
	p.field("Scheme", r.Scheme)
	p.field("Sector size", r.SectorSize)
	fmt.Fprintln(w)

	if sec.Hex && len(r.BootCode) > 0 {
		p.title("MBR bytecode operations (not decoded):")
		HexDump(w, r.BootCode)
		fmt.Fprintln(w)
	}
	if sec.Disasm && r.Disasm != nil {
		p.title("MBR boot code disassembly:")
		WriteListing(w, r.Disasm)
		fmt.Fprintln(w)
	}
	if sec.MBR && r.MBR != nil {
		p.writeMBR(r.MBR)
	}
	if sec.GPT && r.GPT != nil {
		if sec.Hex && len(r.HeaderRaw) > 0 {
			p.title("GPT header block (not decoded):")
			HexDump(w, r.HeaderRaw)
			fmt.Fprintln(w)
		}
		p.writeGPT(r.GPT)
	}
}

func (p printer) writeMBR(m *MBRSection) {
	p.title("MBR partition table")
	p.field("Signature", m.Signature)
	if !m.BootSignature {
		p.warn("boot signature 0x55aa missing")
	}
	p.field("Protective", m.Protective)
	p.field("Active entries", m.ActiveCount)
	rows := append(append([]MBRRow(nil), m.Entries...), m.Logical...)
	for _, e := range rows {
		fmt.Fprintln(p.w)
		p.mbrRow(e)
	}
	if m.LogicalError != "" {
		p.warn("extended chain: %s", m.LogicalError)
	}
	fmt.Fprintln(p.w)
}

func (p printer) mbrRow(e MBRRow) {
	fmt.Fprintf(p.w, "Partition %d\n", e.Slot)
	fmt.Fprintf(p.w, "  %s\n", e.Raw)
	p.field("  Active", e.Active)
	p.field("  Status", e.Status)
	p.field("  Type", fmt.Sprintf("%s (%s)", e.Type, e.TypeName))
	p.field("  CHS start", e.StartCHS)
	p.field("  CHS end", e.EndCHS)
	p.field("  LBA start", e.StartLBA)
	p.field("  Sectors", fmt.Sprintf("%d (%s)", e.Sectors, e.SizeHuman))
}

// WriteMBRRow prints a single MBR slot.
func WriteMBRRow(w io.Writer, e MBRRow) { printer{w: w}.mbrRow(e) }

// WriteGPTRow prints a single GPT entry.
func WriteGPTRow(w io.Writer, e GPTRow) { printer{w: w}.gptRow(e) }

func (p printer) writeGPT(g *GPTSection) {
	p.title("GPT header")
	if g.HeaderError != "" {
		p.warn("header: %s", g.HeaderError)
	}
	if g.Signature == "" {
		fmt.Fprintln(p.w)
		return
	}
	p.field("Signature", fmt.Sprintf("%q", g.Signature))
	p.field("Revision", g.Revision)
	p.field("Header size", g.HeaderSize)
	p.field("Header CRC32", g.HeaderCRC32)
	p.field("Current LBA", g.CurrentLBA)
	p.field("Backup LBA", g.BackupLBA)
	p.field("First usable LBA", g.FirstUsableLBA)
	p.field("Last usable LBA", g.LastUsableLBA)
	p.field("Disk GUID", g.DiskGUID)
	p.field("Partition array LBA", g.ArrayLBA)
	p.field("Partition count", g.PartitionCount)
	p.field("Entry size", g.EntrySize)
	p.field("Array CRC32", g.ArrayCRC32)
	p.field("Array sectors", g.ArraySectors)
	p.field("Slots read", g.SlotsRead)
	if g.Truncated {
		p.warn("partition array truncated")
	}

	for _, e := range g.Entries {
		fmt.Fprintln(p.w)
		p.gptRow(e)
	}
	for _, slot := range g.ErrorSlots() {
		p.warn("slot %d: %s", slot, g.EntryErrors[slot])
	}
	fmt.Fprintln(p.w)
}

func (p printer) gptRow(e GPTRow) {
	head := fmt.Sprintf("Partition %d: %s", e.Index, e.Name)
	if p.color {
		head = ansiGreen + head + ansiReset
	}
	fmt.Fprintln(p.w, head)
	tn := e.TypeName
	if tn == "" {
		tn = "unknown"
	}
	p.field("  Type GUID", fmt.Sprintf("%s (%s)", e.TypeGUID, tn))
	p.field("  Unique GUID", e.UniqueGUID)
	p.field("  First LBA", e.FirstLBA)
	p.field("  Last LBA", e.LastLBA)
	p.field("  Size", fmt.Sprintf("%d sectors (%s)", e.Sectors, e.SizeHuman))
	p.field("  Attributes", fmt.Sprintf("0x%016x", e.Attributes.Raw))
	for _, f := range attributeLines(e) {
		fmt.Fprintf(p.w, "    %s\n", f)
	}
}

func attributeLines(e GPTRow) []string {
	a := e.Attributes
	var out []string
	if a.PlatformRequired {
		out = append(out, "platform required")
	}
	if a.EFIFirmwareIgnore {
		out = append(out, "EFI firmware should ignore")
	}
	if a.LegacyBIOSBootable {
		out = append(out, "legacy BIOS bootable")
	}
	if len(a.ReservedBits) > 0 {
		out = append(out, fmt.Sprintf("reserved bits %v", a.ReservedBits))
	}
	if w := a.Windows; w != nil {
		out = append(out, fmt.Sprintf("windows: read-only=%t shadow-copy=%t hidden=%t no-automount=%t",
			w.ReadOnly, w.ShadowCopy, w.Hidden, w.NoAutomount))
	}
	if c := a.ChromeOS; c != nil {
		out = append(out, fmt.Sprintf("chromeos: successful=%t tries=%v priority=%d",
			c.SuccessfulBoot, c.TriesRemaining, c.BootPriority))
	}
	return out
}

// HexDump prints data as 0x.. tokens, BytesPerLine per line.
func HexDump(w io.Writer, data []byte) {
	for i := 0; i < len(data); i += BytesPerLine {
		end := min(i+BytesPerLine, len(data))
		tok := make([]string, 0, BytesPerLine)
		for _, b := range data[i:end] {
			tok = append(tok, fmt.Sprintf("0x%02x", b))
		}
		fmt.Fprintln(w, strings.Join(tok, " "))
	}
}

// WriteListing prints one instruction per line and the decoded total.
// Addresses are origin plus offset into the boot code.
func WriteListing(w io.Writer, l *disasm.Listing) {
	fmt.Fprintf(w, "Origin: 0x%x (addresses are load addresses, offset 0 is byte 0 of the sector)\n", l.Origin)
	for _, in := range l.Instructions {
		fmt.Fprintf(w, "0x%x:\t%s\t%s\t%d bytes\n", in.Address, in.Mnemonic, in.Operands, in.Size)
	}
	fmt.Fprintf(w, "Total size: %d\n", l.TotalSize)
	if l.BadBytes > 0 {
		fmt.Fprintf(w, "Undecodable bytes: %d\n", l.BadBytes)
	}
}

func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
