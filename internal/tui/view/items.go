package view

import (
	"bytes"
	"fmt"

	"diskinspect/internal/report"
)

// buildItems lists what the left pane offers, in on-disk order.
func buildItems(r *report.Report) []item {
	out := []item{{kind: kSummary, label: "Summary"}}
	if len(r.BootCode) > 0 {
		out = append(out, item{kind: kBootCode, label: "Boot code"})
	}
	if r.Disasm != nil {
		out = append(out, item{kind: kDisasm, label: "Disassembly"})
	}
	if m := r.MBR; m != nil {
		rows := append(append([]report.MBRRow(nil), m.Entries...), m.Logical...)
		for i := range rows {
			row := rows[i]
			out = append(out, item{kind: kMBREntry, mbr: &row,
				label: fmt.Sprintf("MBR %d %s", row.Slot, row.TypeName)})
		}
	}
	if g := r.GPT; g != nil {
		out = append(out, item{kind: kGPTHeader, label: "GPT header"})
		for i := range g.Entries {
			row := g.Entries[i]
			name := row.Name
			if name == "" {
				name = row.TypeName
			}
			out = append(out, item{kind: kGPTEntry, gpt: &row,
				label: fmt.Sprintf("GPT %d %s", row.Index, name)})
		}
	}
	return out
}

func detailText(r *report.Report, it item) string {
	var buf bytes.Buffer
	switch it.kind {
	case kSummary:
		report.WriteText(&buf, &report.Report{
			Image: r.Image, Codec: r.Codec, Size: r.Size, SizeHuman: r.SizeHuman,
			Scheme: r.Scheme, SectorSize: r.SectorSize,
		}, report.Sections{}, false)
		if r.GPT != nil {
			fmt.Fprintf(&buf, "GPT entries: %d of %d slots read\n", len(r.GPT.Entries), r.GPT.SlotsRead)
		}
	case kBootCode:
		report.HexDump(&buf, r.BootCode)
	case kDisasm:
		report.WriteListing(&buf, r.Disasm)
	case kMBREntry:
		report.WriteMBRRow(&buf, *it.mbr)
	case kGPTHeader:
		g := *r.GPT
		g.Entries, g.EntryErrors = nil, nil
		report.WriteText(&buf, &report.Report{GPT: &g}, report.Sections{GPT: true}, false)
		for _, slot := range r.GPT.ErrorSlots() {
			fmt.Fprintf(&buf, "slot %d: %s\n", slot, r.GPT.EntryErrors[slot])
		}
	case kGPTEntry:
		report.WriteGPTRow(&buf, *it.gpt)
	}
	return buf.String()
}
