// Package view is the interactive two-pane layout browser.
package view

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"diskinspect/internal/core"
	"diskinspect/internal/report"
)

type kind int

const (
	kSummary kind = iota
	kMBREntry
	kGPTHeader
	kGPTEntry
	kBootCode
	kDisasm
)

type item struct {
	kind  kind
	label string
	mbr   *report.MBRRow
	gpt   *report.GPTRow
}

const colLabelWidth = 28

type viewer struct {
	app    *tview.Application
	pages  *tview.Pages
	grid   *tview.Grid
	header *tview.TextView
	list   *tview.TextView
	detail *tview.TextView
	footer *tview.TextView

	st      *core.State
	rep     *report.Report
	items   []item
	index   int
	session string
}

// Run shows st until the user quits. session is the default path for F2.
func Run(st *core.State, opt report.Options, session string) error {
	rep, err := st.Report(opt)
	if err != nil {
		return err
	}
	v := &viewer{
		app:     tview.NewApplication(),
		pages:   tview.NewPages(),
		grid:    tview.NewGrid(),
		header:  tview.NewTextView(),
		list:    tview.NewTextView(),
		detail:  tview.NewTextView(),
		footer:  tview.NewTextView(),
		st:      st,
		rep:     rep,
		items:   buildItems(rep),
		session: session,
	}
	v.style()
	v.layout()
	v.bindKeys()
	v.drawHeader()
	v.drawList()
	v.drawDetail()

	v.pages.AddAndSwitchToPage("main", v.grid, true)
	v.app.SetRoot(v.pages, true)
	v.app.SetFocus(v.list)
	return v.app.Run()
}

func (v *viewer) style() {
	tview.Styles.PrimitiveBackgroundColor = tcell.ColorNavy
	tview.Styles.ContrastBackgroundColor = tcell.ColorBlue
	tview.Styles.BorderColor = tcell.ColorSkyblue
	tview.Styles.PrimaryTextColor = tcell.ColorWhite

	v.header.SetBorder(true)
	v.header.SetDynamicColors(true)
	v.header.SetTitle(" diskinspect ")
	v.header.SetTitleColor(tcell.ColorSkyblue)

	v.footer.SetBorder(true)
	v.footer.SetDynamicColors(true)
	fmt.Fprint(v.footer, footerText())

	v.list.SetBorder(true)
	v.list.SetTitle(" structures ")
	v.list.SetTitleAlign(tview.AlignLeft)
	v.list.SetBackgroundColor(tcell.ColorBlue)
	v.list.SetDynamicColors(true)
	v.list.SetScrollable(false)

	v.detail.SetBorder(true)
	v.detail.SetTitleAlign(tview.AlignLeft)
	v.detail.SetBackgroundColor(tcell.ColorBlue)
	v.detail.SetScrollable(true)
}

func footerText() string {
	lbl := func(fn, t string) string { return fmt.Sprintf("[black:white] %s [-:-:-] [yellow]%s[-]", fn, t) }
	return strings.Join([]string{
		lbl("F1", "Help"),
		lbl("F2", "Save"),
		lbl("F3", "Hex"),
		lbl("F10", "Quit"),
	}, "  ")
}

func (v *viewer) layout() {
	v.grid.SetRows(3, 0, 3).SetColumns(0).SetBorders(false)
	center := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(v.list, colLabelWidth+4, 0, true).
		AddItem(v.detail, 0, 1, false)
	v.grid.AddItem(v.header, 0, 0, 1, 1, 0, 0, false)
	v.grid.AddItem(center, 1, 0, 1, 1, 0, 0, true)
	v.grid.AddItem(v.footer, 2, 0, 1, 1, 0, 0, false)
}

func (v *viewer) drawHeader() {
	v.header.Clear()
	fmt.Fprintf(v.header, "[yellow]%s[-]   [yellow]size[-]: [white]%s[-]",
		tview.Escape(v.st.Info()), humanize.IBytes(uint64(max(v.rep.Size, 0))))
}

func (v *viewer) drawList() {
	v.list.Clear()
	for i, it := range v.items {
		line := fmt.Sprintf("%-*s", colLabelWidth, truncate(it.label, colLabelWidth))
		if i == v.index {
			fmt.Fprintf(v.list, "[black:teal]%s[-:-:-]\n", tview.Escape(line))
		} else {
			fmt.Fprintf(v.list, "%s\n", tview.Escape(line))
		}
	}
}

func (v *viewer) drawDetail() {
	if len(v.items) == 0 {
		return
	}
	it := v.items[v.index]
	v.detail.SetTitle(" " + it.label + " ")
	v.detail.SetText(detailText(v.rep, it))
	v.detail.ScrollToBeginning()
}

func (v *viewer) bindKeys() {
	v.app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if name, _ := v.pages.GetFrontPage(); name != "main" {
			return ev
		}
		switch ev.Key() {
		case tcell.KeyUp:
			v.setIndex(v.index - 1)
			return nil
		case tcell.KeyDown:
			v.setIndex(v.index + 1)
			return nil
		case tcell.KeyPgUp:
			v.setIndex(v.index - 15)
			return nil
		case tcell.KeyPgDn:
			v.setIndex(v.index + 15)
			return nil
		case tcell.KeyHome:
			v.setIndex(0)
			return nil
		case tcell.KeyEnd:
			v.setIndex(len(v.items) - 1)
			return nil
		case tcell.KeyTab:
			if v.app.GetFocus() == v.list {
				v.app.SetFocus(v.detail)
			} else {
				v.app.SetFocus(v.list)
			}
			return nil
		case tcell.KeyF1:
			v.alert("F1 Help  F2 Save session  F3 Hex of the raw block  F10 Quit\nUp/Down select, TAB switches pane")
			return nil
		case tcell.KeyF2:
			v.saveSession()
			return nil
		case tcell.KeyF3:
			v.hex()
			return nil
		case tcell.KeyF10, tcell.KeyEsc:
			v.app.Stop()
			return nil
		}
		return ev
	})
}

func (v *viewer) setIndex(i int) {
	if len(v.items) == 0 {
		return
	}
	v.index = min(max(i, 0), len(v.items)-1)
	v.drawList()
	v.drawDetail()
}

func (v *viewer) saveSession() {
	if v.session == "" {
		v.alert("no session path given (--save)")
		return
	}
	if err := v.st.SaveSession(v.session, "none"); err != nil {
		v.alert("save failed: " + err.Error())
		return
	}
	v.alert("session saved to " + v.session)
}

func (v *viewer) hex() {
	var raw []byte
	switch v.items[v.index].kind {
	case kGPTHeader:
		raw = v.rep.HeaderRaw
	default:
		raw = v.rep.BootCode
	}
	var buf bytes.Buffer
	report.HexDump(&buf, raw)
	v.viewText(buf.String(), "hex")
}

func (v *viewer) alert(text string) {
	m := tview.NewModal().SetText(text).AddButtons([]string{"OK"})
	v.pages.AddAndSwitchToPage("modal", m, true)
	m.SetDoneFunc(func(_ int, _ string) { v.pages.RemovePage("modal") })
}

func (v *viewer) viewText(txt, title string) {
	tv := tview.NewTextView()
	tv.SetText(txt)
	tv.SetScrollable(true)
	tv.SetBorder(true)
	tv.SetTitle(fmt.Sprintf(" View: %s ", title))
	wrap := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 1, 0, false).
		AddItem(tv, 0, 1, true).
		AddItem(nil, 1, 0, false)
	v.pages.AddAndSwitchToPage("view", wrap, true)
	tv.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() == tcell.KeyEsc || ev.Key() == tcell.KeyF10 {
			v.pages.RemovePage("view")
			v.app.SetFocus(v.list)
			return nil
		}
		return ev
	})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "~"
}
