package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"diskinspect/internal/catalog"
	"diskinspect/internal/core"
	"diskinspect/internal/logger"
	"diskinspect/internal/report"
)

func (a *app) inspectCmd(use, short string, sec report.Sections, forceGPT bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " IMAGE",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.open(cmd, args[0], forceGPT)
			if err != nil {
				return err
			}
			defer st.Close()

			if sec.Disasm {
				d, err := a.disassembler()
				if err != nil {
					return err
				}
				if err := st.Disassemble(d, a.cfg.Disasm.Origin); err != nil {
					return err
				}
			}
			a.record(cmd, st)
			return a.render(cmd, st, sec)
		},
	}
	return cmd
}

func (a *app) render(cmd *cobra.Command, st *core.State, sec report.Sections) error {
	rep, err := st.Report(a.reportOptions())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if a.cfg.Output == "json" {
		if !sec.MBR {
			rep.MBR = nil
		}
		if !sec.GPT {
			rep.GPT = nil
		}
		return report.WriteJSON(out, rep)
	}
	color := false
	if f, ok := out.(*os.File); ok {
		color = report.UseColor(f)
	}
	report.WriteText(out, rep, sec, color)
	return nil
}

// record adds the scan to the history catalog and mentions earlier scans of
// the same tables. Failures only get logged.
func (a *app) record(cmd *cobra.Command, st *core.State) {
	if a.flags.noHistory || a.cfg.Catalog.Path == "" {
		return
	}
	db, err := catalog.Open(a.cfg.Catalog.Path)
	if err != nil {
		logger.DiskInspectLogger.Warning("history unavailable", "err", err)
		return
	}
	defer db.Close()
	s, parts := catalog.FromLayout(st.Image, st.Layout)
	if n, err := db.Seen(s.Fingerprint); err != nil {
		logger.DiskInspectLogger.Warning("history lookup failed", "err", err)
	} else if n > 0 {
		logger.DiskInspectLogger.Info("tables seen before", "fingerprint", s.Fingerprint, "count", n)
		if a.cfg.Output != "json" {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: same partition tables seen %d time(s) before\n", st.Image, n)
		}
	}
	if err := db.Record(s, parts); err != nil {
		logger.DiskInspectLogger.Warning("history not recorded", "err", err)
	}
}
