package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"diskinspect/internal/catalog"
	"diskinspect/internal/compress"
	"diskinspect/internal/core"
	"diskinspect/internal/report"
	"diskinspect/internal/tui/view"
	"diskinspect/internal/version"
)

func (a *app) disasmCmd() *cobra.Command {
	var origin uint64
	var syntax string
	var stopOnBad bool
	cmd := &cobra.Command{
		Use:   "disasm IMAGE",
		Short: "Disassemble the MBR boot code as 16-bit x86",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("origin") {
				a.cfg.Disasm.Origin = origin
			}
			if cmd.Flags().Changed("syntax") {
				a.cfg.Disasm.Syntax = syntax
			}
			if cmd.Flags().Changed("stop-on-bad") {
				a.cfg.Disasm.StopOnBad = stopOnBad
			}
			st, err := a.open(cmd, args[0], false)
			if err != nil {
				return err
			}
			defer st.Close()
			d, err := a.disassembler()
			if err != nil {
				return err
			}
			if err := st.Disassemble(d, a.cfg.Disasm.Origin); err != nil {
				return err
			}
			if a.cfg.Output == "json" {
				return report.WriteJSON(cmd.OutOrStdout(), st.Listing)
			}
			report.WriteListing(cmd.OutOrStdout(), st.Listing)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&origin, "origin", 0, "load address of the boot code (default from config, 0x7c00)")
	cmd.Flags().StringVar(&syntax, "syntax", "", "assembly syntax: intel|gnu")
	cmd.Flags().BoolVar(&stopOnBad, "stop-on-bad", false, "end the listing at the first undecodable byte")
	return cmd
}

func (a *app) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify IMAGE",
		Short: "Cross-check the decoded table against go-diskfs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.open(cmd, args[0], false)
			if err != nil {
				return err
			}
			defer st.Close()
			mm, err := st.Verify()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.cfg.Output == "json" {
				if err := report.WriteJSON(out, mm); err != nil {
					return err
				}
			} else {
				for _, m := range mm {
					fmt.Fprintln(out, m.String())
				}
			}
			if len(mm) > 0 {
				return fmt.Errorf("%d mismatches", len(mm))
			}
			if a.cfg.Output != "json" {
				fmt.Fprintf(out, "%s: %s table agrees with go-diskfs\n", args[0], st.Layout.Scheme)
			}
			return nil
		},
	}
}

func (a *app) viewCmd() *cobra.Command {
	var session, save string
	cmd := &cobra.Command{
		Use:   "view [IMAGE]",
		Short: "Browse the decoded layout interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var st *core.State
			switch {
			case session != "":
				st = core.New()
				if err := st.LoadSession(session); err != nil {
					return err
				}
			case len(args) == 1:
				var err error
				if st, err = a.open(cmd, args[0], false); err != nil {
					return err
				}
				defer st.Close()
				if d, err := a.disassembler(); err == nil {
					_ = st.Disassemble(d, a.cfg.Disasm.Origin)
				}
			default:
				return fmt.Errorf("need IMAGE or --session")
			}
			return view.Run(st, a.reportOptions(), save)
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "open a saved session instead of an image")
	cmd.Flags().StringVar(&save, "save", "", "session file written by F2")
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	var codec string
	var asSession bool
	cmd := &cobra.Command{
		Use:   "export IMAGE OUT",
		Short: "Write the JSON report (or a session) to a file, optionally compressed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.open(cmd, args[0], false)
			if err != nil {
				return err
			}
			defer st.Close()
			if d, err := a.disassembler(); err == nil {
				if err := st.Disassemble(d, a.cfg.Disasm.Origin); err != nil {
					return err
				}
			}
			if codec == "" {
				codec = codecFromExt(args[1])
			}
			if asSession {
				return st.SaveSession(args[1], codec)
			}
			rep, err := st.Report(a.reportOptions())
			if err != nil {
				return err
			}
			return writeReport(args[1], codec, rep)
		},
	}
	cmd.Flags().StringVar(&codec, "codec", "", "compression for OUT (default from its extension)")
	cmd.Flags().BoolVar(&asSession, "session", false, "write a session that view --session can reopen")
	return cmd
}

func writeReport(path, codec string, rep *report.Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w, err := compress.NewWriter(f, codec)
	if err != nil {
		return err
	}
	if err := report.WriteJSON(w, rep); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return f.Close()
}

func codecFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return compress.Gzip
	case ".zst":
		return compress.Zstd
	case ".lz4":
		return compress.LZ4
	case ".xz":
		return compress.XZ
	case ".lzma":
		return compress.LZMA
	case ".bz2":
		return compress.Bzip2
	default:
		return compress.None
	}
}

func (a *app) historyCmd() *cobra.Command {
	var limit int
	var scanID string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List previously inspected images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := catalog.Open(a.cfg.Catalog.Path)
			if err != nil {
				return err
			}
			defer db.Close()
			out := cmd.OutOrStdout()

			if scanID != "" {
				parts, err := db.Partitions(scanID)
				if err != nil {
					return err
				}
				if a.cfg.Output == "json" {
					return report.WriteJSON(out, parts)
				}
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "SLOT\tTYPE\tFIRST\tLAST\tNAME")
				for _, p := range parts {
					fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\n", p.Slot, p.TypeName, p.FirstLBA, p.LastLBA, p.Name)
				}
				return tw.Flush()
			}

			scans, err := db.List(limit)
			if err != nil {
				return err
			}
			if a.cfg.Output == "json" {
				return report.WriteJSON(out, scans)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tWHEN\tSCHEME\tPARTS\tSIZE\tIMAGE")
			for _, s := range scans {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", s.ID, humanize.Time(s.ScannedAt),
					s.Scheme, s.Partitions, humanize.IBytes(uint64(max(s.Size, 0))), s.Image)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of scans to show")
	cmd.Flags().StringVar(&scanID, "scan", "", "show the partitions recorded for one scan ID")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "diskinspect", version.Version)
			return nil
		},
	}
}
