package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"diskinspect/internal/config"
	"diskinspect/internal/core"
	"diskinspect/internal/disasm"
	"diskinspect/internal/image/partition"
	"diskinspect/internal/logger"
	"diskinspect/internal/report"
)

type globalFlags struct {
	cfgFile     string
	logFile     string
	jsonOut     bool
	legacyBits  bool
	sectorSize  int
	compression string
	offset      string
	noHistory   bool
}

type app struct {
	flags globalFlags
	cfg   *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "diskinspect",
		Short: "Decode MBR and GPT partition structures of disk images",
		Long: `diskinspect reads a raw (optionally compressed) disk image or block
device and decodes its Master Boot Record, GUID Partition Table header,
partition entries and attribute flags. It never writes to the image.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Close()
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.cfgFile, "config", "", "config file (default is /etc/diskinspect/config.yaml)")
	pf.StringVar(&a.flags.logFile, "log", "", "write a diagnostic log to FILE (- for stderr)")
	pf.BoolVar(&a.flags.jsonOut, "json", false, "output as JSON")
	pf.BoolVar(&a.flags.legacyBits, "legacy-bits", false, "test GPT attribute bits as raw masks (flags & n)")
	pf.IntVar(&a.flags.sectorSize, "sector-size", 0, "logical sector size in bytes (default from config, 512)")
	pf.StringVar(&a.flags.compression, "compression", "", "image compression: auto|none|gzip|zstd|lz4|xz|lzma|bzip2")
	pf.StringVar(&a.flags.offset, "offset", "0", "start of the disk inside the file (bytes, or K/M/G/S suffix)")
	pf.BoolVar(&a.flags.noHistory, "no-history", false, "do not record the scan in the history catalog")

	root.AddCommand(
		a.inspectCmd("inspect", "Decode everything: MBR, GPT when present, boot code", report.AllSections, false),
		a.inspectCmd("mbr", "Decode the MBR partition table", report.Sections{MBR: true}, false),
		a.inspectCmd("gpt", "Decode the GPT header and partition entries", report.Sections{GPT: true}, true),
		a.disasmCmd(),
		a.verifyCmd(),
		a.viewCmd(),
		a.exportCmd(),
		a.historyCmd(),
		versionCmd(),
	)
	return root
}

// setup loads the config and lets explicitly set flags override it.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.flags.cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	fl := cmd.Flags()
	if fl.Changed("sector-size") {
		cfg.SectorSize = a.flags.sectorSize
	}
	if fl.Changed("compression") {
		cfg.Compression = a.flags.compression
	}
	if a.flags.legacyBits {
		cfg.Flags.Convention = partition.RawMask.String()
	}
	if a.flags.jsonOut {
		cfg.Output = "json"
	}
	if fl.Changed("log") {
		cfg.Log.File = a.flags.logFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Log.File != "" {
		if err := logger.InitializeLogger(true, cfg.Log.File, cfg.Log.Level); err != nil {
			return err
		}
	}
	a.cfg = cfg
	logger.DiskInspectLogger.Debug("config loaded", "path", cfg.Path)
	return nil
}

// open loads and scans path according to the config. An image with neither
// a boot signature nor a GPT header is still decoded, with a warning.
func (a *app) open(cmd *cobra.Command, path string, forceGPT bool) (*core.State, error) {
	off, err := core.ParseSize(a.flags.offset, a.cfg.SectorSize)
	if err != nil {
		return nil, fmt.Errorf("--offset: %w", err)
	}
	st := core.New()
	if err := st.Load(path, a.cfg.Compression, off); err != nil {
		return nil, err
	}
	if scheme, err := st.Detect(); err == nil && scheme == partition.SchemeNone && !forceGPT {
		logger.DiskInspectLogger.Warning("no partition table signature", "image", path)
		if a.cfg.Output != "json" {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s has no MBR boot signature or GPT header\n", path)
		}
	}
	opt := a.cfg.ScanOptions()
	opt.ForceGPT = forceGPT
	if err := st.Scan(cmd.Context(), opt); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func (a *app) disassembler() (disasm.Disassembler, error) {
	syn, err := disasm.ParseSyntax(a.cfg.Disasm.Syntax)
	if err != nil {
		return nil, err
	}
	return disasm.New(disasm.Options{Syntax: syn, StopOnBad: a.cfg.Disasm.StopOnBad}), nil
}

func (a *app) reportOptions() report.Options {
	return report.Options{GUIDStyle: a.cfg.GUID.Style}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "diskinspect:", err)
		os.Exit(1)
	}
}
