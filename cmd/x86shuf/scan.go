package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/xgo-dev/x86shuf/asmscan"
	"golang.org/x/tools/go/packages"
)

type scanFlags struct {
	inputs   []string
	patterns []string
	goos     string
	goarch   string
	failed   bool
}

type fileReport struct {
	File   string
	Report *asmscan.Report
}

type siteJSON struct {
	File  string `json:"file"`
	Line  int    `json:"line"`
	Op    string `json:"op"`
	VT    string `json:"vt,omitempty"`
	Imm   *uint  `json:"imm,omitempty"`
	Src1  string `json:"src1,omitempty"`
	Src2  string `json:"src2,omitempty"`
	Mask  []int  `json:"mask,omitempty"`
	Error string `json:"error,omitempty"`
}

type scanJSON struct {
	Files   int               `json:"files"`
	Sites   []siteJSON        `json:"sites"`
	Decoded int               `json:"decoded"`
	Failed  int               `json:"failed"`
	Ops     []asmscan.OpCount `json:"ops"`
}

func (c *rootCommand) scanCommand() *cobra.Command {
	f := scanFlags{goos: c.cfg.GOOS, goarch: c.cfg.GOARCH}
	cmd := &cobra.Command{
		Use:   "scan [-i file.s]... [--patterns pkg]...",
		Short: "Report the shuffle instructions in Go amd64 assembly",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := c.scanInputs(f)
			if err != nil {
				return err
			}
			reports := c.scanFiles(files)
			if c.json() {
				return c.printJSON(scanResult(reports, f.failed))
			}
			return c.printScan(reports, f.failed)
		},
	}
	fs := cmd.Flags()
	fs.StringSliceVarP(&f.inputs, "input", "i", nil, "Plan 9 asm .s file to scan")
	fs.StringSliceVar(&f.patterns, "patterns", nil, "package patterns whose .s files are scanned, e.g. std")
	fs.StringVar(&f.goos, "goos", f.goos, "target GOOS for package loading")
	fs.StringVar(&f.goarch, "goarch", f.goarch, "target GOARCH for package loading (amd64/386)")
	fs.BoolVar(&f.failed, "failed", false, "also report sites that could not be decoded")
	return cmd
}

func (c *rootCommand) scanInputs(f scanFlags) ([]string, error) {
	if len(f.inputs) == 0 && len(f.patterns) == 0 {
		return nil, errors.New("missing input: use -i <file.s> or --patterns <pkg>")
	}
	files := make([]string, 0, len(f.inputs))
	for _, in := range f.inputs {
		abs, err := resolvePath(in)
		if err != nil {
			return nil, err
		}
		files = append(files, abs)
	}
	if len(f.patterns) != 0 {
		switch f.goarch {
		case "amd64", "386":
		default:
			return nil, fmt.Errorf("unsupported arch %q", f.goarch)
		}
		pkgs, err := c.loadPkgs(f.goos, f.goarch, f.patterns)
		if err != nil {
			return nil, err
		}
		for _, p := range pkgs {
			files = append(files, asmFilesOfPkg(p)...)
		}
	}
	return lo.Uniq(files), nil
}

func (c *rootCommand) loadPkgs(goos, goarch string, patterns []string) ([]*packages.Package, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles,
		Env: append(os.Environ(),
			"GOOS="+goos,
			"GOARCH="+goarch,
		),
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, err
	}
	for _, p := range pkgs {
		for _, e := range p.Errors {
			c.logger.WithField("pkg", p.PkgPath).Warn(e.Msg)
		}
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].PkgPath < pkgs[j].PkgPath })
	return pkgs, nil
}

func asmFilesOfPkg(p *packages.Package) []string {
	if p == nil {
		return nil
	}
	out := lo.Filter(p.OtherFiles, func(f string, _ int) bool { return isAsmFile(f) })
	sort.Strings(out)
	return out
}

func isAsmFile(path string) bool {
	return filepath.Ext(path) == ".s"
}

func resolvePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if fi.IsDir() {
		return "", fmt.Errorf("path is a directory: %s", abs)
	}
	return abs, nil
}

// scanFiles scans every file, logging and skipping the ones that cannot be
// read or preprocessed.
func (c *rootCommand) scanFiles(files []string) []fileReport {
	out := make([]fileReport, 0, len(files))
	for _, file := range files {
		log := c.logger.WithField("file", file)
		rep, err := asmscan.ScanFile(file)
		if err != nil {
			log.WithError(err).Warn("skipped")
			continue
		}
		for _, s := range rep.Failed() {
			log.WithFields(logrus.Fields{"line": s.Line, "op": s.Op}).Debug(s.Err)
		}
		log.WithField("sites", len(rep.Sites)).Debug("scanned")
		out = append(out, fileReport{File: file, Report: rep})
	}
	return out
}

func combined(reports []fileReport) *asmscan.Report {
	all := &asmscan.Report{}
	for _, r := range reports {
		all.Sites = append(all.Sites, r.Report.Sites...)
	}
	return all
}

func scanResult(reports []fileReport, failed bool) scanJSON {
	all := combined(reports)
	out := scanJSON{
		Files:   len(reports),
		Sites:   []siteJSON{},
		Decoded: len(all.Decoded()),
		Failed:  len(all.Failed()),
		Ops:     all.OpCounts(),
	}
	for _, r := range reports {
		for _, s := range r.Report.Sites {
			if s.Err != nil && !failed {
				continue
			}
			js := siteJSON{File: r.File, Line: s.Line, Op: s.Op, Src1: s.Src1, Src2: s.Src2}
			if s.VT.NumElts != 0 {
				js.VT = s.VT.String()
			}
			if s.HasImm {
				imm := s.Imm
				js.Imm = &imm
			}
			if s.Err != nil {
				js.Error = s.Err.Error()
			} else {
				js.Mask = s.Mask.Ints()
			}
			out.Sites = append(out.Sites, js)
		}
	}
	return out
}

func (c *rootCommand) printScan(reports []fileReport, failed bool) error {
	w := c.stdout
	for _, r := range reports {
		for _, s := range r.Report.Sites {
			var err error
			switch {
			case s.Err == nil:
				_, err = fmt.Fprintf(w, "%s:%d: %s %s %s\n", r.File, s.Line, s.Op, s.VT, s.Mask)
			case failed:
				_, err = fmt.Fprintf(w, "%s:%d: %s: %v\n", r.File, s.Line, s.Op, s.Err)
			}
			if err != nil {
				return err
			}
		}
	}
	all := combined(reports)
	if _, err := fmt.Fprintf(w, "%d files, %d sites, %d decoded\n", len(reports), len(all.Sites), len(all.Decoded())); err != nil {
		return err
	}
	for _, oc := range all.OpCounts() {
		if _, err := fmt.Fprintf(w, "  %-12s %d\n", oc.Op, oc.Count); err != nil {
			return err
		}
	}
	return nil
}
