package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/xgo-dev/llvm"
	"github.com/xgo-dev/x86shuf"
	"github.com/xgo-dev/x86shuf/asmscan"
	"github.com/xgo-dev/x86shuf/llvmshuf"
)

type decodeFlags struct {
	vt    string
	imm   string
	table string
}

func (f *decodeFlags) bind(fs *pflag.FlagSet) {
	fs.StringVar(&f.vt, "vt", "", "vector type, e.g. v8i32 (default: the op's 128-bit shape)")
	fs.StringVar(&f.imm, "imm", "", "8-bit immediate, decimal or 0x hex")
	fs.StringVar(&f.table, "table", "", "comma separated pshufb control bytes")
}

type decoded struct {
	Op   string
	VT   x86shuf.VT
	Imm  uint
	Mask x86shuf.Mask
}

type decodedJSON struct {
	Op   string `json:"op"`
	VT   string `json:"vt"`
	Imm  *uint  `json:"imm,omitempty"`
	Mask []int  `json:"mask"`
	Text string `json:"text"`
	IR   string `json:"ir,omitempty"`
}

func (d decoded) json(hasImm bool) decodedJSON {
	out := decodedJSON{Op: d.Op, VT: d.VT.String(), Mask: d.Mask.Ints(), Text: d.Mask.String()}
	if hasImm {
		imm := d.Imm
		out.Imm = &imm
	}
	return out
}

func (f *decodeFlags) decode(op string) (decoded, asmscan.OpInfo, error) {
	info, ok := asmscan.Lookup(op)
	if !ok {
		return decoded{}, info, fmt.Errorf("%w: %s", asmscan.ErrUnknownOp, op)
	}
	d := decoded{Op: strings.ToUpper(op)}

	var table []uint64
	if f.table != "" {
		if info.Kind != asmscan.KindPSHUFB {
			return d, info, fmt.Errorf("%s does not take a --table", d.Op)
		}
		t, err := parseTable(f.table)
		if err != nil {
			return d, info, err
		}
		table = t
	}

	d.VT = info.Shape(128)
	if info.Kind == asmscan.KindPSHUFB && len(table) == 32 {
		d.VT = x86shuf.V32I8
	}
	if f.vt != "" {
		vt, err := x86shuf.ParseVT(f.vt)
		if err != nil {
			return d, info, err
		}
		if info.Fixed.NumElts != 0 && vt != info.Fixed {
			return d, info, fmt.Errorf("%s only exists as %s", d.Op, info.Fixed)
		}
		if vt.EltBits != info.EltBits {
			return d, info, fmt.Errorf("%s works on %d-bit elements, not %s", d.Op, info.EltBits, vt)
		}
		d.VT = vt
	}

	if info.Kind.HasImm() {
		if f.imm == "" {
			return d, info, fmt.Errorf("%w: %s needs --imm", asmscan.ErrNoImmediate, d.Op)
		}
		imm, err := strconv.ParseUint(f.imm, 0, 8)
		if err != nil {
			return d, info, fmt.Errorf("invalid --imm %q: %w", f.imm, err)
		}
		d.Imm = uint(imm)
	}

	if table != nil && len(table) != d.VT.NumElts {
		return d, info, fmt.Errorf("%s on %s needs %d table entries, got %d", d.Op, d.VT, d.VT.NumElts, len(table))
	}

	m, err := asmscan.Decode(op, d.VT, d.Imm, table)
	if err != nil {
		return d, info, err
	}
	d.Mask = m
	return d, info, nil
}

func parseTable(s string) ([]uint64, error) {
	parts := strings.Split(s, ",")
	out := make([]uint64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 0, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid table entry %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *rootCommand) decodeCommand() *cobra.Command {
	var f decodeFlags
	cmd := &cobra.Command{
		Use:   "decode <op>",
		Short: "Decode the element mask of one shuffle instruction",
		Example: `  x86shuf decode pshufd --imm 0x1b
  x86shuf decode vpalignr --vt v32i8 --imm 4
  x86shuf decode pshufb --table 3,2,1,0,7,6,5,4,11,10,9,8,15,14,13,12`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, info, err := f.decode(args[0])
			if err != nil {
				return err
			}
			c.logger.WithFields(logrus.Fields{"op": d.Op, "vt": d.VT.String()}).Debug("decoded")
			if c.json() {
				return c.printJSON(d.json(info.Kind.HasImm()))
			}
			_, err = fmt.Fprintf(c.stdout, "%s %s %s\n", d.Op, d.VT, d.Mask)
			return err
		},
	}
	f.bind(cmd.Flags())
	return cmd
}

func (c *rootCommand) irCommand() *cobra.Command {
	var (
		f       decodeFlags
		name    string
		verify  bool
		builder bool
	)
	cmd := &cobra.Command{
		Use:   "ir <op>",
		Short: "Print the LLVM shufflevector function for one shuffle instruction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, info, err := f.decode(args[0])
			if err != nil {
				return err
			}
			var ir string
			if builder {
				ir, err = buildIR(name, d)
			} else {
				ir, err = llvmshuf.Function(name, d.VT, d.Mask)
			}
			if err != nil {
				return err
			}
			if verify {
				if err := llvmshuf.Verify(ir); err != nil {
					return fmt.Errorf("%s: %w", d.Op, err)
				}
				c.logger.WithField("op", d.Op).Debug("verified")
			}
			if c.json() {
				out := d.json(info.Kind.HasImm())
				out.IR = ir
				return c.printJSON(out)
			}
			_, err = fmt.Fprint(c.stdout, ir)
			return err
		},
	}
	f.bind(cmd.Flags())
	cmd.Flags().StringVar(&name, "name", "shuffle", "name of the emitted function")
	cmd.Flags().BoolVar(&verify, "verify", c.cfg.Verify, "parse and verify the IR with LLVM")
	cmd.Flags().BoolVar(&builder, "builder", false, "build the function through the LLVM API instead of as text")
	return cmd
}

func buildIR(name string, d decoded) (string, error) {
	ctx := llvm.NewContext()
	defer ctx.Dispose()
	mod, err := llvmshuf.Module(ctx, name, d.VT, d.Mask)
	if err != nil {
		return "", err
	}
	defer mod.Dispose()
	return mod.String(), nil
}

// opNames lists the mnemonics asmscan recognises, one per line with their
// decoder family.
func opNames() []string {
	return lo.Map(asmscan.Ops(), func(op string, _ int) string {
		info, _ := asmscan.Lookup(op)
		return fmt.Sprintf("%s\t%s", op, info.Kind)
	})
}
