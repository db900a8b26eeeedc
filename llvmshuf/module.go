package llvmshuf

import (
	"fmt"
	"os"

	"github.com/xgo-dev/llvm"
	"github.com/xgo-dev/x86shuf"
)

// Verify parses ir and runs the LLVM module verifier on it.
func Verify(ir string) error {
	ctx := llvm.NewContext()
	defer ctx.Dispose()
	mod, err := parseIRModule(ctx, ir)
	if err != nil {
		return err
	}
	defer mod.Dispose()
	if err := llvm.VerifyModule(mod, llvm.ReturnStatusAction); err != nil {
		return fmt.Errorf("verify shuffle ir: %w", err)
	}
	return nil
}

func parseIRModule(ctx llvm.Context, ir string) (llvm.Module, error) {
	f, err := os.CreateTemp("", "x86shuf-*.ll")
	if err != nil {
		return llvm.Module{}, fmt.Errorf("create temp ir file: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	defer os.Remove(name)

	if err := os.WriteFile(name, []byte(ir), 0644); err != nil {
		return llvm.Module{}, fmt.Errorf("write temp ir file: %w", err)
	}
	buf, err := llvm.NewMemoryBufferFromFile(name)
	if err != nil {
		return llvm.Module{}, fmt.Errorf("open temp ir file: %w", err)
	}
	// NOTE: do not dispose MemoryBuffer here. ParseIR takes ownership.
	mod, err := (&ctx).ParseIR(buf)
	if err != nil {
		return llvm.Module{}, fmt.Errorf("parse shuffle ir: %w", err)
	}
	return mod, nil
}

// LLVMType returns the vector type for vt in ctx.
func LLVMType(ctx llvm.Context, vt x86shuf.VT) llvm.Type {
	var elt llvm.Type
	switch {
	case vt.Float && vt.EltBits == 32:
		elt = ctx.FloatType()
	case vt.Float && vt.EltBits == 64:
		elt = ctx.DoubleType()
	default:
		elt = ctx.IntType(vt.EltBits)
	}
	return llvm.VectorType(elt, vt.NumElts)
}

// Build emits m applied to v1 and v2 at the builder's insertion point.
// Zero lanes take a second shuffle against a null vector.
func Build(b llvm.Builder, v1, v2 llvm.Value, m x86shuf.Mask, name string) (llvm.Value, error) {
	vecTy := v1.Type()
	if vecTy.TypeKind() != llvm.VectorTypeKind {
		return llvm.Value{}, fmt.Errorf("shuffle operand is not a vector")
	}
	n := vecTy.VectorSize()
	if n != len(m) {
		return llvm.Value{}, fmt.Errorf("mask has %d lanes, operand has %d", len(m), n)
	}
	if err := m.Validate(); err != nil {
		return llvm.Value{}, err
	}
	i32 := vecTy.Context().Int32Type()

	elems := make([]llvm.Value, n)
	for i, v := range m.Ints() {
		if v == x86shuf.SentinelZero {
			elems[i] = llvm.Undef(i32)
			continue
		}
		elems[i] = llvm.ConstInt(i32, uint64(v), false)
	}
	sh := b.CreateShuffleVector(v1, v2, llvm.ConstVector(elems, false), name)
	if !m.HasZero() {
		return sh, nil
	}

	zero := make([]llvm.Value, n)
	for i, l := range m {
		k := i
		if l.IsZero() {
			k = n
		}
		zero[i] = llvm.ConstInt(i32, uint64(k), false)
	}
	return b.CreateShuffleVector(sh, llvm.ConstNull(vecTy), llvm.ConstVector(zero, false), name+".z"), nil
}

// Module builds a module in ctx holding one function, @name, that applies m
// to its two vt-typed parameters. The caller disposes the module.
func Module(ctx llvm.Context, name string, vt x86shuf.VT, m x86shuf.Mask) (llvm.Module, error) {
	mod := ctx.NewModule(name)
	vecTy := LLVMType(ctx, vt)
	fnTy := llvm.FunctionType(vecTy, []llvm.Type{vecTy, vecTy}, false)
	fn := llvm.AddFunction(mod, name, fnTy)
	entry := ctx.AddBasicBlock(fn, "entry")

	b := ctx.NewBuilder()
	defer b.Dispose()
	b.SetInsertPointAtEnd(entry)
	out, err := Build(b, fn.Param(0), fn.Param(1), m, "shuf")
	if err != nil {
		mod.Dispose()
		return llvm.Module{}, err
	}
	b.CreateRet(out)
	if err := llvm.VerifyModule(mod, llvm.ReturnStatusAction); err != nil {
		mod.Dispose()
		return llvm.Module{}, fmt.Errorf("verify %s: %w", name, err)
	}
	return mod, nil
}
