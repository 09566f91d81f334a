package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/framegraph/internal/compiler"
	"github.com/roach88/framegraph/internal/ir"
	"github.com/roach88/framegraph/internal/loader"
	"github.com/roach88/framegraph/internal/testutil"
)

// FixturePrefix selects a built-in patch instead of a file, e.g.
// "fixture:orbit".
const FixturePrefix = "fixture:"

// loadPatch reads a patch argument: a CUE file, a directory of CUE files, or
// a fixture name.
func loadPatch(arg string) (*ir.BlockGraph, *ir.LoweredBundle, error) {
	if name, ok := strings.CutPrefix(arg, FixturePrefix); ok {
		g, b, found := testutil.Fixture(name)
		if !found {
			return nil, nil, &loader.LoadError{
				Code:    loader.ErrCodeNotFound,
				Message: fmt.Sprintf("unknown fixture %q (known: %s)", name, strings.Join(testutil.FixtureNames(), ", ")),
			}
		}
		return g, b, nil
	}
	patch, err := loader.LoadPatch(arg)
	if err != nil {
		return nil, nil, err
	}
	return patch.Graph, patch.Bundle, nil
}

// isMissingPatch reports whether err means the patch argument names nothing.
func isMissingPatch(err error) bool {
	return loader.IsLoadError(err, loader.ErrCodeNotFound)
}

// diagnostics flattens load, compile and other errors into CLI errors.
func diagnostics(err error) []CLIError {
	var loadErrs loader.LoadErrors
	if errors.As(err, &loadErrs) {
		out := make([]CLIError, len(loadErrs))
		for i, e := range loadErrs {
			out[i] = loadDiagnostic(e)
		}
		return out
	}
	var loadErr *loader.LoadError
	if errors.As(err, &loadErr) {
		return []CLIError{loadDiagnostic(loadErr)}
	}
	var compileErrs compiler.CompileErrors
	if errors.As(err, &compileErrs) {
		return compileDiagnostics(compileErrs)
	}
	var compileErr compiler.CompileError
	if errors.As(err, &compileErr) {
		return compileDiagnostics([]compiler.CompileError{compileErr})
	}
	return []CLIError{{Code: ErrCodeGeneric, Message: err.Error()}}
}

func loadDiagnostic(e *loader.LoadError) CLIError {
	d := CLIError{Code: e.Code, Message: e.Message}
	if e.Pos.IsValid() {
		d.Position = fmt.Sprintf("%s:%d:%d", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column())
	}
	return d
}

func compileDiagnostics(errs []compiler.CompileError) []CLIError {
	out := make([]CLIError, len(errs))
	for i, e := range errs {
		out[i] = CLIError{Code: e.Code, Message: e.Message, Block: string(e.Block)}
	}
	return out
}
