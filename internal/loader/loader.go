package loader

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/framegraph/internal/ir"
)

//go:embed schema.cue
var schemaSource string

// Error codes reported by the loader.
const (
	ErrCodeNotFound   = "E101" // path does not exist
	ErrCodeNoFiles    = "E102" // directory holds no .cue files
	ErrCodeLoadFailed = "E103" // CUE parse or build failure
	ErrCodeSchema     = "E104" // document does not satisfy #Patch
	ErrCodeReference  = "E105" // dangling expression, instance or state reference
	ErrCodeDuplicate  = "E106" // duplicate block id, instance key or state id
)

// LoadError is one problem found while loading a patch document.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadErrors is every problem found in one document.
type LoadErrors []*LoadError

func (es LoadErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

// IsLoadError reports whether err is, or contains, a LoadError with code.
func IsLoadError(err error, code string) bool {
	var many LoadErrors
	if errors.As(err, &many) {
		for _, e := range many {
			if e.Code == code {
				return true
			}
		}
		return false
	}
	var one *LoadError
	return errors.As(err, &one) && one.Code == code
}

// Patch is a loaded document ready for compilation.
type Patch struct {
	Graph  *ir.BlockGraph
	Bundle *ir.LoweredBundle
	// Source is the file or directory the patch was read from.
	Source string
}

// LoadPatch reads a patch from a .cue file, or from every .cue file of a
// directory unified as one CUE instance.
func LoadPatch(path string) (*Patch, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("patch not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("accessing patch: %v", err)}
	}

	ctx := cuecontext.New()
	var value cue.Value
	if info.IsDir() {
		value, err = loadDir(ctx, path)
	} else {
		var src []byte
		src, err = os.ReadFile(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading patch: %v", err)}
		}
		value = ctx.CompileBytes(src, cue.Filename(path))
	}
	if err != nil {
		return nil, err
	}
	return decode(ctx, value, path)
}

// LoadPatchSource loads a patch from CUE source held in memory. name is used
// in error positions.
func LoadPatchSource(name string, src []byte) (*Patch, error) {
	ctx := cuecontext.New()
	return decode(ctx, ctx.CompileBytes(src, cue.Filename(name)), name)
}

func loadDir(ctx *cue.Context, dir string) (cue.Value, error) {
	files, err := FindCUEFiles(dir)
	if err != nil {
		return cue.Value{}, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("scanning directory: %v", err)}
	}
	if len(files) == 0 {
		return cue.Value{}, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return cue.Value{}, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, cueErrors(ErrCodeLoadFailed, inst.Err)
	}
	return ctx.BuildInstance(inst), nil
}

// FindCUEFiles returns every .cue file below dir.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func decode(ctx *cue.Context, value cue.Value, source string) (*Patch, error) {
	if err := value.Err(); err != nil {
		return nil, cueErrors(ErrCodeLoadFailed, err)
	}

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		panic(fmt.Sprintf("loader: embedded schema: %v", err))
	}
	unified := schema.LookupPath(cue.ParsePath("#Patch")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, cueErrors(ErrCodeSchema, err)
	}

	var doc document
	if err := unified.Decode(&doc); err != nil {
		return nil, cueErrors(ErrCodeSchema, err)
	}

	l := newLowerer(value)
	g, b := l.lower(&doc)
	if len(l.errs) > 0 {
		return nil, l.errs
	}
	slog.Debug("patch loaded",
		"source", source,
		"blocks", len(g.Blocks),
		"exprs", b.Exprs.Len(),
		"instances", b.Instances.Len())
	return &Patch{Graph: g, Bundle: b, Source: source}, nil
}

// cueErrors converts a CUE error list, keeping each entry's position.
func cueErrors(code string, err error) error {
	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return &LoadError{Code: code, Message: err.Error()}
	}
	out := make(LoadErrors, 0, len(list))
	for _, e := range list {
		out = append(out, &LoadError{Code: code, Message: e.Error(), Pos: e.Position()})
	}
	return out
}
