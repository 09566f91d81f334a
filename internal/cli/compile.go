package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/framegraph/internal/compiler"
	"github.com/roach88/framegraph/internal/kernel"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// ProgramSummary describes a compiled program.
type ProgramSummary struct {
	Source    string            `json:"source"`
	Hash      string            `json:"hash"`
	Steps     []StepSummary     `json:"steps"`
	Slots     int               `json:"slots"`
	States    int               `json:"states"`
	Instances []InstanceSummary `json:"instances"`
	Warnings  []CLIError        `json:"warnings,omitempty"`
	Isolated  []string          `json:"isolated,omitempty"`
}

// StepSummary is one schedule step.
type StepSummary struct {
	Kind  string `json:"kind"`
	Block string `json:"block,omitempty"`
}

// InstanceSummary is one element population.
type InstanceSummary struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <patch>",
		Short: "Compile a patch into a frame schedule",
		Long: `Compile a CUE patch (file, directory, or fixture:NAME) into a
frame schedule and print a summary of the program.

Errors in blocks that do not feed a render sink are reported as warnings
and those blocks are left out of the schedule.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the program summary as JSON to this file")

	return cmd
}

func runCompile(opts *CompileOptions, patch string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	policies, err := opts.Settings().Policies()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid continuity config", err)
	}
	g, b, err := loadPatch(patch)
	if err != nil {
		return outputCompileErrors(formatter, diagnostics(err))
	}
	formatter.VerboseLog("Loaded %d block(s), %d expression(s) from %s", len(g.Blocks), b.Exprs.Len(), patch)

	res, err := compiler.Compile(g, b, kernel.NewBuiltinRegistry(), compiler.Options{Policies: policies})
	if err != nil {
		return outputCompileErrors(formatter, diagnostics(err))
	}

	summary := summarize(patch, res)
	if opts.Output != "" {
		if err := writeSummary(summary, opts.Output); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
	}
	return outputCompileSuccess(formatter, summary, opts.Output)
}

func summarize(source string, res *compiler.Result) ProgramSummary {
	prog := res.Program
	s := ProgramSummary{
		Source:    source,
		Hash:      prog.Hash,
		Steps:     make([]StepSummary, len(prog.Schedule.Steps)),
		Slots:     len(prog.Slots),
		States:    len(prog.Schedule.States),
		Instances: make([]InstanceSummary, len(prog.Schedule.Instances)),
	}
	for i, st := range prog.Schedule.Steps {
		s.Steps[i] = StepSummary{Kind: st.Kind().String()}
		if i < len(prog.Debug.StepBlocks) {
			s.Steps[i].Block = string(prog.Debug.StepBlocks[i])
		}
	}
	for i, inst := range prog.Schedule.Instances {
		s.Instances[i] = InstanceSummary{Key: inst.Key, Count: inst.Count}
	}
	if len(res.Warnings) > 0 {
		s.Warnings = compileDiagnostics(res.Warnings)
	}
	for _, id := range res.Isolated {
		s.Isolated = append(s.Isolated, string(id))
	}
	return s
}

// stepCounts tallies steps by kind in schedule order of first appearance.
func stepCounts(steps []StepSummary) ([]string, map[string]int) {
	var order []string
	counts := make(map[string]int)
	for _, st := range steps {
		if counts[st.Kind] == 0 {
			order = append(order, st.Kind)
		}
		counts[st.Kind]++
	}
	return order, counts
}

func outputCompileSuccess(formatter *OutputFormatter, s ProgramSummary, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(s)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %s\n\n", s.Source)
	fmt.Fprintf(w, "Program: %s\n", s.Hash)
	fmt.Fprintf(w, "Steps:   %d\n", len(s.Steps))
	order, counts := stepCounts(s.Steps)
	for _, kind := range order {
		fmt.Fprintf(w, "  %-20s %d\n", kind, counts[kind])
	}
	fmt.Fprintf(w, "Slots:   %d\n", s.Slots)
	fmt.Fprintf(w, "States:  %d\n", s.States)
	if len(s.Instances) > 0 {
		fmt.Fprintln(w, "Instances:")
		for _, inst := range s.Instances {
			fmt.Fprintf(w, "  %s: %d element(s)\n", inst.Key, inst.Count)
		}
	}
	if len(s.Warnings) > 0 {
		fmt.Fprintf(w, "\nWarnings (%d):\n", len(s.Warnings))
		for _, warn := range s.Warnings {
			fmt.Fprintf(w, "  %s: %s (block %s)\n", warn.Code, warn.Message, warn.Block)
		}
	}
	if len(s.Isolated) > 0 {
		fmt.Fprintf(w, "Isolated blocks: %v\n", s.Isolated)
	}
	if outputFile != "" {
		fmt.Fprintf(w, "\nWrote program summary to %s\n", outputFile)
	}
	return nil
}

func outputCompileErrors(formatter *OutputFormatter, errs []CLIError) error {
	if err := formatter.Errors("Compilation failed", errs); err != nil {
		return err
	}
	// Compilation errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

func writeSummary(s ProgramSummary, filename string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
