package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/framegraph/internal/compiler"
	"github.com/roach88/framegraph/internal/kernel"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool       `json:"valid"`
	Errors   []CLIError `json:"errors,omitempty"`
	Warnings []CLIError `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <patch>",
		Short: "Check a patch without printing the program",
		Long: `Load and compile a patch and report every error and warning.

Exit codes:
  0 - The patch compiles (warnings allowed)
  1 - The patch has errors
  2 - The patch could not be found`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, patch string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	policies, err := opts.Settings().Policies()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid continuity config", err)
	}

	g, b, err := loadPatch(patch)
	if err != nil {
		if isMissingPatch(err) {
			d := diagnostics(err)[0]
			_ = formatter.Error(d.Code, d.Message, nil)
			return WrapExitError(ExitCommandError, "patch not found", err)
		}
		return outputValidationErrors(formatter, ValidationResult{Errors: diagnostics(err)})
	}

	formatter.VerboseLog("Validating %d block(s), %d edge(s)", len(g.Blocks), len(g.Edges))
	res, err := compiler.Compile(g, b, kernel.NewBuiltinRegistry(), compiler.Options{Policies: policies})
	if err != nil {
		return outputValidationErrors(formatter, ValidationResult{Errors: diagnostics(err)})
	}

	result := ValidationResult{Valid: true}
	if len(res.Warnings) > 0 {
		result.Warnings = compileDiagnostics(res.Warnings)
	}
	return outputValidateSuccess(formatter, result)
}

func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintln(formatter.Writer, "✓ Patch is valid")
	for _, w := range result.Warnings {
		fmt.Fprintf(formatter.Writer, "  warning %s: %s (block %s)\n", w.Code, w.Message, w.Block)
	}
	return nil
}

func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		resp := CLIResponse{Status: "error", Data: result, Error: &result.Errors[0]}
		if err := formatter.JSON(resp); err != nil {
			return err
		}
	} else if err := formatter.Errors("Validation failed", result.Errors); err != nil {
		return err
	}
	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
}
