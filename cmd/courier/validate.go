package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kode4food/courier/internal/planfile"
	"github.com/kode4food/courier/internal/validator"
)

// ErrPlansInvalid is returned when any checked plan file has errors
var ErrPlansInvalid = errors.New("invalid plan files")

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Check plan files without running them",
		Long: `Validate decodes each YAML or JSON plan file and reports the same
errors and warnings the engine would produce when the plan is saved.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				if !validateFile(cmd, path) {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%w: %d of %d",
					ErrPlansInvalid, failed, len(args))
			}
			return nil
		},
	}
}

func validateFile(cmd *cobra.Command, path string) bool {
	plan, err := planfile.Read(path)
	if err != nil {
		cmd.Printf("%s: %v\n", path, err)
		return false
	}

	res := validator.Validate(plan)
	for _, e := range res.Errors {
		cmd.Printf("%s: error: %s\n", path, e)
	}
	for _, w := range res.Warnings {
		cmd.Printf("%s: warning: %s\n", path, w)
	}
	if res.Valid {
		cmd.Printf("%s: ok (%s)\n", path, plan.ID)
	}
	return res.Valid
}
