package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsforge/opspilot/internal/app"
)

func newDoctorCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose configuration, providers, and memory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := container.Doctor.Run(cmd.Context())
			RenderDoctorReport(cmd.OutOrStdout(), report)
			if err != nil {
				return err
			}
			if report.Failed() {
				return fmt.Errorf("doctor found problems")
			}
			return nil
		},
	}
}
