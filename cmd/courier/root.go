package main

import (
	"github.com/spf13/cobra"

	"github.com/kode4food/courier"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   courier.Name,
		Short: "Trigger-driven email workflow engine",
		Long: `Courier runs user-authored plans against a mailbox. A plan pairs one
trigger (sender address, subject, or timer) with ordered steps that send,
schedule, label, or analyze mail through a capability service.`,
		Version:       courier.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(courier.Name + " {{.Version}}\n")
	root.AddCommand(newServeCmd(), newValidateCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", courier.Name, courier.Version)
		},
	}
}
