package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/stkolmagorov/marketplace/modules/marketplace"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show marketplace version",
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Println(marketplace.Version)
			return nil
		},
	}
}
