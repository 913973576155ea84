package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-gallery/internal/config"
	"github.com/kozaktomas/face-gallery/internal/identity"
)

var identitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "List the learned identities",
	Long: `List every identity in the model with its display name and the number
of stored face encodings.`,
	RunE: runIdentities,
}

func init() {
	rootCmd.AddCommand(identitiesCmd)
}

func runIdentities(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	tol := cfg.Tolerances.Active()
	model := identity.NewStore(cfg.Model.DataFile, identity.Options{
		Strict:       tol.Strict,
		Relaxed:      tol.Relaxed,
		MaxEncodings: cfg.Model.MaxEncoding,
	})

	identities := model.Identities()
	if len(identities) == 0 {
		fmt.Println("No identities learned yet")
		return nil
	}

	fmt.Printf("%-14s %-10s %s\n", "ID", "ENCODINGS", "NAME")
	for _, sum := range identities {
		name := sum.Name
		if name == "" {
			name = "-"
		}
		fmt.Printf("%-14s %-10d %s\n", sum.ID, sum.EncodingCount, name)
	}
	fmt.Printf("\n%d identities\n", len(identities))
	return nil
}
