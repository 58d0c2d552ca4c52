// cmd_convert.go - Convert Command: PyTorch-Checkpoint nach safetensors
// Hauptfunktionen: ConvertHandler
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cryptozealot/dalle-mini/model"
)

func newConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert MODEL OUTDIR",
		Short: "Convert a PyTorch checkpoint to safetensors",
		Args:  cobra.ExactArgs(2),
		RunE:  ConvertHandler,
	}
	cmd.Flags().Bool("ignore-mismatched-sizes", false, "Substitute freshly initialized values for mismatched tensors")
	return cmd
}

// ConvertHandler - Laedt einen Checkpoint und schreibt ihn neu
func ConvertHandler(cmd *cobra.Command, args []string) error {
	ignoreMismatched, err := cmd.Flags().GetBool("ignore-mismatched-sizes")
	if err != nil {
		return err
	}

	m, err := model.FromPretrained(args[0], model.LoadOptions{
		FromPT:                true,
		IgnoreMismatchedSizes: ignoreMismatched,
	})
	if err != nil {
		return err
	}
	defer m.Close()

	outDir := args[1]
	if err := m.Save(outDir); err != nil {
		return err
	}

	stat, err := os.Stat(filepath.Join(outDir, "model.safetensors"))
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d tensors, %d bytes)\n", outDir, len(m.Params()), stat.Size())
	return nil
}
