// cmd_inspect.go - Inspect Command und Checkpoint-Info Anzeige
// Hauptfunktionen: InspectHandler, showCheckpoint
package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/cryptozealot/dalle-mini/model"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect MODEL",
		Short: "List the tensors and dimensions of a checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE:  InspectHandler,
	}
	cmd.Flags().Bool("from-pt", false, "Allow loading a PyTorch checkpoint")
	return cmd
}

// InspectHandler - Laedt einen Checkpoint und zeigt seine Struktur an
func InspectHandler(cmd *cobra.Command, args []string) error {
	fromPT, err := cmd.Flags().GetBool("from-pt")
	if err != nil {
		return err
	}

	m, err := model.FromPretrained(args[0], model.LoadOptions{FromPT: fromPT})
	if err != nil {
		return err
	}
	defer m.Close()

	return showCheckpoint(m, os.Stdout)
}

// showCheckpoint - Gibt Konfiguration und Tensorliste tabellarisch aus
func showCheckpoint(m *model.DalleBart, w io.Writer) error {
	cfg := m.Config()

	tableRender := func(header string, rows func() [][]string) {
		fmt.Fprintln(w, " ", header)
		table := tablewriter.NewWriter(w)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetBorder(false)
		table.SetNoWhiteSpace(true)
		table.SetTablePadding("    ")
		table.AppendBulk(rows())
		table.Render()
		fmt.Fprintln(w)
	}

	tableRender("Model", func() (rows [][]string) {
		rows = append(rows, []string{"", "architecture", "dallebart"})
		rows = append(rows, []string{"", "parameters", strconv.FormatInt(m.NumParams(), 10)})
		rows = append(rows, []string{"", "d_model", strconv.Itoa(cfg.DModel)})
		rows = append(rows, []string{"", "encoder layers", strconv.Itoa(cfg.EncoderLayers)})
		rows = append(rows, []string{"", "decoder layers", strconv.Itoa(cfg.DecoderLayers)})
		rows = append(rows, []string{"", "text length", strconv.Itoa(cfg.MaxTextLength)})
		rows = append(rows, []string{"", "image length", strconv.Itoa(cfg.ImageLength)})
		rows = append(rows, []string{"", "image vocab", strconv.Itoa(cfg.ImageVocabSize)})
		return
	})

	tableRender("Tensors", func() (rows [][]string) {
		params := m.Params()
		for _, name := range params.Keys() {
			t := params[name]
			rows = append(rows, []string{"", name, fmt.Sprint(t.Shape()), t.DType().String()})
		}
		return
	})

	return nil
}
