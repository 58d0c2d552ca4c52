// cmd.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI, appendEnvDocs
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cryptozealot/dalle-mini/envconfig"
)

// appendEnvDocs - Fuegt Umgebungsvariablen-Dokumentation zum Command hinzu
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewCLI - Erstellt das Haupt-CLI mit allen Commands
func NewCLI() *cobra.Command {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: envconfig.LogLevel(),
	})))
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "dallebart",
		Short:         "Text-to-image token model runner",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Print(cmd.UsageString())
		},
	}

	inspectCmd := newInspectCmd()
	convertCmd := newConvertCmd()
	generateCmd := newGenerateCmd()

	envVars := envconfig.AsMap()
	for _, cmd := range []*cobra.Command{inspectCmd, convertCmd, generateCmd} {
		switch cmd {
		case generateCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{
				envVars["DALLE_DEBUG"],
				envVars["DALLE_CACHE"],
				envVars["DALLE_NUM_THREADS"],
			})
		default:
			appendEnvDocs(cmd, []envconfig.EnvVar{envVars["DALLE_CACHE"]})
		}
	}

	rootCmd.AddCommand(
		generateCmd,
		inspectCmd,
		convertCmd,
	)

	return rootCmd
}
