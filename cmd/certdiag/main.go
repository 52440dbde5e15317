// certdiag inspecciona, firma, verifica y sondea certificados A1 del eSocial desde la línea de comandos.
//
// Uso:
//
//	certdiag inspect certificado.pfx --senha 123456 [--cnpj 03731608000184] [--pdf informe.pdf]
//	certdiag sign certificado.pfx evento.xml --senha 123456 [-o firmado.xml]
//	certdiag verify firmado.xml
//	certdiag probe certificado.pfx --senha 123456 --cnpj 03731608000184 [--ambiente homologacao]
//	certdiag upload certificado.pfx --usuario <id> [--root ./data/storage]
package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "certdiag",
		Short:        "Diagnóstico de certificados A1 del eSocial",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(inspectCmd())
	rootCmd.AddCommand(signCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(probeCmd())
	rootCmd.AddCommand(uploadCmd())
	rootCmd.AddCommand(versionCmd())
	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Muestra la versión",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("certdiag version %s\n", version)
		},
	}
}
