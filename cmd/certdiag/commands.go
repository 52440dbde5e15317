package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	appesocial "github.com/jhoicas/esocial-sst-api/internal/application/esocial"
	"github.com/jhoicas/esocial-sst-api/internal/domain/entity"
	domesocial "github.com/jhoicas/esocial-sst-api/internal/domain/esocial"
	infraesocial "github.com/jhoicas/esocial-sst-api/internal/infrastructure/esocial"
	"github.com/jhoicas/esocial-sst-api/internal/infrastructure/esocial/signer"
	infrapdf "github.com/jhoicas/esocial-sst-api/internal/infrastructure/pdf"
	"github.com/jhoicas/esocial-sst-api/internal/infrastructure/storage"
	"github.com/jhoicas/esocial-sst-api/pkg/esocial"
	"github.com/jhoicas/esocial-sst-api/pkg/logger"
)

// errReportInvalid hace que inspect termine con código distinto de cero.
var errReportInvalid = errors.New("certificado inválido")

func inspectCmd() *cobra.Command {
	var senha, cnpj, pdfPath string
	cmd := &cobra.Command{
		Use:   "inspect <certificado.pfx>",
		Short: "Valida un certificado A1 e imprime el informe en JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("leer certificado: %w", err)
			}
			inspector := appesocial.NewCertificateInspector(signer.NewCertificateStore(), infrapdf.NewMarotoReportRenderer())
			in := appesocial.InspectInput{PFX: raw, Password: senha, CNPJEmpresa: cnpj}

			var report *appesocial.CertificateReport
			if pdfPath != "" {
				var pdf []byte
				report, pdf, err = inspector.RenderPDF(cmd.Context(), in)
				if err != nil {
					return err
				}
				if err := os.WriteFile(pdfPath, pdf, 0o600); err != nil {
					return fmt.Errorf("escribir PDF: %w", err)
				}
			} else {
				report = inspector.Inspect(cmd.Context(), in)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if report.Status == appesocial.ReportInvalid {
				return errReportInvalid
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&senha, "senha", "", "Contraseña del .pfx")
	cmd.Flags().StringVar(&cnpj, "cnpj", "", "CNPJ de la empresa titular (opcional)")
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "Escribe además el informe PDF en esta ruta")
	_ = cmd.MarkFlagRequired("senha")
	return cmd
}

func signCmd() *cobra.Command {
	var senha, out string
	cmd := &cobra.Command{
		Use:   "sign <certificado.pfx> <evento.xml>",
		Short: "Firma el elemento evento de un XML eSocial",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dc, err := signer.NewCertificateStore().LoadFile(args[0], senha)
			if err != nil {
				return err
			}
			xmlBytes, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("leer XML: %w", err)
			}
			signed, err := signer.NewDigitalSignatureService().Sign(xmlBytes, dc.TLS())
			if err != nil {
				return err
			}
			if out == "" {
				_, err = cmd.OutOrStdout().Write(signed)
				return err
			}
			if err := os.WriteFile(out, signed, 0o600); err != nil {
				return err
			}
			digest, issuer, serial := signer.CertDigestAndIssuerSerial(dc.Certificate)
			cmd.PrintErrf("firmado con serial %s (%s), digest %s\n", serial, issuer, digest)
			return nil
		},
	}
	cmd.Flags().StringVar(&senha, "senha", "", "Contraseña del .pfx")
	cmd.Flags().StringVarP(&out, "output", "o", "", "Archivo de salida (por defecto stdout)")
	_ = cmd.MarkFlagRequired("senha")
	return cmd
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <firmado.xml>",
		Short: "Verifica la firma XMLDSig de un evento",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			xmlBytes, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("leer XML: %w", err)
			}
			ok, err := signer.NewSignatureValidator().Verify(xmlBytes)
			if err != nil {
				return err
			}
			if !ok {
				cmd.Println("firma inválida o ausente")
				return errors.New("firma inválida")
			}
			cmd.Println("firma válida")
			return nil
		},
	}
}

func probeCmd() *cobra.Command {
	var senha, cnpj, ambiente, endpoint string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "probe <certificado.pfx>",
		Short: "Consulta si el certificado está autorizado para un CNPJ",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := esocial.SanitizeCNPJ(cnpj)
			if err := esocial.ValidateCNPJ(target); err != nil {
				return err
			}
			amb, err := domesocial.ParseAmbiente(ambiente)
			if err != nil {
				return err
			}
			store := signer.NewCertificateStore()
			dc, err := store.LoadFile(args[0], senha)
			if err != nil {
				return err
			}

			log := logger.New(logger.Config{Env: "development", Level: "debug", Out: cmd.ErrOrStderr()})
			client := infraesocial.NewSOAPClient(infraesocial.NewSecureChannelFactory(store), amb, endpoint, timeout, log)
			session := client.Session(dc)
			defer session.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout+5*time.Second)
			defer cancel()
			resp, err := session.ConsultarEventos(ctx, target, domesocial.DefaultWindow(time.Now()))
			if err != nil {
				d := domesocial.DescribeTransportError(err)
				return fmt.Errorf("%s (%s, causa %s: %s)", err, d.Code, d.CauseCode, d.CauseMessage)
			}
			desc := session.Describe()
			cmd.Printf("ambiente:  %s\nendpoint:  %s\nhttp:      %d\nestado:    %s\n", desc.Ambiente, desc.Endpoint, resp.StatusCode, resp.Status())
			if resp.Fault != "" {
				cmd.Printf("fault:     %s\n", resp.Fault)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&senha, "senha", "", "Contraseña del .pfx")
	cmd.Flags().StringVar(&cnpj, "cnpj", "", "CNPJ del empleador")
	cmd.Flags().StringVar(&ambiente, "ambiente", string(domesocial.AmbienteProducao), "producao | homologacao")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Reemplaza la URL de consulta")
	cmd.Flags().DurationVar(&timeout, "timeout", infraesocial.DefaultProbeTimeout, "Tiempo máximo de la sonda")
	_ = cmd.MarkFlagRequired("senha")
	_ = cmd.MarkFlagRequired("cnpj")
	return cmd
}

// uploadCmd copia un .pfx a la ruta por defecto del titular en un blob store local (driver fs).
func uploadCmd() *cobra.Command {
	var usuario, empresa, root, bucket string
	cmd := &cobra.Command{
		Use:   "upload <certificado.pfx>",
		Short: "Guarda un certificado en el blob store local (STORAGE_DRIVER=fs)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var owner entity.CertificateOwner
			switch {
			case usuario != "" && empresa == "":
				owner = entity.CertificateOwner{Kind: entity.OwnerUsuario, ID: usuario}
			case empresa != "" && usuario == "":
				owner = entity.CertificateOwner{Kind: entity.OwnerEmpresa, ID: empresa}
			default:
				return errors.New("indique exactamente uno de --usuario o --empresa")
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("leer certificado: %w", err)
			}
			store := storage.NewFSStore(afero.NewBasePathFs(afero.NewOsFs(), root), bucket)
			if err := store.Upload(cmd.Context(), owner.DefaultPFXPath(), raw); err != nil {
				return err
			}
			cmd.Printf("guardado en %s\n", filepath.Join(root, bucket, owner.DefaultPFXPath()))
			return nil
		},
	}
	cmd.Flags().StringVar(&usuario, "usuario", "", "ID de la cuenta titular")
	cmd.Flags().StringVar(&empresa, "empresa", "", "ID de la empresa titular")
	cmd.Flags().StringVar(&root, "root", "./data/storage", "Raíz del driver fs")
	cmd.Flags().StringVar(&bucket, "bucket", "certificados-esocial", "Bucket de certificados")
	return cmd
}
