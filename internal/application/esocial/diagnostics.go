package esocial

import (
	"context"
	"encoding/json"

	"github.com/jhoicas/esocial-sst-api/internal/domain/entity"
	"github.com/jhoicas/esocial-sst-api/internal/domain/repository"
)

// AccountDiagnostics estado de cada ubicación posible del certificado de una cuenta.
// A diferencia del resolver, revisa todas las ubicaciones aunque alguna tenga éxito.
type AccountDiagnostics struct {
	UserID  string             `json:"-"`
	Table   TableDiagnostics   `json:"table"`
	Storage StorageDiagnostics `json:"storage"`
}

type TableDiagnostics struct {
	QueryError          string `json:"queryError,omitempty"`
	HasRecord           bool   `json:"hasRecord"`
	HasArquivoURL       bool   `json:"hasArquivoUrl"`
	HasArquivoBase64    bool   `json:"hasArquivoBase64"`
	HasSenhaCertificado bool   `json:"hasSenhaCertificado"`
	RecordArquivoURL    string `json:"recordArquivoUrl,omitempty"`
}

type PathCheck struct {
	Path   string `json:"path"`
	Tried  bool   `json:"tried"`
	Exists bool   `json:"exists"`
	Error  string `json:"error,omitempty"`
}

type MetaCheck struct {
	ArquivoURL     string `json:"arquivoUrl,omitempty"`
	DownloadTried  bool   `json:"downloadTried"`
	DownloadExists bool   `json:"downloadExists"`
	DownloadError  string `json:"downloadError,omitempty"`
}

type StorageDiagnostics struct {
	Bucket     string    `json:"bucket"`
	DirectPath PathCheck `json:"directPath"`
	JSON       PathCheck `json:"json"`
	Meta       MetaCheck `json:"meta"`
}

// AccountDiagnosticsUseCase diagnóstico del certificado de la cuenta del usuario autenticado.
type AccountDiagnosticsUseCase struct {
	records repository.CertificateRecordRepository
	blobs   BlobStore
	bucket  string
}

// NewAccountDiagnosticsUseCase crea el caso de uso.
func NewAccountDiagnosticsUseCase(records repository.CertificateRecordRepository, blobs BlobStore, bucket string) *AccountDiagnosticsUseCase {
	return &AccountDiagnosticsUseCase{records: records, blobs: blobs, bucket: bucket}
}

// Execute solo lee. Los errores de cada ubicación quedan en el diagnóstico.
func (uc *AccountDiagnosticsUseCase) Execute(ctx context.Context, userID string) *AccountDiagnostics {
	owner := entity.CertificateOwner{Kind: entity.OwnerUsuario, ID: userID}
	d := &AccountDiagnostics{UserID: userID, Storage: StorageDiagnostics{Bucket: uc.bucket}}

	record, err := uc.records.FindCertificate(ctx, owner)
	switch {
	case err != nil:
		d.Table.QueryError = err.Error()
	case record != nil:
		d.Table.HasRecord = true
		d.Table.HasArquivoURL = record.ArquivoURL != ""
		d.Table.HasArquivoBase64 = record.ArquivoBase64 != ""
		d.Table.HasSenhaCertificado = record.SenhaCertificado != ""
		d.Table.RecordArquivoURL = record.ArquivoURL
	}

	d.Storage.DirectPath = uc.check(ctx, owner.DefaultPFXPath())

	d.Storage.JSON = PathCheck{Path: owner.MetaPath(), Tried: true}
	raw, err := uc.blobs.Download(ctx, owner.MetaPath())
	if err != nil {
		d.Storage.JSON.Error = err.Error()
		return d
	}
	d.Storage.JSON.Exists = true

	var meta certificateMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		d.Storage.JSON.Error = err.Error()
		return d
	}
	if meta.ArquivoURL == "" {
		return d
	}
	d.Storage.Meta.ArquivoURL = meta.ArquivoURL
	target := uc.check(ctx, meta.ArquivoURL)
	d.Storage.Meta.DownloadTried = true
	d.Storage.Meta.DownloadExists = target.Exists
	d.Storage.Meta.DownloadError = target.Error
	return d
}

func (uc *AccountDiagnosticsUseCase) check(ctx context.Context, path string) PathCheck {
	c := PathCheck{Path: path, Tried: true}
	if _, err := uc.blobs.Download(ctx, path); err != nil {
		c.Error = err.Error()
		return c
	}
	c.Exists = true
	return c
}
