package entity

import "time"

// AuditLog fila de logs_auditoria.
type AuditLog struct {
	ID         string
	EmpresaID  string
	UsuarioID  string
	Acao       string
	Tabela     string
	RegistroID string
	Detalhes   map[string]any
	CreatedAt  time.Time
}
