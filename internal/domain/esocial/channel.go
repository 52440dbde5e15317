package esocial

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
)

// HTTPVersion versión fijada en el canal: los endpoints no negocian bien mTLS sobre HTTP/2.
const HTTPVersion = "1.1"

// ChannelDescription describe el canal usado por una sonda (para diagnósticos).
type ChannelDescription struct {
	Ambiente           Ambiente `json:"ambiente"`
	Endpoint           string   `json:"endpoint"`
	RejectUnauthorized bool     `json:"rejectUnauthorized"`
	HTTPVersion        string   `json:"httpVersion"`
}

// ProbeResponse respuesta cruda de una consulta. El contenido de los eventos se descarta;
// solo importan el código HTTP y la presencia de <erro>.
type ProbeResponse struct {
	StatusCode     int
	Body           []byte
	Fault          string // faultstring de un SOAP Fault, si lo hubo
	EnvelopeDigest string // huella C14N del sobre enviado
}

// Status aplica ClassifyResponse.
func (r *ProbeResponse) Status() ProbeStatus {
	return ClassifyResponse(r.StatusCode, r.Body)
}

// TransportErrorDetail campos estables que describen un fallo de red/TLS sin exponer trazas.
type TransportErrorDetail struct {
	Name         string `json:"name,omitempty"`
	Code         string `json:"code,omitempty"`
	CauseCode    string `json:"causeCode,omitempty"`
	CauseMessage string `json:"causeMessage,omitempty"`
}

// DescribeTransportError extrae nombre, código y causa raíz de un error de transporte.
func DescribeTransportError(err error) TransportErrorDetail {
	if err == nil {
		return TransportErrorDetail{}
	}
	d := TransportErrorDetail{Name: string(KindOf(err))}
	if d.Name == "" {
		d.Name = fmt.Sprintf("%T", err)
	}

	var uerr *url.Error
	if errors.As(err, &uerr) {
		d.Code = uerr.Op
	}
	var operr *net.OpError
	if errors.As(err, &operr) {
		d.Code = operr.Op
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		d.Code = "TIMEOUT"
	case errors.Is(err, context.Canceled):
		d.Code = "CANCELED"
	}

	root := err
	for {
		next := errors.Unwrap(root)
		if next == nil {
			break
		}
		root = next
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		d.CauseCode = fmt.Sprintf("ERRNO_%d", int(errno))
	} else {
		d.CauseCode = fmt.Sprintf("%T", root)
	}
	d.CauseMessage = root.Error()
	return d
}

// ProbeSession canal abierto con un certificado ya decodificado. Se reutiliza para todas
// las sondas de una misma petición y se cierra al terminar.
type ProbeSession interface {
	ConsultarEventos(ctx context.Context, cnpj string, w QueryWindow) (*ProbeResponse, error)
	Describe() ChannelDescription
	Close()
}
