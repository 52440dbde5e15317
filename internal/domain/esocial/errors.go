// Package esocial contiene los tipos de dominio del canal seguro eSocial:
// taxonomía cerrada de errores, estados de sonda y ventana de consulta.
package esocial

import (
	"errors"
	"fmt"
)

// Kind clasifica un fallo del canal seguro. El conjunto es cerrado.
type Kind string

const (
	KindCertificateNotFound   Kind = "CertificateNotFound"
	KindMalformedContainer    Kind = "MalformedContainer"
	KindWrongPassphrase       Kind = "WrongPassphrase"
	KindIncompleteCertificate Kind = "IncompleteCertificate"
	KindExpiredCertificate    Kind = "ExpiredCertificate"
	KindInvalidInputXML       Kind = "InvalidInputXml"
	KindNoSignableElement     Kind = "NoSignableElement"
	KindSigningFailed         Kind = "SigningFailed"
	KindChannelError          Kind = "ChannelError"
	KindUnauthorized          Kind = "Unauthorized"
)

// Sentinelas para errors.Is.
var (
	ErrCertificateNotFound   = &Error{Kind: KindCertificateNotFound}
	ErrMalformedContainer    = &Error{Kind: KindMalformedContainer}
	ErrWrongPassphrase       = &Error{Kind: KindWrongPassphrase}
	ErrIncompleteCertificate = &Error{Kind: KindIncompleteCertificate}
	ErrExpiredCertificate    = &Error{Kind: KindExpiredCertificate}
	ErrInvalidInputXML       = &Error{Kind: KindInvalidInputXML}
	ErrNoSignableElement     = &Error{Kind: KindNoSignableElement}
	ErrSigningFailed         = &Error{Kind: KindSigningFailed}
	ErrChannelError          = &Error{Kind: KindChannelError}
	ErrUnauthorized          = &Error{Kind: KindUnauthorized}
)

// Error es un fallo clasificado. Op indica la operación (ej. "decode", "sign").
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

// E construye un *Error del tipo indicado envolviendo la causa.
func E(kind Kind, op, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: cause}
}

func (e *Error) Error() string {
	s := "esocial"
	if e.Op != "" {
		s += ": " + e.Op
	}
	s += ": " + string(e.Kind)
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is compara por Kind, de modo que errors.Is(err, ErrWrongPassphrase) funciona con cualquier instancia.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf devuelve el Kind del primer *Error en la cadena, o "" si no hay ninguno.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Errorf es un atajo para E con mensaje formateado y sin causa.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}
