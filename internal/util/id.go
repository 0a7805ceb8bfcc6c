package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewID gera o identificador de um registro (UUID v4).
func NewID() uuid.UUID {
	return uuid.New()
}

// ShortID devolve 8 caracteres hexadecimais aleatórios, usados como sufixo de chave.
func ShortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
