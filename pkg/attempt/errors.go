package attempt

import (
	"errors"

	"github.com/backsoul/shikkhapro/pkg/models"
)

var (
	ErrNotStarted      = errors.New("el intento no ha iniciado")
	ErrAlreadyStarted  = errors.New("el intento ya fue iniciado")
	ErrEmptyQuiz       = models.ErrEmptyQuiz
	ErrUnknownQuestion = errors.New("la pregunta no pertenece al quiz")
	ErrFrozen          = errors.New("el intento ya fue enviado y no admite cambios")
	ErrIndexOutOfRange = errors.New("índice de pregunta fuera de rango")
	ErrClosed          = errors.New("el intento fue cerrado")
	ErrNoSubmitter     = errors.New("no hay servicio de calificación configurado")
)
