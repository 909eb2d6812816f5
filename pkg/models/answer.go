package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// AnswerKind variante de la respuesta
type AnswerKind string

const (
	AnswerKindChoice      AnswerKind = "choice"
	AnswerKindMultiChoice AnswerKind = "multi_choice"
	AnswerKindFreeText    AnswerKind = "free_text"
)

var (
	ErrAnswerKind    = errors.New("tipo de respuesta incompatible con la pregunta")
	ErrUnknownOption = errors.New("la opción no existe en la pregunta")
	ErrEmptyAnswer   = errors.New("respuesta vacía")
)

// Answer es la respuesta de un usuario a una pregunta. Solo se construye con
// Choice, MultiChoice o FreeText; el valor cero significa "sin respuesta".
type Answer struct {
	kind    AnswerKind
	text    string
	choices []string
}

// Choice respuesta de opción única (mcq, verdadero/falso)
func Choice(option string) Answer {
	return Answer{kind: AnswerKindChoice, text: option}
}

// MultiChoice respuesta de selección múltiple
func MultiChoice(options ...string) Answer {
	choices := make([]string, len(options))
	copy(choices, options)
	return Answer{kind: AnswerKindMultiChoice, choices: choices}
}

// FreeText respuesta de texto libre
func FreeText(text string) Answer {
	return Answer{kind: AnswerKindFreeText, text: text}
}

func (a Answer) Kind() AnswerKind { return a.kind }

func (a Answer) IsZero() bool { return a.kind == "" }

// Text devuelve el valor de una respuesta de opción única o texto libre
func (a Answer) Text() string { return a.text }

// Choices devuelve una copia de las opciones seleccionadas
func (a Answer) Choices() []string {
	if a.choices == nil {
		return nil
	}
	out := make([]string, len(a.choices))
	copy(out, a.choices)
	return out
}

// Equal compara dos respuestas respetando el orden de las opciones
func (a Answer) Equal(b Answer) bool {
	if a.kind != b.kind || a.text != b.text || len(a.choices) != len(b.choices) {
		return false
	}
	for i := range a.choices {
		if a.choices[i] != b.choices[i] {
			return false
		}
	}
	return true
}

func (a Answer) String() string {
	switch a.kind {
	case AnswerKindMultiChoice:
		return fmt.Sprintf("%v", a.choices)
	case "":
		return ""
	default:
		return a.text
	}
}

// Compatible verifica la forma de la respuesta para la pregunta. No evalúa si
// es correcta.
func (a Answer) Compatible(q *Question) error {
	if a.IsZero() {
		return ErrEmptyAnswer
	}
	if a.kind != q.Type.AnswerKind() {
		return fmt.Errorf("%w: %s espera %s, recibió %s", ErrAnswerKind, q.ID, q.Type.AnswerKind(), a.kind)
	}
	switch a.kind {
	case AnswerKindChoice:
		if !q.HasOption(a.text) {
			return fmt.Errorf("%w: %q", ErrUnknownOption, a.text)
		}
	case AnswerKindMultiChoice:
		seen := make(map[string]bool, len(a.choices))
		for _, c := range a.choices {
			if !q.HasOption(c) {
				return fmt.Errorf("%w: %q", ErrUnknownOption, c)
			}
			if seen[c] {
				return fmt.Errorf("opción repetida %q", c)
			}
			seen[c] = true
		}
	}
	return nil
}

// As convierte una respuesta decodificada sin tipo a la variante de la pregunta
func (a Answer) As(t QuestionType) (Answer, error) {
	if a.IsZero() {
		return a, nil
	}
	want := t.AnswerKind()
	switch {
	case a.kind == want:
		return a, nil
	case a.kind == AnswerKindMultiChoice:
		return Answer{}, fmt.Errorf("%w: %s no admite varias opciones", ErrAnswerKind, t)
	case want == AnswerKindMultiChoice:
		return MultiChoice(a.text), nil
	case want == AnswerKindFreeText:
		return FreeText(a.text), nil
	default:
		return Choice(a.text), nil
	}
}

// MarshalJSON texto para opción única y texto libre, arreglo para selección múltiple
func (a Answer) MarshalJSON() ([]byte, error) {
	switch a.kind {
	case "":
		return []byte("null"), nil
	case AnswerKindMultiChoice:
		if a.choices == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.choices)
	default:
		return json.Marshal(a.text)
	}
}

// UnmarshalJSON sin conocer el tipo de la pregunta: un texto se lee como
// opción única y un arreglo como selección múltiple. Usar As o DecodeAnswer
// para fijar la variante.
func (a *Answer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = Answer{}
		return nil
	}
	if data[0] == '[' {
		var choices []string
		if err := json.Unmarshal(data, &choices); err != nil {
			return fmt.Errorf("%w: %v", ErrAnswerKind, err)
		}
		*a = MultiChoice(choices...)
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("%w: %v", ErrAnswerKind, err)
	}
	*a = Choice(text)
	return nil
}

// DecodeAnswer decodifica un valor crudo con la variante del tipo de pregunta
func DecodeAnswer(t QuestionType, raw json.RawMessage) (Answer, error) {
	var a Answer
	if err := a.UnmarshalJSON(raw); err != nil {
		return Answer{}, err
	}
	return a.As(t)
}
