// Package statcodec packs per-player match statistics into a 32-bit word.
package statcodec

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("stat out of range")

// Hard limits. A value above its limit is rejected outright.
const (
	MaxGoles             = 8
	MaxAsistencias       = 8
	MaxPenaltisParados   = 4
	MaxParadas           = 32
	MaxDespejes          = 64
	MaxMinutosJugados    = 90
	MaxTarjetasAmarillas = 2
	MaxTarjetasRojas     = 1
)

// Soft limits. Values that pass the hard check are clamped to these before packing.
const (
	ClampParadas  = 31
	ClampDespejes = 63
)

// MinutesPerStep is the quantization step for minutosJugados.
const MinutesPerStep = 3

// Bit offsets (bit 0 = least significant).
const (
	shiftGoles             = 0
	shiftAsistencias       = 4
	shiftParadas           = 8
	shiftPenaltisParados   = 13
	shiftDespejes          = 16
	shiftMinutos           = 22
	shiftTarjetasAmarillas = 27
	shiftTarjetasRojas     = 29
	shiftPorteriaCero      = 30
	shiftGanoPartido       = 31
)

// Field masks, one per width.
const (
	mask1 = 0x1
	mask2 = 0x3
	mask3 = 0x7
	mask4 = 0xF
	mask5 = 0x1F
	mask6 = 0x3F
)

// PlayerStat is one player's statistics for a single match.
// Goles is a pointer because a record without it is incomplete and must be skipped.
type PlayerStat struct {
	ID                uint64 `json:"id"`
	Goles             *int   `json:"goles,omitempty"`
	Asistencias       int    `json:"asistencias"`
	PenaltisParados   int    `json:"penaltisParados"`
	Paradas           int    `json:"paradas"`
	Despejes          int    `json:"despejes"`
	MinutosJugados    int    `json:"minutosJugados"`
	TarjetasAmarillas int    `json:"tarjetasAmarillas"`
	TarjetasRojas     int    `json:"tarjetasRojas"`
	PorteriaCero      bool   `json:"porteriaCero"`
	GanoPartido       bool   `json:"ganoPartido"`
}

// Complete reports whether the record carries the goles field.
func (s PlayerStat) Complete() bool {
	return s.Goles != nil
}

// Goals returns goles, or 0 when the field is absent.
func (s PlayerStat) Goals() int {
	if s.Goles == nil {
		return 0
	}
	return *s.Goles
}

// IntPtr is a convenience for building records with a goles value.
func IntPtr(v int) *int {
	return &v
}

// ValidationError reports a hard domain violation in one record.
type ValidationError struct {
	RecordID uint64
	Field    string
	Value    int
	Max      int
}

func (e *ValidationError) Error() string {
	if e.Value < 0 {
		return fmt.Sprintf("record %d: %s = %d is negative", e.RecordID, e.Field, e.Value)
	}
	return fmt.Sprintf("record %d: %s = %d exceeds max %d", e.RecordID, e.Field, e.Value, e.Max)
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// PackedWord is the dense encoding of one PlayerStat.
type PackedWord uint32

// String renders the word as 0x followed by 8 lowercase hex digits.
func (w PackedWord) String() string {
	return fmt.Sprintf("0x%08x", uint32(w))
}

// Bytes returns the word big-endian, as it is sent to the contract.
func (w PackedWord) Bytes() [4]byte {
	return [4]byte{byte(w >> 24), byte(w >> 16), byte(w >> 8), byte(w)}
}

// ParsePackedWord parses a 0x-prefixed hex word as produced by String.
func ParsePackedWord(s string) (PackedWord, error) {
	if len(s) != 10 || s[0] != '0' || (s[1] != 'x' && s[1] != 'X') {
		return 0, fmt.Errorf("packed word %q: want 0x followed by 8 hex digits", s)
	}
	v, err := strconv.ParseUint(s[2:], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("packed word %q: %w", s, err)
	}
	return PackedWord(v), nil
}

type limit struct {
	field string
	value int
	max   int
}

// Validate checks every hard limit in field order and returns the first violation.
func Validate(s PlayerStat) error {
	limits := []limit{
		{"goles", s.Goals(), MaxGoles},
		{"asistencias", s.Asistencias, MaxAsistencias},
		{"penaltisParados", s.PenaltisParados, MaxPenaltisParados},
		{"paradas", s.Paradas, MaxParadas},
		{"despejes", s.Despejes, MaxDespejes},
		{"minutosJugados", s.MinutosJugados, MaxMinutosJugados},
		{"tarjetasAmarillas", s.TarjetasAmarillas, MaxTarjetasAmarillas},
		{"tarjetasRojas", s.TarjetasRojas, MaxTarjetasRojas},
	}
	for _, l := range limits {
		if l.value < 0 || l.value > l.max {
			return &ValidationError{RecordID: s.ID, Field: l.field, Value: l.value, Max: l.max}
		}
	}
	return nil
}

// Pack validates s and lays its fields out into a PackedWord.
// paradas and despejes are clamped to 31 and 63; minutosJugados is floor-divided by 3.
func Pack(s PlayerStat) (PackedWord, error) {
	if err := Validate(s); err != nil {
		return 0, err
	}

	paradas := min(s.Paradas, ClampParadas)
	despejes := min(s.Despejes, ClampDespejes)
	minutos := s.MinutosJugados / MinutesPerStep

	var w uint32
	w |= (uint32(s.Goals()) & mask4) << shiftGoles
	w |= (uint32(s.Asistencias) & mask4) << shiftAsistencias
	w |= (uint32(paradas) & mask5) << shiftParadas
	w |= (uint32(s.PenaltisParados) & mask3) << shiftPenaltisParados
	w |= (uint32(despejes) & mask6) << shiftDespejes
	w |= (uint32(minutos) & mask5) << shiftMinutos
	w |= (uint32(s.TarjetasAmarillas) & mask2) << shiftTarjetasAmarillas
	w |= (uint32(s.TarjetasRojas) & mask1) << shiftTarjetasRojas
	if s.PorteriaCero {
		w |= 1 << shiftPorteriaCero
	}
	if s.GanoPartido {
		w |= 1 << shiftGanoPartido
	}
	return PackedWord(w), nil
}

// Fields is the decoded content of a PackedWord.
// Paradas and Despejes come back clamped, MinutosQuantized is minutes/3.
type Fields struct {
	Goles             int  `json:"goles"`
	Asistencias       int  `json:"asistencias"`
	Paradas           int  `json:"paradas"`
	PenaltisParados   int  `json:"penaltisParados"`
	Despejes          int  `json:"despejes"`
	MinutosQuantized  int  `json:"minutosQuantized"`
	TarjetasAmarillas int  `json:"tarjetasAmarillas"`
	TarjetasRojas     int  `json:"tarjetasRojas"`
	PorteriaCero      bool `json:"porteriaCero"`
	GanoPartido       bool `json:"ganoPartido"`
}

// Unpack decodes a PackedWord. Used for round-trip checks and operator tooling.
func Unpack(w PackedWord) Fields {
	v := uint32(w)
	return Fields{
		Goles:             int(v >> shiftGoles & mask4),
		Asistencias:       int(v >> shiftAsistencias & mask4),
		Paradas:           int(v >> shiftParadas & mask5),
		PenaltisParados:   int(v >> shiftPenaltisParados & mask3),
		Despejes:          int(v >> shiftDespejes & mask6),
		MinutosQuantized:  int(v >> shiftMinutos & mask5),
		TarjetasAmarillas: int(v >> shiftTarjetasAmarillas & mask2),
		TarjetasRojas:     int(v >> shiftTarjetasRojas & mask1),
		PorteriaCero:      v>>shiftPorteriaCero&mask1 == 1,
		GanoPartido:       v>>shiftGanoPartido&mask1 == 1,
	}
}
