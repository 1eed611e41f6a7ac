package normalize

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// flexNumber acepta un número JSON, un string numérico ("0.65", "65%", "$2.4M") o null.
// Los upstreams mezclan los tres formatos en el mismo campo.
type flexNumber struct {
	raw     string
	value   float64
	percent bool // el string traía '%'
	valid   bool
}

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	*f = flexNumber{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		f.raw = s
		f.value, f.percent, f.valid = parseNumeric(s)
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	f.raw = string(b)
	f.value = v
	f.valid = true
	return nil
}

// Probability convierte el valor a porcentaje 0–100.
// Un valor <= 1 sin '%' se interpreta como fracción (0.65 → 65).
func (f flexNumber) Probability() (float64, bool) {
	return f.probabilityIn(false)
}

// probabilityIn es Probability con la escala del registro ya decidida:
// pctScale trata los valores sin '%' como porcentajes aunque sean <= 1.
func (f flexNumber) probabilityIn(pctScale bool) (float64, bool) {
	if !f.valid {
		return 0, false
	}
	return toPercent(f.value, f.percent || pctScale)
}

// percentScale decide la escala de un registro: si algún valor sin '%' supera 1,
// todos los valores sin '%' del registro son porcentajes (1 → 1%, no 100%).
func percentScale(fields ...flexNumber) bool {
	for _, f := range fields {
		if f.valid && !f.percent && f.value > 1 {
			return true
		}
	}
	return false
}

// Amount devuelve el importe en unidades crudas; negativos y ausentes son 0.
func (f flexNumber) Amount() float64 {
	if !f.valid || f.value < 0 {
		return 0
	}
	return f.value
}

// Float devuelve el valor tal cual y si era parseable.
func (f flexNumber) Float() (float64, bool) {
	return f.value, f.valid
}

func toPercent(v float64, explicitPercent bool) (float64, bool) {
	if v < 0 {
		return 0, false
	}
	if !explicitPercent && v <= 1 {
		v *= 100
	}
	if v > 100 {
		return 0, false
	}
	return v, true
}

var suffixMultiplier = map[byte]float64{
	'K': 1e3,
	'M': 1e6,
	'B': 1e9,
}

// parseNumeric interpreta strings como "0.65", "65%", "$2.4M", "1,250,000", "3.1k USD".
func parseNumeric(s string) (value float64, percent bool, ok bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimSuffix(s, "USDC"), "USD")
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, false
	}

	if strings.HasSuffix(s, "%") {
		percent = true
		s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	}

	mult := 1.0
	if n := len(s); n > 0 {
		last := s[n-1]
		if last >= 'a' && last <= 'z' {
			last -= 'a' - 'A'
		}
		if m, ok := suffixMultiplier[last]; ok && !percent {
			mult = m
			s = strings.TrimSpace(s[:n-1])
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, false
	}
	return v * mult, percent, true
}

// ParseAmount convierte un importe formateado ("$2.4M", "850K", "1,000") a unidades crudas.
func ParseAmount(s string) (float64, bool) {
	v, percent, ok := parseNumeric(s)
	if !ok || percent {
		return 0, false
	}
	return v, true
}

// ParseProbability convierte "0.65", "65", "65%" a porcentaje 0–100.
func ParseProbability(s string) (float64, bool) {
	v, percent, ok := parseNumeric(s)
	if !ok {
		return 0, false
	}
	return toPercent(v, percent)
}

// flexID acepta IDs como string o como número JSON.
type flexID string

func (id *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = flexID(s)
		return nil
	}
	if b[0] == '-' || (b[0] >= '0' && b[0] <= '9') {
		*id = flexID(b)
		return nil
	}
	// objeto, array o bool: sin ID, stableID lo deriva de la pregunta
	*id = ""
	return nil
}

// Percent convierte un precio o probabilidad numérica (0.65 o 65) a porcentaje 0–100.
func Percent(v float64) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return toPercent(v, false)
}

// flexString acepta un string JSON; cualquier otro tipo queda vacío.
// Un campo opcional con tipo inesperado no debe tumbar el registro entero.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	*s = ""
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '"' {
		return nil
	}
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	*s = flexString(v)
	return nil
}

func (s flexString) String() string { return strings.TrimSpace(string(s)) }

// flexBool acepta true/false, "true"/"false", "yes"/"no" y 1/0. El resto es false.
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	*f = false
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		b = []byte(strings.TrimSpace(s))
	}
	switch strings.ToLower(string(b)) {
	case "true", "yes", "1":
		*f = true
	}
	return nil
}
