// Package mods parses modifier specifications into the legacy osu! bitmask.
package mods

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidModifier indicates an acronym that does not name a known modifier.
var ErrInvalidModifier = errors.New("mods: invalid modifier")

// Mod is a legacy modifier bitmask.
type Mod uint32

// Legacy bit values. Nightcore and Perfect carry their parent bit.
const (
	NoFail      Mod = 1 << 0
	Easy        Mod = 1 << 1
	TouchDevice Mod = 1 << 2
	Hidden      Mod = 1 << 3
	HardRock    Mod = 1 << 4
	SuddenDeath Mod = 1 << 5
	DoubleTime  Mod = 1 << 6
	Relax       Mod = 1 << 7
	HalfTime    Mod = 1 << 8
	Nightcore   Mod = 1<<9 | DoubleTime
	Flashlight  Mod = 1 << 10
	SpunOut     Mod = 1 << 12
	Autopilot   Mod = 1 << 13
	Perfect     Mod = 1<<14 | SuddenDeath
)

// None is the empty modifier set.
const None Mod = 0

// canonical order for String.
var acronyms = []struct {
	acr string
	mod Mod
}{
	{"NF", NoFail},
	{"EZ", Easy},
	{"TD", TouchDevice},
	{"HD", Hidden},
	{"HR", HardRock},
	{"SD", SuddenDeath},
	{"DT", DoubleTime},
	{"RX", Relax},
	{"HT", HalfTime},
	{"NC", Nightcore},
	{"FL", Flashlight},
	{"SO", SpunOut},
	{"AP", Autopilot},
	{"PF", Perfect},
}

var byAcronym = func() map[string]Mod {
	m := make(map[string]Mod, len(acronyms)+1)
	for _, a := range acronyms {
		m[a.acr] = a.mod
	}
	m["NM"] = None
	return m
}()

// Lookup resolves a single acronym, case-insensitively.
func Lookup(acr string) (Mod, bool) {
	m, ok := byAcronym[strings.ToUpper(acr)]
	return m, ok
}

// Parse resolves a modifier specification.
//
// Acronyms may be concatenated ("HDDT") or separated by whitespace, '+', '|'
// or ';' ("HD+DT"). An empty specification, "NM" and "None" mean no modifiers.
// Unknown acronyms fail with ErrInvalidModifier naming the token.
func Parse(spec string) (Mod, error) {
	tokens := strings.FieldsFunc(spec, func(r rune) bool {
		return r == '+' || r == '|' || r == ';' || r == ' ' || r == '\t'
	})

	var out Mod
	for _, tok := range tokens {
		if strings.EqualFold(tok, "none") {
			continue
		}
		if m, ok := Lookup(tok); ok {
			out |= m
			continue
		}
		if len(tok)%2 != 0 || len(tok) < 2 {
			return None, fmt.Errorf("%w: %s", ErrInvalidModifier, tok)
		}
		for i := 0; i < len(tok); i += 2 {
			m, ok := Lookup(tok[i : i+2])
			if !ok {
				return None, fmt.Errorf("%w: %s", ErrInvalidModifier, tok[i:i+2])
			}
			out |= m
		}
	}
	return out, nil
}

// Has reports whether every bit of o is set in m.
func (m Mod) Has(o Mod) bool {
	return m&o == o
}

// String renders m as concatenated acronyms in canonical order.
// Nightcore hides DoubleTime and Perfect hides SuddenDeath.
func (m Mod) String() string {
	if m == None {
		return "NM"
	}
	var b strings.Builder
	for _, a := range acronyms {
		if !m.Has(a.mod) {
			continue
		}
		if a.mod == DoubleTime && m.Has(Nightcore) {
			continue
		}
		if a.mod == SuddenDeath && m.Has(Perfect) {
			continue
		}
		b.WriteString(a.acr)
	}
	return b.String()
}
