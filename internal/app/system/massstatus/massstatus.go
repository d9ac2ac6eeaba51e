// Package massstatus defines the canonical mass lifecycle statuses, the
// legal transition graph, and normalization of legacy status aliases.
//
// Historical records carry accented or differently-cased Portuguese
// status strings. Normalize maps any alias to the canonical value, and
// is applied on read paths before every status comparison so the state
// machine itself only ever sees canonical statuses.
package massstatus

import "strings"

// Canonical statuses.
const (
	Scheduled   = "SCHEDULED"
	Open        = "OPEN"
	Preparation = "PREPARATION"
	Finished    = "FINISHED"
	Canceled    = "CANCELED"
)

// aliases maps legacy textual representations (uppercased, as stored)
// to canonical statuses.
var aliases = map[string]string{
	"AGENDADA":    Scheduled,
	"MARCADA":     Scheduled,
	"ABERTA":      Open,
	"PREPARAÇÃO":  Preparation,
	"PREPARACAO":  Preparation,
	"EM PREPARO":  Preparation,
	"FINALIZADA":  Finished,
	"CONCLUÍDA":   Finished,
	"CONCLUIDA":   Finished,
	"CANCELADA":   Canceled,
	"CANCELLED":   Canceled,
	"PREPARATION": Preparation,
	"SCHEDULED":   Scheduled,
	"OPEN":        Open,
	"FINISHED":    Finished,
	"CANCELED":    Canceled,
}

// Normalize maps a stored status string (canonical or legacy alias) to
// its canonical value. Unknown values are returned uppercased and
// trimmed, so callers comparing against canonical constants treat them
// as no status at all.
func Normalize(s string) string {
	key := strings.ToUpper(strings.TrimSpace(s))
	if canonical, ok := aliases[key]; ok {
		return canonical
	}
	return key
}

// Aliases returns every stored representation (canonical and legacy)
// of the given canonical status. Used to build read filters that must
// match historical documents.
func Aliases(canonical string) []string {
	out := []string{}
	for stored, c := range aliases {
		if c == canonical {
			out = append(out, stored)
		}
	}
	return out
}

// IsValid reports whether s is one of the five canonical statuses.
func IsValid(s string) bool {
	switch s {
	case Scheduled, Open, Preparation, Finished, Canceled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition may leave the status.
func IsTerminal(s string) bool {
	return s == Finished || s == Canceled
}

// transition is one allowed edge of the lifecycle graph.
type transition struct {
	from string
	to   string
}

var transitions = []transition{
	{Scheduled, Open},
	{Open, Preparation},
	{Preparation, Finished},
	{Scheduled, Canceled},
	{Open, Canceled},
}

// CanTransition reports whether from→to is a legal edge. Statuses are
// normalized before lookup.
func CanTransition(from, to string) bool {
	f, t := Normalize(from), Normalize(to)
	for _, tr := range transitions {
		if tr.from == f && tr.to == t {
			return true
		}
	}
	return false
}

// all lists the canonical statuses in lifecycle order.
var all = []string{Scheduled, Open, Preparation, Finished, Canceled}

// CancelableFrom lists the statuses with a legal edge into Canceled.
func CancelableFrom() []string {
	out := []string{}
	for _, s := range all {
		if CanTransition(s, Canceled) {
			out = append(out, s)
		}
	}
	return out
}

// DelegableFrom lists the statuses delegation is allowed in: every
// non-terminal status.
func DelegableFrom() []string {
	out := []string{}
	for _, s := range all {
		if !IsTerminal(s) {
			out = append(out, s)
		}
	}
	return out
}
