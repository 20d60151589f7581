package models

import (
	"fmt"
	"strings"
)

// IdentityKey identifies a player across data sources.
type IdentityKey struct {
	Name string `db:"player_name" json:"name" validate:"required"`
	Team string `db:"team" json:"team" validate:"required"`
}

var nameSuffixes = map[string]struct{}{
	"jr":  {},
	"sr":  {},
	"ii":  {},
	"iii": {},
	"iv":  {},
}

var namePunctuation = strings.NewReplacer(".", "", "'", "", "’", "", ",", " ")

// NewIdentityKey builds a normalized key so that "Jaren Jackson Jr." on one
// site and "jaren jackson" on another resolve to the same player.
func NewIdentityKey(name, team string) IdentityKey {
	return IdentityKey{Name: NormalizeName(name), Team: NormalizeTeam(team)}
}

// NormalizeName lowercases, strips punctuation and drops generational suffixes.
func NormalizeName(name string) string {
	fields := strings.Fields(namePunctuation.Replace(strings.ToLower(name)))
	for len(fields) > 1 {
		if _, ok := nameSuffixes[fields[len(fields)-1]]; !ok {
			break
		}
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}

// NormalizeTeam returns the upper-case team abbreviation.
func NormalizeTeam(team string) string {
	return strings.ToUpper(strings.TrimSpace(team))
}

// ParseIdentityKey parses the "name|TEAM" form produced by String.
func ParseIdentityKey(s string) (IdentityKey, error) {
	name, team, ok := strings.Cut(s, "|")
	if !ok || strings.TrimSpace(name) == "" || strings.TrimSpace(team) == "" {
		return IdentityKey{}, fmt.Errorf("%w: %q", ErrInvalidIdentityKey, s)
	}
	return NewIdentityKey(name, team), nil
}

func (k IdentityKey) String() string {
	return k.Name + "|" + k.Team
}

// IsZero reports whether either half of the key is empty.
func (k IdentityKey) IsZero() bool {
	return k.Name == "" || k.Team == ""
}
