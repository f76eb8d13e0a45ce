// Package people maps Twitter user ids to display names and pronouns.
package people

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// PronounForm is one set of pronouns, e.g. they/them/their/theirs/themselves.
type PronounForm struct {
	Key                  string
	Subject              string
	Object               string
	PossessiveDeterminer string
	PossessivePronoun    string
	Reflexive            string
}

var (
	He   = PronounForm{"HE", "he", "him", "his", "his", "himself"}
	She  = PronounForm{"SHE", "she", "her", "her", "hers", "herself"}
	They = PronounForm{"THEY", "they", "them", "their", "theirs", "themselves"}
	It   = PronounForm{"IT", "it", "it", "its", "its", "itself"}
	Xey  = PronounForm{"XEY", "xey", "xem", "xyr", "xyrs", "xemself"}
	Star = PronounForm{"STAR", "star", "star", "stars", "stars", "starself"}
)

var pronounsByKey = map[string]PronounForm{
	He.Key:   He,
	She.Key:  She,
	They.Key: They,
	It.Key:   It,
	Xey.Key:  Xey,
	Star.Key: Star,
}

// ErrUnknownPronoun is returned when an encoded person names a pronoun key
// that is not one of the known forms.
var ErrUnknownPronoun = errors.New("unknown pronoun form")

// LookupPronoun returns the pronoun form for a key such as "THEY".
func LookupPronoun(key string) (PronounForm, bool) {
	p, ok := pronounsByKey[strings.ToUpper(strings.TrimSpace(key))]
	return p, ok
}

// PronounKeys returns every known pronoun key in sorted order.
func PronounKeys() []string {
	keys := make([]string, 0, len(pronounsByKey))
	for k := range pronounsByKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Person is a display identity for a Twitter account
type Person struct {
	Name     string
	Pronouns []PronounForm
}

// Reflexive returns the reflexive pronoun used when a person replies to
// themselves. The first configured form wins; people without pronouns get "themselves".
func (p Person) Reflexive() string {
	if len(p.Pronouns) == 0 {
		return They.Reflexive
	}
	return p.Pronouns[0].Reflexive
}

// Equal compares name and the set of pronoun forms. Pronoun order is ignored.
func (p Person) Equal(other Person) bool {
	if p.Name != other.Name {
		return false
	}
	return sameKeys(p.Pronouns, other.Pronouns)
}

func sameKeys(a, b []PronounForm) bool {
	left := make(map[string]bool, len(a))
	for _, f := range a {
		left[f.Key] = true
	}
	right := make(map[string]bool, len(b))
	for _, f := range b {
		right[f.Key] = true
	}
	if len(left) != len(right) {
		return false
	}
	for k := range left {
		if !right[k] {
			return false
		}
	}
	return true
}

// Encode renders the person in its stored form, e.g. "Thomas;HE,THEY".
func (p Person) Encode() string {
	keys := make([]string, len(p.Pronouns))
	for i, f := range p.Pronouns {
		keys[i] = f.Key
	}
	return p.Name + ";" + strings.Join(keys, ",")
}

func (p Person) String() string {
	return p.Encode()
}

// Parse decodes a stored person. The name is everything before the last ';'.
func Parse(s string) (Person, error) {
	idx := strings.LastIndex(s, ";")
	if idx < 0 {
		if s == "" {
			return Person{}, errors.New("empty person")
		}
		return Person{Name: s}, nil
	}

	person := Person{Name: s[:idx]}
	if person.Name == "" {
		return Person{}, fmt.Errorf("person %q has no name", s)
	}

	for _, key := range strings.Split(s[idx+1:], ",") {
		if strings.TrimSpace(key) == "" {
			continue
		}
		form, ok := LookupPronoun(key)
		if !ok {
			return Person{}, fmt.Errorf("%w: %q", ErrUnknownPronoun, key)
		}
		person.Pronouns = append(person.Pronouns, form)
	}

	return person, nil
}

// New builds a person from a name and pronoun keys.
func New(name string, keys ...string) (Person, error) {
	if name == "" {
		return Person{}, errors.New("person has no name")
	}
	person := Person{Name: name}
	for _, key := range keys {
		form, ok := LookupPronoun(key)
		if !ok {
			return Person{}, fmt.Errorf("%w: %q", ErrUnknownPronoun, key)
		}
		person.Pronouns = append(person.Pronouns, form)
	}
	return person, nil
}
