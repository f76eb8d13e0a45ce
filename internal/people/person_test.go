package people

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	p, err := Parse("Thomas;HE,THEY")
	require.NoError(t, err)
	assert.Equal(t, "Thomas", p.Name)
	assert.Equal(t, []PronounForm{He, They}, p.Pronouns)
	assert.Equal(t, "himself", p.Reflexive())
}

func TestParse_RoundTrip(t *testing.T) {
	for _, encoded := range []string{"Alice;SHE", "Bob;HE,THEY", "Sam;XEY,STAR,IT", "Nobody;"} {
		p, err := Parse(encoded)
		require.NoError(t, err, encoded)
		assert.Equal(t, encoded, p.Encode())
	}
}

func TestParse_NameWithSemicolon(t *testing.T) {
	p, err := Parse("A;B;she")
	require.NoError(t, err)
	assert.Equal(t, "A;B", p.Name)
	assert.Equal(t, []PronounForm{She}, p.Pronouns)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse("Alice;ZE")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownPronoun))

	_, err = Parse(";HE")
	require.Error(t, err)

	_, err = Parse("")
	require.Error(t, err)
}

func TestPerson_EqualIgnoresPronounOrder(t *testing.T) {
	a := Person{Name: "Thomas", Pronouns: []PronounForm{He, They}}
	b := Person{Name: "Thomas", Pronouns: []PronounForm{They, He}}
	c := Person{Name: "Thomas", Pronouns: []PronounForm{They}}
	d := Person{Name: "Tom", Pronouns: []PronounForm{He, They}}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(d))
}

func TestPerson_ReflexiveDefaultsToThey(t *testing.T) {
	assert.Equal(t, "themselves", Person{Name: "Pat"}.Reflexive())
	assert.Equal(t, "xemself", Person{Name: "Sam", Pronouns: []PronounForm{Xey, She}}.Reflexive())
}

func TestNew(t *testing.T) {
	p, err := New("Alice", "she", "THEY")
	require.NoError(t, err)
	assert.Equal(t, "Alice;SHE,THEY", p.Encode())

	_, err = New("Alice", "none")
	assert.ErrorIs(t, err, ErrUnknownPronoun)

	_, err = New("")
	assert.Error(t, err)
}

func TestPronounKeys(t *testing.T) {
	assert.Equal(t, []string{"HE", "IT", "SHE", "STAR", "THEY", "XEY"}, PronounKeys())
}
