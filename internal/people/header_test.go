package people

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	aliceID int64 = 1
	bobID   int64 = 2
	carolID int64 = 3
	daveID  int64 = 4
)

func testDirectory() *Directory {
	return NewDirectory(map[int64]Person{
		aliceID: {Name: "Alice", Pronouns: []PronounForm{She}},
		bobID:   {Name: "Bob", Pronouns: []PronounForm{He, They}},
		carolID: {Name: "Carol"},
		// a second account belonging to Bob
		daveID: {Name: "Bob", Pronouns: []PronounForm{He}},
	})
}

func TestHeaderText(t *testing.T) {
	dir := testDirectory()

	tests := []struct {
		name         string
		author       int64
		conversation []int64
		want         string
	}{
		{"posted", aliceID, nil, "Alice posted on Twitter!"},
		{"unknown author posted", 99, nil, "Someone posted on Twitter!"},
		{"one known", aliceID, []int64{bobID}, "Alice replied to Bob on Twitter!"},
		{"two known", aliceID, []int64{bobID, carolID}, "Alice replied to Bob and Carol on Twitter!"},
		{"self reply", aliceID, []int64{aliceID}, "Alice replied to herself on Twitter!"},
		{"self reply and others", aliceID, []int64{bobID, aliceID, carolID}, "Alice replied to Bob, herself and Carol on Twitter!"},
		{"repeated ids", aliceID, []int64{bobID, bobID, bobID}, "Alice replied to Bob on Twitter!"},
		{"same name different ids", aliceID, []int64{bobID, daveID}, "Alice replied to Bob on Twitter!"},
		{"known and one unknown", aliceID, []int64{bobID, 100}, "Alice replied to Bob and someone else on Twitter!"},
		{"known and many unknown", aliceID, []int64{100, bobID, 101}, "Alice replied to Bob and some others on Twitter!"},
		{"one unknown", aliceID, []int64{100}, "Alice replied to someone on Twitter!"},
		{"same unknown twice", aliceID, []int64{100, 100}, "Alice replied to someone on Twitter!"},
		{"many unknown", aliceID, []int64{100, 101}, "Alice replied to some people on Twitter!"},
		{"unknown author replies", 99, []int64{bobID}, "Someone replied to Bob on Twitter!"},
		{"reflexive defaults to they", carolID, []int64{carolID}, "Carol replied to themselves on Twitter!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HeaderText(dir, tt.author, tt.conversation))
		})
	}
}

func TestHeaderText_NilDirectory(t *testing.T) {
	assert.Equal(t, "Someone replied to someone on Twitter!", HeaderText(nil, 1, []int64{2}))
}

func TestHeaderText_DoesNotModifyConversation(t *testing.T) {
	conversation := []int64{bobID, 100, bobID}
	HeaderText(testDirectory(), aliceID, conversation)
	assert.Equal(t, []int64{bobID, 100, bobID}, conversation)
}
