package people

import (
	"strings"

	"github.com/samber/lo"
)

// Unknown stands in for authors missing from the directory.
var Unknown = Person{Name: "Someone", Pronouns: []PronounForm{They}}

// HeaderText writes the sentence that opens a relayed post, e.g.
// "Alice replied to Bob and someone else on Twitter!". It never fails:
// unknown authors and participants are described generically.
func HeaderText(dir *Directory, authorID int64, conversation []int64) string {
	author, ok := dir.Lookup(authorID)
	if !ok {
		author = Unknown
	}

	if len(conversation) == 0 {
		return author.Name + " posted on Twitter!"
	}

	var names []string
	unknown := 0
	for _, id := range lo.Uniq(conversation) {
		p, ok := dir.Lookup(id)
		if !ok {
			unknown++
			continue
		}
		if p.Name == author.Name {
			names = append(names, author.Reflexive())
			continue
		}
		names = append(names, p.Name)
	}
	names = lo.Uniq(names)

	return author.Name + " replied to " + participants(names, unknown) + " on Twitter!"
}

func participants(names []string, unknown int) string {
	if len(names) == 0 {
		if unknown == 1 {
			return "someone"
		}
		return "some people"
	}

	switch {
	case unknown == 1:
		names = append(names, "someone else")
	case unknown > 1:
		names = append(names, "some others")
	}
	return joinList(names)
}

// joinList joins items as "a", "a and b" or "a, b and c".
func joinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}
