package people

// Directory is the in-memory view of the person table. It is loaded once
// at startup and never written, so it is safe to share between goroutines.
type Directory struct {
	people map[int64]Person
}

// NewDirectory wraps a user id → person mapping.
func NewDirectory(people map[int64]Person) *Directory {
	copied := make(map[int64]Person, len(people))
	for id, p := range people {
		copied[id] = p
	}
	return &Directory{people: copied}
}

// Lookup returns the person registered for a user id.
func (d *Directory) Lookup(id int64) (Person, bool) {
	if d == nil {
		return Person{}, false
	}
	p, ok := d.people[id]
	return p, ok
}

// Len returns the number of known people.
func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.people)
}
