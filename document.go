package krds

import "github.com/rawbytedev/krds/pkg/value"

// Entry is one top-level (name, value) pair.
type Entry struct {
	Name  string
	Value value.Value
}

// Document is a decoded data store. Entries keep file order and duplicate
// names.
type Document struct {
	Layout  Layout
	Version uint16
	Entries []Entry
	// Trailer holds bytes found after the last entry of a device-layout
	// document. Encode writes them back verbatim.
	Trailer []byte
}

// Lookup returns the value of the first entry called name.
func (d *Document) Lookup(name string) (value.Value, bool) {
	for _, e := range d.Entries {
		if e.Name == name {
			return e.Value, true
		}
	}
	return value.Value{}, false
}

// Names lists the entry names in order.
func (d *Document) Names() []string {
	names := make([]string, len(d.Entries))
	for i, e := range d.Entries {
		names[i] = e.Name
	}
	return names
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	out := &Document{Layout: d.Layout, Version: d.Version}
	if d.Entries != nil {
		out.Entries = make([]Entry, len(d.Entries))
		for i, e := range d.Entries {
			out.Entries[i] = Entry{Name: e.Name, Value: e.Value.Clone()}
		}
	}
	if d.Trailer != nil {
		out.Trailer = append([]byte{}, d.Trailer...)
	}
	return out
}

// Equal reports whether two documents hold the same layout, version,
// entries and trailer.
func (d *Document) Equal(o *Document) bool {
	if d.Layout != o.Layout || d.Version != o.Version || len(d.Entries) != len(o.Entries) {
		return false
	}
	if string(d.Trailer) != string(o.Trailer) {
		return false
	}
	for i := range d.Entries {
		if d.Entries[i].Name != o.Entries[i].Name || !value.Equal(d.Entries[i].Value, o.Entries[i].Value) {
			return false
		}
	}
	return true
}
