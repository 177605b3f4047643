package engine

import (
	"strings"
	"sync"
)

// DefaultDocumentName names documents created without an explicit name.
const DefaultDocumentName = "New_Document"

// View is the read-only face of engine state handed to Store.Read callers.
type View interface {
	Document(name string) (*Document, error)
	Documents() []*Document
	Active() *Document
	Catalog() Catalog
}

// State is the mutable engine state handed to Store.Exclusive callers.
type State struct {
	catalog Catalog
	docs    []*Document
	byName  map[string]*Document
	active  *Document
}

// Store owns the engine state and its lock.
//
// Exclusive is reserved for the mutation pump. Every other goroutine goes
// through Read.
type Store struct {
	mu    sync.RWMutex
	state *State
}

// NewStore creates an empty store using catalog for object types.
func NewStore(catalog Catalog) *Store {
	return &Store{
		state: &State{
			catalog: catalog,
			byName:  make(map[string]*Document),
		},
	}
}

// Exclusive runs fn with write access to the engine state.
func (s *Store) Exclusive(fn func(st *State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

// Read runs fn with read access to the engine state. fn must not retain
// documents or objects beyond its return.
func (s *Store) Read(fn func(v View) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.state)
}

// Catalog returns the object type catalog.
func (st *State) Catalog() Catalog {
	return st.catalog
}

// NewDocument creates a document and makes it active. The name is sanitized
// and made unique among open documents.
func (st *State) NewDocument(name string) *Document {
	if strings.TrimSpace(name) == "" {
		name = DefaultDocumentName
	}
	name = uniqueName(SanitizeName(name), func(n string) bool {
		_, ok := st.byName[n]
		return ok
	})

	doc := newDocument(name, st.catalog)
	st.docs = append(st.docs, doc)
	st.byName[name] = doc
	st.active = doc
	return doc
}

// Document resolves an open document by name.
func (st *State) Document(name string) (*Document, error) {
	doc, ok := st.byName[name]
	if !ok {
		return nil, notFound(name)
	}
	return doc, nil
}

// Documents returns the open documents in creation order.
func (st *State) Documents() []*Document {
	out := make([]*Document, len(st.docs))
	copy(out, st.docs)
	return out
}

// Active returns the active document, or nil when none is open.
func (st *State) Active() *Document {
	return st.active
}

// SetActive makes the named document active.
func (st *State) SetActive(name string) error {
	doc, err := st.Document(name)
	if err != nil {
		return err
	}
	st.active = doc
	return nil
}

// CloseDocument closes the named document. If it was active, the most
// recently created remaining document becomes active.
func (st *State) CloseDocument(name string) error {
	doc, err := st.Document(name)
	if err != nil {
		return err
	}
	delete(st.byName, name)
	for i, d := range st.docs {
		if d == doc {
			st.docs = append(st.docs[:i], st.docs[i+1:]...)
			break
		}
	}
	if st.active == doc {
		st.active = nil
		if n := len(st.docs); n > 0 {
			st.active = st.docs[n-1]
		}
	}
	return nil
}
