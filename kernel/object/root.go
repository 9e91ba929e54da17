package object

import (
	"sync"

	"norostb/kernel/kerr"
)

// Root is a string-keyed mapping of names to objects.
// Open/Create/Destroy are hierarchical only for Root objects; no other
// variant implements them, so they answer with Base's InvalidOperation
// (stream-table objects do not forward them to a server).
type Root struct {
	Base
	mu sync.Mutex
	children map[string]Object
}

// NewRoot creates an empty root.
func NewRoot() *Root { return &Root{children: map[string]Object{}} }

// Mount programmatically registers an object under name. Used at boot to
// expose kernel-internal diagnostic objects (the boot log) without going
// through the general Create path.
func (r *Root) Mount(name string, obj Object) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.children[name] = obj
}

func (r *Root) Open(path string) (Object, kerr.Code) {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj, ok := r.children[path]
	if !ok {
		return nil, kerr.NotFound
	}
	return obj, kerr.OK
}

// Create adds a fresh, empty sub-Root at path, the closest thing to a
// generic "new object" a bare Root can offer without delegating to a
// server.
func (r *Root) Create(path string) (Object, kerr.Code) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.children[path]; exists {
		return nil, kerr.AlreadyExists
	}
	child := NewRoot()
	r.children[path] = child
	return child, kerr.OK
}

func (r *Root) Destroy(path string) kerr.Code {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.children[path]; !exists {
		return kerr.NotFound
	}
	delete(r.children, path)
	return kerr.OK
}
