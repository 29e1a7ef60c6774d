// Package todo holds the todo record, the document-store contract and the
// View that keeps a local copy of the remote list in sync.
package todo

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("todo not found")

// Todo is one record as returned by the document store. ID is assigned by
// the store and never generated locally.
type Todo struct {
	ID        string
	Text      string
	Completed bool
}

// Patch is a partial update. Nil fields are left untouched by the store.
type Patch struct {
	Text      *string
	Completed *bool
}

func TextPatch(text string) Patch {
	return Patch{Text: &text}
}

func CompletedPatch(completed bool) Patch {
	return Patch{Completed: &completed}
}

func (p Patch) Empty() bool {
	return p.Text == nil && p.Completed == nil
}

// Fields returns the set fields keyed by their document field name.
func (p Patch) Fields() map[string]any {
	fields := map[string]any{}
	if p.Text != nil {
		fields["text"] = *p.Text
	}
	if p.Completed != nil {
		fields["completed"] = *p.Completed
	}
	return fields
}

// Apply returns t with the patch's fields copied over.
func (p Patch) Apply(t Todo) Todo {
	if p.Text != nil {
		t.Text = *p.Text
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	return t
}

// Store is the remote document collection holding todo records. All
// implementations address one fixed database and collection.
type Store interface {
	List(ctx context.Context) ([]Todo, error)
	Create(ctx context.Context, text string, completed bool) (Todo, error)
	Update(ctx context.Context, id string, p Patch) (Todo, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
