package todo

import (
	"context"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
)

// State is the UI-owned copy of the collection plus the input state around
// it. An empty EditingID means no record is being edited.
type State struct {
	Items     []Todo
	Draft     string
	EditingID string
	Loading   bool
}

// View keeps State in step with a Store. Every remote operation has an
// apply half that reconciles a result into State, so callers that run the
// remote call elsewhere (a Bubble Tea command) can apply the outcome on their
// own loop. Failed calls are logged and leave State untouched.
//
// View is not safe for concurrent use.
type View struct {
	store  Store
	logger *log.Logger
	state  State
}

func NewView(store Store, logger *log.Logger) *View {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &View{
		store:  store,
		logger: logger,
		state:  State{Loading: true},
	}
}

func (v *View) Store() Store { return v.store }

// Snapshot returns a deep copy of the current state.
func (v *View) Snapshot() State {
	s := v.state
	s.Items = slices.Clone(v.state.Items)
	return s
}

func (v *View) Items() []Todo     { return slices.Clone(v.state.Items) }
func (v *View) Draft() string     { return v.state.Draft }
func (v *View) EditingID() string { return v.state.EditingID }
func (v *View) Loading() bool     { return v.state.Loading }

func (v *View) SetDraft(text string) { v.state.Draft = text }

func (v *View) StartEdit(id string) {
	if _, ok := v.Find(id); ok {
		v.state.EditingID = id
	}
}

func (v *View) CancelEdit() { v.state.EditingID = "" }

func (v *View) Find(id string) (Todo, bool) {
	i := v.indexOf(id)
	if i < 0 {
		return Todo{}, false
	}
	return v.state.Items[i], true
}

// Counts reports how many cached records are done and pending.
func (v *View) Counts() (done, pending int) {
	for _, t := range v.state.Items {
		if t.Completed {
			done++
		} else {
			pending++
		}
	}
	return
}

// List replaces the cache with the store's current contents.
func (v *View) List(ctx context.Context) error {
	v.BeginList()
	items, err := v.store.List(ctx)
	v.ApplyList(items, err)
	return err
}

func (v *View) BeginList() { v.state.Loading = true }

func (v *View) ApplyList(items []Todo, err error) {
	v.state.Loading = false
	if err != nil {
		v.logger.Error("failed to fetch todos", "err", err)
		return
	}
	v.state.Items = slices.Clone(items)
	v.logger.Debug("fetched todos", "count", len(items))
}

// CanCreate reports whether text would lead to a remote create.
func CanCreate(text string) bool {
	return strings.TrimSpace(text) != ""
}

// Create adds a new pending record. Blank text is ignored without a remote
// call.
func (v *View) Create(ctx context.Context, text string) error {
	if !CanCreate(text) {
		return nil
	}
	t, err := v.store.Create(ctx, text, false)
	v.ApplyCreate(t, err)
	return err
}

func (v *View) ApplyCreate(t Todo, err error) {
	if err != nil {
		v.logger.Error("failed to add todo", "err", err)
		return
	}
	items := make([]Todo, 0, len(v.state.Items)+1)
	items = append(items, v.state.Items...)
	v.state.Items = append(items, t)
	v.state.Draft = ""
	v.logger.Debug("added todo", "id", t.ID)
}

// Update sends a partial update for id and stores the server's copy.
func (v *View) Update(ctx context.Context, id string, p Patch) error {
	t, err := v.store.Update(ctx, id, p)
	v.ApplyUpdate(id, t, err)
	return err
}

// Toggle flips the completed flag of a cached record.
func (v *View) Toggle(ctx context.Context, id string) error {
	p, ok := v.TogglePatch(id)
	if !ok {
		v.logger.Error("failed to update todo", "id", id, "err", ErrNotFound)
		return ErrNotFound
	}
	return v.Update(ctx, id, p)
}

// TogglePatch builds the patch that flips id's completed flag.
func (v *View) TogglePatch(id string) (Patch, bool) {
	t, ok := v.Find(id)
	if !ok {
		return Patch{}, false
	}
	return CompletedPatch(!t.Completed), true
}

func (v *View) ApplyUpdate(id string, t Todo, err error) {
	if err != nil {
		v.logger.Error("failed to update todo", "id", id, "err", err)
		return
	}
	items := slices.Clone(v.state.Items)
	for i := range items {
		if items[i].ID == id {
			items[i] = t
		}
	}
	v.state.Items = items
	v.state.EditingID = ""
	v.logger.Debug("updated todo", "id", id)
}

func (v *View) Delete(ctx context.Context, id string) error {
	err := v.store.Delete(ctx, id)
	v.ApplyDelete(id, err)
	return err
}

func (v *View) ApplyDelete(id string, err error) {
	if err != nil {
		v.logger.Error("failed to delete todo", "id", id, "err", err)
		return
	}
	items := make([]Todo, 0, len(v.state.Items))
	for _, t := range v.state.Items {
		if t.ID != id {
			items = append(items, t)
		}
	}
	v.state.Items = items
	if v.state.EditingID == id {
		v.state.EditingID = ""
	}
	v.logger.Debug("deleted todo", "id", id)
}

func (v *View) indexOf(id string) int {
	return slices.IndexFunc(v.state.Items, func(t Todo) bool { return t.ID == id })
}
