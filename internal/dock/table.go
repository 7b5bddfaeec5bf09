package dock

import "fmt"

// Table maps caller-visible ids to internal handles. Not synchronized; the
// Dock guards its tables with its own lock.
type Table[H comparable] struct {
	name string
	byID map[uint32]H
}

func NewTable[H comparable](name string) *Table[H] {
	return &Table[H]{name: name, byID: make(map[uint32]H, 64)}
}

// Insert maps id to h. Inserting id 0 or an id already present is an error.
func (t *Table[H]) Insert(id uint32, h H) error {
	if id == 0 {
		return fmt.Errorf("%s insert: %w", t.name, ErrInvalidID)
	}
	if _, ok := t.byID[id]; ok {
		return fmt.Errorf("%s insert %d: %w", t.name, id, ErrDuplicate)
	}
	t.byID[id] = h
	return nil
}

// Remove deletes id and returns the handle it mapped to.
func (t *Table[H]) Remove(id uint32) (H, error) {
	h, err := t.Lookup(id)
	if err != nil {
		return h, err
	}
	delete(t.byID, id)
	return h, nil
}

func (t *Table[H]) Lookup(id uint32) (H, error) {
	var zero H
	if id == 0 {
		return zero, fmt.Errorf("%s lookup: %w", t.name, ErrInvalidID)
	}
	h, ok := t.byID[id]
	if !ok {
		return zero, fmt.Errorf("%s %d: %w", t.name, id, ErrNotFound)
	}
	return h, nil
}

func (t *Table[H]) Has(id uint32) bool {
	_, ok := t.byID[id]
	return id != 0 && ok
}

func (t *Table[H]) Len() int { return len(t.byID) }

// BiTable is a Table that can also be looked up by handle. Both directions
// are always written and deleted together.
type BiTable[H comparable] struct {
	Table[H]
	byHandle map[H]uint32
}

func NewBiTable[H comparable](name string) *BiTable[H] {
	return &BiTable[H]{
		Table:    Table[H]{name: name, byID: make(map[uint32]H, 256)},
		byHandle: make(map[H]uint32, 256),
	}
}

func (t *BiTable[H]) Insert(id uint32, h H) error {
	if _, ok := t.byHandle[h]; ok {
		return fmt.Errorf("%s insert handle %v: %w", t.name, h, ErrDuplicate)
	}
	if err := t.Table.Insert(id, h); err != nil {
		return err
	}
	t.byHandle[h] = id
	return nil
}

func (t *BiTable[H]) Remove(id uint32) (H, error) {
	h, err := t.Table.Remove(id)
	if err != nil {
		return h, err
	}
	delete(t.byHandle, h)
	return h, nil
}

func (t *BiTable[H]) LookupHandle(h H) (uint32, error) {
	id, ok := t.byHandle[h]
	if !ok {
		return 0, fmt.Errorf("%s handle %v: %w", t.name, h, ErrNotFound)
	}
	return id, nil
}
