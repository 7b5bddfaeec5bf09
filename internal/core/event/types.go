package event

// PickRequested is emitted when a pick query region opens. The picker
// resolves the region when the event is dispatched on the following tick.
type PickRequested struct {
	Region  uint32
	Command uint32
}
