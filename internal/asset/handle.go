package asset

// Handle identifies a decoded asset inside a Store. Handles are internal and
// never leave the simulation; callers see dock ids instead.
type Handle uint32
