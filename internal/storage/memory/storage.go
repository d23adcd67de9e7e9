package memory

// Storage bundles the in-memory repositories behind the same composite
// interface as the Postgres implementation.
type Storage struct {
	*InMemoryPrincipalManager
	*InMemoryRecordManager
}

func NewStorage() *Storage {
	return &Storage{
		InMemoryPrincipalManager: NewPrincipalRepository(),
		InMemoryRecordManager:    NewRecordRepository(),
	}
}
