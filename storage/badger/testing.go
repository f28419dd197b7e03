package badger

// Repositories groups the three badger repositories that share one backend.
type Repositories struct {
	Vectors *VectorRepository
	Records *RecordRepository
	Meta    *MetaRepository
	Backend *Backend
}

// NewRepositories wraps an open backend.
func NewRepositories(backend *Backend) *Repositories {
	return &Repositories{
		Vectors: NewVectorRepository(backend),
		Records: NewRecordRepository(backend),
		Meta:    NewMetaRepository(backend),
		Backend: backend,
	}
}

// Close closes the shared backend.
func (r *Repositories) Close() error {
	return r.Backend.Close()
}

// NewMemoryRepositories creates in-memory repositories for testing.
// Caller must close the result when done.
func NewMemoryRepositories() (*Repositories, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}
	return NewRepositories(backend), nil
}
