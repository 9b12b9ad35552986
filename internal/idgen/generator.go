package idgen

// Generator mints and checks identifiers of one format.
type Generator interface {
	Generate() (string, error)
	Validate(id string) (bool, string) // (valid, reason)
}
