package ports

// PasswordHasher is the injected password hashing capability. The work
// factor is a construction-time concern of the implementation.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}
