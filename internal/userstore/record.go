package userstore

// User is the decoded, caller-facing view of a stored user record. The
// password hash never appears here — see UserAndPassword.
type User struct {
	Username string
	Roles    []string
	FullName string
	Email    string
	Metadata map[string]any
}

// UserAndPassword is the in-memory pair used internally for verification.
// It is never handed to listeners or returned from the public read path.
type UserAndPassword struct {
	User         User
	PasswordHash string
}

// PutRequest is the input to Put. PasswordHash is expected to already be
// produced by the hasher (see internal/infrastructure/hasher) — the store
// itself never hashes plaintext.
type PutRequest struct {
	Username     string `validate:"required"`
	PasswordHash string `validate:"required"`
	Roles        []string
	FullName     string
	Email        string `validate:"omitempty,email"`
	Metadata     map[string]any
}
