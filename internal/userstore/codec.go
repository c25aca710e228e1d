package userstore

import "fmt"

// decodeRecord decodes a document source map into a UserAndPassword.
// passwordHash and roles are required; any other field's absence or wrong
// shape is tolerated and left at its zero value. Per §4.6, any failure here
// is meant to be skip-and-log at the call site, never surfaced to callers.
func decodeRecord(username string, source map[string]any) (*UserAndPassword, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: empty source for %q", ErrDecodeFailed, username)
	}

	hashRaw, ok := source["passwordHash"]
	if !ok {
		return nil, fmt.Errorf("%w: %q missing passwordHash", ErrDecodeFailed, username)
	}
	hash, ok := hashRaw.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %q passwordHash is not a string", ErrDecodeFailed, username)
	}

	rolesRaw, ok := source["roles"]
	if !ok {
		return nil, fmt.Errorf("%w: %q missing roles", ErrDecodeFailed, username)
	}
	roles, err := decodeRoles(rolesRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q %v", ErrDecodeFailed, username, err)
	}

	user := User{Username: username, Roles: roles}
	if v, ok := source["fullName"].(string); ok {
		user.FullName = v
	}
	if v, ok := source["email"].(string); ok {
		user.Email = v
	}
	if m, ok := source["metadata"].(map[string]any); ok {
		user.Metadata = m
	}

	return &UserAndPassword{User: user, PasswordHash: hash}, nil
}

// decodeRoles accepts either []string (already-typed, as a source map built
// in process may carry) or []any (as produced by a JSON-decoded source map,
// which is what the sqlite and postgres backends hand back).
func decodeRoles(raw any) ([]string, error) {
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []any:
		roles := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("roles entry is not a string")
			}
			roles = append(roles, s)
		}
		return roles, nil
	default:
		return nil, fmt.Errorf("roles is not a sequence")
	}
}

// encodeRecord writes every field, including absent optional fields as
// explicit nulls, so that decode(encode(r)) round-trips.
func encodeRecord(rec *UserAndPassword) map[string]any {
	roles := make([]any, len(rec.User.Roles))
	for i, r := range rec.User.Roles {
		roles[i] = r
	}

	return map[string]any{
		"passwordHash": rec.PasswordHash,
		"roles":        roles,
		"fullName":     nullableString(rec.User.FullName),
		"email":        nullableString(rec.User.Email),
		"metadata":     rec.User.Metadata,
	}
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
