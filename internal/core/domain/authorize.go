package domain

// Authorize allows the operation only when the identity's role equals
// requiredRole. Roles are flat: admin does not satisfy a user requirement.
func Authorize(identity Identity, requiredRole string) error {
	if identity.Role == "" || identity.Role != requiredRole {
		return ErrForbidden
	}
	return nil
}

// AuthorizeAny allows the operation when Authorize succeeds for at least one
// of the explicitly listed roles.
func AuthorizeAny(identity Identity, roles ...string) error {
	for _, r := range roles {
		if Authorize(identity, r) == nil {
			return nil
		}
	}
	return ErrForbidden
}
