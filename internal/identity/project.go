package identity

// Project converts a user record into its canonical identity descriptor.
// With no linked accounts the user is a local account and the internal id
// doubles as the external identifier; otherwise the first linked account
// (the signup account) supplies both the identifier and the auth method.
func Project(user User) Descriptor {
	if len(user.LinkedAccounts) == 0 {
		return Descriptor{
			ID:          user.InternalID,
			DisplayName: user.DisplayName,
			AuthMethod:  AuthMethodLocal,
		}
	}

	primary := user.LinkedAccounts[0]
	return Descriptor{
		ID:          primary.ProviderAccountID,
		DisplayName: user.DisplayName,
		AuthMethod:  primary.Provider,
	}
}
