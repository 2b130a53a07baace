package service

// Principal is the authenticated caller of an operation, as established by
// the auth middleware from a validated token.
type Principal struct {
	ID       string
	Username string
	IsAdmin  bool
}
