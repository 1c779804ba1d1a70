package domain

// Roles are free-form tags; these are the ones the API checks for.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
