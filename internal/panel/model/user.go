package model

// User is the minimal account record: a bearer token and an admin flag.
// Session handling and password auth live outside this service.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Token string `json:"token"`
	Admin bool   `json:"admin"`
}

// UserKey is the storage key for a user record.
func UserKey(id string) string { return "user_" + id }

// UserTokenKey indexes a bearer token back to its user id.
func UserTokenKey(token string) string { return "token_" + token }

// CanAccess reports whether the user may operate on an instance.
func (u *User) CanAccess(in *Instance) bool {
	return u.Admin || u.ID == in.User
}
