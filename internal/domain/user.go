package domain

// User is an account known to the provisioning backend.
type User struct {
	ID        int    `json:"user_id" db:"id" yaml:"id"`
	FirstName string `json:"first_name" db:"first_name" yaml:"first_name"`
	LastName  string `json:"last_name" db:"last_name" yaml:"last_name"`
	Email     string `json:"email" db:"email" yaml:"email"`
	Username  string `json:"username" db:"username" yaml:"username"`
	IsAdmin   bool   `json:"is_admin" db:"is_admin" yaml:"is_admin"`
	Status    string `json:"status" db:"status" yaml:"status"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
