package domain

// User represents an authenticated admin.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
