package user

import "time"

// User is the local projection of an externally-managed identity.
// Account issuance and credentials live outside this service; the engine
// only needs existence and display data.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
