package user

import "time"

// User is a registered clinician. Email is the natural key; registering
// the same email again updates the profile in place.
type User struct {
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	ProfessionID string    `json:"professionId"`
	Language     string    `json:"language"`
	RegisteredAt time.Time `json:"registeredAt"`
}
