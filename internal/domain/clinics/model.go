package clinics

import "time"

type Clinic struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Hospital     string

	CreatedAt time.Time
	UpdatedAt time.Time
}
