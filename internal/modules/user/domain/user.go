package domain

import "time"

// User is a Telegram account that has issued bot commands
type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	LastCommand string    `json:"last_command"`
	Commands    int       `json:"commands"`
	Authorized  bool      `json:"authorized"`
}
