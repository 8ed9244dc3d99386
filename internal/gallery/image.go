package gallery

import "time"

// Image is a gallery entry; the bytes live elsewhere, only the URL
// reference is stored.
type Image struct {
	ID        int       `json:"id"`
	UserID    int       `json:"userId"`
	URL       string    `json:"imageUrl"`
	CreatedAt time.Time `json:"createdAt"`
}
