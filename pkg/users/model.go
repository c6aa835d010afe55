package users

type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Input is the body of create and update requests.
type Input struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Page is one slice of the user collection as returned by the backend.
type Page struct {
	Data       []User `json:"data"`
	TotalPages int    `json:"totalPages"`
}
