package gh

// User is the minimal directory listing record.
type User struct {
	Login string `json:"login"`
	ID    int64  `json:"id"`
	URL   string `json:"url"`
}

// UserDetail is the profile record behind a listing entry. Error payloads from
// the API carry a message field instead of profile fields.
type UserDetail struct {
	Login    string `json:"login"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Email    string `json:"email"`
	Message  string `json:"message"`
}

// Repo is a repository owned by a user.
type Repo struct {
	Name string `json:"name"`
}

// Commit mirrors the shape consumed from the commits listing: the author
// identity nested under commit, the signature verification at the top level.
type Commit struct {
	Commit struct {
		Author struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"author"`
	} `json:"commit"`
	Verification *Verification `json:"verification"`
}

// Verification carries the signed payload of a cryptographically verified commit.
type Verification struct {
	Verified bool   `json:"verified"`
	Payload  string `json:"payload"`
}
