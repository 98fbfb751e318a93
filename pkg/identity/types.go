package identity

// CreateUserRequest is the admin create-user payload.
type CreateUserRequest struct {
	Email        string       `json:"email"`
	Password     string       `json:"password"`
	EmailConfirm bool         `json:"email_confirm"`
	UserMetadata UserMetadata `json:"user_metadata"`
}

// UserMetadata is free-form profile data stored with the identity user.
type UserMetadata struct {
	FullName  string `json:"full_name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// User is an identity provider user.
type User struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	UserMetadata UserMetadata `json:"user_metadata"`
}

// ListUsersResponse is one page of users.
type ListUsersResponse struct {
	Users []User `json:"users"`
	Total int    `json:"total,omitempty"`
}

// errorResponse covers the error shapes the provider returns.
type errorResponse struct {
	Code      interface{} `json:"code"`
	ErrorCode string      `json:"error_code"`
	Msg       string      `json:"msg"`
	Message   string      `json:"message"`
}

func (e errorResponse) text() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.Message
}
