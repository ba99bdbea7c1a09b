package validation

// Payloads use pointers so a missing field can be told apart from an empty
// one.

// SignupInput is the body of POST /v1/user
type SignupInput struct {
	DisplayName          *string `json:"displayname"`
	Email                *string `json:"email"`
	Password             *string `json:"password"`
	PasswordConfirmation *string `json:"password_confirmation"`
}

// LoginInput is the body of POST /v1/user/login
type LoginInput struct {
	Email      *string `json:"email"`
	Password   *string `json:"password"`
	RememberMe *bool   `json:"remember_me"`
}

// UserUpdateInput is the body of PUT /v1/user/{id}. A nil Roles means the
// field was absent; a non-nil empty slice is an explicit empty list.
type UserUpdateInput struct {
	DisplayName          *string  `json:"displayname"`
	Email                *string  `json:"email"`
	Password             *string  `json:"password"`
	PasswordConfirmation *string  `json:"password_confirmation"`
	Enabled              *bool    `json:"enabled"`
	Roles                *[]int64 `json:"roles"`
}

// TagInput is the body of POST and PUT /v1/tags
type TagInput struct {
	Title *string `json:"title"`
	Color *string `json:"color"`
}

// PostInput is the body of POST and PUT /v1/posts
type PostInput struct {
	Title *string `json:"title"`
	Body  *string `json:"body"`
	Tags  []int64 `json:"tags"`
}

// CommentInput is the body of POST and PUT /v1/comments. PostID is only
// read on create.
type CommentInput struct {
	Body   *string `json:"body"`
	PostID *int64  `json:"post_id"`
}
