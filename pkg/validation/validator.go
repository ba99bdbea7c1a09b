package validation

import (
	"context"
	"fmt"
)

// Lookup answers the questions business rules ask of storage. exceptID
// excludes the record being updated; pass 0 on create.
type Lookup interface {
	DisplayNameTaken(ctx context.Context, name string, exceptID int64) (bool, error)
	EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error)
	TagTitleTaken(ctx context.Context, title string, exceptID int64) (bool, error)
	MissingTagIDs(ctx context.Context, ids []int64) ([]int64, error)
	MissingRoleIDs(ctx context.Context, ids []int64) ([]int64, error)
	PostExists(ctx context.Context, id int64) (bool, error)
}

// Validator runs both validation phases. Each method returns nil, an Errors
// value, or a lookup failure.
type Validator struct {
	lookup Lookup
}

// NewValidator creates a validator backed by lookup
func NewValidator(lookup Lookup) *Validator {
	return &Validator{lookup: lookup}
}

// Signup validates a new account
func (v *Validator) Signup(ctx context.Context, in SignupInput) error {
	errs := Errors{}

	nameOK := requiredString(errs, "displayname", in.DisplayName) &&
		checkLength(errs, "displayname", *in.DisplayName, DisplayNameMin, DisplayNameMax)
	emailOK := requiredString(errs, "email", in.Email) &&
		checkEmail(errs, "email", *in.Email)
	if requiredString(errs, "password", in.Password) {
		checkPassword(errs, *in.Password, in.PasswordConfirmation)
	}

	if nameOK {
		if err := v.unique(ctx, errs, "displayname", *in.DisplayName, 0, v.lookup.DisplayNameTaken); err != nil {
			return err
		}
	}
	if emailOK {
		if err := v.unique(ctx, errs, "email", *in.Email, 0, v.lookup.EmailTaken); err != nil {
			return err
		}
	}

	return errs.Err()
}

// Login validates credentials shape only
func (v *Validator) Login(ctx context.Context, in LoginInput) error {
	errs := Errors{}
	if requiredString(errs, "email", in.Email) {
		checkEmail(errs, "email", *in.Email)
	}
	requiredString(errs, "password", in.Password)
	return errs.Err()
}

// UserUpdate validates a profile update of subj.TargetID. Roles are checked
// for existence even when the actor may not change them.
func (v *Validator) UserUpdate(ctx context.Context, in UserUpdateInput, subj UpdateSubject, facts AdminFacts) error {
	errs := Errors{}

	nameOK := in.DisplayName != nil &&
		checkLength(errs, "displayname", *in.DisplayName, DisplayNameMin, DisplayNameMax)
	emailOK := in.Email != nil && checkEmail(errs, "email", *in.Email)
	if in.Password != nil {
		checkPassword(errs, *in.Password, in.PasswordConfirmation)
	}

	if nameOK {
		if err := v.unique(ctx, errs, "displayname", *in.DisplayName, subj.TargetID, v.lookup.DisplayNameTaken); err != nil {
			return err
		}
	}
	if emailOK {
		if err := v.unique(ctx, errs, "email", *in.Email, subj.TargetID, v.lookup.EmailTaken); err != nil {
			return err
		}
	}
	if in.Roles != nil && len(*in.Roles) > 0 {
		missing, err := v.lookup.MissingRoleIDs(ctx, *in.Roles)
		if err != nil {
			return fmt.Errorf("failed to check roles: %w", err)
		}
		if len(missing) > 0 {
			errs.Add("roles", msgSelectedInvalid("roles"))
		}
	}

	errs.Merge(SoleAdminRules(facts, subj, in))

	return errs.Err()
}

// TagCreate validates a new tag
func (v *Validator) TagCreate(ctx context.Context, in TagInput) error {
	return v.tag(ctx, in, 0, true)
}

// TagUpdate validates a partial tag update
func (v *Validator) TagUpdate(ctx context.Context, tagID int64, in TagInput) error {
	return v.tag(ctx, in, tagID, false)
}

func (v *Validator) tag(ctx context.Context, in TagInput, tagID int64, create bool) error {
	errs := Errors{}

	var titleOK bool
	switch {
	case create:
		titleOK = requiredString(errs, "title", in.Title) &&
			checkLength(errs, "title", *in.Title, TagTitleMin, TagTitleMax)
	case in.Title != nil:
		titleOK = checkLength(errs, "title", *in.Title, TagTitleMin, TagTitleMax)
	}

	if create {
		if requiredString(errs, "color", in.Color) && !ValidColor(*in.Color) {
			errs.Add("color", msgFormat("color"))
		}
	} else if in.Color != nil && !ValidColor(*in.Color) {
		errs.Add("color", msgFormat("color"))
	}

	if titleOK {
		if err := v.unique(ctx, errs, "title", *in.Title, tagID, v.lookup.TagTitleTaken); err != nil {
			return err
		}
	}

	return errs.Err()
}

// Post validates a post for create or full replace
func (v *Validator) Post(ctx context.Context, in PostInput) error {
	errs := Errors{}

	if requiredString(errs, "title", in.Title) {
		checkLength(errs, "title", *in.Title, PostTitleMin, PostTitleMax)
	}
	requiredString(errs, "body", in.Body)

	if len(in.Tags) > 0 {
		missing, err := v.lookup.MissingTagIDs(ctx, in.Tags)
		if err != nil {
			return fmt.Errorf("failed to check tags: %w", err)
		}
		if len(missing) > 0 {
			errs.Add("tags", msgSelectedInvalid("tags"))
		}
	}

	return errs.Err()
}

// CommentCreate validates a new comment and the post it belongs to
func (v *Validator) CommentCreate(ctx context.Context, in CommentInput) error {
	errs := commentBody(in.Body)

	if in.PostID == nil {
		errs.Add("post_id", msgRequired("post_id"))
	} else {
		exists, err := v.lookup.PostExists(ctx, *in.PostID)
		if err != nil {
			return fmt.Errorf("failed to check post: %w", err)
		}
		if !exists {
			errs.Add("post_id", msgSelectedInvalid("post_id"))
		}
	}

	return errs.Err()
}

// CommentUpdate validates a comment body change
func (v *Validator) CommentUpdate(ctx context.Context, in CommentInput) error {
	return commentBody(in.Body).Err()
}

func commentBody(body *string) Errors {
	errs := Errors{}
	if requiredString(errs, "body", body) &&
		checkLength(errs, "body", *body, CommentMin, 0) &&
		StrippedByteLength(*body) > CommentMaxText {
		errs.Add("body", msgStripped(CommentMaxText))
	}
	return errs
}

func requiredString(errs Errors, field string, value *string) bool {
	if blank(value) {
		errs.Add(field, msgRequired(field))
		return false
	}
	return true
}

type takenFunc func(ctx context.Context, value string, exceptID int64) (bool, error)

func (v *Validator) unique(ctx context.Context, errs Errors, field, value string, exceptID int64, taken takenFunc) error {
	isTaken, err := taken(ctx, value, exceptID)
	if err != nil {
		return fmt.Errorf("failed to check %s uniqueness: %w", field, err)
	}
	if isTaken {
		errs.Add(field, msgTaken(field))
	}
	return nil
}
