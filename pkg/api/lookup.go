package api

import (
	"context"

	"github.com/platinummonkey/scribe/pkg/content"
	"github.com/platinummonkey/scribe/pkg/rbac"
	"github.com/platinummonkey/scribe/pkg/users"
	"github.com/platinummonkey/scribe/pkg/validation"
)

// storeLookup answers validation's business-rule queries from the stores
type storeLookup struct {
	users   *users.Store
	content *content.Store
	roles   *rbac.Store
}

var _ validation.Lookup = (*storeLookup)(nil)

func (l *storeLookup) DisplayNameTaken(ctx context.Context, name string, exceptID int64) (bool, error) {
	return l.users.DisplayNameTaken(ctx, name, exceptID)
}

func (l *storeLookup) EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error) {
	return l.users.EmailTaken(ctx, email, exceptID)
}

func (l *storeLookup) TagTitleTaken(ctx context.Context, title string, exceptID int64) (bool, error) {
	return l.content.TagTitleTaken(ctx, title, exceptID)
}

func (l *storeLookup) MissingTagIDs(ctx context.Context, ids []int64) ([]int64, error) {
	return l.content.MissingTagIDs(ctx, ids)
}

func (l *storeLookup) MissingRoleIDs(ctx context.Context, ids []int64) ([]int64, error) {
	return l.roles.MissingRoleIDs(ctx, ids)
}

func (l *storeLookup) PostExists(ctx context.Context, id int64) (bool, error) {
	return l.content.PostExists(ctx, id)
}
