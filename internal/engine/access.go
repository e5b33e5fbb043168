package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/domain"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/engine/auth"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/repo"
)

// Authorize answers whether actorID may perform action on res without performing it.
func (e Engine) Authorize(ctx context.Context, actorID string, action auth.Action, res auth.Resource) (auth.Decision, error) {
	if err := e.requireResource(ctx, nil, res); err != nil {
		return auth.Decision{}, err
	}
	d, err := e.Authorizer().Decide(ctx, actorID, action, res)
	if err == nil && !d.Allowed {
		e.log().Debug("authorize denied", zap.String("actor", actorID), zap.String("action", string(action)),
			zap.String("resource", res.String()), zap.String("code", d.Reason.Code))
	}
	return d, err
}

// Access summarizes the actor's role on res and every action it may take there.
func (e Engine) Access(ctx context.Context, actorID string, res auth.Resource) (domain.AccessSummary, error) {
	if err := e.requireResource(ctx, nil, res); err != nil {
		return domain.AccessSummary{}, err
	}
	az := e.Authorizer()
	out := domain.AccessSummary{
		PrincipalID:  actorID,
		ResourceKind: string(res.Kind),
		ResourceID:   res.ID,
		Actions:      []string{},
	}
	role, ok, err := az.RoleOf(ctx, actorID, res)
	if err != nil {
		return out, err
	}
	if ok {
		out.Role = role.Name
	}
	if out.CanView, err = az.CanView(ctx, actorID, res); err != nil {
		return out, err
	}
	actions, err := az.Allowed(ctx, actorID, res)
	if err != nil {
		return out, err
	}
	for _, a := range actions {
		out.Actions = append(out.Actions, string(a))
	}
	return out, nil
}

// ResourceEvents returns the newest events recorded against res, for actors who can view it.
func (e Engine) ResourceEvents(ctx context.Context, actorID string, res auth.Resource, limit int) ([]domain.Event, error) {
	if err := e.requireResource(ctx, nil, res); err != nil {
		return nil, err
	}
	if err := e.Authorizer().Check(ctx, actorID, viewAction[res.Kind], res); err != nil {
		return nil, err
	}
	return e.Repo.LatestEvents(ctx, limit, repo.EventFilters{ResourceKind: string(res.Kind), ResourceID: res.ID})
}
