package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/engine/auth"
)

func TestOwnerIsImmutable(t *testing.T) {
	ctx := context.Background()
	store, a := newFixture(auth.DefaultPolicy())
	store.grant(t, "o1", project, auth.Owner)
	store.grant(t, "o2", project, auth.Owner)

	for _, actor := range []string{"o1", "o2"} {
		if _, err := a.CheckDemote(ctx, actor, "o1", project); !errors.Is(err, auth.ErrInvalidTransition) {
			t.Fatalf("%s demote owner: expected invalid transition, got %v", actor, err)
		}
		if _, err := a.CheckRemove(ctx, actor, "o1", project); !auth.HasCode(err, auth.CodeOwnerImmutable) {
			t.Fatalf("%s remove owner: expected owner_immutable, got %v", actor, err)
		}
		if _, err := a.CheckPromote(ctx, actor, "o1", project); !errors.Is(err, auth.ErrConflict) {
			t.Fatalf("%s promote owner: expected conflict, got %v", actor, err)
		}
	}
}

func TestPromoteDemoteTransitions(t *testing.T) {
	ctx := context.Background()
	store, a := newFixture(auth.DefaultPolicy())
	store.grant(t, "own", project, auth.Owner)
	store.grant(t, "x", project, auth.Admin)
	store.grant(t, "y", project, auth.Admin)
	store.grant(t, "m", project, auth.Member)

	if _, err := a.CheckDemote(ctx, "x", "y", project); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("admin demoting admin must be forbidden, got %v", err)
	}
	role, err := a.CheckDemote(ctx, "own", "y", project)
	if err != nil || role.Name != auth.Member {
		t.Fatalf("owner demote admin: %v %v", role, err)
	}
	if _, err := a.CheckDemote(ctx, "own", "m", project); !auth.HasCode(err, auth.CodeAlreadyMember) {
		t.Fatalf("demote member: expected already_member, got %v", err)
	}
	if _, err := a.CheckPromote(ctx, "x", "m", project); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("admin promoting member must be forbidden, got %v", err)
	}
	role, err = a.CheckPromote(ctx, "own", "m", project)
	if err != nil || role.Name != auth.Admin {
		t.Fatalf("owner promote member: %v %v", role, err)
	}
	if _, err := a.CheckPromote(ctx, "own", "x", project); !auth.HasCode(err, auth.CodeAlreadyAdmin) {
		t.Fatalf("promote admin: expected already_admin, got %v", err)
	}
	if _, err := a.CheckPromote(ctx, "own", "ghost", project); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("promote non-member: expected not found, got %v", err)
	}
	if _, err := a.CheckPromote(ctx, "own", "m", task); !errors.Is(err, auth.ErrValidation) {
		t.Fatalf("promote on task: expected validation, got %v", err)
	}
}

func TestInviteScenario(t *testing.T) {
	ctx := context.Background()
	store, a := newFixture(auth.DefaultPolicy())
	store.grant(t, "A", team, auth.Owner)
	store.grant(t, "B", team, auth.Member)
	store.grant(t, "C", team, auth.Admin)

	if _, err := a.CheckInvite(ctx, "B", "D", team, ""); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("member invite: expected forbidden, got %v", err)
	}
	role, err := a.CheckInvite(ctx, "C", "D", team, auth.Member)
	if err != nil || role.Name != auth.Member {
		t.Fatalf("admin invite: %v %v", role, err)
	}
	if _, err := a.CheckInvite(ctx, "C", "D", team, auth.Admin); !auth.HasCode(err, auth.CodeAdminGrantRequiresOwner) {
		t.Fatalf("admin granting admin: got %v", err)
	}
	if _, err := a.CheckInvite(ctx, "A", "D", team, auth.Owner); !auth.HasCode(err, auth.CodeOwnerNotGrantable) {
		t.Fatalf("granting owner: got %v", err)
	}
	if _, err := a.CheckInvite(ctx, "A", "B", team, ""); !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("existing member: expected conflict, got %v", err)
	}
	if _, err := a.CheckInvite(ctx, "A", "D", team, "boss"); !errors.Is(err, auth.ErrValidation) {
		t.Fatalf("bad role: expected validation, got %v", err)
	}
}

func TestProjectInviteTeamPolicy(t *testing.T) {
	ctx := context.Background()
	store, strict := newFixture(auth.DefaultPolicy())
	store.grant(t, "po", project, auth.Owner)
	if _, err := strict.CheckInvite(ctx, "po", "outsider", project, ""); !auth.HasCode(err, auth.CodeInviteeNotInTeam) {
		t.Fatalf("expected invitee_not_in_team, got %v", err)
	}
	store.grant(t, "insider", team, auth.Member)
	if _, err := strict.CheckInvite(ctx, "po", "insider", project, ""); err != nil {
		t.Fatalf("team member invite: %v", err)
	}

	store, loose := newFixture(auth.Policy{ProjectInviteRequiresTeam: false})
	store.grant(t, "po", project, auth.Owner)
	if _, err := loose.CheckInvite(ctx, "po", "outsider", project, ""); err != nil {
		t.Fatalf("relaxed policy should allow: %v", err)
	}
}

func TestAcceptInvitationRequiresTeam(t *testing.T) {
	ctx := context.Background()
	store, strict := newFixture(auth.DefaultPolicy())
	if err := strict.CheckAcceptInvitation(ctx, "left", project); !errors.Is(err, auth.ErrInvalidTransition) || !auth.HasCode(err, auth.CodeInviteeNotInTeam) {
		t.Fatalf("expected invitee_not_in_team, got %v", err)
	}
	if err := strict.CheckAcceptInvitation(ctx, "left", team); err != nil {
		t.Fatalf("team invitations need no team check: %v", err)
	}
	store.grant(t, "left", team, auth.Member)
	if err := strict.CheckAcceptInvitation(ctx, "left", project); err != nil {
		t.Fatalf("team member accept: %v", err)
	}

	_, loose := newFixture(auth.Policy{ProjectInviteRequiresTeam: false})
	if err := loose.CheckAcceptInvitation(ctx, "left", project); err != nil {
		t.Fatalf("relaxed policy should allow: %v", err)
	}
}

func TestAssignTask(t *testing.T) {
	ctx := context.Background()
	store, a := newFixture(auth.DefaultPolicy())
	store.grant(t, "pa", project, auth.Admin)
	store.grant(t, "pm", project, auth.Member)
	store.grant(t, "as", task, auth.Assignee)
	store.grant(t, "as", project, auth.Member)

	if _, err := a.CheckAssignTask(ctx, "pm", "pa", task, ""); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("member assign: expected forbidden, got %v", err)
	}
	if _, err := a.CheckAssignTask(ctx, "pa", "outsider", task, ""); !auth.HasCode(err, auth.CodeAssigneeNotInProject) {
		t.Fatalf("outsider assign: got %v", err)
	}
	if _, err := a.CheckAssignTask(ctx, "pa", "as", task, auth.Reviewer); !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("duplicate assign: expected conflict, got %v", err)
	}
	if _, err := a.CheckAssignTask(ctx, "pa", "pm", task, "owner"); !errors.Is(err, auth.ErrValidation) {
		t.Fatalf("bad task role: expected validation, got %v", err)
	}
	role, err := a.CheckAssignTask(ctx, "pa", "pm", task, "")
	if err != nil || role != (auth.Role{Scope: auth.ScopeTask, Name: auth.Assignee}) {
		t.Fatalf("assign: %v %v", role, err)
	}
}

func TestRemoveTaskOwnerSelfAndLastAssignee(t *testing.T) {
	ctx := context.Background()
	store, a := newFixture(auth.DefaultPolicy())
	store.grant(t, "A", project, auth.Owner)
	store.grant(t, "A", task, auth.Assignee)

	_, err := a.CheckRemoveTask(ctx, "A", "A", task)
	if !auth.HasCode(err, auth.CodeOwnerSelfRemoval) || !auth.HasCode(err, auth.CodeLastAssignee) {
		t.Fatalf("expected both violations, got %v", err)
	}
	if !errors.Is(err, auth.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestRemoveTaskAssigneeCount(t *testing.T) {
	ctx := context.Background()
	store, a := newFixture(auth.DefaultPolicy())
	store.grant(t, "pa", project, auth.Admin)
	store.grant(t, "u1", project, auth.Member)
	store.grant(t, "u2", project, auth.Member)
	store.grant(t, "u1", task, auth.Assignee)
	store.grant(t, "u2", task, auth.Watcher)

	if _, err := a.CheckRemoveTask(ctx, "pa", "u1", task); !auth.HasCode(err, auth.CodeLastAssignee) {
		t.Fatalf("sole assignee: got %v", err)
	}
	if _, err := a.CheckRemoveTask(ctx, "pa", "u2", task); err != nil {
		t.Fatalf("watcher removal: %v", err)
	}
	store.grant(t, "u2", task, auth.Assignee)
	role, err := a.CheckRemoveTask(ctx, "pa", "u1", task)
	if err != nil || role.Name != auth.Assignee {
		t.Fatalf("one of two assignees: %v %v", role, err)
	}
	if _, err := a.CheckRemoveTask(ctx, "pa", "ghost", task); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("non-member: expected not found, got %v", err)
	}
}

func TestRemoveTaskPrivilegedMembers(t *testing.T) {
	ctx := context.Background()
	store, a := newFixture(auth.DefaultPolicy())
	store.grant(t, "po", project, auth.Owner)
	store.grant(t, "pa", project, auth.Admin)
	store.grant(t, "pb", project, auth.Admin)
	store.grant(t, "pm", project, auth.Member)
	for _, p := range []string{"po", "pa", "pb", "pm"} {
		store.grant(t, p, task, auth.Assignee)
	}

	if _, err := a.CheckRemoveTask(ctx, "pa", "pb", task); !auth.HasCode(err, auth.CodePrivilegedTaskMember) {
		t.Fatalf("admin removing admin: got %v", err)
	}
	if _, err := a.CheckRemoveTask(ctx, "pa", "po", task); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("admin removing owner: got %v", err)
	}
	if _, err := a.CheckRemoveTask(ctx, "pa", "pa", task); err != nil {
		t.Fatalf("admin removing self: %v", err)
	}
	if _, err := a.CheckRemoveTask(ctx, "po", "pb", task); err != nil {
		t.Fatalf("owner removing admin: %v", err)
	}
	if _, err := a.CheckRemoveTask(ctx, "pm", "pm", task); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("plain member removing self: got %v", err)
	}
}
