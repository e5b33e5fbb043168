package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/domain"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/engine"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/engine/auth"
)

func actor() string { return viper.GetString("actor-id") }

func principalCmd() *cobra.Command {
	p := &cobra.Command{Use: "principal", Short: "Manage principals and API keys"}
	p.AddCommand(principalAddCmd())
	p.AddCommand(principalListCmd())
	p.AddCommand(principalKeyCmd())
	p.AddCommand(principalKeysCmd())
	p.AddCommand(principalRevokeCmd())
	return p
}

func principalAddCmd() *cobra.Command {
	var opts engine.PrincipalOptions
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a principal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.RegisterPrincipal(ctx, opts)
				if err != nil {
					return err
				}
				return printOne(p, p.ID)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "principal id (default: generated)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email")
	return cmd
}

func principalListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List principals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListPrincipals(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				rows := make([]table.Row, 0, len(items))
				for _, p := range items {
					rows = append(rows, table.Row{p.ID, p.Name, p.Email, p.CreatedAt})
				}
				printTable(table.Row{"ID", "Name", "Email", "Created"}, rows)
				return nil
			})
		},
	}
}

func principalKeyCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "key <principal-id>",
		Short: "Issue an API key for a principal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				plain, key, err := e.CreateAPIKey(ctx, args[0], name)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]string{"id": key.ID, "principal_id": key.PrincipalID, "key": plain})
				}
				fmt.Printf("API key for %s (shown once): %s\n", key.PrincipalID, plain)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func principalKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys <principal-id>",
		Short: "List API keys issued to a principal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				keys, err := e.ListAPIKeys(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				rows := make([]table.Row, 0, len(keys))
				for _, k := range keys {
					rows = append(rows, table.Row{k.ID, k.Name, k.CreatedAt})
				}
				printTable(table.Row{"ID", "Name", "Created"}, rows)
				return nil
			})
		},
	}
}

func principalRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.RevokeAPIKey(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("revoked %s\n", args[0])
				return nil
			})
		},
	}
}

func teamCmd() *cobra.Command {
	t := &cobra.Command{Use: "team", Short: "Manage teams"}
	t.AddCommand(teamCreateCmd())
	t.AddCommand(teamListCmd())
	t.AddCommand(teamShowCmd())
	t.AddCommand(teamUpdateCmd())
	t.AddCommand(teamDeleteCmd())
	t.AddCommand(memberCmds(auth.ScopeTeam)...)
	return t
}

func teamCreateCmd() *cobra.Command {
	var opts engine.TeamCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a team owned by the actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = actor()
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTeam(ctx, opts)
				if err != nil {
					return err
				}
				return printOne(t, t.ID)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "team name")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func teamListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the actor's teams",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListTeams(ctx, actor())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				rows := make([]table.Row, 0, len(items))
				for _, t := range items {
					rows = append(rows, table.Row{t.ID, t.Name, t.CreatedBy})
				}
				printTable(table.Row{"ID", "Name", "Owner"}, rows)
				return nil
			})
		},
	}
}

func teamShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <team-id>",
		Short: "Show a team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.GetTeam(ctx, actor(), args[0])
				if err != nil {
					return err
				}
				return printJSON(t)
			})
		},
	}
}

func teamUpdateCmd() *cobra.Command {
	var name, desc string
	cmd := &cobra.Command{
		Use:   "update <team-id>",
		Short: "Rename or describe a team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.TeamUpdateOptions{
				ActorID:     actor(),
				ID:          args[0],
				Name:        optionalString(cmd, "name", name),
				Description: optionalString(cmd, "description", desc),
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.UpdateTeam(ctx, opts)
				if err != nil {
					return err
				}
				return printOne(t, t.ID)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&desc, "description", "", "new description")
	return cmd
}

func teamDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <team-id>",
		Short: "Delete a team with its projects and tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteTeam(ctx, actor(), args[0]); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
}

func projectCmd() *cobra.Command {
	p := &cobra.Command{Use: "project", Short: "Manage projects"}
	p.AddCommand(projectCreateCmd())
	p.AddCommand(projectListCmd())
	p.AddCommand(projectShowCmd())
	p.AddCommand(projectUpdateCmd())
	p.AddCommand(projectDeleteCmd())
	p.AddCommand(memberCmds(auth.ScopeProject)...)
	return p
}

func projectCreateCmd() *cobra.Command {
	var opts engine.ProjectCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project in a team (team admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = actor()
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreateProject(ctx, opts)
				if err != nil {
					return err
				}
				return printOne(p, p.ID)
			})
		},
	}
	cmd.Flags().StringVar(&opts.TeamID, "team", "", "team id")
	cmd.Flags().StringVar(&opts.Name, "name", "", "project name")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	_ = cmd.MarkFlagRequired("team")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func projectListCmd() *cobra.Command {
	var teamID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a team's projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListProjects(ctx, actor(), teamID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				rows := make([]table.Row, 0, len(items))
				for _, p := range items {
					rows = append(rows, table.Row{p.ID, p.Name, p.CreatedBy})
				}
				printTable(table.Row{"ID", "Name", "Owner"}, rows)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&teamID, "team", "", "team id")
	_ = cmd.MarkFlagRequired("team")
	return cmd
}

func projectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.GetProject(ctx, actor(), args[0])
				if err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	}
}

func projectUpdateCmd() *cobra.Command {
	var name, desc string
	cmd := &cobra.Command{
		Use:   "update <project-id>",
		Short: "Rename or describe a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.ProjectUpdateOptions{
				ActorID:     actor(),
				ID:          args[0],
				Name:        optionalString(cmd, "name", name),
				Description: optionalString(cmd, "description", desc),
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.UpdateProject(ctx, opts)
				if err != nil {
					return err
				}
				return printOne(p, p.ID)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&desc, "description", "", "new description")
	return cmd
}

func projectDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project with its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteProject(ctx, actor(), args[0]); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
}

// memberCmds builds members|invite|promote|demote|remove for teams and projects.
func memberCmds(kind auth.Scope) []*cobra.Command {
	opts := func(id, principal, role string) engine.MemberOptions {
		return engine.MemberOptions{ActorID: actor(), PrincipalID: principal, Resource: auth.Resource{Kind: kind, ID: id}, Role: role}
	}
	idArg := "<" + string(kind) + "-id>"

	members := &cobra.Command{
		Use:   "members " + idArg,
		Short: "List " + string(kind) + " members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return listMembersCmd(cmd, auth.Resource{Kind: kind, ID: args[0]})
		},
	}

	var role string
	invite := &cobra.Command{
		Use:   "invite " + idArg + " <principal-id>",
		Short: "Add a principal to the " + string(kind),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.InviteMember(ctx, opts(args[0], args[1], role))
				if err != nil {
					return err
				}
				return printOne(m, fmt.Sprintf("%s is now %s", m.PrincipalID, m.Role))
			})
		},
	}
	invite.Flags().StringVar(&role, "role", auth.Member, "member or admin")

	change := func(use, short string, fn func(engine.Engine, context.Context, engine.MemberOptions) (domain.Membership, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use + " " + idArg + " <principal-id>",
			Short: short,
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
					m, err := fn(e, ctx, opts(args[0], args[1], ""))
					if err != nil {
						return err
					}
					return printOne(m, fmt.Sprintf("%s is now %s", m.PrincipalID, m.Role))
				})
			},
		}
	}

	remove := &cobra.Command{
		Use:   "remove " + idArg + " <principal-id>",
		Short: "Remove a non-owner member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.RemoveMember(ctx, opts(args[0], args[1], "")); err != nil {
					return err
				}
				fmt.Println("removed", args[1])
				return nil
			})
		},
	}

	return []*cobra.Command{
		members,
		invite,
		change("promote", "Promote a member to admin (owner only)", engine.Engine.PromoteMember),
		change("demote", "Demote an admin to member (owner only)", engine.Engine.DemoteMember),
		remove,
	}
}

func listMembersCmd(cmd *cobra.Command, res auth.Resource) error {
	return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
		items, err := e.ListMembers(ctx, actor(), res)
		if err != nil {
			return err
		}
		if viper.GetBool("json") {
			return printJSON(items)
		}
		rows := make([]table.Row, 0, len(items))
		for _, m := range items {
			rows = append(rows, table.Row{m.PrincipalID, m.Role, m.CreatedAt})
		}
		printTable(table.Row{"Principal", "Role", "Since"}, rows)
		return nil
	})
}

func taskCmd() *cobra.Command {
	t := &cobra.Command{Use: "task", Short: "Manage tasks and sub-tasks"}
	t.AddCommand(taskCreateCmd())
	t.AddCommand(taskListCmd())
	t.AddCommand(taskShowCmd())
	t.AddCommand(taskUpdateCmd())
	t.AddCommand(taskDeleteCmd())
	t.AddCommand(taskAssignCmd())
	t.AddCommand(taskUnassignCmd())
	t.AddCommand(&cobra.Command{
		Use:   "members <task-id>",
		Short: "List task members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return listMembersCmd(cmd, auth.Task(args[0]))
		},
	})
	return t
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task (project admin), or a sub-task with --parent",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (opts.ProjectID == "") == (opts.ParentID == "") {
				return fmt.Errorf("exactly one of --project or --parent is required")
			}
			opts.ActorID = actor()
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printOne(t, t.ID)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ProjectID, "project", "", "project id")
	cmd.Flags().StringVar(&opts.ParentID, "parent", "", "parent task id")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Status, "status", "", "todo, in_progress or done")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "low, medium or high")
	cmd.Flags().StringVar(&opts.DueDate, "due", "", "due date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListCmd() *cobra.Command {
	var projectID, parentID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List visible tasks of a project, or sub-tasks of a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListTasks(ctx, actor(), projectID, parentID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				rows := make([]table.Row, 0, len(items))
				for _, t := range items {
					due := ""
					if t.DueDate != nil {
						due = *t.DueDate
					}
					rows = append(rows, table.Row{t.ID, t.Title, t.Status, t.Priority, due})
				}
				printTable(table.Row{"ID", "Title", "Status", "Priority", "Due"}, rows)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&parentID, "parent", "", "parent task id")
	return cmd
}

func taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.GetTask(ctx, actor(), args[0])
				if err != nil {
					return err
				}
				return printJSON(t)
			})
		},
	}
}

func taskUpdateCmd() *cobra.Command {
	var title, desc, status, priority, due string
	cmd := &cobra.Command{
		Use:   "update <task-id>",
		Short: "Update task fields (project admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.TaskUpdateOptions{
				ActorID:     actor(),
				ID:          args[0],
				Title:       optionalString(cmd, "title", title),
				Description: optionalString(cmd, "description", desc),
				Status:      optionalString(cmd, "status", status),
				Priority:    optionalString(cmd, "priority", priority),
				DueDate:     optionalString(cmd, "due", due),
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.UpdateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printOne(t, t.ID)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&status, "status", "", "todo, in_progress or done")
	cmd.Flags().StringVar(&priority, "priority", "", "low, medium or high")
	cmd.Flags().StringVar(&due, "due", "", "due date, empty to clear")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task with its sub-tasks (project owner)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteTask(ctx, actor(), args[0]); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
}

func taskAssignCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "assign <task-id> <principal-id>",
		Short: "Add a project member to a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.MemberOptions{ActorID: actor(), PrincipalID: args[1], Resource: auth.Task(args[0]), Role: role}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.AssignTaskMember(ctx, opts)
				if err != nil {
					return err
				}
				return printOne(m, fmt.Sprintf("%s is now %s", m.PrincipalID, m.Role))
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", auth.Assignee, "assignee, reviewer or watcher")
	return cmd
}

func taskUnassignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unassign <task-id> <principal-id>",
		Short: "Remove a task member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.MemberOptions{ActorID: actor(), PrincipalID: args[1], Resource: auth.Task(args[0])}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.RemoveTaskMember(ctx, opts); err != nil {
					return err
				}
				fmt.Println("removed", args[1])
				return nil
			})
		},
	}
}

func invitationCmd() *cobra.Command {
	inv := &cobra.Command{Use: "invitation", Short: "Send and answer invitations"}
	inv.AddCommand(invitationSendCmd())
	inv.AddCommand(invitationListCmd())
	inv.AddCommand(invitationRespondCmd("accept", true))
	inv.AddCommand(invitationRespondCmd("decline", false))
	return inv
}

func invitationSendCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "send <team|project> <id> <principal-id>",
		Short: "Invite a principal to a team or project",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := parseResource(args[0], args[1])
			if err != nil {
				return err
			}
			opts := engine.MemberOptions{ActorID: actor(), PrincipalID: args[2], Resource: res, Role: role}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				inv, err := e.SendInvitation(ctx, opts)
				if err != nil {
					return err
				}
				return printOne(inv, inv.ID)
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", auth.Member, "member or admin")
	return cmd
}

func invitationListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List invitations addressed to the actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListInvitations(ctx, actor(), status)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				rows := make([]table.Row, 0, len(items))
				for _, i := range items {
					rows = append(rows, table.Row{i.ID, i.ResourceKind + "/" + i.ResourceID, i.Role, i.InviterID, i.Status})
				}
				printTable(table.Row{"ID", "Resource", "Role", "From", "Status"}, rows)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", engine.InvitationPending, "pending, accepted, declined or empty for all")
	return cmd
}

func invitationRespondCmd(verb string, accept bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <invitation-id>",
		Short: verb + " an invitation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				inv, err := e.RespondInvitation(ctx, actor(), args[0], accept)
				if err != nil {
					return err
				}
				return printOne(inv, fmt.Sprintf("invitation %s %s", inv.ID, inv.Status))
			})
		},
	}
}

// printOne prints v as JSON with --json, otherwise a one-line summary.
func printOne(v any, summary string) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	fmt.Println(summary)
	return nil
}
