package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jrsteele09/go-elearning-portal/authz"
	"github.com/jrsteele09/go-elearning-portal/courses"
	portalerrors "github.com/jrsteele09/go-elearning-portal/internal/errors"
	"github.com/jrsteele09/go-elearning-portal/server"
)

// withSession restores the persisted session and runs fn with the components.
// Without one the user is told where to sign in.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, c *server.Components) error) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.GetPersistSession() {
		return fmt.Errorf("%w: enable PORTAL_PERSIST_SESSION and sign in with 'portal serve' first", portalerrors.ErrNotAuthenticated)
	}

	persister, closePersister, err := openPersister(cfg)
	if err != nil {
		return err
	}
	defer closePersister()

	components := server.Bootstrap(cfg, server.BootstrapOptions{Persister: persister})
	outcome, err := components.Initializer.Initialize(ctx)
	if err != nil {
		return err
	}
	if !outcome.Authenticated {
		return fmt.Errorf("%w: sign in at http://%s first", portalerrors.ErrNotAuthenticated, cfg.GetAddr())
	}
	return fn(ctx, components)
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user, roles and capabilities",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, c *server.Components) error {
			user, err := c.Resolver.Load(ctx)
			if err != nil {
				return err
			}
			caps := authz.DeriveCapabilities(user.Roles)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Name\t%s\n", user.Profile.DisplayName())
			fmt.Fprintf(w, "Username\t%s\n", user.Profile.PreferredUsername)
			fmt.Fprintf(w, "Email\t%s\n", user.Profile.Email)
			fmt.Fprintf(w, "Roles\t%s\n", strings.Join(user.Roles.Roles(), ", "))
			fmt.Fprintf(w, "View courses\t%t\n", caps.CanViewCourses)
			fmt.Fprintf(w, "Manage courses\t%t\n", caps.CanManageCourses)
			return w.Flush()
		})
	},
}

var coursesCmd = &cobra.Command{
	Use:   "courses",
	Short: "Work with courses using the persisted session",
}

func printCourses(out io.Writer, list []courses.Course) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tINSTRUCTOR")
	for _, course := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\n", course.ID, course.Title, course.Instructor)
	}
	return w.Flush()
}

func parseCourseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid course id %q", arg)
	}
	return id, nil
}

var coursesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List courses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, c *server.Components) error {
			list, err := c.Catalog.Refresh(ctx)
			if err != nil {
				return err
			}
			return printCourses(cmd.OutOrStdout(), list)
		})
	},
}

var coursesGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one course",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseCourseID(args[0])
		if err != nil {
			return err
		}
		return withSession(cmd, func(ctx context.Context, c *server.Components) error {
			course, err := c.Catalog.Get(ctx, id)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "ID\t%d\n", course.ID)
			fmt.Fprintf(w, "Title\t%s\n", course.Title)
			fmt.Fprintf(w, "Description\t%s\n", course.Description)
			fmt.Fprintf(w, "Instructor\t%s\n", course.Instructor)
			return w.Flush()
		})
	},
}

var searchInstructor bool

var coursesSearchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Find courses by title, or by instructor with --instructor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, c *server.Components) error {
			var (
				list []courses.Course
				err  error
			)
			if searchInstructor {
				list, err = c.Catalog.ByInstructor(ctx, args[0])
			} else {
				list, err = c.Catalog.Search(ctx, args[0])
			}
			if err != nil {
				return err
			}
			return printCourses(cmd.OutOrStdout(), list)
		})
	},
}

var newCourse courses.Input

var coursesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a course",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, c *server.Components) error {
			created, err := c.Catalog.Create(ctx, newCourse)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created course %d: %s\n", created.ID, created.Title)
			return nil
		})
	},
}

var courseChanges courses.Input

var coursesUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change a course; fields without a flag keep their value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseCourseID(args[0])
		if err != nil {
			return err
		}
		return withSession(cmd, func(ctx context.Context, c *server.Components) error {
			current, err := c.Catalog.Get(ctx, id)
			if err != nil {
				return err
			}
			in := courses.Input{Title: current.Title, Description: current.Description, Instructor: current.Instructor}
			flags := cmd.Flags()
			if flags.Changed("title") {
				in.Title = courseChanges.Title
			}
			if flags.Changed("description") {
				in.Description = courseChanges.Description
			}
			if flags.Changed("instructor") {
				in.Instructor = courseChanges.Instructor
			}

			updated, err := c.Catalog.Update(ctx, id, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated course %d: %s\n", updated.ID, updated.Title)
			return nil
		})
	},
}

var coursesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a course",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseCourseID(args[0])
		if err != nil {
			return err
		}
		return withSession(cmd, func(ctx context.Context, c *server.Components) error {
			if err := c.Catalog.Delete(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted course %d\n", id)
			return nil
		})
	},
}

func init() {
	coursesCreateCmd.Flags().StringVar(&newCourse.Title, "title", "", "course title")
	coursesCreateCmd.Flags().StringVar(&newCourse.Description, "description", "", "course description")
	coursesCreateCmd.Flags().StringVar(&newCourse.Instructor, "instructor", "", "course instructor")

	coursesUpdateCmd.Flags().StringVar(&courseChanges.Title, "title", "", "new title")
	coursesUpdateCmd.Flags().StringVar(&courseChanges.Description, "description", "", "new description")
	coursesUpdateCmd.Flags().StringVar(&courseChanges.Instructor, "instructor", "", "new instructor")

	coursesSearchCmd.Flags().BoolVar(&searchInstructor, "instructor", false, "match the instructor name exactly instead of the title")

	coursesCmd.AddCommand(coursesListCmd, coursesGetCmd, coursesSearchCmd, coursesCreateCmd, coursesUpdateCmd, coursesDeleteCmd)
	rootCmd.AddCommand(whoamiCmd, coursesCmd)
}
