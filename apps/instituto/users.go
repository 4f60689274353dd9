package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AntoVGreco/app-instituto-MCV/core/course"
	"github.com/AntoVGreco/app-instituto-MCV/core/institute"
	"github.com/AntoVGreco/app-instituto-MCV/core/user"
)

func (cli *commandLine) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Check credentials and show what the account can do",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := cli.authenticate()
			if err != nil {
				return err
			}
			usr := sess.Account.Base()
			cli.printf("Welcome %s %s\n", usr.FirstName, usr.LastName)
			if sess.MustChangePassword {
				cli.printf("First login: change your password with `instituto passwd` before anything else.\n")
				return nil
			}
			switch acc := sess.Account.(type) {
			case *user.Administrator:
				cli.printf("Administrator: user add|list|show|suspend|reactivate|reset-password, course set|cancel|list, export\n")
			case *user.Teacher:
				pending := cli.inst.TeacherCourses(acc.Identity, course.StateEnabled, course.StateClosed)
				cli.printf("Teacher: %d course(s) in progress; course propose|mine|close|grade|finish|reset|roster\n", len(pending))
			case *user.Student:
				cli.printf("Student: %d enrolled, %d approved; enroll, courses eligible|mine\n",
					len(acc.EnrolledCourses), acc.ApprovedCount())
			}
			return nil
		},
	}
}

func (cli *commandLine) passwdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change your password; the login password is the current one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, current, err := cli.authenticatePassword()
			if err != nil {
				return err
			}
			pc := user.PasswordChange{Identity: sess.Account.Base().Identity, Current: current}
			if pc.New, err = cli.readPassword("New password: "); err != nil {
				return err
			}
			if pc.Confirm, err = cli.readPassword("Confirm new password: "); err != nil {
				return err
			}
			if err := pc.Validate(); err != nil {
				return err
			}
			if err := cli.inst.ChangePassword(pc.Identity, pc.Current, pc.New, pc.Confirm); err != nil {
				return err
			}
			if err := cli.commit(cmd.Context()); err != nil {
				return err
			}
			cli.printf("Password changed.\n")
			return nil
		},
	}
}

func (cli *commandLine) userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users (administrators)",
	}

	var nu user.NewUser
	var profile string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a student or a teacher; the initial password is the identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := cli.asAdmin(); err != nil {
				return err
			}
			nu.Profile = user.Profile(profile)
			if err := nu.Validate(); err != nil {
				return err
			}
			acc, err := cli.inst.CreateUser(nu)
			if err != nil {
				return err
			}
			if err := cli.commit(cmd.Context()); err != nil {
				return err
			}
			cli.printf("Created %s %s (%s)\n", acc.Profile(), acc.Base().FullName(), acc.Base().Identity)
			return nil
		},
	}
	add.Flags().StringVar(&profile, "profile", "", "student or teacher")
	add.Flags().StringVar(&nu.FirstName, "first", "", "first name")
	add.Flags().StringVar(&nu.LastName, "last", "", "last name")
	add.Flags().StringVar(&nu.Identity, "identity", "", "identity number (8 digits)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List every user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := cli.asAdmin(); err != nil {
				return err
			}
			w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
			row := "%s\t%s\t%s\t%s\t%s\n"
			fmt.Fprintf(w, row, "LAST NAME", "FIRST NAME", "IDENTITY", "PROFILE", "STATE")
			for _, acc := range cli.inst.Users() {
				usr := acc.Base()
				fmt.Fprintf(w, row, usr.LastName, usr.FirstName, usr.Identity, acc.Profile(), usr.AccountState())
			}
			return w.Flush()
		},
	}

	show := &cobra.Command{
		Use:   "show IDENTITY",
		Short: "Show a user and, for students, their courses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := cli.asAdmin(); err != nil {
				return err
			}
			acc, err := cli.inst.FindByIdentity(args[0])
			if err != nil {
				return err
			}
			usr := acc.Base()
			cli.printf("%s (%s) %s, %s\n", usr.FullName(), usr.Identity, acc.Profile(), usr.AccountState())
			if std, ok := acc.(*user.Student); ok {
				return cli.printStudentCourses(std.Identity)
			}
			return nil
		},
	}

	cmd.AddCommand(add, list, show,
		cli.userActionCmd("suspend", "Suspend an account", "suspended", (*institute.Institute).Suspend),
		cli.userActionCmd("reactivate", "Reactivate a suspended account", "reactivated", (*institute.Institute).Reactivate),
		cli.userActionCmd("reset-password", "Put the initial password (the identity) back", "password reset", (*institute.Institute).ResetPassword),
	)
	return cmd
}

// userActionCmd builds the administrator commands taking a single identity.
func (cli *commandLine) userActionCmd(name, short, done string, action func(*institute.Institute, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   name + " IDENTITY",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := cli.asAdmin(); err != nil {
				return err
			}
			if err := action(cli.inst, args[0]); err != nil {
				return err
			}
			if err := cli.commit(cmd.Context()); err != nil {
				return err
			}
			cli.printf("%s: %s\n", args[0], done)
			return nil
		},
	}
}
