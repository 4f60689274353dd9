package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (cli *commandLine) enrollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enroll COURSE...",
		Short: "Enroll in one or more courses at once (students)",
		Long:  "Enroll in every given course, or in none of them if any is not eligible.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			std, err := cli.asStudent()
			if err != nil {
				return err
			}
			crss, err := cli.inst.EnrollAll(std.Identity, args...)
			if err != nil {
				return err
			}
			if err := cli.commit(cmd.Context()); err != nil {
				return err
			}
			for _, crs := range crss {
				cli.printf("Enrolled in %q\n", crs.Name)
			}
			return nil
		},
	}
}

func (cli *commandLine) coursesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "courses",
		Short: "Your courses (students)",
	}
	eligible := &cobra.Command{
		Use:   "eligible",
		Short: "Courses you can enroll in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			std, err := cli.asStudent()
			if err != nil {
				return err
			}
			crss, err := cli.inst.EligibleCoursesFor(std.Identity)
			if err != nil {
				return err
			}
			return printCourses(cli.out, crss)
		},
	}
	mine := &cobra.Command{
		Use:   "mine",
		Short: "Courses you are enrolled in, with your grade, and courses you approved",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			std, err := cli.asStudent()
			if err != nil {
				return err
			}
			return cli.printStudentCourses(std.Identity)
		},
	}
	cmd.AddCommand(eligible, mine)
	return cmd
}

func (cli *commandLine) printStudentCourses(identity string) error {
	enrolled, err := cli.inst.EnrolledCourses(identity)
	if err != nil {
		return err
	}
	approved, err := cli.inst.ApprovedCourses(identity)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t%s\n", "COURSE", "STATE", "GRADE")
	for _, crs := range enrolled {
		grade, err := cli.inst.PendingGrade(crs.ID, identity)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", crs.Name, crs.State, grade)
	}
	for _, crs := range approved {
		fmt.Fprintf(w, "%s\t%s\t%s\n", crs.Name, "approved", "-")
	}
	return w.Flush()
}
