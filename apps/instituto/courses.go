package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/AntoVGreco/app-instituto-MCV/core/course"
	"github.com/AntoVGreco/app-instituto-MCV/core/institute"
	"github.com/AntoVGreco/app-instituto-MCV/core/user"
)

func parseStates(raw []string) ([]course.State, error) {
	states := make([]course.State, 0, len(raw))
	for _, r := range raw {
		st, err := course.ParseState(r)
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, nil
}

func printCourses(out io.Writer, crss []*course.Course) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	row := "%s\t%s\t%v\t%v\t%v\t%s\n"
	fmt.Fprintf(w, row, "NAME", "STATE", "PREREQUISITES", "CAPACITY", "ENROLLED", "TEACHER")
	for _, crs := range crss {
		fmt.Fprintf(w, row, crs.Name, crs.State, crs.Prerequisites, crs.Capacity, crs.Enrolled(), crs.Teacher)
	}
	return w.Flush()
}

func (cli *commandLine) courseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "course",
		Short: "Propose, administer and teach courses",
	}
	cmd.AddCommand(
		cli.courseListCmd(),
		cli.courseProposeCmd(),
		cli.courseMineCmd(),
		cli.courseSetCmd(),
		cli.courseCancelCmd(),
		cli.courseGradeCmd(),
		cli.courseRosterCmd(),
		cli.teacherActionCmd("close", "Close enrollment, whatever the fill level", (*institute.Institute).CloseEnrollment),
		cli.teacherActionCmd("finish", "Finish a closed course once every student is graded", (*institute.Institute).FinishCourse),
		cli.teacherActionCmd("reset", "Re-open a finished course with a new, empty offering", (*institute.Institute).ResetCourse),
	)
	return cmd
}

func (cli *commandLine) courseListCmd() *cobra.Command {
	var rawStates []string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List courses, optionally only in some states",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := cli.login(); err != nil {
				return err
			}
			states, err := parseStates(rawStates)
			if err != nil {
				return err
			}
			return printCourses(cli.out, cli.inst.Courses(states...))
		},
	}
	cmd.Flags().StringSliceVar(&rawStates, "state", nil, "Proposed, Enabled, Closed, Finished or Cancelled (repeatable)")
	return cmd
}

func (cli *commandLine) courseProposeCmd() *cobra.Command {
	var nc course.NewCourse
	cmd := &cobra.Command{
		Use:   "propose",
		Short: "Propose a new course (teachers)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tchr, err := cli.asTeacher()
			if err != nil {
				return err
			}
			if err := nc.Validate(); err != nil {
				return err
			}
			crs, err := cli.inst.ProposeCourse(tchr.Identity, nc)
			if err != nil {
				return err
			}
			if err := cli.commit(cmd.Context()); err != nil {
				return err
			}
			cli.printf("Proposed %q (%s)\n", crs.Name, crs.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&nc.Name, "name", "", "course name")
	cmd.Flags().StringVar(&nc.Description, "description", "", "course description")
	cmd.Flags().IntVar(&nc.Prerequisites, "prerequisites", 0, "approved courses required to enroll")
	return cmd
}

func (cli *commandLine) courseMineCmd() *cobra.Command {
	var rawStates []string
	cmd := &cobra.Command{
		Use:   "mine",
		Short: "List the courses you proposed (teachers)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tchr, err := cli.asTeacher()
			if err != nil {
				return err
			}
			states, err := parseStates(rawStates)
			if err != nil {
				return err
			}
			return printCourses(cli.out, cli.inst.TeacherCourses(tchr.Identity, states...))
		},
	}
	cmd.Flags().StringSliceVar(&rawStates, "state", nil, "only these states (repeatable)")
	return cmd
}

func (cli *commandLine) courseSetCmd() *cobra.Command {
	var (
		rawState string
		capacity int
	)
	cmd := &cobra.Command{
		Use:   "set COURSE",
		Short: "Set the state (Proposed, Enabled, Cancelled) and capacity of a course (administrators)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := cli.asAdmin(); err != nil {
				return err
			}
			state, err := course.ParseState(rawState)
			if err != nil {
				return err
			}
			s := course.Settings{State: state, Capacity: capacity}
			if err := s.Validate(); err != nil {
				return err
			}
			crs, err := cli.inst.AdministerCourse(args[0], s)
			if err != nil {
				return err
			}
			if err := cli.commit(cmd.Context()); err != nil {
				return err
			}
			cli.printf("%q is %s, capacity %d, %d enrolled\n", crs.Name, crs.State, crs.Capacity, crs.Enrolled())
			return nil
		},
	}
	cmd.Flags().StringVar(&rawState, "state", string(course.StateEnabled), "target state")
	cmd.Flags().IntVar(&capacity, "capacity", 0, "maximum number of students")
	return cmd
}

func (cli *commandLine) courseCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel COURSE",
		Short: "Cancel a proposed or enabled course, releasing its students (administrators)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := cli.asAdmin(); err != nil {
				return err
			}
			crs, err := cli.inst.CancelCourse(args[0])
			if err != nil {
				return err
			}
			if err := cli.commit(cmd.Context()); err != nil {
				return err
			}
			cli.printf("%q is %s\n", crs.Name, crs.State)
			return nil
		},
	}
}

// teacherActionCmd builds the teacher commands taking a single course.
func (cli *commandLine) teacherActionCmd(name, short string, action func(*institute.Institute, string, string) (*course.Course, error)) *cobra.Command {
	return &cobra.Command{
		Use:   name + " COURSE",
		Short: short + " (teachers)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tchr, err := cli.asTeacher()
			if err != nil {
				return err
			}
			crs, err := action(cli.inst, tchr.Identity, args[0])
			if err != nil {
				return err
			}
			if err := cli.commit(cmd.Context()); err != nil {
				return err
			}
			cli.printf("%q is %s\n", crs.Name, crs.State)
			return nil
		},
	}
}

func (cli *commandLine) courseGradeCmd() *cobra.Command {
	var result string
	cmd := &cobra.Command{
		Use:   "grade COURSE STUDENT",
		Short: "Grade a student of a closed course (teachers)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tchr, err := cli.asTeacher()
			if err != nil {
				return err
			}
			var passed bool
			switch strings.ToLower(result) {
			case "approved", "pass":
				passed = true
			case "failed", "fail":
			default:
				return errors.Errorf("--result must be approved or failed, got %q", result)
			}
			if err := cli.inst.AssignGrade(tchr.Identity, args[0], args[1], passed); err != nil {
				return err
			}
			if err := cli.commit(cmd.Context()); err != nil {
				return err
			}
			cli.printf("%s: %s\n", args[1], course.GradeFor(passed))
			return nil
		},
	}
	cmd.Flags().StringVar(&result, "result", "", "approved or failed")
	return cmd
}

func (cli *commandLine) courseRosterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roster COURSE",
		Short: "Show the students of the current offering with their grade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acc, err := cli.login()
			if err != nil {
				return err
			}
			crs, err := cli.inst.Course(args[0])
			if err != nil {
				return err
			}
			switch acc := acc.(type) {
			case *user.Administrator:
			case *user.Teacher:
				if err := crs.OwnedBy(acc.Identity); err != nil {
					return err
				}
			case *user.Student:
				return errors.Wrap(errForbidden, "administrators and teachers only")
			}

			entries, err := cli.inst.Roster(crs.ID)
			if err != nil {
				return err
			}
			cli.printf("%s (%s) %d/%d\n", crs.Name, crs.State, crs.Enrolled(), crs.Capacity)
			w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "%s\t%s\t%s\n", "STUDENT", "IDENTITY", "GRADE")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.Student.FullName(), e.Student.Identity, e.Grade)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if crs.State == course.StateClosed {
				cli.printf("ready to finish: %v\n", crs.CanFinish())
			}
			return nil
		},
	}
}
