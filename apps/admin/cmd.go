package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/grading"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db         *sql.DB
	conf       *core.Config
	gradingSvc *grading.Service
	out        io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, down, status, ...) on the database")
	fmt.Fprintln(cli.out, "  grade -class ID -student ID [-breakdown] - print a student's final grade in a class")
	fmt.Fprintln(cli.out, "  check -class ID - report malformed assessments of a class")
	fmt.Fprintln(cli.out, "  export -class ID -out FILE - write a class gradebook as xlsx")
	fmt.Fprintln(cli.out, "  token -subject ID [-school ID] -roles ROLE[,ROLE] - mint an API token")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	gradeCmd := cli.newFlagSet("grade")
	gradeClass := gradeCmd.String("class", "", "The class ID.")
	gradeStudent := gradeCmd.String("student", "", "The student ID.")
	gradeBreakdown := gradeCmd.Bool("breakdown", false, "Print how the grade was reached.")

	checkCmd := cli.newFlagSet("check")
	checkClass := checkCmd.String("class", "", "The class ID.")

	exportCmd := cli.newFlagSet("export")
	exportClass := exportCmd.String("class", "", "The class ID.")
	exportOut := exportCmd.String("out", "", "The xlsx file to write.")

	tokenCmd := cli.newFlagSet("token")
	tokenSubject := tokenCmd.String("subject", "", "The user ID the token is issued for.")
	tokenSchool := tokenCmd.String("school", "", "The user's school ID. Leave empty for platform staff.")
	tokenRoles := tokenCmd.String("roles", "", "Comma separated roles, eg. teacher: or admin:principal")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "grade":
		if err := gradeCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *gradeClass == "" || *gradeStudent == "" {
			gradeCmd.Usage()
			return errHelp
		}
		return cli.grade(*gradeClass, *gradeStudent, *gradeBreakdown)
	case "check":
		if err := checkCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *checkClass == "" {
			checkCmd.Usage()
			return errHelp
		}
		return cli.check(*checkClass)
	case "export":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *exportClass == "" || *exportOut == "" {
			exportCmd.Usage()
			return errHelp
		}
		return cli.export(*exportClass, *exportOut)
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *tokenSubject == "" || *tokenRoles == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(*tokenSubject, *tokenSchool, splitRoles(*tokenRoles))
	default:
		cli.printUsage()
		return errHelp
	}
}

func splitRoles(s string) []string {
	roles := make([]string, 0)
	for _, r := range strings.Split(s, ",") {
		if r = core.CleanString(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}
