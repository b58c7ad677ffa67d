package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/schoolfin/core/fee"
	"github.com/trezcool/schoolfin/core/user"
	"github.com/trezcool/schoolfin/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword     // mockable
	gooseRunFunc     = database.RunMigrations // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sql.DB
	usrSvc   *user.Service
	feeSvc   *fee.Service
	validate *validator.Validate
	out      io.Writer
}

func (cli *commandLine) printf(format string, a ...interface{}) {
	out := cli.out
	if out == nil {
		out = os.Stdout
	}
	_, _ = fmt.Fprintf(out, format, a...)
}

func (cli *commandLine) printUsage() {
	cli.printf("Usage:\n")
	cli.printf("  adduser -email EMAIL -name NAME [-admin] - create or update a user; the password will be prompted\n")
	cli.printf("  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)\n")
	cli.printf("  markoverdue [-date YYYY-MM-DD] - flag the unpaid fee payments due before the date (default: today) as OVERDUE\n")
}

// parseFlags maps a help request to errHelp.
func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return errHelp
		}
		return err
	}
	return nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserName := addUserCmd.String("name", "", "The user's name.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Give the user the ADMIN role (STAFF otherwise).")

	markOverdueCmd := flag.NewFlagSet("markoverdue", flag.ContinueOnError)
	markOverdueDate := markOverdueCmd.String("date", "", "Payments due before this date (YYYY-MM-DD) are overdue. Defaults to today.")

	switch args[1] {
	case "adduser":
		if err := parseFlags(addUserCmd, args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" || *addUserName == "" {
			addUserCmd.Usage()
			return errHelp
		}
		cli.printf("Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		cli.printf("\n")
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserEmail, string(pwd), *addUserAdmin)

	case "migrate":
		if len(args) < 3 {
			cli.printf("Usage: migrate COMMAND [ARGS]\n")
			return errHelp
		}
		return cli.migrate(args[2:])

	case "markoverdue":
		if err := parseFlags(markOverdueCmd, args[2:]); err != nil {
			return err
		}
		return cli.markOverdue(*markOverdueDate)

	default:
		cli.printUsage()
		return errHelp
	}
}
