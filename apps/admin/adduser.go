package main

import (
	"context"

	"github.com/trezcool/schoolfin/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(name, email, pwd string, isAdmin bool) error {
	nu := user.NewUser{
		Name:     name,
		Email:    email,
		Password: pwd,
		Role:     user.RoleStaff,
	}
	if isAdmin {
		nu.Role = user.RoleAdmin
	}
	if err := nu.Validate(cli.validate); err != nil {
		return err
	}

	usr, err := cli.usrSvc.Save(context.Background(), nu)
	if err != nil {
		return err
	}
	cli.printf("User %s <%s> saved with role %s\n", usr.Name, usr.Email, usr.Role)
	return nil
}
