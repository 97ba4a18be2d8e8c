package main

import (
	"github.com/edumvp/backend/core"
	"github.com/edumvp/backend/core/subject"
	"github.com/edumvp/backend/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(uname, email, pwd string, isAdmin bool) error {
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr := user.User{
		Username: uname,
		Email:    email,
	}
	if isAdmin {
		usr.Role = user.RoleAdmin
	}
	usr, err := cli.usrSvc.Upsert(usr)
	if err != nil {
		return err
	}

	if isAdmin {
		access := make(map[string]user.AccessGrant)
		for _, code := range subject.Codes() {
			access[code] = user.AccessGrant{Enabled: true}
		}
		if _, err = cli.usrSvc.SetAccess(usr.Username, access); err != nil {
			return err
		}
	}

	_, err = cli.usrSvc.ResetPassword(usr.Username, pwd)
	return err
}
