package main

func (cli *commandLine) resetPassword(uname, pwd string) error {
	_, err := cli.usrSvc.ResetPassword(uname, pwd)
	return err
}
