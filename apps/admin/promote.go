package main

func (cli *commandLine) promote(uname, role string) error {
	_, err := cli.usrSvc.UpdateRole(uname, role)
	return err
}
