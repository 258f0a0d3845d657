package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	if err := cli.regSvc.ResetPassword(context.Background(), uname, pwd); err != nil {
		return err
	}
	fmt.Printf("password of %q updated\n", uname)
	return nil
}

// seedAdmin creates the admin school and account on first run; later runs only set the password.
func (cli *commandLine) seedAdmin(pwd string) error {
	creds, err := cli.regSvc.SeedAdmin(context.Background(), pwd)
	if err != nil {
		return err
	}
	fmt.Printf("admin account %q of school %q is ready\n", creds.Username, creds.SchoolCode)
	return nil
}
