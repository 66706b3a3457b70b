package main

import (
	"fmt"

	"github.com/trezcool/masomo/core"
)

func (cli *commandLine) token(subject, schoolID string, roles []string) error {
	claims := core.NewClaims(cli.conf, subject, subject, schoolID, roles...)
	ss, err := core.GenerateToken(cli.conf, claims)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, ss)
	return nil
}
