package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/schoolfin/core"
)

var todayFunc = core.Today // mockable

// markOverdue flags the unpaid fee payments due before date (today when empty) as OVERDUE.
func (cli *commandLine) markOverdue(date string) error {
	asOf := todayFunc()
	if date != "" {
		d, err := core.ParseDate(date)
		if err != nil {
			return errors.Errorf("invalid date %q: expected YYYY-MM-DD", date)
		}
		asOf = d
	}

	n, err := cli.feeSvc.MarkOverdue(context.Background(), asOf)
	if err != nil {
		return err
	}
	cli.printf("%d fee payment(s) marked as OVERDUE (due before %s)\n", n, asOf.Format(core.DateLayout))
	return nil
}
