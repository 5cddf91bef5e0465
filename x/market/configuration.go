package market

import (
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/gconf"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/orm"
)

func init() {
	migration.MustRegister(1, &Configuration{}, migration.NoModification)
}

var _ orm.Model = (*Configuration)(nil)

func (c *Configuration) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", c.Metadata.Validate())
	errs = errors.AppendField(errs, "Owner", c.Owner.Validate())
	errs = errors.AppendField(errs, "Arbitrator", c.Arbitrator.Validate())
	if c.ReclaimWindow <= 0 {
		errs = errors.AppendField(errs, "ReclaimWindow", errors.Wrap(errors.ErrInput, "must be greater than zero"))
	}
	if c.FeeDepositPeriod <= 0 {
		errs = errors.AppendField(errs, "FeeDepositPeriod", errors.Wrap(errors.ErrInput, "must be greater than zero"))
	}
	if c.RulingChoices < 2 {
		errs = errors.AppendField(errs, "RulingChoices", errors.Wrap(errors.ErrInput, "at least two ruling choices required"))
	}
	return errs
}

func loadConf(db gconf.Store) (Configuration, error) {
	var conf Configuration
	if err := gconf.Load(db, "market", &conf); err != nil {
		return conf, errors.Wrap(err, "load configuration")
	}
	return conf, nil
}
