package market

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/gconf"
)

// Initializer fulfils the Initializer interface to load data from the
// genesis file
type Initializer struct{}

var _ weave.Initializer = (*Initializer)(nil)

// FromGenesis will parse initial configuration and seed listings from
// genesis and save it in the database.
func (*Initializer) FromGenesis(opts weave.Options, params weave.GenesisParams, db weave.KVStore) error {
	conf := Configuration{
		Metadata: &weave.Metadata{Schema: 1},
	}
	switch err := gconf.InitConfig(db, opts, "market", &conf); {
	default:
		// All good.
	case errors.ErrNotFound.Is(err):
		return nil
	case err != nil:
		return errors.Wrap(err, "cannot initialize gconf based configuration")
	}

	var listings []struct {
		Seller     weave.Address `json:"seller"`
		ItemDigest []byte        `json:"item_digest"`
		Price      coin.Coin     `json:"price"`
	}
	if err := opts.ReadOptions("listing", &listings); err != nil {
		return err
	}
	b := NewTransactionBucket()
	for i, l := range listings {
		listing := Transaction{
			Metadata:   &weave.Metadata{Schema: 1},
			Seller:     l.Seller,
			ItemDigest: l.ItemDigest,
			Price:      &l.Price,
			State:      TransactionListed,
		}
		if err := listing.Validate(); err != nil {
			return errors.Wrapf(err, "listing %d is invalid", i)
		}
		if _, err := b.Put(db, nil, &listing); err != nil {
			return errors.Wrapf(err, "store listing %d", i)
		}
	}
	return nil
}
