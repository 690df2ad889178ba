// Package store persists a deployed pool and the account balances it moves
// in a bbolt database.
package store

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	bolt "go.etcd.io/bbolt"

	"github.com/lox/poollottery/internal/lottery"
)

var (
	// ErrNotDeployed is returned by Load when no pool has been deployed.
	ErrNotDeployed = errors.New("store: pool not deployed")

	// ErrAlreadyDeployed is returned by Deploy when a pool already exists.
	ErrAlreadyDeployed = errors.New("store: pool already deployed")
)

var (
	poolBucket     = []byte("pool")
	accountsBucket = []byte("accounts")
	stateKey       = []byte("state")
)

// poolRecord is the RLP layout of a stored snapshot.
type poolRecord struct {
	Address    common.Address
	Manager    common.Address
	EntryFee   *big.Int
	Players    []common.Address
	LastWinner common.Address
	Round      uint64
}

// Store is a bbolt-backed lottery.Journal.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{poolBucket, accountsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.db.Path()
}

// Deploy writes the initial pool state and genesis balances. It refuses to
// overwrite an existing deployment.
func (s *Store) Deploy(state *lottery.Snapshot, balances map[lottery.Identity]*big.Int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(poolBucket).Get(stateKey) != nil {
			return ErrAlreadyDeployed
		}
		return write(tx, state, balances)
	})
}

// Commit implements lottery.Journal. The snapshot and balances are written
// in a single bolt transaction.
func (s *Store) Commit(state *lottery.Snapshot, balances map[lottery.Identity]*big.Int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return write(tx, state, balances)
	})
}

// Load returns the stored pool state and every stored balance.
func (s *Store) Load() (*lottery.Snapshot, map[lottery.Identity]*big.Int, error) {
	var (
		state    *lottery.Snapshot
		balances = make(map[lottery.Identity]*big.Int)
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(poolBucket).Get(stateKey)
		if raw == nil {
			return ErrNotDeployed
		}
		var rec poolRecord
		if err := rlp.DecodeBytes(raw, &rec); err != nil {
			return fmt.Errorf("decode pool state: %w", err)
		}
		state = &lottery.Snapshot{
			Address:    rec.Address,
			Manager:    rec.Manager,
			EntryFee:   rec.EntryFee,
			Players:    rec.Players,
			LastWinner: rec.LastWinner,
			Round:      rec.Round,
		}
		if state.Players == nil {
			state.Players = []lottery.Identity{}
		}

		return tx.Bucket(accountsBucket).ForEach(func(k, v []byte) error {
			if len(k) != common.AddressLength {
				return fmt.Errorf("account key %x: bad length %d", k, len(k))
			}
			balances[common.BytesToAddress(k)] = new(big.Int).SetBytes(v)
			return nil
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return state, balances, nil
}

func write(tx *bolt.Tx, state *lottery.Snapshot, balances map[lottery.Identity]*big.Int) error {
	if state == nil {
		return errors.New("store: nil snapshot")
	}
	raw, err := rlp.EncodeToBytes(&poolRecord{
		Address:    state.Address,
		Manager:    state.Manager,
		EntryFee:   state.EntryFee,
		Players:    state.Players,
		LastWinner: state.LastWinner,
		Round:      state.Round,
	})
	if err != nil {
		return fmt.Errorf("encode pool state: %w", err)
	}
	if err := tx.Bucket(poolBucket).Put(stateKey, raw); err != nil {
		return err
	}

	accounts := tx.Bucket(accountsBucket)
	for addr, bal := range balances {
		if bal == nil || bal.Sign() < 0 {
			return fmt.Errorf("store: invalid balance for %s", addr.Hex())
		}
		if err := accounts.Put(addr.Bytes(), bal.Bytes()); err != nil {
			return err
		}
	}
	return nil
}
