package main

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/lox/poollottery/internal/fileutil"
)

// KeygenCmd generates a development account
type KeygenCmd struct {
	Out string `short:"o" help:"Write the private key to this file instead of stdout"`
}

func (c *KeygenCmd) Run() error {
	key, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)
	hexKey := hex.EncodeToString(crypto.FromECDSA(key))

	if c.Out != "" {
		if err := fileutil.WriteFileAtomic(c.Out, []byte(hexKey+"\n"), 0o600); err != nil {
			return fmt.Errorf("write key: %w", err)
		}
		fmt.Printf("Address: %s\nKey:     %s\n", addr.Hex(), c.Out)
		return nil
	}

	fmt.Printf("Address: %s\nKey:     %s\n", addr.Hex(), hexKey)
	return nil
}
