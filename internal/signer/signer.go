// Package signer implements the kernel's Signer contract: given a built,
// dry-run-validated PendingTx and a credential.Session, it produces a
// serialized signed payload ready for broadcast. Signing is native Kaspa
// Schnorr over secp256k1, the same curve as the BTC signing path but with
// the schnorr scheme Kaspa's consensus requires instead of ECDSA/witness
// signatures.
package signer

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/kaspax/txkernel/internal/credential"
	"github.com/kaspax/txkernel/internal/kaspa"
	"github.com/kaspax/txkernel/internal/kerrors"
)

// Signer signs a PendingTx's inputs against a credential.Store.
type Signer struct {
	credentials credential.Store
}

// New creates a Signer bound to a credential store.
func New(credentials credential.Store) *Signer {
	return &Signer{credentials: credentials}
}

// signedInput is one signed input entry in the serialized payload.
type signedInput struct {
	TxID        string `json:"txId"`
	OutputIndex uint32 `json:"outputIndex"`
	Signature   []byte `json:"signature"`
	PublicKey   []byte `json:"publicKey"`
}

// payload is the serialized signed transaction the broadcaster submits.
type payload struct {
	FromAddress string        `json:"fromAddress"`
	Outputs     []kaspa.Output `json:"outputs"`
	Change      *kaspa.Output  `json:"change,omitempty"`
	Fee         kaspa.Sompi    `json:"fee"`
	Inputs      []signedInput `json:"inputs"`
}

// Sign produces the serialized signed payload for tx. It returns
// kerrors.ErrWalletLocked if the credential store has no unlocked session for
// tx.FromAddress, and kerrors.ErrSignFailed wrapping any derivation or
// signing error.
func (s *Signer) Sign(tx *kaspa.PendingTx) ([]byte, error) {
	session, err := s.credentials.GetSession(tx.FromAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrSignFailed, err)
	}
	if session == nil {
		return nil, kerrors.ErrWalletLocked
	}

	seed, err := mnemonicToSeed(session.Mnemonic, session.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrSignFailed, err)
	}

	masterKey, err := deriveMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrSignFailed, err)
	}

	privKey, err := deriveChildPrivKey(masterKey, session.Derivation)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrSignFailed, err)
	}
	defer privKey.Zero()

	pub := privKey.PubKey().SerializeCompressed()

	inputs := make([]signedInput, 0, len(tx.Inputs))
	for i, in := range tx.Inputs {
		hash := inputSigHash(tx, i)
		sig, err := schnorr.Sign(privKey, hash[:])
		if err != nil {
			return nil, fmt.Errorf("%w: sign input %d: %s", kerrors.ErrSignFailed, i, err)
		}
		inputs = append(inputs, signedInput{
			TxID:        in.Outpoint.TxID,
			OutputIndex: in.Outpoint.OutputIndex,
			Signature:   sig.Serialize(),
			PublicKey:   pub,
		})
		slog.Debug("input signed", "index", i, "txid", in.Outpoint.TxID)
	}

	out := payload{
		FromAddress: tx.FromAddress,
		Outputs:     tx.Outputs,
		Change:      tx.Change,
		Fee:         tx.Fee,
		Inputs:      inputs,
	}

	serialized, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("%w: serialize signed payload: %s", kerrors.ErrSignFailed, err)
	}

	slog.Info("transaction signed", "fromAddress", tx.FromAddress, "inputCount", len(inputs))
	return serialized, nil
}

// inputSigHash computes a deterministic digest for input i that binds it to
// every input and output of tx, standing in for the kernel's view of Kaspa's
// transaction sighash. A real broadcaster node recomputes and verifies this
// digest against consensus rules; the kernel only needs a digest that commits
// to the full set of fields it itself controls. The double-SHA256 construction
// matches chainhash.DoubleHashH, the same digest btcd-family chains use for
// transaction IDs and sighashes.
func inputSigHash(tx *kaspa.PendingTx, inputIndex int) chainhash.Hash {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, uint32(inputIndex))
	for _, in := range tx.Inputs {
		buf.WriteString(in.Outpoint.TxID)
		_ = binary.Write(&buf, binary.BigEndian, in.Outpoint.OutputIndex)
		_ = binary.Write(&buf, binary.BigEndian, int64(in.Amount))
	}
	for _, out := range tx.Outputs {
		buf.WriteString(out.Address)
		_ = binary.Write(&buf, binary.BigEndian, int64(out.Amount))
	}
	if tx.Change != nil {
		buf.WriteString(tx.Change.Address)
		_ = binary.Write(&buf, binary.BigEndian, int64(tx.Change.Amount))
	}
	_ = binary.Write(&buf, binary.BigEndian, int64(tx.Fee))
	return chainhash.DoubleHashH(buf.Bytes())
}

var (
	mnemonicToSeed     = credential.MnemonicToSeed
	deriveMasterKey    = credential.DeriveMasterKey
	deriveChildPrivKey = credential.DeriveChildPrivKey
)
