package kaspa

import "testing"

func TestKASToSompi_Exact(t *testing.T) {
	// 1.5 KAS = 150_000_000 sompi
	got, err := KASToSompi(1, 5, 1)
	if err != nil {
		t.Fatalf("KASToSompi() error = %v", err)
	}
	if got != 150_000_000 {
		t.Fatalf("KASToSompi(1, 5, 1) = %d, want 150000000", got)
	}
}

func TestKASToSompi_EightFractionalDigits(t *testing.T) {
	got, err := KASToSompi(0, 1, 8)
	if err != nil {
		t.Fatalf("KASToSompi() error = %v", err)
	}
	if got != 1 {
		t.Fatalf("KASToSompi(0, 1, 8) = %d, want 1", got)
	}
}

func TestKASToSompi_TooManyDigits(t *testing.T) {
	if _, err := KASToSompi(0, 1, 9); err == nil {
		t.Fatal("expected error for 9 fractional digits")
	}
}

func TestOutpoint_Key(t *testing.T) {
	o := Outpoint{TxID: "abc", OutputIndex: 3}
	if o.Key() != "abc:3" {
		t.Fatalf("Key() = %q, want abc:3", o.Key())
	}
}

func TestPendingTx_BalanceInvariant(t *testing.T) {
	tx := &PendingTx{
		Inputs:  []UTXO{{Amount: 100}},
		Outputs: []Output{{Amount: 60}},
		Change:  &Output{Amount: 30},
		Fee:     10,
	}
	if !tx.BalanceInvariantHolds() {
		t.Fatal("expected balance invariant to hold: 100 == 60+30+10")
	}

	tx.Fee = 11
	if tx.BalanceInvariantHolds() {
		t.Fatal("expected balance invariant to fail with mismatched fee")
	}
}

func TestPendingTx_LockedKeys(t *testing.T) {
	tx := &PendingTx{Inputs: []UTXO{
		{Outpoint: Outpoint{TxID: "a", OutputIndex: 0}},
		{Outpoint: Outpoint{TxID: "b", OutputIndex: 1}},
	}}
	keys := tx.LockedKeys()
	if len(keys) != 2 || keys[0] != "a:0" || keys[1] != "b:1" {
		t.Fatalf("LockedKeys() = %v", keys)
	}
}

func TestNetwork_AddressPrefix(t *testing.T) {
	if Mainnet.AddressPrefix() != "kaspa" {
		t.Fatalf("Mainnet prefix = %q, want kaspa", Mainnet.AddressPrefix())
	}
	for _, n := range []Network{Testnet10, Testnet11, Testnet12} {
		if n.AddressPrefix() != "kaspatest" {
			t.Fatalf("%s prefix = %q, want kaspatest", n, n.AddressPrefix())
		}
	}
}

func TestNetwork_Valid(t *testing.T) {
	if !Mainnet.Valid() || !Testnet10.Valid() {
		t.Fatal("expected known networks to be valid")
	}
	if Network("bogus").Valid() {
		t.Fatal("expected unknown network to be invalid")
	}
}
