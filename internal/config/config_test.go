package config

import "testing"

func TestValidate_ValidNetworks(t *testing.T) {
	for _, network := range []string{"mainnet", "testnet10", "testnet11", "testnet12"} {
		cfg := &Config{Network: network, Port: 8080, CBTripThreshold: 4, TxFeeMaxSompi: 1}
		if err := cfg.Validate(); err != nil {
			t.Fatalf("Validate() for network=%q error = %v, want nil", network, err)
		}
	}
}

func TestValidate_InvalidNetwork(t *testing.T) {
	tests := []string{"", "foobar", "Mainnet", "testnet"}
	for _, network := range tests {
		t.Run(network, func(t *testing.T) {
			cfg := &Config{Network: network, Port: 8080, CBTripThreshold: 4}
			if err := cfg.Validate(); err == nil {
				t.Fatalf("Validate() expected error for network=%q, got nil", network)
			}
		})
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	for _, port := range []int{0, -1, 65536, 100000} {
		cfg := &Config{Network: "testnet10", Port: port, CBTripThreshold: 4}
		if err := cfg.Validate(); err == nil {
			t.Fatalf("Validate() expected error for port=%d, got nil", port)
		}
	}
}

func TestValidate_ValidPortBoundaries(t *testing.T) {
	for _, port := range []int{1, 65535, 3000} {
		cfg := &Config{Network: "testnet10", Port: port, CBTripThreshold: 4}
		if err := cfg.Validate(); err != nil {
			t.Fatalf("Validate() error = %v for port=%d, want nil", err, port)
		}
	}
}

func TestValidate_InvalidCBThreshold(t *testing.T) {
	cfg := &Config{Network: "testnet10", Port: 8080, CBTripThreshold: 0}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() expected error for cb trip threshold 0, got nil")
	}
}

func TestValidate_InvalidFeeBounds(t *testing.T) {
	cfg := &Config{Network: "testnet10", Port: 8080, CBTripThreshold: 4, TxFeeMinSompi: 100, TxFeeMaxSompi: 10}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() expected error for fee ceiling below floor, got nil")
	}
}
