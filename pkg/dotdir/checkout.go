package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	checkoutFile = "checkout.json"
)

// CheckoutState records the branch that commands default to.
type CheckoutState struct {
	BranchID   int64  `json:"branch_id"`
	BranchName string `json:"branch_name,omitempty"`
}

// LoadCheckoutState loads the checkout state from a target .grove/checkout.json.
// Returns nil, nil if nothing is checked out.
func (m *Manager) LoadCheckoutState(overrideDir string) (*CheckoutState, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, checkoutFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading checkout state: %w", err)
	}

	state := &CheckoutState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parsing checkout state: %w", err)
	}

	return state, nil
}

// SaveCheckout persists the checkout state to a target .grove/checkout.json.
func (m *Manager) SaveCheckout(state *CheckoutState, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil checkout state")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling checkout state: %w", err)
	}

	path := filepath.Join(dir, checkoutFile)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing checkout state: %w", err)
	}

	return nil
}

// ClearCheckout removes the checkout state file.
// Returns nil if the file doesn't exist (already cleared).
func (m *Manager) ClearCheckout(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, checkoutFile)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing checkout state: %w", err)
	}

	return nil
}
