// Package ledger implements the flash-accounting lock context: per-call
// scopes in which token debt may accrue and must net to zero before the
// scope closes. A Session is scratch state for exactly one top-level call
// and is discarded when the call returns.
package ledger

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"ammcore/internal/tickmath"
)

var (
	ErrDebtsNotSettled  = errors.New("debts not settled")
	ErrNotCurrentScope  = errors.New("scope is not the innermost open scope")
	ErrPaymentNotOpen   = errors.New("no payment started for this scope and token")
	ErrPaymentAlreadyOn = errors.New("payment already started for this scope and token")
	ErrNoOpenScope      = errors.New("no open scope")
	ErrNoBalanceReader  = errors.New("no balance reader configured")
)

// BalanceReader is the host's view of token balances held by the ledger
// system, used by the payment helpers.
type BalanceReader interface {
	BalanceOf(token common.Address) (*big.Int, error)
}

type debtKey struct {
	scope uint32
	token common.Address
}

// Session is the call-scoped scratch context. It lives for one top-level
// call: the scope stack, debts, and payment snapshots are never persisted
// and are unreachable once the call returns.
type Session struct {
	balances BalanceReader
	log      *zap.Logger

	scopes   []*Scope
	debts    map[debtKey]*big.Int
	nonZero  map[uint32]int
	payments map[debtKey]*big.Int
}

// Scope identifies one open lock: a (scope id, authorized address) pair.
// The id is the nesting depth at which the scope was opened; the address
// may be temporarily substituted by Forward without moving any debt.
type Scope struct {
	id      uint32
	locker  common.Address
	session *Session
}

func (s *Scope) ID() uint32             { return s.id }
func (s *Scope) Locker() common.Address { return s.locker }

// NewSession builds the scratch context for one top-level call.
func NewSession(balances BalanceReader, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		balances: balances,
		log:      log,
		debts:    make(map[debtKey]*big.Int),
		nonZero:  make(map[uint32]int),
		payments: make(map[debtKey]*big.Int),
	}
}

// Enter opens a scope for locker, runs fn, and verifies every token debt
// recorded under the new scope id is zero before closing it. A non-zero
// debt fails the call; the error unwinds to the top-level entry where all
// side effects are rolled back.
func (s *Session) Enter(locker common.Address, fn func(*Scope) error) error {
	scope := &Scope{
		id:      uint32(len(s.scopes)),
		locker:  locker,
		session: s,
	}
	s.scopes = append(s.scopes, scope)
	defer func() {
		s.scopes = s.scopes[:len(s.scopes)-1]
	}()

	if err := fn(scope); err != nil {
		return err
	}
	if n := s.nonZero[scope.id]; n != 0 {
		return fmt.Errorf("%w: scope %d has %d unsettled token(s)", ErrDebtsNotSettled, scope.id, n)
	}
	return nil
}

// Enter opens a nested scope from an existing one.
func (sc *Scope) Enter(locker common.Address, fn func(*Scope) error) error {
	return sc.session.Enter(locker, fn)
}

// current returns the innermost open scope.
func (s *Session) current() (*Scope, error) {
	if len(s.scopes) == 0 {
		return nil, ErrNoOpenScope
	}
	return s.scopes[len(s.scopes)-1], nil
}

// requireCurrent rejects operations issued through a scope handle that is
// not the innermost open scope.
func (s *Session) requireCurrent(sc *Scope) error {
	cur, err := s.current()
	if err != nil {
		return err
	}
	if cur != sc {
		return fmt.Errorf("%w: scope %d", ErrNotCurrentScope, sc.id)
	}
	return nil
}

// AdjustDebt is the only way debt changes. Positive delta means the locker
// owes the system; negative means the system owes the locker. Debt is keyed
// by (scope id, token), never by address.
func (sc *Scope) AdjustDebt(token common.Address, delta *big.Int) error {
	s := sc.session
	if err := s.requireCurrent(sc); err != nil {
		return err
	}
	if delta.Sign() == 0 {
		return nil
	}

	key := debtKey{scope: sc.id, token: token}
	prev, ok := s.debts[key]
	if !ok {
		prev = new(big.Int)
	}
	next := new(big.Int).Add(prev, delta)
	if err := tickmath.CheckAmount(next); err != nil {
		return fmt.Errorf("debt for token %s: %w", token, err)
	}

	switch {
	case prev.Sign() == 0 && next.Sign() != 0:
		s.nonZero[sc.id]++
	case prev.Sign() != 0 && next.Sign() == 0:
		s.nonZero[sc.id]--
	}
	s.debts[key] = next

	s.log.Debug("debt adjusted",
		zap.Uint32("scope", sc.id),
		zap.String("token", token.Hex()),
		zap.String("delta", delta.String()),
		zap.String("debt", next.String()),
	)
	return nil
}

// Debt reports the current debt for (scope id, token). Zero for untouched
// tokens.
func (sc *Scope) Debt(token common.Address) *big.Int {
	if v, ok := sc.session.debts[debtKey{scope: sc.id, token: token}]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// Forward temporarily reassigns the authorized address of the current scope
// to callee for the duration of fn. Debt stays attached to the scope id, so
// forwarding can neither create nor destroy debt.
func (sc *Scope) Forward(callee common.Address, fn func(*Scope) error) error {
	s := sc.session
	if err := s.requireCurrent(sc); err != nil {
		return err
	}
	prev := sc.locker
	sc.locker = callee
	defer func() { sc.locker = prev }()
	return fn(sc)
}

// StartPayment snapshots the system's balance of token so a later
// CompletePayment can credit exactly what arrived in between. The pairing
// is scoped per (scope id, token); nested scopes track their own payments
// without disturbing an outer scope's pending snapshot.
func (sc *Scope) StartPayment(token common.Address) error {
	s := sc.session
	if err := s.requireCurrent(sc); err != nil {
		return err
	}
	if s.balances == nil {
		return fmt.Errorf("%w: token %s", ErrNoBalanceReader, token)
	}
	key := debtKey{scope: sc.id, token: token}
	if _, ok := s.payments[key]; ok {
		return fmt.Errorf("%w: scope %d token %s", ErrPaymentAlreadyOn, sc.id, token)
	}
	bal, err := s.balances.BalanceOf(token)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}
	s.payments[key] = new(big.Int).Set(bal)
	return nil
}

// CompletePayment computes the amount received since StartPayment and
// credits it against the scope's debt, returning the received amount.
func (sc *Scope) CompletePayment(token common.Address) (*big.Int, error) {
	s := sc.session
	if err := s.requireCurrent(sc); err != nil {
		return nil, err
	}
	key := debtKey{scope: sc.id, token: token}
	snapshot, ok := s.payments[key]
	if !ok {
		return nil, fmt.Errorf("%w: scope %d token %s", ErrPaymentNotOpen, sc.id, token)
	}
	delete(s.payments, key)

	bal, err := s.balances.BalanceOf(token)
	if err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}
	received := new(big.Int).Sub(bal, snapshot)
	if received.Sign() < 0 {
		return nil, fmt.Errorf("balance of %s decreased during payment", token)
	}
	if err := sc.AdjustDebt(token, new(big.Int).Neg(received)); err != nil {
		return nil, err
	}
	return received, nil
}
