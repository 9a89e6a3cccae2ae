package market

// Whitelist gating is closed-world: a backend that was never registered is
// treated exactly like one explicitly set to false.

// IsWhitelisted reports whether the supplied backend identity is trusted by
// the escrow. The lookup is pure and never mutates state.
func (e *Engine) IsWhitelisted(backend string) bool {
	if e == nil || e.state == nil {
		return false
	}
	normalized, err := NormalizeBackendID(backend)
	if err != nil {
		return false
	}
	var allowed bool
	ok, err := e.state.KVGet(whitelistKey(normalized), &allowed)
	if err != nil || !ok {
		return false
	}
	return allowed
}

// SetWhitelisted overwrites the trust flag for a backend. Restricted to the
// administrator identity; idempotent. The emitted event carries the previous
// flag for audit.
func (e *Engine) SetWhitelisted(caller [20]byte, backend string, allowed bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.admin {
		return ErrUnauthorised
	}
	normalized, err := NormalizeBackendID(backend)
	if err != nil {
		return err
	}
	previous := false
	if _, err := e.state.KVGet(whitelistKey(normalized), &previous); err != nil {
		return err
	}
	if err := e.state.KVPut(whitelistKey(normalized), allowed); err != nil {
		return err
	}
	e.emit(WhitelistUpdated{Backend: normalized, Previous: previous, Allowed: allowed})
	return nil
}
