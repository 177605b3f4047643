// Package coerce maps loosely typed caller input, as decoded from JSON, onto
// engine attributes.
//
// Dispatch is driven by the declared Kind of the destination attribute. Input
// that cannot be reconciled with that kind fails with ErrTypeMismatch; an
// unknown attribute or an unresolvable object reference fails with an error
// matching engine.ErrNotFound. Nothing is applied when a call fails.
//
// Coercion mutates engine state and therefore only runs inside a bridge task.
package coerce
