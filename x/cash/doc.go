/*
Package cash defines a simple wallet implementation and a controller that
the other extensions use to move funds around.

Wallets are stored in a bucket keyed by the owner address. All transfers
are performed through the Controller so the invariant that no wallet ever
goes negative is enforced in a single place.
*/
package cash
