/*
Package collateral implements storage accounting.

Every byte written into the ledger on behalf of an account must be backed
by funds. Mutating operations attach a payment that covers the byte delta
they produce, priced by the chain configuration. Freed bytes are refunded
from the collateral pool.

On top of the per-call charging, accounts maintain a deposit balance that
backs their marketplace listings. A deposit can be withdrawn down to the
amount reserved by still active listings.
*/
package collateral
