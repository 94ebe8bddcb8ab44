/*
Package nft implements a non-fungible token ledger.

Each token has exactly one owner, a set of marketplace approvals with
monotonically increasing approval identifiers, and a royalty schedule
fixed at mint time. Tokens can be transferred directly or handed to a
receiving contract through a two-phase protocol: the token moves
immediately, a notification task is scheduled, and a later resolution
either commits the move or rolls it back if the receiver declined and
still holds the token.

All storage consumed by tokens and approval entries is backed by
collateral, charged when written and refunded when released.
*/
package nft
