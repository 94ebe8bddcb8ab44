/*
Package market implements the sale lifecycle of tokens.

A listing is never created directly. The token owner approves the
marketplace with a payload describing the sale terms, and the listing is
created when the approval notification arrives. Listings are backed by
the owner's storage deposit, one slot per listing.

A purchase re-validates the marketplace approval by its identifier, so a
listing that survived an ownership change can never sell the token.
*/
package market
