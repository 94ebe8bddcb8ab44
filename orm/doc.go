/*
Package orm provides an easy to use db wrapper.

It breaks the state space into prefixed sections called buckets. Each
bucket contains only one type of model. A bucket has a primary key and
may possess secondary indexes (1:1 or 1:N). Primary keys can be caller
provided or issued from a per bucket sequence.
*/
package orm
