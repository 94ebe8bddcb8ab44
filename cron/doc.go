/*
Package cron implements persistent scheduling of message execution.

A message queued through the Scheduler is stored in the database together
with the authentication conditions and the caller address it must execute
under. The Ticker runs between transaction batches, delivers every task
that reached its execution time and records a TaskResult for each.
*/
package cron
