/*
Package errors implements custom error interfaces for weft.

Error declarations should be generic and cover broad range of cases. Each
returned error instance can wrap a generic error declaration to provide
more details.

This package provides a broad range of errors declared that can be used
as a base for wrapping. Extensions that need a more specific class of
failure register their own root errors (see the Register function), so
that an error can always be matched against its root with Is regardless
of how many times it was wrapped on the way up.
*/
package errors
