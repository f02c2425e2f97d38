// Package forwarded implements the Forwarded HTTP header field defined in RFC 7239.
//
// An [Element] holds the parameters of one proxy hop as token/value pairs.
// The registered parameters "for", "by", "host" and "proto" have typed
// accessors, extension parameters are reachable by name. A [Header] is the
// comma-separated list of elements carried by the field.
//
// Parsing is strict about the grammar but tolerant towards its callers:
// [Parse] and [ParseHeader] return nil on malformed input, while
// [ParseStrict] and [ParseHeaderStrict] report a [*ParseError] that
// matches [ErrMalformedInput] and a detail error such as [ErrEmptyValue]
// or [ErrUnterminatedQuote]. Misuse of the mutators, like adding a pair
// with a malformed token, fails with an invalid argument error instead.
//
// Rendering writes pairs joined by ";" without spaces and quotes every
// value that is not a token, so "[2001:db8::1]" is rendered quoted:
//
//	e := forwarded.NewElement().SetFor("[2001:db8::1]").SetProto("https")
//	e.String() // for="[2001:db8::1]";proto=https
//
// Rendering and parsing round-trip: Parse(e.String()) equals e.
//
// [FromRequest] reads the field from request headers and falls back to the
// X-Forwarded-For, X-Forwarded-Host and X-Forwarded-Proto fields.
package forwarded

//go:generate go tool errtrace -w .
