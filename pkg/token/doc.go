// Package token issues and checks operator API tokens.
//
// Tokens carry an "opr_" prefix followed by 32 random bytes encoded as
// base64-URL. The server never keeps a token in plaintext: it keeps the
// HMAC-SHA256 digest keyed with the server secret and compares digests in
// constant time.
//
//	tok, err := token.Issue()
//	digest := token.Digest(tok, secret)
//	ok := token.Matches(presented, secret, digest)
package token
