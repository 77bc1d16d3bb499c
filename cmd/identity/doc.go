// Package identity is authd's credential store boundary.
//
// It persists user identity (unique email + username, salted password hash,
// active flag, role) and enforces uniqueness on case-normalized columns at
// the storage layer. Password hashing and session management live elsewhere;
// this package never touches plaintext passwords or tokens.
package identity
