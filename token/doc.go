// Package token decodes the backend's JWT bearer tokens into [Claims].
// Verification is optional: with no key configured the payload is parsed
// without checking the signature, as the device only needs exp, role and
// sub. [Issuer] mints tokens for the mock backend and tests.
package token
