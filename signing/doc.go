// Package signing gates plugin loading on authenticity and integrity.
//
// Authenticity is an ed25519 signature over the module bytes, checked against
// a set of trusted public keys held by a [Signer]. Integrity is a SHA-256
// checksum of the same bytes. The two are independent: a loader requiring both
// treats either failing as fatal.
//
//	signer := signing.NewSigner(signing.WithLogger(log))
//	if err := signer.AddTrustedKeyHex(pubHex); err != nil {
//	    return err
//	}
//	ok, err := signer.VerifyPluginHex(wasm, sigHex)
//
// A Signer with no trusted keys fails closed: VerifyPlugin returns false.
// Malformed input (wrong length, bad hex) is an error; a well-formed
// signature that matches no key is not.
package signing
