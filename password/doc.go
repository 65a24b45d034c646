// Package password hashes and verifies account passwords with Argon2id.
//
// Hashes use the PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Parameters are read back from the stored hash at verification time, so
// cost changes never break existing hashes. [Hasher.NeedsRehash] reports
// when a stored hash was produced with weaker parameters; callers re-hash
// on the next successful sign-in.
//
// This package never stores passwords and never logs plaintext.
package password
