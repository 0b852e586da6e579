package postgres

import (
	"crypto/sha256"
	"database/sql"
)

// hashToken returns the salted SHA-256 digest stored in place of an opaque token.
func hashToken(raw, salt string) []byte {
	sum := sha256.Sum256([]byte(raw + salt))
	return sum[:]
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
