package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Hash returns the hex SHA-256 digest of data. Rendered artifacts are keyed
// by the hash of their snapshot's JSON.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// digest hashes the snapshot hash together with every option that changes
// the rendered bytes. Fields are NUL-terminated so adjacent fields cannot
// run together.
func (o ArtifactKeyOpts) digest(snapshotHash string) string {
	h := sha256.New()
	for _, field := range []string{
		snapshotHash,
		o.Format,
		o.Head,
		strconv.FormatBool(o.Detailed),
		strconv.FormatFloat(o.Scale, 'g', -1, 64),
	} {
		h.Write([]byte(field))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
