package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	defer func(v, sha string) { Version, GitSHA = v, sha }(Version, GitSHA)
	Version, GitSHA = "v0.3.0", "abc123"
	assert.Equal(t, "omegac v0.3.0 (git abc123, built unknown)", String())
}
