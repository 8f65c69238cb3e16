package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersion(t *testing.T) {
	v := Version()
	assert.NotEmpty(t, v)
	assert.False(t, strings.ContainsAny(v, " \n\t"), "version should be trimmed")
	assert.Equal(t, "balkonsolar/"+v, Product())
}
