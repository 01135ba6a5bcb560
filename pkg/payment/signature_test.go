package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignVerify(t *testing.T) {
	body := []byte(`{"status":"paid"}`)
	sig := Sign(body, "s3cret")
	assert.Len(t, sig, 64)
	assert.True(t, Verify(body, sig, "s3cret"))
	assert.False(t, Verify(body, sig, "other"))
	assert.False(t, Verify([]byte(`{"status":"failed"}`), sig, "s3cret"))
	assert.False(t, Verify(body, "", "s3cret"))
}
