package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHMACSignatureService_Sign(t *testing.T) {
	svc := NewHMACSignatureService()

	payload := []byte(`{"event":"submission.created","form":{"id":"f1"}}`)
	sig := svc.Sign("secret-key", payload)

	// Deterministic: identical secret and bytes always produce the same
	// signature.
	assert.Equal(t, sig, svc.Sign("secret-key", payload))
	assert.Len(t, sig, 64)
	assert.Regexp(t, "^[0-9a-f]{64}$", sig)
}

func TestHMACSignatureService_SignDiffersByKeyAndPayload(t *testing.T) {
	svc := NewHMACSignatureService()
	payload := []byte(`{"a":1}`)

	assert.NotEqual(t, svc.Sign("key-one", payload), svc.Sign("key-two", payload))
	assert.NotEqual(t, svc.Sign("key-one", payload), svc.Sign("key-one", []byte(`{"a":2}`)))
}

func TestHMACSignatureService_Verify(t *testing.T) {
	svc := NewHMACSignatureService()
	payload := []byte(`{"event":"submission.created"}`)
	sig := svc.Sign("secret", payload)

	assert.True(t, svc.Verify("secret", payload, sig))
	assert.False(t, svc.Verify("wrong-secret", payload, sig))
	assert.False(t, svc.Verify("secret", []byte(`tampered`), sig))
	assert.False(t, svc.Verify("secret", payload, "deadbeef"))
}
