package cryptoutil

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"testing"
)

// generateTestECKey creates an ECDSA key pair for the given curve.
func generateTestECKey(t *testing.T, curve elliptic.Curve) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		t.Fatalf("generate ECDSA key: %v", err)
	}
	return key
}

// newTestVerifier creates a KMSVerifier with a pre-cached public key.
func newTestVerifier(t *testing.T, pub crypto.PublicKey) *KMSVerifier {
	t.Helper()
	v := &KMSVerifier{
		keyARN: "arn:aws:kms:us-east-2:000000000000:key/test-key-id",
	}
	v.pubKey = pub
	return v
}

func TestVerifySignature_ECDSA_P256_Valid(t *testing.T) {
	key := generateTestECKey(t, elliptic.P256())
	v := newTestVerifier(t, &key.PublicKey)

	message := []byte("bundle manifest bytes")
	digest := sha256.Sum256(message)
	sig, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if err := v.VerifySignature(t.Context(), message, sig); err != nil {
		t.Fatalf("VerifySignature ECDSA P-256: %v", err)
	}
}

func TestVerifySignature_ECDSA_WrongMessage(t *testing.T) {
	key := generateTestECKey(t, elliptic.P256())
	v := newTestVerifier(t, &key.PublicKey)

	message := []byte("bundle manifest bytes")
	digest := sha256.Sum256(message)
	sig, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if err := v.VerifySignature(t.Context(), []byte("tampered"), sig); err == nil {
		t.Fatal("expected verification failure for wrong message")
	}
}

func TestVerifySignature_RSA_PSS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate RSA key: %v", err)
	}
	v := newTestVerifier(t, &key.PublicKey)

	message := []byte("bundle manifest bytes")
	digest := sha256.Sum256(message)
	sig, err := rsa.SignPSS(rand.Reader, key, crypto.SHA256, digest[:], nil)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if err := v.VerifySignature(t.Context(), message, sig); err != nil {
		t.Fatalf("VerifySignature RSA-PSS: %v", err)
	}
}

func TestHashEqual(t *testing.T) {
	a := SHA256Hex([]byte("content"))
	b := SHA256Hex([]byte("content"))
	c := SHA256Hex([]byte("other"))

	if !HashEqual(a, b) {
		t.Fatal("equal hashes reported unequal")
	}
	if HashEqual(a, c) {
		t.Fatal("different hashes reported equal")
	}
	if HashEqual(a, a[:16]) {
		t.Fatal("prefix reported equal")
	}
}
