package security

import (
	"bytes"
	"errors"
	"testing"

	"github.com/docsuite/pdfengine/ir/raw"
	"github.com/docsuite/pdfengine/ir/semantic"
	"github.com/docsuite/pdfengine/pdferr"
)

var testFileID = []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02, 0x03, 0x04}

func buildAndReopen(t *testing.T, params BuildParams, password string) (Handler, error) {
	t.Helper()
	enc, _, err := Build(params, testFileID)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	h, err := NewHandlerBuilder().
		WithEncryptDict(enc).
		WithFileID(testFileID).
		Build()
	if err != nil {
		t.Fatalf("handler build: %v", err)
	}
	return h, h.Authenticate(password)
}

func TestRoundTripPerMethod(t *testing.T) {
	methods := []semantic.EncryptionMethod{
		semantic.EncryptRC4128,
		semantic.EncryptAES128,
		semantic.EncryptAES256,
	}
	payload := []byte("BT /F0 12 Tf (classified) Tj ET")
	for _, m := range methods {
		t.Run(string(m), func(t *testing.T) {
			params := BuildParams{
				UserPassword:    "user-pw",
				OwnerPassword:   "owner-pw",
				Method:          m,
				Permissions:     raw.AllPermissions(),
				EncryptMetadata: true,
			}
			enc, wh, err := Build(params, testFileID)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			ct, err := wh.Encrypt(7, 0, payload, DataClassStream)
			if err != nil {
				t.Fatalf("Encrypt: %v", err)
			}
			if bytes.Equal(ct, payload) {
				t.Fatal("ciphertext equals plaintext")
			}

			rh, err := NewHandlerBuilder().WithEncryptDict(enc).WithFileID(testFileID).Build()
			if err != nil {
				t.Fatalf("reopen: %v", err)
			}
			if err := rh.Authenticate("user-pw"); err != nil {
				t.Fatalf("user auth: %v", err)
			}
			if rh.Role() != AuthUser {
				t.Fatalf("role: %v", rh.Role())
			}
			pt, err := rh.Decrypt(7, 0, ct, DataClassStream)
			if err != nil {
				t.Fatalf("Decrypt: %v", err)
			}
			if !bytes.Equal(pt, payload) {
				t.Fatalf("round trip mismatch: %q", pt)
			}
		})
	}
}

func TestOwnerPasswordAuthenticates(t *testing.T) {
	for _, m := range []semantic.EncryptionMethod{semantic.EncryptRC4128, semantic.EncryptAES256} {
		t.Run(string(m), func(t *testing.T) {
			h, err := buildAndReopen(t, BuildParams{
				UserPassword: "u", OwnerPassword: "o", Method: m,
				Permissions: raw.Permissions{Print: true}, EncryptMetadata: true,
			}, "o")
			if err != nil {
				t.Fatalf("owner auth: %v", err)
			}
			if h.Role() != AuthOwner {
				t.Fatalf("role: %v", h.Role())
			}
		})
	}
}

func TestWrongPasswordRejected(t *testing.T) {
	for _, m := range []semantic.EncryptionMethod{
		semantic.EncryptRC4128, semantic.EncryptAES128, semantic.EncryptAES256,
	} {
		t.Run(string(m), func(t *testing.T) {
			_, err := buildAndReopen(t, BuildParams{
				UserPassword: "right", Method: m,
				Permissions: raw.AllPermissions(), EncryptMetadata: true,
			}, "wrong")
			if !errors.Is(err, pdferr.IncorrectPassword) {
				t.Fatalf("got %v", err)
			}
		})
	}
}

func TestPermissionsSurviveAES256(t *testing.T) {
	perms := raw.Permissions{Print: true, Copy: true}
	h, err := buildAndReopen(t, BuildParams{
		UserPassword: "pw", Method: semantic.EncryptAES256,
		Permissions: perms, EncryptMetadata: true,
	}, "pw")
	if err != nil {
		t.Fatal(err)
	}
	got := h.Permissions()
	if !got.Print || !got.Copy {
		t.Fatalf("granted permissions lost: %+v", got)
	}
	if got.Modify || got.Assemble {
		t.Fatalf("denied permissions granted: %+v", got)
	}
}

func TestPermissionsValueRoundTrip(t *testing.T) {
	perms := raw.Permissions{Print: true, FillForms: true, PrintHighQuality: true}
	if got := PermissionsFromValue(PermissionsValue(perms)); got != perms {
		t.Fatalf("got %+v", got)
	}
	if got := PermissionsFromValue(PermissionsValue(raw.AllPermissions())); got != raw.AllPermissions() {
		t.Fatalf("all: %+v", got)
	}
}

func TestStringAndStreamClasses(t *testing.T) {
	params := BuildParams{
		UserPassword: "pw", Method: semantic.EncryptAES128,
		Permissions: raw.AllPermissions(), EncryptMetadata: true,
	}
	enc, wh, err := Build(params, testFileID)
	if err != nil {
		t.Fatal(err)
	}
	secret := []byte("(title string)")
	ct, err := wh.Encrypt(3, 0, secret, DataClassString)
	if err != nil {
		t.Fatal(err)
	}
	rh, err := NewHandlerBuilder().WithEncryptDict(enc).WithFileID(testFileID).Build()
	if err != nil {
		t.Fatal(err)
	}
	if err := rh.Authenticate("pw"); err != nil {
		t.Fatal(err)
	}
	pt, err := rh.Decrypt(3, 0, ct, DataClassString)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(pt, secret) {
		t.Fatalf("got %q", pt)
	}
}

func TestObjectKeyVariesPerObject(t *testing.T) {
	fileKey := bytes.Repeat([]byte{0x42}, 16)
	k1 := objectKey(fileKey, 1, 0, 3, false)
	k2 := objectKey(fileKey, 2, 0, 3, false)
	if bytes.Equal(k1, k2) {
		t.Fatal("object keys identical across objects")
	}
	// R6 uses the file key directly.
	if !bytes.Equal(objectKey(fileKey, 1, 0, 6, true), fileKey) {
		t.Fatal("rev 6 object key should be the file key")
	}
}

func TestDecryptWithoutAuth(t *testing.T) {
	enc, _, err := Build(BuildParams{
		UserPassword: "pw", Method: semantic.EncryptRC4128,
		Permissions: raw.AllPermissions(), EncryptMetadata: true,
	}, testFileID)
	if err != nil {
		t.Fatal(err)
	}
	h, err := NewHandlerBuilder().WithEncryptDict(enc).WithFileID(testFileID).Build()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.Decrypt(1, 0, []byte("x"), DataClassStream); !errors.Is(err, pdferr.EncryptedWithoutPassword) {
		t.Fatalf("got %v", err)
	}
}

func TestNoopHandler(t *testing.T) {
	h := NoopHandler()
	if h.IsEncrypted() {
		t.Fatal("noop handler claims encryption")
	}
	out, err := h.Decrypt(1, 0, []byte("plain"), DataClassStream)
	if err != nil || string(out) != "plain" {
		t.Fatalf("out=%q err=%v", out, err)
	}
}

func TestProtectDefaults(t *testing.T) {
	doc := &semantic.Document{}
	err := Protect(doc, ProtectOptions{UserPassword: "pw", Permissions: raw.AllPermissions()})
	if err != nil {
		t.Fatal(err)
	}
	if doc.Encryption == nil {
		t.Fatal("no encryption state")
	}
	if doc.Encryption.Method != semantic.EncryptAES256 {
		t.Fatalf("default method: %v", doc.Encryption.Method)
	}
	if doc.Encryption.OwnerPass != "pw" {
		t.Fatalf("owner fallback: %q", doc.Encryption.OwnerPass)
	}
	if !doc.Dirty {
		t.Fatal("document not marked dirty")
	}
}

func TestProtectRejectsEmptyPasswords(t *testing.T) {
	err := Protect(&semantic.Document{}, ProtectOptions{})
	if !errors.Is(err, pdferr.InvalidParameter) {
		t.Fatalf("got %v", err)
	}
}

func TestProtectRejectsUnknownMethod(t *testing.T) {
	err := Protect(&semantic.Document{}, ProtectOptions{
		UserPassword: "pw", Method: semantic.EncryptionMethod("rot13"),
	})
	if !errors.Is(err, pdferr.InvalidParameter) {
		t.Fatalf("got %v", err)
	}
}

func TestUnprotect(t *testing.T) {
	doc := &semantic.Document{Encryption: &semantic.EncryptionState{Method: semantic.EncryptAES256}}
	Unprotect(doc)
	if doc.Encryption != nil || !doc.Dirty {
		t.Fatalf("state: enc=%v dirty=%v", doc.Encryption, doc.Dirty)
	}
	// No-op on plain documents.
	plain := &semantic.Document{}
	Unprotect(plain)
	if plain.Dirty {
		t.Fatal("unprotect dirtied a plain document")
	}
}

func TestHash(t *testing.T) {
	data := []byte("checksum me")
	want := map[string]int{"md5": 32, "sha1": 40, "sha256": 64, "sha512": 128}
	for algo, hexLen := range want {
		got, err := Hash(data, algo)
		if err != nil {
			t.Fatalf("%s: %v", algo, err)
		}
		if len(got) != hexLen {
			t.Fatalf("%s: digest length %d, want %d", algo, len(got), hexLen)
		}
		again, _ := Hash(data, algo)
		if got != again {
			t.Fatalf("%s: digest not stable", algo)
		}
	}
	// Known vector keeps the encoding honest.
	got, err := Hash([]byte("abc"), "sha256")
	if err != nil {
		t.Fatal(err)
	}
	if got != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Fatalf("sha256(abc) = %s", got)
	}
	if _, err := Hash(data, "crc32"); !errors.Is(err, pdferr.InvalidParameter) {
		t.Fatalf("unknown algorithm: %v", err)
	}
}

func TestHashPasswordStable(t *testing.T) {
	a, b := HashPassword("secret"), HashPassword("secret")
	if a != b || len(a) != 64 {
		t.Fatalf("a=%q b=%q", a, b)
	}
	if HashPassword("other") == a {
		t.Fatal("distinct passwords collide")
	}
}
