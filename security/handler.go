// Package security implements the PDF standard security handler: password
// authentication, per-object encryption and decryption for RC4-128, AES-128
// and AES-256 files, and construction of the Encrypt dictionary when a
// document is protected on write.
package security

import (
	"errors"
	"fmt"

	"github.com/docsuite/pdfengine/ir/raw"
	"github.com/docsuite/pdfengine/pdferr"
)

// DataClass identifies the kind of payload being encrypted or decrypted.
type DataClass int

const (
	DataClassStream DataClass = iota
	DataClassString
	DataClassMetadataStream
)

// AuthRole records which password unlocked the document.
type AuthRole int

const (
	AuthNone AuthRole = iota
	AuthUser
	AuthOwner
)

// Handler performs object-level cryptography for one document.
type Handler interface {
	IsEncrypted() bool
	Authenticate(password string) error
	Decrypt(objNum, gen int, data []byte, class DataClass) ([]byte, error)
	Encrypt(objNum, gen int, data []byte, class DataClass) ([]byte, error)
	Permissions() raw.Permissions
	Role() AuthRole
	EncryptMetadata() bool
	// FileKey exposes the derived key so the writer can re-encrypt under the
	// same parameters during incremental updates.
	FileKey() []byte
}

// HandlerBuilder assembles a handler from the pieces the loader has parsed.
type HandlerBuilder struct {
	encryptDict raw.Dictionary
	trailer     raw.Dictionary
	fileID      []byte
}

func NewHandlerBuilder() *HandlerBuilder { return &HandlerBuilder{} }

func (b *HandlerBuilder) WithEncryptDict(d raw.Dictionary) *HandlerBuilder {
	b.encryptDict = d
	return b
}

func (b *HandlerBuilder) WithTrailer(d raw.Dictionary) *HandlerBuilder {
	b.trailer = d
	return b
}

func (b *HandlerBuilder) WithFileID(id []byte) *HandlerBuilder {
	b.fileID = id
	return b
}

// Build validates the Encrypt dictionary and returns a handler for it. A nil
// dictionary yields the pass-through handler.
func (b *HandlerBuilder) Build() (Handler, error) {
	if b.encryptDict == nil {
		return noEncryptionHandler{}, nil
	}
	if name, ok := raw.DictGetName(b.encryptDict, "Filter"); ok && name != "Standard" {
		return nil, fmt.Errorf("%w: security filter %s", pdferr.UnsupportedVersion, name)
	}
	v, _ := raw.DictGetInt(b.encryptDict, "V")
	if v == 0 {
		v = 1
	}
	r, ok := raw.DictGetInt(b.encryptDict, "R")
	if !ok {
		r = 2
	}
	if v > 5 || r > 6 {
		return nil, fmt.Errorf("%w: encryption V=%d R=%d", pdferr.UnsupportedVersion, v, r)
	}
	keyLen := int64(40)
	if v >= 5 {
		keyLen = 256
	}
	if n, ok := raw.DictGetInt(b.encryptDict, "Length"); ok && n > 0 {
		keyLen = n
	}
	if v == 4 && keyLen < 128 {
		keyLen = 128
	}
	if keyLen%8 != 0 {
		return nil, fmt.Errorf("%w: key length %d", pdferr.CorruptDocument, keyLen)
	}

	oEntry, _ := raw.DictGetString(b.encryptDict, "O")
	uEntry, _ := raw.DictGetString(b.encryptDict, "U")
	oe, _ := raw.DictGetString(b.encryptDict, "OE")
	ue, _ := raw.DictGetString(b.encryptDict, "UE")
	permsEntry, _ := raw.DictGetString(b.encryptDict, "Perms")
	pVal, _ := raw.DictGetInt(b.encryptDict, "P")

	id := b.fileID
	if len(id) == 0 && b.trailer != nil {
		if arrObj, ok := b.trailer.Get("ID"); ok {
			if arr, ok := arrObj.(raw.Array); ok && arr.Len() > 0 {
				if item, _ := arr.Get(0); item != nil {
					if s, ok := item.(raw.String); ok {
						id = s.Value()
					}
				}
			}
		}
	}
	encryptMeta := true
	if v, ok := raw.DictGetBool(b.encryptDict, "EncryptMetadata"); ok {
		encryptMeta = v
	}

	baseAlgo := algoRC4
	if v >= 4 {
		baseAlgo = algoAES
	}
	cryptFilters, err := parseCryptFilters(b.encryptDict, baseAlgo)
	if err != nil {
		return nil, err
	}
	streamAlgo, err := resolveCryptFilter(b.encryptDict, "StmF", baseAlgo, cryptFilters)
	if err != nil {
		return nil, err
	}
	stringAlgo, err := resolveCryptFilter(b.encryptDict, "StrF", baseAlgo, cryptFilters)
	if err != nil {
		return nil, err
	}
	return &standardHandler{
		v:           int(v),
		r:           int(r),
		lengthBits:  int(keyLen),
		oEntry:      oEntry,
		uEntry:      uEntry,
		oe:          oe,
		ue:          ue,
		permsEntry:  permsEntry,
		p:           int32(pVal),
		fileID:      id,
		encryptMeta: encryptMeta,
		streamAlgo:  streamAlgo,
		stringAlgo:  stringAlgo,
	}, nil
}

type cryptAlgo int

const (
	algoNone cryptAlgo = iota
	algoRC4
	algoAES
)

type standardHandler struct {
	key         []byte
	v           int
	r           int
	lengthBits  int
	oEntry      []byte
	uEntry      []byte
	oe          []byte
	ue          []byte
	permsEntry  []byte
	p           int32
	fileID      []byte
	encryptMeta bool
	role        AuthRole
	streamAlgo  cryptAlgo
	stringAlgo  cryptAlgo
}

func (h *standardHandler) IsEncrypted() bool     { return true }
func (h *standardHandler) EncryptMetadata() bool { return h.encryptMeta }
func (h *standardHandler) Role() AuthRole        { return h.role }
func (h *standardHandler) FileKey() []byte       { return h.key }

func (h *standardHandler) Permissions() raw.Permissions {
	return PermissionsFromValue(h.p)
}

func (h *standardHandler) Authenticate(password string) error {
	if h.r >= 5 {
		return h.authenticateRev6([]byte(password))
	}
	return h.authenticateLegacy([]byte(password))
}

// authenticateLegacy tries the password first as the user password, then as
// the owner password by recovering the user password from the O entry.
func (h *standardHandler) authenticateLegacy(pwd []byte) error {
	keyBytes := h.lengthBits / 8
	key := legacyKey(padPassword(pwd), h.oEntry, h.p, h.fileID, keyBytes, h.r, h.encryptMeta)
	if checkUserEntry(key, h.uEntry, h.fileID, h.r) {
		h.key = key
		h.role = AuthUser
		return nil
	}
	recovered := recoverUserPassword(pwd, h.oEntry, keyBytes, h.r)
	key = legacyKey(recovered, h.oEntry, h.p, h.fileID, keyBytes, h.r, h.encryptMeta)
	if checkUserEntry(key, h.uEntry, h.fileID, h.r) {
		h.key = key
		h.role = AuthOwner
		return nil
	}
	return pdferr.IncorrectPassword
}

func (h *standardHandler) authenticateRev6(pwd []byte) error {
	if len(h.uEntry) < 48 || len(h.ue) < 32 {
		return fmt.Errorf("%w: truncated U/UE entries", pdferr.CorruptDocument)
	}
	// User attempt: validation salt at U[32:40], key salt at U[40:48].
	if hashVal := rev6Hash(pwd, h.uEntry[32:40], nil); bytesEqual(hashVal, h.uEntry[:32]) {
		keyHash := rev6Hash(pwd, h.uEntry[40:48], nil)
		fileKey, err := aesCBCZeroIV(keyHash, h.ue[:32], false)
		if err != nil {
			return err
		}
		h.key = fileKey
		h.role = AuthUser
		h.applyPermsEntry()
		return nil
	}
	// Owner attempt hashes with the full U entry as extra data.
	if len(h.oEntry) >= 48 && len(h.oe) >= 32 {
		if hashVal := rev6Hash(pwd, h.oEntry[32:40], h.uEntry[:48]); bytesEqual(hashVal, h.oEntry[:32]) {
			keyHash := rev6Hash(pwd, h.oEntry[40:48], h.uEntry[:48])
			fileKey, err := aesCBCZeroIV(keyHash, h.oe[:32], false)
			if err != nil {
				return err
			}
			h.key = fileKey
			h.role = AuthOwner
			h.applyPermsEntry()
			return nil
		}
	}
	return pdferr.IncorrectPassword
}

// applyPermsEntry cross-checks the encrypted permissions against the plain P
// value. The encrypted copy wins when they disagree.
func (h *standardHandler) applyPermsEntry() {
	if len(h.permsEntry) != 16 || h.key == nil {
		return
	}
	if p, meta, err := decryptPermsEntry(h.key, h.permsEntry); err == nil {
		h.p = p
		h.encryptMeta = meta
	}
}

func (h *standardHandler) Decrypt(objNum, gen int, data []byte, class DataClass) ([]byte, error) {
	if h.key == nil {
		return nil, pdferr.EncryptedWithoutPassword
	}
	algo := h.pickAlgo(class)
	if algo == algoNone || len(data) == 0 {
		return data, nil
	}
	key := objectKey(h.key, objNum, gen, h.r, algo == algoAES)
	if algo == algoAES {
		return aesCrypt(key, data, false)
	}
	return rc4Apply(key, data), nil
}

func (h *standardHandler) Encrypt(objNum, gen int, data []byte, class DataClass) ([]byte, error) {
	if h.key == nil {
		return nil, pdferr.EncryptedWithoutPassword
	}
	algo := h.pickAlgo(class)
	if algo == algoNone || len(data) == 0 {
		return data, nil
	}
	key := objectKey(h.key, objNum, gen, h.r, algo == algoAES)
	if algo == algoAES {
		return aesCrypt(key, data, true)
	}
	return rc4Apply(key, data), nil
}

func (h *standardHandler) pickAlgo(class DataClass) cryptAlgo {
	if class == DataClassMetadataStream && !h.encryptMeta {
		return algoNone
	}
	if class == DataClassString {
		return h.stringAlgo
	}
	return h.streamAlgo
}

func parseCryptFilters(dict raw.Dictionary, base cryptAlgo) (map[string]cryptAlgo, error) {
	out := make(map[string]cryptAlgo)
	cfObj, ok := dict.Get("CF")
	if !ok {
		return out, nil
	}
	cfDict, ok := cfObj.(raw.Dictionary)
	if !ok {
		return nil, fmt.Errorf("%w: CF is not a dictionary", pdferr.CorruptDocument)
	}
	for _, name := range cfDict.Keys() {
		obj, _ := cfDict.Get(name)
		entry, ok := obj.(raw.Dictionary)
		if !ok {
			return nil, fmt.Errorf("%w: crypt filter %s is not a dictionary", pdferr.CorruptDocument, name)
		}
		algo := base
		if cfm, ok := raw.DictGetName(entry, "CFM"); ok {
			switch cfm {
			case "V2":
				algo = algoRC4
			case "AESV2", "AESV3":
				algo = algoAES
			case "None":
				algo = algoNone
			default:
				return nil, fmt.Errorf("%w: crypt filter method %s", pdferr.UnsupportedVersion, cfm)
			}
		}
		out[name] = algo
	}
	return out, nil
}

func resolveCryptFilter(dict raw.Dictionary, key string, base cryptAlgo, filters map[string]cryptAlgo) (cryptAlgo, error) {
	name, _ := raw.DictGetName(dict, key)
	switch name {
	case "":
		return base, nil
	case "Identity":
		return algoNone, nil
	}
	if algo, ok := filters[name]; ok {
		return algo, nil
	}
	return algoNone, fmt.Errorf("%w: crypt filter %s not defined", pdferr.CorruptDocument, name)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type noEncryptionHandler struct{}

func (noEncryptionHandler) IsEncrypted() bool             { return false }
func (noEncryptionHandler) Authenticate(string) error     { return nil }
func (noEncryptionHandler) Role() AuthRole                { return AuthNone }
func (noEncryptionHandler) EncryptMetadata() bool         { return false }
func (noEncryptionHandler) FileKey() []byte               { return nil }
func (noEncryptionHandler) Permissions() raw.Permissions  { return raw.AllPermissions() }
func (noEncryptionHandler) Decrypt(_, _ int, data []byte, _ DataClass) ([]byte, error) {
	return data, nil
}
func (noEncryptionHandler) Encrypt(_, _ int, data []byte, _ DataClass) ([]byte, error) {
	return data, nil
}

// NoopHandler returns the pass-through handler for unencrypted documents.
func NoopHandler() Handler { return noEncryptionHandler{} }

// ErrNotEncrypted is returned by operations that require an encrypted input.
var ErrNotEncrypted = errors.New("document is not encrypted")
