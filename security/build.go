package security

import (
	"crypto/rand"
	"fmt"

	"github.com/docsuite/pdfengine/ir/raw"
	"github.com/docsuite/pdfengine/ir/semantic"
	"github.com/docsuite/pdfengine/pdferr"
)

// BuildParams describes the protection to apply on write.
type BuildParams struct {
	UserPassword    string
	OwnerPassword   string
	Method          semantic.EncryptionMethod
	Permissions     raw.Permissions
	EncryptMetadata bool
}

// Build constructs the Encrypt dictionary for the requested method and
// returns it together with a ready-to-use handler keyed for encryption.
// An empty owner password falls back to the user password so the owner slot
// is never unset.
func Build(params BuildParams, fileID []byte) (*raw.DictObj, Handler, error) {
	if params.OwnerPassword == "" {
		params.OwnerPassword = params.UserPassword
	}
	switch params.Method {
	case semantic.EncryptRC4128:
		return buildLegacy(params, fileID, 2, 3, nil)
	case semantic.EncryptAES128:
		cf := func(enc *raw.DictObj) {
			stdCF := raw.Dict()
			stdCF.Set("CFM", raw.NameLiteral("AESV2"))
			stdCF.Set("AuthEvent", raw.NameLiteral("DocOpen"))
			stdCF.Set("Length", raw.NumberInt(16))
			cfDict := raw.Dict()
			cfDict.Set("StdCF", stdCF)
			enc.Set("CF", cfDict)
			enc.Set("StmF", raw.NameLiteral("StdCF"))
			enc.Set("StrF", raw.NameLiteral("StdCF"))
		}
		return buildLegacy(params, fileID, 4, 4, cf)
	case semantic.EncryptAES256:
		return buildAES256(params)
	}
	return nil, nil, fmt.Errorf("%w: encryption method %q", pdferr.InvalidParameter, params.Method)
}

// buildLegacy covers RC4-128 (V=2 R=3) and AES-128 (V=4 R=4). Both share the
// MD5-based O/U entries and a 128-bit file key.
func buildLegacy(params BuildParams, fileID []byte, v, r int, extend func(*raw.DictObj)) (*raw.DictObj, Handler, error) {
	const keyBytes = 16
	pVal := PermissionsValue(params.Permissions)
	oEntry := computeOwnerEntry([]byte(params.OwnerPassword), []byte(params.UserPassword), keyBytes, r)
	fileKey := legacyKey(padPassword([]byte(params.UserPassword)), oEntry, pVal, fileID, keyBytes, r, params.EncryptMetadata)
	uEntry := computeUserEntry(fileKey, fileID, r)

	enc := raw.Dict()
	enc.Set("Filter", raw.NameLiteral("Standard"))
	enc.Set("V", raw.NumberInt(int64(v)))
	enc.Set("R", raw.NumberInt(int64(r)))
	enc.Set("Length", raw.NumberInt(128))
	enc.Set("O", raw.HexStr(oEntry))
	enc.Set("U", raw.HexStr(uEntry))
	enc.Set("P", raw.NumberInt(int64(pVal)))
	if !params.EncryptMetadata {
		enc.Set("EncryptMetadata", raw.Bool(false))
	}
	if extend != nil {
		extend(enc)
	}

	streamAlgo := algoRC4
	if v >= 4 {
		streamAlgo = algoAES
	}
	h := &standardHandler{
		key:         fileKey,
		v:           v,
		r:           r,
		lengthBits:  128,
		oEntry:      oEntry,
		uEntry:      uEntry,
		p:           pVal,
		fileID:      fileID,
		encryptMeta: params.EncryptMetadata,
		role:        AuthOwner,
		streamAlgo:  streamAlgo,
		stringAlgo:  streamAlgo,
	}
	return enc, h, nil
}

// buildAES256 covers V=5 R=6: a random 256-bit file key wrapped for both
// password slots, with the permissions duplicated into the encrypted /Perms
// entry.
func buildAES256(params BuildParams) (*raw.DictObj, Handler, error) {
	fileKey := make([]byte, 32)
	if _, err := rand.Read(fileKey); err != nil {
		return nil, nil, err
	}
	salts := make([]byte, 16)
	if _, err := rand.Read(salts); err != nil {
		return nil, nil, err
	}
	userPwd := truncatePasswordRev6([]byte(params.UserPassword))
	uEntry := make([]byte, 48)
	copy(uEntry[:32], rev6Hash(userPwd, salts[0:8], nil))
	copy(uEntry[32:40], salts[0:8])
	copy(uEntry[40:48], salts[8:16])
	ueKey := rev6Hash(userPwd, salts[8:16], nil)
	ue, err := aesCBCZeroIV(ueKey, fileKey, true)
	if err != nil {
		return nil, nil, err
	}

	oSalts := make([]byte, 16)
	if _, err := rand.Read(oSalts); err != nil {
		return nil, nil, err
	}
	ownerPwd := truncatePasswordRev6([]byte(params.OwnerPassword))
	oEntry := make([]byte, 48)
	copy(oEntry[:32], rev6Hash(ownerPwd, oSalts[0:8], uEntry))
	copy(oEntry[32:40], oSalts[0:8])
	copy(oEntry[40:48], oSalts[8:16])
	oeKey := rev6Hash(ownerPwd, oSalts[8:16], uEntry)
	oe, err := aesCBCZeroIV(oeKey, fileKey, true)
	if err != nil {
		return nil, nil, err
	}

	pVal := PermissionsValue(params.Permissions)
	perms, err := buildPermsEntry(fileKey, pVal, params.EncryptMetadata)
	if err != nil {
		return nil, nil, err
	}

	stdCF := raw.Dict()
	stdCF.Set("CFM", raw.NameLiteral("AESV3"))
	stdCF.Set("AuthEvent", raw.NameLiteral("DocOpen"))
	stdCF.Set("Length", raw.NumberInt(32))
	cfDict := raw.Dict()
	cfDict.Set("StdCF", stdCF)

	enc := raw.Dict()
	enc.Set("Filter", raw.NameLiteral("Standard"))
	enc.Set("V", raw.NumberInt(5))
	enc.Set("R", raw.NumberInt(6))
	enc.Set("Length", raw.NumberInt(256))
	enc.Set("CF", cfDict)
	enc.Set("StmF", raw.NameLiteral("StdCF"))
	enc.Set("StrF", raw.NameLiteral("StdCF"))
	enc.Set("O", raw.HexStr(oEntry))
	enc.Set("U", raw.HexStr(uEntry))
	enc.Set("OE", raw.HexStr(oe))
	enc.Set("UE", raw.HexStr(ue))
	enc.Set("P", raw.NumberInt(int64(pVal)))
	enc.Set("Perms", raw.HexStr(perms))
	if !params.EncryptMetadata {
		enc.Set("EncryptMetadata", raw.Bool(false))
	}

	h := &standardHandler{
		key:         fileKey,
		v:           5,
		r:           6,
		lengthBits:  256,
		oEntry:      oEntry,
		uEntry:      uEntry,
		oe:          oe,
		ue:          ue,
		permsEntry:  perms,
		p:           pVal,
		encryptMeta: params.EncryptMetadata,
		role:        AuthOwner,
		streamAlgo:  algoAES,
		stringAlgo:  algoAES,
	}
	return enc, h, nil
}
