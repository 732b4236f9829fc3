package security

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"

	"github.com/docsuite/pdfengine/ir/raw"
)

// passwordPadding is the fixed pad string of the standard security handler,
// appended to short passwords before key derivation (revisions 2 through 4).
var passwordPadding = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

func padPassword(pwd []byte) []byte {
	padded := make([]byte, 32)
	n := copy(padded, pwd)
	copy(padded[n:], passwordPadding[:32-n])
	return padded
}

func truncatePasswordRev6(pwd []byte) []byte {
	if len(pwd) > 127 {
		return pwd[:127]
	}
	return pwd
}

// legacyKey derives the file key for revisions 2 through 4: MD5 over the
// padded password, the O entry, the permission flags, the file ID and, for
// revision 4 with unencrypted metadata, a trailing 0xFFFFFFFF marker. R>=3
// hardens the digest with 50 MD5 rounds over the truncated key.
func legacyKey(paddedPwd, oEntry []byte, pVal int32, fileID []byte, keyLenBytes, r int, encryptMeta bool) []byte {
	if keyLenBytes <= 0 {
		keyLenBytes = 5
	}
	if keyLenBytes > 16 {
		keyLenBytes = 16
	}
	data := make([]byte, 0, 32+len(oEntry)+4+len(fileID)+4)
	data = append(data, paddedPwd...)
	data = append(data, oEntry...)
	var pBuf [4]byte
	binary.LittleEndian.PutUint32(pBuf[:], uint32(pVal))
	data = append(data, pBuf[:]...)
	data = append(data, fileID...)
	if r >= 4 && !encryptMeta {
		data = append(data, 0xFF, 0xFF, 0xFF, 0xFF)
	}
	sum := md5.Sum(data)
	key := sum[:]
	if r >= 3 {
		for i := 0; i < 50; i++ {
			sum = md5.Sum(key[:keyLenBytes])
			key = sum[:]
		}
	}
	return key[:keyLenBytes]
}

// ownerKey derives the RC4 key that encrypts the O entry.
func ownerKey(ownerPwd []byte, keyLenBytes, r int) []byte {
	digest := md5.Sum(padPassword(ownerPwd))
	key := digest[:]
	if r >= 3 {
		for i := 0; i < 50; i++ {
			digest = md5.Sum(key)
			key = digest[:]
		}
	}
	if keyLenBytes > len(key) {
		keyLenBytes = len(key)
	}
	return key[:keyLenBytes]
}

// computeOwnerEntry builds the O entry: the padded user password encrypted
// under the owner key, with 19 extra XOR-keyed RC4 rounds for R>=3.
func computeOwnerEntry(ownerPwd, userPwd []byte, keyLenBytes, r int) []byte {
	key := ownerKey(ownerPwd, keyLenBytes, r)
	val := rc4Apply(key, padPassword(userPwd))
	if r >= 3 {
		for i := 1; i <= 19; i++ {
			val = rc4Apply(xorKey(key, byte(i)), val)
		}
	}
	return val
}

// recoverUserPassword inverts computeOwnerEntry given the owner password.
// RC4 is its own inverse, so the rounds run in reverse order.
func recoverUserPassword(ownerPwd, oEntry []byte, keyLenBytes, r int) []byte {
	key := ownerKey(ownerPwd, keyLenBytes, r)
	val := append([]byte(nil), oEntry...)
	if r >= 3 {
		for i := 19; i >= 1; i-- {
			val = rc4Apply(xorKey(key, byte(i)), val)
		}
	}
	return rc4Apply(key, val)
}

// computeUserEntry builds the U entry from the file key. R2 encrypts the pad
// string directly; R>=3 hashes the pad string with the file ID and runs the
// 20-round XOR-keyed RC4 chain, padding the result to 32 bytes.
func computeUserEntry(fileKey, fileID []byte, r int) []byte {
	if r <= 2 {
		return rc4Apply(fileKey, passwordPadding)
	}
	h := md5.Sum(append(append([]byte{}, passwordPadding...), fileID...))
	val := h[:]
	for i := 0; i <= 19; i++ {
		val = rc4Apply(xorKey(fileKey, byte(i)), val)
	}
	out := make([]byte, 32)
	copy(out, val)
	return out
}

// checkUserEntry reports whether fileKey reproduces the stored U entry. Only
// the first 16 bytes are significant for R>=3.
func checkUserEntry(fileKey, uEntry, fileID []byte, r int) bool {
	if len(uEntry) < 16 {
		return false
	}
	expect := computeUserEntry(fileKey, fileID, r)
	return bytes.Equal(expect[:16], uEntry[:16])
}

func xorKey(key []byte, b byte) []byte {
	out := make([]byte, len(key))
	for i, k := range key {
		out[i] = k ^ b
	}
	return out
}

// rev6Hash is the hardened hash of revision 6 authentication: an initial
// SHA-256 followed by at least 64 rounds of AES-CBC over the repeated input,
// where the cipher output selects SHA-256, SHA-384 or SHA-512 for the next
// round and decides termination.
func rev6Hash(pwd, salt, extra []byte) []byte {
	pwd = truncatePasswordRev6(pwd)
	initial := sha256.Sum256(concat(pwd, salt, extra))
	k := initial[:]
	for round := 0; ; round++ {
		unit := concat(pwd, k, extra)
		k1 := make([]byte, 0, len(unit)*64)
		for i := 0; i < 64; i++ {
			k1 = append(k1, unit...)
		}
		e, err := aesCBCRaw(k[:16], k[16:32], k1, true)
		if err != nil {
			return k[:32]
		}
		mod := 0
		for _, b := range e[:16] {
			mod += int(b)
		}
		switch mod % 3 {
		case 0:
			sum := sha256.Sum256(e)
			k = sum[:]
		case 1:
			sum := sha512.Sum384(e)
			k = sum[:]
		default:
			sum := sha512.Sum512(e)
			k = sum[:]
		}
		if round >= 63 && int(e[len(e)-1]) <= round-31 {
			break
		}
	}
	return k[:32]
}

// objectKey derives the per-object key for revisions below 5: the file key
// extended with the object and generation numbers, plus the AES salt when the
// object is AES-encrypted. R>=5 uses the file key for every object.
func objectKey(fileKey []byte, objNum, gen, r int, useAES bool) []byte {
	if r >= 5 {
		return fileKey
	}
	key := append([]byte{}, fileKey...)
	key = append(key,
		byte(objNum), byte(objNum>>8), byte(objNum>>16),
		byte(gen), byte(gen>>8))
	if useAES {
		key = append(key, 0x73, 0x41, 0x6C, 0x54) // "sAlT"
	}
	hash := md5.Sum(key)
	n := len(fileKey) + 5
	if n > 16 {
		n = 16
	}
	return hash[:n]
}

func rc4Apply(key, data []byte) []byte {
	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out
}

// aesCrypt encrypts or decrypts with AES-CBC, PKCS#7 padding and a leading
// random IV, the payload form used for strings and streams.
func aesCrypt(key, data []byte, encrypt bool) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if encrypt {
		iv := make([]byte, aes.BlockSize)
		if _, err := rand.Read(iv); err != nil {
			return nil, err
		}
		padLen := aes.BlockSize - (len(data) % aes.BlockSize)
		plain := append(append([]byte{}, data...), bytes.Repeat([]byte{byte(padLen)}, padLen)...)
		out := make([]byte, aes.BlockSize+len(plain))
		copy(out, iv)
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], plain)
		return out, nil
	}
	if len(data) < aes.BlockSize {
		return nil, errors.New("aes ciphertext too short")
	}
	iv, ct := data[:aes.BlockSize], data[aes.BlockSize:]
	if len(ct)%aes.BlockSize != 0 {
		return nil, errors.New("aes ciphertext not a multiple of the block size")
	}
	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ct)
	if len(out) == 0 {
		return out, nil
	}
	pad := int(out[len(out)-1])
	if pad <= 0 || pad > aes.BlockSize || pad > len(out) {
		return nil, errors.New("invalid aes padding")
	}
	return out[:len(out)-pad], nil
}

// aesCBCRaw runs AES-CBC without padding; data must be block aligned. The
// UE/OE entries and the rev6 hash use this form.
func aesCBCRaw(key, iv, data []byte, encrypt bool) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != aes.BlockSize {
		return nil, errors.New("invalid iv size")
	}
	if len(data)%aes.BlockSize != 0 {
		return nil, errors.New("data not a multiple of the block size")
	}
	out := make([]byte, len(data))
	if encrypt {
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, data)
	} else {
		cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
	}
	return out, nil
}

func aesCBCZeroIV(key, data []byte, encrypt bool) ([]byte, error) {
	return aesCBCRaw(key, make([]byte, aes.BlockSize), data, encrypt)
}

func concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// PermissionsValue encodes a permission set as the P flags of the standard
// security handler. Cleared bits deny; the reserved bits stay set.
func PermissionsValue(p raw.Permissions) int32 {
	val := int32(-4)
	if !p.Print {
		val &^= 1 << 2
	}
	if !p.Modify {
		val &^= 1 << 3
	}
	if !p.Copy {
		val &^= 1 << 4
	}
	if !p.ModifyAnnotations {
		val &^= 1 << 5
	}
	if !p.FillForms {
		val &^= 1 << 8
	}
	if !p.ExtractAccessible {
		val &^= 1 << 9
	}
	if !p.Assemble {
		val &^= 1 << 10
	}
	if !p.PrintHighQuality {
		val &^= 1 << 11
	}
	return val
}

// PermissionsFromValue decodes P flags into a permission set.
func PermissionsFromValue(p int32) raw.Permissions {
	return raw.Permissions{
		Print:             p&0x4 != 0,
		Modify:            p&0x8 != 0,
		Copy:              p&0x10 != 0,
		ModifyAnnotations: p&0x20 != 0,
		FillForms:         p&0x100 != 0,
		ExtractAccessible: p&0x200 != 0,
		Assemble:          p&0x400 != 0,
		PrintHighQuality:  p&0x800 != 0,
	}
}

// buildPermsEntry encrypts the P flags into the /Perms validation blob of a
// revision 6 file: P, a fixed filler, the metadata flag, the "adb" signature
// and 4 random bytes, AES-ECB encrypted under the file key.
func buildPermsEntry(fileKey []byte, pVal int32, encryptMeta bool) ([]byte, error) {
	blob := make([]byte, 16)
	binary.LittleEndian.PutUint32(blob[0:4], uint32(pVal))
	blob[4], blob[5], blob[6], blob[7] = 0xFF, 0xFF, 0xFF, 0xFF
	if encryptMeta {
		blob[8] = 'T'
	} else {
		blob[8] = 'F'
	}
	blob[9], blob[10], blob[11] = 'a', 'd', 'b'
	if _, err := rand.Read(blob[12:16]); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(fileKey)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 16)
	block.Encrypt(out, blob)
	return out, nil
}

// decryptPermsEntry inverts buildPermsEntry and validates the signature.
func decryptPermsEntry(fileKey, perms []byte) (pVal int32, encryptMeta bool, err error) {
	if len(perms) != 16 {
		return 0, false, errors.New("perms entry must be 16 bytes")
	}
	block, err := aes.NewCipher(fileKey)
	if err != nil {
		return 0, false, err
	}
	out := make([]byte, 16)
	block.Decrypt(out, perms)
	if out[9] != 'a' || out[10] != 'd' || out[11] != 'b' {
		return 0, false, errors.New("perms signature mismatch")
	}
	return int32(binary.LittleEndian.Uint32(out[0:4])), out[8] == 'T', nil
}
