package lorawan

import "crypto/aes"

// EncryptPayload implements the LoRaWAN §4.3.3.1 payload cipher. It is its
// own inverse: calling it again on its own output with the same
// (key, devAddr, fCnt, dir) recovers the original bytes.
//
//	A_i = 0x01 || 0x00000000 || dir || DevAddr_LE(4) || FCnt_LE(4) || 0x00 || i
//	S_i = AES-ECB-Encrypt(key, A_i)
//	C   = P XOR truncate(S_1..S_n, len(P))
func EncryptPayload(key AES128Key, devAddr DevAddr, fCnt uint32, dir Direction, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}

	numBlocks := (len(data) + 15) / 16
	addr := devAddr.little()

	a := make([]byte, 16)
	a[0] = 0x01
	a[5] = byte(dir)
	copy(a[6:10], addr[:])
	a[10] = byte(fCnt)
	a[11] = byte(fCnt >> 8)
	a[12] = byte(fCnt >> 16)
	a[13] = byte(fCnt >> 24)

	s := make([]byte, 16*numBlocks)
	for i := 0; i < numBlocks; i++ {
		a[15] = byte(i + 1)
		block.Encrypt(s[i*16:(i+1)*16], a)
	}

	out := make([]byte, len(data))
	for i := range data {
		out[i] = data[i] ^ s[i]
	}
	return out, nil
}

// ComputeMIC implements the LoRaWAN §4.4 message integrity check.
//
//	B0  = 0x49 || 0x00000000 || dir || DevAddr_LE(4) || FCnt_LE(4) || 0x00 || len(msg)
//	MIC = truncate_4(AES-CMAC(nwkSKey, B0 || msg))
func ComputeMIC(nwkSKey AES128Key, devAddr DevAddr, fCnt uint32, dir Direction, msg []byte) ([4]byte, error) {
	var mic [4]byte

	addr := devAddr.little()
	b0 := make([]byte, 16)
	b0[0] = 0x49
	b0[5] = byte(dir)
	copy(b0[6:10], addr[:])
	b0[10] = byte(fCnt)
	b0[11] = byte(fCnt >> 8)
	b0[12] = byte(fCnt >> 16)
	b0[13] = byte(fCnt >> 24)
	b0[15] = byte(len(msg))

	full, err := aesCMAC(nwkSKey[:], append(b0, msg...))
	if err != nil {
		return mic, err
	}
	copy(mic[:], full[:4])
	return mic, nil
}
