package miio

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
)

const (
	HEADER_SIZE     = 32
	MAGIC           = 0x2131
	DEFAULT_PORT    = 54321
	TOKEN_HEX_SIZE  = 32
	HELLO_UNKNOWN   = 0xFFFFFFFF
	checksumOffset  = 16
	maxPacketLength = 0xFFFF
)

// Header is the fixed part of every miIO packet.
type Header struct {
	Length   uint16
	Unknown  uint32
	DeviceId uint32
	Stamp    uint32
	Checksum [16]byte
}

func (h Header) IsHello() bool {
	return h.Unknown == HELLO_UNKNOWN
}

func (h Header) marshal() []byte {
	buf := make([]byte, HEADER_SIZE)
	binary.BigEndian.PutUint16(buf[0:2], MAGIC)
	binary.BigEndian.PutUint16(buf[2:4], h.Length)
	binary.BigEndian.PutUint32(buf[4:8], h.Unknown)
	binary.BigEndian.PutUint32(buf[8:12], h.DeviceId)
	binary.BigEndian.PutUint32(buf[12:16], h.Stamp)
	copy(buf[16:32], h.Checksum[:])
	return buf
}

func parseHeader(data []byte) (Header, error) {
	if len(data) < HEADER_SIZE {
		return Header{}, fmt.Errorf("short packet: %d bytes", len(data))
	}
	if magic := binary.BigEndian.Uint16(data[0:2]); magic != MAGIC {
		return Header{}, fmt.Errorf("bad magic 0x%04x", magic)
	}
	h := Header{
		Length:   binary.BigEndian.Uint16(data[2:4]),
		Unknown:  binary.BigEndian.Uint32(data[4:8]),
		DeviceId: binary.BigEndian.Uint32(data[8:12]),
		Stamp:    binary.BigEndian.Uint32(data[12:16]),
	}
	copy(h.Checksum[:], data[16:32])
	if int(h.Length) != len(data) {
		return Header{}, fmt.Errorf("length mismatch: header says %d, got %d", h.Length, len(data))
	}
	return h, nil
}

// HelloPacket returns the discovery packet every device answers to,
// regardless of token.
func HelloPacket() []byte {
	buf := bytes.Repeat([]byte{0xff}, HEADER_SIZE)
	binary.BigEndian.PutUint16(buf[0:2], MAGIC)
	binary.BigEndian.PutUint16(buf[2:4], HEADER_SIZE)
	return buf
}

// ParseToken decodes a 32 char hex token.
func ParseToken(token string) ([]byte, error) {
	if len(token) != TOKEN_HEX_SIZE {
		return nil, fmt.Errorf("token must be %d hex characters, got %d", TOKEN_HEX_SIZE, len(token))
	}
	raw, err := hex.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return raw, nil
}

// Codec seals and opens packets for a single device token.
type Codec struct {
	token []byte
	key   []byte
	iv    []byte
}

func NewCodec(token []byte) (*Codec, error) {
	if len(token) != 16 {
		return nil, fmt.Errorf("token must be 16 bytes, got %d", len(token))
	}
	key := md5.Sum(token)
	iv := md5.Sum(append(key[:], token...))
	return &Codec{
		token: append([]byte(nil), token...),
		key:   key[:],
		iv:    iv[:],
	}, nil
}

func (c *Codec) Encrypt(plain []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	padded := pkcs7Pad(plain, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, c.iv).CryptBlocks(out, padded)
	return out, nil
}

func (c *Codec) Decrypt(encrypted []byte) ([]byte, error) {
	if len(encrypted) == 0 || len(encrypted)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("encrypted payload of %d bytes is not block aligned", len(encrypted))
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(encrypted))
	cipher.NewCBCDecrypter(block, c.iv).CryptBlocks(out, encrypted)
	return pkcs7Unpad(out, aes.BlockSize)
}

// Seal encrypts payload and builds a complete data packet.
func (c *Codec) Seal(deviceId uint32, stamp uint32, payload []byte) ([]byte, error) {
	encrypted, err := c.Encrypt(payload)
	if err != nil {
		return nil, err
	}
	if HEADER_SIZE+len(encrypted) > maxPacketLength {
		return nil, fmt.Errorf("payload too large: %d bytes", len(payload))
	}
	h := Header{
		Length:   uint16(HEADER_SIZE + len(encrypted)),
		DeviceId: deviceId,
		Stamp:    stamp,
	}
	packet := append(h.marshal(), encrypted...)
	sum := c.checksum(packet)
	copy(packet[checksumOffset:HEADER_SIZE], sum[:])
	return packet, nil
}

// Open validates a packet and returns its header and decrypted payload. Hello
// replies carry no payload and are not checksummed with the token.
func (c *Codec) Open(packet []byte) (Header, []byte, error) {
	h, err := parseHeader(packet)
	if err != nil {
		return Header{}, nil, err
	}
	if len(packet) == HEADER_SIZE {
		return h, nil, nil
	}
	if sum := c.checksum(packet); !bytes.Equal(sum[:], h.Checksum[:]) {
		return Header{}, nil, errors.New("checksum mismatch")
	}
	payload, err := c.Decrypt(packet[HEADER_SIZE:])
	if err != nil {
		return Header{}, nil, err
	}
	return h, payload, nil
}

func (c *Codec) checksum(packet []byte) [16]byte {
	hash := md5.New()
	hash.Write(packet[:checksumOffset])
	hash.Write(c.token)
	hash.Write(packet[HEADER_SIZE:])
	var sum [16]byte
	copy(sum[:], hash.Sum(nil))
	return sum
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(append([]byte(nil), data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("empty payload")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("bad padding %d", n)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("bad padding")
		}
	}
	// firmware sometimes terminates the JSON with a NUL
	return bytes.TrimRight(data[:len(data)-n], "\x00"), nil
}
