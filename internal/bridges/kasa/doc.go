// Package kasa implements the TCP control protocol spoken by Kasa-style
// smart plugs and power strips.
//
// # Wire Format
//
// Each request and response is a single frame:
//
//	┌────────────────────┬───────────────────────────────┐
//	│ length (4 bytes)   │ ciphertext (length bytes)     │
//	│ big-endian uint32  │ running-XOR of JSON plaintext │
//	└────────────────────┴───────────────────────────────┘
//
// The cipher is an autokey XOR seeded with 0xAB: every ciphertext byte
// becomes the key for the next byte. Decryption walks the same chain.
//
// # Usage
//
//	client := kasa.NewClient(kasa.ClientConfig{Timeout: 2 * time.Second})
//	var info kasa.SysInfoResponse
//	err := client.Query(ctx, "192.168.0.109", kasa.GetSysInfoRequest(), &info)
//	if errors.Is(err, kasa.ErrUnreachable) {
//	    // relay offline
//	}
//
// Each call opens its own connection. Relays close the socket after one
// exchange, so there is no pooling.
package kasa
