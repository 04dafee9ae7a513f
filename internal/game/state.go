package game

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/bits"

	"dicevault/internal/ledger"
)

const (
	DiscriminatorSize = 8
	// GameStateSize is the fixed on-store size of a GameState record.
	GameStateSize = DiscriminatorSize + ledger.AddressSize + 1 + 8 + 8
)

var gameStateDiscriminator = Discriminator("GameState")

// Discriminator returns the 8 byte tag that prefixes records of the named
// type.
func Discriminator(name string) [DiscriminatorSize]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var d [DiscriminatorSize]byte
	copy(d[:], sum[:DiscriminatorSize])
	return d
}

// GameState is the singleton aggregate of one deployment.
type GameState struct {
	Authority ledger.Address `json:"authority"`
	HouseEdge uint8          `json:"house_edge"`
	TotalBets uint64         `json:"total_bets"`
	TotalWins uint64         `json:"total_wins"`
}

// MarshalBinary encodes the state as discriminator, authority, house edge,
// total bets and total wins, integers little endian.
func (s *GameState) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, GameStateSize)
	buf = append(buf, gameStateDiscriminator[:]...)
	buf = append(buf, s.Authority[:]...)
	buf = append(buf, s.HouseEdge)
	buf = binary.LittleEndian.AppendUint64(buf, s.TotalBets)
	buf = binary.LittleEndian.AppendUint64(buf, s.TotalWins)
	return buf, nil
}

func (s *GameState) UnmarshalBinary(data []byte) error {
	if len(data) != GameStateSize {
		return fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidRecord, GameStateSize, len(data))
	}
	if !bytes.Equal(data[:DiscriminatorSize], gameStateDiscriminator[:]) {
		return fmt.Errorf("%w: discriminator mismatch", ErrInvalidRecord)
	}

	off := DiscriminatorSize
	copy(s.Authority[:], data[off:off+ledger.AddressSize])
	off += ledger.AddressSize
	s.HouseEdge = data[off]
	off++
	s.TotalBets = binary.LittleEndian.Uint64(data[off:])
	off += 8
	s.TotalWins = binary.LittleEndian.Uint64(data[off:])
	return nil
}

func (s *GameState) recordBet(win bool) error {
	bets, carry := bits.Add64(s.TotalBets, 1, 0)
	if carry != 0 {
		return fmt.Errorf("%w: total_bets", ErrArithmeticOverflow)
	}
	wins := s.TotalWins
	if win {
		wins, carry = bits.Add64(wins, 1, 0)
		if carry != 0 {
			return fmt.Errorf("%w: total_wins", ErrArithmeticOverflow)
		}
	}
	s.TotalBets = bets
	s.TotalWins = wins
	return nil
}
