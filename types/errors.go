package types

import "github.com/pkg/errors"

var (
	ErrInvalidMembership = errors.New("invalid membership")
	ErrPayloadLength     = errors.New("payload length does not match node length")
	ErrNegativeField     = errors.New("negative identifier field")
)
