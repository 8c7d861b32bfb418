package types

// LTime is the logical time carried by a branch id.
type LTime int64

const (
	LtimeZero = LTime(0)
)

func (t LTime) Update(delta int) LTime {
	cur := int64(t)
	return LTime(cur + int64(delta))
}

func (t LTime) Int64() int64 {
	return int64(t)
}
