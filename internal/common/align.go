package common

// AlignUp rounds x up to a multiple of a.
func AlignUp(x, a uint64) uint64 {
	if a == 0 {
		return x
	}
	r := x % a
	if r == 0 {
		return x
	}
	return x + (a - r)
}

// Sectors returns how many sectors of size sector are needed to hold n bytes.
func Sectors(n, sector uint64) uint64 {
	if sector == 0 {
		return 0
	}
	return AlignUp(n, sector) / sector
}
